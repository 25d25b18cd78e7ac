package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/student"
)

type dbStudent struct {
	ID         string    `db:"id"`
	NIS        string    `db:"nis"`
	NISN       string    `db:"nisn"`
	Name       string    `db:"name"`
	ClassLabel string    `db:"class_label"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (row dbStudent) model() student.Student {
	return student.Student{
		ID:         row.ID,
		NIS:        row.NIS,
		NISN:       row.NISN,
		Name:       row.Name,
		ClassLabel: row.ClassLabel,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sql.DB) *studentRepository {
	return &studentRepository{db: sqlx.NewDb(db, "postgres")}
}

// trapNoRowsErr maps psql "no rows" err to student.ErrNotFound
func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	const q = `
		INSERT INTO student (id, nis, nisn, name, class_label, created_at, updated_at)
		VALUES (:id, :nis, :nisn, :name, :class_label, :created_at, :updated_at)`

	row := dbStudent{
		ID:         std.ID,
		NIS:        std.NIS,
		NISN:       std.NISN,
		Name:       std.Name,
		ClassLabel: std.ClassLabel,
		CreatedAt:  std.CreatedAt.UTC(),
		UpdatedAt:  std.UpdatedAt.UTC(),
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo studentRepository) QueryAllStudents(ctx context.Context) ([]student.Student, error) {
	var rows []dbStudent
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM student ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.model())
	}
	return students, nil
}

func (repo studentRepository) CountStudents(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM student`); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return count, nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	var row dbStudent
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM student WHERE id = $1`, id); err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "finding student by ID")
	}
	return row.model(), nil
}

func (repo studentRepository) FindStudentsByIdentifier(ctx context.Context, ident string) ([]student.Student, error) {
	const q = `SELECT * FROM student WHERE nis = $1 OR (nisn <> '' AND nisn = $1)`

	var rows []dbStudent
	if err := repo.db.SelectContext(ctx, &rows, q, ident); err != nil {
		return nil, errors.Wrap(err, "finding students by identifier")
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.model())
	}
	return students, nil
}
