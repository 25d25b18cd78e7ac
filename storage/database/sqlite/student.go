package sqliterepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/student"
)

type studentRepository struct {
	db *sql.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sql.DB) *studentRepository {
	return &studentRepository{db: db}
}

const studentColumns = "id, nis, nisn, name, class_label, created_at, updated_at"

func (repo studentRepository) scan(row interface{ Scan(...interface{}) error }) (student.Student, error) {
	var std student.Student
	err := row.Scan(&std.ID, &std.NIS, &std.NISN, &std.Name, &std.ClassLabel, &std.CreatedAt, &std.UpdatedAt)
	return std, err
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	const q = `INSERT INTO student (` + studentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := repo.db.ExecContext(ctx, q,
		std.ID, std.NIS, std.NISN, std.Name, std.ClassLabel, std.CreatedAt.UTC(), std.UpdatedAt.UTC())
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo studentRepository) QueryAllStudents(ctx context.Context) ([]student.Student, error) {
	rows, err := repo.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM student ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	defer func() { _ = rows.Close() }()

	var students []student.Student
	for rows.Next() {
		std, err := repo.scan(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning student")
		}
		students = append(students, std)
	}
	return students, errors.Wrap(rows.Err(), "querying students")
}

func (repo studentRepository) CountStudents(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM student`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return count, nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	std, err := repo.scan(repo.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM student WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student by ID")
	}
	return std, nil
}

func (repo studentRepository) FindStudentsByIdentifier(ctx context.Context, ident string) ([]student.Student, error) {
	const q = `SELECT ` + studentColumns + ` FROM student WHERE nis = ? OR (nisn <> '' AND nisn = ?)`

	rows, err := repo.db.QueryContext(ctx, q, ident, ident)
	if err != nil {
		return nil, errors.Wrap(err, "finding students by identifier")
	}
	defer func() { _ = rows.Close() }()

	var students []student.Student
	for rows.Next() {
		std, err := repo.scan(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning student")
		}
		students = append(students, std)
	}
	return students, errors.Wrap(rows.Err(), "finding students by identifier")
}
