package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

const dateLayout = "2006-01-02"

// uniqueViolation is the psql error code raised on a uniqueness constraint breach.
const uniqueViolation = "23505"

type dbRecord struct {
	ID         string    `db:"id"`
	StudentID  string    `db:"student_id"`
	NIS        string    `db:"nis"`
	Date       time.Time `db:"date"`
	Time       time.Time `db:"time"`
	Status     string    `db:"status"`
	Method     string    `db:"method"`
	StationTag string    `db:"station_tag"`
}

func (row dbRecord) model() attendance.Record {
	return attendance.Record{
		ID:         row.ID,
		StudentID:  row.StudentID,
		NIS:        row.NIS,
		Date:       attendance.DateOf(row.Date),
		Time:       row.Time,
		Status:     attendance.Status(row.Status),
		Method:     attendance.Method(row.Method),
		StationTag: row.StationTag,
	}
}

type dbEntry struct {
	dbRecord
	StudentName string `db:"student_name"`
	ClassLabel  string `db:"class_label"`
}

func (row dbEntry) model() attendance.Entry {
	return attendance.Entry{
		Record:      row.dbRecord.model(),
		StudentName: row.StudentName,
		ClassLabel:  row.ClassLabel,
	}
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sql.DB) *attendanceRepository {
	return &attendanceRepository{db: sqlx.NewDb(db, "postgres")}
}

// CreateAttendance inserts rec unless a record already holds the (student, day)
// slot. The existence check and the insert are one conditional statement; the
// table's uniqueness constraint is the serialization point, so the outcome is
// consistent across any number of processes sharing the store.
func (repo attendanceRepository) CreateAttendance(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	const q = `
		INSERT INTO attendance (id, student_id, nis, date, time, status, method, station_tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, date) DO NOTHING`

	res, err := repo.db.ExecContext(ctx, q,
		rec.ID, rec.StudentID, rec.NIS, rec.Date.Format(dateLayout), rec.Time,
		string(rec.Status), string(rec.Method), rec.StationTag,
	)
	if err != nil {
		// raced past the ON CONFLICT guard (e.g. via a serialization retry);
		// same meaning, same signal
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return attendance.Record{}, attendance.ErrRecordExists
		}
		return attendance.Record{}, errors.Wrap(err, "inserting attendance")
	}
	if n, err := res.RowsAffected(); err != nil {
		return attendance.Record{}, errors.Wrap(err, "checking inserted attendance")
	} else if n == 0 {
		return attendance.Record{}, attendance.ErrRecordExists
	}
	return rec, nil
}

func (repo attendanceRepository) GetAttendance(ctx context.Context, studentID string, date time.Time) (attendance.Record, error) {
	const q = `SELECT * FROM attendance WHERE student_id = $1 AND date = $2`

	var row dbRecord
	if err := repo.db.GetContext(ctx, &row, q, studentID, date.Format(dateLayout)); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "finding attendance")
	}
	return row.model(), nil
}

// orderableColumns whitelists the fields callers may order listings by.
var orderableColumns = map[string]string{
	"time":   "a.time",
	"name":   "s.name",
	"class":  "s.class_label",
	"status": "a.status",
}

func (repo attendanceRepository) QueryAttendanceByDate(ctx context.Context, date time.Time, ordering []core.DBOrdering) ([]attendance.Entry, error) {
	q := `
		SELECT a.*, s.name AS student_name, s.class_label
		FROM attendance a
		JOIN student s ON a.student_id = s.id
		WHERE a.date = $1`

	orderBy := ""
	for _, ord := range ordering {
		col, ok := orderableColumns[ord.Field]
		if !ok {
			continue
		}
		if orderBy != "" {
			orderBy += ", "
		}
		orderBy += (core.DBOrdering{Field: col, Ascending: ord.Ascending}).String()
	}
	if orderBy == "" {
		orderBy = "a.time"
	}
	q += " ORDER BY " + orderBy

	var rows []dbEntry
	if err := repo.db.SelectContext(ctx, &rows, q, date.Format(dateLayout)); err != nil {
		return nil, errors.Wrap(err, "querying attendance by date")
	}
	return repo.entries(rows), nil
}

func (repo attendanceRepository) RecentActivity(ctx context.Context, date time.Time, limit int) ([]attendance.Entry, error) {
	const q = `
		SELECT a.*, s.name AS student_name, s.class_label
		FROM attendance a
		JOIN student s ON a.student_id = s.id
		WHERE a.date = $1
		ORDER BY a.time DESC
		LIMIT $2`

	var rows []dbEntry
	if err := repo.db.SelectContext(ctx, &rows, q, date.Format(dateLayout), limit); err != nil {
		return nil, errors.Wrap(err, "querying recent activity")
	}
	return repo.entries(rows), nil
}

func (repo attendanceRepository) StationStats(ctx context.Context, date time.Time) ([]attendance.StationStat, error) {
	const q = `
		SELECT COALESCE(NULLIF(station_tag, ''), 'manual') AS station_tag,
		       COUNT(*)  AS count,
		       MAX(time) AS last_scan
		FROM attendance
		WHERE date = $1
		GROUP BY 1
		ORDER BY 1`

	var rows []struct {
		StationTag string    `db:"station_tag"`
		Count      int       `db:"count"`
		LastScan   time.Time `db:"last_scan"`
	}
	if err := repo.db.SelectContext(ctx, &rows, q, date.Format(dateLayout)); err != nil {
		return nil, errors.Wrap(err, "querying station stats")
	}

	stats := make([]attendance.StationStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, attendance.StationStat{StationTag: row.StationTag, Count: row.Count, LastScan: row.LastScan})
	}
	return stats, nil
}

func (repo attendanceRepository) CountByStatus(ctx context.Context, date time.Time) (map[attendance.Status]int, error) {
	const q = `SELECT status, COUNT(*) AS count FROM attendance WHERE date = $1 GROUP BY status`

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := repo.db.SelectContext(ctx, &rows, q, date.Format(dateLayout)); err != nil {
		return nil, errors.Wrap(err, "counting attendance by status")
	}

	counts := make(map[attendance.Status]int, len(rows))
	for _, row := range rows {
		counts[attendance.Status(row.Status)] = row.Count
	}
	return counts, nil
}

func (repo attendanceRepository) entries(rows []dbEntry) []attendance.Entry {
	entries := make([]attendance.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.model())
	}
	return entries
}
