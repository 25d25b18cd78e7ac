package sqliterepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

const dateLayout = "2006-01-02"

type attendanceRepository struct {
	db *sql.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sql.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

const recordColumns = "id, student_id, nis, date, time, status, method, station_tag"

func scanRecord(row interface{ Scan(...interface{}) error }, extra ...interface{}) (attendance.Record, error) {
	var rec attendance.Record
	var date string
	dest := []interface{}{&rec.ID, &rec.StudentID, &rec.NIS, &date, &rec.Time, &rec.Status, &rec.Method, &rec.StationTag}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return attendance.Record{}, err
	}

	day, err := time.ParseInLocation(dateLayout, date, core.Conf.Location())
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "parsing attendance date")
	}
	rec.Date = day
	return rec, nil
}

// CreateAttendance inserts rec unless the (student, day) slot is taken. The
// conditional insert rides on the table's uniqueness constraint, same as the
// postgres adapter.
func (repo attendanceRepository) CreateAttendance(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	const q = `INSERT OR IGNORE INTO attendance (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := repo.db.ExecContext(ctx, q,
		rec.ID, rec.StudentID, rec.NIS, rec.Date.Format(dateLayout), rec.Time,
		string(rec.Status), string(rec.Method), rec.StationTag,
	)
	if err != nil {
		if sqliteErr, ok := errors.Cause(err).(sqlite3.Error); ok && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
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
	const q = `SELECT ` + recordColumns + ` FROM attendance WHERE student_id = ? AND date = ?`

	rec, err := scanRecord(repo.db.QueryRowContext(ctx, q, studentID, date.Format(dateLayout)))
	if err != nil {
		if err == sql.ErrNoRows {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "finding attendance")
	}
	return rec, nil
}

// orderableColumns whitelists the fields callers may order listings by.
var orderableColumns = map[string]string{
	"time":   "a.time",
	"name":   "s.name",
	"class":  "s.class_label",
	"status": "a.status",
}

const entryQuery = `
	SELECT a.id, a.student_id, a.nis, a.date, a.time, a.status, a.method, a.station_tag,
	       s.name, s.class_label
	FROM attendance a
	JOIN student s ON a.student_id = s.id
	WHERE a.date = ?`

func (repo attendanceRepository) queryEntries(ctx context.Context, q string, args ...interface{}) ([]attendance.Entry, error) {
	rows, err := repo.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []attendance.Entry
	for rows.Next() {
		var entry attendance.Entry
		rec, err := scanRecord(rows, &entry.StudentName, &entry.ClassLabel)
		if err != nil {
			return nil, errors.Wrap(err, "scanning attendance entry")
		}
		entry.Record = rec
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (repo attendanceRepository) QueryAttendanceByDate(ctx context.Context, date time.Time, ordering []core.DBOrdering) ([]attendance.Entry, error) {
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

	entries, err := repo.queryEntries(ctx, entryQuery+" ORDER BY "+orderBy, date.Format(dateLayout))
	return entries, errors.Wrap(err, "querying attendance by date")
}

func (repo attendanceRepository) RecentActivity(ctx context.Context, date time.Time, limit int) ([]attendance.Entry, error) {
	entries, err := repo.queryEntries(ctx, entryQuery+" ORDER BY a.time DESC LIMIT ?", date.Format(dateLayout), limit)
	return entries, errors.Wrap(err, "querying recent activity")
}

func (repo attendanceRepository) StationStats(ctx context.Context, date time.Time) ([]attendance.StationStat, error) {
	const q = `
		SELECT CASE WHEN station_tag = '' THEN 'manual' ELSE station_tag END AS station_tag,
		       COUNT(*),
		       MAX(time)
		FROM attendance
		WHERE date = ?
		GROUP BY 1
		ORDER BY 1`

	rows, err := repo.db.QueryContext(ctx, q, date.Format(dateLayout))
	if err != nil {
		return nil, errors.Wrap(err, "querying station stats")
	}
	defer func() { _ = rows.Close() }()

	var stats []attendance.StationStat
	for rows.Next() {
		var stat attendance.StationStat
		// MAX(time) comes back untyped; parse the driver's timestamp format
		var lastScan string
		if err := rows.Scan(&stat.StationTag, &stat.Count, &lastScan); err != nil {
			return nil, errors.Wrap(err, "scanning station stat")
		}
		t, err := time.Parse("2006-01-02 15:04:05.999999999-07:00", lastScan)
		if err != nil {
			return nil, errors.Wrap(err, "parsing last scan time")
		}
		stat.LastScan = t
		stats = append(stats, stat)
	}
	return stats, errors.Wrap(rows.Err(), "querying station stats")
}

func (repo attendanceRepository) CountByStatus(ctx context.Context, date time.Time) (map[attendance.Status]int, error) {
	const q = `SELECT status, COUNT(*) FROM attendance WHERE date = ? GROUP BY status`

	rows, err := repo.db.QueryContext(ctx, q, date.Format(dateLayout))
	if err != nil {
		return nil, errors.Wrap(err, "counting attendance by status")
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[attendance.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "scanning status count")
		}
		counts[attendance.Status(status)] = count
	}
	return counts, errors.Wrap(rows.Err(), "counting attendance by status")
}
