package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

// CreateAttendance holds the table lock across the existence check and the
// insert, which makes the pair atomic for everything sharing this process;
// the in-memory equivalent of the SQL adapters' uniqueness constraint.
func (repo *attendanceRepository) CreateAttendance(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	tbl := repo.db.attendance
	tbl.Lock()
	defer tbl.Unlock()

	key := rec.Key()
	if _, ok := tbl.table[key]; ok {
		return attendance.Record{}, attendance.ErrRecordExists
	}
	tbl.table[key] = &rec
	return rec, nil
}

func (repo *attendanceRepository) GetAttendance(ctx context.Context, studentID string, date time.Time) (attendance.Record, error) {
	tbl := repo.db.attendance
	tbl.RLock()
	defer tbl.RUnlock()

	key := (attendance.Record{StudentID: studentID, Date: date}).Key()
	if rec, ok := tbl.table[key]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) byDate(date time.Time) []attendance.Record {
	var records []attendance.Record
	for _, rec := range repo.db.attendance.table {
		if rec.Date.Equal(date) {
			records = append(records, *rec)
		}
	}
	return records
}

func (repo *attendanceRepository) entries(records []attendance.Record) []attendance.Entry {
	repo.db.student.RLock()
	defer repo.db.student.RUnlock()

	entries := make([]attendance.Entry, 0, len(records))
	for _, rec := range records {
		entry := attendance.Entry{Record: rec}
		if std, ok := repo.db.student.table[rec.StudentID]; ok {
			entry.StudentName = std.Name
			entry.ClassLabel = std.ClassLabel
		}
		entries = append(entries, entry)
	}
	return entries
}

func (repo *attendanceRepository) QueryAttendanceByDate(ctx context.Context, date time.Time, ordering []core.DBOrdering) ([]attendance.Entry, error) {
	repo.db.attendance.RLock()
	records := repo.byDate(date)
	repo.db.attendance.RUnlock()

	entries := repo.entries(records)

	// only "time" ordering is needed by the in-memory double
	asc := true
	for _, ord := range ordering {
		if ord.Field == "time" {
			asc = ord.Ascending
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if asc {
			return entries[i].Time.Before(entries[j].Time)
		}
		return entries[j].Time.Before(entries[i].Time)
	})
	return entries, nil
}

func (repo *attendanceRepository) RecentActivity(ctx context.Context, date time.Time, limit int) ([]attendance.Entry, error) {
	entries, err := repo.QueryAttendanceByDate(ctx, date, []core.DBOrdering{{Field: "time", Ascending: false}})
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (repo *attendanceRepository) StationStats(ctx context.Context, date time.Time) ([]attendance.StationStat, error) {
	repo.db.attendance.RLock()
	records := repo.byDate(date)
	repo.db.attendance.RUnlock()

	byStation := make(map[string]*attendance.StationStat)
	for _, rec := range records {
		tag := rec.StationTag
		if tag == "" {
			tag = "manual"
		}
		stat, ok := byStation[tag]
		if !ok {
			stat = &attendance.StationStat{StationTag: tag}
			byStation[tag] = stat
		}
		stat.Count++
		if rec.Time.After(stat.LastScan) {
			stat.LastScan = rec.Time
		}
	}

	stats := make([]attendance.StationStat, 0, len(byStation))
	for _, stat := range byStation {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].StationTag < stats[j].StationTag })
	return stats, nil
}

func (repo *attendanceRepository) CountByStatus(ctx context.Context, date time.Time) (map[attendance.Status]int, error) {
	repo.db.attendance.RLock()
	records := repo.byDate(date)
	repo.db.attendance.RUnlock()

	counts := make(map[attendance.Status]int)
	for _, rec := range records {
		counts[rec.Status]++
	}
	return counts, nil
}
