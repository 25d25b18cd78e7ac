package dummydb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
)

func seedStudent(t *testing.T, db *DB, id, nis, name, class string) student.Student {
	t.Helper()
	std, err := NewStudentRepository(db).CreateStudent(context.Background(), student.Student{
		ID: id, NIS: nis, Name: name, ClassLabel: class,
	})
	if err != nil {
		t.Fatalf("seedStudent() failed: %v", err)
	}
	return std
}

func Test_attendanceRepository_CreateAttendance_racesForOneSlot(t *testing.T) {
	db, _ := Open()
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	day := time.Date(2021, 3, 8, 0, 0, 0, 0, time.Local)

	const K = 100
	errs := make(chan error, K)
	var wg sync.WaitGroup
	wg.Add(K)
	for i := 0; i < K; i++ {
		rec := attendance.Record{
			ID:        fmt.Sprintf("rec-%d", i),
			StudentID: "sid-1",
			Date:      day,
			Time:      day.Add(7 * time.Hour),
			Status:    attendance.StatusPresent,
			Method:    attendance.MethodScanner,
		}
		go func() {
			defer wg.Done()
			_, err := repo.CreateAttendance(ctx, rec)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch err {
		case nil:
			ok++
		case attendance.ErrRecordExists:
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, K-1, dup)

	// a different student or a different day is a different slot
	_, err := repo.CreateAttendance(ctx, attendance.Record{ID: "rec-x", StudentID: "sid-2", Date: day})
	assert.NoError(t, err)
	_, err = repo.CreateAttendance(ctx, attendance.Record{ID: "rec-y", StudentID: "sid-1", Date: day.Add(24 * time.Hour)})
	assert.NoError(t, err)
}

func Test_attendanceRepository_GetAttendance(t *testing.T) {
	db, _ := Open()
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	day := time.Date(2021, 3, 8, 0, 0, 0, 0, time.Local)
	rec := attendance.Record{ID: "rec-1", StudentID: "sid-1", Date: day, Status: attendance.StatusPresent}
	_, err := repo.CreateAttendance(ctx, rec)
	assert.NoError(t, err)

	got, err := repo.GetAttendance(ctx, "sid-1", day)
	assert.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = repo.GetAttendance(ctx, "sid-1", day.Add(24*time.Hour))
	assert.Equal(t, attendance.ErrNotFound, err)
}

func Test_attendanceRepository_feeds(t *testing.T) {
	db, _ := Open()
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	amina := seedStudent(t, db, "sid-1", "1001", "Amina", "X IPA 1")
	baraka := seedStudent(t, db, "sid-2", "1002", "Baraka", "X IPA 1")
	chiku := seedStudent(t, db, "sid-3", "1003", "Chiku", "XI IPS 2")

	day := time.Date(2021, 3, 8, 0, 0, 0, 0, time.Local)
	at := func(hour, min int) time.Time { return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute) }

	seed := []attendance.Record{
		{ID: "rec-1", StudentID: amina.ID, Date: day, Time: at(7, 0), Status: attendance.StatusPresent, Method: attendance.MethodScanner, StationTag: "gate-1"},
		{ID: "rec-2", StudentID: baraka.ID, Date: day, Time: at(7, 2), Status: attendance.StatusPresent, Method: attendance.MethodScanner, StationTag: "gate-2"},
		{ID: "rec-3", StudentID: chiku.ID, Date: day, Time: at(7, 5), Status: attendance.StatusSick, Method: attendance.MethodManual},
	}
	for _, rec := range seed {
		if _, err := repo.CreateAttendance(ctx, rec); err != nil {
			t.Fatalf("seeding failed: %v", err)
		}
	}

	t.Run("QueryAttendanceByDate joins roster fields", func(t *testing.T) {
		entries, err := repo.QueryAttendanceByDate(ctx, day, nil)
		assert.NoError(t, err)
		assert.Len(t, entries, 3)
		assert.Equal(t, "Amina", entries[0].StudentName)
		assert.Equal(t, "X IPA 1", entries[0].ClassLabel)
		assert.Equal(t, "Chiku", entries[2].StudentName)
	})

	t.Run("RecentActivity is newest first and capped", func(t *testing.T) {
		entries, err := repo.RecentActivity(ctx, day, 2)
		assert.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.Equal(t, "rec-3", entries[0].ID)
		assert.Equal(t, "rec-2", entries[1].ID)
	})

	t.Run("StationStats groups manual entries", func(t *testing.T) {
		stats, err := repo.StationStats(ctx, day)
		assert.NoError(t, err)
		assert.Equal(t, []attendance.StationStat{
			{StationTag: "gate-1", Count: 1, LastScan: at(7, 0)},
			{StationTag: "gate-2", Count: 1, LastScan: at(7, 2)},
			{StationTag: "manual", Count: 1, LastScan: at(7, 5)},
		}, stats)
	})

	t.Run("CountByStatus", func(t *testing.T) {
		counts, err := repo.CountByStatus(ctx, day)
		assert.NoError(t, err)
		assert.Equal(t, map[attendance.Status]int{
			attendance.StatusPresent: 2,
			attendance.StatusSick:    1,
		}, counts)
	})
}
