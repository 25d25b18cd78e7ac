package attendance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
)

// fakeRepo mirrors the store contract: the existence check and the insert
// happen under one lock, a collision comes back as ErrRecordExists.
type fakeRepo struct {
	mu    sync.RWMutex
	recs  map[string]Record
	names map[string]string // studentID -> display name
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{recs: make(map[string]Record), names: make(map[string]string)}
}

func (repo *fakeRepo) CreateAttendance(ctx context.Context, rec Record) (Record, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.recs[rec.Key()]; ok {
		return Record{}, ErrRecordExists
	}
	repo.recs[rec.Key()] = rec
	return rec, nil
}

func (repo *fakeRepo) GetAttendance(ctx context.Context, studentID string, date time.Time) (Record, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	key := Record{StudentID: studentID, Date: DateOf(date)}.Key()
	if rec, ok := repo.recs[key]; ok {
		return rec, nil
	}
	return Record{}, ErrNotFound
}

func (repo *fakeRepo) byDate(date time.Time) []Entry {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	var entries []Entry
	for _, rec := range repo.recs {
		if rec.Date.Equal(date) {
			entries = append(entries, Entry{Record: rec, StudentName: repo.names[rec.StudentID]})
		}
	}
	return entries
}

func (repo *fakeRepo) QueryAttendanceByDate(ctx context.Context, date time.Time, ordering []core.DBOrdering) ([]Entry, error) {
	entries := repo.byDate(date)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Time.Before(entries[j].Time) })
	return entries, nil
}

func (repo *fakeRepo) RecentActivity(ctx context.Context, date time.Time, limit int) ([]Entry, error) {
	entries := repo.byDate(date)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Time.After(entries[j].Time) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (repo *fakeRepo) StationStats(ctx context.Context, date time.Time) ([]StationStat, error) {
	byTag := make(map[string]StationStat)
	for _, entry := range repo.byDate(date) {
		tag := entry.StationTag
		if tag == "" {
			tag = "manual"
		}
		stat := byTag[tag]
		stat.StationTag = tag
		stat.Count++
		if entry.Time.After(stat.LastScan) {
			stat.LastScan = entry.Time
		}
		byTag[tag] = stat
	}
	stats := make([]StationStat, 0, len(byTag))
	for _, stat := range byTag {
		stats = append(stats, stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].StationTag < stats[j].StationTag })
	return stats, nil
}

func (repo *fakeRepo) CountByStatus(ctx context.Context, date time.Time) (map[Status]int, error) {
	counts := make(map[Status]int)
	for _, entry := range repo.byDate(date) {
		counts[entry.Status]++
	}
	return counts, nil
}

type fakeStudentRepo struct {
	students []student.Student
}

var _ student.Repository = (*fakeStudentRepo)(nil)

func (repo *fakeStudentRepo) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	repo.students = append(repo.students, std)
	return std, nil
}

func (repo *fakeStudentRepo) QueryAllStudents(ctx context.Context) ([]student.Student, error) {
	return repo.students, nil
}

func (repo *fakeStudentRepo) CountStudents(ctx context.Context) (int, error) {
	return len(repo.students), nil
}

func (repo *fakeStudentRepo) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	for _, std := range repo.students {
		if std.ID == id {
			return std, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *fakeStudentRepo) FindStudentsByIdentifier(ctx context.Context, ident string) ([]student.Student, error) {
	var matches []student.Student
	for _, std := range repo.students {
		if std.NIS == ident || (std.NISN != "" && std.NISN == ident) {
			matches = append(matches, std)
		}
	}
	return matches, nil
}

var (
	amina  = student.Student{ID: "sid-1", NIS: "1001", NISN: "0012345678", Name: "Amina", ClassLabel: "X IPA 1"}
	baraka = student.Student{ID: "sid-2", NIS: "1002", Name: "Baraka", ClassLabel: "X IPA 1"}
	// roster fault: NIS collides with amina's NISN
	chiku = student.Student{ID: "sid-3", NIS: "0012345678", Name: "Chiku"}
)

func setup(t *testing.T) (Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	stdRepo := &fakeStudentRepo{students: []student.Student{amina, baraka, chiku}}
	for _, std := range stdRepo.students {
		repo.names[std.ID] = std.Name
	}
	svc := NewService(repo, student.NewService(stdRepo), emailsvc.NewConsoleServiceMock())
	return svc, repo
}

func mockNow(t *testing.T, now time.Time) {
	t.Helper()
	orig := nowFunc
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = orig })
}

func Test_service_Record(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	now := time.Date(2021, 3, 8, 7, 5, 0, 0, core.Conf.Location())
	mockNow(t, now)

	res, err := svc.Record(ctx, NewAttendance{Token: "1001", Status: StatusPresent, Method: MethodScanner, StationTag: "gate-1"})
	assert.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	assert.Equal(t, amina, res.Student)
	assert.Equal(t, amina.ID, res.Record.StudentID)
	assert.Equal(t, amina.NIS, res.Record.NIS)
	assert.Equal(t, DateOf(now), res.Record.Date)
	assert.Equal(t, now, res.Record.Time)
	assert.NotEmpty(t, res.Record.ID)
	assert.Len(t, repo.recs, 1)
	firstID := res.Record.ID

	t.Run("second submission same day leaves the record unchanged", func(t *testing.T) {
		mockNow(t, now.Add(time.Minute))
		res, err := svc.Record(ctx, NewAttendance{Token: "1001", Status: StatusSick, Method: MethodManual})
		assert.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyRecorded, res.Outcome)
		assert.Equal(t, firstID, res.Record.ID)
		assert.Equal(t, StatusPresent, res.Record.Status) // not overwritten
		assert.Equal(t, now, res.Record.Time)
		assert.Len(t, repo.recs, 1)
	})

	t.Run("retry of the same submission is safe", func(t *testing.T) {
		res, err := svc.Record(ctx, NewAttendance{Token: "1001", Status: StatusPresent, Method: MethodScanner, StationTag: "gate-1"})
		assert.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyRecorded, res.Outcome)
		assert.Equal(t, firstID, res.Record.ID)
	})

	t.Run("another student fills their own slot", func(t *testing.T) {
		res, err := svc.Record(ctx, NewAttendance{Token: "1002", Status: StatusPresent, Method: MethodScanner, StationTag: "gate-2"})
		assert.NoError(t, err)
		assert.Equal(t, OutcomeRecorded, res.Outcome)
		assert.Equal(t, baraka.ID, res.Record.StudentID)
	})

	t.Run("next day opens a new slot", func(t *testing.T) {
		mockNow(t, now.Add(24*time.Hour))
		res, err := svc.Record(ctx, NewAttendance{Token: "1001", Status: StatusPresent, Method: MethodScanner, StationTag: "gate-1"})
		assert.NoError(t, err)
		assert.Equal(t, OutcomeRecorded, res.Outcome)
		assert.NotEqual(t, firstID, res.Record.ID)
	})
}

func Test_service_Record_rejections(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		na      NewAttendance
		wantErr error
	}{
		{name: "unknown token", na: NewAttendance{Token: "X999", Status: StatusPresent, Method: MethodScanner}, wantErr: student.ErrNotFound},
		{name: "ambiguous token", na: NewAttendance{Token: "0012345678", Status: StatusPresent, Method: MethodScanner}, wantErr: student.ErrAmbiguousIdentity},
		{name: "missing token", na: NewAttendance{Status: StatusPresent, Method: MethodScanner}},
		{name: "unknown status", na: NewAttendance{Token: "1001", Status: "Terlambat", Method: MethodScanner}},
		{name: "missing status", na: NewAttendance{Token: "1001", Method: MethodScanner}},
		{name: "unknown method", na: NewAttendance{Token: "1001", Status: StatusPresent, Method: "telepathy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tt.na)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
			} else {
				assert.Error(t, err)
			}
			// a rejected submission never reaches the store
			assert.Len(t, repo.recs, 0)
		})
	}
}

// Racing submissions for the same (student, day) slot: exactly one wins, every
// loser observes the winner's committed record.
func Test_service_Record_concurrent(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	const K = 64
	results := make(chan Result, K)
	var wg sync.WaitGroup
	wg.Add(K)
	for i := 0; i < K; i++ {
		go func() {
			defer wg.Done()
			res, err := svc.Record(ctx, NewAttendance{Token: "1001", Status: StatusPresent, Method: MethodScanner, StationTag: "gate-1"})
			if err != nil {
				t.Errorf("Record() failed: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	var recorded, already int
	ids := make(map[string]struct{})
	for res := range results {
		switch res.Outcome {
		case OutcomeRecorded:
			recorded++
		case OutcomeAlreadyRecorded:
			already++
		}
		ids[res.Record.ID] = struct{}{}
	}
	assert.Equal(t, 1, recorded)
	assert.Equal(t, K-1, already)
	assert.Len(t, ids, 1) // everyone saw the same committed record
	assert.Len(t, repo.recs, 1)
}

func Test_service_Activity(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	base := time.Date(2021, 3, 8, 7, 0, 0, 0, core.Conf.Location())

	mockNow(t, base)
	_, err := svc.Record(ctx, NewAttendance{Token: "1001", Status: StatusPresent, Method: MethodScanner, StationTag: "gate-1"})
	assert.NoError(t, err)

	mockNow(t, base.Add(time.Minute))
	_, err = svc.Record(ctx, NewAttendance{Token: "1002", Status: StatusSick, Method: MethodManual})
	assert.NoError(t, err)

	act, err := svc.Activity(ctx, base, 0)
	assert.NoError(t, err)
	assert.Equal(t, DateOf(base), act.Date)

	// newest first
	assert.Len(t, act.Entries, 2)
	assert.Equal(t, "Baraka", act.Entries[0].StudentName)
	assert.Equal(t, "Amina", act.Entries[1].StudentName)

	// manual entries group under the "manual" pseudo station
	assert.Equal(t, []StationStat{
		{StationTag: "gate-1", Count: 1, LastScan: base},
		{StationTag: "manual", Count: 1, LastScan: base.Add(time.Minute)},
	}, act.Stations)

	t.Run("limit caps the feed", func(t *testing.T) {
		act, err := svc.Activity(ctx, base, 1)
		assert.NoError(t, err)
		assert.Len(t, act.Entries, 1)
		assert.Equal(t, "Baraka", act.Entries[0].StudentName)
	})

	t.Run("other days are excluded", func(t *testing.T) {
		act, err := svc.Activity(ctx, base.Add(24*time.Hour), 0)
		assert.NoError(t, err)
		assert.Len(t, act.Entries, 0)
	})
}

func Test_service_Stats(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	now := time.Date(2021, 3, 8, 7, 0, 0, 0, core.Conf.Location())
	mockNow(t, now)

	_, err := svc.Record(ctx, NewAttendance{Token: "1001", Status: StatusPresent, Method: MethodScanner, StationTag: "gate-1"})
	assert.NoError(t, err)
	_, err = svc.Record(ctx, NewAttendance{Token: "1002", Status: StatusSick, Method: MethodManual})
	assert.NoError(t, err)

	stats, err := svc.Stats(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, Stats{
		Date:          DateOf(now),
		TotalStudents: 3,
		Attended:      2,
		Present:       1,
		Sick:          1,
	}, stats)
}

func Test_service_SendDailySummary(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	now := time.Date(2021, 3, 8, 7, 0, 0, 0, core.Conf.Location())
	mockNow(t, now)

	_, err := svc.Record(ctx, NewAttendance{Token: "1001", Status: StatusPresent, Method: MethodScanner, StationTag: "gate-1"})
	assert.NoError(t, err)

	origSummaryEmail := core.Conf.SummaryEmail
	t.Cleanup(func() { core.Conf.SummaryEmail = origSummaryEmail })

	t.Run("no recipient configured", func(t *testing.T) {
		core.Conf.SummaryEmail = ""
		sent := len(emailsvc.SentMessages)
		assert.NoError(t, svc.SendDailySummary(ctx, now))
		assert.Len(t, emailsvc.SentMessages, sent)
	})

	core.Conf.SummaryEmail = "head@school.test"
	assert.NoError(t, svc.SendDailySummary(ctx, now))

	msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	assert.Equal(t, "head@school.test", msg.To[0].Address)
	assert.Contains(t, msg.Subject, "2021-03-08")
	assert.True(t, strings.Contains(msg.TextContent, string(StatusPresent)+": 1"))
}
