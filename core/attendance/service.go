package attendance

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

var (
	// errors
	ErrNotFound = errors.New("attendance record not found")
	// ErrRecordExists is the store's duplicate-key signal for the (student, day)
	// uniqueness constraint. It never reaches callers of Record: the service
	// translates it into an AlreadyRecorded outcome carrying the prior record.
	ErrRecordExists = errors.New("attendance already recorded for this day")

	nowFunc = time.Now // mockable
)

type Outcome string

const (
	OutcomeRecorded        Outcome = "recorded"
	OutcomeAlreadyRecorded Outcome = "already_recorded"
)

// Result is the terminal outcome of a submission. On OutcomeAlreadyRecorded,
// Record is the pre-existing record, unchanged; the new submission is
// discarded, not merged.
type Result struct {
	Outcome Outcome         `json:"outcome"`
	Record  Record          `json:"record"`
	Student student.Student `json:"student"`
}

// Activity is the read projection consumed by the live monitor. It is derived
// from the store and may trail in-flight writes; it never mutates state.
type Activity struct {
	Date     time.Time     `json:"date"`
	Entries  []Entry       `json:"activity"`
	Stations []StationStat `json:"stations"`
}

type (
	// Repository is the attendance store contract. CreateAttendance is the only
	// write and must be atomic with respect to the (StudentID, Date) uniqueness
	// constraint: implementations report a collision as ErrRecordExists instead
	// of inserting a second record. All mutual exclusion lives behind this
	// interface; the service holds no locks of its own.
	Repository interface {
		CreateAttendance(ctx context.Context, rec Record) (Record, error)
		GetAttendance(ctx context.Context, studentID string, date time.Time) (Record, error)
		QueryAttendanceByDate(ctx context.Context, date time.Time, ordering []core.DBOrdering) ([]Entry, error)
		RecentActivity(ctx context.Context, date time.Time, limit int) ([]Entry, error)
		StationStats(ctx context.Context, date time.Time) ([]StationStat, error)
		CountByStatus(ctx context.Context, date time.Time) (map[Status]int, error)
	}

	Service interface {
		Record(ctx context.Context, na NewAttendance) (Result, error)
		Get(ctx context.Context, studentID string, date time.Time) (Record, error)
		ListByDate(ctx context.Context, date time.Time, ordering ...core.DBOrdering) ([]Entry, error)
		Activity(ctx context.Context, date time.Time, limit int) (Activity, error)
		Stats(ctx context.Context, date time.Time) (Stats, error)
		Today() time.Time
		SendDailySummary(ctx context.Context, date time.Time) error
	}

	service struct {
		repo     Repository
		students student.Service
		mailSvc  core.EmailService
	}
)

var _ Service = (*service)(nil)

const defaultActivityLimit = 20

func NewService(repo Repository, students student.Service, mailSvc core.EmailService) Service {
	return &service{
		repo:     repo,
		students: students,
		mailSvc:  mailSvc,
	}
}

// Today is the current calendar day in the store-local timezone.
func (svc *service) Today() time.Time {
	return DateOf(nowFunc().In(core.Conf.Location()))
}

// Record resolves the submitted token and commits at most one attendance record
// for the student's current day. The existence check and the insert are a single
// atomic store operation; two submissions racing for the same (student, day) key
// yield exactly one OutcomeRecorded and one OutcomeAlreadyRecorded. A retry after
// a lost response lands in the AlreadyRecorded branch and returns the committed
// record, so retries are safe by construction.
func (svc *service) Record(ctx context.Context, na NewAttendance) (Result, error) {
	// reject malformed input before any store interaction
	if err := na.Validate(); err != nil {
		return Result{}, err
	}

	std, err := svc.students.Resolve(ctx, na.Token)
	if err != nil {
		return Result{}, err
	}

	now := nowFunc().In(core.Conf.Location())
	rec := Record{
		ID:         uuid.New().String(),
		StudentID:  std.ID,
		NIS:        std.NIS,
		Date:       DateOf(now),
		Time:       now,
		Status:     na.Status,
		Method:     na.Method,
		StationTag: na.StationTag,
	}

	created, err := svc.repo.CreateAttendance(ctx, rec)
	if err != nil {
		if errors.Cause(err) != ErrRecordExists {
			return Result{}, errors.Wrap(err, "inserting attendance")
		}
		// lost the (student, day) slot to an earlier submission; fetch the
		// winning record for the caller to display
		existing, err := svc.repo.GetAttendance(ctx, std.ID, rec.Date)
		if err != nil {
			return Result{}, errors.Wrap(err, "fetching existing attendance")
		}
		return Result{Outcome: OutcomeAlreadyRecorded, Record: existing, Student: std}, nil
	}

	return Result{Outcome: OutcomeRecorded, Record: created, Student: std}, nil
}

func (svc *service) Get(ctx context.Context, studentID string, date time.Time) (Record, error) {
	return svc.repo.GetAttendance(ctx, studentID, DateOf(date))
}

func (svc *service) ListByDate(ctx context.Context, date time.Time, ordering ...core.DBOrdering) ([]Entry, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "time", Ascending: true}}
	}
	return svc.repo.QueryAttendanceByDate(ctx, DateOf(date), ordering)
}

func (svc *service) Activity(ctx context.Context, date time.Time, limit int) (Activity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	date = DateOf(date)

	entries, err := svc.repo.RecentActivity(ctx, date, limit)
	if err != nil {
		return Activity{}, errors.Wrap(err, "querying recent activity")
	}
	stations, err := svc.repo.StationStats(ctx, date)
	if err != nil {
		return Activity{}, errors.Wrap(err, "querying station stats")
	}
	return Activity{Date: date, Entries: entries, Stations: stations}, nil
}

func (svc *service) Stats(ctx context.Context, date time.Time) (Stats, error) {
	date = DateOf(date)

	total, err := svc.students.Count(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting roster")
	}
	counts, err := svc.repo.CountByStatus(ctx, date)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting attendance by status")
	}

	stats := Stats{
		Date:          date,
		TotalStudents: total,
		Present:       counts[StatusPresent],
		Excused:       counts[StatusExcused],
		Sick:          counts[StatusSick],
		Absent:        counts[StatusAbsent],
	}
	for _, n := range counts {
		stats.Attended += n
	}
	return stats, nil
}

// SendDailySummary emails the day's numbers to the configured address.
// A missing address disables the summary.
func (svc *service) SendDailySummary(ctx context.Context, date time.Time) error {
	if core.Conf.SummaryEmail == "" {
		return nil
	}

	stats, err := svc.Stats(ctx, date)
	if err != nil {
		return errors.Wrap(err, "computing daily stats")
	}

	day := stats.Date.Format("2006-01-02")
	body := fmt.Sprintf(
		"Attendance summary for %s\n\n"+
			"Roster:   %d students\n"+
			"Attended: %d\n\n"+
			"%s: %d\n%s: %d\n%s: %d\n%s: %d\n",
		day,
		stats.TotalStudents, stats.Attended,
		StatusPresent, stats.Present,
		StatusExcused, stats.Excused,
		StatusSick, stats.Sick,
		StatusAbsent, stats.Absent,
	)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: core.Conf.SummaryEmail}},
		Subject: "Daily attendance summary - " + day,
		BodyStr: body,
	})
	return nil
}
