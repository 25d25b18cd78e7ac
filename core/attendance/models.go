package attendance

import (
	"time"

	"github.com/trezcool/mahudhurio/core"
)

// Status values follow the source system's vocabulary (kept verbatim since they
// are persisted and scanned devices in the field submit them as-is).
type Status string

const (
	StatusPresent Status = "Hadir"
	StatusExcused Status = "Izin"
	StatusSick    Status = "Sakit"
	StatusAbsent  Status = "Alpha" // absent without excuse
)

var Statuses = []Status{StatusPresent, StatusExcused, StatusSick, StatusAbsent}

func (s Status) IsValid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

type Method string

const (
	MethodScanner Method = "scanner"
	MethodManual  Method = "manual"
)

func (m Method) IsValid() bool { return m == MethodScanner || m == MethodManual }

// Record is one student's attendance for one calendar day.
// At most one Record exists per (StudentID, Date); once written it is never
// mutated or deleted here; corrections are an administrative concern.
type Record struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	NIS        string    `json:"nis"`
	Date       time.Time `json:"date"`        // calendar day, store-local midnight
	Time       time.Time `json:"time"`        // submission time, store-local
	Status     Status    `json:"status"`
	Method     Method    `json:"method"`
	StationTag string    `json:"station_tag"` // empty for manual entries
}

// Key identifies a Record's uniqueness slot.
func (r Record) Key() string { return r.StudentID + "/" + r.Date.Format(dateLayout) }

// Entry is a Record joined with roster display fields, for feeds and listings.
type Entry struct {
	Record
	StudentName string `json:"student_name"`
	ClassLabel  string `json:"class"`
}

// StationStat aggregates a day's submissions per scanning station.
type StationStat struct {
	StationTag string    `json:"station_tag"`
	Count      int       `json:"count"`
	LastScan   time.Time `json:"last_scan"`
}

// Stats are the dashboard numbers for one day.
type Stats struct {
	Date          time.Time `json:"date"`
	TotalStudents int       `json:"total_students"` // roster size
	Attended      int       `json:"attended"`       // records for the day, any status
	Present       int       `json:"present"`
	Excused       int       `json:"excused"`
	Sick          int       `json:"sick"`
	Absent        int       `json:"absent"`
}

// NewAttendance is a raw submission from a scanning station or the manual form.
type NewAttendance struct {
	Token      string `json:"token" validate:"required"`
	Status     Status `json:"status" validate:"required,attstatus"`
	Method     Method `json:"method" validate:"required,attmethod"`
	StationTag string `json:"station_tag"`
}

func (na *NewAttendance) Validate() error {
	na.Token = core.CleanString(na.Token)
	na.StationTag = core.CleanString(na.StationTag)
	return core.Validate.Struct(na)
}

const dateLayout = "2006-01-02"

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
