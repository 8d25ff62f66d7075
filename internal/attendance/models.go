package attendance

import "time"

// Status is the presence state of one attendance record.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// Valid reports whether s is one of the two known statuses.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// Schedule is one class session. It is deleted ("retired") once every expected
// staff member has accounted for it or once it has expired.
type Schedule struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	StaffIDs  []string  `json:"staffIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// Record is the ledger row for one (student, staff, schedule, date). Admin
// overrides carry an empty StaffID.
type Record struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"studentId"`
	StaffID    string    `json:"staffId,omitempty"`
	ScheduleID string    `json:"scheduleId,omitempty"`
	ClassDate  string    `json:"classDate"`
	Status     Status    `json:"status"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// key is the uniqueness key of a record.
func (r Record) key() recordKey {
	return recordKey{r.StudentID, r.StaffID, r.ScheduleID, r.ClassDate}
}

type recordKey struct {
	studentID, staffID, scheduleID, date string
}

// History is the durable per-(schedule, staff) outcome that survives
// schedule retirement.
type History struct {
	ID              string    `json:"id"`
	ScheduleID      string    `json:"scheduleId"`
	ClassDate       string    `json:"classDate"`
	StaffID         string    `json:"staffId"`
	StartTime       string    `json:"startTime"`
	EndTime         string    `json:"endTime"`
	AttendanceTaken bool      `json:"attendanceTaken"`
	TotalPresent    int       `json:"totalPresent"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PresentFilter narrows PresentStudentIDs; empty fields match everything.
type PresentFilter struct {
	StaffID    string
	ScheduleID string
}
