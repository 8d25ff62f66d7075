// Package roster exposes read-only lookups over the student and staff
// collections. Roster maintenance (CRUD, import, login) lives elsewhere.
package roster

import (
	"context"
)

// Student is a roster entry referenced by attendance records.
type Student struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Rank         string `json:"rank"`
	RollNo       string `json:"rollNo"`
	RegNo        string `json:"regNo"`
	Gender       string `json:"gender"`
	Year         string `json:"year"`
	ClassSection string `json:"classSection"`
}

// Staff is a member of staff allowed to submit rolls. PIN is never serialized.
type Staff struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	RegNo    string `json:"regNo"`
	PIN      string `json:"-"`
}

// Directory is the lookup surface the attendance core consumes.
type Directory interface {
	StudentIDs(ctx context.Context) ([]string, error)
	// Students lists students ordered by name; an empty or "all" classSection
	// matches every class, otherwise the match is case-insensitive.
	Students(ctx context.Context, classSection string) ([]Student, error)
	StudentsByIDs(ctx context.Context, ids []string) ([]Student, error)
	// Staff returns nil, nil when no staff member has the id.
	Staff(ctx context.Context, id string) (*Staff, error)
	StaffIDs(ctx context.Context) ([]string, error)
}

func matchAllClasses(classSection string) bool {
	return classSection == "" || classSection == "all"
}
