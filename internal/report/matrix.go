// Package report turns ledger rows into the per-student attendance matrix and
// the per-date roll-call summary. Everything here is pure; callers load data.
package report

import (
	"fmt"
	"sort"

	"rollcall/internal/roster"
)

const (
	Present       = "Present"
	Absent        = "Absent"
	NotApplicable = "N/A"
)

// Mark is one ledger observation of a student on a date.
type Mark struct {
	StudentID string
	Date      string
	Present   bool
}

// DayStatus is a student's outcome on one date.
type DayStatus struct {
	ClassDate string `json:"classDate"`
	Status    string `json:"status"`
}

// StudentHistory is one row of the attendance matrix.
type StudentHistory struct {
	Student    roster.Student `json:"student"`
	History    []DayStatus    `json:"history"`
	Percentage string         `json:"percentage"`
}

// Dates merges date lists into a sorted set.
func Dates(sources ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, src := range sources {
		for _, d := range src {
			if d == "" || seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// Matrix builds one history row per student over dates. A date with no record
// for the student is N/A, not Absent, and does not count towards the percentage.
func Matrix(students []roster.Student, marks []Mark, dates []string) []StudentHistory {
	// student -> date -> present?
	seen := make(map[string]map[string]bool)
	for _, m := range marks {
		byDate, ok := seen[m.StudentID]
		if !ok {
			byDate = make(map[string]bool)
			seen[m.StudentID] = byDate
		}
		byDate[m.Date] = byDate[m.Date] || m.Present
	}

	rows := make([]StudentHistory, 0, len(students))
	for _, st := range students {
		history := make([]DayStatus, 0, len(dates))
		present, total := 0, 0
		for _, d := range dates {
			status := NotApplicable
			if wasPresent, ok := seen[st.ID][d]; ok {
				total++
				status = Absent
				if wasPresent {
					present++
					status = Present
				}
			}
			history = append(history, DayStatus{ClassDate: d, Status: status})
		}
		rows = append(rows, StudentHistory{
			Student:    st,
			History:    history,
			Percentage: Percentage(present, total),
		})
	}
	return rows
}

// Percentage formats present/total to one decimal; zero total yields "0.0".
func Percentage(present, total int) string {
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(present)/float64(total)*100)
}
