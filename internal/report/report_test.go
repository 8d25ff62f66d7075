package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/roster"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		present, total int
		want           string
	}{
		{3, 4, "75.0"},
		{0, 0, "0.0"},
		{0, 3, "0.0"},
		{1, 3, "33.3"},
		{2, 3, "66.7"},
		{5, 5, "100.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.present, tt.total))
	}
}

func TestDatesUnionSorted(t *testing.T) {
	got := Dates(
		[]string{"2024-03-02", "2024-03-01"},
		[]string{"2024-03-03", ""},
		[]string{"2024-03-01", "2024-02-28"},
	)
	assert.Equal(t, []string{"2024-02-28", "2024-03-01", "2024-03-02", "2024-03-03"}, got)
}

func TestMatrix(t *testing.T) {
	students := []roster.Student{{ID: "a", Name: "Anu"}, {ID: "b", Name: "Bala"}}
	dates := []string{"d1", "d2", "d3", "d4", "d5"}
	marks := []Mark{
		{StudentID: "a", Date: "d1", Present: true},
		{StudentID: "a", Date: "d2", Present: true},
		{StudentID: "a", Date: "d3", Present: true},
		{StudentID: "a", Date: "d4", Present: false},
		// one staff saw the student, another did not: present wins
		{StudentID: "a", Date: "d4", Present: false},
		{StudentID: "b", Date: "d1", Present: false},
		{StudentID: "b", Date: "d1", Present: true},
	}

	rows := Matrix(students, marks, dates)
	require.Len(t, rows, 2)

	a := rows[0]
	assert.Equal(t, "75.0", a.Percentage)
	assert.Equal(t, []DayStatus{
		{"d1", Present}, {"d2", Present}, {"d3", Present}, {"d4", Absent}, {"d5", NotApplicable},
	}, a.History)

	b := rows[1]
	assert.Equal(t, Present, b.History[0].Status)
	assert.Equal(t, NotApplicable, b.History[1].Status)
	assert.Equal(t, "100.0", b.Percentage)
}

func TestMatrixNoRecordsIsZero(t *testing.T) {
	rows := Matrix([]roster.Student{{ID: "x"}}, nil, []string{"d1", "d2"})
	require.Len(t, rows, 1)
	assert.Equal(t, "0.0", rows[0].Percentage)
	for _, h := range rows[0].History {
		assert.Equal(t, NotApplicable, h.Status)
	}
}

func TestRankIndex(t *testing.T) {
	assert.Equal(t, 0, RankIndex("suo"))
	assert.Equal(t, 1, RankIndex("U.O."))
	assert.Equal(t, 6, RankIndex(" l/cpl "))
	assert.Equal(t, 7, RankIndex("CDT"))
	assert.Equal(t, len(rankOrder), RankIndex("Major"))
	assert.Equal(t, len(rankOrder), RankIndex(""))
}

func TestYearOfAndLabel(t *testing.T) {
	assert.Equal(t, 3, YearOf("3"))
	assert.Equal(t, 2, YearOf("2nd Year"))
	assert.Equal(t, 0, YearOf(""))
	assert.Equal(t, 0, YearOf("first"))
	assert.Equal(t, 0, YearOf("4"))
	assert.Equal(t, 0, YearOf("0th"))

	assert.Equal(t, "1st Year", YearLabel(1))
	assert.Equal(t, "2nd Year", YearLabel(2))
	assert.Equal(t, "3rd Year", YearLabel(3))
	assert.Equal(t, "4th Year", YearLabel(4))
	assert.Equal(t, "11th Year", YearLabel(11))
	assert.Equal(t, "Unassigned", YearLabel(0))
}

func TestBuildSummaryOrdering(t *testing.T) {
	present := []roster.Student{
		{ID: "1", Name: "Arun", ClassSection: "A", Year: "1", Gender: "Male", Rank: "CDT"},
		{ID: "2", Name: "Bhavna", ClassSection: "A", Year: "3", Gender: "Female", Rank: "CPL"},
		{ID: "3", Name: "Chetan", ClassSection: "A", Year: "3", Gender: "male", Rank: "Captain"},
		{ID: "4", Name: "Dev", ClassSection: "A", Year: "3", Gender: "male", Rank: "SGT"},
		{ID: "5", Name: "Esha", ClassSection: "A", Year: "2", Gender: "female", Rank: ""},
		{ID: "6", Name: "Farid", ClassSection: "A", Year: "", Gender: "male", Rank: "CDT"},
		{ID: "7", Name: "Gopal", ClassSection: "A", Year: "3", Gender: "male", Rank: "s.u.o"},
		{ID: "8", Name: "Hari", ClassSection: "A", Year: "3", Gender: "male", Rank: "Major"},
		{ID: "9", Name: "Isha", ClassSection: "", Year: "1", Gender: "female", Rank: "CDT"},
		{ID: "10", Name: "Jay", ClassSection: "B", Year: "2", Gender: "male", Rank: "CDT"},
	}

	sum := BuildSummary("2024-03-01", present)

	require.Len(t, sum.Classes, 3)
	assert.Equal(t, []string{"A", "B", UnknownClass},
		[]string{sum.Classes[0].Name, sum.Classes[1].Name, sum.Classes[2].Name})

	a := sum.Classes[0]
	var labels []string
	for _, y := range a.Years {
		labels = append(labels, y.Label)
	}
	assert.Equal(t, []string{"3rd Year", "2nd Year", "1st Year", "Unassigned"}, labels)

	third := a.Years[0]
	var boys []string
	for _, e := range third.Boys {
		boys = append(boys, e.Name)
	}
	// SUO, SGT, then unrecognised ranks in input order
	assert.Equal(t, []string{"Gopal", "Dev", "Chetan", "Hari"}, boys)
	require.Len(t, third.Girls, 1)
	assert.Equal(t, "Bhavna", third.Girls[0].Name)

	assert.Equal(t, 6, a.Boys)
	assert.Equal(t, 2, a.Girls)
	assert.Equal(t, 8, a.Total)

	assert.Equal(t, 7, sum.Boys)
	assert.Equal(t, 3, sum.Girls)
	assert.Equal(t, 10, sum.Total)
}

func TestSummaryText(t *testing.T) {
	sum := BuildSummary("2024-03-01", []roster.Student{
		{ID: "1", Name: "Arun", ClassSection: "A", Year: "3", Gender: "male", Rank: "UO"},
		{ID: "2", Name: "Bina", ClassSection: "A", Year: "3", Gender: "female"},
	})

	text := sum.Text()
	assert.True(t, strings.HasPrefix(text, "Attendance for 2024-03-01\n"))
	assert.Contains(t, text, "  3rd Year\n    UO - Arun\n    - - Bina\n")
	assert.Contains(t, text, "Totals for A:\n  Boys: 1\n  Girls: 1\n  Total: 2\n")
	assert.True(t, strings.HasSuffix(text, "OVERALL TOTAL: 2"))
}

func TestBuildSummaryEmpty(t *testing.T) {
	sum := BuildSummary("2024-03-01", nil)
	assert.Empty(t, sum.Classes)
	assert.Equal(t, 0, sum.Total)
}

func TestBuildSummaryYearOutOfRangeIsUnassigned(t *testing.T) {
	sum := BuildSummary("2024-03-01", []roster.Student{
		{ID: "1", Name: "Arun", ClassSection: "A", Year: "4", Gender: "male"},
		{ID: "2", Name: "Bina", ClassSection: "A", Year: "3", Gender: "female"},
	})

	require.Len(t, sum.Classes, 1)
	years := sum.Classes[0].Years
	require.Len(t, years, 2)
	assert.Equal(t, "3rd Year", years[0].Label)
	assert.Equal(t, "Unassigned", years[1].Label)
	require.Len(t, years[1].Boys, 1)
	assert.Equal(t, "Arun", years[1].Boys[0].Name)
}
