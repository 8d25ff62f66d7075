package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"rollcall/internal/roster"
)

// UnknownClass labels students without a class section.
const UnknownClass = "Unknown Class"

// rankOrder lists ranks from most to least senior.
var rankOrder = []string{"SUO", "UO", "CSM", "CQMS", "SGT", "CPL", "L/CPL", "CDT"}

// NormalizeRank upper-cases a rank, drops dots and collapses whitespace.
func NormalizeRank(rank string) string {
	rank = strings.ToUpper(strings.ReplaceAll(rank, ".", ""))
	return strings.Join(strings.Fields(rank), " ")
}

// RankIndex is the precedence of rank; unrecognised ranks share the last slot.
func RankIndex(rank string) int {
	n := NormalizeRank(rank)
	for i, r := range rankOrder {
		if r == n {
			return i
		}
	}
	return len(rankOrder)
}

// MaxYear is the senior-most year of study.
const MaxYear = 3

// YearOf reads the leading number of a year field ("3", "3rd", "3rd Year").
// Zero means unassigned, which also covers anything outside 1 to MaxYear.
func YearOf(year string) int {
	year = strings.TrimSpace(year)
	end := strings.IndexFunc(year, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == -1 {
		end = len(year)
	}
	n, err := strconv.Atoi(year[:end])
	if err != nil || n < 1 || n > MaxYear {
		return 0
	}
	return n
}

// YearLabel renders a year number as "1st Year", "2nd Year" and so on.
func YearLabel(year int) string {
	if year <= 0 {
		return "Unassigned"
	}
	suffix := "th"
	switch {
	case year%100 >= 11 && year%100 <= 13:
	case year%10 == 1:
		suffix = "st"
	case year%10 == 2:
		suffix = "nd"
	case year%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s Year", year, suffix)
}

// IsBoy reports whether a gender field falls into the Boys category;
// everything else is counted as Girls.
func IsBoy(gender string) bool {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m", "boy":
		return true
	}
	return false
}

// Entry is one present student in the summary.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rank string `json:"rank"`
}

// YearGroup holds the present students of one year within a class.
type YearGroup struct {
	Year  int     `json:"year"`
	Label string  `json:"label"`
	Boys  []Entry `json:"boys"`
	Girls []Entry `json:"girls"`
}

// ClassGroup holds one class section and its per-gender totals.
type ClassGroup struct {
	Name  string      `json:"name"`
	Years []YearGroup `json:"years"`
	Boys  int         `json:"boys"`
	Girls int         `json:"girls"`
	Total int         `json:"total"`
}

// Summary is the roll-call summary of one date.
type Summary struct {
	Date    string       `json:"date"`
	Classes []ClassGroup `json:"classes"`
	Boys    int          `json:"boys"`
	Girls   int          `json:"girls"`
	Total   int          `json:"total"`
}

// BuildSummary groups present students by class, then year (most senior first,
// unassigned last), then gender, ordering each group by rank precedence.
func BuildSummary(date string, present []roster.Student) Summary {
	type yearKey struct {
		class string
		year  int
	}
	years := make(map[yearKey]*YearGroup)
	classYears := make(map[string][]int)

	for _, st := range present {
		class := strings.TrimSpace(st.ClassSection)
		if class == "" {
			class = UnknownClass
		}
		y := YearOf(st.Year)
		key := yearKey{class, y}
		g, ok := years[key]
		if !ok {
			g = &YearGroup{Year: y, Label: YearLabel(y)}
			years[key] = g
			classYears[class] = append(classYears[class], y)
		}
		e := Entry{ID: st.ID, Name: st.Name, Rank: st.Rank}
		if IsBoy(st.Gender) {
			g.Boys = append(g.Boys, e)
		} else {
			g.Girls = append(g.Girls, e)
		}
	}

	classes := make([]string, 0, len(classYears))
	for c := range classYears {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool {
		if (classes[i] == UnknownClass) != (classes[j] == UnknownClass) {
			return classes[j] == UnknownClass
		}
		return classes[i] < classes[j]
	})

	sum := Summary{Date: date, Classes: make([]ClassGroup, 0, len(classes))}
	for _, c := range classes {
		ys := classYears[c]
		sort.Slice(ys, func(i, j int) bool {
			if (ys[i] == 0) != (ys[j] == 0) {
				return ys[j] == 0
			}
			return ys[i] > ys[j]
		})
		cg := ClassGroup{Name: c}
		for _, y := range ys {
			g := years[yearKey{c, y}]
			sortByRank(g.Boys)
			sortByRank(g.Girls)
			cg.Boys += len(g.Boys)
			cg.Girls += len(g.Girls)
			cg.Years = append(cg.Years, *g)
		}
		cg.Total = cg.Boys + cg.Girls
		sum.Boys += cg.Boys
		sum.Girls += cg.Girls
		sum.Classes = append(sum.Classes, cg)
	}
	sum.Total = sum.Boys + sum.Girls
	return sum
}

func sortByRank(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return RankIndex(entries[i].Rank) < RankIndex(entries[j].Rank)
	})
}

// Text renders the summary as the plain-text roll call read out to the unit.
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attendance for %s\n\n", s.Date)
	for _, c := range s.Classes {
		fmt.Fprintf(&b, "%s\n", c.Name)
		for _, y := range c.Years {
			fmt.Fprintf(&b, "  %s\n", y.Label)
			for _, e := range append(append([]Entry{}, y.Boys...), y.Girls...) {
				rank := e.Rank
				if rank == "" {
					rank = "-"
				}
				fmt.Fprintf(&b, "    %s - %s\n", rank, e.Name)
			}
		}
		fmt.Fprintf(&b, "Totals for %s:\n  Boys: %d\n  Girls: %d\n  Total: %d\n\n", c.Name, c.Boys, c.Girls, c.Total)
	}
	fmt.Fprintf(&b, "OVERALL BOYS: %d\nOVERALL GIRLS: %d\nOVERALL TOTAL: %d", s.Boys, s.Girls, s.Total)
	return b.String()
}
