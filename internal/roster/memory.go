package roster

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is a map-backed Directory for dev/testing.
type Memory struct {
	mu       sync.RWMutex
	students map[string]Student
	staff    map[string]Staff
}

// NewMemory creates an empty in-memory roster.
func NewMemory() *Memory {
	return &Memory{
		students: make(map[string]Student),
		staff:    make(map[string]Staff),
	}
}

// PutStudent adds or replaces a student.
func (m *Memory) PutStudent(s Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
}

// PutStaff adds or replaces a staff member.
func (m *Memory) PutStaff(s Staff) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff[s.ID] = s
}

func (m *Memory) StudentIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.students))
	for id := range m.students {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Students(ctx context.Context, classSection string) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Student
	for _, s := range m.students {
		if matchAllClasses(classSection) || strings.EqualFold(s.ClassSection, strings.TrimSpace(classSection)) {
			res = append(res, s)
		}
	}
	sortByName(res)
	return res, nil
}

func (m *Memory) StudentsByIDs(ctx context.Context, ids []string) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Student
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if s, ok := m.students[id]; ok && !seen[id] {
			seen[id] = true
			res = append(res, s)
		}
	}
	sortByName(res)
	return res, nil
}

func (m *Memory) Staff(ctx context.Context, id string) (*Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.staff[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) StaffIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.staff))
	for id := range m.staff {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func sortByName(s []Student) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Name != s[j].Name {
			return s[i].Name < s[j].Name
		}
		return s[i].ID < s[j].ID
	})
}
