package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded Store for dev/testing. It enforces the same
// unique keys as the Postgres schema.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[recordKey]*Record
	schedules map[string]*Schedule
	histories map[string]*History // by id
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[recordKey]*Record),
		schedules: make(map[string]*Schedule),
		histories: make(map[string]*History),
	}
}

func (m *MemoryStore) UpsertRecord(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[rec.key()]; ok {
		existing.Status = rec.Status
		existing.UpdatedAt = time.Now().UTC()
		return nil
	}
	m.insertLocked(rec)
	return nil
}

func (m *MemoryStore) InsertRecords(ctx context.Context, recs []Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, rec := range recs {
		if _, ok := m.records[rec.key()]; ok {
			continue
		}
		m.insertLocked(rec)
		inserted++
	}
	return inserted, nil
}

func (m *MemoryStore) insertLocked(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UpdatedAt = time.Now().UTC()
	m.records[rec.key()] = &rec
}

func (m *MemoryStore) OverrideStatus(ctx context.Context, studentID, scheduleID, date string, status Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.StudentID != studentID || rec.ClassDate != date {
			continue
		}
		if scheduleID != "" && rec.ScheduleID != scheduleID {
			continue
		}
		rec.Status = status
		rec.UpdatedAt = time.Now().UTC()
		n++
	}
	return n, nil
}

func (m *MemoryStore) PresentStudentIDs(ctx context.Context, date string, f PresentFilter) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, rec := range m.records {
		if rec.ClassDate != date || rec.Status != StatusPresent {
			continue
		}
		if f.StaffID != "" && rec.StaffID != f.StaffID {
			continue
		}
		if f.ScheduleID != "" && rec.ScheduleID != f.ScheduleID {
			continue
		}
		if !seen[rec.StudentID] {
			seen[rec.StudentID] = true
			ids = append(ids, rec.StudentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) CountPresent(ctx context.Context, staffID, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.StaffID == staffID && rec.ClassDate == date && rec.Status == StatusPresent {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListRecords(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		res = append(res, *rec)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].ClassDate != res[j].ClassDate {
			return res[i].ClassDate < res[j].ClassDate
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *MemoryStore) RecordDates(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var dates []string
	for _, rec := range m.records {
		if !seen[rec.ClassDate] {
			seen[rec.ClassDate] = true
			dates = append(dates, rec.ClassDate)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

func (m *MemoryStore) CreateSchedule(ctx context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.schedules {
		if existing.Date == s.Date && existing.StartTime == s.StartTime {
			return ErrDuplicateKey
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	cp := *s
	cp.StaffIDs = append([]string(nil), s.StaffIDs...)
	m.schedules[s.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Date != res[j].Date {
			return res[i].Date < res[j].Date
		}
		return res[i].StartTime < res[j].StartTime
	})
	return res, nil
}

func (m *MemoryStore) DeleteSchedule(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return false, nil
	}
	delete(m.schedules, id)
	return true, nil
}

func (m *MemoryStore) GetHistory(ctx context.Context, scheduleID, staffID string) (*History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h := m.findHistoryLocked(scheduleID, staffID); h != nil {
		cp := *h
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStore) HistoryOn(ctx context.Context, date, staffID string) (*History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.histories {
		if h.ClassDate == date && h.StaffID == staffID {
			cp := *h
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) findHistoryLocked(scheduleID, staffID string) *History {
	for _, h := range m.histories {
		if h.ScheduleID == scheduleID && h.StaffID == staffID {
			return h
		}
	}
	return nil
}

// conflictLocked checks the partial (date, staff) key for a row other than self.
func (m *MemoryStore) conflictLocked(h *History, self string) bool {
	if h.StaffID == "" {
		return false
	}
	for id, other := range m.histories {
		if id != self && other.StaffID == h.StaffID && other.ClassDate == h.ClassDate {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateHistory(ctx context.Context, h *History) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findHistoryLocked(h.ScheduleID, h.StaffID) != nil || m.conflictLocked(h, "") {
		return ErrDuplicateKey
	}
	m.putHistoryLocked(h)
	return nil
}

func (m *MemoryStore) SaveHistory(ctx context.Context, h *History) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.findHistoryLocked(h.ScheduleID, h.StaffID); existing != nil {
		existing.AttendanceTaken = h.AttendanceTaken
		existing.TotalPresent = h.TotalPresent
		existing.UpdatedAt = time.Now().UTC()
		h.ID = existing.ID
		return nil
	}
	if m.conflictLocked(h, "") {
		return ErrDuplicateKey
	}
	m.putHistoryLocked(h)
	return nil
}

func (m *MemoryStore) putHistoryLocked(h *History) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.UpdatedAt = time.Now().UTC()
	cp := *h
	m.histories[h.ID] = &cp
}

func (m *MemoryStore) SubmittedStaffIDs(ctx context.Context, scheduleID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, h := range m.histories {
		if h.ScheduleID == scheduleID && h.StaffID != "" && !seen[h.StaffID] {
			seen[h.StaffID] = true
			ids = append(ids, h.StaffID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) LockedDates(ctx context.Context, staffID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var dates []string
	for _, h := range m.histories {
		if h.StaffID == staffID && !seen[h.ClassDate] {
			seen[h.ClassDate] = true
			dates = append(dates, h.ClassDate)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

func (m *MemoryStore) ListHistory(ctx context.Context, staffID string) ([]History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []History
	for _, h := range m.histories {
		if staffID == "" || h.StaffID == staffID {
			res = append(res, *h)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].ClassDate != res[j].ClassDate {
			return res[i].ClassDate > res[j].ClassDate
		}
		if res[i].StartTime != res[j].StartTime {
			return res[i].StartTime < res[j].StartTime
		}
		return res[i].StaffID < res[j].StaffID
	})
	return res, nil
}
