// ABOUTME: In-memory consumer holding the latest state of every subject
// ABOUTME: Backs status reporting and late-joining viewers
package animation

import (
	"sort"
	"sync"
	"time"
)

// SubjectState is the latest known data for a subject
type SubjectState struct {
	Static    StaticData `json:"static"`
	Frame     Frame      `json:"frame"`
	Frames    int64      `json:"frames"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store keeps the most recent layout and frame per subject
type Store struct {
	mu       sync.RWMutex
	subjects map[string]*SubjectState
	now      func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		subjects: make(map[string]*SubjectState),
		now:      time.Now,
	}
}

func (s *Store) PushStaticData(data StaticData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[data.Subject] = &SubjectState{Static: data, UpdatedAt: s.now()}
}

func (s *Store) PushFrame(frame Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.subjects[frame.Subject]
	if !ok {
		st = &SubjectState{Static: StaticData{Subject: frame.Subject}}
		s.subjects[frame.Subject] = st
	}
	st.Frame = frame
	st.Frames++
	st.UpdatedAt = s.now()
}

func (s *Store) RemoveSubject(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subjects, subject)
}

// Snapshot returns copies of all subject states sorted by name
func (s *Store) Snapshot() []SubjectState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SubjectState, 0, len(s.subjects))
	for _, st := range s.subjects {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Static.Subject < out[j].Static.Subject
	})
	return out
}

// Len returns the number of live subjects
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subjects)
}
