package board

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// Store holds the session's tasks, newest first. It is only mutated with
// entities confirmed by the task service.
type Store struct {
	mu       sync.RWMutex
	tasks    []domain.Task
	version  uint64
	detached bool
	logger   *log.Logger
}

// NewStore returns an empty store.
func NewStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{tasks: []domain.Task{}, logger: logger}
}

// Reset replaces the whole collection. Duplicate ids keep their first occurrence.
func (s *Store) Reset(tasks []domain.Task) {
	next := make([]domain.Task, 0, len(tasks))
	seen := make(map[int64]struct{}, len(tasks))
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			s.logger.WithField("task", t.ID).Warn("duplicate task id in listing")
			continue
		}
		seen[t.ID] = struct{}{}
		next = append(next, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropLocked("reset") {
		return
	}
	s.tasks = next
	s.version++
}

// Insert prepends a newly created task. An id already present is replaced in
// place so ids stay unique.
func (s *Store) Insert(t domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropLocked("insert") {
		return
	}
	if i := s.indexLocked(t.ID); i >= 0 {
		s.logger.WithField("task", t.ID).Warn("insert of existing task id; replacing")
		s.tasks[i] = t
		s.version++
		return
	}
	next := make([]domain.Task, 0, len(s.tasks)+1)
	next = append(next, t)
	s.tasks = append(next, s.tasks...)
	s.version++
}

// Replace swaps the stored task with the same id for t, wholesale.
func (s *Store) Replace(t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropLocked("replace") {
		return nil
	}
	i := s.indexLocked(t.ID)
	if i < 0 {
		s.logger.WithField("task", t.ID).Error("replace of task missing from store")
		return fmt.Errorf("%w: replace task %d: %w", domain.ErrInvariant, t.ID, domain.ErrTaskNotFound)
	}
	s.tasks[i] = t
	s.version++
	return nil
}

// Remove deletes the task with the given id.
func (s *Store) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropLocked("remove") {
		return nil
	}
	i := s.indexLocked(id)
	if i < 0 {
		s.logger.WithField("task", id).Error("remove of task missing from store")
		return fmt.Errorf("%w: remove task %d: %w", domain.ErrInvariant, id, domain.ErrTaskNotFound)
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.version++
	return nil
}

// Get returns the task with the given id.
func (s *Store) Get(id int64) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i], true
	}
	return domain.Task{}, false
}

// Snapshot returns a copy of the tasks together with the version it reflects.
func (s *Store) Snapshot() ([]domain.Task, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out, s.version
}

// Len returns the number of stored tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Version increases with every applied mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Detach stops the store from accepting mutations. Responses that arrive after
// the view is gone are dropped.
func (s *Store) Detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}

func (s *Store) dropLocked(op string) bool {
	if !s.detached {
		return false
	}
	s.logger.WithField("op", op).Debug("store detached; dropping late update")
	return true
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}
