package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"taskboard/domain"
)

// TaskService is the part of the task service the board talks to.
type TaskService interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateTask(ctx context.Context, in domain.TaskCreate) (domain.Task, error)
	UpdateTask(ctx context.Context, id int64, in domain.TaskUpdate) (domain.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Board keeps the task store in step with the task service. Remote calls run
// outside any lock; the store is only touched once the service confirms.
type Board struct {
	svc    TaskService
	store  *Store
	logger *log.Logger

	mu      sync.RWMutex
	users   []domain.User
	loaded  bool
	loadErr error
	closed  bool

	groupMu      sync.Mutex
	groupVersion uint64
	grouped      *Columns
}

// New returns an empty board backed by svc.
func New(svc TaskService, logger *log.Logger) *Board {
	if svc == nil {
		panic("board.New: task service is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Board{svc: svc, store: NewStore(logger), logger: logger, users: []domain.User{}}
}

// Store exposes the underlying task store.
func (b *Board) Store() *Store { return b.store }

// Load fetches tasks and users concurrently and replaces the board contents
// once both succeed. On failure the previous contents stay in place.
func (b *Board) Load(ctx context.Context) error {
	var (
		tasks []domain.Task
		users []domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := b.svc.ListTasks(gctx)
		if err != nil {
			return &domain.FetchError{Resource: "tasks", Err: domain.AsRemote("list tasks", err)}
		}
		tasks = t
		return nil
	})
	g.Go(func() error {
		u, err := b.svc.ListUsers(gctx)
		if err != nil {
			return &domain.FetchError{Resource: "users", Err: domain.AsRemote("list users", err)}
		}
		users = u
		return nil
	})
	err := g.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.logger.Debug("board closed; dropping load result")
		return err
	}
	if err != nil {
		b.loadErr = err
		b.logger.WithError(err).Error("board load failed")
		return err
	}
	b.store.Reset(tasks)
	if users == nil {
		users = []domain.User{}
	}
	b.users = users
	b.loaded = true
	b.loadErr = nil
	b.logger.WithFields(log.Fields{"tasks": len(tasks), "users": len(users)}).Debug("board loaded")
	return nil
}

// LoadWithRetry calls Load up to attempts times, doubling the pause between
// tries. Rejections by the service (4xx) and a missing session are not
// retried.
func (b *Board) LoadWithRetry(ctx context.Context, attempts int, backoff time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = b.Load(ctx); err == nil {
			return nil
		}
		if !retryable(err) || i == attempts-1 {
			break
		}
		b.logger.WithFields(log.Fields{"attempt": i + 1, "backoff": backoff}).Warn("retrying board load")
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff *= 2
	}
	return err
}

// Loaded reports whether at least one load succeeded.
func (b *Board) Loaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded
}

// LoadErr returns the error of the most recent failed load, cleared by a
// successful one. Front ends use it to offer a retry.
func (b *Board) LoadErr() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadErr
}

// Users returns the users fetched with the board.
func (b *Board) Users() []domain.User {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.User, len(b.users))
	copy(out, b.users)
	return out
}

// User looks up a loaded user.
func (b *Board) User(id int64) (domain.User, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, u := range b.users {
		if u.ID == id {
			return u, true
		}
	}
	return domain.User{}, false
}

// Tasks returns the stored tasks, newest first.
func (b *Board) Tasks() []domain.Task {
	tasks, _ := b.store.Snapshot()
	return tasks
}

// Task returns a stored task.
func (b *Board) Task(id int64) (domain.Task, bool) {
	return b.store.Get(id)
}

// Columns groups the store by status. The result is cached per store version
// and must be treated as read-only.
func (b *Board) Columns() (Columns, uint64) {
	b.groupMu.Lock()
	defer b.groupMu.Unlock()
	if b.grouped != nil && b.groupVersion == b.store.Version() {
		return *b.grouped, b.groupVersion
	}
	tasks, version := b.store.Snapshot()
	cols := GroupByStatus(tasks)
	b.grouped = &cols
	b.groupVersion = version
	return cols, version
}

// Create asks the service to create a task and inserts the result.
func (b *Board) Create(ctx context.Context, in domain.TaskCreate) (domain.Task, error) {
	task, err := b.svc.CreateTask(ctx, in)
	if err != nil {
		err = domain.AsRemote("create task", err)
		b.logger.WithError(err).Warn("create task failed")
		return domain.Task{}, err
	}
	b.store.Insert(task)
	return task, nil
}

// Update applies a partial update remotely and replaces the stored task with
// the entity the service returns.
func (b *Board) Update(ctx context.Context, id int64, in domain.TaskUpdate) (domain.Task, error) {
	task, err := b.svc.UpdateTask(ctx, id, in)
	if err != nil {
		err = domain.AsRemote("update task", err)
		b.logger.WithError(err).WithField("task", id).Warn("update task failed")
		return domain.Task{}, err
	}
	if task.ID != id {
		return task, fmt.Errorf("%w: update of task %d answered with task %d", domain.ErrInvariant, id, task.ID)
	}
	if err := b.store.Replace(task); err != nil {
		return task, err
	}
	return task, nil
}

// ChangeStatus moves a task to another status. Repeating the same status
// leaves the task as it is.
func (b *Board) ChangeStatus(ctx context.Context, id int64, status domain.Status) (domain.Task, error) {
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return domain.Task{}, &domain.ValidationError{Detail: err.Error()}
	}
	return b.Update(ctx, id, domain.StatusChange(status))
}

// Delete removes a task once confirm agrees and the service confirms. It
// reports whether the task was deleted; a declined prompt is not an error.
func (b *Board) Delete(ctx context.Context, id int64, confirm Confirmer) (bool, error) {
	task, ok := b.store.Get(id)
	if !ok {
		return false, fmt.Errorf("delete task %d: %w", id, domain.ErrTaskNotFound)
	}
	if confirm == nil {
		confirm = Decline
	}
	yes, err := confirm.Confirm(ctx, task)
	if err != nil {
		return false, err
	}
	if !yes {
		return false, nil
	}
	if err := b.svc.DeleteTask(ctx, id); err != nil {
		err = domain.AsRemote("delete task", err)
		b.logger.WithError(err).WithField("task", id).Warn("delete task failed")
		return false, err
	}
	if err := b.store.Remove(id); err != nil {
		b.logger.WithError(err).WithField("task", id).Warn("deleted task already gone from store")
	}
	return true, nil
}

// Close detaches the board. Responses still in flight are ignored.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.store.Detach()
}

func retryable(err error) bool {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return false
	}
	return !errors.Is(err, domain.ErrNoSession) && !errors.Is(err, domain.ErrSessionExpired)
}
