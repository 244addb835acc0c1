package board

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"taskboard/domain"
)

// fakeService mimics the task service in memory. Errors set in the *Err fields
// are returned once and then cleared.
type fakeService struct {
	mu       sync.Mutex
	nextID   int64
	tasks    []domain.Task
	users    []domain.User
	notes    []domain.Notification
	calls    map[string]int
	listErr  error
	usersErr error
	writeErr error
	readErr  error
}

func newFakeService() *fakeService {
	return &fakeService{nextID: 1, calls: map[string]int{}}
}

func (f *fakeService) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func takeErr(p *error) error {
	err := *p
	*p = nil
	return err
}

func (f *fakeService) ListTasks(context.Context) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list tasks"]++
	if err := takeErr(&f.listErr); err != nil {
		return nil, err
	}
	return append([]domain.Task(nil), f.tasks...), nil
}

func (f *fakeService) ListUsers(context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list users"]++
	if err := takeErr(&f.usersErr); err != nil {
		return nil, err
	}
	return append([]domain.User(nil), f.users...), nil
}

func (f *fakeService) CreateTask(_ context.Context, in domain.TaskCreate) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++
	if err := takeErr(&f.writeErr); err != nil {
		return domain.Task{}, err
	}
	if in.Title == "" {
		return domain.Task{}, &domain.ValidationError{Status: http.StatusUnprocessableEntity, Detail: "title is required"}
	}
	prio := in.Priority
	if prio == "" {
		prio = domain.PriorityMedium
	}
	t := domain.Task{
		ID:          f.nextID,
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.StatusPending,
		Priority:    prio,
		AssignedTo:  in.AssignedTo,
		DueDate:     in.DueDate,
		CreatedBy:   1,
	}
	f.nextID++
	f.tasks = append([]domain.Task{t}, f.tasks...)
	return t, nil
}

func (f *fakeService) UpdateTask(_ context.Context, id int64, in domain.TaskUpdate) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["update"]++
	if err := takeErr(&f.writeErr); err != nil {
		return domain.Task{}, err
	}
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		t := &f.tasks[i]
		if in.Title != nil {
			t.Title = *in.Title
		}
		if in.Description != nil {
			t.Description = *in.Description
		}
		if in.Status != nil {
			t.Status = *in.Status
		}
		if in.Priority != nil {
			t.Priority = *in.Priority
		}
		if in.AssignedTo != nil {
			t.AssignedTo = in.AssignedTo
		}
		if in.DueDate != nil {
			t.DueDate = in.DueDate
		}
		return *t, nil
	}
	return domain.Task{}, &domain.ValidationError{Status: http.StatusNotFound, Detail: "Task not found"}
}

func (f *fakeService) DeleteTask(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete"]++
	if err := takeErr(&f.writeErr); err != nil {
		return err
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return &domain.ValidationError{Status: http.StatusNotFound, Detail: "Task not found"}
}

func (f *fakeService) ListNotifications(context.Context) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list notifications"]++
	if err := takeErr(&f.listErr); err != nil {
		return nil, err
	}
	return append([]domain.Notification(nil), f.notes...), nil
}

func (f *fakeService) MarkNotificationRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["mark read"]++
	if err := takeErr(&f.readErr); err != nil {
		return err
	}
	for i := range f.notes {
		if f.notes[i].ID == id {
			f.notes[i].IsRead = true
			return nil
		}
	}
	return errors.New("notification not found")
}
