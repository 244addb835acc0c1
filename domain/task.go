package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a task. A task is in exactly one status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses returns every status in board order.
func Statuses() [4]Status {
	return [4]Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown task status %q", s)
	}
}

// Label is the column heading used for the status.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

func (s Status) MarshalText() ([]byte, error) {
	if _, err := ParseStatus(string(s)); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Priority expresses task urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority converts a wire value into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.TrimSpace(s)); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("unknown task priority %q", s)
	}
}

func (p Priority) MarshalText() ([]byte, error) {
	if _, err := ParsePriority(string(p)); err != nil {
		return nil, err
	}
	return []byte(p), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	pr, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = pr
	return nil
}

// Task represents a single board item as returned by the task service.
type Task struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Status           Status     `json:"status"`
	Priority         Priority   `json:"priority"`
	AssignedTo       *int64     `json:"assigned_to,omitempty"`
	AssignedUserName string     `json:"assigned_user_name,omitempty"`
	DueDate          *Timestamp `json:"due_date,omitempty"`
	CreatedAt        Timestamp  `json:"created_at"`
	UpdatedAt        Timestamp  `json:"updated_at"`
	CreatedBy        int64      `json:"created_by"`
	CreatedByName    string     `json:"created_by_name"`
}

// Overdue reports whether the due date has passed on a task that is not completed.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.DueDate.IsZero() || t.Status == StatusCompleted {
		return false
	}
	return t.DueDate.Before(now)
}

// TaskCreate is the write-only payload used to create a task. The service
// assigns the id and the initial status.
type TaskCreate struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	AssignedTo  *int64     `json:"assigned_to,omitempty"`
	DueDate     *Timestamp `json:"due_date,omitempty"`
}

// Validate checks the fields a task form requires before submission.
func (c TaskCreate) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return &ValidationError{Detail: "title is required"}
	}
	if c.Priority == "" {
		return nil
	}
	if _, err := ParsePriority(string(c.Priority)); err != nil {
		return &ValidationError{Detail: err.Error()}
	}
	return nil
}

// AsUpdate converts a create form into a full update, the way the edit form
// resubmits every field.
func (c TaskCreate) AsUpdate() TaskUpdate {
	title := c.Title
	desc := c.Description
	prio := c.Priority
	upd := TaskUpdate{Title: &title, Description: &desc, Priority: &prio, AssignedTo: c.AssignedTo, DueDate: c.DueDate}
	if c.Priority == "" {
		upd.Priority = nil
	}
	return upd
}

// TaskUpdate carries partial updates for a task. Nil fields are left unchanged
// by the service.
type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	AssignedTo  *int64     `json:"assigned_to,omitempty"`
	DueDate     *Timestamp `json:"due_date,omitempty"`
}

// StatusChange returns an update touching only the status.
func StatusChange(s Status) TaskUpdate {
	return TaskUpdate{Status: &s}
}

// Empty reports whether the update carries no fields.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil &&
		u.Priority == nil && u.AssignedTo == nil && u.DueDate == nil
}
