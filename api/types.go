package api

import (
	"context"

	"taskboard/board"
	"taskboard/domain"
)

// Board is the task controller the dashboard drives.
type Board interface {
	Load(ctx context.Context) error
	Loaded() bool
	LoadErr() error
	Columns() (board.Columns, uint64)
	Users() []domain.User
	Task(id int64) (domain.Task, bool)
	Create(ctx context.Context, in domain.TaskCreate) (domain.Task, error)
	Update(ctx context.Context, id int64, in domain.TaskUpdate) (domain.Task, error)
	ChangeStatus(ctx context.Context, id int64, status domain.Status) (domain.Task, error)
	Delete(ctx context.Context, id int64, confirm board.Confirmer) (bool, error)
}

// Inbox is the notification panel the dashboard drives.
type Inbox interface {
	Load(ctx context.Context) error
	LoadErr() error
	Notifications() []domain.Notification
	UnreadCount() int
	MarkRead(ctx context.Context, id int64) error
}

type detailResponse struct {
	Detail string `json:"detail"`
}

type taskView struct {
	domain.Task
	Overdue bool `json:"overdue"`
}

type columnView struct {
	Status domain.Status `json:"status"`
	Label  string        `json:"label"`
	Count  int           `json:"count"`
	Tasks  []taskView    `json:"tasks"`
}

type boardResponse struct {
	Columns []columnView `json:"columns"`
	Total   int          `json:"total"`
	Version uint64       `json:"version"`
	Loaded  bool         `json:"loaded"`
	Error   string       `json:"error,omitempty"`
}

type notificationView struct {
	domain.Notification
	Age string `json:"age"`
}

type notificationsResponse struct {
	Notifications []notificationView `json:"notifications"`
	UnreadCount   int                `json:"unread_count"`
	Error         string             `json:"error,omitempty"`
}

type statusRequest struct {
	Status domain.Status `json:"status"`
}
