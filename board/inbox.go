package board

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// NotificationService is the part of the service the notification panel uses.
type NotificationService interface {
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// Inbox is the notification panel: it loads notifications on demand and
// acknowledges them one at a time.
type Inbox struct {
	svc    NotificationService
	logger *log.Logger

	mu      sync.RWMutex
	items   []domain.Notification
	loadErr error
	closed  bool
}

// NewInbox returns an empty inbox.
func NewInbox(svc NotificationService, logger *log.Logger) *Inbox {
	if svc == nil {
		panic("board.NewInbox: notification service is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Inbox{svc: svc, logger: logger, items: []domain.Notification{}}
}

// Load fetches all notifications. A failed load empties the panel and records
// the error.
func (in *Inbox) Load(ctx context.Context) error {
	items, err := in.svc.ListNotifications(ctx)

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	if err != nil {
		err = &domain.FetchError{Resource: "notifications", Err: domain.AsRemote("list notifications", err)}
		in.items = []domain.Notification{}
		in.loadErr = err
		in.logger.WithError(err).Error("notification load failed")
		return err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	in.items = items
	in.loadErr = nil
	return nil
}

// LoadErr returns the error of the last load, if it failed.
func (in *Inbox) LoadErr() error {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.loadErr
}

// MarkRead acknowledges a notification. Only that entry's read flag changes
// locally; an entry that is already read is left alone without a remote call.
func (in *Inbox) MarkRead(ctx context.Context, id int64) error {
	in.mu.RLock()
	idx := in.indexLocked(id)
	alreadyRead := idx >= 0 && in.items[idx].IsRead
	in.mu.RUnlock()
	if idx < 0 {
		return fmt.Errorf("mark notification %d read: %w", id, domain.ErrNotificationNotFound)
	}
	if alreadyRead {
		return nil
	}

	if err := in.svc.MarkNotificationRead(ctx, id); err != nil {
		err = domain.AsRemote("mark notification read", err)
		in.logger.WithError(err).WithField("notification", id).Warn("mark notification read failed")
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	if i := in.indexLocked(id); i >= 0 {
		in.items[i].IsRead = true
	}
	return nil
}

// Notifications returns a copy of the loaded notifications.
func (in *Inbox) Notifications() []domain.Notification {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]domain.Notification, len(in.items))
	copy(out, in.items)
	return out
}

// UnreadCount counts loaded notifications that are not read.
func (in *Inbox) UnreadCount() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return domain.UnreadCount(in.items)
}

// Close detaches the inbox from late responses.
func (in *Inbox) Close() {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
}

func (in *Inbox) indexLocked(id int64) int {
	for i := range in.items {
		if in.items[i].ID == id {
			return i
		}
	}
	return -1
}
