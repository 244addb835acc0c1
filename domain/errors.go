package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTaskNotFound is returned when a store operation names a task it does not hold.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNotificationNotFound is returned when a notification id is not loaded.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrInvariant marks a sequencing bug, such as replacing a task that was never inserted.
	ErrInvariant = errors.New("invariant violation")
	// ErrUnauthorized matches a ValidationError carrying a 401 status.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoSession indicates that nobody is logged in.
	ErrNoSession = errors.New("no session")
	// ErrSessionExpired indicates that the stored token is past its expiry.
	ErrSessionExpired = errors.New("session expired")
)

// ValidationError is a payload rejected by the service with a 4xx status. Detail
// is meant to be shown to the user verbatim.
type ValidationError struct {
	Status int
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Status != 0 {
		return http.StatusText(e.Status)
	}
	return "invalid request"
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// RemoteError is a transport failure or an unexpected server failure.
type RemoteError struct {
	Op     string
	Status int
	Err    error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": remote failure"
}

func (e *RemoteError) Unwrap() error { return e.Err }

// FetchError reports that loading a collection failed.
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UserMessage returns the text a form should display for err: the service's
// detail for validation failures, generic otherwise.
func UserMessage(err error, generic string) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return generic
}

// AsRemote wraps any error that is not already classified as a RemoteError.
func AsRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	var rerr *RemoteError
	if errors.As(err, &verr) || errors.As(err, &rerr) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}
