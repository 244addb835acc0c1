package board

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"taskboard/domain"
)

// Confirmer asks the user a blocking yes/no question before a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, task domain.Task) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, task domain.Task) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, task domain.Task) (bool, error) {
	return f(ctx, task)
}

var (
	// Accept confirms without asking.
	Accept Confirmer = ConfirmFunc(func(context.Context, domain.Task) (bool, error) { return true, nil })
	// Decline refuses without asking.
	Decline Confirmer = ConfirmFunc(func(context.Context, domain.Task) (bool, error) { return false, nil })
)

// Prompt asks on out and reads the answer from in. Only "y" or "yes" confirm.
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

func (p Prompt) Confirm(_ context.Context, task domain.Task) (bool, error) {
	if _, err := fmt.Fprintf(p.Out, "Delete task #%d %q? [y/N] ", task.ID, task.Title); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
