package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"taskboard/domain"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	if cmd, err := newRootCmd(a).ExecuteContextC(ctx); err != nil {
		if a.logger != nil {
			a.logger.WithError(err).WithField("command", cmd.Name()).Debug("command failed")
		}
		fmt.Fprintln(os.Stderr, "Error:", describe(cmd, err))
		stop()
		os.Exit(1)
	}
}

// anonymousAnnotation marks commands that talk to the service without a
// session, so a 401 there is a rejected credential rather than an expired one.
const anonymousAnnotation = "taskboard/anonymous"

// describe turns an error returned by cmd into the line shown to the user.
// Service rejections show their detail; other remote failures show a generic
// message and leave the cause to the debug log.
func describe(cmd *cobra.Command, err error) string {
	anonymous := cmd != nil && cmd.Annotations[anonymousAnnotation] == "true"
	var verr *domain.ValidationError
	var rerr *domain.RemoteError
	switch {
	case errors.Is(err, domain.ErrNoSession):
		return "not logged in; run 'taskboard login'"
	case errors.Is(err, domain.ErrSessionExpired):
		return "session expired; run 'taskboard login'"
	case !anonymous && errors.Is(err, domain.ErrUnauthorized):
		return "session expired; run 'taskboard login'"
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &rerr):
		return domain.UserMessage(err, "Failed to "+rerr.Op)
	}
	return err.Error()
}
