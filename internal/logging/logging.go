// Package logging configures the logrus logger shared by the commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Options selects the log level and output format.
type Options struct {
	Level  string
	Format string
	Debug  bool
	Out    io.Writer
}

// New builds a logger. Debug forces debug level; Format is "json" or "text".
func New(opts Options) (*log.Logger, error) {
	logger := log.New()
	if opts.Out != nil {
		logger.SetOutput(opts.Out)
	} else {
		logger.SetOutput(os.Stderr)
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	if opts.Debug {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	return logger, nil
}

// DebugFromEnv reports whether DEBUG is set to a true value.
func DebugFromEnv() bool {
	dbg, err := strconv.ParseBool(os.Getenv("DEBUG"))
	return err == nil && dbg
}
