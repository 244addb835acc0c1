package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskboard/board"
	"taskboard/internal/config"
	"taskboard/internal/logging"
	"taskboard/remote"
	"taskboard/session"
)

// commandBindings binds command specific flags to configuration keys.
var commandBindings = map[string]map[string]string{
	"serve": {"dashboard.listen": "listen"},
	"devserver": {
		"devserver.listen":   "listen",
		"devserver.secret":   "secret",
		"devserver.jwks_url": "jwks-url",
		"devserver.issuer":   "issuer",
	},
}

type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	configPath string
	verbose    bool

	cfg    *config.Config
	logger *log.Logger
	store  session.Store
	redis  *redis.Client
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut, now: time.Now}
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags(), commandBindings[cmd.Name()])
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Debug:  a.verbose || logging.DebugFromEnv(),
		Out:    a.errOut,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger

	if cfg.RedisURL == "" {
		a.store = session.NewFileStore(cfg.SessionFile)
		return nil
	}
	opts, err := session.RedisOptions(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	a.redis = redis.NewClient(opts)
	a.store = session.NewRedisStore(a.redis, cfg.Profile)
	return nil
}

func (a *app) teardown() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("close redis")
		}
		a.redis = nil
	}
}

func (a *app) client(authed bool) *remote.Client {
	var tokens remote.TokenSource
	if authed {
		src := session.NewSource(a.store)
		src.Now = a.now
		tokens = src
	}
	return remote.New(a.cfg.APIURL, tokens,
		remote.WithHTTPClient(&http.Client{Timeout: a.cfg.Timeout}),
		remote.WithLogger(a.logger),
	)
}

// loadBoard returns a board filled from the service.
func (a *app) loadBoard(ctx context.Context) (*board.Board, error) {
	b := board.New(a.client(true), a.logger)
	if err := b.LoadWithRetry(ctx, a.cfg.LoadAttempts, a.cfg.LoadBackoff); err != nil {
		return nil, err
	}
	return b, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskboard",
		Short:         "Task board client for the task service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.teardown()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.String("api-url", "", "task service base URL (default "+remote.DefaultBaseURL+")")
	pf.String("profile", "", "session profile name")
	pf.String("session-file", "", "file holding the login session")
	pf.String("redis-url", "", "store the session in redis instead of a file")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text or json)")
	pf.Duration("timeout", 0, "timeout for each request to the task service")

	root.AddCommand(
		registerCmd(a),
		loginCmd(a),
		logoutCmd(a),
		boardCmd(a),
		createCmd(a),
		updateCmd(a),
		statusCmd(a),
		deleteCmd(a),
		notificationsCmd(a),
		readCmd(a),
		serveCmd(a),
		devserverCmd(a),
	)
	return root
}
