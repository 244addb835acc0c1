package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskboard/domain"
)

// DefaultBaseURL is the API gateway of a local development stack.
const DefaultBaseURL = "http://localhost:8000/api"

const (
	instrumentationName = "taskboard/remote"
	headerRequestID     = "X-Request-ID"
	maxResponseSize     = 4 << 20 // 4 MiB
)

// TokenSource supplies the bearer token attached to authenticated requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", domain.ErrNoSession
	}
	return string(s), nil
}

// Client talks to the task service REST API.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	logger  *log.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// Register creates an account. It does not require a session.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, "register", http.MethodPost, "/users/register", false, reg, &u)
	return u, err
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.Login, error) {
	var l domain.Login
	err := c.do(ctx, "login", http.MethodPost, "/users/login", false, creds, &l)
	return l, err
}

// ListUsers returns every user known to the service.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	err := c.do(ctx, "list users", http.MethodGet, "/users", true, nil, &users)
	return users, err
}

// ListTasks returns the tasks visible to the current user, newest first.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	tasks := []domain.Task{}
	err := c.do(ctx, "list tasks", http.MethodGet, "/tasks", true, nil, &tasks)
	return tasks, err
}

// CreateTask creates a task and returns the stored entity.
func (c *Client) CreateTask(ctx context.Context, in domain.TaskCreate) (domain.Task, error) {
	var t domain.Task
	err := c.do(ctx, "create task", http.MethodPost, "/tasks", true, in, &t)
	return t, err
}

// UpdateTask applies a partial update and returns the full updated entity.
func (c *Client) UpdateTask(ctx context.Context, id int64, in domain.TaskUpdate) (domain.Task, error) {
	var t domain.Task
	err := c.do(ctx, "update task", http.MethodPut, "/tasks/"+strconv.FormatInt(id, 10), true, in, &t)
	return t, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, "delete task", http.MethodDelete, "/tasks/"+strconv.FormatInt(id, 10), true, nil, nil)
}

// ListNotifications returns the current user's notifications.
func (c *Client) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	ns := []domain.Notification{}
	err := c.do(ctx, "list notifications", http.MethodGet, "/notifications", true, nil, &ns)
	return ns, err
}

// MarkNotificationRead flags a notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	path := "/notifications/" + strconv.FormatInt(id, 10) + "/read"
	return c.do(ctx, "mark notification read", http.MethodPut, path, true, nil, nil)
}

// UnreadCount asks the service how many notifications are unread.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		UnreadCount int `json:"unread_count"`
	}
	err := c.do(ctx, "unread count", http.MethodGet, "/notifications/unread-count", true, nil, &resp)
	return resp.UnreadCount, err
}

func (c *Client) do(ctx context.Context, op, method, path string, authed bool, body, out any) (err error) {
	requestID := uuid.NewString()
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "taskboard.remote "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("taskboard.request_id", requestID),
		),
	)
	start := time.Now()
	status := 0
	defer func() {
		if status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", status))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.logRequest(op, method, path, requestID, status, time.Since(start), err)
	}()

	var reader io.Reader
	if body != nil {
		payload, mErr := sonic.Marshal(body)
		if mErr != nil {
			return &domain.RemoteError{Op: op, Err: mErr}
		}
		reader = bytes.NewReader(payload)
	}
	req, rErr := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if rErr != nil {
		return &domain.RemoteError{Op: op, Err: rErr}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)
	if authed {
		if c.tokens == nil {
			return domain.ErrNoSession
		}
		token, tErr := c.tokens.Token(ctx)
		if tErr != nil {
			return tErr
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, hErr := c.http.Do(req)
	if hErr != nil {
		return &domain.RemoteError{Op: op, Err: hErr}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if readErr != nil {
		return &domain.RemoteError{Op: op, Status: status, Err: readErr}
	}

	switch {
	case status >= 200 && status < 300:
	case status >= 400 && status < 500:
		return &domain.ValidationError{Status: status, Detail: detailFromBody(data)}
	default:
		var cause error
		if detail := detailFromBody(data); detail != "" {
			cause = errors.New(detail)
		}
		return &domain.RemoteError{Op: op, Status: status, Err: cause}
	}

	if out == nil || status == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if dErr := sonic.Unmarshal(data, out); dErr != nil {
		return &domain.RemoteError{Op: op, Status: status, Err: dErr}
	}
	return nil
}

func (c *Client) logRequest(op, method, path, requestID string, status int, elapsed time.Duration, err error) {
	if c.logger == nil {
		return
	}
	entry := c.logger.WithFields(log.Fields{
		"component":   "remote",
		"op":          op,
		"method":      method,
		"path":        path,
		"status":      status,
		"request_id":  requestID,
		"duration_ms": float64(elapsed) / float64(time.Millisecond),
	})
	if err != nil {
		entry.WithError(err).Warn("remote.request.failed")
		return
	}
	entry.Debug("remote.request")
}
