// Package devserver is an in-memory task service speaking the same REST
// contract as the production backend. It backs local development and tests.
package devserver

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"taskboard/domain"
)

var (
	// ErrEmailTaken is returned when registering an address twice.
	ErrEmailTaken = errors.New("email already registered")
	// ErrBadCredentials is returned for an unknown email or a wrong password.
	ErrBadCredentials = errors.New("incorrect email or password")

	errFieldsIncomplete = errors.New("name, email and password are required")
)

const (
	detailEmailTaken     = "Email already registered"
	detailBadCredentials = "Incorrect email or password"
	detailTaskMissing    = "Task not found"
	detailNoteMissing    = "Notification not found"
	detailTitleRequired  = "title is required"
	detailUnauthorized   = "Could not validate credentials"
)

type account struct {
	user domain.User
	hash []byte
}

type fault struct {
	status    int
	detail    string
	remaining int
}

// Server holds users, tasks and notifications in memory.
type Server struct {
	auth   *Auth
	logger *log.Logger
	now    func() time.Time
	cost   int

	mu         sync.Mutex
	accounts   []account
	tasks      []domain.Task
	notes      []domain.Notification
	nextUser   int64
	nextTask   int64
	nextNote   int64
	faults     map[string]*fault
	latency    time.Duration
	seenHeader map[string]string
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.cost = cost }
}

// WithLatency delays every API response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// New returns an empty server authenticating with auth.
func New(auth *Auth, logger *log.Logger, opts ...Option) *Server {
	if auth == nil {
		panic("devserver.New: auth is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Server{
		auth:       auth,
		logger:     logger,
		now:        time.Now,
		cost:       bcrypt.DefaultCost,
		nextUser:   1,
		nextTask:   1,
		nextNote:   1,
		faults:     map[string]*fault{},
		seenHeader: map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddUser creates an account directly, bypassing the HTTP surface.
func (s *Server) AddUser(reg domain.Registration) (domain.User, error) {
	if strings.TrimSpace(reg.Name) == "" || strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
		return domain.User{}, errFieldsIncomplete
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return domain.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, reg.Email) {
			return domain.User{}, ErrEmailTaken
		}
	}
	u := domain.User{ID: s.nextUser, Name: reg.Name, Email: reg.Email}
	s.nextUser++
	s.accounts = append(s.accounts, account{user: u, hash: hash})
	return u, nil
}

// Authenticate checks credentials and returns a login response with a fresh token.
func (s *Server) Authenticate(creds domain.Credentials) (domain.Login, error) {
	s.mu.Lock()
	var found *account
	for i := range s.accounts {
		if strings.EqualFold(s.accounts[i].user.Email, creds.Email) {
			a := s.accounts[i]
			found = &a
			break
		}
	}
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.hash, []byte(creds.Password)) != nil {
		return domain.Login{}, ErrBadCredentials
	}
	token, err := s.auth.Issue(found.user.ID, s.now())
	if err != nil {
		return domain.Login{}, err
	}
	return domain.Login{AccessToken: token, TokenType: "bearer", User: found.user}, nil
}

// FailNext makes the next n requests to route answer with status and detail.
// Routes are written as "METHOD /path" using echo path parameters, for example
// "PUT /api/tasks/:id".
func (s *Server) FailNext(route string, status, n int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = &fault{status: status, detail: detail, remaining: n}
}

// LastHeader returns the most recent value seen for header on the API.
func (s *Server) LastHeader(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seenHeader[http.CanonicalHeaderKey(name)]
}

// Notify adds a notification for userID.
func (s *Server) Notify(userID int64, title, message string) domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifyLocked(userID, title, message)
}

func (s *Server) notifyLocked(userID int64, title, message string) domain.Notification {
	n := domain.Notification{
		ID:        s.nextNote,
		Title:     title,
		Message:   message,
		UserID:    userID,
		CreatedAt: domain.NewTimestamp(s.now()),
	}
	s.nextNote++
	s.notes = append(s.notes, n)
	return n
}

func (s *Server) userNameLocked(id int64) (string, bool) {
	for _, a := range s.accounts {
		if a.user.ID == id {
			return a.user.Name, true
		}
	}
	return "", false
}

// renderLocked fills in the user names the service derives on every read.
func (s *Server) renderLocked(t domain.Task) domain.Task {
	t.AssignedUserName = ""
	if t.AssignedTo != nil {
		t.AssignedUserName, _ = s.userNameLocked(*t.AssignedTo)
	}
	if name, ok := s.userNameLocked(t.CreatedBy); ok {
		t.CreatedByName = name
	} else {
		t.CreatedByName = "Unknown"
	}
	return t
}

func (s *Server) taskIndexLocked(id int64) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// visibleTasksLocked lists tasks created by or assigned to userID, newest first.
func (s *Server) visibleTasksLocked(userID int64) []domain.Task {
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.CreatedBy == userID || (t.AssignedTo != nil && *t.AssignedTo == userID) {
			out = append(out, s.renderLocked(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt.Time) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt.Time)
	})
	return out
}

// Register wires the REST routes onto e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.health)

	g := e.Group("/api", s.faultMiddleware)
	g.POST("/users/register", s.register)
	g.POST("/users/login", s.login)

	authed := g.Group("", s.authMiddleware)
	authed.GET("/users", s.listUsers)
	authed.GET("/tasks", s.listTasks)
	authed.POST("/tasks", s.createTask)
	authed.PUT("/tasks/:id", s.updateTask)
	authed.DELETE("/tasks/:id", s.deleteTask)
	authed.GET("/notifications", s.listNotifications)
	authed.GET("/notifications/unread-count", s.unreadCount)
	authed.PUT("/notifications/:id/read", s.markRead)
}

// Echo returns a ready-to-serve echo instance with the routes registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(s.logger)
	s.Register(e)
	return e
}
