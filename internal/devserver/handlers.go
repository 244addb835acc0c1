package devserver

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

const (
	maxBodySize = 64 << 10
	ctxUserID   = "devserver.user_id"
	serviceName = "devserver"
	headerReqID = "X-Request-ID"
)

type detailResponse struct {
	Detail any `json:"detail"`
}

type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type registeredResponse struct {
	domain.User
	Message string `json:"message"`
}

type unreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

func detail(c echo.Context, status int, msg string) error {
	return c.JSON(status, detailResponse{Detail: msg})
}

// invalid answers the way request validation does: 422 with a list of field errors.
func invalid(c echo.Context, loc, msg string) error {
	return c.JSON(http.StatusUnprocessableEntity, detailResponse{Detail: []fieldError{{
		Loc:  []string{"body", loc},
		Msg:  msg,
		Type: "value_error",
	}}})
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func userID(c echo.Context) int64 {
	id, _ := c.Get(ctxUserID).(int64)
	return id
}

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(status)
			}
		} else {
			logger.WithError(err).Error("devserver handler failed")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = detail(c, status, msg)
	}
}

func (s *Server) faultMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		route := req.Method + " " + c.Path()

		s.mu.Lock()
		s.seenHeader[echo.HeaderAuthorization] = req.Header.Get(echo.HeaderAuthorization)
		s.seenHeader[headerReqID] = req.Header.Get(headerReqID)
		latency := s.latency
		var injected *fault
		if f, ok := s.faults[route]; ok && f.remaining > 0 {
			f.remaining--
			injected = &fault{status: f.status, detail: f.detail}
			if f.remaining == 0 {
				delete(s.faults, route)
			}
		}
		s.mu.Unlock()

		if latency > 0 {
			timer := time.NewTimer(latency)
			select {
			case <-req.Context().Done():
				timer.Stop()
				return req.Context().Err()
			case <-timer.C:
			}
		}
		if injected != nil {
			s.logger.WithFields(log.Fields{"route": route, "status": injected.status}).Debug("devserver injected fault")
			if injected.detail == "" {
				return c.NoContent(injected.status)
			}
			return detail(c, injected.status, injected.detail)
		}
		return next(c)
	}
}

func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := s.auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			s.logger.WithError(err).Debug("devserver rejected token")
			return detail(c, http.StatusUnauthorized, detailUnauthorized)
		}
		c.Set(ctxUserID, id)
		return next(c)
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "service": serviceName})
}

func (s *Server) register(c echo.Context) error {
	var reg domain.Registration
	if err := decodeBody(c, &reg); err != nil {
		return invalid(c, "user", err.Error())
	}
	u, err := s.AddUser(reg)
	switch {
	case errors.Is(err, ErrEmailTaken):
		return detail(c, http.StatusBadRequest, detailEmailTaken)
	case errors.Is(err, errFieldsIncomplete):
		return invalid(c, "user", err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, registeredResponse{User: u, Message: "User created successfully"})
}

func (s *Server) login(c echo.Context) error {
	var creds domain.Credentials
	if err := decodeBody(c, &creds); err != nil {
		return invalid(c, "login_data", err.Error())
	}
	l, err := s.Authenticate(creds)
	if errors.Is(err, ErrBadCredentials) {
		return detail(c, http.StatusUnauthorized, detailBadCredentials)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (s *Server) listUsers(c echo.Context) error {
	s.mu.Lock()
	users := make([]domain.User, len(s.accounts))
	for i, a := range s.accounts {
		users[i] = a.user
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, users)
}

func (s *Server) listTasks(c echo.Context) error {
	s.mu.Lock()
	tasks := s.visibleTasksLocked(userID(c))
	s.mu.Unlock()
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) createTask(c echo.Context) error {
	var in domain.TaskCreate
	if err := decodeBody(c, &in); err != nil {
		return invalid(c, "task", err.Error())
	}
	if strings.TrimSpace(in.Title) == "" {
		return detail(c, http.StatusUnprocessableEntity, detailTitleRequired)
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	uid := userID(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := domain.NewTimestamp(s.now())
	t := domain.Task{
		ID:          s.nextTask,
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.StatusPending,
		Priority:    in.Priority,
		AssignedTo:  in.AssignedTo,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   uid,
	}
	s.nextTask++
	s.tasks = append(s.tasks, t)
	if t.AssignedTo != nil && *t.AssignedTo != uid {
		s.notifyLocked(*t.AssignedTo, "New task assigned", "The task '"+t.Title+"' was assigned to you.")
	}
	return c.JSON(http.StatusOK, s.renderLocked(t))
}

func (s *Server) updateTask(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return invalid(c, "task_id", "value is not a valid integer")
	}
	var in domain.TaskUpdate
	if err := decodeBody(c, &in); err != nil {
		return invalid(c, "task_update", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndexLocked(id)
	if i < 0 {
		return detail(c, http.StatusNotFound, detailTaskMissing)
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return detail(c, http.StatusUnprocessableEntity, detailTitleRequired)
	}
	prev := s.tasks[i]
	t := &s.tasks[i]
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.AssignedTo != nil {
		assignee := *in.AssignedTo
		t.AssignedTo = &assignee
	}
	if in.DueDate != nil {
		due := *in.DueDate
		t.DueDate = &due
	}
	if !in.Empty() {
		t.UpdatedAt = domain.NewTimestamp(s.now())
		if in.Status != nil && *in.Status != prev.Status && prev.AssignedTo != nil {
			s.notifyLocked(*prev.AssignedTo, "Task status changed",
				"The task '"+prev.Title+"' changed status to "+string(*in.Status)+".")
		}
	}
	return c.JSON(http.StatusOK, s.renderLocked(*t))
}

func (s *Server) deleteTask(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return invalid(c, "task_id", "value is not a valid integer")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndexLocked(id)
	if i < 0 {
		return detail(c, http.StatusNotFound, detailTaskMissing)
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return c.JSON(http.StatusOK, messageResponse{Message: "Task deleted successfully"})
}

func (s *Server) listNotifications(c echo.Context) error {
	uid := userID(c)
	s.mu.Lock()
	out := make([]domain.Notification, 0)
	for _, n := range s.notes {
		if n.UserID == uid {
			out = append(out, n)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return c.JSON(http.StatusOK, out)
}

func (s *Server) markRead(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return invalid(c, "notification_id", "value is not a valid integer")
	}
	uid := userID(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID == id && s.notes[i].UserID == uid {
			s.notes[i].IsRead = true
			return c.JSON(http.StatusOK, messageResponse{Message: "Notification marked as read"})
		}
	}
	return detail(c, http.StatusNotFound, detailNoteMissing)
}

func (s *Server) unreadCount(c echo.Context) error {
	uid := userID(c)
	s.mu.Lock()
	n := 0
	for _, note := range s.notes {
		if note.UserID == uid && !note.IsRead {
			n++
		}
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, unreadCountResponse{UnreadCount: n})
}
