// Package api serves the task board over HTTP: the grouped columns, the task
// form operations and the notification panel.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/board"
	"taskboard/domain"
)

const maxBodySize = 64 << 10

var errInvalidBody = errors.New("invalid body")

// handlers holds what every route needs.
type handlers struct {
	board   Board
	inbox   Inbox
	logger  *log.Logger
	metrics *Metrics
	now     func() time.Time
}

// Register wires up all dashboard routes on the provided Echo instance.
func Register(e *echo.Echo, b Board, in Inbox, logger *log.Logger, metrics *Metrics) {
	h := &handlers{board: b, inbox: in, logger: logger, metrics: metrics, now: time.Now}

	e.GET("/healthz", h.healthz)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	g := e.Group("/api")
	g.GET("/board", h.getBoard)
	g.POST("/board/reload", h.reloadBoard)
	g.GET("/users", h.getUsers)
	g.POST("/tasks", h.createTask)
	g.PUT("/tasks/:id", h.updateTask)
	g.PUT("/tasks/:id/status", h.changeStatus)
	g.DELETE("/tasks/:id", h.deleteTask)
	g.GET("/notifications", h.getNotifications)
	g.POST("/notifications/reload", h.reloadNotifications)
	g.PUT("/notifications/:id/read", h.markRead)
}

func (h *handlers) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *handlers) getBoard(c echo.Context) (err error) {
	rm := newRequestMetrics(h.logger, c.Path())
	defer func() { rm.Log(c.Response().Status, err) }()
	return h.renderBoard(c, rm)
}

func (h *handlers) renderBoard(c echo.Context, rm *requestMetrics) error {
	cols, version := h.board.Columns()
	resp := boardResponse{
		Columns: make([]columnView, 0, len(cols)),
		Total:   cols.Total(),
		Version: version,
		Loaded:  h.board.Loaded(),
	}
	if loadErr := h.board.LoadErr(); loadErr != nil {
		resp.Error = "Failed to load tasks"
	}
	now := h.now()
	for _, col := range cols {
		view := columnView{Status: col.Status, Label: col.Label, Count: len(col.Tasks), Tasks: make([]taskView, len(col.Tasks))}
		for i, t := range col.Tasks {
			view.Tasks[i] = taskView{Task: t, Overdue: t.Overdue(now)}
		}
		resp.Columns = append(resp.Columns, view)
		h.metrics.observeColumn(col.Status, len(col.Tasks))
	}
	rm.SetTasksReturned(resp.Total)
	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) reloadBoard(c echo.Context) (err error) {
	rm := newRequestMetrics(h.logger, c.Path())
	defer func() { rm.Log(c.Response().Status, err) }()

	start := time.Now()
	loadErr := h.board.Load(c.Request().Context())
	rm.ObserveRemote(time.Since(start))
	if loadErr != nil {
		rm.SetErrorStage("load")
		return h.fail(c, loadErr, "Failed to load tasks")
	}
	return h.renderBoard(c, rm)
}

func (h *handlers) getUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, h.board.Users())
}

func (h *handlers) createTask(c echo.Context) (err error) {
	rm := newRequestMetrics(h.logger, c.Path())
	defer func() { rm.Log(c.Response().Status, err) }()

	var form domain.TaskCreate
	if err := decodeBody(c, &form); err != nil {
		rm.SetErrorStage("decode")
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: err.Error()})
	}
	if err := form.Validate(); err != nil {
		rm.SetErrorStage("validate")
		return h.fail(c, err, "")
	}

	start := time.Now()
	task, createErr := h.board.Create(c.Request().Context(), form)
	rm.ObserveRemote(time.Since(start))
	if createErr != nil {
		rm.SetErrorStage("remote")
		return h.fail(c, createErr, "Failed to save task")
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *handlers) updateTask(c echo.Context) (err error) {
	rm := newRequestMetrics(h.logger, c.Path())
	defer func() { rm.Log(c.Response().Status, err) }()

	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "invalid task id"})
	}
	var upd domain.TaskUpdate
	if err := decodeBody(c, &upd); err != nil {
		rm.SetErrorStage("decode")
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: err.Error()})
	}
	if upd.Empty() {
		return h.fail(c, &domain.ValidationError{Detail: "no fields to update"}, "")
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return h.fail(c, &domain.ValidationError{Detail: "title is required"}, "")
	}

	start := time.Now()
	task, updErr := h.board.Update(c.Request().Context(), id, upd)
	rm.ObserveRemote(time.Since(start))
	if updErr != nil {
		rm.SetErrorStage("remote")
		return h.fail(c, updErr, "Failed to save task")
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) changeStatus(c echo.Context) (err error) {
	rm := newRequestMetrics(h.logger, c.Path())
	defer func() { rm.Log(c.Response().Status, err) }()

	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "invalid task id"})
	}
	var req statusRequest
	if err := decodeBody(c, &req); err != nil {
		rm.SetErrorStage("decode")
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: err.Error()})
	}

	start := time.Now()
	task, chErr := h.board.ChangeStatus(c.Request().Context(), id, req.Status)
	rm.ObserveRemote(time.Since(start))
	if chErr != nil {
		rm.SetErrorStage("remote")
		return h.fail(c, chErr, "Failed to update task")
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) deleteTask(c echo.Context) (err error) {
	rm := newRequestMetrics(h.logger, c.Path())
	defer func() { rm.Log(c.Response().Status, err) }()

	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "invalid task id"})
	}
	confirmed, _ := strconv.ParseBool(c.QueryParam("confirm"))
	if !confirmed {
		rm.SetErrorStage("confirm")
		return c.JSON(http.StatusConflict, detailResponse{Detail: "deleting a task requires confirm=true"})
	}

	start := time.Now()
	_, delErr := h.board.Delete(c.Request().Context(), id, board.Accept)
	rm.ObserveRemote(time.Since(start))
	if delErr != nil {
		rm.SetErrorStage("remote")
		return h.fail(c, delErr, "Failed to delete task")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) getNotifications(c echo.Context) error {
	items := h.inbox.Notifications()
	now := h.now()
	resp := notificationsResponse{
		Notifications: make([]notificationView, len(items)),
		UnreadCount:   h.inbox.UnreadCount(),
	}
	for i, n := range items {
		resp.Notifications[i] = notificationView{Notification: n, Age: n.CreatedAt.Age(now)}
	}
	if h.inbox.LoadErr() != nil {
		resp.Error = "Failed to load notifications"
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) reloadNotifications(c echo.Context) error {
	// A failed load leaves the panel empty with its error set, which the
	// listing reports.
	_ = h.inbox.Load(c.Request().Context())
	return h.getNotifications(c)
}

func (h *handlers) markRead(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "invalid notification id"})
	}
	if err := h.inbox.MarkRead(c.Request().Context(), id); err != nil {
		return h.fail(c, err, "Failed to mark notification as read")
	}
	return h.getNotifications(c)
}

// fail maps a controller error onto a response. Service rejections keep their
// detail; everything else is reported with the generic message.
func (h *handlers) fail(c echo.Context, err error, generic string) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		status := verr.Status
		if status < 400 || status >= 500 {
			status = http.StatusUnprocessableEntity
		}
		return c.JSON(status, detailResponse{Detail: verr.Error()})
	case errors.Is(err, domain.ErrNoSession):
		return c.JSON(http.StatusUnauthorized, detailResponse{Detail: "not logged in"})
	case errors.Is(err, domain.ErrSessionExpired):
		return c.JSON(http.StatusUnauthorized, detailResponse{Detail: "session expired; log in again"})
	case errors.Is(err, domain.ErrInvariant):
		h.logger.WithError(err).Error("board invariant violated")
		return c.JSON(http.StatusInternalServerError, detailResponse{Detail: http.StatusText(http.StatusInternalServerError)})
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, domain.ErrNotificationNotFound):
		return c.JSON(http.StatusNotFound, detailResponse{Detail: err.Error()})
	}
	h.logger.WithError(err).Warn("dashboard request failed")
	return c.JSON(http.StatusBadGateway, detailResponse{Detail: generic})
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errInvalidBody
	}
	return nil
}

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
