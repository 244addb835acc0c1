package board

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"taskboard/domain"
)

func newTestBoard(t *testing.T, svc TaskService) *Board {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return New(svc, logger)
}

func seeded() *fakeService {
	svc := newFakeService()
	svc.tasks = []domain.Task{
		task(3, domain.StatusPending),
		task(2, domain.StatusCompleted),
		task(1, domain.StatusPending),
	}
	svc.users = []domain.User{{ID: 1, Name: "Ada", Email: "ada@example.com"}, {ID: 2, Name: "Linus", Email: "linus@example.com"}}
	svc.nextID = 4
	return svc
}

func TestLoadGroupsTasksAndUsers(t *testing.T) {
	b := newTestBoard(t, seeded())
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	cols, _ := b.Columns()
	if n := len(cols.Column(domain.StatusPending).Tasks); n != 2 {
		t.Fatalf("expected 2 pending tasks, got %d", n)
	}
	if n := len(cols.Column(domain.StatusCompleted).Tasks); n != 1 {
		t.Fatalf("expected 1 completed task, got %d", n)
	}
	if n := len(cols.Column(domain.StatusInProgress).Tasks) + len(cols.Column(domain.StatusCancelled).Tasks); n != 0 {
		t.Fatalf("expected empty columns, got %d tasks", n)
	}
	if len(b.Users()) != 2 {
		t.Fatalf("expected 2 users, got %d", len(b.Users()))
	}
	if u, ok := b.User(2); !ok || u.Name != "Linus" {
		t.Fatalf("unexpected user lookup %+v %v", u, ok)
	}
	if !b.Loaded() || b.LoadErr() != nil {
		t.Fatalf("expected loaded board without error")
	}
}

func TestLoadFailureKeepsContents(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	svc.tasks = nil
	svc.listErr = errors.New("connection refused")

	err := b.Load(context.Background())
	var ferr *domain.FetchError
	if !errors.As(err, &ferr) || ferr.Resource != "tasks" {
		t.Fatalf("expected tasks fetch error, got %v", err)
	}
	var rerr *domain.RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected remote error inside fetch error, got %v", err)
	}
	if b.Store().Len() != 3 || len(b.Users()) != 2 {
		t.Fatalf("load failure changed contents")
	}
	if b.LoadErr() == nil {
		t.Fatal("expected load error to be recorded")
	}

	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if b.LoadErr() != nil || b.Store().Len() != 0 {
		t.Fatalf("successful reload should clear error and apply listing")
	}
}

func TestLoadUsersFailure(t *testing.T) {
	svc := seeded()
	svc.usersErr = errors.New("boom")
	b := newTestBoard(t, svc)

	err := b.Load(context.Background())
	var ferr *domain.FetchError
	if !errors.As(err, &ferr) || ferr.Resource != "users" {
		t.Fatalf("expected users fetch error, got %v", err)
	}
	if b.Loaded() || b.Store().Len() != 0 {
		t.Fatal("partial load should not be applied")
	}
}

func TestLoadWithRetry(t *testing.T) {
	svc := seeded()
	svc.listErr = errors.New("temporarily unavailable")
	b := newTestBoard(t, svc)

	if err := b.LoadWithRetry(context.Background(), 3, time.Millisecond); err != nil {
		t.Fatalf("load with retry: %v", err)
	}
	if got := svc.count("list tasks"); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestLoadWithRetryStopsOnRejection(t *testing.T) {
	svc := seeded()
	svc.listErr = &domain.ValidationError{Status: http.StatusUnauthorized, Detail: "Could not validate credentials"}
	b := newTestBoard(t, svc)

	err := b.LoadWithRetry(context.Background(), 3, time.Millisecond)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if got := svc.count("list tasks"); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestCreateUpdateDeleteLifecycle(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	created, err := b.Create(ctx, domain.TaskCreate{Title: "Write docs"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != domain.StatusPending || created.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected defaults %+v", created)
	}
	if first := b.Tasks()[0]; first.ID != created.ID {
		t.Fatalf("created task not first: %d", first.ID)
	}
	cols, _ := b.Columns()
	if st, ok := cols.Locate(created.ID); !ok || st != domain.StatusPending {
		t.Fatalf("created task in %q", st)
	}

	if _, err := b.ChangeStatus(ctx, created.ID, domain.StatusCompleted); err != nil {
		t.Fatalf("change status: %v", err)
	}
	cols, _ = b.Columns()
	if st, _ := cols.Locate(created.ID); st != domain.StatusCompleted {
		t.Fatalf("task should have moved to completed, found in %q", st)
	}
	if cols.Total() != b.Store().Len() {
		t.Fatalf("columns out of step with store")
	}

	ok, err := b.Delete(ctx, created.ID, Accept)
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, found := b.Task(created.ID); found {
		t.Fatal("deleted task still stored")
	}
	cols, _ = b.Columns()
	if _, found := cols.Locate(created.ID); found {
		t.Fatal("deleted task still grouped")
	}
}

func TestCreateRejectedLeavesStore(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := b.Store().Version()

	_, err := b.Create(ctx, domain.TaskCreate{})
	if got := domain.UserMessage(err, "Failed to save task"); got != "title is required" {
		t.Fatalf("unexpected message %q", got)
	}
	if b.Store().Version() != before {
		t.Fatal("store changed after rejected create")
	}
}

func TestUpdateRejectedLeavesStore(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	before, _ := b.Task(1)
	svc.writeErr = &domain.ValidationError{Status: http.StatusUnprocessableEntity, Detail: "title is required"}

	empty := ""
	_, err := b.Update(ctx, 1, domain.TaskUpdate{Title: &empty})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Detail != "title is required" {
		t.Fatalf("expected validation error, got %v", err)
	}
	after, _ := b.Task(1)
	if after != before {
		t.Fatalf("task changed after rejected update: %+v", after)
	}
}

func TestUpdateTransportFailureIsGeneric(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	svc.writeErr = errors.New("connection reset")

	_, err := b.ChangeStatus(ctx, 1, domain.StatusInProgress)
	if got := domain.UserMessage(err, "Failed to update task"); got != "Failed to update task" {
		t.Fatalf("unexpected message %q", got)
	}
	if tk, _ := b.Task(1); tk.Status != domain.StatusPending {
		t.Fatalf("status changed after failed update: %s", tk.Status)
	}
}

func TestUpdateUnknownToStoreIsInvariantViolation(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	// Board not loaded, so the service knows task 1 but the store does not.
	_, err := b.ChangeStatus(context.Background(), 1, domain.StatusCompleted)
	if !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	if b.Store().Len() != 0 {
		t.Fatal("store gained a task")
	}
}

func TestChangeStatusIdempotent(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	first, err := b.ChangeStatus(ctx, 3, domain.StatusInProgress)
	if err != nil {
		t.Fatalf("first change: %v", err)
	}
	colsBefore, _ := b.Columns()
	second, err := b.ChangeStatus(ctx, 3, domain.StatusInProgress)
	if err != nil {
		t.Fatalf("second change: %v", err)
	}
	if first != second {
		t.Fatalf("repeated change altered task: %+v vs %+v", first, second)
	}
	colsAfter, _ := b.Columns()
	for i := range colsBefore {
		if !equalIDs(ids(colsBefore[i].Tasks), ids(colsAfter[i].Tasks)) {
			t.Fatalf("column %s changed", colsBefore[i].Status)
		}
	}
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	_, err := b.ChangeStatus(context.Background(), 1, "archived")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if svc.count("update") != 0 {
		t.Fatal("service called for invalid status")
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	for name, c := range map[string]Confirmer{"nil": nil, "decline": Decline} {
		ok, err := b.Delete(ctx, 1, c)
		if err != nil || ok {
			t.Fatalf("%s: expected declined delete, got %v %v", name, ok, err)
		}
	}
	if svc.count("delete") != 0 {
		t.Fatal("service called without confirmation")
	}
	if _, found := b.Task(1); !found {
		t.Fatal("task removed without confirmation")
	}
}

func TestDeleteFailureKeepsTask(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	svc.writeErr = errors.New("gateway timeout")

	ok, err := b.Delete(ctx, 1, Accept)
	if ok || err == nil {
		t.Fatalf("expected failed delete, got %v %v", ok, err)
	}
	if domain.UserMessage(err, "Failed to delete task") != "Failed to delete task" {
		t.Fatalf("unexpected message for %v", err)
	}
	if _, found := b.Task(1); !found {
		t.Fatal("task removed after failed delete")
	}
}

func TestDeleteUnknownTask(t *testing.T) {
	b := newTestBoard(t, seeded())
	ok, err := b.Delete(context.Background(), 42, Accept)
	if ok || !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected not found, got %v %v", ok, err)
	}
}

func TestDeletedTaskNotResurrectedByStaleUpdate(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	stale, _ := b.Task(1)
	if ok, err := b.Delete(ctx, 1, Accept); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}

	if err := b.Store().Replace(stale); !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	if _, found := b.Task(1); found {
		t.Fatal("deleted task resurrected")
	}
}

func TestPromptConfirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		var out strings.Builder
		p := Prompt{In: strings.NewReader(tt.answer), Out: &out}
		got, err := p.Confirm(context.Background(), domain.Task{ID: 7, Title: "Ship it"})
		if err != nil {
			t.Fatalf("%q: %v", tt.answer, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %v, got %v", tt.answer, tt.want, got)
		}
		if !strings.Contains(out.String(), `#7 "Ship it"`) {
			t.Fatalf("unexpected prompt %q", out.String())
		}
	}
}

func TestColumnsMemoizedByVersion(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, v1 := b.Columns()
	_, v2 := b.Columns()
	if v1 != v2 {
		t.Fatalf("version changed without mutation: %d != %d", v1, v2)
	}
	if _, err := b.Create(ctx, domain.TaskCreate{Title: "new"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	cols, v3 := b.Columns()
	if v3 == v1 || cols.Total() != 4 {
		t.Fatalf("columns not regrouped after create: version %d total %d", v3, cols.Total())
	}
}

// blockingService holds ListTasks until release is closed.
type blockingService struct {
	*fakeService
	release chan struct{}
}

func (s *blockingService) ListTasks(ctx context.Context) ([]domain.Task, error) {
	<-s.release
	return s.fakeService.ListTasks(ctx)
}

func TestCloseDropsLateResponses(t *testing.T) {
	svc := &blockingService{fakeService: seeded(), release: make(chan struct{})}
	b := newTestBoard(t, svc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Load(context.Background())
	}()
	b.Close()
	close(svc.release)
	wg.Wait()

	if b.Store().Len() != 0 || b.Loaded() {
		t.Fatal("closed board applied a late load")
	}
	if _, err := b.Create(context.Background(), domain.TaskCreate{Title: "late"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Store().Len() != 0 {
		t.Fatal("closed board applied a late create")
	}
}

func TestConcurrentMutations(t *testing.T) {
	svc := seeded()
	b := newTestBoard(t, svc)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Create(ctx, domain.TaskCreate{Title: "parallel"}); err != nil {
				t.Errorf("create: %v", err)
			}
			b.Columns()
		}()
	}
	wg.Wait()

	cols, _ := b.Columns()
	if cols.Total() != 23 || b.Store().Len() != 23 {
		t.Fatalf("expected 23 tasks, got columns=%d store=%d", cols.Total(), b.Store().Len())
	}
}
