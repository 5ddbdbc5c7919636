package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zenpa1/budget-tracker/internal/cache"
	"github.com/zenpa1/budget-tracker/internal/feed"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/store"
	"github.com/zenpa1/budget-tracker/internal/testutil"
)

// fakeStore serves fixed collections. A non-nil gate blocks SelectBudgets
// until it is closed.
type fakeStore struct {
	store.Client

	mu       sync.Mutex
	budgets  []models.Budget
	expenses []models.Expense
	errs     map[models.Collection]error
	gate     chan struct{}
	calls    int
}

func (f *fakeStore) setBudgets(b ...models.Budget) {
	f.mu.Lock()
	f.budgets = b
	f.mu.Unlock()
}

func (f *fakeStore) SelectBudgets(ctx context.Context) ([]models.Budget, error) {
	f.mu.Lock()
	out, err, gate := f.budgets, f.errs[models.CollectionBudgets], f.gate
	f.calls++
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, err
}

func (f *fakeStore) SelectExpenses(context.Context) ([]models.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expenses, f.errs[models.CollectionExpenses]
}

func (f *fakeStore) SelectAnomalies(context.Context) ([]models.Anomaly, error) {
	return nil, nil
}

func (f *fakeStore) SelectNotifications(context.Context) ([]models.Notification, error) {
	return nil, nil
}

func (f *fakeStore) SelectFeedbackReports(context.Context) ([]models.FeedbackReport, error) {
	return nil, nil
}

func budget(id string, version int64) models.Budget {
	return models.Budget{
		Base:            models.Base{ID: id, Version: version},
		EventName:       "Offsite " + id,
		AllocatedAmount: decimal.NewFromInt(1000),
		Status:          models.BudgetStatusActive,
	}
}

func fastOptions() Options {
	return Options{RetryBase: 5 * time.Millisecond, RetryMax: 20 * time.Millisecond}
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoadAll_IsolatesFailures(t *testing.T) {
	st := &fakeStore{
		budgets: []models.Budget{budget("b1", 1)},
		expenses: []models.Expense{
			{Base: models.Base{ID: "e1", Version: 1}, BudgetID: "b1"},
		},
		errs: map[models.Collection]error{models.CollectionExpenses: errors.New("timeout")},
	}
	c := cache.New()
	c.Apply(models.Expense{Base: models.Base{ID: "stale", Version: 1}})
	s := New(st, nil, c, Options{})

	err := s.LoadAll(context.Background())
	testutil.AssertAppError(t, err, "SYNC_ERROR")

	snap := c.Snapshot()
	if len(snap.Budgets) != 1 {
		t.Errorf("budgets should still load, got %d", len(snap.Budgets))
	}
	if len(snap.Expenses) != 0 {
		t.Errorf("failed collection should be empty, got %d", len(snap.Expenses))
	}
	if snap.Loading {
		t.Error("loading should be cleared after a partial failure")
	}
}

func TestLoadAll_DiscardsStaleLoad(t *testing.T) {
	gate := make(chan struct{})
	st := &fakeStore{budgets: []models.Budget{budget("old", 1)}, gate: gate}
	c := cache.New()
	s := New(st, nil, c, Options{})

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.LoadAll(context.Background()) }()
	eventually(t, "first load to start", func() bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.calls == 1
	})

	// The second load sees new data and is not held at the gate.
	st.mu.Lock()
	st.budgets = []models.Budget{budget("new", 1)}
	st.gate = nil
	st.mu.Unlock()
	testutil.AssertNoError(t, s.LoadAll(context.Background()))

	close(gate)
	testutil.AssertNoError(t, <-firstDone)

	if _, ok := c.Budget("old"); ok {
		t.Error("stale load must not overwrite the newer one")
	}
	if _, ok := c.Budget("new"); !ok {
		t.Error("newer load should be installed")
	}
}

func TestInit_AppliesChangeEvents(t *testing.T) {
	st := &fakeStore{budgets: []models.Budget{budget("b1", 1)}}
	f := feed.NewMemory(0)
	c := cache.New()
	s := New(st, f, c, fastOptions())
	testutil.AssertNoError(t, s.Init(context.Background()))
	defer s.Dispose()

	if s.Health().Degraded {
		t.Fatal("session should start healthy")
	}

	updated := budget("b1", 2)
	updated.SpentAmount = decimal.NewFromInt(250)
	publish(t, f, feed.EventUpdate, updated)
	publish(t, f, feed.EventInsert, budget("b2", 1))

	eventually(t, "events to apply", func() bool {
		b, _ := c.Budget("b1")
		_, ok := c.Budget("b2")
		return b.Version == 2 && ok
	})
}

func TestInit_RecoversAfterDrop(t *testing.T) {
	st := &fakeStore{budgets: []models.Budget{budget("b1", 1)}}
	f := feed.NewMemory(0)
	c := cache.New()
	s := New(st, f, c, fastOptions())
	testutil.AssertNoError(t, s.Init(context.Background()))
	defer s.Dispose()

	eventually(t, "subscription", func() bool { return f.Subscribers() == 1 })

	// A change lands in the store while the feed is down.
	st.setBudgets(budget("b1", 1), budget("missed", 1))
	f.Drop()

	eventually(t, "reconnect", func() bool {
		h := s.Health()
		return h.Reconnects == 1 && !h.Degraded
	})
	h := s.Health()
	if h.LastError == nil || h.LastError.Code != "SYNC_ERROR" {
		t.Errorf("expected the drop recorded as SYNC_ERROR, got %+v", h.LastError)
	}
	eventually(t, "reload after reconnect", func() bool {
		_, ok := c.Budget("missed")
		return ok
	})
}

// flakySubscriber fails the first n subscribe calls.
type flakySubscriber struct {
	*feed.Memory
	mu    sync.Mutex
	fails int
}

func (f *flakySubscriber) Subscribe(ctx context.Context, collections ...models.Collection) (feed.Subscription, error) {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	f.mu.Unlock()
	return f.Memory.Subscribe(ctx, collections...)
}

func TestInit_StartsDegradedWhenSubscribeFails(t *testing.T) {
	st := &fakeStore{budgets: []models.Budget{budget("b1", 1)}}
	sub := &flakySubscriber{Memory: feed.NewMemory(0), fails: 2}
	c := cache.New()
	s := New(st, sub, c, fastOptions())

	testutil.AssertNoError(t, s.Init(context.Background()))
	defer s.Dispose()

	if _, ok := c.Budget("b1"); !ok {
		t.Error("initial load should run even without a feed")
	}
	eventually(t, "subscribe to succeed", func() bool { return sub.Subscribers() == 1 })
	eventually(t, "healthy status", func() bool { return !s.Health().Degraded })
}

func TestDispose(t *testing.T) {
	s := New(&fakeStore{}, feed.NewMemory(0), cache.New(), fastOptions())
	testutil.AssertNoError(t, s.Init(context.Background()))

	if err := s.Init(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	s.Dispose()
	s.Dispose()

	// Never started.
	New(&fakeStore{}, nil, cache.New(), Options{}).Dispose()
}

func TestBackoff(t *testing.T) {
	base, ceiling := 100*time.Millisecond, time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{20, time.Second},
	}
	for _, tt := range tests {
		if got := backoff(tt.attempt, base, ceiling); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func publish(t *testing.T, f *feed.Memory, typ feed.EventType, rec models.Record) {
	t.Helper()
	ev, err := feed.NewEvent(typ, rec)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := f.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}
