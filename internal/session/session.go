// Package session owns the lifecycle of the synced cache: the initial bulk
// load, the change-feed subscription and recovery after the feed drops.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zenpa1/budget-tracker/internal/cache"
	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/feed"
	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/store"
)

// ErrAlreadyStarted is returned by a second call to Init.
var ErrAlreadyStarted = errors.New("session: already started")

// Options tunes reconnect behaviour.
type Options struct {
	// RetryBase is the delay before the first resubscribe attempt. It
	// doubles on every failed attempt up to RetryMax.
	RetryBase time.Duration
	RetryMax  time.Duration
}

func (o Options) withDefaults() Options {
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 30 * time.Second
	}
	if o.RetryMax < o.RetryBase {
		o.RetryMax = o.RetryBase
	}
	return o
}

// Status describes the health of the live-update channel.
type Status struct {
	Degraded   bool                `json:"degraded"`
	LastError  *apperrors.AppError `json:"last_error,omitempty"`
	Since      time.Time           `json:"since"`
	Reconnects int                 `json:"reconnects"`
	Loading    bool                `json:"loading"`
}

// Session is an explicit replacement for a process-wide data provider.
// Create one with New, start it with Init and stop it with Dispose.
type Session struct {
	store      store.Client
	subscriber feed.Subscriber
	cache      *cache.Cache
	opts       Options

	generation atomic.Uint64
	replaceMu  sync.Mutex

	mu      sync.Mutex
	health  Status
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// New creates a session over c. A nil subscriber disables live updates; the
// cache is then only refreshed by LoadAll and local commits.
func New(st store.Client, subscriber feed.Subscriber, c *cache.Cache, opts Options) *Session {
	return &Session{
		store:      st,
		subscriber: subscriber,
		cache:      c,
		opts:       opts.withDefaults(),
		health:     Status{Since: time.Now().UTC()},
		done:       make(chan struct{}),
	}
}

// Cache returns the cache the session keeps current.
func (s *Session) Cache() *cache.Cache {
	return s.cache
}

// Snapshot returns a consistent copy of every collection.
func (s *Session) Snapshot() cache.Snapshot {
	return s.cache.Snapshot()
}

// Health returns the current live-update status.
func (s *Session) Health() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.health
	h.Loading = s.cache.Loading()
	return h
}

// Init subscribes to the change feed, loads every collection and starts
// applying events in the background. A failed subscription does not fail
// Init: the session starts degraded and keeps retrying.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.mu.Unlock()

	if s.subscriber == nil {
		close(s.done)
		if err := s.LoadAll(ctx); err != nil {
			logger.Named("session").Warnw("Initial load incomplete", "error", err)
		}
		return nil
	}

	sub, err := s.subscribe(runCtx)
	if err != nil {
		s.degrade(err)
	}
	// Events that arrive during the load wait in the subscription buffer and
	// are applied after it lands.
	if err := s.LoadAll(ctx); err != nil {
		logger.Named("session").Warnw("Initial load incomplete", "error", err)
	}

	go s.run(runCtx, sub)
	return nil
}

// Dispose stops the subscription loop and waits for it to exit. It is safe
// to call more than once, and before Init.
func (s *Session) Dispose() {
	s.once.Do(func() {
		s.mu.Lock()
		cancel, started := s.cancel, s.started
		s.started = true
		s.mu.Unlock()

		if !started {
			close(s.done)
			return
		}
		cancel()
		<-s.done
	})
}

// LoadAll reads every collection concurrently and installs the result in
// one step. A collection that fails to load is left empty and its error is
// reported, but the others are still installed. If a newer LoadAll starts
// before this one finishes, this one's result is discarded.
func (s *Session) LoadAll(ctx context.Context) error {
	gen := s.generation.Add(1)
	s.cache.SetLoading(true)
	log := logger.Named("session")

	var (
		set    cache.LoadSet
		errsMu sync.Mutex
		errs   []error
	)
	fail := func(c models.Collection, err error) {
		log.Errorw("Failed to load collection", "collection", c, "error", err)
		errsMu.Lock()
		errs = append(errs, err)
		errsMu.Unlock()
	}

	// Goroutines never return an error so one failed read cannot cancel the
	// others.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		if set.Budgets, err = s.store.SelectBudgets(ctx); err != nil {
			set.Budgets = nil
			fail(models.CollectionBudgets, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if set.Expenses, err = s.store.SelectExpenses(ctx); err != nil {
			set.Expenses = nil
			fail(models.CollectionExpenses, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if set.Anomalies, err = s.store.SelectAnomalies(ctx); err != nil {
			set.Anomalies = nil
			fail(models.CollectionAnomalies, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if set.Notifications, err = s.store.SelectNotifications(ctx); err != nil {
			set.Notifications = nil
			fail(models.CollectionNotifications, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if set.FeedbackReports, err = s.store.SelectFeedbackReports(ctx); err != nil {
			set.FeedbackReports = nil
			fail(models.CollectionFeedbackReports, err)
		}
		return nil
	})
	_ = g.Wait()

	s.replaceMu.Lock()
	if gen != s.generation.Load() {
		s.replaceMu.Unlock()
		log.Debugw("Discarding stale load", "generation", gen)
		return nil
	}
	s.cache.Replace(set)
	s.replaceMu.Unlock()

	if len(errs) > 0 {
		return apperrors.Wrap(apperrors.ErrSync, errors.Join(errs...))
	}
	log.Infow("Collections loaded",
		"budgets", len(set.Budgets),
		"expenses", len(set.Expenses),
		"anomalies", len(set.Anomalies),
		"notifications", len(set.Notifications),
		"feedback_reports", len(set.FeedbackReports),
	)
	return nil
}

func (s *Session) subscribe(ctx context.Context) (feed.Subscription, error) {
	return s.subscriber.Subscribe(ctx, models.Collections()...)
}

// run applies events until ctx is cancelled, resubscribing with backoff
// whenever the feed drops. sub may be nil if the first subscribe failed.
func (s *Session) run(ctx context.Context, sub feed.Subscription) {
	defer close(s.done)
	log := logger.Named("session")

	attempt := 0
	for {
		if sub == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff(attempt, s.opts.RetryBase, s.opts.RetryMax)):
			}

			var err error
			sub, err = s.subscribe(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				attempt++
				s.degrade(err)
				continue
			}
			attempt = 0
			s.recover()
			// Cover whatever changed while we were disconnected.
			if err := s.LoadAll(ctx); err != nil {
				log.Warnw("Reload after reconnect incomplete", "error", err)
			}
		}

		err := s.consume(ctx, sub)
		_ = sub.Close()
		sub = nil
		if ctx.Err() != nil {
			return
		}
		s.degrade(err)
	}
}

// consume applies events from sub until it drops or ctx is cancelled.
func (s *Session) consume(ctx context.Context, sub feed.Subscription) error {
	log := logger.Named("session")
	events, errs := sub.Events(), sub.Err()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			if err == nil {
				err = feed.ErrClosed
			}
			return err
		case event, ok := <-events:
			if !ok {
				select {
				case err := <-errs:
					if err != nil {
						return err
					}
				default:
				}
				return feed.ErrClosed
			}
			if _, err := s.cache.ApplyChange(event); err != nil {
				log.Warnw("Dropping change event", "collection", event.Collection, "type", event.Type, "error", err)
			}
		}
	}
}

func (s *Session) degrade(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.health.Degraded {
		s.health.Since = time.Now().UTC()
	}
	s.health.Degraded = true
	s.health.LastError = apperrors.Wrap(apperrors.ErrSync, err)
	logger.Named("session").Warnw("Change feed unavailable", "error", err)
}

func (s *Session) recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.health.Degraded {
		return
	}
	s.health.Degraded = false
	s.health.Since = time.Now().UTC()
	s.health.Reconnects++
	logger.Named("session").Infow("Change feed reconnected", "reconnects", s.health.Reconnects)
}

// backoff returns base * 2^attempt, capped at ceiling.
func backoff(attempt int, base, ceiling time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}
