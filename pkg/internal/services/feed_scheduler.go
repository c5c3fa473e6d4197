package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// FeedSource loads the full feed of a scope.
type FeedSource interface {
	FetchFeed(ctx context.Context, scope models.Scope) ([]models.Post, error)
}

type SchedulerOptions struct {
	QueueSize int
	Metrics   *metrics.Metrics
}

// Scheduler is the only writer of the feed store. Remote events go through a
// FIFO queue drained one at a time by Run, optimistic mutations take the
// write lock directly so they show up before anything still queued.
type Scheduler struct {
	store      *FeedStore
	normalizer *Normalizer
	source     FeedSource
	metrics    *metrics.Metrics

	// writeMu serializes every store write and guards generation, scope and cancel,
	// when both are held it is taken before queueMu
	writeMu    sync.Mutex
	generation uint64
	scope      models.Scope
	cancel     context.CancelFunc
	closed     bool

	queueMu   sync.Mutex
	queue     []models.FeedEvent
	queueSize int
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewScheduler(store *FeedStore, source FeedSource, opts SchedulerOptions) *Scheduler {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	return &Scheduler{
		store:      store,
		normalizer: NewNormalizer(store.Has),
		source:     source,
		metrics:    opts.Metrics,
		scope:      models.ScopeAll,
		queueSize:  opts.QueueSize,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

func (s *Scheduler) Store() *FeedStore {
	return s.store
}

func (s *Scheduler) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Scheduler) Scope() models.Scope {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.scope
}

func (s *Scheduler) Generation() uint64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.generation
}

// Push normalizes a transport message and queues it. Malformed messages are
// logged and dropped, the feed is left alone.
func (s *Scheduler) Push(msg models.PushMessage) error {
	event, err := s.normalizer.Normalize(msg)
	if err != nil {
		log.Warn().Err(err).Str("type", msg.Type).Msg("Dropped malformed push message...")
		s.metrics.EventsDropped.WithLabelValues(metrics.DropMalformed).Inc()
		return err
	}
	return s.Enqueue(event)
}

func (s *Scheduler) Enqueue(event models.FeedEvent) error {
	s.queueMu.Lock()
	if s.isClosed() {
		s.queueMu.Unlock()
		return ErrSchedulerClosed
	}
	if len(s.queue) >= s.queueSize {
		dropped := s.queue[0]
		s.queue = s.queue[1:]
		s.metrics.EventsDropped.WithLabelValues(metrics.DropOverflow).Inc()
		log.Warn().Str("post", dropped.PostID()).Str("kind", dropped.Kind()).Msg("Feed queue is full, dropped oldest event...")
	}
	s.queue = append(s.queue, event)
	s.metrics.QueueDepth.Set(float64(len(s.queue)))
	s.queueMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns how many remote events wait to be applied.
func (s *Scheduler) Pending() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue)
}

// Run drains the queue until ctx is done or the scheduler is closed,
// yielding between events so user actions are not starved by a burst.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-s.wake:
		}

		for s.step() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			runtime.Gosched()
		}
	}
}

// Drain applies everything queued right now on the calling goroutine.
func (s *Scheduler) Drain() int {
	count := 0
	for s.step() {
		count++
	}
	return count
}

// step pops and applies one event, both under writeMu so no reset runs in between.
func (s *Scheduler) step() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return false
	}

	s.queueMu.Lock()
	if len(s.queue) == 0 {
		s.queueMu.Unlock()
		return false
	}
	event := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.metrics.QueueDepth.Set(float64(len(s.queue)))
	s.queueMu.Unlock()

	s.apply(event)
	return true
}

func (s *Scheduler) apply(event models.FeedEvent) {
	err := s.store.Apply(event)
	switch {
	case err == nil:
		s.metrics.EventsApplied.WithLabelValues(event.Kind()).Inc()
	case errors.Is(err, ErrOrphanPatch):
		s.metrics.EventsDropped.WithLabelValues(metrics.DropOrphan).Inc()
	default:
		log.Error().Err(err).Str("post", event.PostID()).Msg("An error occurred when applying feed event...")
	}
}

// Mutate runs fn with exclusive write access to the store, ahead of any queued event.
func (s *Scheduler) Mutate(fn func(store *FeedStore) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	return fn(s.store)
}

// LoadScope fetches the feed of scope and replaces the store with it, unless
// another scope change or Close happened while the fetch was in flight.
func (s *Scheduler) LoadScope(ctx context.Context, scope models.Scope) error {
	gen, fetchCtx, err := s.begin(ctx, scope)
	if err != nil {
		return err
	}
	return s.fetch(fetchCtx, gen, scope)
}

// SwitchScope starts loading scope in the background. The generation is
// bumped before returning so results of older loads are already stale.
func (s *Scheduler) SwitchScope(scope models.Scope) error {
	gen, fetchCtx, err := s.begin(context.Background(), scope)
	if err != nil {
		return err
	}
	go func() {
		if err := s.fetch(fetchCtx, gen, scope); err != nil && !errors.Is(err, ErrStaleScopeResult) {
			log.Error().Err(err).Str("scope", scope).Msg("An error occurred when loading feed...")
		}
	}()
	return nil
}

// Reload fetches the current scope again.
func (s *Scheduler) Reload(ctx context.Context) error {
	return s.LoadScope(ctx, s.Scope())
}

func (s *Scheduler) begin(ctx context.Context, scope models.Scope) (uint64, context.Context, error) {
	if scope != models.ScopeAll && scope != models.ScopeFollowing {
		return 0, nil, fmt.Errorf("%w: %q", ErrUnsupportedScope, scope)
	}

	s.writeMu.Lock()
	if s.closed {
		s.writeMu.Unlock()
		return 0, nil, ErrSchedulerClosed
	}
	s.generation++
	gen := s.generation
	s.scope = scope
	if s.cancel != nil {
		s.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.writeMu.Unlock()

	s.clearQueue()
	log.Debug().Str("scope", scope).Uint64("generation", gen).Msg("Loading feed scope...")
	return gen, fetchCtx, nil
}

func (s *Scheduler) fetch(ctx context.Context, gen uint64, scope models.Scope) error {
	posts, err := s.source.FetchFeed(ctx, scope)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed || gen != s.generation {
		log.Debug().Str("scope", scope).Uint64("generation", gen).Msg("Discarded feed result of previous scope...")
		s.metrics.EventsDropped.WithLabelValues(metrics.DropStale).Inc()
		return ErrStaleScopeResult
	}
	s.cancel()
	s.cancel = nil
	if err != nil {
		return fmt.Errorf("failed to fetch %s feed: %w", scope, err)
	}

	s.store.ReplaceAll(posts)
	s.metrics.FeedResets.Inc()
	// Nothing queued against the previous contents survives the reset
	s.clearQueue()
	log.Info().Str("scope", scope).Int("count", len(posts)).Msg("Feed loaded.")
	return nil
}

func (s *Scheduler) clearQueue() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if len(s.queue) > 0 {
		s.metrics.EventsDropped.WithLabelValues(metrics.DropCleared).Add(float64(len(s.queue)))
	}
	s.queue = nil
	s.metrics.QueueDepth.Set(0)
}

func (s *Scheduler) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close is the unmount of the view, in-flight fetches are ignored on arrival
// and queued events are thrown away.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		s.generation++
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.writeMu.Unlock()

		s.clearQueue()
		close(s.done)
		log.Debug().Msg("Feed scheduler closed.")
	})
}
