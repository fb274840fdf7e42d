package region

import (
	"context"
	"dashregiond/internal/logger"
	"iter"
	"sync"
	"time"
)

type options struct {
	logger   logger.Logger
	interval time.Duration
}

// Option configures a Timeline.
type Option func(*options)

// WithLogger sets the logger used by the filter worker.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithFilterInterval overrides FilterInterval. Non-positive values are ignored.
func WithFilterInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// Timeline is a set of unique regions. Adding a new region fires
// EventRegionAdd; a background worker drops regions whose end time is
// behind the start of the seek range and fires EventRegionRemove for each.
//
// A released Timeline ignores further use: AddRegion is a no-op, Regions
// yields nothing and Subscribe returns an inert subscription.
//
// AddRegion and filter passes run as exclusive turns: a membership change
// and the notifications it causes complete before the next change starts.
// Handlers may read the timeline but must not call AddRegion.
type Timeline[T any] struct {
	// turn serializes AddRegion and filter passes through notification.
	turn sync.Mutex

	mu       sync.Mutex
	regions  []Region[T]
	released bool

	seekRange WindowFunc
	notifier  *notifier[T]
	logger    logger.Logger
	interval  time.Duration

	// Control
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Timeline and starts its filter worker. seekRange is called
// once per filter pass and its result is never cached.
func New[T any](seekRange WindowFunc, opts ...Option) *Timeline[T] {
	o := options{
		logger:   logger.Nop(),
		interval: FilterInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Timeline[T]{
		seekRange: seekRange,
		notifier:  newNotifier[T](),
		logger:    o.logger,
		interval:  o.interval,
		ctx:       ctx,
		cancel:    cancel,
	}
	go t.filterWorker()
	return t
}

// Subscribe registers h for events of the given kind.
func (t *Timeline[T]) Subscribe(kind EventKind, h Handler[T]) *Subscription {
	return t.notifier.subscribe(kind, h)
}

// AddRegion admits r unless a similar region is already tracked, in which
// case r is silently discarded. On admission EventRegionAdd is delivered
// before AddRegion returns.
//
// r is not validated. A region with EndTime < StartTime or non-finite times
// is stored as given; one that already ends before the seek range is dropped
// by the next filter pass, and one with a NaN end time is never dropped.
func (t *Timeline[T]) AddRegion(r Region[T]) {
	t.turn.Lock()
	defer t.turn.Unlock()

	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	for _, existing := range t.regions {
		if Similar(existing, r) {
			t.mu.Unlock()
			t.logger.Debugf("Ignoring duplicate region %s/%s", r.SchemeIDURI, r.ID)
			return
		}
	}
	t.regions = append(t.regions, r)
	t.mu.Unlock()

	t.notifier.notify(Event[T]{Kind: EventRegionAdd, Region: r})
}

// Regions returns a read-only view of the regions tracked at call time.
// Iteration order is unspecified.
func (t *Timeline[T]) Regions() iter.Seq[Region[T]] {
	t.mu.Lock()
	snapshot := make([]Region[T], len(t.regions))
	copy(snapshot, t.regions)
	t.mu.Unlock()

	return func(yield func(Region[T]) bool) {
		for _, r := range snapshot {
			if !yield(r) {
				return
			}
		}
	}
}

// Len returns the number of tracked regions.
func (t *Timeline[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.regions)
}

// Release stops the filter worker and forgets every region without firing
// EventRegionRemove. It is safe to call more than once.
func (t *Timeline[T]) Release() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	t.regions = nil
	t.mu.Unlock()

	t.cancel()
	t.notifier.close()
}

// filterWorker runs in the background until the timeline is released.
func (t *Timeline[T]) filterWorker() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			t.logger.Debugf("Region filter worker stopped.")
			return
		case <-ticker.C:
			t.filterBySeekRange()
		}
	}
}

// filterBySeekRange drops every region that ends before the seek range
// starts. Only the start matters: future regions may still become
// relevant, past ones can never be seeked to again.
func (t *Timeline[T]) filterBySeekRange() {
	t.turn.Lock()
	defer t.turn.Unlock()

	window := t.seekRange()

	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	kept := make([]Region[T], 0, len(t.regions))
	var removed []Region[T]
	for _, r := range t.regions {
		if r.EndTime < window.Start {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	t.regions = kept
	t.mu.Unlock()

	for _, r := range removed {
		t.notifier.notify(Event[T]{Kind: EventRegionRemove, Region: r})
	}

	if len(removed) > 0 {
		t.logger.Infof("Evicted %d regions behind seek range start %.3f. Current timeline size: %d regions.", len(removed), window.Start, len(kept))
	} else {
		t.logger.Debugf("No regions to evict. Current timeline size: %d regions.", len(kept))
	}
}
