package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// Clock abstracts time for the limiters so tests can drive it.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	clock       Clock
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return newSlidingWindow(maxRequests, windowSize, SystemClock)
}

func newSlidingWindow(maxRequests int, windowSize time.Duration, clock Clock) *SlidingWindow {
	capacity := maxRequests
	if capacity > 1024 {
		capacity = 1024
	}
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, capacity),
		clock:       clock,
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	if sw.delayLocked(now) > 0 {
		return false
	}
	sw.requests = append(sw.requests, now)
	return true
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		sw.mu.Lock()
		now := sw.clock.Now()
		delay := sw.delayLocked(now)
		if delay <= 0 {
			sw.requests = append(sw.requests, now)
			sw.mu.Unlock()
			return nil
		}
		sw.mu.Unlock()

		if err := sw.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// Len returns the number of requests inside the current window.
func (sw *SlidingWindow) Len() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cleanOldRequests(sw.clock.Now())
	return len(sw.requests)
}

// delay returns how long to wait until the window has a free slot.
func (sw *SlidingWindow) delay(now time.Time) time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.delayLocked(now)
}

func (sw *SlidingWindow) delayLocked(now time.Time) time.Duration {
	sw.cleanOldRequests(now)
	if len(sw.requests) < sw.maxRequests {
		return 0
	}
	// the oldest request has to leave the window first
	return sw.requests[len(sw.requests)-sw.maxRequests].Add(sw.windowSize).Sub(now)
}

func (sw *SlidingWindow) record(t time.Time) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.requests = append(sw.requests, t)
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// Rate is a request quota over an interval.
type Rate struct {
	Limit    int
	Interval time.Duration
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Limit, r.Interval)
}

// Journal persists admitted requests so quotas survive restarts.
type Journal interface {
	Since(t time.Time) ([]time.Time, error)
	Append(t time.Time) error
}

// Multi admits a request only when every one of its windows has capacity.
type Multi struct {
	rates   []Rate
	windows []*SlidingWindow
	journal Journal
	clock   Clock
	onWait  func(d time.Duration, rate Rate)
	mu      sync.Mutex
}

// Option configures a Multi limiter.
type Option func(*Multi)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Multi) { m.clock = c }
}

// WithJournal persists admissions and restores them on creation.
func WithJournal(j Journal) Option {
	return func(m *Multi) { m.journal = j }
}

// WithWaitHook is called each time the limiter has to sleep.
func WithWaitHook(fn func(d time.Duration, rate Rate)) Option {
	return func(m *Multi) { m.onWait = fn }
}

// NewMulti creates a limiter enforcing every rate at once.
func NewMulti(rates []Rate, opts ...Option) (*Multi, error) {
	m := &Multi{clock: SystemClock}
	for _, opt := range opts {
		opt(m)
	}

	var longest time.Duration
	for _, r := range rates {
		if r.Limit <= 0 || r.Interval <= 0 {
			return nil, fmt.Errorf("invalid rate %s", r)
		}
		m.rates = append(m.rates, r)
		m.windows = append(m.windows, newSlidingWindow(r.Limit, r.Interval, m.clock))
		if r.Interval > longest {
			longest = r.Interval
		}
	}

	if m.journal != nil {
		past, err := m.journal.Since(m.clock.Now().Add(-longest))
		if err != nil {
			return nil, fmt.Errorf("restore request journal: %w", err)
		}
		sort.Slice(past, func(i, j int) bool { return past[i].Before(past[j]) })
		for _, t := range past {
			for _, w := range m.windows {
				w.record(t)
			}
		}
	}
	return m, nil
}

// Allow admits a request if no window is full.
func (m *Multi) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if d, _ := m.nextDelay(now); d > 0 {
		return false
	}
	m.admit(now)
	return true
}

// Wait blocks until every window has capacity, then records the request.
func (m *Multi) Wait(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := m.clock.Now()
		d, idx := m.nextDelay(now)
		if d <= 0 {
			m.admit(now)
			return nil
		}
		if m.onWait != nil {
			m.onWait(d, m.rates[idx])
		}
		if err := m.clock.Sleep(ctx, d); err != nil {
			return err
		}
	}
}

// Reset clears every window. The journal is left untouched.
func (m *Multi) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.windows {
		w.Reset()
	}
}

// Rates returns the configured quotas.
func (m *Multi) Rates() []Rate {
	return append([]Rate(nil), m.rates...)
}

func (m *Multi) nextDelay(now time.Time) (time.Duration, int) {
	var longest time.Duration
	idx := -1
	for i, w := range m.windows {
		if d := w.delay(now); d > longest {
			longest = d
			idx = i
		}
	}
	return longest, idx
}

func (m *Multi) admit(now time.Time) {
	for _, w := range m.windows {
		w.record(now)
	}
	if m.journal != nil {
		// journal failures are not fatal
		_ = m.journal.Append(now)
	}
}
