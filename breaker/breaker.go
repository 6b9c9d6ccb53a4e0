// Package breaker guards a store.Store with a circuit breaker so a failing
// backend is not hit on every cache call.
//
// States:
//   - Closed: calls reach the backend; consecutive failures are counted.
//   - Open: calls fail with ErrOpen until OpenTimeout has passed.
//   - HalfOpen: up to HalfOpenProbes calls are let through; that many
//     successes close the breaker, any failure reopens it.
//
// The breaker only fails fast. It never retries, and backend errors are
// returned unchanged.
package breaker

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Keksclan/nutcache/store"
)

// ErrOpen is returned instead of calling the backend while the breaker is
// open.
var ErrOpen = errors.New("nutcache: store circuit open")

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config holds the breaker parameters. Zero fields take the defaults of
// DefaultConfig.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker.
	FailureThreshold int

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration

	// HalfOpenProbes is the number of successful probes that close it again.
	HalfOpenProbes int
}

// DefaultConfig returns 5 failures, 10s open, 1 probe.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, OpenTimeout: 10 * time.Second, HalfOpenProbes: 1}
}

// Store is a store.Store that consults a breaker before each call.
// Context cancellation is not counted as a backend failure.
type Store struct {
	next store.Store
	cfg  Config

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int    // admitted while half-open
	epoch     uint64 // bumped on every entry into HalfOpen
	openedAt  time.Time
	now       func() time.Time
}

// Wrap guards next with a breaker configured by cfg.
func Wrap(next store.Store, cfg Config) *Store {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = def.HalfOpenProbes
	}
	return &Store{next: next, cfg: cfg, now: time.Now}
}

// State returns the current state, moving Open to HalfOpen once the timeout
// has elapsed.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	return s.state
}

// Unwrap returns the guarded store.
func (s *Store) Unwrap() store.Store { return s.next }

// Close closes the guarded store if it is an io.Closer.
func (s *Store) Close() error {
	if c, ok := s.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// expire must be called with s.mu held.
func (s *Store) expire() {
	if s.state == Open && s.now().Sub(s.openedAt) >= s.cfg.OpenTimeout {
		s.state = HalfOpen
		s.probes = 0
		s.successes = 0
		s.epoch++
	}
}

// admit reports whether a call may proceed and, for a half-open call, the
// epoch whose slot it took (zero otherwise).
func (s *Store) admit() (slot uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	switch s.state {
	case Closed:
		return 0, true
	case HalfOpen:
		if s.probes < s.cfg.HalfOpenProbes {
			s.probes++
			return s.epoch, true
		}
	}
	return 0, false
}

func (s *Store) record(ctx context.Context, slot uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && ctx.Err() != nil {
		// Cancelled: hand the half-open slot back.
		if slot != 0 && s.state == HalfOpen && slot == s.epoch && s.probes > 0 {
			s.probes--
		}
		return
	}
	if err == nil {
		switch s.state {
		case Closed:
			s.failures = 0
		case HalfOpen:
			s.successes++
			if s.successes >= s.cfg.HalfOpenProbes {
				s.state = Closed
				s.failures = 0
			}
		}
		return
	}
	switch s.state {
	case Closed:
		s.failures++
		if s.failures >= s.cfg.FailureThreshold {
			s.trip()
		}
	case HalfOpen:
		s.trip()
	}
}

func (s *Store) trip() {
	s.state = Open
	s.openedAt = s.now()
	s.probes = 0
	s.successes = 0
}

func (s *Store) do(ctx context.Context, fn func() error) error {
	slot, ok := s.admit()
	if !ok {
		return ErrOpen
	}
	err := fn()
	s.record(ctx, slot, err)
	return err
}

func (s *Store) Len(ctx context.Context) (n int, err error) {
	err = s.do(ctx, func() (err error) {
		n, err = s.next.Len(ctx)
		return err
	})
	return n, err
}

func (s *Store) Key(ctx context.Context, index int) (key string, ok bool, err error) {
	err = s.do(ctx, func() (err error) {
		key, ok, err = s.next.Key(ctx, index)
		return err
	})
	return key, ok, err
}

func (s *Store) GetItem(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.do(ctx, func() (err error) {
		value, ok, err = s.next.GetItem(ctx, key)
		return err
	})
	return value, ok, err
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	return s.do(ctx, func() error { return s.next.SetItem(ctx, key, value) })
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	return s.do(ctx, func() error { return s.next.RemoveItem(ctx, key) })
}

func (s *Store) Clear(ctx context.Context) error {
	return s.do(ctx, func() error { return s.next.Clear(ctx) })
}
