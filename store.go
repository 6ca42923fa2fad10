package statebox

import (
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Store is an observable state container. It owns the current State and an
// ordered list of Listeners, and is safe for concurrent use. Commits are
// serialized; listeners are notified outside the lock so they may call back
// into the Store
type Store[V, E any] struct {
	state     State[V]
	listeners []Listener[V, E]
	extra     E
	logger    *zap.Logger
	metrics   *metrics
	runner    *runner
	config    Config
	version   uint64
	mu        sync.RWMutex
}

// versioned is implemented by listeners that track which commit they last
// saw. The Store hands them the commit's version so that a round finishing
// late cannot replace a newer one
type versioned[V, E any] interface {
	notifyAt(uint64, State[V], Action[V, E], Update[V]) error
}

// NewStore creates a Store holding initial (an empty State when nil). The
// extra argument is passed unchanged to every dispatched Action
func NewStore[V, E any](
	cfg Config, initial State[V], extra E,
) (*Store[V, E], error) {
	if initial == nil {
		initial = State[V]{}
	}

	m, err := newMetrics(cfg.Metrics, cfg.Name)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger()
	return &Store[V, E]{
		state:   initial,
		extra:   extra,
		logger:  logger,
		metrics: m,
		runner:  newRunner(cfg, logger),
		config:  cfg,
	}, nil
}

// Close stops accepting deferred work and waits for in-flight deferred
// actions to commit. Synchronous operations keep working afterward
func (s *Store[_, _]) Close() error {
	s.runner.stop()
	return nil
}

// GetState returns the most recently committed State
func (s *Store[V, _]) GetState() State[V] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// snapshot returns the current State with the version of the commit that
// produced it
func (s *Store[V, _]) snapshot() (State[V], uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.version
}

// SetState commits update, either merged into the current State or, when
// overwrite is set, replacing it. Every listener subscribed at the time of
// the commit is then notified in subscription order before SetState
// returns. A listener error stops the round and is returned, unless the
// Store isolates listeners, in which case all listeners run and their
// errors are joined
func (s *Store[V, E]) SetState(
	update Update[V], overwrite bool, action Action[V, E],
) error {
	s.mu.Lock()
	var next State[V]
	if overwrite {
		next = Replace(update)
	} else {
		next = Merge(s.state, update)
	}
	s.state = next
	s.version++
	version := s.version
	listeners := s.listeners
	s.mu.Unlock()

	mode := modeMerge
	if overwrite {
		mode = modeOverwrite
	}
	s.metrics.commits.WithLabelValues(mode).Inc()
	s.logger.Debug("State committed",
		zap.String("mode", mode),
		zap.Int("keys", len(update)),
		zap.Int("listeners", len(listeners)),
	)

	return s.notify(listeners, version, next, action, update)
}

func (s *Store[V, E]) notify(
	listeners []Listener[V, E], version uint64, state State[V],
	action Action[V, E], update Update[V],
) error {
	call := func(l Listener[V, E]) error {
		if v, ok := l.(versioned[V, E]); ok {
			return v.notifyAt(version, state, action, update)
		}
		return l.Notify(state, action, update)
	}

	if !s.config.IsolateListeners {
		for _, l := range listeners {
			if err := call(l); err != nil {
				s.metrics.listenerErrors.Inc()
				return err
			}
		}
		return nil
	}

	var errs []error
	for _, l := range listeners {
		if err := call(l); err != nil {
			s.metrics.listenerErrors.Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe appends l to the listener list. The same Listener may be
// subscribed more than once and is then notified once per registration
func (s *Store[V, E]) Subscribe(l Listener[V, E]) Unsubscribe {
	s.mu.Lock()
	// clipped so a snapshot taken by SetState never sees this append
	s.listeners = append(slices.Clip(s.listeners), l)
	s.mu.Unlock()

	s.metrics.listeners.Inc()
	return func() {
		s.Unsubscribe(l)
	}
}

// Unsubscribe removes every registration of l. Removing a Listener that is
// not subscribed does nothing
func (s *Store[V, E]) Unsubscribe(l Listener[V, E]) {
	s.mu.Lock()
	kept := make([]Listener[V, E], 0, len(s.listeners))
	for _, e := range s.listeners {
		if e != l {
			kept = append(kept, e)
		}
	}
	removed := len(s.listeners) - len(kept)
	s.listeners = kept
	s.mu.Unlock()

	s.metrics.listeners.Sub(float64(removed))
}

// Listeners reports the number of registered listeners
func (s *Store[_, _]) Listeners() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}
