package statebox

import "sync"

type (
	// Watcher delivers committed changes over a channel, filtered by the
	// keys it is interested in. Delivery coalesces: the channel holds at
	// most one Change and a newer Change replaces an unread one, so a slow
	// consumer always ends up with the latest state. Rounds that finish out
	// of commit order never move the Watcher back to an older state
	Watcher[V, E any] struct {
		store     *Store[V, E]
		interests *interests
		changes   chan Change[V]
		last      State[V]
		version   uint64
		mu        sync.Mutex
		closed    bool
	}

	// Change is the newest state the Watcher has seen along with the update
	// that caused the delivery. The update normally produced State; when
	// commits race, it may belong to an older commit already folded into
	// State
	Change[V any] struct {
		State  State[V]
		Update Update[V]
	}

	// interests describes which keys a watcher is interested in
	interests struct {
		keys map[string]bool // empty = all keys
	}
)

// Watch registers a Watcher interested in commits touching any of keys. A
// commit touches a key when the update carries it or when its presence in
// the state changed, which covers overwrites. With no keys every commit is
// delivered
func (s *Store[V, E]) Watch(keys ...string) *Watcher[V, E] {
	i := &interests{}
	if len(keys) > 0 {
		i.keys = make(map[string]bool, len(keys))
		for _, k := range keys {
			i.keys[k] = true
		}
	}

	w := &Watcher[V, E]{
		store:     s,
		interests: i,
		changes:   make(chan Change[V], 1),
	}

	// subscribed before the baseline is read, so no commit falls between
	w.mu.Lock()
	defer w.mu.Unlock()
	s.Subscribe(w)
	w.last, w.version = s.snapshot()
	return w
}

// Receive returns the channel of changes. It is closed by Close
func (w *Watcher[V, _]) Receive() <-chan Change[V] {
	return w.changes
}

// Close unregisters the Watcher and closes its channel
func (w *Watcher[V, E]) Close() error {
	w.store.Unsubscribe(w)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.changes)
	}
	return nil
}

// Notify implements Listener
func (w *Watcher[V, E]) Notify(
	state State[V], action Action[V, E], update Update[V],
) error {
	_, version := w.store.snapshot()
	return w.notifyAt(version, state, action, update)
}

func (w *Watcher[V, E]) notifyAt(
	version uint64, state State[V], _ Action[V, E], update Update[V],
) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || version == w.version {
		return nil
	}

	if version < w.version {
		// the newer state is already out, but a filtered consumer still
		// needs to hear that one of its keys was touched
		if len(w.interests.keys) == 0 || !touches(w.interests, update) {
			return nil
		}
		w.send(Change[V]{State: w.last, Update: update})
		return nil
	}

	prev := w.last
	w.last, w.version = state, version
	if !matches(w.interests, prev, state, update) {
		return nil
	}
	w.send(Change[V]{State: state, Update: update})
	return nil
}

func (w *Watcher[V, _]) send(ch Change[V]) {
	select {
	case w.changes <- ch:
	default:
		// drop the unread change in favor of this one
		select {
		case <-w.changes:
		default:
		}
		w.changes <- ch
	}
}

func matches[V any](
	i *interests, prev, next State[V], update Update[V],
) bool {
	if len(i.keys) == 0 || touches(i, update) {
		return true
	}
	for k := range i.keys {
		_, was := prev[k]
		_, is := next[k]
		if was != is {
			return true
		}
	}
	return false
}

func touches[V any](i *interests, update Update[V]) bool {
	for k := range i.keys {
		if _, ok := update[k]; ok {
			return true
		}
	}
	return false
}
