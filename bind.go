package statebox

import (
	"context"
	"reflect"
	"strings"
	"sync"
)

type (
	// Mapper derives a consumer's props from the store's State
	Mapper[V, P any] func(State[V]) P

	// Connection keeps a consumer's mapped props current. It re-maps on
	// every commit and reports to its change callback only when the props
	// differ from the last ones it saw. Rounds that finish out of commit
	// order are ignored, and the last onChange call always carries the
	// latest props
	Connection[V, E, P any] struct {
		store      *Store[V, E]
		mapper     Mapper[V, P]
		equal      func(P, P) bool
		onChange   func(P)
		props      P
		version    uint64
		dirty      bool
		delivering bool
		mu         sync.Mutex
	}

	// BoundAction dispatches the Action built from its argument
	BoundAction[A any] func(context.Context, A) (*Pending, error)
)

// Select returns a Mapper picking the named keys out of the State. Keys
// missing from the State are left out of the result
func Select[V any](keys ...string) Mapper[V, State[V]] {
	return func(st State[V]) State[V] {
		res := make(State[V], len(keys))
		for _, k := range keys {
			if v, ok := st[k]; ok {
				res[k] = v
			}
		}
		return res
	}
}

// ParseKeys splits a comma-separated key list such as "a, b,c"
func ParseKeys(csv string) []string {
	var res []string
	for _, k := range strings.Split(csv, ",") {
		if k = strings.TrimSpace(k); k != "" {
			res = append(res, k)
		}
	}
	return res
}

// ShallowEqual reports whether a and b hold the same keys with the same
// values. Comparable values are compared with ==. Maps and slices are the
// same only when they share their backing storage, and funcs or values
// holding uncomparable parts always count as different
func ShallowEqual[V any](a, b State[V]) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !sameValue(any(av), any(bv)) {
			return false
		}
	}
	return true
}

func sameValue(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map:
		return va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Slice:
		return va.UnsafePointer() == vb.UnsafePointer() &&
			va.Len() == vb.Len()
	case reflect.Func:
		return false
	default:
		return va.Comparable() && vb.Comparable() && a == b
	}
}

// Connect maps the Store's current State through mapper and subscribes to
// further commits. onChange is called with the new props whenever equal
// reports them different from the previous props; it may be nil when the
// caller only polls Props
func Connect[V, E, P any](
	s *Store[V, E], mapper Mapper[V, P], equal func(P, P) bool,
	onChange func(P),
) *Connection[V, E, P] {
	c := &Connection[V, E, P]{
		store:    s,
		mapper:   mapper,
		equal:    equal,
		onChange: onChange,
	}

	// subscribed before the first mapping, so no commit falls between
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Subscribe(c)
	state, version := s.snapshot()
	c.props, c.version = mapper(state), version
	return c
}

// Props returns the most recently mapped props
func (c *Connection[_, _, P]) Props() P {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props
}

// Close unsubscribes the Connection from its Store
func (c *Connection[V, E, P]) Close() error {
	c.store.Unsubscribe(c)
	return nil
}

// Notify implements Listener
func (c *Connection[V, E, P]) Notify(
	state State[V], action Action[V, E], update Update[V],
) error {
	_, version := c.store.snapshot()
	return c.notifyAt(version, state, action, update)
}

func (c *Connection[V, E, P]) notifyAt(
	version uint64, state State[V], _ Action[V, E], _ Update[V],
) error {
	c.mu.Lock()
	if version <= c.version {
		c.mu.Unlock()
		return nil
	}
	c.version = version

	next := c.mapper(state)
	if c.equal(c.props, next) {
		c.mu.Unlock()
		return nil
	}
	c.props = next
	c.dirty = true

	// whoever is already delivering picks up the new props
	if c.onChange == nil || c.delivering {
		c.mu.Unlock()
		return nil
	}

	c.delivering = true
	for c.dirty {
		c.dirty = false
		props := c.props
		c.mu.Unlock()
		c.onChange(props)
		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
	return nil
}

// Bind returns a function that builds an Action with creator and
// dispatches it to s
func Bind[A, V, E any](
	s *Store[V, E], creator func(A) Action[V, E],
) BoundAction[A] {
	return func(ctx context.Context, arg A) (*Pending, error) {
		return s.Dispatch(ctx, creator(arg))
	}
}

// BindAll binds every creator in creators to s, keyed the same way
func BindAll[A, V, E any](
	s *Store[V, E], creators map[string]func(A) Action[V, E],
) map[string]BoundAction[A] {
	res := make(map[string]BoundAction[A], len(creators))
	for name, creator := range creators {
		res[name] = Bind(s, creator)
	}
	return res
}
