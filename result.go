package statebox

import "context"

type (
	// Result is what an Action produces: nothing, an update to apply
	// immediately, or a Deferred that yields the update later. The zero
	// value is the same as None
	Result[V any] struct {
		update   Update[V]
		deferred Deferred[V]
		kind     ResultKind
	}

	// Deferred computes an update off the dispatching goroutine
	Deferred[V any] func(context.Context) (Update[V], error)

	// ResultKind tags the variant held by a Result
	ResultKind int
)

const (
	ResultNone ResultKind = iota
	ResultImmediate
	ResultDeferred
)

// None returns a Result that commits nothing
func None[V any]() Result[V] {
	return Result[V]{}
}

// Apply returns a Result that merges update into the state as soon as the
// Action returns. A nil update behaves like None; an empty one still
// commits and notifies
func Apply[V any](update Update[V]) Result[V] {
	if update == nil {
		return None[V]()
	}
	return Result[V]{kind: ResultImmediate, update: update}
}

// Defer returns a Result whose update is produced by fn. A nil fn behaves
// like None
func Defer[V any](fn Deferred[V]) Result[V] {
	if fn == nil {
		return None[V]()
	}
	return Result[V]{kind: ResultDeferred, deferred: fn}
}

// Kind reports which variant the Result holds
func (r Result[_]) Kind() ResultKind {
	return r.kind
}

// Update returns the immediate update, or nil for any other variant
func (r Result[V]) Update() Update[V] {
	return r.update
}

func (k ResultKind) String() string {
	switch k {
	case ResultNone:
		return "none"
	case ResultImmediate:
		return "immediate"
	case ResultDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}
