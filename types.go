package statebox

import "context"

type (
	// State is a committed snapshot of the store. It is replaced wholesale
	// on every commit and must not be mutated by callers
	State[V any] map[string]V

	// Update is a partial (merged) or full (overwriting) state
	Update[V any] map[string]V

	// Getter returns the store's current State
	Getter[V any] func() State[V]

	// Dispatcher runs an Action against a store
	Dispatcher[V, E any] func(context.Context, Action[V, E]) (*Pending, error)

	// Action computes a state update, optionally deferred, from the current
	// state, a Dispatcher for nested actions, and the store's extra argument
	Action[V, E any] func(
		context.Context, Getter[V], Dispatcher[V, E], E,
	) (Result[V], error)

	// Unsubscribe removes the Listener it was returned for
	Unsubscribe func()
)
