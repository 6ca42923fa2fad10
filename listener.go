package statebox

type (
	// Listener is notified synchronously after every committed state change.
	// It receives the new state, the Action that produced the commit (nil
	// for a direct SetState), and the raw update. Listeners are removed by
	// identity, so implementations must be comparable; pointer receivers are
	// the usual choice
	Listener[V, E any] interface {
		Notify(State[V], Action[V, E], Update[V]) error
	}

	// ListenerFunc is the function form of a Listener
	ListenerFunc[V, E any] func(State[V], Action[V, E], Update[V]) error

	// FuncListener gives a ListenerFunc a stable identity
	FuncListener[V, E any] struct {
		fn ListenerFunc[V, E]
	}
)

// Listen wraps fn in a Listener with pointer identity. Subscribing the
// returned value twice registers it twice; unsubscribing it removes both
func Listen[V, E any](fn ListenerFunc[V, E]) *FuncListener[V, E] {
	return &FuncListener[V, E]{fn: fn}
}

// Notify calls the wrapped function
func (l *FuncListener[V, E]) Notify(
	state State[V], action Action[V, E], update Update[V],
) error {
	return l.fn(state, action, update)
}
