package statebox

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatch invokes action exactly once with the Store's GetState, Dispatch,
// and extra argument, then acts on its Result:
//   - an error is returned as-is and nothing is committed
//   - None commits nothing and notifies nobody
//   - Apply merges the update synchronously via SetState
//   - Defer runs the Deferred off the calling goroutine and merges its
//     update once it resolves
//
// The returned Pending completes when the dispatch's commit and
// notifications are done. For deferred results, the Deferred receives a
// context carrying ctx's values but not its cancellation: an in-flight
// deferred action always attempts its commit
func (s *Store[V, E]) Dispatch(
	ctx context.Context, action Action[V, E],
) (*Pending, error) {
	res, err := action(ctx, s.GetState, s.Dispatch, s.extra)
	if err != nil {
		s.metrics.dispatches.WithLabelValues(resultError).Inc()
		return nil, err
	}

	kind := res.Kind()
	s.metrics.dispatches.WithLabelValues(kind.String()).Inc()

	switch kind {
	case ResultImmediate:
		id := uuid.NewString()
		s.logger.Debug("Dispatching",
			zap.String("dispatch_id", id),
			zap.Stringer("result", kind),
		)
		if err := s.SetState(res.update, false, action); err != nil {
			return nil, err
		}
		return completedPending(id, nil), nil

	case ResultDeferred:
		return s.dispatchDeferred(ctx, action, res.deferred), nil

	default:
		return completedPending(uuid.NewString(), nil), nil
	}
}

func (s *Store[V, E]) dispatchDeferred(
	ctx context.Context, action Action[V, E], fn Deferred[V],
) *Pending {
	p := newPending()
	logger := s.logger.With(zap.String("dispatch_id", p.ID()))
	logger.Debug("Dispatching", zap.Stringer("result", ResultDeferred))

	detached := context.WithoutCancel(ctx)
	s.metrics.deferredInflight.Inc()

	job := func() {
		defer s.metrics.deferredInflight.Dec()

		update, err := fn(detached)
		if err != nil {
			logger.Warn("Deferred action failed", zap.Error(err))
			p.complete(err)
			return
		}

		if err := s.SetState(update, false, action); err != nil {
			logger.Warn("Deferred commit failed", zap.Error(err))
			p.complete(err)
			return
		}
		p.complete(nil)
	}

	if err := s.runner.submit(job); err != nil {
		s.metrics.deferredInflight.Dec()
		logger.Warn("Deferred action rejected", zap.Error(err))
		p.complete(err)
	}
	return p
}
