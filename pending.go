package statebox

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Pending tracks the completion of a dispatched Action. Immediate and empty
// results produce a Pending that is already complete; a deferred result
// completes once its update has been committed and every listener notified,
// or once it fails
type Pending struct {
	done chan struct{}
	err  error
	id   string
	once sync.Once
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func newPending() *Pending {
	return &Pending{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

func completedPending(id string, err error) *Pending {
	return &Pending{
		id:   id,
		done: closedDone,
		err:  err,
	}
}

// ID returns the correlation id logged for this dispatch
func (p *Pending) ID() string {
	return p.id
}

// Done returns a channel that is closed when the dispatch completes
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the dispatch's error. It is only meaningful after Done is
// closed
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the dispatch completes or ctx is done. Abandoning the
// wait does not cancel the dispatch
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pending) complete(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}
