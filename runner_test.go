package statebox_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kode4food/statebox"
)

func deferredSet(key string, value any, gate <-chan struct{}) AppAction {
	return func(
		context.Context, statebox.Getter[any],
		statebox.Dispatcher[any, *API], *API,
	) (statebox.Result[any], error) {
		return statebox.Defer(func(context.Context) (AppUpdate, error) {
			if gate != nil {
				<-gate
			}
			return AppUpdate{key: value}, nil
		}), nil
	}
}

func TestWorkerPool(t *testing.T) {
	cfg := statebox.DefaultConfig()
	cfg.Workers = 2
	cfg.QueueSize = 1

	store, err := statebox.NewStore[any, *API](cfg, nil, nil)
	assert.NoError(t, err)

	gate := make(chan struct{})
	var pending []*statebox.Pending
	keys := []string{"a", "b", "c", "d", "e", "f"}
	for _, k := range keys {
		p, err := store.Dispatch(context.Background(), deferredSet(k, 1, gate))
		assert.NoError(t, err)
		pending = append(pending, p)
	}

	close(gate)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, p := range pending {
		assert.NoError(t, p.Wait(ctx))
	}

	assert.Len(t, store.GetState(), len(keys))
	assert.NoError(t, store.Close())
}

func TestCloseDrainsDeferred(t *testing.T) {
	cfg := statebox.DefaultConfig()
	cfg.Workers = 1

	store, err := statebox.NewStore[any, *API](cfg, nil, nil)
	assert.NoError(t, err)

	gate := make(chan struct{})
	p, err := store.Dispatch(context.Background(), deferredSet("a", 1, gate))
	assert.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, store.Close())
	}()

	close(gate)
	wg.Wait()

	assert.NoError(t, p.Err())
	assert.Equal(t, AppState{"a": 1}, store.GetState())
}

func TestDispatchAfterClose(t *testing.T) {
	store, err := statebox.NewStore[any, *API](
		statebox.DefaultConfig(), nil, nil,
	)
	assert.NoError(t, err)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())

	p, err := store.Dispatch(context.Background(), deferredSet("a", 1, nil))
	assert.NoError(t, err)
	assert.ErrorIs(t, p.Wait(context.Background()), statebox.ErrStoreClosed)
	assert.Empty(t, store.GetState())

	// synchronous operations still work
	_, err = store.Dispatch(context.Background(), immediate(AppUpdate{"b": 2}))
	assert.NoError(t, err)
	assert.Equal(t, AppState{"b": 2}, store.GetState())
}

func TestDeferredFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := statebox.DefaultConfig()
	cfg.Name = "logged"
	cfg.Logger = zap.New(core)

	store, err := statebox.NewStore[any, *API](cfg, nil, nil)
	assert.NoError(t, err)
	defer func() { _ = store.Close() }()

	p, err := store.Dispatch(context.Background(), func(
		context.Context, statebox.Getter[any],
		statebox.Dispatcher[any, *API], *API,
	) (statebox.Result[any], error) {
		return statebox.Defer(func(context.Context) (AppUpdate, error) {
			return nil, assert.AnError
		}), nil
	})
	assert.NoError(t, err)
	assert.ErrorIs(t, p.Wait(context.Background()), assert.AnError)

	failed := logs.FilterMessage("Deferred action failed").All()
	assert.Len(t, failed, 1)
	fields := failed[0].ContextMap()
	assert.Equal(t, "logged", fields["store"])
	assert.Equal(t, p.ID(), fields["dispatch_id"])
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
}
