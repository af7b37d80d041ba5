package app

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/annel0/dog-gatherer/internal/eventbus"
	"github.com/annel0/dog-gatherer/internal/storage"
	"github.com/annel0/dog-gatherer/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// populate создаёт мир с двумя сессиями, рюкзаками и очками
func populate(t *testing.T, a *Application) []JoinResult {
	t.Helper()
	alice, err := a.JoinGame("town", "Alice")
	require.NoError(t, err)
	bob, err := a.JoinGame("town", "Bob")
	require.NoError(t, err)
	carol, err := a.JoinGame("park", "Carol")
	require.NoError(t, err)

	addLost(t, a,
		storage.LostObjectRecord{ID: 0, Type: 1, Position: [2]float64{3, 0}},
		storage.LostObjectRecord{ID: 1, Type: 0, Position: [2]float64{9, 0}},
	)

	p := a.FindPlayerByToken(alice.Token)
	a.SetAction(p, "R")
	a.Tick(context.Background(), 5*time.Second)
	p.Dog().AddScore(70)
	a.SetAction(a.FindPlayerByToken(carol.Token), "D")
	return []JoinResult{alice, bob, carol}
}

func TestSnapshotRoundTrip(t *testing.T) {
	a := newTestApp(t, 3)
	joined := populate(t, a)

	before := a.Snapshot()
	require.Len(t, before.Sessions, 2)
	data, err := storage.EncodeSnapshot(before, true)
	require.NoError(t, err)

	decoded, err := storage.DecodeSnapshot(data)
	require.NoError(t, err)

	restored := newTestApp(t, 3)
	require.NoError(t, restored.Restore(decoded))
	assert.Equal(t, before, restored.Snapshot())

	for _, j := range joined {
		orig := a.FindPlayerByToken(j.Token)
		got := restored.FindPlayerByToken(j.Token)
		require.NotNil(t, got)
		assert.Equal(t, orig.ID(), got.ID())
		assert.Equal(t, orig.Dog().State(), got.Dog().State())
		assert.Equal(t, orig.Dog().Bag(), got.Dog().Bag())
		assert.Equal(t, orig.Dog().Score(), got.Dog().Score())
		assert.Equal(t, orig.Session().Map().ID(), got.Session().Map().ID())
	}

	alice := restored.FindPlayerByToken(joined[0].Token)
	assert.Len(t, alice.Dog().Bag(), 1)
	assert.Equal(t, 70, alice.Dog().Score())

	next, err := restored.JoinGame("town", "Dave")
	require.NoError(t, err)
	assert.Equal(t, world.DogID(4), next.DogID)
}

func TestRestoreErrors(t *testing.T) {
	a := newTestApp(t, 3)
	populate(t, a)

	t.Run("неизвестная карта", func(t *testing.T) {
		snap := a.Snapshot()
		snap.Sessions[1].MapID = "moon"
		err := newTestApp(t, 3).Restore(snap)
		assert.ErrorIs(t, err, ErrUnknownMap)
	})

	t.Run("токен без собаки", func(t *testing.T) {
		snap := a.Snapshot()
		snap.Tokens = append(snap.Tokens, storage.TokenRecord{Token: "ffffffffffffffffffffffffffffffff", DogID: 99})
		target := newTestApp(t, 3)
		err := target.Restore(snap)
		assert.ErrorIs(t, err, ErrUnknownDog)
		assert.Equal(t, 0, target.Players().Count())
	})

	t.Run("сессия ссылается на несуществующую собаку", func(t *testing.T) {
		snap := a.Snapshot()
		snap.Sessions[0].DogIDs = append(snap.Sessions[0].DogIDs, 99)
		target := newTestApp(t, 3)
		err := target.Restore(snap)
		assert.ErrorIs(t, err, ErrUnknownDog)
		assert.Equal(t, 0, target.Players().Count())
		assert.Empty(t, target.Game().Sessions())
	})

	t.Run("собака указывает на чужую сессию", func(t *testing.T) {
		snap := a.Snapshot()
		snap.Players.Dogs[2].SessionIndex = 0
		err := newTestApp(t, 3).Restore(snap)
		assert.ErrorIs(t, err, ErrUnknownDog)
	})

	t.Run("собака записана в двух сессиях", func(t *testing.T) {
		snap := a.Snapshot()
		snap.Sessions[1].DogIDs = append(snap.Sessions[1].DogIDs, snap.Sessions[0].DogIDs[0])
		err := newTestApp(t, 3).Restore(snap)
		assert.ErrorIs(t, err, ErrUnknownDog)
	})
}

func newTestLoop(t *testing.T, cfg LoopConfig) (*Loop, *Application) {
	t.Helper()
	a := newTestApp(t, 3)
	cfg.Metrics = NewLoopMetrics(prometheus.NewRegistry())
	return NewLoop(a, cfg), a
}

func TestLoopManualTicks(t *testing.T) {
	store := storage.NewMemoryStore()
	loop, _ := newTestLoop(t, LoopConfig{SavePeriod: 3 * time.Second, Store: store})
	ctx := context.Background()
	loop.Start(ctx)

	var res JoinResult
	var joinErr error
	require.NoError(t, loop.Do(ctx, func(a *Application) {
		res, joinErr = a.JoinGame("town", "Alice")
	}))
	require.NoError(t, joinErr)

	require.NoError(t, loop.Do(ctx, func(a *Application) {
		a.SetAction(a.FindPlayerByToken(res.Token), "R")
	}))

	report, err := loop.Tick(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dogs)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrStateNotFound, "автосохранение раньше срока")

	_, err = loop.Tick(ctx, 2*time.Second)
	require.NoError(t, err)
	data, err := store.Load(ctx)
	require.NoError(t, err)
	snap, err := storage.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, snap.Players.Dogs[0].Position[0], 1e-9)

	require.NoError(t, loop.Stop(ctx))
	err = loop.Do(ctx, func(*Application) {})
	assert.ErrorIs(t, err, ErrLoopStopped)
}

func TestLoopPeriodicTicks(t *testing.T) {
	loop, _ := newTestLoop(t, LoopConfig{TickPeriod: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)
	defer loop.Stop(context.Background())

	_, err := loop.Tick(ctx, time.Second)
	assert.ErrorIs(t, err, ErrManualTickDisabled)

	var res JoinResult
	require.NoError(t, loop.Do(ctx, func(a *Application) {
		res, _ = a.JoinGame("town", "Alice")
		a.SetAction(a.FindPlayerByToken(res.Token), "R")
	}))

	assert.Eventually(t, func() bool {
		var x float64
		_ = loop.Do(ctx, func(a *Application) {
			x = a.FindPlayerByToken(res.Token).Dog().State().Position.X
		})
		return x > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoopStopSavesAndRestores(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	loop, _ := newTestLoop(t, LoopConfig{Store: store, Compress: true})
	loop.Start(ctx)
	var res JoinResult
	require.NoError(t, loop.Do(ctx, func(a *Application) {
		res, _ = a.JoinGame("park", "Rex")
	}))
	require.NoError(t, loop.Save(ctx))
	require.NoError(t, loop.Stop(ctx))

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, storage.IsCompressed(data))

	next := NewLoop(NewApplication(newTownGame(t, 3), Options{Rand: rand.New(rand.NewSource(1))}), LoopConfig{Store: store})
	ok, err := next.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	next.Start(ctx)
	defer next.Stop(ctx)
	var name string
	require.NoError(t, next.Do(ctx, func(a *Application) {
		name = a.FindPlayerByToken(res.Token).Dog().Name()
	}))
	assert.Equal(t, "Rex", name)
}

func TestLoopRestoreEmptyStore(t *testing.T) {
	loop, _ := newTestLoop(t, LoopConfig{Store: storage.NewMemoryStore()})
	ok, err := loop.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoopCommandPanic(t *testing.T) {
	loop, _ := newTestLoop(t, LoopConfig{})
	ctx := context.Background()
	loop.Start(ctx)
	defer loop.Stop(ctx)

	err := loop.Do(ctx, func(*Application) { panic("boom") })
	assert.True(t, errors.Is(err, ErrCommandPanic))

	// цикл продолжает работать
	assert.NoError(t, loop.Do(ctx, func(*Application) {}))
}

// stalledBus не подтверждает публикацию, пока не закрыт release
type stalledBus struct {
	release chan struct{}
}

func (b *stalledBus) Publish(ctx context.Context, _ *eventbus.Envelope) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *stalledBus) Subscribe(context.Context, eventbus.Filter, eventbus.Handler) (eventbus.Subscription, error) {
	return nil, nil
}
func (b *stalledBus) Metrics() eventbus.Stats { return eventbus.Stats{} }
func (b *stalledBus) Close() error            { return nil }

func TestLoopDoesNotWaitForEventBus(t *testing.T) {
	bus := &stalledBus{release: make(chan struct{})}
	eventbus.Init(bus)
	defer func() {
		close(bus.release)
		eventbus.Init(nil)
	}()

	loop, _ := newTestLoop(t, LoopConfig{})
	ctx := context.Background()
	loop.Start(ctx)

	done := make(chan error, 1)
	go func() {
		for _, name := range []string{"Alice", "Bob", "Carol"} {
			var joinErr error
			if err := loop.Do(ctx, func(a *Application) { _, joinErr = a.JoinGame("town", name) }); err != nil {
				done <- err
				return
			}
			if joinErr != nil {
				done <- joinErr
				return
			}
		}
		for i := 0; i < 10; i++ {
			if _, err := loop.Tick(ctx, time.Second); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("цикл ждёт подтверждения шины событий")
	}
	require.NoError(t, loop.Stop(ctx))
}
