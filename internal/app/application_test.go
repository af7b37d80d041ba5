package app

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/annel0/dog-gatherer/internal/storage"
	"github.com/annel0/dog-gatherer/internal/vec"
	"github.com/annel0/dog-gatherer/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTownGame: дорога (0,0)-(10,0), офис в (8,0), ключ за 10 очков и кошелёк за 30
func newTownGame(t *testing.T, bagCapacity int) *world.Game {
	t.Helper()
	g := world.NewGame(world.LootConfig{})

	m := world.NewMap("town", "Town", 1.0, bagCapacity)
	m.AddRoad(world.NewHorizontalRoad(vec.Vec2{X: 0, Y: 0}, 10))
	require.NoError(t, m.AddOffice(world.Office{ID: "o0", Position: vec.Vec2{X: 8, Y: 0}}))
	m.AddLootType(world.LootType{Name: "key", File: "assets/key.obj", Type: "obj", Scale: 0.03, Value: 10})
	m.AddLootType(world.LootType{Name: "wallet", File: "assets/wallet.obj", Type: "obj", Scale: 0.01, Value: 30})
	require.NoError(t, g.AddMap(m))

	park := world.NewMap("park", "Park", 2.0, 3)
	park.AddRoad(world.NewVerticalRoad(vec.Vec2{X: 0, Y: 0}, 20))
	park.AddLootType(world.LootType{Name: "ball", Value: 5})
	require.NoError(t, g.AddMap(park))
	return g
}

func newTestApp(t *testing.T, bagCapacity int) *Application {
	t.Helper()
	return NewApplication(newTownGame(t, bagCapacity), Options{Rand: rand.New(rand.NewSource(7))})
}

// addLost раскладывает предметы в первой сессии через снимок
func addLost(t *testing.T, a *Application, objs ...storage.LostObjectRecord) {
	t.Helper()
	snap := a.Snapshot()
	require.NotEmpty(t, snap.Sessions)
	snap.Sessions[0].LostObjects = append(snap.Sessions[0].LostObjects, objs...)
	snap.Sessions[0].LastObjectID += uint64(len(objs))
	require.NoError(t, a.Restore(snap))
}

type scriptedReader struct {
	chunks [][]byte
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	c := r.chunks[0]
	r.chunks = r.chunks[1:]
	return copy(p, c), nil
}

func TestJoinGame(t *testing.T) {
	a := newTestApp(t, 3)

	t.Run("пустое имя", func(t *testing.T) {
		_, err := a.JoinGame("town", "")
		assert.Equal(t, JoinErrorInvalidName, err)
	})

	t.Run("неизвестная карта", func(t *testing.T) {
		_, err := a.JoinGame("moon", "Alice")
		assert.ErrorIs(t, err, JoinErrorMapNotFound)
	})

	t.Run("успешный вход", func(t *testing.T) {
		first, err := a.JoinGame("town", "Alice")
		require.NoError(t, err)
		assert.Equal(t, world.DogID(1), first.DogID)
		assert.Len(t, string(first.Token), TokenLength)
		assert.True(t, IsWellFormedToken(string(first.Token)))

		second, err := a.JoinGame("town", "Bob")
		require.NoError(t, err)
		assert.Equal(t, world.DogID(2), second.DogID)
		assert.NotEqual(t, first.Token, second.Token)

		alice := a.FindPlayerByToken(first.Token)
		require.NotNil(t, alice)
		assert.Equal(t, "Alice", alice.Dog().Name())
		assert.Equal(t, vec.Vec2Float{X: 0, Y: 0}, alice.Dog().State().Position)
		assert.Equal(t, world.North, alice.Dog().State().Direction)

		session := a.PlayersInSession(alice)
		require.Len(t, session, 2)
		assert.Equal(t, world.DogID(2), session[1].ID())
		assert.Len(t, a.Game().Sessions(), 1)
	})

	t.Run("другая карта - другая сессия", func(t *testing.T) {
		res, err := a.JoinGame("park", "Carol")
		require.NoError(t, err)
		carol := a.FindPlayerByToken(res.Token)
		assert.Len(t, a.PlayersInSession(carol), 1)
		assert.Len(t, a.Game().Sessions(), 2)
	})

	assert.Nil(t, a.FindPlayerByToken("00000000000000000000000000000000"))
}

func TestRandomSpawn(t *testing.T) {
	a := NewApplication(newTownGame(t, 3), Options{RandomizeSpawn: true, Rand: rand.New(rand.NewSource(3))})
	for i := 0; i < 20; i++ {
		res, err := a.JoinGame("town", "Dog")
		require.NoError(t, err)
		pos := a.FindPlayerByToken(res.Token).Dog().State().Position
		assert.Equal(t, 0.0, pos.Y)
		assert.GreaterOrEqual(t, pos.X, 0.0)
		assert.LessOrEqual(t, pos.X, 10.0)
	}
}

func TestTokenCollision(t *testing.T) {
	a := bytes.Repeat([]byte{0xab}, 16)
	b := bytes.Repeat([]byte{0x01}, 16)
	tokens := NewPlayerTokens(&scriptedReader{chunks: [][]byte{a, a, b}})

	first, err := tokens.AddPlayer(&Player{})
	require.NoError(t, err)
	assert.Equal(t, Token(hex.EncodeToString(a)), first)

	second, err := tokens.AddPlayer(&Player{})
	require.NoError(t, err)
	assert.Equal(t, Token(hex.EncodeToString(b)), second)
	assert.Equal(t, 2, tokens.Count())
}

func TestWellFormedToken(t *testing.T) {
	assert.True(t, IsWellFormedToken("0123456789abcdef0123456789abcdef"))
	assert.False(t, IsWellFormedToken("0123456789abcdef"))
	assert.False(t, IsWellFormedToken("0123456789abcdef0123456789abcdeg"))
	assert.False(t, IsWellFormedToken("0123456789ABCDEF0123456789ABCDEF"), "токены выдаются строчными")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("энтропия закончилась") }

func TestJoinGameTokenFailure(t *testing.T) {
	a := NewApplication(newTownGame(t, 3), Options{TokenSource: failingReader{}})

	_, err := a.JoinGame("town", "Alice")
	require.Error(t, err)
	var joinErr JoinError
	assert.False(t, errors.As(err, &joinErr))

	assert.Equal(t, 0, a.Players().Count())
	assert.Equal(t, 0, a.Tokens().Count())
	assert.Empty(t, a.Game().Sessions())
}

func TestSetAction(t *testing.T) {
	a := newTestApp(t, 3)
	res, err := a.JoinGame("park", "Rex")
	require.NoError(t, err)
	p := a.FindPlayerByToken(res.Token)

	cases := []struct {
		move string
		vel  vec.Vec2Float
		dir  world.Direction
	}{
		{"L", vec.Vec2Float{X: -2}, world.West},
		{"R", vec.Vec2Float{X: 2}, world.East},
		{"U", vec.Vec2Float{Y: -2}, world.North},
		{"D", vec.Vec2Float{Y: 2}, world.South},
		{"", vec.Vec2Float{}, world.South},
	}
	for _, c := range cases {
		a.SetAction(p, c.move)
		state := p.Dog().State()
		assert.Equal(t, c.vel, state.Velocity, "move %q", c.move)
		assert.Equal(t, c.dir, state.Direction, "move %q", c.move)
	}

	assert.True(t, IsValidMove(""))
	assert.True(t, IsValidMove("U"))
	assert.False(t, IsValidMove("X"))
}

func TestTickCollectAndDeposit(t *testing.T) {
	a := newTestApp(t, 3)
	res, err := a.JoinGame("town", "Alice")
	require.NoError(t, err)
	addLost(t, a,
		storage.LostObjectRecord{ID: 0, Type: 1, Position: [2]float64{3, 0}},
		storage.LostObjectRecord{ID: 1, Type: 0, Position: [2]float64{5, 0}},
	)
	alice := a.FindPlayerByToken(res.Token)
	require.NotNil(t, alice)

	ctx := context.Background()

	a.SetAction(alice, "R")
	report := a.Tick(ctx, 10*time.Second)
	assert.Equal(t, 2, report.Picked)
	assert.Equal(t, 0, report.Deposits)
	assert.Equal(t, []world.PickedObject{{ID: 0, Type: 1}, {ID: 1, Type: 0}}, alice.Dog().Bag())
	assert.Equal(t, 0, alice.Session().LostObjectsCount())
	assert.InDelta(t, 10.0, alice.Dog().State().Position.X, 1e-9)

	a.SetAction(alice, "L")
	report = a.Tick(ctx, 10*time.Second)
	assert.Equal(t, 1, report.Deposits)
	assert.Equal(t, 40, report.Points)
	assert.Equal(t, 40, alice.Dog().Score())
	assert.True(t, alice.Dog().IsBagEmpty())
}

func TestTickBagCapacity(t *testing.T) {
	a := newTestApp(t, 1)
	res, err := a.JoinGame("town", "Alice")
	require.NoError(t, err)
	addLost(t, a,
		storage.LostObjectRecord{ID: 0, Type: 0, Position: [2]float64{2, 0}},
		storage.LostObjectRecord{ID: 1, Type: 1, Position: [2]float64{4, 0}},
		storage.LostObjectRecord{ID: 2, Type: 1, Position: [2]float64{4, 0}},
	)
	alice := a.FindPlayerByToken(res.Token)

	a.SetAction(alice, "R")
	report := a.Tick(context.Background(), 6*time.Second)
	assert.Equal(t, 1, report.Picked)
	assert.Equal(t, []world.PickedObject{{ID: 0, Type: 0}}, alice.Dog().Bag())

	lost := alice.Session().LostObjects()
	require.Len(t, lost, 2)
	assert.Equal(t, uint64(1), lost[0].ID)
	assert.Equal(t, uint64(2), lost[1].ID)
}

func TestTickFirstDogWins(t *testing.T) {
	a := newTestApp(t, 3)
	r1, err := a.JoinGame("town", "Near")
	require.NoError(t, err)
	r2, err := a.JoinGame("town", "Far")
	require.NoError(t, err)
	addLost(t, a, storage.LostObjectRecord{ID: 0, Type: 0, Position: [2]float64{1, 0}})

	near := a.FindPlayerByToken(r1.Token)
	far := a.FindPlayerByToken(r2.Token)
	// Near доходит до предмета за четверть тика, Far - за половину
	near.Dog().SetMovement(vec.Vec2Float{X: 4}, world.East)
	far.Dog().SetMovement(vec.Vec2Float{X: 2}, world.East)

	report := a.Tick(context.Background(), time.Second)
	assert.Equal(t, 1, report.Picked)
	assert.Len(t, near.Dog().Bag(), 1)
	assert.True(t, far.Dog().IsBagEmpty())
}

func TestTickZeroDelta(t *testing.T) {
	a := newTestApp(t, 3)
	res, err := a.JoinGame("town", "Alice")
	require.NoError(t, err)
	addLost(t, a, storage.LostObjectRecord{ID: 0, Type: 0, Position: [2]float64{0, 0}})
	alice := a.FindPlayerByToken(res.Token)
	a.SetAction(alice, "R")

	before := a.Snapshot()
	report := a.Tick(context.Background(), 0)
	assert.Equal(t, 0, report.Picked)
	assert.Equal(t, 0, report.Spawned)
	assert.Equal(t, before, a.Snapshot())
}

func TestTickSpawnsLoot(t *testing.T) {
	g := newTownGame(t, 3)
	g2 := world.NewGame(world.LootConfig{Period: time.Second, Probability: 1.0})
	for _, m := range g.Maps() {
		require.NoError(t, g2.AddMap(m))
	}
	a := NewApplication(g2, Options{Rand: rand.New(rand.NewSource(11))})
	_, err := a.JoinGame("town", "Alice")
	require.NoError(t, err)
	_, err = a.JoinGame("town", "Bob")
	require.NoError(t, err)

	report := a.Tick(context.Background(), time.Second)
	assert.Equal(t, 2, report.Spawned)

	session := a.Game().Sessions()[0]
	require.Equal(t, 2, session.LostObjectsCount())
	for _, obj := range session.LostObjects() {
		assert.Less(t, obj.Type, 2)
		assert.NotEmpty(t, session.Map().RoadsByPosition(obj.Position))
	}

	// предметов хватает на всех - новые не появляются
	report = a.Tick(context.Background(), time.Hour)
	assert.Equal(t, 0, report.Spawned)
}

func TestTickNegativeDelta(t *testing.T) {
	g := newTownGame(t, 3)
	g2 := world.NewGame(world.LootConfig{Period: time.Second, Probability: 1.0})
	for _, m := range g.Maps() {
		require.NoError(t, g2.AddMap(m))
	}
	a := NewApplication(g2, Options{Rand: rand.New(rand.NewSource(11))})
	res, err := a.JoinGame("town", "Alice")
	require.NoError(t, err)
	a.SetAction(a.FindPlayerByToken(res.Token), "R")

	before := a.Snapshot()
	report := a.Tick(context.Background(), -time.Hour)
	assert.Equal(t, 0, report.Spawned)
	assert.Equal(t, before, a.Snapshot())

	// генератор не испорчен отрицательным временем
	report = a.Tick(context.Background(), 0)
	assert.Equal(t, 0, report.Spawned)
	report = a.Tick(context.Background(), time.Second)
	assert.Equal(t, 1, report.Spawned)
}
