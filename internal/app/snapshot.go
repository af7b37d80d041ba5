package app

import (
	"errors"
	"fmt"

	"github.com/annel0/dog-gatherer/internal/storage"
	"github.com/annel0/dog-gatherer/internal/vec"
	"github.com/annel0/dog-gatherer/internal/world"
)

var (
	// ErrUnknownMap - сохранённая сессия ссылается на карту, которой нет в конфигурации
	ErrUnknownMap = errors.New("unknown map in saved state")
	// ErrUnknownDog - токен или сессия ссылается на несуществующую собаку
	ErrUnknownDog = errors.New("unknown dog in saved state")
)

func toArray(v vec.Vec2Float) [2]float64 { return v.Array() }
func fromArray(a [2]float64) vec.Vec2Float { return vec.Vec2Float{X: a[0], Y: a[1]} }

// Snapshot собирает полное состояние мира
func (a *Application) Snapshot() *storage.Snapshot {
	sessions := a.game.Sessions()
	sessionIndex := make(map[*world.GameSession]int, len(sessions))

	snap := &storage.Snapshot{
		Sessions: make([]storage.SessionRecord, 0, len(sessions)),
		Players:  storage.PlayersRecord{NextDogID: a.players.NextDogID()},
	}

	for i, s := range sessions {
		sessionIndex[s] = i
		rec := storage.SessionRecord{
			MapID:        string(s.Map().ID()),
			DogIDs:       make([]uint64, 0, s.DogCount()),
			LostObjects:  make([]storage.LostObjectRecord, 0, s.LostObjectsCount()),
			LastObjectID: s.LastObjectID(),
		}
		for _, id := range s.DogIDs() {
			rec.DogIDs = append(rec.DogIDs, uint64(id))
		}
		for _, obj := range s.LostObjects() {
			rec.LostObjects = append(rec.LostObjects, storage.LostObjectRecord{
				ID:       obj.ID,
				Type:     obj.Type,
				Position: toArray(obj.Position),
				Width:    obj.Width,
			})
		}
		snap.Sessions = append(snap.Sessions, rec)
	}

	for _, p := range a.players.All() {
		dog := p.Dog()
		state := dog.State()
		rec := storage.DogRecord{
			ID:           uint64(dog.ID()),
			Name:         dog.Name(),
			SessionIndex: sessionIndex[p.Session()],
			Position:     toArray(state.Position),
			Velocity:     toArray(state.Velocity),
			Direction:    state.Direction.String(),
			Bag:          make([]storage.BagItemRecord, 0, len(dog.Bag())),
			Score:        dog.Score(),
		}
		for _, obj := range dog.Bag() {
			rec.Bag = append(rec.Bag, storage.BagItemRecord{ID: obj.ID, Type: obj.Type})
		}
		snap.Players.Dogs = append(snap.Players.Dogs, rec)
	}

	for _, entry := range a.tokens.Entries() {
		snap.Tokens = append(snap.Tokens, storage.TokenRecord{
			Token: string(entry.Token),
			DogID: uint64(entry.Player.ID()),
		})
	}
	return snap
}

// Restore заменяет состояние мира сохранённым. Карты должны быть уже загружены.
// При ошибке текущее состояние не меняется.
func (a *Application) Restore(snap *storage.Snapshot) error {
	sessions := make([]*world.GameSession, 0, len(snap.Sessions))
	// собака -> индекс сессии, в списке которой она записана
	listed := make(map[world.DogID]int)
	for i, rec := range snap.Sessions {
		m := a.game.FindMap(world.MapID(rec.MapID))
		if m == nil {
			return fmt.Errorf("%w: %q", ErrUnknownMap, rec.MapID)
		}

		dogIDs := make([]world.DogID, 0, len(rec.DogIDs))
		for _, id := range rec.DogIDs {
			dogID := world.DogID(id)
			if prev, dup := listed[dogID]; dup {
				return fmt.Errorf("%w: собака %d записана в сессиях %d и %d", ErrUnknownDog, id, prev, i)
			}
			listed[dogID] = i
			dogIDs = append(dogIDs, dogID)
		}
		lost := make([]world.LostObject, 0, len(rec.LostObjects))
		for _, obj := range rec.LostObjects {
			lost = append(lost, world.LostObject{
				ID:       obj.ID,
				Type:     obj.Type,
				Position: fromArray(obj.Position),
				Width:    obj.Width,
			})
		}
		sessions = append(sessions, world.RestoreGameSession(m, a.game.NewLootGenerator(), dogIDs, lost, rec.LastObjectID))
	}

	players := NewPlayers()
	for _, rec := range snap.Players.Dogs {
		if rec.SessionIndex < 0 || rec.SessionIndex >= len(sessions) {
			return fmt.Errorf("%w: собака %d вне сессий", ErrUnknownDog, rec.ID)
		}
		if players.FindByDogID(world.DogID(rec.ID)) != nil {
			return fmt.Errorf("%w: собака %d повторяется", ErrUnknownDog, rec.ID)
		}
		if idx, ok := listed[world.DogID(rec.ID)]; !ok || idx != rec.SessionIndex {
			return fmt.Errorf("%w: собака %d отсутствует в списке сессии %d", ErrUnknownDog, rec.ID, rec.SessionIndex)
		}

		dir, ok := world.ParseDirection(rec.Direction)
		if !ok {
			dir = world.North
		}
		bag := make([]world.PickedObject, 0, len(rec.Bag))
		for _, item := range rec.Bag {
			bag = append(bag, world.PickedObject{ID: item.ID, Type: item.Type})
		}
		state := world.DogState{
			Position:  fromArray(rec.Position),
			Velocity:  fromArray(rec.Velocity),
			Direction: dir,
		}
		players.Restore(world.RestoreDog(world.DogID(rec.ID), rec.Name, state, bag, rec.Score), sessions[rec.SessionIndex])
	}
	for id, idx := range listed {
		if players.FindByDogID(id) == nil {
			return fmt.Errorf("%w: сессия %d ссылается на собаку %d", ErrUnknownDog, idx, id)
		}
	}
	players.SetNextDogID(snap.Players.NextDogID)

	tokens := NewPlayerTokens(a.tokens.source)
	for _, rec := range snap.Tokens {
		p := players.FindByDogID(world.DogID(rec.DogID))
		if p == nil {
			return fmt.Errorf("%w: токен ссылается на собаку %d", ErrUnknownDog, rec.DogID)
		}
		tokens.AddRestoredToken(Token(rec.Token), p)
	}

	a.game.RestoreSessions(sessions)
	a.players = players
	a.tokens = tokens
	return nil
}
