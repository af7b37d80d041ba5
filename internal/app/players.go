package app

import (
	"github.com/annel0/dog-gatherer/internal/vec"
	"github.com/annel0/dog-gatherer/internal/world"
)

// Player связывает собаку с сессией, в которой она играет
type Player struct {
	dog     *world.Dog
	session *world.GameSession
}

func (p *Player) Dog() *world.Dog             { return p.dog }
func (p *Player) Session() *world.GameSession { return p.session }
func (p *Player) ID() world.DogID             { return p.dog.ID() }

// Players - реестр игроков в порядке входа
type Players struct {
	players   []*Player
	index     map[world.DogID]int
	nextDogID uint64
}

func NewPlayers() *Players {
	return &Players{index: make(map[world.DogID]int)}
}

// Add создаёт собаку с очередным идентификатором и добавляет её в сессию.
// Первая собака получает id 1.
func (ps *Players) Add(name string, session *world.GameSession, spawn vec.Vec2Float) *Player {
	ps.nextDogID++
	dog := world.NewDog(world.DogID(ps.nextDogID), name, spawn)
	session.AddDog(dog.ID())
	return ps.attach(dog, session)
}

// Restore регистрирует восстановленную собаку. Сессия уже знает её id.
func (ps *Players) Restore(dog *world.Dog, session *world.GameSession) *Player {
	return ps.attach(dog, session)
}

func (ps *Players) attach(dog *world.Dog, session *world.GameSession) *Player {
	p := &Player{dog: dog, session: session}
	ps.index[dog.ID()] = len(ps.players)
	ps.players = append(ps.players, p)
	return p
}

// FindByDogID возвращает игрока или nil
func (ps *Players) FindByDogID(id world.DogID) *Player {
	if idx, ok := ps.index[id]; ok {
		return ps.players[idx]
	}
	return nil
}

// InSession возвращает игроков сессии в порядке входа
func (ps *Players) InSession(session *world.GameSession) []*Player {
	var result []*Player
	for _, p := range ps.players {
		if p.session == session {
			result = append(result, p)
		}
	}
	return result
}

func (ps *Players) All() []*Player         { return ps.players }
func (ps *Players) Count() int             { return len(ps.players) }
func (ps *Players) NextDogID() uint64      { return ps.nextDogID }
func (ps *Players) SetNextDogID(id uint64) { ps.nextDogID = id }
