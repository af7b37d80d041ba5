package app

import (
	"context"
	"io"
	"math/rand"
	"time"

	"github.com/annel0/dog-gatherer/internal/eventbus"
	"github.com/annel0/dog-gatherer/internal/logging"
	"github.com/annel0/dog-gatherer/internal/world"
)

// JoinError - код результата входа в игру
type JoinError int

const (
	JoinErrorNone JoinError = iota
	JoinErrorMapNotFound
	JoinErrorSessionNotFound
	JoinErrorInvalidName
)

func (e JoinError) Error() string {
	switch e {
	case JoinErrorNone:
		return "no error"
	case JoinErrorMapNotFound:
		return "map not found"
	case JoinErrorSessionNotFound:
		return "session not found"
	case JoinErrorInvalidName:
		return "invalid name"
	}
	return "unknown join error"
}

// JoinResult - выданный токен и идентификатор собаки
type JoinResult struct {
	Token Token
	DogID world.DogID
}

// Options - настройки приложения
type Options struct {
	RandomizeSpawn bool
	// Rand используется для точек появления и трофеев; nil - генератор от текущего времени.
	Rand *rand.Rand
	// TokenSource - источник случайных байт для токенов; nil - crypto/rand.
	TokenSource io.Reader
}

// Application - сценарии игры поверх мира: вход, управление, тик, снимки.
// Не потокобезопасно, все вызовы идут через Loop.
type Application struct {
	game           *world.Game
	players        *Players
	tokens         *PlayerTokens
	randomizeSpawn bool
	rng            *rand.Rand
}

func NewApplication(game *world.Game, opts Options) *Application {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Application{
		game:           game,
		players:        NewPlayers(),
		tokens:         NewPlayerTokens(opts.TokenSource),
		randomizeSpawn: opts.RandomizeSpawn,
		rng:            rng,
	}
}

func (a *Application) Game() *world.Game     { return a.game }
func (a *Application) Players() *Players     { return a.players }
func (a *Application) Tokens() *PlayerTokens { return a.tokens }
func (a *Application) RandomizeSpawn() bool  { return a.randomizeSpawn }

// JoinGame создаёт собаку на карте mapID и выдаёт токен.
// Ошибки предметной области возвращаются как JoinError.
func (a *Application) JoinGame(mapID world.MapID, name string) (JoinResult, error) {
	if name == "" {
		return JoinResult{}, JoinErrorInvalidName
	}
	m := a.game.FindMap(mapID)
	if m == nil {
		return JoinResult{}, JoinErrorMapNotFound
	}
	// токен до изменения мира: при ошибке источника мир остаётся прежним
	token, err := a.tokens.NewToken()
	if err != nil {
		return JoinResult{}, err
	}
	session := a.game.PlacePlayerOnMap(mapID)
	if session == nil {
		return JoinResult{}, JoinErrorSessionNotFound
	}

	spawn := m.TestSpawnPoint()
	if a.randomizeSpawn {
		spawn = m.RandomSpawnPoint(a.rng)
	}

	player := a.players.Add(name, session, spawn)
	a.tokens.AddRestoredToken(token, player)

	logging.Info("🐕 Собака %d (%s) вошла на карту %s в точке (%.1f, %.1f)", player.ID(), name, mapID, spawn.X, spawn.Y)
	eventbus.Emit(context.Background(), eventbus.TypePlayerJoined, eventbus.PlayerJoined{
		DogID: uint64(player.ID()),
		Name:  name,
		MapID: string(mapID),
	})

	return JoinResult{Token: token, DogID: player.ID()}, nil
}

// FindPlayerByToken возвращает игрока по токену или nil
func (a *Application) FindPlayerByToken(token Token) *Player {
	return a.tokens.FindPlayerByToken(token)
}

// PlayersInSession возвращает всех игроков сессии, в которой играет p
func (a *Application) PlayersInSession(p *Player) []*Player {
	return a.players.InSession(p.Session())
}

// IsValidMove проверяет команду движения; пустая строка - остановка
func IsValidMove(move string) bool {
	if move == "" {
		return true
	}
	_, ok := world.ParseDirection(move)
	return ok
}

// SetAction задаёт движение собаки: L, R, U, D. Любая другая команда
// останавливает собаку, не меняя направления.
func (a *Application) SetAction(p *Player, move string) {
	dog := p.Dog()
	dir, ok := world.ParseDirection(move)
	if !ok {
		dog.Stop()
		return
	}
	dog.SetMovement(world.VelocityFor(dir, p.Session().Map().DogSpeed()), dir)
}
