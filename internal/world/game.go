package world

import (
	"fmt"
	"time"

	"github.com/annel0/dog-gatherer/internal/world/loot"
)

// LootConfig - параметры генератора трофеев
type LootConfig struct {
	Period      time.Duration
	Probability float64
}

// Game - каталог карт и открытые на них сессии
type Game struct {
	maps     []*Map
	mapIndex map[MapID]int
	sessions []*GameSession

	lootConfig        LootConfig
	lootRandom        loot.RandomFunc
	maxDogsPerSession int
}

// NewGame создаёт пустую игру
func NewGame(lootConfig LootConfig) *Game {
	return &Game{
		mapIndex:   make(map[MapID]int),
		lootConfig: lootConfig,
	}
}

// SetMaxDogsPerSession ограничивает число собак в одной сессии (0 - без ограничения)
func (g *Game) SetMaxDogsPerSession(n int) { g.maxDogsPerSession = n }

// SetLootRandom подменяет источник случайности генераторов трофеев
func (g *Game) SetLootRandom(f loot.RandomFunc) { g.lootRandom = f }

func (g *Game) LootConfig() LootConfig   { return g.lootConfig }
func (g *Game) MaxDogsPerSession() int   { return g.maxDogsPerSession }
func (g *Game) Maps() []*Map             { return g.maps }
func (g *Game) Sessions() []*GameSession { return g.sessions }

// AddMap добавляет карту; идентификаторы карт уникальны
func (g *Game) AddMap(m *Map) error {
	if _, exists := g.mapIndex[m.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMap, m.ID())
	}
	g.mapIndex[m.ID()] = len(g.maps)
	g.maps = append(g.maps, m)
	return nil
}

// FindMap возвращает карту по идентификатору или nil
func (g *Game) FindMap(id MapID) *Map {
	if idx, ok := g.mapIndex[id]; ok {
		return g.maps[idx]
	}
	return nil
}

// NewLootGenerator создаёт генератор трофеев для новой сессии
func (g *Game) NewLootGenerator() *loot.Generator {
	return loot.NewGenerator(g.lootConfig.Period, g.lootConfig.Probability, g.lootRandom)
}

// PlacePlayerOnMap возвращает сессию карты, в которой есть место для собаки.
// Если такой нет, открывает новую. Для неизвестной карты возвращает nil.
func (g *Game) PlacePlayerOnMap(id MapID) *GameSession {
	m := g.FindMap(id)
	if m == nil {
		return nil
	}

	for i := len(g.sessions) - 1; i >= 0; i-- {
		s := g.sessions[i]
		if s.Map().ID() != id {
			continue
		}
		if g.maxDogsPerSession <= 0 || s.DogCount() < g.maxDogsPerSession {
			return s
		}
		break
	}

	s := NewGameSession(m, g.NewLootGenerator())
	g.sessions = append(g.sessions, s)
	return s
}

// RestoreSessions заменяет открытые сессии восстановленными
func (g *Game) RestoreSessions(sessions []*GameSession) {
	g.sessions = sessions
}
