package world

import (
	"math/rand"
	"time"

	"github.com/annel0/dog-gatherer/internal/vec"
	"github.com/annel0/dog-gatherer/internal/world/loot"
)

// LostObject - потерянный предмет на дороге
type LostObject struct {
	ID       uint64
	Type     int
	Position vec.Vec2Float
	Width    float64
}

// GameSession - живой экземпляр карты: собаки и потерянные предметы.
// Сессия всегда привязана ровно к одной карте.
type GameSession struct {
	gameMap      *Map
	dogIDs       []DogID
	lostObjects  []LostObject
	lastObjectID uint64
	lootGen      *loot.Generator
}

// NewGameSession открывает пустую сессию на карте
func NewGameSession(m *Map, gen *loot.Generator) *GameSession {
	return &GameSession{gameMap: m, lootGen: gen}
}

// RestoreGameSession собирает сессию из сохранённого состояния
func RestoreGameSession(m *Map, gen *loot.Generator, dogIDs []DogID, lost []LostObject, lastObjectID uint64) *GameSession {
	return &GameSession{
		gameMap:      m,
		dogIDs:       append([]DogID(nil), dogIDs...),
		lostObjects:  append([]LostObject(nil), lost...),
		lastObjectID: lastObjectID,
		lootGen:      gen,
	}
}

func (s *GameSession) Map() *Map                      { return s.gameMap }
func (s *GameSession) DogIDs() []DogID                { return s.dogIDs }
func (s *GameSession) DogCount() int                  { return len(s.dogIDs) }
func (s *GameSession) LostObjects() []LostObject      { return s.lostObjects }
func (s *GameSession) LostObjectsCount() int          { return len(s.lostObjects) }
func (s *GameSession) LastObjectID() uint64           { return s.lastObjectID }
func (s *GameSession) LootGenerator() *loot.Generator { return s.lootGen }

// AddDog регистрирует собаку в сессии
func (s *GameSession) AddDog(id DogID) {
	s.dogIDs = append(s.dogIDs, id)
}

// SpawnLoot запрашивает у генератора количество новых предметов и
// раскладывает их по случайным точкам дорог. Возвращает появившиеся предметы.
func (s *GameSession) SpawnLoot(delta time.Duration, rng *rand.Rand) []LostObject {
	if s.lootGen == nil || s.gameMap.LootTypesCount() == 0 || len(s.gameMap.Roads()) == 0 {
		return nil
	}

	count := s.lootGen.Generate(delta, uint(len(s.lostObjects)), uint(len(s.dogIDs)))
	spawned := make([]LostObject, 0, count)
	for i := uint(0); i < count; i++ {
		obj := LostObject{
			ID:       s.lastObjectID,
			Type:     rng.Intn(s.gameMap.LootTypesCount()),
			Position: s.gameMap.RandomSpawnPoint(rng),
			Width:    ItemHalfWidth,
		}
		s.lastObjectID++
		s.lostObjects = append(s.lostObjects, obj)
		spawned = append(spawned, obj)
	}
	return spawned
}

// RemoveLostObjects удаляет предметы, отмеченные true. Длина claimed
// должна совпадать с количеством потерянных предметов.
func (s *GameSession) RemoveLostObjects(claimed []bool) {
	kept := s.lostObjects[:0]
	for i, obj := range s.lostObjects {
		if i < len(claimed) && claimed[i] {
			continue
		}
		kept = append(kept, obj)
	}
	s.lostObjects = kept
}
