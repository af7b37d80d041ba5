package world

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/annel0/dog-gatherer/internal/vec"
)

const (
	DefaultDogSpeed    = 1.0
	DefaultBagCapacity = 3
)

var (
	ErrDuplicateOffice = errors.New("duplicate office id")
	ErrDuplicateMap    = errors.New("duplicate map id")
)

// MapID - идентификатор карты
type MapID string

// Map - неизменяемое после загрузки описание карты
type Map struct {
	id          MapID
	name        string
	dogSpeed    float64
	bagCapacity int

	roads       []Road
	buildings   []Building
	offices     []Office
	officeIndex map[OfficeID]int
	lootTypes   []LootType
}

// NewMap создаёт пустую карту
func NewMap(id MapID, name string, dogSpeed float64, bagCapacity int) *Map {
	return &Map{
		id:          id,
		name:        name,
		dogSpeed:    dogSpeed,
		bagCapacity: bagCapacity,
		officeIndex: make(map[OfficeID]int),
	}
}

func (m *Map) ID() MapID                  { return m.id }
func (m *Map) Name() string               { return m.name }
func (m *Map) DogSpeed() float64          { return m.dogSpeed }
func (m *Map) BagCapacity() int           { return m.bagCapacity }
func (m *Map) Roads() []Road              { return m.roads }
func (m *Map) Buildings() []Building      { return m.buildings }
func (m *Map) Offices() []Office          { return m.offices }
func (m *Map) LootTypes() []LootType      { return m.lootTypes }
func (m *Map) LootTypesCount() int        { return len(m.lootTypes) }
func (m *Map) LootByIndex(i int) LootType { return m.lootTypes[i] }

func (m *Map) AddRoad(r Road) {
	m.roads = append(m.roads, r)
}

func (m *Map) AddBuilding(b Building) {
	m.buildings = append(m.buildings, b)
}

// AddOffice добавляет офис; идентификаторы офисов уникальны в пределах карты
func (m *Map) AddOffice(o Office) error {
	if _, exists := m.officeIndex[o.ID]; exists {
		return fmt.Errorf("%w: %s on map %s", ErrDuplicateOffice, o.ID, m.id)
	}
	m.officeIndex[o.ID] = len(m.offices)
	m.offices = append(m.offices, o)
	return nil
}

func (m *Map) AddLootType(lt LootType) {
	m.lootTypes = append(m.lootTypes, lt)
}

// RoadsByPosition возвращает индексы дорог, на которых находится позиция
func (m *Map) RoadsByPosition(pos vec.Vec2Float) []int {
	x, y := RoundPosition(pos.X), RoundPosition(pos.Y)

	var found []int
	for i, road := range m.roads {
		if road.Contains(x, y) {
			found = append(found, i)
		}
	}
	return found
}

// TestSpawnPoint возвращает детерминированную точку появления - начало первой дороги
func (m *Map) TestSpawnPoint() vec.Vec2Float {
	if len(m.roads) == 0 {
		return vec.Vec2Float{}
	}
	return m.roads[0].Start().ToFloat()
}

// RandomSpawnPoint выбирает случайную дорогу и случайную целую точку на ней
func (m *Map) RandomSpawnPoint(rng *rand.Rand) vec.Vec2Float {
	if len(m.roads) == 0 {
		return vec.Vec2Float{}
	}

	road := m.roads[rng.Intn(len(m.roads))]
	start, end := road.Start(), road.End()
	if road.IsHorizontal() {
		x := start.X + rng.Intn(end.X-start.X+1)
		return vec.Vec2Float{X: float64(x), Y: float64(start.Y)}
	}
	y := start.Y + rng.Intn(end.Y-start.Y+1)
	return vec.Vec2Float{X: float64(start.X), Y: float64(y)}
}
