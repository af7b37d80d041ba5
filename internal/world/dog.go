package world

import "github.com/annel0/dog-gatherer/internal/vec"

// Direction - направление взгляда собаки
type Direction int

const (
	North Direction = iota
	South
	West
	East
)

// String возвращает обозначение направления в API ("U", "D", "L", "R")
func (d Direction) String() string {
	switch d {
	case North:
		return "U"
	case South:
		return "D"
	case West:
		return "L"
	case East:
		return "R"
	default:
		return "U"
	}
}

// ParseDirection разбирает обозначение направления
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "U":
		return North, true
	case "D":
		return South, true
	case "L":
		return West, true
	case "R":
		return East, true
	}
	return North, false
}

// DogState - положение, скорость и направление собаки.
// Заменяется целиком на каждом тике.
type DogState struct {
	Position  vec.Vec2Float
	Velocity  vec.Vec2Float
	Direction Direction
}

// DogID - идентификатор собаки, уникальный в пределах мира
type DogID uint64

// PickedObject - предмет в рюкзаке собаки
type PickedObject struct {
	ID   uint64
	Type int
}

// Dog - персонаж игрока
type Dog struct {
	id    DogID
	name  string
	state DogState
	bag   []PickedObject
	score int
}

// NewDog создаёт собаку в точке появления, смотрящую на север
func NewDog(id DogID, name string, pos vec.Vec2Float) *Dog {
	return &Dog{
		id:    id,
		name:  name,
		state: DogState{Position: pos, Direction: North},
	}
}

// RestoreDog восстанавливает собаку из сохранённого состояния
func RestoreDog(id DogID, name string, state DogState, bag []PickedObject, score int) *Dog {
	return &Dog{
		id:    id,
		name:  name,
		state: state,
		bag:   append([]PickedObject(nil), bag...),
		score: score,
	}
}

func (d *Dog) ID() DogID           { return d.id }
func (d *Dog) Name() string        { return d.name }
func (d *Dog) State() DogState     { return d.state }
func (d *Dog) SetState(s DogState) { d.state = s }
func (d *Dog) Score() int          { return d.score }
func (d *Dog) AddScore(points int) { d.score += points }
func (d *Dog) IsBagEmpty() bool    { return len(d.bag) == 0 }
func (d *Dog) Bag() []PickedObject { return d.bag }

// SetMovement задаёт скорость и направление
func (d *Dog) SetMovement(velocity vec.Vec2Float, dir Direction) {
	d.state.Velocity = velocity
	d.state.Direction = dir
}

// Stop обнуляет скорость, направление не меняется
func (d *Dog) Stop() {
	d.state.Velocity = vec.Vec2Float{}
}

// AddPickedObject кладёт предмет в рюкзак. Возвращает false, если рюкзак полон.
func (d *Dog) AddPickedObject(obj PickedObject, capacity int) bool {
	if len(d.bag) >= capacity {
		return false
	}
	d.bag = append(d.bag, obj)
	return true
}

// FlushPickedObjects опустошает рюкзак и возвращает его содержимое в порядке сбора
func (d *Dog) FlushPickedObjects() []PickedObject {
	flushed := d.bag
	d.bag = nil
	return flushed
}
