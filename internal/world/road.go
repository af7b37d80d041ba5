package world

import "github.com/annel0/dog-gatherer/internal/vec"

// Константы геометрии карты
const (
	HalfRoadWidth     = 0.4  // половина ширины дороги
	ItemHalfWidth     = 0.0  // потерянный предмет - точка
	GathererHalfWidth = 0.3  // половина ширины собаки
	OfficeHalfWidth   = 0.25 // половина ширины офиса
)

// Road - осевая дорога. Хранится нормализованной: Start <= End по своей оси.
type Road struct {
	start      vec.Vec2
	end        vec.Vec2
	horizontal bool
}

// NewHorizontalRoad создаёт горизонтальную дорогу от start до x = endX
func NewHorizontalRoad(start vec.Vec2, endX int) Road {
	end := vec.Vec2{X: endX, Y: start.Y}
	if end.X < start.X {
		start, end = end, start
	}
	return Road{start: start, end: end, horizontal: true}
}

// NewVerticalRoad создаёт вертикальную дорогу от start до y = endY
func NewVerticalRoad(start vec.Vec2, endY int) Road {
	end := vec.Vec2{X: start.X, Y: endY}
	if end.Y < start.Y {
		start, end = end, start
	}
	return Road{start: start, end: end}
}

func (r Road) Start() vec.Vec2    { return r.start }
func (r Road) End() vec.Vec2      { return r.end }
func (r Road) IsHorizontal() bool { return r.horizontal }
func (r Road) IsVertical() bool   { return !r.horizontal }

// Contains проверяет, лежит ли клетка (x, y) на дороге
func (r Road) Contains(x, y int) bool {
	if r.horizontal {
		return r.start.Y == y && x >= r.start.X && x <= r.end.X
	}
	return r.start.X == x && y >= r.start.Y && y <= r.end.Y
}

// RoundPosition переводит непрерывную координату в индекс клетки дороги.
// Смещение 0.5999 вместо 0.5 делает границей клетки половину ширины дороги.
func RoundPosition(pos float64) int {
	const roundDelta = 0.5999
	if pos >= 0 {
		return int(pos + roundDelta)
	}
	return int(pos - roundDelta)
}

// Building - здание на карте, только для отображения
type Building struct {
	Position vec.Vec2
	Width    int
	Height   int
}

// OfficeID - идентификатор бюро находок
type OfficeID string

// Office - бюро находок, куда собаки сдают предметы
type Office struct {
	ID       OfficeID
	Position vec.Vec2
	Offset   vec.Vec2
}

// LootType описывает тип трофея и его ценность
type LootType struct {
	Name     string
	File     string
	Type     string
	Rotation *int
	Color    *string
	Scale    float64
	Value    int
}
