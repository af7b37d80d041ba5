package vec

import "math"

// Vec2 представляет целочисленные координаты карты (точки дорог, офисов, зданий)
type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ToFloat преобразует точку в координаты с плавающей точкой
func (v Vec2) ToFloat() Vec2Float {
	return Vec2Float{X: float64(v.X), Y: float64(v.Y)}
}
