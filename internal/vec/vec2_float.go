package vec

import "math"

// Vec2Float представляет 2D координаты с плавающей точкой (позиции и скорости)
type Vec2Float struct {
	X, Y float64
}

// FromVec2 создает Vec2Float из Vec2
func FromVec2(v Vec2) Vec2Float {
	return Vec2Float{X: float64(v.X), Y: float64(v.Y)}
}

// Add складывает два вектора
func (v Vec2Float) Add(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2Float) Sub(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X - other.X, Y: v.Y - other.Y}
}

// Mul умножает вектор на скаляр
func (v Vec2Float) Mul(scalar float64) Vec2Float {
	return Vec2Float{X: v.X * scalar, Y: v.Y * scalar}
}

// Dot возвращает скалярное произведение
func (v Vec2Float) Dot(other Vec2Float) float64 {
	return v.X*other.X + v.Y*other.Y
}

// LengthSq возвращает квадрат длины вектора
func (v Vec2Float) LengthSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Length возвращает длину вектора
func (v Vec2Float) Length() float64 {
	return math.Sqrt(v.LengthSq())
}

// IsZero сообщает, что обе компоненты равны нулю
func (v Vec2Float) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Array возвращает вектор в виде [x, y] для JSON-ответов
func (v Vec2Float) Array() [2]float64 {
	return [2]float64{v.X, v.Y}
}
