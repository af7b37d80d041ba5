package world

import "github.com/annel0/dog-gatherer/internal/vec"

const zeroDelta = 1e-6

func isZero(v float64) bool {
	return v > -zeroDelta && v < zeroDelta
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func haveCommonRoad(now, future []int) bool {
	for _, n := range now {
		for _, f := range future {
			if n == f {
				return true
			}
		}
	}
	return false
}

// remainingLength - сколько ещё можно проехать по дороге в направлении dir.
// ok = false, если дорога не сонаправлена движению.
func remainingLength(road Road, pos vec.Vec2Float, dir Direction) (float64, bool) {
	switch dir {
	case East:
		if road.IsHorizontal() {
			return float64(road.End().X) - pos.X, true
		}
	case West:
		if road.IsHorizontal() {
			return pos.X - float64(road.Start().X), true
		}
	case North:
		if road.IsVertical() {
			return pos.Y - float64(road.Start().Y), true
		}
	case South:
		if road.IsVertical() {
			return float64(road.End().Y) - pos.Y, true
		}
	}
	return 0, false
}

// MoveDog рассчитывает новое состояние собаки за время dt (секунды):
//  1. если текущая и конечная позиции лежат на общей дороге, собака едет свободно;
//  2. иначе она упирается в край самой длинной сонаправленной дороги и останавливается;
//  3. если таких дорог нет (движение поперёк), собака останавливается у края своей клетки.
func (m *Map) MoveDog(state DogState, dt float64) DogState {
	now := state.Position
	velocity := state.Velocity
	future := now.Add(velocity.Mul(dt))

	next := state
	if haveCommonRoad(m.RoadsByPosition(now), m.RoadsByPosition(future)) {
		next.Position = future
		return next
	}

	longest := -1
	maxLength := 0.0
	for _, idx := range m.RoadsByPosition(now) {
		length, aligned := remainingLength(m.roads[idx], now, state.Direction)
		if aligned && maxLength < length {
			maxLength = length
			longest = idx
		}
	}

	signX, signY := sign(velocity.X), sign(velocity.Y)
	if longest >= 0 {
		shift := HalfRoadWidth
		if !isZero(maxLength) {
			shift += maxLength
		}
		if m.roads[longest].IsHorizontal() {
			next.Position.X += shift * signX
		} else {
			next.Position.Y += shift * signY
		}
	} else {
		if !isZero(velocity.X) {
			next.Position.X = float64(RoundPosition(now.X)) + HalfRoadWidth*signX
		}
		if !isZero(velocity.Y) {
			next.Position.Y = float64(RoundPosition(now.Y)) + HalfRoadWidth*signY
		}
	}

	next.Velocity = vec.Vec2Float{}
	return next
}

// VelocityFor возвращает скорость для движения в направлении dir
func VelocityFor(dir Direction, speed float64) vec.Vec2Float {
	switch dir {
	case West:
		return vec.Vec2Float{X: -speed}
	case East:
		return vec.Vec2Float{X: speed}
	case North:
		return vec.Vec2Float{Y: -speed}
	case South:
		return vec.Vec2Float{Y: speed}
	}
	return vec.Vec2Float{}
}
