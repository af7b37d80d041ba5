package loot

import (
	"math"
	"time"
)

// RandomFunc возвращает число из [0, 1]
type RandomFunc func() float64

// DefaultRandom всегда возвращает 1.0, делая генерацию детерминированной
func DefaultRandom() float64 {
	return 1.0
}

// Generator решает, сколько трофеев появится за прошедшее время.
// Вероятность появления растёт с временем, прошедшим без новых трофеев.
type Generator struct {
	baseInterval    time.Duration
	probability     float64
	timeWithoutLoot time.Duration
	random          RandomFunc
}

// NewGenerator создаёт генератор: за baseInterval трофей появляется с вероятностью probability
func NewGenerator(baseInterval time.Duration, probability float64, random RandomFunc) *Generator {
	if random == nil {
		random = DefaultRandom
	}
	return &Generator{
		baseInterval: baseInterval,
		probability:  probability,
		random:       random,
	}
}

// Generate возвращает количество новых трофеев. Трофеев не может стать
// больше, чем собирателей. Отрицательное время не учитывается, накопление
// насыщается на math.MaxInt64.
func (g *Generator) Generate(delta time.Duration, lootCount, looterCount uint) uint {
	if delta > 0 {
		if g.timeWithoutLoot > math.MaxInt64-delta {
			g.timeWithoutLoot = math.MaxInt64
		} else {
			g.timeWithoutLoot += delta
		}
	}

	var shortage uint
	if looterCount > lootCount {
		shortage = looterCount - lootCount
	}
	if shortage == 0 || g.baseInterval <= 0 {
		return 0
	}

	ratio := float64(g.timeWithoutLoot) / float64(g.baseInterval)
	p := (1.0 - math.Pow(1.0-g.probability, ratio)) * g.random()
	p = math.Max(0, math.Min(1, p))

	generated := uint(math.Round(float64(shortage) * p))
	if generated > 0 {
		g.timeWithoutLoot = 0
	}
	return generated
}

// BaseInterval возвращает базовый интервал генерации
func (g *Generator) BaseInterval() time.Duration { return g.baseInterval }

// Probability возвращает вероятность появления трофея за базовый интервал
func (g *Generator) Probability() float64 { return g.probability }
