package physics

import (
	"sort"

	"github.com/annel0/dog-gatherer/internal/vec"
)

// Item представляет точечную цель сбора (потерянный предмет или офис)
type Item struct {
	Position vec.Vec2Float
	Width    float64
}

// Gatherer представляет перемещение собирателя за тик: отрезок Start -> End
type Gatherer struct {
	Start vec.Vec2Float
	End   vec.Vec2Float
	Width float64
}

// ItemGathererProvider отдаёт детектору цели и собирателей
type ItemGathererProvider interface {
	ItemsCount() int
	GetItem(idx int) Item
	GatherersCount() int
	GetGatherer(idx int) Gatherer
}

// CollectionResult описывает положение точки относительно отрезка движения
type CollectionResult struct {
	SqDistance float64 // квадрат расстояния от точки до прямой движения
	ProjRatio  float64 // доля пути, на которой достигается ближайшая точка
}

// IsCollected сообщает, попадает ли точка в коридор радиуса collectRadius
func (r CollectionResult) IsCollected(collectRadius float64) bool {
	return r.ProjRatio >= 0 && r.ProjRatio <= 1 && r.SqDistance <= collectRadius*collectRadius
}

// TryCollectPoint проецирует точку c на отрезок a -> b.
// Отрезок должен иметь ненулевую длину.
func TryCollectPoint(a, b, c vec.Vec2Float) CollectionResult {
	u := c.Sub(a)
	v := b.Sub(a)
	uDotV := u.Dot(v)
	uLen2 := u.LengthSq()
	vLen2 := v.LengthSq()

	return CollectionResult{
		SqDistance: uLen2 - (uDotV*uDotV)/vLen2,
		ProjRatio:  uDotV / vLen2,
	}
}

// GatheringEvent фиксирует касание цели собирателем
type GatheringEvent struct {
	ItemID     int
	GathererID int
	SqDistance float64
	Time       float64
}

// FindGatherEvents перебирает все пары (собиратель, цель) и возвращает
// события в хронологическом порядке (по доле пройденного пути).
func FindGatherEvents(provider ItemGathererProvider) []GatheringEvent {
	var events []GatheringEvent

	for g := 0; g < provider.GatherersCount(); g++ {
		gatherer := provider.GetGatherer(g)
		if gatherer.Start == gatherer.End {
			continue
		}

		for i := 0; i < provider.ItemsCount(); i++ {
			item := provider.GetItem(i)
			res := TryCollectPoint(gatherer.Start, gatherer.End, item.Position)
			if res.IsCollected(gatherer.Width + item.Width) {
				events = append(events, GatheringEvent{
					ItemID:     i,
					GathererID: g,
					SqDistance: res.SqDistance,
					Time:       res.ProjRatio,
				})
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})
	return events
}
