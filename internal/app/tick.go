package app

import (
	"context"
	"time"

	"github.com/annel0/dog-gatherer/internal/eventbus"
	"github.com/annel0/dog-gatherer/internal/logging"
	"github.com/annel0/dog-gatherer/internal/physics"
	"github.com/annel0/dog-gatherer/internal/world"
)

// TickReport - что произошло за тик
type TickReport struct {
	Dogs     int
	Spawned  int
	Picked   int
	Deposits int
	Points   int
}

// sessionGatherers - отрезки движения собак одной сессии
type sessionGatherers struct {
	players   []*Player
	gatherers []physics.Gatherer
}

func (sg *sessionGatherers) GatherersCount() int                { return len(sg.gatherers) }
func (sg *sessionGatherers) GetGatherer(i int) physics.Gatherer { return sg.gatherers[i] }

// lootTargets - потерянные предметы сессии как цели сбора
type lootTargets struct {
	*sessionGatherers
	items []world.LostObject
}

func (lt *lootTargets) ItemsCount() int { return len(lt.items) }
func (lt *lootTargets) GetItem(i int) physics.Item {
	return physics.Item{Position: lt.items[i].Position, Width: lt.items[i].Width}
}

// officeTargets - бюро находок карты как цели сбора
type officeTargets struct {
	*sessionGatherers
	offices []world.Office
}

func (ot *officeTargets) ItemsCount() int { return len(ot.offices) }
func (ot *officeTargets) GetItem(i int) physics.Item {
	return physics.Item{Position: ot.offices[i].Position.ToFloat(), Width: world.OfficeHalfWidth}
}

// Tick продвигает мир на dt:
//  1. двигает всех собак;
//  2. в каждой сессии порождает трофеи;
//  3. собаки, проехавшие мимо бюро находок, сдают рюкзаки;
//  4. собаки подбирают встреченные предметы в порядке встречи.
//
// Отрицательный dt считается нулевым.
func (a *Application) Tick(ctx context.Context, dt time.Duration) TickReport {
	if dt < 0 {
		dt = 0
	}
	var report TickReport
	seconds := dt.Seconds()

	bySession := make(map[*world.GameSession]*sessionGatherers)
	for _, p := range a.players.All() {
		dog := p.Dog()
		state := dog.State()
		next := p.Session().Map().MoveDog(state, seconds)
		dog.SetState(next)
		report.Dogs++
		if next.Position != state.Position {
			logging.LogDogMovement(uint64(dog.ID()), state.Position.X, state.Position.Y,
				next.Position.X, next.Position.Y, next.Direction.String())
		}

		sg := bySession[p.Session()]
		if sg == nil {
			sg = &sessionGatherers{}
			bySession[p.Session()] = sg
		}
		sg.players = append(sg.players, p)
		sg.gatherers = append(sg.gatherers, physics.Gatherer{
			Start: state.Position,
			End:   next.Position,
			Width: world.GathererHalfWidth,
		})
	}

	for _, session := range a.game.Sessions() {
		spawned := session.SpawnLoot(dt, a.rng)
		report.Spawned += len(spawned)
		for _, obj := range spawned {
			eventbus.Emit(ctx, eventbus.TypeLootSpawned, eventbus.LootSpawned{
				MapID:    string(session.Map().ID()),
				ObjectID: obj.ID,
				Type:     obj.Type,
				X:        obj.Position.X,
				Y:        obj.Position.Y,
			})
		}

		sg := bySession[session]
		if sg == nil {
			continue
		}
		a.depositLoot(ctx, session, sg, &report)
		a.pickUpLoot(ctx, session, sg, &report)
	}

	if report.Spawned > 0 || report.Picked > 0 || report.Deposits > 0 {
		logging.Debug("⏱️ Тик %v: собак=%d появилось=%d подобрано=%d сдано=%d",
			dt, report.Dogs, report.Spawned, report.Picked, report.Deposits)
	}
	return report
}

func (a *Application) depositLoot(ctx context.Context, session *world.GameSession, sg *sessionGatherers, report *TickReport) {
	m := session.Map()
	if len(m.Offices()) == 0 {
		return
	}

	events := physics.FindGatherEvents(&officeTargets{sessionGatherers: sg, offices: m.Offices()})
	for _, ev := range events {
		dog := sg.players[ev.GathererID].Dog()
		if dog.IsBagEmpty() {
			continue
		}

		items := dog.FlushPickedObjects()
		points := 0
		for _, obj := range items {
			if obj.Type >= 0 && obj.Type < m.LootTypesCount() {
				points += m.LootByIndex(obj.Type).Value
			}
		}
		dog.AddScore(points)
		report.Deposits++
		report.Points += points

		logging.Debug("🏢 Собака %d сдала %d предм. в офис %s: +%d (итого %d)",
			dog.ID(), len(items), m.Offices()[ev.ItemID].ID, points, dog.Score())
		eventbus.Emit(ctx, eventbus.TypeLootDeposited, eventbus.LootDeposited{
			DogID:  uint64(dog.ID()),
			Name:   dog.Name(),
			MapID:  string(m.ID()),
			Items:  len(items),
			Points: points,
			Score:  dog.Score(),
		})
	}
}

func (a *Application) pickUpLoot(ctx context.Context, session *world.GameSession, sg *sessionGatherers, report *TickReport) {
	lost := session.LostObjects()
	if len(lost) == 0 {
		return
	}

	events := physics.FindGatherEvents(&lootTargets{sessionGatherers: sg, items: lost})
	if len(events) == 0 {
		return
	}

	capacity := session.Map().BagCapacity()
	claimed := make([]bool, len(lost))
	picked := make([]bool, len(lost))
	pickedCount := 0
	for _, ev := range events {
		if claimed[ev.ItemID] {
			continue
		}
		// предмет достаётся первой встреченной собаке, даже если её рюкзак полон
		claimed[ev.ItemID] = true

		obj := lost[ev.ItemID]
		dog := sg.players[ev.GathererID].Dog()
		if !dog.AddPickedObject(world.PickedObject{ID: obj.ID, Type: obj.Type}, capacity) {
			continue
		}
		picked[ev.ItemID] = true
		pickedCount++

		eventbus.Emit(ctx, eventbus.TypeLootPicked, eventbus.LootPicked{
			DogID:    uint64(dog.ID()),
			MapID:    string(session.Map().ID()),
			ObjectID: obj.ID,
			Type:     obj.Type,
		})
	}

	if pickedCount > 0 {
		session.RemoveLostObjects(picked)
		report.Picked += pickedCount
	}
}
