package records

import (
	"context"
	"time"

	"github.com/annel0/dog-gatherer/internal/eventbus"
	"github.com/annel0/dog-gatherer/internal/logging"
)

// Listener переносит сданные собаками очки в таблицу рекордов
type Listener struct {
	repo Repository
	now  func() time.Time
}

func NewListener(repo Repository) *Listener {
	return &Listener{repo: repo, now: time.Now}
}

// Start подписывается на события LootDeposited. Функция неблокирующая.
func (l *Listener) Start(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.TypeLootDeposited}}, l.handle)
	if err != nil {
		return nil, err
	}
	logging.Info("🏆 Таблица рекордов подписана на %s", eventbus.TypeLootDeposited)
	return sub, nil
}

func (l *Listener) handle(ctx context.Context, ev *eventbus.Envelope) {
	var dep eventbus.LootDeposited
	if err := ev.Decode(&dep); err != nil {
		logging.Warn("🏆 Не удалось разобрать событие %s: %v", ev.ID, err)
		return
	}

	rec := Record{DogID: dep.DogID, Name: dep.Name, Score: dep.Score, UpdatedAt: l.now().UTC()}
	if err := l.repo.Upsert(ctx, rec); err != nil {
		logging.Error("🏆 Не удалось сохранить рекорд собаки %d: %v", dep.DogID, err)
	}
}
