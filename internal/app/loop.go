package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/dog-gatherer/internal/eventbus"
	"github.com/annel0/dog-gatherer/internal/logging"
	"github.com/annel0/dog-gatherer/internal/storage"
	"github.com/annel0/dog-gatherer/internal/world"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrLoopStopped        = errors.New("game loop stopped")
	ErrManualTickDisabled = errors.New("manual tick is disabled while tick period is set")
	ErrCommandPanic       = errors.New("game loop command panicked")
)

// LoopConfig - параметры игрового цикла
type LoopConfig struct {
	// TickPeriod - период автоматических тиков; 0 - тики только через Tick.
	TickPeriod time.Duration
	// SavePeriod - через сколько игрового времени сохранять состояние; 0 - без автосохранения.
	SavePeriod time.Duration
	Store      storage.StateStore
	Compress   bool
	Metrics    *LoopMetrics
	InboxSize  int
}

type command struct {
	fn   func(a *Application)
	done chan error
}

// Loop владеет Application: все изменения и чтения мира выполняются
// одной горутиной по очереди.
type Loop struct {
	app    *Application
	cfg    LoopConfig
	tracer trace.Tracer

	inbox    chan command
	quit     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once

	sinceSave time.Duration
}

func NewLoop(app *Application, cfg LoopConfig) *Loop {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	return &Loop{
		app:    app,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/annel0/dog-gatherer/internal/app"),
		inbox:  make(chan command, cfg.InboxSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ManualTicks сообщает, что время продвигается только вызовами Tick
func (l *Loop) ManualTicks() bool { return l.cfg.TickPeriod <= 0 }

// Maps возвращает каталог карт. Карты не меняются после загрузки,
// поэтому читаются без очереди цикла.
func (l *Loop) Maps() []*world.Map { return l.app.Game().Maps() }

// FindMap возвращает карту по идентификатору или nil
func (l *Loop) FindMap(id world.MapID) *world.Map { return l.app.Game().FindMap(id) }

// Start запускает цикл в отдельной горутине
func (l *Loop) Start(ctx context.Context) {
	if l.started.CompareAndSwap(false, true) {
		go l.run(ctx)
	}
}

// Run обрабатывает команды и тики до отмены ctx или Stop.
func (l *Loop) Run(ctx context.Context) {
	if l.started.CompareAndSwap(false, true) {
		l.run(ctx)
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	var tickC <-chan time.Time
	if l.cfg.TickPeriod > 0 {
		ticker := time.NewTicker(l.cfg.TickPeriod)
		defer ticker.Stop()
		tickC = ticker.C
		logging.Info("⏰ Игровой цикл: тик каждые %v", l.cfg.TickPeriod)
	} else {
		logging.Info("⏰ Игровой цикл: ручные тики")
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			logging.Info("🛑 Игровой цикл остановлен: %v", ctx.Err())
			return
		case <-l.quit:
			logging.Info("🛑 Игровой цикл остановлен")
			return
		case cmd := <-l.inbox:
			l.execute(cmd)
			l.cfg.Metrics.observeInbox(len(l.inbox))
		case t := <-tickC:
			dt := t.Sub(last)
			last = t
			l.tick(ctx, dt)
		}
	}
}

func (l *Loop) execute(cmd command) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("💥 Паника в команде игрового цикла: %v", r)
				err = fmt.Errorf("%w: %v", ErrCommandPanic, r)
			}
		}()
		cmd.fn(l.app)
	}()
	cmd.done <- err
}

// Do выполняет fn в горутине цикла и ждёт завершения
func (l *Loop) Do(ctx context.Context, fn func(a *Application)) error {
	cmd := command{fn: fn, done: make(chan error, 1)}

	select {
	case l.inbox <- cmd:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return err
	case <-l.done:
		select {
		case err := <-cmd.done:
			return err
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick продвигает мир на dt в ручном режиме
func (l *Loop) Tick(ctx context.Context, dt time.Duration) (TickReport, error) {
	if !l.ManualTicks() {
		return TickReport{}, ErrManualTickDisabled
	}
	var report TickReport
	err := l.Do(ctx, func(*Application) {
		report = l.tick(ctx, dt)
	})
	return report, err
}

func (l *Loop) tick(ctx context.Context, dt time.Duration) TickReport {
	ctx, span := l.tracer.Start(ctx, "world.tick")
	defer span.End()

	start := time.Now()
	report := l.app.Tick(ctx, dt)
	l.cfg.Metrics.observeTick(time.Since(start).Seconds(), report, l.app)

	span.SetAttributes(
		attribute.Int64("dt_ms", dt.Milliseconds()),
		attribute.Int("dogs", report.Dogs),
		attribute.Int("spawned", report.Spawned),
		attribute.Int("picked", report.Picked),
		attribute.Int("deposits", report.Deposits),
	)

	l.autosave(ctx, dt)
	return report
}

// autosave сохраняет состояние, когда накопленное игровое время достигает SavePeriod
func (l *Loop) autosave(ctx context.Context, dt time.Duration) {
	if l.cfg.SavePeriod <= 0 || l.cfg.Store == nil {
		return
	}
	l.sinceSave += dt
	if l.sinceSave < l.cfg.SavePeriod {
		return
	}
	l.sinceSave = 0
	if err := l.save(ctx); err != nil {
		logging.Error("❌ Автосохранение не удалось: %v", err)
	}
}

// Save принудительно сохраняет состояние
func (l *Loop) Save(ctx context.Context) error {
	var err error
	if doErr := l.Do(ctx, func(*Application) {
		err = l.save(ctx)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (l *Loop) save(ctx context.Context) error {
	if l.cfg.Store == nil {
		return nil
	}

	snap := l.app.Snapshot()
	data, err := storage.EncodeSnapshot(snap, l.cfg.Compress)
	if err == nil {
		err = l.cfg.Store.Save(ctx, data)
	}
	l.cfg.Metrics.observeSave(err)
	if err != nil {
		return fmt.Errorf("сохранение состояния (%s): %w", l.cfg.Store.Name(), err)
	}

	logging.Debug("💾 Состояние сохранено в %s: %d байт, собак %d", l.cfg.Store.Name(), len(data), len(snap.Players.Dogs))
	eventbus.Emit(ctx, eventbus.TypeStateSaved, eventbus.StateSaved{
		Store:   l.cfg.Store.Name(),
		Bytes:   len(data),
		Players: len(snap.Players.Dogs),
	})
	return nil
}

// Restore загружает состояние из хранилища. Вызывается до Start.
// Возвращает false, если сохранённого состояния нет.
func (l *Loop) Restore(ctx context.Context) (bool, error) {
	if l.cfg.Store == nil {
		return false, nil
	}
	if l.started.Load() {
		return false, errors.New("restore after loop start")
	}

	data, err := l.cfg.Store.Load(ctx)
	if errors.Is(err, storage.ErrStateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	snap, err := storage.DecodeSnapshot(data)
	if err != nil {
		return false, err
	}
	if err := l.app.Restore(snap); err != nil {
		return false, err
	}

	logging.Info("📂 Состояние восстановлено из %s: сессий %d, собак %d",
		l.cfg.Store.Name(), len(snap.Sessions), len(snap.Players.Dogs))
	return true, nil
}

// Stop останавливает цикл и делает финальное сохранение.
// Команды, оставшиеся в очереди, не выполняются.
func (l *Loop) Stop(ctx context.Context) error {
	var err error
	l.stopOnce.Do(func() {
		close(l.quit)
		if l.started.CompareAndSwap(false, true) {
			// цикл не запускался
			close(l.done)
		} else {
			select {
			case <-l.done:
			case <-ctx.Done():
				err = ctx.Err()
				return
			}
		}
		if l.cfg.Store != nil {
			err = l.save(ctx)
			if err == nil {
				logging.Info("💾 Финальное сохранение выполнено (%s)", l.cfg.Store.Name())
			}
		}
	})
	return err
}
