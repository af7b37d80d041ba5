package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/dog-gatherer/internal/logging"
)

const (
	DefaultOutboxSize     = 4096
	DefaultPublishTimeout = 5 * time.Second
)

// Outbox - исходящая очередь перед шиной. Publish никогда не ждёт:
// событие кладётся в ограниченную очередь, при переполнении отбрасывается.
// Отправкой в шину занимается отдельная горутина, каждая публикация
// ограничена таймаутом.
type Outbox struct {
	bus       EventBus
	ownsBus   bool
	timeout   time.Duration
	queue     chan *Envelope
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
	dropped   uint64
	failed    uint64
}

// NewOutbox оборачивает bus; Close закрывает и bus.
func NewOutbox(bus EventBus, size int, timeout time.Duration) *Outbox {
	return newOutbox(bus, size, timeout, true)
}

func newOutbox(bus EventBus, size int, timeout time.Duration, ownsBus bool) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ob := &Outbox{
		bus:     bus,
		ownsBus: ownsBus,
		timeout: timeout,
		queue:   make(chan *Envelope, size),
		done:    make(chan struct{}),
	}
	go ob.run()
	return ob
}

// Publish ставит событие в очередь. Ошибка только если outbox закрыт.
func (ob *Outbox) Publish(_ context.Context, ev *Envelope) error {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if ob.closed {
		return ErrClosed
	}
	select {
	case ob.queue <- ev:
	default:
		if n := atomic.AddUint64(&ob.dropped, 1); n == 1 || n%1000 == 0 {
			logging.GetComponentLogger(logging.ComponentEvents).Warn(
				"⚠️ EventBus: очередь переполнена, отброшено событий: %d", n)
		}
	}
	return nil
}

func (ob *Outbox) run() {
	defer close(ob.done)
	for ev := range ob.queue {
		ctx, cancel := context.WithTimeout(context.Background(), ob.timeout)
		err := ob.bus.Publish(ctx, ev)
		cancel()
		if err != nil {
			atomic.AddUint64(&ob.failed, 1)
			logging.GetComponentLogger(logging.ComponentEvents).Warn(
				"⚠️ EventBus: публикация %s: %v", ev.EventType, err)
		}
	}
}

func (ob *Outbox) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	return ob.bus.Subscribe(ctx, f, h)
}

// Metrics дополняет метрики шины отброшенными и ожидающими событиями очереди.
func (ob *Outbox) Metrics() Stats {
	s := ob.bus.Metrics()
	s.Dropped += atomic.LoadUint64(&ob.dropped) + atomic.LoadUint64(&ob.failed)
	s.InFlight += len(ob.queue)
	return s
}

// Pending - события, ещё не переданные в шину
func (ob *Outbox) Pending() int { return len(ob.queue) }

// Flush закрывает очередь и ждёт отправки оставшихся событий.
func (ob *Outbox) Flush(ctx context.Context) error {
	ob.closeOnce.Do(func() {
		ob.mu.Lock()
		ob.closed = true
		close(ob.queue)
		ob.mu.Unlock()
	})
	select {
	case <-ob.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close отправляет оставшиеся события (не дольше таймаута публикации)
// и закрывает шину, если outbox ею владеет.
func (ob *Outbox) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ob.timeout)
	defer cancel()
	err := ob.Flush(ctx)
	if ob.ownsBus {
		err = errors.Join(err, ob.bus.Close())
	}
	return err
}
