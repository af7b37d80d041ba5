package eventbus

import (
	"context"
	"sync/atomic"

	"github.com/annel0/dog-gatherer/internal/logging"
	"go.opentelemetry.io/otel/trace"
)

var globalBus atomic.Pointer[Outbox]

// Init устанавливает глобальную шину. Шина, не являющаяся Outbox,
// оборачивается исходящей очередью, которая ей не владеет.
// Предыдущая очередь дочищается. Init(nil) отключает публикацию.
func Init(bus EventBus) {
	var next *Outbox
	switch b := bus.(type) {
	case nil:
	case *Outbox:
		next = b
	default:
		next = newOutbox(b, DefaultOutboxSize, DefaultPublishTimeout, false)
	}
	prev := globalBus.Swap(next)
	if prev != nil && prev != next && !prev.ownsBus {
		_ = prev.Close()
	}
}

// Publish ставит событие в глобальную очередь, если шина инициализирована.
func Publish(ctx context.Context, ev *Envelope) error {
	ob := globalBus.Load()
	if ob == nil {
		return nil
	}
	return ob.Publish(ctx, ev)
}

// Emit упаковывает событие и ставит в очередь без ожидания шины.
// Trace ID из ctx становится CorrelationID события.
func Emit(ctx context.Context, eventType string, payload any) {
	ob := globalBus.Load()
	if ob == nil {
		return
	}
	ev, err := NewEnvelope(eventType, payload)
	if err != nil {
		logging.Warn("⚠️ EventBus: %v", err)
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.CorrelationID = sc.TraceID().String()
	}
	if err := ob.Publish(ctx, ev); err != nil {
		logging.Warn("⚠️ EventBus: публикация %s: %v", eventType, err)
	}
}

// Shutdown дожидается отправки событий глобальной очереди.
func Shutdown(ctx context.Context) error {
	ob := globalBus.Load()
	if ob == nil {
		return nil
	}
	return ob.Flush(ctx)
}
