package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/dog-gatherer/internal/logging"
	nats "github.com/nats-io/nats.go"
)

// SubjectPrefix - префикс subject'ов игровых событий
const SubjectPrefix = "dogs.events"

const ackWait = 30 * time.Second

// JetStreamBus реализует EventBus поверх NATS JetStream.
// События пишутся в стрим, локальные подписчики читают только новые сообщения.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	published uint64
	consumed  uint64
	dropped   uint64
	pending   int64
}

// NewJetStreamBus подключается к NATS и создаёт (или обновляет) стрим.
// url: nats://127.0.0.1:4222, stream: "DOGS".
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "DOGS"
	}
	log := logging.GetComponentLogger(logging.ComponentEvents)

	nc, err := nats.Connect(url,
		nats.Name(Source),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("🔌 NATS отключён: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("🔌 NATS переподключён к %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStream(js, stream, retention); err != nil {
		nc.Close()
		return nil, err
	}
	log.Info("📡 JetStream стрим %s готов (%s.*, хранение %v)", stream, SubjectPrefix, retention)

	return &JetStreamBus{nc: nc, js: js, stream: stream}, nil
}

func ensureStream(js nats.JetStreamContext, stream string, retention time.Duration) error {
	cfg := &nats.StreamConfig{
		Name:      stream,
		Subjects:  []string{SubjectPrefix + ".*"},
		Retention: nats.LimitsPolicy,
		MaxAge:    retention,
		Storage:   nats.FileStorage,
	}

	info, err := js.StreamInfo(stream)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, err := js.AddStream(cfg); err != nil {
			return fmt.Errorf("add stream: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("stream info: %w", err)
	}

	if info.Config.MaxAge != retention {
		if _, err := js.UpdateStream(cfg); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
	}
	return nil
}

// Subject возвращает subject для типа события
func Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

// Publish сериализует Envelope в JSON и публикует в subject dogs.events.<type>.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}

	msg := nats.NewMsg(Subject(ev.EventType))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.ID)

	if _, err = jb.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe создаёт эфемерный consumer, получающий только новые события.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := SubjectPrefix + ".*"
	if len(f.Types) == 1 {
		subj = Subject(f.Types[0])
	}

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		atomic.AddInt64(&jb.pending, 1)
		defer atomic.AddInt64(&jb.pending, -1)

		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			atomic.AddUint64(&jb.dropped, 1)
			_ = msg.Term()
			return
		}
		if matchFilter(&ev, f) {
			h(ctx, &ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}, nats.BindStream(jb.stream), nats.DeliverNew(), nats.ManualAck(), nats.AckWait(ackWait))
	if err != nil {
		return nil, err
	}

	return &jetSub{natSub}, nil
}

type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает текущие метрики.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
		InFlight:  int(atomic.LoadInt64(&jb.pending)),
	}
}

// Close дожидается отправки буферов и закрывает соединение.
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
