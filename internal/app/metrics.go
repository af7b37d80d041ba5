package app

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LoopMetrics - метрики игрового цикла
type LoopMetrics struct {
	tickDuration prometheus.Histogram
	ticks        prometheus.Counter
	dogs         prometheus.Gauge
	sessions     prometheus.Gauge
	lostObjects  prometheus.Gauge
	picked       prometheus.Counter
	deposits     prometheus.Counter
	saves        *prometheus.CounterVec
	inboxDepth   prometheus.Gauge
}

// NewLoopMetrics создаёт метрики и регистрирует их в reg (nil - дефолтный регистр)
func NewLoopMetrics(reg prometheus.Registerer) *LoopMetrics {
	m := &LoopMetrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dogs",
			Name:      "tick_duration_seconds",
			Help:      "Длительность обработки игрового тика.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dogs",
			Name:      "ticks_total",
			Help:      "Количество обработанных тиков.",
		}),
		dogs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dogs",
			Name:      "players",
			Help:      "Количество собак в мире.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dogs",
			Name:      "sessions",
			Help:      "Количество открытых игровых сессий.",
		}),
		lostObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dogs",
			Name:      "lost_objects",
			Help:      "Количество потерянных предметов на дорогах.",
		}),
		picked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dogs",
			Name:      "loot_picked_total",
			Help:      "Подобрано предметов.",
		}),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dogs",
			Name:      "loot_deposits_total",
			Help:      "Сдано рюкзаков в бюро находок.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dogs",
			Name:      "state_saves_total",
			Help:      "Сохранения состояния по результату.",
		}, []string{"result"}),
		inboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dogs",
			Name:      "loop_inbox_depth",
			Help:      "Команды, ожидающие выполнения в игровом цикле.",
		}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.tickDuration, m.ticks, m.dogs, m.sessions, m.lostObjects,
		m.picked, m.deposits, m.saves, m.inboxDepth)
	return m
}

func (m *LoopMetrics) observeTick(seconds float64, report TickReport, a *Application) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(seconds)
	m.ticks.Inc()
	m.picked.Add(float64(report.Picked))
	m.deposits.Add(float64(report.Deposits))
	m.dogs.Set(float64(a.players.Count()))

	sessions := a.game.Sessions()
	m.sessions.Set(float64(len(sessions)))
	lost := 0
	for _, s := range sessions {
		lost += s.LostObjectsCount()
	}
	m.lostObjects.Set(float64(lost))
}

func (m *LoopMetrics) observeSave(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.saves.WithLabelValues("error").Inc()
		return
	}
	m.saves.WithLabelValues("ok").Inc()
}

func (m *LoopMetrics) observeInbox(depth int) {
	if m == nil {
		return
	}
	m.inboxDepth.Set(float64(depth))
}
