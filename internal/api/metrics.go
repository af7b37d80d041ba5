package api

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

const bytesInMB = 1024 * 1024

// ServerMetrics собирает метрики процесса для админского API
type ServerMetrics struct {
	StartTime time.Time

	once sync.Once
	proc *process.Process
}

// ProcessStats - снимок метрик процесса
type ProcessStats struct {
	Uptime     string  `json:"uptime"`
	HeapMB     float64 `json:"heap_mb"`
	RSSMB      float64 `json:"rss_mb,omitempty"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
}

// MemoryDetails - подробности аллокатора Go
type MemoryDetails struct {
	AllocMB      float64 `json:"alloc_mb"`
	TotalAllocMB float64 `json:"total_alloc_mb"`
	SysMB        float64 `json:"sys_mb"`
	HeapObjects  uint64  `json:"heap_objects"`
	NumGC        uint32  `json:"num_gc"`
	LastGC       string  `json:"last_gc,omitempty"`
}

func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{StartTime: time.Now()}
}

// process лениво открывает хэндл текущего процесса; nil если gopsutil недоступен
func (sm *ServerMetrics) process() *process.Process {
	sm.once.Do(func() {
		if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
			sm.proc = p
		}
	})
	return sm.proc
}

// Snapshot собирает метрики процесса
func (sm *ServerMetrics) Snapshot() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := ProcessStats{
		Uptime:     formatUptime(time.Since(sm.StartTime)),
		HeapMB:     float64(m.HeapAlloc) / bytesInMB,
		CPUPercent: sm.cpuPercent(),
		Goroutines: runtime.NumGoroutine(),
	}
	if p := sm.process(); p != nil {
		if mem, err := p.MemoryInfo(); err == nil {
			stats.RSSMB = float64(mem.RSS) / bytesInMB
		}
	}
	return stats
}

// cpuPercent - загрузка CPU процессом, при ошибке - системная
func (sm *ServerMetrics) cpuPercent() float64 {
	if p := sm.process(); p != nil {
		if pct, err := p.CPUPercent(); err == nil {
			return pct
		}
	}
	total, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(total) == 0 {
		return 0
	}
	return total[0]
}

// MemoryDetails возвращает статистику runtime.MemStats
func (sm *ServerMetrics) MemoryDetails() MemoryDetails {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	details := MemoryDetails{
		AllocMB:      float64(m.Alloc) / bytesInMB,
		TotalAllocMB: float64(m.TotalAlloc) / bytesInMB,
		SysMB:        float64(m.Sys) / bytesInMB,
		HeapObjects:  m.HeapObjects,
		NumGC:        m.NumGC,
	}
	if m.LastGC > 0 {
		details.LastGC = time.Unix(0, int64(m.LastGC)).UTC().Format(time.RFC3339)
	}
	return details
}

// formatUptime: "1д 2ч 3м 4с", старшие нулевые части опускаются
func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	days, rest := total/86400, total%86400
	hours, rest := rest/3600, rest%3600
	minutes, seconds := rest/60, rest%60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	}
	return fmt.Sprintf("%dс", seconds)
}
