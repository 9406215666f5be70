// Package observability aggregates runtime counters for the stats
// endpoint. Counters are atomic; collection never blocks the sync path.
package observability

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

type Stats struct {
	Status          string  `json:"status"`
	UptimeSeconds   int64   `json:"uptime_seconds"`
	Sessions        int64   `json:"sessions"`
	UpdatesApplied  uint64  `json:"updates_applied"`
	Broadcasts      uint64  `json:"broadcasts"`
	ParseErrors     uint64  `json:"parse_errors"`
	PersistFailures uint64  `json:"persist_failures"`
	DroppedCommands uint64  `json:"dropped_commands"`
	RSSBytes        uint64  `json:"rss_bytes"`
	CPUPercent      float64 `json:"cpu_percent"`
}

type Monitor struct {
	log   *slog.Logger
	start time.Time

	once sync.Once
	proc *process.Process

	sessions        int64
	updatesApplied  uint64
	broadcasts      uint64
	parseErrors     uint64
	persistFailures uint64
	droppedCommands uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log, start: time.Now()}
}

func (m *Monitor) SessionOpened() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.sessions, 1)
}

func (m *Monitor) SessionClosed() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.sessions, -1)
}

func (m *Monitor) IncrUpdatesApplied() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.updatesApplied, 1)
}

func (m *Monitor) IncrBroadcasts() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.broadcasts, 1)
}

func (m *Monitor) IncrParseErrors() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.parseErrors, 1)
}

func (m *Monitor) IncrPersistFailures() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.persistFailures, 1)
}

func (m *Monitor) IncrDroppedCommands() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.droppedCommands, 1)
}

// Snapshot collects counters plus self RSS/CPU. Process stats are
// best-effort: a gopsutil failure leaves them zero.
func (m *Monitor) Snapshot() Stats {
	stats := Stats{
		Status:          "ok",
		UptimeSeconds:   int64(time.Since(m.start).Seconds()),
		Sessions:        atomic.LoadInt64(&m.sessions),
		UpdatesApplied:  atomic.LoadUint64(&m.updatesApplied),
		Broadcasts:      atomic.LoadUint64(&m.broadcasts),
		ParseErrors:     atomic.LoadUint64(&m.parseErrors),
		PersistFailures: atomic.LoadUint64(&m.persistFailures),
		DroppedCommands: atomic.LoadUint64(&m.droppedCommands),
	}

	m.once.Do(func() {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			m.log.Warn("Self process handle unavailable", "error", err)
			return
		}
		m.proc = p
	})
	if m.proc != nil {
		if mem, err := m.proc.MemoryInfo(); err == nil {
			stats.RSSBytes = mem.RSS
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
	}
	return stats
}
