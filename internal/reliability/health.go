package reliability

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthSnapshot is the process-health slice surfaced on BotState's
// engine block (spec.md §4.17, ambient).
type HealthSnapshot struct {
	CPUPercent    float64
	MemPercent    float64
	UptimeSeconds float64
}

// HealthReporter samples CPU/RAM via gopsutil, matching the teacher's
// own getSystemStats helper (100ms CPU sample to stay responsive on a
// polled endpoint, instant VirtualMemory read).
type HealthReporter struct {
	startedAt time.Time
	log       zerolog.Logger
}

// NewHealthReporter starts the uptime clock at construction time.
func NewHealthReporter(log zerolog.Logger) *HealthReporter {
	return &HealthReporter{startedAt: time.Now(), log: log.With().Str("component", "health").Logger()}
}

// Sample takes a fresh CPU/RAM reading. CPU sampling blocks for 100ms.
func (h *HealthReporter) Sample() HealthSnapshot {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to sample cpu percent")
		cpuPercent = []float64{0}
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memPercent := 0.0
	if memStat, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("failed to sample memory stats")
	} else {
		memPercent = memStat.UsedPercent
	}

	return HealthSnapshot{
		CPUPercent:    cpuAvg,
		MemPercent:    memPercent,
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}
}
