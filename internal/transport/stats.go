package transport

import (
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is one sample of host resource usage, reported alongside the
// server's own connection and byte counters.
type HostStats struct {
	CPUPercent    float64
	MemoryPercent float64
	LoadAverage1  float64
	Connections   int
	BytesReceived int64
	BytesSent     int64
}

// StatsReporter periodically samples host resource usage via gopsutil and
// logs it alongside the Server's own counters, on a cron schedule rather
// than a bare ticker so operators set its timing as a cron expression.
type StatsReporter struct {
	server *Server
	logger *slog.Logger
	cron   *cron.Cron
}

// NewStatsReporter builds a reporter that logs a HostStats sample every
// time schedule fires. schedule is a standard cron expression or a
// "@every" duration shorthand, e.g. "@every 30s".
func NewStatsReporter(server *Server, logger *slog.Logger, schedule string) (*StatsReporter, error) {
	r := &StatsReporter{
		server: server,
		logger: logger.With("component", "stats_reporter"),
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	if _, err := c.AddFunc(schedule, r.report); err != nil {
		return nil, err
	}
	r.cron = c
	return r, nil
}

// Start begins the scheduled reporting.
func (r *StatsReporter) Start() { r.cron.Start() }

// Stop halts the scheduler and waits for any in-flight report to finish.
func (r *StatsReporter) Stop() { <-r.cron.Stop().Done() }

func (r *StatsReporter) report() {
	stats := HostStats{
		Connections:   r.server.ConnectionCount(),
		BytesReceived: r.server.BytesReceived.Load(),
		BytesSent:     r.server.BytesSent.Load(),
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		stats.CPUPercent = percentages[0]
	} else {
		r.logger.Debug("failed to sample cpu", "error", err)
	}
	if v, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = v.UsedPercent
	} else {
		r.logger.Debug("failed to sample memory", "error", err)
	}
	if l, err := load.Avg(); err == nil {
		stats.LoadAverage1 = l.Load1
	} else {
		r.logger.Debug("failed to sample load average", "error", err)
	}

	r.logger.Info("host stats",
		"connections", stats.Connections,
		"bytes_received", stats.BytesReceived,
		"bytes_sent", stats.BytesSent,
		"cpu_percent", stats.CPUPercent,
		"memory_percent", stats.MemoryPercent,
		"load1", stats.LoadAverage1,
	)
}
