// Package sysmon samples the cpu and memory usage of the server process
package sysmon

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/netgodgame/netgod/engine/core"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/gwutils"
	"github.com/netgodgame/netgod/engine/metrics"
	"github.com/netgodgame/netgod/engine/post"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"
)

// SystemName is the system name of process samples given to the metric recorder
const SystemName = "process"

// Sample is one measurement of the server process
type Sample struct {
	Time       time.Time `json:"time"`
	CPUPercent float64   `json:"cpu_percent"`
	RSS        uint64    `json:"rss"`
}

// Monitor samples the current process
type Monitor struct {
	proc     *process.Process
	recorder core.MetricRecorder

	mu   sync.Mutex
	last Sample
}

// New finds the current process. recorder may be nil.
func New(recorder core.MetricRecorder) (*Monitor, error) {
	pid := os.Getpid()
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, errors.Wrapf(err, "can not find server process: pid = %d", pid)
	}
	return &Monitor{proc: p, recorder: recorder}, nil
}

// Sample measures the process once
func (m *Monitor) Sample(ctx context.Context) (Sample, error) {
	pcnt, err := m.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return Sample{}, errors.Wrap(err, "get process cpu percent")
	}
	mem, err := m.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Sample{}, errors.Wrap(err, "get process memory info")
	}
	return Sample{Time: time.Now(), CPUPercent: pcnt, RSS: mem.RSS}, nil
}

// Last returns the most recent sample handled by the engine loop
func (m *Monitor) Last() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run samples the process every interval until ctx is done.
// Samples are handled on the engine loop.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	gwlog.Infof("sysmon: sampling pid %d every %s", m.proc.Pid, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		gwutils.RunPanicless(func() {
			sample, err := m.Sample(ctx)
			if err != nil {
				if ctx.Err() == nil {
					gwlog.Warnf("sysmon: %v", err)
				}
				return
			}
			post.Post(func() {
				m.handleSample(sample)
			})
		})
	}
}

func (m *Monitor) handleSample(sample Sample) {
	m.mu.Lock()
	m.last = sample
	m.mu.Unlock()

	gwlog.Debugf("sysmon: cpu percent is %.3f%%, rss %d", sample.CPUPercent, sample.RSS)
	metrics.SetProcess(sample.CPUPercent, sample.RSS)
	if m.recorder != nil {
		m.recorder.RecordPerformanceMetric(SystemName, "cpu_headroom", gwutils.Clamp(100-sample.CPUPercent, 0, 100), 100, 1)
	}
}
