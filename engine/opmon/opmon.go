package opmon

import (
	"sort"
	"sync"
	"time"

	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
)

var (
	operationAllocPool = sync.Pool{
		New: func() interface{} {
			return &Operation{}
		},
	}

	monitor = newMonitor()
)

func init() {
	if consts.OPMON_DUMP_INTERVAL > 0 {
		go func() {
			for {
				time.Sleep(consts.OPMON_DUMP_INTERVAL)
				Dump()
			}
		}()
	}
}

// OpStat is the accumulated timing of one operation name
type OpStat struct {
	Name          string        `json:"name"`
	Count         uint64        `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	MaxDuration   time.Duration `json:"max_duration"`
}

// Avg returns the average duration of the operation
func (s OpStat) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Count)
}

type _Monitor struct {
	sync.Mutex
	opInfos map[string]*OpStat
}

func newMonitor() *_Monitor {
	m := &_Monitor{
		opInfos: map[string]*OpStat{},
	}
	return m
}

func (monitor *_Monitor) record(opname string, duration time.Duration) {
	monitor.Lock()
	info := monitor.opInfos[opname]
	if info == nil {
		info = &OpStat{Name: opname}
		monitor.opInfos[opname] = info
	}
	info.Count += 1
	info.TotalDuration += duration
	if duration > info.MaxDuration {
		info.MaxDuration = duration
	}
	monitor.Unlock()
}

func (monitor *_Monitor) snapshot(reset bool) []OpStat {
	monitor.Lock()
	stats := make([]OpStat, 0, len(monitor.opInfos))
	for _, info := range monitor.opInfos {
		stats = append(stats, *info)
	}
	if reset {
		monitor.opInfos = map[string]*OpStat{}
	}
	monitor.Unlock()

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Name < stats[j].Name
	})
	return stats
}

// Snapshot returns operation stats sorted by name
func Snapshot() []OpStat {
	return monitor.snapshot(false)
}

// Dump logs all operation stats and clears them
func Dump() {
	for _, s := range monitor.snapshot(true) {
		gwlog.Infof("opmon: %-30sx%-10d AVG %-10s MAX %-10s", s.Name, s.Count, s.Avg(), s.MaxDuration)
	}
}

// Operation is the type of operation to be monitored
type Operation struct {
	name      string
	startTime time.Time
}

// StartOperation creates a new operation
func StartOperation(operationName string) *Operation {
	op := operationAllocPool.Get().(*Operation)
	op.name = operationName
	op.startTime = time.Now()
	return op
}

// Finish finishes the operation, records the duration of operation and returns it
func (op *Operation) Finish(warnThreshold time.Duration) time.Duration {
	takeTime := time.Since(op.startTime)
	monitor.record(op.name, takeTime)
	if warnThreshold > 0 && takeTime >= warnThreshold {
		gwlog.Warnf("opmon: operation %s takes %s > %s", op.name, takeTime, warnThreshold)
	}
	operationAllocPool.Put(op)
	return takeTime
}
