package core

import "time"

// State is the run state of the engine
type State int

const (
	// StateStopped is the state before Start and after Stop
	StateStopped State = iota
	// StateRunning means the engine loop is updating systems
	StateRunning
	// StatePaused means the engine loop only runs posted callbacks and timers
	StatePaused
	// StateError means the engine loop quit unexpectedly
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// System statuses
const (
	StatusInitialized = "initialized"
	StatusReady       = "ready"
	StatusError       = "error"
	StatusShutdown    = "shutdown"
)

// System is a component updated once per frame by the engine loop
type System interface {
	Initialize() error
	Update(dt time.Duration)
	Shutdown()
}

// PerformanceRater is implemented by systems which rate their own performance in [0, 1]
type PerformanceRater interface {
	PerformanceRating() float64
}

// MetricRecorder receives per-system performance samples from the engine
type MetricRecorder interface {
	RecordPerformanceMetric(system, metric string, value, target, weight float64)
}

// SystemInfo describes a registered system
type SystemInfo struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Status      string  `json:"status"`
	Performance float64 `json:"performance"`
}

// FrameMetric is the timing of one engine frame
type FrameMetric struct {
	Frame     uint64        `json:"frame"`
	FrameTime time.Duration `json:"frame_time"`
	FPS       float64       `json:"fps"`
}

// PerformanceStats summarizes recent frames
type PerformanceStats struct {
	AverageFrameTime time.Duration `json:"average_frame_time"`
	AverageFPS       float64       `json:"average_fps"`
	CurrentFrame     uint64        `json:"current_frame"`
	EngineState      string        `json:"engine_state"`
}

type systemEntry struct {
	sys  System
	info SystemInfo
}

// frameRing keeps the last N frame metrics
type frameRing struct {
	metrics []FrameMetric
	next    int
	full    bool
}

func newFrameRing(size int) *frameRing {
	return &frameRing{metrics: make([]FrameMetric, size)}
}

func (r *frameRing) push(m FrameMetric) {
	r.metrics[r.next] = m
	r.next++
	if r.next == len(r.metrics) {
		r.next = 0
		r.full = true
	}
}

func (r *frameRing) len() int {
	if r.full {
		return len(r.metrics)
	}
	return r.next
}

func (r *frameRing) reset() {
	r.next = 0
	r.full = false
}

// last returns up to n most recent metrics, oldest first
func (r *frameRing) last(n int) []FrameMetric {
	if l := r.len(); n > l {
		n = l
	}
	res := make([]FrameMetric, n)
	for i := 0; i < n; i++ {
		idx := (r.next - n + i + len(r.metrics)) % len(r.metrics)
		res[i] = r.metrics[idx]
	}
	return res
}
