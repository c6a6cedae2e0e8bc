package core

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/gwutils"
	"github.com/netgodgame/netgod/engine/metrics"
	"github.com/netgodgame/netgod/engine/opmon"
	"github.com/netgodgame/netgod/engine/post"
	"github.com/pkg/errors"
	"github.com/xiaonanln/goTimer"
)

var (
	// ErrAlreadyRunning is returned when starting an engine which is not stopped
	ErrAlreadyRunning = errors.New("engine is already running")
	// ErrNotRunning is returned when stopping a stopped engine
	ErrNotRunning = errors.New("engine is not running")
	// ErrSystemExists is returned when registering a system name twice
	ErrSystemExists = errors.New("system already registered")
)

const maxFrameDeltaFrames = 4

// Engine updates registered systems at a fixed frame rate in a single engine loop goroutine
type Engine struct {
	mu                  sync.RWMutex
	state               State
	frameRate           int
	frameTime           time.Duration
	adaptation          bool
	adaptIntervalFrames uint64
	metricSampleFrames  uint64

	systems      []*systemEntry
	systemIndex  map[string]*systemEntry
	frameCounter uint64
	frames       *frameRing
	improvement  MetricRecorder

	stopCh   chan struct{}
	loopDone chan struct{}
}

// NewEngine creates an engine from the engine config
func NewEngine(cfg *config.EngineConfig) *Engine {
	e := &Engine{
		state:               StateStopped,
		adaptation:          true,
		adaptIntervalFrames: consts.ADAPT_INTERVAL_FRAMES,
		metricSampleFrames:  consts.METRIC_SAMPLE_FRAMES,
		systemIndex:         map[string]*systemEntry{},
		frames:              newFrameRing(consts.FRAME_METRICS_HISTORY),
	}
	e.setFrameRate(consts.DEFAULT_FRAME_RATE)
	if cfg != nil {
		if cfg.FrameRate > 0 {
			e.setFrameRate(cfg.FrameRate)
		}
		e.adaptation = cfg.Adaptation
		if cfg.AdaptIntervalFrames > 0 {
			e.adaptIntervalFrames = uint64(cfg.AdaptIntervalFrames)
		}
		if cfg.MetricSampleFrames > 0 {
			e.metricSampleFrames = uint64(cfg.MetricSampleFrames)
		}
	}
	return e
}

func (e *Engine) setFrameRate(fps int) {
	e.frameRate = fps
	e.frameTime = time.Second / time.Duration(fps)
}

// SetFrameRate changes the target frame rate
func (e *Engine) SetFrameRate(fps int) error {
	if fps <= 0 {
		return errors.Errorf("invalid frame rate: %d", fps)
	}
	e.mu.Lock()
	e.setFrameRate(fps)
	e.mu.Unlock()
	gwlog.Infof("Engine frame rate set to %d", fps)
	return nil
}

// FrameRate returns the target frame rate
func (e *Engine) FrameRate() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.frameRate
}

// State returns the run state of the engine
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// RegisterSystem adds a system, systems are updated in registration order
func (e *Engine) RegisterSystem(name string, sys System, version string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.systemIndex[name]; ok {
		return errors.Wrap(ErrSystemExists, name)
	}
	entry := &systemEntry{
		sys: sys,
		info: SystemInfo{
			Name:        name,
			Version:     version,
			Status:      StatusInitialized,
			Performance: 1.0,
		},
	}
	e.systems = append(e.systems, entry)
	e.systemIndex[name] = entry
	gwlog.Infof("Registered system %s v%s", name, version)
	return nil
}

// System returns the registered system of the name
func (e *Engine) System(name string) (System, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.systemIndex[name]
	if !ok {
		return nil, false
	}
	return entry.sys, true
}

// AddImprovementModule attaches the recorder which receives system performance samples
func (e *Engine) AddImprovementModule(m MetricRecorder) {
	e.mu.Lock()
	e.improvement = m
	e.mu.Unlock()
}

// InitializeSystems initializes all systems which are not initialized yet
//
// A failing system is marked as error and does not stop others from initializing
func (e *Engine) InitializeSystems() error {
	var failed []string
	for _, entry := range e.snapshotSystems() {
		if e.systemStatus(entry) != StatusInitialized {
			continue
		}

		var err error
		if gwutils.RunPanicless(func() {
			err = entry.sys.Initialize()
		}) {
			err = errors.New("panic in Initialize")
		}

		if err != nil {
			gwlog.Errorf("Initialize system %s failed: %s", entry.info.Name, err)
			e.setSystemStatus(entry, StatusError)
			failed = append(failed, entry.info.Name+": "+err.Error())
			continue
		}
		e.setSystemStatus(entry, StatusReady)
	}

	if len(failed) > 0 {
		return errors.Errorf("%d system(s) failed to initialize: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

// Start initializes pending systems and starts the engine loop
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state != StateStopped {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.state = StateRunning
	e.frameCounter = 0
	e.frames.reset()
	e.stopCh = make(chan struct{})
	e.loopDone = make(chan struct{})
	e.mu.Unlock()

	// systems shut down by a previous Stop are initialized again
	for _, entry := range e.snapshotSystems() {
		if e.systemStatus(entry) == StatusShutdown {
			e.setSystemStatus(entry, StatusInitialized)
		}
	}
	if err := e.InitializeSystems(); err != nil {
		gwlog.Warnf("Engine starting with failed systems: %s", err)
	}

	gwlog.Infof("Engine started at %d FPS", e.FrameRate())
	go e.loop(e.stopCh, e.loopDone)
	return nil
}

// Stop stops the engine loop and shuts down all systems in reverse registration order
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.state = StateStopped
	stopCh, loopDone := e.stopCh, e.loopDone
	e.mu.Unlock()

	close(stopCh)
	<-loopDone

	systems := e.snapshotSystems()
	for i := len(systems) - 1; i >= 0; i-- {
		entry := systems[i]
		if e.systemStatus(entry) == StatusShutdown {
			continue
		}
		gwutils.RunPanicless(entry.sys.Shutdown)
		e.setSystemStatus(entry, StatusShutdown)
	}
	gwlog.Infof("Engine stopped after %d frames", e.currentFrame())
	return nil
}

// Pause the engine loop, systems are not updated until Resume
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		e.state = StatePaused
		gwlog.Infof("Engine paused")
	}
}

// Resume a paused engine
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePaused {
		e.state = StateRunning
		e.frames.reset()
		gwlog.Infof("Engine resumed")
	}
}

// AddTimer adds a repeating timer run by the engine loop
//
// AddTimer should be called in the engine loop or before Start
func (e *Engine) AddTimer(d time.Duration, cb func()) *timer.Timer {
	return timer.AddTimer(d, cb)
}

// SystemInfo returns infos of all systems in registration order
func (e *Engine) SystemInfo() []SystemInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	infos := make([]SystemInfo, len(e.systems))
	for i, entry := range e.systems {
		infos[i] = entry.info
	}
	return infos
}

// PerformanceStats summarizes the recent frames
func (e *Engine) PerformanceStats() PerformanceStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	stats := PerformanceStats{
		CurrentFrame: e.frameCounter,
		EngineState:  e.state.String(),
	}
	frames := e.frames.last(consts.FRAME_METRICS_HISTORY)
	if len(frames) == 0 {
		return stats
	}
	var totalTime time.Duration
	var totalFPS float64
	for _, m := range frames {
		totalTime += m.FrameTime
		totalFPS += m.FPS
	}
	stats.AverageFrameTime = totalTime / time.Duration(len(frames))
	stats.AverageFPS = totalFPS / float64(len(frames))
	return stats
}

func (e *Engine) loop(stopCh chan struct{}, loopDone chan struct{}) {
	defer close(loopDone)

	lastFrameStart := time.Now()
	for {
		e.mu.RLock()
		state, frameTime := e.state, e.frameTime
		e.mu.RUnlock()

		if state == StateStopped || state == StateError {
			return
		}

		if state == StatePaused {
			post.Tick()
			timer.Tick()
			lastFrameStart = time.Now()
			select {
			case <-stopCh:
				return
			case <-time.After(consts.PAUSED_LOOP_INTERVAL):
			}
			continue
		}

		frameStart := time.Now()
		e.updateSystems(frameDelta(frameStart.Sub(lastFrameStart), frameTime))
		post.Tick()
		timer.Tick()
		elapsed := time.Since(frameStart)

		e.recordFrame(frameStart.Sub(lastFrameStart), elapsed)
		lastFrameStart = frameStart

		if sleep := frameTime - elapsed; sleep > 0 {
			select {
			case <-stopCh:
				return
			case <-time.After(sleep):
			}
		}
	}
}

// frameDelta is the dt passed to systems: the real time since the last frame,
// at least one frame time and at most maxFrameDeltaFrames frame times
func frameDelta(sinceLast, frameTime time.Duration) time.Duration {
	if sinceLast < frameTime {
		return frameTime
	}
	if limit := frameTime * maxFrameDeltaFrames; sinceLast > limit {
		return limit
	}
	return sinceLast
}

func (e *Engine) updateSystems(dt time.Duration) {
	systems := e.snapshotSystems()
	if len(systems) == 0 {
		return
	}
	e.mu.RLock()
	budget := e.frameTime / time.Duration(len(systems))
	e.mu.RUnlock()

	for _, entry := range systems {
		if e.systemStatus(entry) != StatusReady {
			continue
		}

		op := opmon.StartOperation("system." + entry.info.Name)
		paniced := gwutils.RunPanicless(func() {
			entry.sys.Update(dt)
		})
		elapsed := op.Finish(dt * maxFrameDeltaFrames)

		if paniced {
			gwlog.Errorf("System %s paniced in Update, marked as error", entry.info.Name)
			e.setSystemStatus(entry, StatusError)
			continue
		}

		perf := measuredPerformance(budget, elapsed)
		if rater, ok := entry.sys.(PerformanceRater); ok {
			perf = gwutils.Clamp(rater.PerformanceRating(), 0, 1)
		}
		e.mu.Lock()
		entry.info.Performance = perf
		e.mu.Unlock()
		metrics.SetSystemPerformance(entry.info.Name, perf)
	}
}

func measuredPerformance(budget, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 1.0
	}
	return math.Min(1.0, float64(budget)/float64(elapsed))
}

func (e *Engine) recordFrame(frameDuration, elapsed time.Duration) {
	if frameDuration <= 0 {
		frameDuration = elapsed
	}
	fps := 0.0
	if frameDuration > 0 {
		fps = float64(time.Second) / float64(frameDuration)
	}

	e.mu.Lock()
	e.frameCounter++
	frame := e.frameCounter
	e.frames.push(FrameMetric{Frame: frame, FrameTime: frameDuration, FPS: fps})
	metrics.RecordFrame(elapsed)
	adaptation, adaptInterval := e.adaptation, e.adaptIntervalFrames
	recorder, sampleInterval := e.improvement, e.metricSampleFrames
	e.mu.Unlock()

	if consts.DEBUG_FRAMES {
		gwlog.Debugf("frame %d: %s (%.1f FPS)", frame, frameDuration, fps)
	}

	if adaptation && frame%adaptInterval == 0 {
		e.adaptPerformance()
	}
	if recorder != nil && frame%sampleInterval == 0 {
		for _, info := range e.SystemInfo() {
			recorder.RecordPerformanceMetric(info.Name, "performance", info.Performance, 1.0, 1.0)
		}
	}
}

// adaptPerformance analyzes recent frames and boosts the rating of systems below the optimize threshold
func (e *Engine) adaptPerformance() {
	stats := e.PerformanceStats()
	targetFPS := float64(e.FrameRate())

	e.mu.Lock()
	defer e.mu.Unlock()

	if stats.AverageFPS < targetFPS*0.8 {
		var slow []string
		for _, entry := range e.systems {
			if entry.info.Performance < consts.SLOW_SYSTEM_PERFORMANCE {
				slow = append(slow, entry.info.Name)
			}
		}
		gwlog.Warnf("Engine running at %.1f FPS (target %.0f), slow systems: %v", stats.AverageFPS, targetFPS, slow)
	}

	for _, entry := range e.systems {
		p := entry.info.Performance
		if p < consts.OPTIMIZE_SYSTEM_PERFORMANCE {
			entry.info.Performance = math.Min(1.0, p+math.Min(0.2, (1-p)*0.5))
		}
	}
}

func (e *Engine) snapshotSystems() []*systemEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*systemEntry(nil), e.systems...)
}

func (e *Engine) systemStatus(entry *systemEntry) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return entry.info.Status
}

func (e *Engine) setSystemStatus(entry *systemEntry, status string) {
	e.mu.Lock()
	entry.info.Status = status
	e.mu.Unlock()
}

func (e *Engine) currentFrame() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.frameCounter
}
