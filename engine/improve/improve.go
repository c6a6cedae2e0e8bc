package improve

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/gwutils"
	"github.com/netgodgame/netgod/engine/metrics"
	"github.com/pkg/errors"
)

// Settings of the self-improvement system
type Settings = config.ImprovementConfig

// PerformanceMetric is one performance sample of a system
type PerformanceMetric struct {
	Timestamp time.Time `json:"timestamp"`
	System    string    `json:"system"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Target    float64   `json:"target"`
	Weight    float64   `json:"weight"`
}

func (m *PerformanceMetric) ratio() (float64, bool) {
	if m.Target == 0 {
		return 0, false
	}
	return m.Value / m.Target, true
}

// Stats of the self-improvement system
type Stats struct {
	LearningCycles          int     `json:"learning_cycles"`
	OptimizationsApplied    int     `json:"optimizations_applied"`
	PerformanceImprovements int     `json:"performance_improvements"`
	FailedOptimizations     int     `json:"failed_optimizations"`
	AvgImprovementRate      float64 `json:"avg_improvement_rate"`
	TotalImprovement        float64 `json:"total_improvement"`
}

type queuedOptimization struct {
	system      string
	strategy    string
	severity    Severity
	ratioBefore float64
}

type pendingEvaluation struct {
	strategy    string
	ratioBefore float64
}

// System learns from performance metrics and tunes other systems with strategies
type System struct {
	mu             sync.Mutex
	settings       Settings
	history        []PerformanceMetric
	strategies     map[string]*Strategy
	systemStrategy map[string]string
	tunables       map[string]Tunable
	queue          []queuedOptimization
	pending        map[string]pendingEvaluation
	baselines      map[string]float64
	trends         map[string][]float64
	predictor      *Predictor
	elapsed        time.Duration
	stats          Stats
}

// NewSystem creates the self-improvement system with the default strategies
func NewSystem(cfg *config.ImprovementConfig) *System {
	s := &System{
		settings:       *cfg,
		strategies:     map[string]*Strategy{},
		systemStrategy: map[string]string{},
		tunables:       map[string]Tunable{},
		pending:        map[string]pendingEvaluation{},
		baselines:      map[string]float64{},
		trends:         map[string][]float64{},
		predictor:      NewPredictor(),
	}
	for system, strategy := range defaultStrategies() {
		s.strategies[strategy.Name] = strategy
		s.systemStrategy[system] = strategy.Name
	}
	return s
}

// Initialize the system
func (s *System) Initialize() error {
	gwlog.Infof("Self-improvement initialized with %d strategies, adaptation interval %s", len(s.strategies), s.settings.AdaptationInterval)
	return nil
}

// Shutdown exports performance data if an export file is configured
func (s *System) Shutdown() {
	if s.settings.ExportFile == "" {
		return
	}
	if err := s.ExportPerformanceData(s.settings.ExportFile); err != nil {
		gwlog.Errorf("Export performance data failed: %s", err)
	}
}

// RegisterTunable sets the target of strategies for the system
func (s *System) RegisterTunable(system string, t Tunable) {
	s.mu.Lock()
	s.tunables[system] = t
	s.mu.Unlock()
}

// AddStrategy adds or replaces the strategy used for the system
func (s *System) AddStrategy(system string, strategy Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := strategy.clone()
	s.strategies[st.Name] = &st
	s.systemStrategy[system] = st.Name
}

// RecordPerformanceMetric appends a metric to the bounded history
func (s *System) RecordPerformanceMetric(system, metric string, value, target, weight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, PerformanceMetric{
		Timestamp: time.Now(),
		System:    system,
		Metric:    metric,
		Value:     value,
		Target:    target,
		Weight:    weight,
	})
	if over := len(s.history) - s.settings.HistorySize; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
}

// Update runs a learning cycle every adaptation interval and applies at most one queued optimization
func (s *System) Update(dt time.Duration) {
	s.mu.Lock()
	s.elapsed += dt
	if s.elapsed >= s.settings.AdaptationInterval {
		s.elapsed = 0
		s.runCycle()
	}

	if !s.settings.Autonomous || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	opt := s.queue[0]
	s.queue = s.queue[1:]
	strategy := s.strategies[opt.strategy]
	tunable := s.tunables[opt.system]
	s.mu.Unlock()

	// tunables may call back into other systems, so do not hold the lock
	applied := tunable != nil && strategy != nil && tunable.ApplyOptimization(strategy, opt.severity)
	metrics.IncOptimization(opt.system, applied)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !applied {
		s.stats.FailedOptimizations++
		gwlog.Warnf("Optimization %s of %s could not be applied", opt.strategy, opt.system)
		return
	}
	strategy.ApplicationCount++
	strategy.LastApplied = time.Now()
	s.stats.OptimizationsApplied++
	s.pending[opt.system] = pendingEvaluation{strategy: opt.strategy, ratioBefore: opt.ratioBefore}
	gwlog.Infof("Applied optimization %s to %s (severity %s)", opt.strategy, opt.system, opt.severity)
}

func (s *System) runCycle() {
	s.stats.LearningCycles++

	ratios := systemRatios(lastMetrics(s.history, consts.IMPROVE_ANALYSIS_WINDOW))
	s.evaluatePending(ratios)

	if len(ratios) > 0 {
		var overall float64
		for _, r := range ratios {
			overall += r
		}
		overall /= float64(len(ratios))

		for _, system := range sortedKeys(ratios) {
			r := ratios[system]
			s.pushTrend(system, r)
			if r < consts.BOTTLENECK_THRESHOLD && overall < s.settings.OptimizationThreshold {
				severity := SeverityMedium
				if r < 0.5 {
					severity = SeverityHigh
				}
				s.queueStrategy(system, severity, r)
			}
		}
	}

	s.updateBaselines(ratios)

	if s.settings.Predictive {
		s.predictor.Train(s.trends)
		for _, system := range sortedKeys(ratios) {
			if predicted, ok := s.predictor.Predict(system); ok && predicted < consts.BOTTLENECK_THRESHOLD {
				s.queueStrategy(system, SeverityMedium, ratios[system])
			}
		}
	}
}

func (s *System) queueStrategy(system string, severity Severity, ratio float64) {
	name, ok := s.systemStrategy[system]
	if !ok {
		return
	}
	for _, q := range s.queue {
		if q.strategy == name {
			return
		}
	}
	if s.strategies[name].ApplicationCount >= s.settings.MaxOptimizationAttempts {
		return
	}
	s.queue = append(s.queue, queuedOptimization{system: system, strategy: name, severity: severity, ratioBefore: ratio})
}

func (s *System) evaluatePending(ratios map[string]float64) {
	for system, pe := range s.pending {
		after, ok := ratios[system]
		if !ok {
			continue
		}
		strategy := s.strategies[pe.strategy]
		if after > pe.ratioBefore {
			strategy.Effectiveness = math.Min(1.0, strategy.Effectiveness+0.1)
			s.stats.PerformanceImprovements++
			s.stats.TotalImprovement += after - pe.ratioBefore
			s.stats.AvgImprovementRate = s.stats.TotalImprovement / float64(s.stats.PerformanceImprovements)
		} else {
			strategy.Effectiveness = math.Max(0, strategy.Effectiveness-0.05)
		}
		delete(s.pending, system)
	}
}

func (s *System) pushTrend(system string, ratio float64) {
	trend := append(s.trends[system], ratio)
	if len(trend) > consts.IMPROVE_TREND_WINDOW {
		trend = trend[len(trend)-consts.IMPROVE_TREND_WINDOW:]
	}
	s.trends[system] = trend
}

func (s *System) updateBaselines(ratios map[string]float64) {
	if len(s.history) < consts.IMPROVE_ANALYSIS_WINDOW {
		return
	}
	for system, r := range ratios {
		if old, ok := s.baselines[system]; ok {
			s.baselines[system] = old*0.9 + r*0.1
		} else {
			s.baselines[system] = r
		}
	}
}

func lastMetrics(history []PerformanceMetric, n int) []PerformanceMetric {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// systemRatios returns the average value/target ratio per system
func systemRatios(samples []PerformanceMetric) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for i := range samples {
		r, ok := samples[i].ratio()
		if !ok {
			continue
		}
		sums[samples[i].System] += r
		counts[samples[i].System]++
	}
	ratios := make(map[string]float64, len(sums))
	for system, sum := range sums {
		ratios[system] = sum / float64(counts[system])
	}
	return ratios
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns the improvement stats
func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// PerformanceRating is the mean ratio of the last 50 metrics
func (s *System) PerformanceRating() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ratios []float64
	for _, m := range lastMetrics(s.history, 50) {
		if r, ok := m.ratio(); ok {
			ratios = append(ratios, r)
		}
	}
	if len(ratios) == 0 {
		return 1.0
	}
	return gwutils.Clamp(gwutils.Mean(ratios), 0, 1)
}

// Suggestions lists systems whose performance declined by more than 10%
func (s *System) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var suggestions []string
	for _, system := range sortedKeysOfTrends(s.trends) {
		trend := s.trends[system]
		if len(trend) < 10 {
			continue
		}
		recent := gwutils.Mean(trend[len(trend)-5:])
		previous := gwutils.Mean(trend[len(trend)-10 : len(trend)-5])
		if previous > 0 && recent < previous*0.9 {
			suggestions = append(suggestions, fmt.Sprintf("%s performance declined by %.0f%%, consider applying %s",
				system, (1-recent/previous)*100, s.systemStrategy[system]))
		}
	}
	return suggestions
}

func sortedKeysOfTrends(trends map[string][]float64) []string {
	keys := make([]string, 0, len(trends))
	for k := range trends {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Baselines returns the baseline ratio of each system
func (s *System) Baselines() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make(map[string]float64, len(s.baselines))
	for k, v := range s.baselines {
		res[k] = v
	}
	return res
}

// Strategies returns copies of all strategies sorted by name
func (s *System) Strategies() []Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		res = append(res, st.clone())
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res
}

// ClearPerformanceHistory drops all metrics, trends and baselines
func (s *System) ClearPerformanceHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.trends = map[string][]float64{}
	s.baselines = map[string]float64{}
	s.pending = map[string]pendingEvaluation{}
}

type exportData struct {
	ExportedAt  time.Time            `json:"exported_at"`
	Stats       Stats                `json:"stats"`
	Strategies  []Strategy           `json:"strategies"`
	Baselines   map[string]float64   `json:"baselines"`
	Trends      map[string][]float64 `json:"trends"`
	Suggestions []string             `json:"suggestions"`
	History     []PerformanceMetric  `json:"history"`
}

// ExportPerformanceData writes the performance data to path as JSON atomically
func (s *System) ExportPerformanceData(path string) error {
	data := exportData{
		ExportedAt:  time.Now(),
		Stats:       s.Stats(),
		Strategies:  s.Strategies(),
		Baselines:   s.Baselines(),
		Suggestions: s.Suggestions(),
	}
	s.mu.Lock()
	data.History = append([]PerformanceMetric(nil), lastMetrics(s.history, consts.IMPROVE_ANALYSIS_WINDOW)...)
	data.Trends = make(map[string][]float64, len(s.trends))
	for k, v := range s.trends {
		data.Trends[k] = append([]float64(nil), v...)
	}
	s.mu.Unlock()

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal performance data")
	}
	if err := renameio.WriteFile(path, b, 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	gwlog.Infof("Performance data exported to %s", path)
	return nil
}
