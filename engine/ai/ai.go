package ai

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/gwutils"
	"github.com/netgodgame/netgod/engine/improve"
	"github.com/pkg/errors"
	"github.com/xiaonanln/go-aoi"
)

// Settings of the AI behavior system
type Settings = config.AIConfig

const (
	moveDistance    = 2.0
	targetResponse  = time.Millisecond * 50
	responseHistory = 100
)

// agent binds an entity to its AOI node and neighbor set
type agent struct {
	entity    *Entity
	aoi       aoi.AOI
	neighbors map[*agent]struct{}
}

func (a *agent) OnEnterAOI(other *aoi.AOI) {
	a.neighbors[other.Data.(*agent)] = struct{}{}
}

func (a *agent) OnLeaveAOI(other *aoi.AOI) {
	delete(a.neighbors, other.Data.(*agent))
}

// System updates NPC behaviors at a fixed update rate
type System struct {
	mu            sync.RWMutex
	settings      Settings
	agents        map[string]*agent
	aoiMgr        aoi.AOIManager
	trees         map[string]BehaviorTree
	rng           *rand.Rand
	sinceUpdate   time.Duration
	responseTimes []time.Duration
	stats         Stats
}

// NewSystem creates the AI behavior system
func NewSystem(cfg *config.AIConfig) *System {
	return &System{
		settings: *cfg,
		agents:   map[string]*agent{},
		trees:    map[string]BehaviorTree{},
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Initialize creates the perception manager and the default behavior trees
func (s *System) Initialize() error {
	if s.settings.UpdateRate <= 0 || s.settings.PerceptionRange <= 0 {
		return errors.Errorf("invalid update rate %s or perception range %f", s.settings.UpdateRate, s.settings.PerceptionRange)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aoiMgr == nil {
		s.aoiMgr = aoi.NewXZListAOIManager(aoi.Coord(s.settings.PerceptionRange))
	}
	s.trees = defaultBehaviorTrees()
	gwlog.Infof("AI behavior initialized: update rate %s, perception range %.1f", s.settings.UpdateRate, s.settings.PerceptionRange)
	return nil
}

// Shutdown removes all entities
func (s *System) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		s.aoiMgr.Leave(&a.aoi)
	}
	s.agents = map[string]*agent{}
	gwlog.Infof("AI behavior shutdown, %d learning cycles", s.stats.LearningCycles)
}

// AddEntity adds an entity, replacing an entity of the same ID
func (s *System) AddEntity(e *Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aoiMgr == nil {
		s.aoiMgr = aoi.NewXZListAOIManager(aoi.Coord(s.settings.PerceptionRange))
	}
	if old, ok := s.agents[e.ID]; ok {
		s.aoiMgr.Leave(&old.aoi)
	}
	if e.Relationships == nil {
		e.Relationships = map[string]float64{}
	}
	if e.Behavior.Memory == nil {
		e.Behavior.Memory = map[string]float64{}
	}
	a := &agent{entity: e, neighbors: map[*agent]struct{}{}}
	aoi.InitAOI(&a.aoi, aoi.Coord(s.settings.PerceptionRange), a, a)
	s.agents[e.ID] = a
	s.aoiMgr.Enter(&a.aoi, aoi.Coord(e.State.Position.X), aoi.Coord(e.State.Position.Z))
	s.stats.Entities = len(s.agents)
	if consts.DEBUG_AI {
		gwlog.Debugf("AI entity %s added at %s", e.ID, e.State.Position)
	}
}

// RemoveEntity removes an entity
func (s *System) RemoveEntity(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return
	}
	s.aoiMgr.Leave(&a.aoi)
	delete(s.agents, id)
	s.stats.Entities = len(s.agents)
}

// SetBehaviorType changes the personality of an entity
func (s *System) SetBehaviorType(id string, t BehaviorType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if ok {
		a.entity.Behavior.Type = t
	}
	return ok
}

// Damage lowers the health of an entity, an entity without health is dead
func (s *System) Damage(id string, amount float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return false
	}
	a.entity.State.Health = math.Max(0, a.entity.State.Health-amount)
	if a.entity.State.Health == 0 {
		a.entity.State.Current = DEAD
	}
	return true
}

// Entity returns a copy of the entity
func (s *System) Entity(id string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return Entity{}, false
	}
	return a.entity.clone(), true
}

// BehaviorTree returns the named behavior tree
func (s *System) BehaviorTree(name string) (BehaviorTree, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[name]
	return t, ok
}

// Stats returns the AI stats
func (s *System) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// LearningRate returns the adaptive learning rate
func (s *System) LearningRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.LearningRate
}

// UpdateRate returns the interval between behavior updates
func (s *System) UpdateRate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.UpdateRate
}

// Update runs behaviors when the update interval has passed
func (s *System) Update(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sinceUpdate += dt
	if s.sinceUpdate < s.settings.UpdateRate {
		return
	}
	elapsed := s.sinceUpdate
	s.sinceUpdate = 0

	start := time.Now()
	active := 0
	for _, id := range s.sortedIDs() {
		a := s.agents[id]
		if a.entity.State.Current == DEAD {
			continue
		}
		s.updateEntityState(a.entity, elapsed)
		behavior := s.selectBehavior(a)
		s.executeBehavior(a, behavior)
		if a.entity.State.ActionCooldown > 0 {
			active++
		}
	}

	if s.settings.Learning {
		s.adaptBehaviors()
	}

	s.responseTimes = append(s.responseTimes, time.Since(start))
	if len(s.responseTimes) > responseHistory {
		s.responseTimes = s.responseTimes[len(s.responseTimes)-responseHistory:]
	}
	s.stats.AvgResponseTime = avgDuration(s.responseTimes)
	s.stats.ActiveBehaviors = active
	s.stats.Entities = len(s.agents)
}

func (s *System) sortedIDs() []string {
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *System) updateEntityState(e *Entity, elapsed time.Duration) {
	if e.State.ActionCooldown > 0 {
		e.State.ActionCooldown -= elapsed
		if e.State.ActionCooldown < 0 {
			e.State.ActionCooldown = 0
		}
	}
	sec := elapsed.Seconds()
	e.State.Energy = math.Min(100, e.State.Energy+sec*0.1)
	e.State.Health = math.Min(100, e.State.Health+sec*0.05)
}

// nearby returns AOI neighbors within the 3D perception range, sorted by distance
func (s *System) nearby(a *agent) []*agent {
	res := make([]*agent, 0, len(a.neighbors))
	for n := range a.neighbors {
		if n.entity.State.Current == DEAD {
			continue
		}
		if float64(a.entity.State.Position.DistanceTo(n.entity.State.Position)) <= s.settings.PerceptionRange {
			res = append(res, n)
		}
	}
	pos := a.entity.State.Position
	sort.Slice(res, func(i, j int) bool {
		di, dj := pos.DistanceTo(res[i].entity.State.Position), pos.DistanceTo(res[j].entity.State.Position)
		if di != dj {
			return di < dj
		}
		return res[i].entity.ID < res[j].entity.ID
	})
	return res
}

func isThreat(e, other *Entity) bool {
	return e.Faction != other.Faction && other.Behavior.Aggression > 0.7
}

func isFriend(e, other *Entity) bool {
	return e.Faction == other.Faction || e.Relationships[other.ID] > 0
}

type selection struct {
	behavior string
	threats  []*agent
	friends  []*agent
}

func (s *System) selectBehavior(a *agent) selection {
	sel := selection{}
	for _, n := range s.nearby(a) {
		if isThreat(a.entity, n.entity) {
			sel.threats = append(sel.threats, n)
		}
		if isFriend(a.entity, n.entity) {
			sel.friends = append(sel.friends, n)
		}
	}

	switch a.entity.Behavior.Type {
	case AGGRESSIVE:
		if len(sel.threats) > 0 {
			sel.behavior = "attack"
		} else if len(sel.friends) > 0 {
			sel.behavior = "patrol"
		} else {
			sel.behavior = "wander"
		}
	case SOCIAL:
		if len(sel.friends) > 0 {
			sel.behavior = "interact"
		} else {
			sel.behavior = "seek_social"
		}
	case DEFENSIVE:
		if len(sel.threats) > 0 {
			sel.behavior = "flee"
		} else {
			sel.behavior = "patrol"
		}
	default:
		sel.behavior = "explore"
	}

	if s.settings.EmotionalStates {
		a.entity.State.Mood = mood(a.entity, &sel)
	}
	return sel
}

func mood(e *Entity, sel *selection) string {
	if len(sel.threats) > 0 {
		if e.Behavior.Fear > 0.5 {
			return "afraid"
		}
		return "angry"
	}
	if len(sel.friends) > 0 {
		return "happy"
	}
	return "neutral"
}

func (s *System) executeBehavior(a *agent, sel selection) {
	e := a.entity
	if e.State.ActionCooldown > 0 {
		return
	}
	act, ok := actions[sel.behavior]
	if !ok {
		return
	}
	if e.State.Energy < act.cost {
		s.stats.FailedInteractions++
		return
	}

	e.State.Energy -= act.cost
	switch sel.behavior {
	case "attack":
		target := sel.threats[0].entity
		s.moveTowards(a, target.State.Position)
		e.Relationships[target.ID] = math.Max(-1, e.Relationships[target.ID]-0.1)
	case "flee":
		s.moveAway(a, sel.threats[0].entity.State.Position)
	case "interact":
		for _, f := range sel.friends {
			e.Relationships[f.entity.ID] = math.Min(1, e.Relationships[f.entity.ID]+0.05)
		}
	default:
		s.moveRandom(a)
	}

	s.stats.SuccessfulInteractions++
	e.State.LastAction = sel.behavior
	e.State.ActionCooldown = act.cooldown
	e.State.Current = act.state
	e.Behavior.Memory[sel.behavior]++
	if consts.DEBUG_AI {
		gwlog.Debugf("AI %s: %s at %s", e.ID, sel.behavior, e.State.Position)
	}
}

func (s *System) moveTo(a *agent, pos common.Vector3) {
	a.entity.State.Position = pos
	s.aoiMgr.Moved(&a.aoi, aoi.Coord(pos.X), aoi.Coord(pos.Z))
}

func (s *System) moveTowards(a *agent, target common.Vector3) {
	dir := target.Sub(a.entity.State.Position)
	dist := dir.Length()
	if dist == 0 {
		return
	}
	step := common.Coord(math.Min(moveDistance, float64(dist)))
	s.moveTo(a, a.entity.State.Position.Add(dir.Normalized().Mul(step)))
}

func (s *System) moveAway(a *agent, from common.Vector3) {
	dir := a.entity.State.Position.Sub(from)
	if dir.IsZero() {
		dir = s.randomDirection()
	}
	s.moveTo(a, a.entity.State.Position.Add(dir.Normalized().Mul(moveDistance)))
}

func (s *System) moveRandom(a *agent) {
	s.moveTo(a, a.entity.State.Position.Add(s.randomDirection().Mul(moveDistance)))
}

func (s *System) randomDirection() common.Vector3 {
	angle := s.rng.Float64() * 2 * math.Pi
	return common.Vec3(math.Cos(angle), 0, math.Sin(angle))
}

func (s *System) adaptBehaviors() {
	s.stats.LearningCycles++
	total := s.stats.SuccessfulInteractions + s.stats.FailedInteractions
	if total == 0 {
		return
	}
	successRate := float64(s.stats.SuccessfulInteractions) / float64(total)
	if successRate < 0.7 {
		s.settings.LearningRate = math.Min(0.1, s.settings.LearningRate+0.001)
	} else if successRate > 0.9 {
		s.settings.LearningRate = math.Max(0.001, s.settings.LearningRate-0.0005)
	}
}

func avgDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

// PerformanceRating rates the recent response times against 50ms
func (s *System) PerformanceRating() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.responseTimes) == 0 {
		return 1.0
	}
	recent := s.responseTimes
	if len(recent) > consts.ADAPT_WINDOW {
		recent = recent[len(recent)-consts.ADAPT_WINDOW:]
	}
	return gwutils.Clamp(1-float64(avgDuration(recent))/float64(targetResponse), 0, 1)
}

// ApplyOptimization updates behaviors less often by the strategy update rate step
func (s *System) ApplyOptimization(strategy *improve.Strategy, severity improve.Severity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := strategy.Param("update_rate_step", 0.01)
	if severity == improve.SeverityHigh {
		step *= 2
	}
	maxRate := time.Duration(strategy.Param("max_update_rate", 0.5) * float64(time.Second))
	if s.settings.UpdateRate >= maxRate {
		return false
	}
	s.settings.UpdateRate += time.Duration(step * float64(time.Second))
	if s.settings.UpdateRate > maxRate {
		s.settings.UpdateRate = maxRate
	}
	gwlog.Infof("AI update rate raised to %s", s.settings.UpdateRate)
	return true
}
