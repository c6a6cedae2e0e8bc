package physics

import (
	"math"
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
)

// Settings of the physics system
type Settings = config.PhysicsConfig

// RigidBody is a sphere simulated by the physics system
type RigidBody struct {
	ID              string         `json:"id"`
	Position        common.Vector3 `json:"position"`
	Rotation        common.Vector3 `json:"rotation"`
	Velocity        common.Vector3 `json:"velocity"`
	AngularVelocity common.Vector3 `json:"angular_velocity"`
	Mass            float64        `json:"mass"`
	Friction        float64        `json:"friction"`
	Restitution     float64        `json:"restitution"`
	Radius          float64        `json:"radius"`
	Static          bool           `json:"static"`
	Kinematic       bool           `json:"kinematic"`
}

// NewRigidBody creates a dynamic body with default material
func NewRigidBody(id string, pos common.Vector3) RigidBody {
	return RigidBody{
		ID:          id,
		Position:    pos,
		Mass:        1,
		Friction:    0.5,
		Restitution: 0.3,
		Radius:      1,
	}
}

func (b *RigidBody) dynamic() bool {
	return !b.Static && !b.Kinematic
}

func (b *RigidBody) inverseMass() float64 {
	if !b.dynamic() || b.Mass <= 0 {
		return 0
	}
	return 1 / b.Mass
}

// Collision between two bodies found in a simulation step
type Collision struct {
	BodyA            string         `json:"body_a"`
	BodyB            string         `json:"body_b"`
	ContactPoint     common.Vector3 `json:"contact_point"`
	Normal           common.Vector3 `json:"normal"`
	PenetrationDepth float64        `json:"penetration_depth"`
}

// Material defines surface properties of bodies
type Material struct {
	Friction    float64 `json:"friction"`
	Restitution float64 `json:"restitution"`
	Density     float64 `json:"density"`
}

var materials = map[string]Material{
	"default": {Friction: 0.5, Restitution: 0.3, Density: 1.0},
	"ice":     {Friction: 0.1, Restitution: 0.4, Density: 0.9},
	"rubber":  {Friction: 0.8, Restitution: 0.9, Density: 1.2},
}

// Stats of the physics system
type Stats struct {
	Bodies             int           `json:"bodies"`
	CollisionsDetected int           `json:"collisions_detected"`
	ConstraintsSolved  int           `json:"constraints_solved"`
	SimulationSteps    uint64        `json:"simulation_steps"`
	AvgStepTime        time.Duration `json:"avg_step_time"`
	SimulationTime     time.Duration `json:"simulation_time"`
}

type distanceConstraint struct {
	bodyA, bodyB string
	restLength   float64
}

const (
	minOptimizationLevel = 0.5
	maxOptimizationLevel = 1.5
)

// System simulates rigid body spheres with gravity, collisions and distance constraints
type System struct {
	mu                sync.RWMutex
	settings          Settings
	bodies            map[string]*RigidBody
	order             []string
	constraints       []distanceConstraint
	collisions        []Collision
	stepTimes         []time.Duration
	optimizationLevel float64
	stats             Stats
}

// NewSystem creates the physics system
func NewSystem(cfg *config.PhysicsConfig) *System {
	return &System{
		settings:          *cfg,
		bodies:            map[string]*RigidBody{},
		optimizationLevel: 1.0,
	}
}

// Initialize validates the settings
func (s *System) Initialize() error {
	if s.settings.SimulationRate <= 0 || s.settings.MaxSubsteps <= 0 {
		return errors.Errorf("invalid simulation rate %d or max substeps %d", s.settings.SimulationRate, s.settings.MaxSubsteps)
	}
	gwlog.Infof("Physics initialized: gravity %s, %d Hz, %d substeps", s.settings.Gravity, s.settings.SimulationRate, s.settings.MaxSubsteps)
	return nil
}

// Shutdown removes all bodies and constraints
func (s *System) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = map[string]*RigidBody{}
	s.order = nil
	s.constraints = nil
	gwlog.Infof("Physics shutdown after %d steps", s.stats.SimulationSteps)
}

// AddRigidBody adds a body, IDs must be unique
func (s *System) AddRigidBody(body RigidBody) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bodies[body.ID]; ok {
		return errors.Errorf("rigid body %s already exists", body.ID)
	}
	b := body
	s.bodies[b.ID] = &b
	s.order = append(s.order, b.ID)
	sort.Strings(s.order)
	s.stats.Bodies = len(s.bodies)
	return nil
}

// RemoveRigidBody removes the body and its constraints
func (s *System) RemoveRigidBody(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bodies[id]; !ok {
		return
	}
	delete(s.bodies, id)
	for i, bid := range s.order {
		if bid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	constraints := s.constraints[:0]
	for _, c := range s.constraints {
		if c.bodyA != id && c.bodyB != id {
			constraints = append(constraints, c)
		}
	}
	s.constraints = constraints
	s.stats.Bodies = len(s.bodies)
}

// Body returns a copy of the body
func (s *System) Body(id string) (RigidBody, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bodies[id]
	if !ok {
		return RigidBody{}, false
	}
	return *b, true
}

// SetVelocity sets the linear velocity of the body
func (s *System) SetVelocity(id string, v common.Vector3) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bodies[id]
	if ok {
		b.Velocity = v
	}
	return ok
}

// SetGravity changes the gravity
func (s *System) SetGravity(g common.Vector3) {
	s.mu.Lock()
	s.settings.Gravity = g
	s.mu.Unlock()
}

// ApplyMaterial sets friction and restitution of the body from a named material
func (s *System) ApplyMaterial(id string, name string) error {
	m, ok := materials[name]
	if !ok {
		return errors.Errorf("unknown material: %s", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bodies[id]
	if !ok {
		return errors.Errorf("rigid body %s not found", id)
	}
	b.Friction = m.Friction
	b.Restitution = m.Restitution
	return nil
}

// AddDistanceConstraint keeps two bodies at the rest length
func (s *System) AddDistanceConstraint(a, b string, restLength float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bodies[a]; !ok {
		return errors.Errorf("rigid body %s not found", a)
	}
	if _, ok := s.bodies[b]; !ok {
		return errors.Errorf("rigid body %s not found", b)
	}
	if restLength < 0 {
		return errors.Errorf("negative rest length: %f", restLength)
	}
	s.constraints = append(s.constraints, distanceConstraint{a, b, restLength})
	return nil
}

// Update advances the simulation by dt in substeps
func (s *System) Update(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	substeps := s.substeps(dt)
	sub := dt.Seconds() / float64(substeps)
	s.collisions = s.collisions[:0]
	s.stats.ConstraintsSolved = 0
	for i := 0; i < substeps; i++ {
		s.step(sub)
	}

	s.stats.CollisionsDetected = len(s.collisions)
	s.stats.SimulationTime += dt
	s.recordStepTime(time.Since(start))
}

// recordStepTime records how long an update took and adapts the complexity. s.mu must be held.
func (s *System) recordStepTime(elapsed time.Duration) {
	s.stepTimes = append(s.stepTimes, elapsed)
	if len(s.stepTimes) > consts.TIMING_HISTORY {
		s.stepTimes = s.stepTimes[len(s.stepTimes)-consts.TIMING_HISTORY:]
	}
	s.stats.AvgStepTime = avgDuration(s.stepTimes)
	s.adapt()
}

func (s *System) substeps(dt time.Duration) int {
	n := int(math.Ceil(dt.Seconds() * float64(s.settings.SimulationRate)))
	limit := int(float64(s.settings.MaxSubsteps) * s.optimizationLevel)
	if limit < 1 {
		limit = 1
	}
	if n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (s *System) step(dt float64) {
	gdt := s.settings.Gravity.Mul(common.Coord(dt))
	for _, id := range s.order {
		b := s.bodies[id]
		if b.Static {
			continue
		}
		if !b.Kinematic {
			b.Velocity = b.Velocity.Add(gdt)
		}
		b.Position = b.Position.Add(b.Velocity.Mul(common.Coord(dt)))
		b.Rotation = b.Rotation.Add(b.AngularVelocity.Mul(common.Coord(dt)))
	}

	if s.settings.CollisionDetection {
		s.detectAndResolveCollisions()
	}
	if s.settings.Constraints {
		s.solveConstraints()
	}
	s.stats.SimulationSteps++
}

func (s *System) detectAndResolveCollisions() {
	for i := 0; i < len(s.order); i++ {
		a := s.bodies[s.order[i]]
		for j := i + 1; j < len(s.order); j++ {
			b := s.bodies[s.order[j]]
			if !a.dynamic() && !b.dynamic() {
				continue
			}
			delta := b.Position.Sub(a.Position)
			dist := float64(delta.Length())
			if dist >= a.Radius+b.Radius {
				continue
			}

			normal := common.Vec3(0, 1, 0)
			if dist > 0 {
				normal = delta.Mul(common.Coord(1 / dist))
			}
			c := Collision{
				BodyA:            a.ID,
				BodyB:            b.ID,
				ContactPoint:     a.Position.Add(normal.Mul(common.Coord(a.Radius))),
				Normal:           normal,
				PenetrationDepth: a.Radius + b.Radius - dist,
			}
			s.collisions = append(s.collisions, c)
			resolveCollision(a, b, &c)
		}
	}
}

// resolveCollision applies an impulse along the normal scaled by restitution and separates the bodies
func resolveCollision(a, b *RigidBody, c *Collision) {
	invA, invB := a.inverseMass(), b.inverseMass()
	invSum := invA + invB
	if invSum == 0 {
		return
	}

	vRel := float64(b.Velocity.Sub(a.Velocity).Dot(c.Normal))
	if vRel < 0 {
		e := math.Min(a.Restitution, b.Restitution)
		j := -(1 + e) * vRel / invSum
		a.Velocity = a.Velocity.Sub(c.Normal.Mul(common.Coord(j * invA)))
		b.Velocity = b.Velocity.Add(c.Normal.Mul(common.Coord(j * invB)))
	}

	a.Position = a.Position.Sub(c.Normal.Mul(common.Coord(c.PenetrationDepth * invA / invSum)))
	b.Position = b.Position.Add(c.Normal.Mul(common.Coord(c.PenetrationDepth * invB / invSum)))
}

func (s *System) solveConstraints() {
	for _, c := range s.constraints {
		a, b := s.bodies[c.bodyA], s.bodies[c.bodyB]
		invA, invB := a.inverseMass(), b.inverseMass()
		invSum := invA + invB
		if invSum == 0 {
			continue
		}
		delta := b.Position.Sub(a.Position)
		dist := float64(delta.Length())
		if dist == 0 {
			continue
		}
		correction := delta.Mul(common.Coord((dist - c.restLength) / dist))
		a.Position = a.Position.Add(correction.Mul(common.Coord(invA / invSum)))
		b.Position = b.Position.Sub(correction.Mul(common.Coord(invB / invSum)))
		s.stats.ConstraintsSolved++
	}
}

func (s *System) targetStepTime() time.Duration {
	return time.Second / time.Duration(s.settings.SimulationRate)
}

func (s *System) adapt() {
	if len(s.stepTimes) < consts.ADAPT_WINDOW {
		return
	}
	avg := avgDuration(s.stepTimes[len(s.stepTimes)-consts.ADAPT_WINDOW:])
	target := float64(s.targetStepTime())
	if float64(avg) > target*1.2 {
		s.optimizationLevel = math.Max(minOptimizationLevel, s.optimizationLevel-0.05)
	} else if float64(avg) < target*0.8 {
		s.optimizationLevel = math.Min(maxOptimizationLevel, s.optimizationLevel+0.02)
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

// Collisions returns the collisions found in the last update
func (s *System) Collisions() []Collision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Collision(nil), s.collisions...)
}

// Stats returns the physics stats
func (s *System) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// OptimizationLevel returns the adaptive complexity level
func (s *System) OptimizationLevel() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.optimizationLevel
}

// PerformanceRating compares recent step times with the target step time
func (s *System) PerformanceRating() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.stepTimes) == 0 || s.settings.SimulationRate <= 0 {
		return 1.0
	}
	recent := s.stepTimes
	if len(recent) > consts.ADAPT_WINDOW {
		recent = recent[len(recent)-consts.ADAPT_WINDOW:]
	}
	avg := avgDuration(recent)
	if avg <= 0 {
		return 1.0
	}
	return math.Min(1.0, float64(s.targetStepTime())/float64(avg))
}

// ApplyOptimization lowers the simulation complexity by the strategy complexity step
func (s *System) ApplyOptimization(strategy *improve.Strategy, severity improve.Severity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := strategy.Param("complexity_step", 0.05)
	if severity == improve.SeverityHigh {
		step *= 2
	}
	minLevel := strategy.Param("min_complexity", minOptimizationLevel)
	if s.optimizationLevel <= minLevel {
		return false
	}
	s.optimizationLevel = gwutils.Clamp(s.optimizationLevel-step, minLevel, maxOptimizationLevel)
	gwlog.Infof("Physics optimization level lowered to %.2f", s.optimizationLevel)
	return true
}
