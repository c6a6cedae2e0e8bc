package physics

import (
	"math"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/improve"
)

const frame = time.Second / 60

func newTestPhysics(gravity common.Vector3, collisions, constraints bool) *System {
	s := NewSystem(&config.PhysicsConfig{
		Gravity:            gravity,
		SimulationRate:     60,
		MaxSubsteps:        4,
		CollisionDetection: collisions,
		Constraints:        constraints,
	})
	if err := s.Initialize(); err != nil {
		panic(err)
	}
	return s
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestInitializeInvalid(t *testing.T) {
	s := NewSystem(&config.PhysicsConfig{SimulationRate: 0, MaxSubsteps: 4})
	assert.T(t, s.Initialize() != nil, "rate 0 should fail")
}

func TestGravity(t *testing.T) {
	s := newTestPhysics(common.Vec3(0, -10, 0), false, false)
	s.AddRigidBody(NewRigidBody("ball", common.Vec3(0, 100, 0)))
	ground := NewRigidBody("ground", common.Vec3(0, 0, 0))
	ground.Static = true
	s.AddRigidBody(ground)

	s.Update(frame)
	ball, _ := s.Body("ball")
	assert.T(t, near(float64(ball.Velocity.Y), -10.0/60), "gravity should use dt")
	assert.T(t, near(float64(ball.Position.Y), 100-10.0/3600), "position should integrate velocity")

	g, _ := s.Body("ground")
	assert.Equal(t, common.Vec3(0, 0, 0), g.Position)

	s.SetGravity(common.Vec3(0, 0, 0))
	s.Update(frame)
	ball2, _ := s.Body("ball")
	assert.Equal(t, ball.Velocity, ball2.Velocity)
}

func TestSubsteps(t *testing.T) {
	s := newTestPhysics(common.Vec3(0, 0, 0), false, false)
	assert.Equal(t, 1, s.substeps(frame))
	assert.Equal(t, 2, s.substeps(time.Second/30))
	assert.Equal(t, 4, s.substeps(time.Second))

	s.Update(time.Second)
	assert.Equal(t, uint64(4), s.Stats().SimulationSteps)
}

func TestCollision(t *testing.T) {
	s := newTestPhysics(common.Vec3(0, 0, 0), true, false)
	a := NewRigidBody("a", common.Vec3(0, 0, 0))
	a.Velocity = common.Vec3(1, 0, 0)
	b := NewRigidBody("b", common.Vec3(1.5, 0, 0))
	b.Velocity = common.Vec3(-1, 0, 0)
	s.AddRigidBody(a)
	s.AddRigidBody(b)

	s.Update(frame)
	assert.Equal(t, 1, s.Stats().CollisionsDetected)
	collisions := s.Collisions()
	assert.Equal(t, "a", collisions[0].BodyA)
	assert.T(t, near(float64(collisions[0].Normal.X), 1), "normal should point from a to b")

	a2, _ := s.Body("a")
	b2, _ := s.Body("b")
	assert.T(t, near(float64(a2.Velocity.X), -0.3), "a should bounce back with restitution")
	assert.T(t, near(float64(b2.Velocity.X), 0.3), "b should bounce back with restitution")
	assert.T(t, near(float64(a2.Position.DistanceTo(b2.Position)), 2), "bodies should be separated")
}

func TestStaticCollision(t *testing.T) {
	s := newTestPhysics(common.Vec3(0, 0, 0), true, false)
	w1 := NewRigidBody("w1", common.Vec3(0, 0, 0))
	w1.Static = true
	w2 := NewRigidBody("w2", common.Vec3(0.5, 0, 0))
	w2.Static = true
	s.AddRigidBody(w1)
	s.AddRigidBody(w2)
	s.Update(frame)
	assert.Equal(t, 0, s.Stats().CollisionsDetected)

	ball := NewRigidBody("ball", common.Vec3(0, 1.9, 0))
	ball.Velocity = common.Vec3(0, -2, 0)
	s.AddRigidBody(ball)
	s.RemoveRigidBody("w2")
	s.Update(frame)
	assert.Equal(t, 1, s.Stats().CollisionsDetected)
	b, _ := s.Body("ball")
	assert.T(t, b.Velocity.Y > 0, "ball should bounce off the static body")
	w, _ := s.Body("w1")
	assert.Equal(t, common.Vec3(0, 0, 0), w.Position)
}

func TestDistanceConstraint(t *testing.T) {
	s := newTestPhysics(common.Vec3(0, 0, 0), false, true)
	s.AddRigidBody(NewRigidBody("a", common.Vec3(0, 0, 0)))
	s.AddRigidBody(NewRigidBody("b", common.Vec3(10, 0, 0)))
	assert.Equal(t, nil, s.AddDistanceConstraint("a", "b", 5))
	assert.T(t, s.AddDistanceConstraint("a", "x", 5) != nil, "unknown body")

	s.Update(frame)
	a, _ := s.Body("a")
	b, _ := s.Body("b")
	assert.T(t, near(float64(a.Position.DistanceTo(b.Position)), 5), "constraint should hold rest length")
	assert.T(t, near(float64(a.Position.X), 2.5), "equal masses share the correction")
	assert.Equal(t, 1, s.Stats().ConstraintsSolved)

	s.RemoveRigidBody("b")
	s.Update(frame)
	assert.Equal(t, 0, s.Stats().ConstraintsSolved)
}

func TestBodies(t *testing.T) {
	s := newTestPhysics(common.Vec3(0, 0, 0), false, false)
	assert.Equal(t, nil, s.AddRigidBody(NewRigidBody("a", common.Vec3(0, 0, 0))))
	assert.T(t, s.AddRigidBody(NewRigidBody("a", common.Vec3(0, 0, 0))) != nil, "duplicate body")
	assert.Equal(t, 1, s.Stats().Bodies)

	assert.Equal(t, nil, s.ApplyMaterial("a", "ice"))
	a, _ := s.Body("a")
	assert.Equal(t, 0.1, a.Friction)
	assert.Equal(t, 0.4, a.Restitution)
	assert.T(t, s.ApplyMaterial("a", "lava") != nil, "unknown material")
	assert.T(t, s.ApplyMaterial("x", "ice") != nil, "unknown body")

	assert.T(t, s.SetVelocity("a", common.Vec3(1, 0, 0)), "should set velocity")
	s.Update(time.Second)
	a, _ = s.Body("a")
	assert.T(t, near(float64(a.Position.X), 1), "should move 1 unit in 1 second")

	s.RemoveRigidBody("a")
	_, ok := s.Body("a")
	assert.T(t, !ok, "body should be removed")
	assert.Equal(t, 0, s.Stats().Bodies)
}

func TestAdapt(t *testing.T) {
	s := newTestPhysics(common.Vec3(0, 0, 0), false, false)
	for i := 0; i < 100; i++ {
		s.recordStepTime(time.Second / 20)
	}
	assert.Equal(t, 0.5, s.OptimizationLevel())
	assert.T(t, s.PerformanceRating() < 0.5, "slow steps should rate low")
	assert.Equal(t, 2, s.substeps(time.Second))

	for i := 0; i < 100; i++ {
		s.recordStepTime(frame)
	}
	assert.Equal(t, 0.5, s.OptimizationLevel())
	assert.Equal(t, 1.0, s.PerformanceRating())
}

func TestStepTimeIsMeasured(t *testing.T) {
	s := newTestPhysics(common.Vec3(0, -10, 0), true, false)
	s.AddRigidBody(NewRigidBody("ball", common.Vec3(0, 100, 0)))

	// a slow engine frame rate gives a large dt, but stepping one body is cheap
	for i := 0; i < 100; i++ {
		s.Update(time.Second / 20)
	}
	assert.T(t, s.Stats().AvgStepTime < time.Second/20, "step time should be wall-clock time, not dt")
	assert.Equal(t, 1.0, s.PerformanceRating())
	assert.T(t, s.OptimizationLevel() >= 1.0, "cheap steps should not reduce complexity")
}

func TestApplyOptimization(t *testing.T) {
	s := newTestPhysics(common.Vec3(0, 0, 0), false, false)
	strategy := &improve.Strategy{
		Name:       "physics_complexity_reduction",
		Parameters: map[string]float64{"complexity_step": 0.25, "min_complexity": 0.5},
	}
	assert.T(t, s.ApplyOptimization(strategy, improve.SeverityMedium), "should apply")
	assert.Equal(t, 0.75, s.OptimizationLevel())
	assert.T(t, s.ApplyOptimization(strategy, improve.SeverityHigh), "should apply")
	assert.Equal(t, 0.5, s.OptimizationLevel())
	assert.T(t, !s.ApplyOptimization(strategy, improve.SeverityHigh), "already at min")
}
