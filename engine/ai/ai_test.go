package ai

import (
	"math"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/improve"
)

const tick = time.Millisecond * 100

func newTestAI() *System {
	s := NewSystem(&config.AIConfig{
		UpdateRate:         tick,
		PerceptionRange:    20,
		CommunicationRange: 10,
		LearningRate:       0.01,
		EmotionalStates:    true,
		Learning:           true,
		Seed:               42,
	})
	if err := s.Initialize(); err != nil {
		panic(err)
	}
	return s
}

func threat(id string, pos common.Vector3, faction string) *Entity {
	e := NewEntity(id, pos, PASSIVE, faction)
	e.Behavior.Aggression = 0.9
	return e
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "ATTACK", ATTACK.String())
	assert.Equal(t, "DEAD", DEAD.String())
	assert.Equal(t, "SOCIAL", SOCIAL.String())
	assert.Equal(t, "UNKNOWN", BehaviorType(99).String())
}

func TestBehaviorTrees(t *testing.T) {
	s := newTestAI()
	for _, name := range []string{"passive", "aggressive", "social"} {
		tree, ok := s.BehaviorTree(name)
		assert.T(t, ok, name)
		assert.Equal(t, "selector", tree.Kind)
	}
	_, ok := s.BehaviorTree("berserk")
	assert.T(t, !ok, "unknown tree")
}

func TestUpdateRate(t *testing.T) {
	s := newTestAI()
	s.AddEntity(NewEntity("a", common.Vec3(0, 0, 0), PASSIVE, "elves"))
	s.Update(tick / 2)
	assert.Equal(t, 0, s.Stats().SuccessfulInteractions)
	s.Update(tick / 2)
	assert.Equal(t, 1, s.Stats().SuccessfulInteractions)

	a, _ := s.Entity("a")
	assert.Equal(t, "explore", a.State.LastAction)
	assert.T(t, near(float64(a.State.Position.Length()), moveDistance), "explore should move")
	assert.Equal(t, 1.0, a.Behavior.Memory["explore"])
}

func TestAttack(t *testing.T) {
	s := newTestAI()
	s.AddEntity(NewEntity("a", common.Vec3(0, 0, 0), AGGRESSIVE, "orcs"))
	s.AddEntity(threat("b", common.Vec3(5, 0, 0), "elves"))
	s.Update(tick)

	a, _ := s.Entity("a")
	assert.Equal(t, "attack", a.State.LastAction)
	assert.Equal(t, ATTACK, a.State.Current)
	assert.Equal(t, "angry", a.State.Mood)
	assert.Equal(t, 95.0, a.State.Energy)
	assert.T(t, near(float64(a.State.Position.X), 2), "should move towards the threat")
	assert.T(t, near(a.Relationships["b"], -0.1), "relationship should drop")
	assert.Equal(t, time.Second, a.State.ActionCooldown)
}

func TestFlee(t *testing.T) {
	s := newTestAI()
	s.AddEntity(NewEntity("c", common.Vec3(0, 0, 0), DEFENSIVE, "humans"))
	s.AddEntity(threat("d", common.Vec3(3, 0, 0), "orcs"))
	s.Update(tick)

	c, _ := s.Entity("c")
	assert.Equal(t, "flee", c.State.LastAction)
	assert.T(t, near(float64(c.State.Position.X), -2), "should flee away from the threat")
}

func TestPerceptionRange(t *testing.T) {
	s := newTestAI()
	s.AddEntity(NewEntity("a", common.Vec3(0, 0, 0), AGGRESSIVE, "orcs"))
	// in the XZ square but too high above
	s.AddEntity(threat("b", common.Vec3(0, 50, 0), "elves"))
	s.AddEntity(threat("c", common.Vec3(100, 0, 0), "elves"))
	s.Update(tick)

	a, _ := s.Entity("a")
	assert.Equal(t, "wander", a.State.LastAction)
	assert.Equal(t, "neutral", a.State.Mood)
}

func TestInteract(t *testing.T) {
	s := newTestAI()
	s.AddEntity(NewEntity("a", common.Vec3(0, 0, 0), SOCIAL, "elves"))
	s.AddEntity(NewEntity("b", common.Vec3(4, 0, 0), SOCIAL, "elves"))
	s.Update(tick)

	a, _ := s.Entity("a")
	assert.Equal(t, "interact", a.State.LastAction)
	assert.Equal(t, "happy", a.State.Mood)
	assert.T(t, near(a.Relationships["b"], 0.05), "relationship should grow")

	// lonely social entity seeks company
	s.AddEntity(NewEntity("z", common.Vec3(500, 0, 500), SOCIAL, "dwarves"))
	s.Update(tick)
	z, _ := s.Entity("z")
	assert.Equal(t, "seek_social", z.State.LastAction)
	assert.Equal(t, CHASE, z.State.Current)
}

func TestCooldownAndEnergy(t *testing.T) {
	s := newTestAI()
	s.AddEntity(NewEntity("a", common.Vec3(0, 0, 0), AGGRESSIVE, "orcs"))
	s.Update(tick)
	assert.Equal(t, 1, s.Stats().SuccessfulInteractions)
	assert.Equal(t, 1, s.Stats().ActiveBehaviors)

	// cooling down
	s.Update(tick)
	assert.Equal(t, 1, s.Stats().SuccessfulInteractions)

	tired := NewEntity("b", common.Vec3(1000, 0, 1000), AGGRESSIVE, "orcs")
	tired.State.Energy = 0.1
	s.AddEntity(tired)
	s.AddEntity(threat("c", common.Vec3(1001, 0, 1000), "elves"))
	s.Update(tick)
	assert.Equal(t, 1, s.Stats().FailedInteractions)
	b, _ := s.Entity("b")
	assert.Equal(t, time.Duration(0), b.State.ActionCooldown)
}

func TestLearning(t *testing.T) {
	s := newTestAI()
	tired := NewEntity("a", common.Vec3(0, 0, 0), AGGRESSIVE, "orcs")
	tired.State.Energy = 0
	s.AddEntity(tired)
	s.Update(tick)
	assert.Equal(t, 1, s.Stats().LearningCycles)
	assert.T(t, near(s.LearningRate(), 0.011), "low success rate should raise the learning rate")
}

func TestDamageAndRemove(t *testing.T) {
	s := newTestAI()
	s.AddEntity(NewEntity("a", common.Vec3(0, 0, 0), PASSIVE, "elves"))
	assert.T(t, s.Damage("a", 150), "should damage")
	a, _ := s.Entity("a")
	assert.Equal(t, DEAD, a.State.Current)
	s.Update(tick)
	assert.Equal(t, 0, s.Stats().SuccessfulInteractions)

	assert.T(t, s.SetBehaviorType("a", SOCIAL), "should set type")
	assert.T(t, !s.SetBehaviorType("x", SOCIAL), "unknown entity")

	s.RemoveEntity("a")
	_, ok := s.Entity("a")
	assert.T(t, !ok, "entity should be removed")
	assert.Equal(t, 0, s.Stats().Entities)
}

func TestPerformanceRating(t *testing.T) {
	s := newTestAI()
	assert.Equal(t, 1.0, s.PerformanceRating())
	s.AddEntity(NewEntity("a", common.Vec3(0, 0, 0), PASSIVE, "elves"))
	s.Update(tick)
	r := s.PerformanceRating()
	assert.T(t, r > 0.5 && r <= 1, "a single entity should be fast")
}

func TestApplyOptimization(t *testing.T) {
	s := newTestAI()
	strategy := &improve.Strategy{
		Name:       "ai_behavior_optimization",
		Parameters: map[string]float64{"update_rate_step": 0.2, "max_update_rate": 0.5},
	}
	assert.T(t, s.ApplyOptimization(strategy, improve.SeverityMedium), "should apply")
	assert.Equal(t, time.Millisecond*300, s.UpdateRate())
	assert.T(t, s.ApplyOptimization(strategy, improve.SeverityHigh), "should apply")
	assert.Equal(t, time.Millisecond*500, s.UpdateRate())
	assert.T(t, !s.ApplyOptimization(strategy, improve.SeverityHigh), "already at max")
}
