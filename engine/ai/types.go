package ai

import (
	"time"

	"github.com/netgodgame/netgod/engine/common"
)

// BehaviorState is what an entity is currently doing
type BehaviorState int

// Behavior states
const (
	IDLE BehaviorState = iota + 1
	PATROL
	CHASE
	ATTACK
	FLEE
	INTERACT
	DEAD
)

var behaviorStateNames = map[BehaviorState]string{
	IDLE:     "IDLE",
	PATROL:   "PATROL",
	CHASE:    "CHASE",
	ATTACK:   "ATTACK",
	FLEE:     "FLEE",
	INTERACT: "INTERACT",
	DEAD:     "DEAD",
}

func (s BehaviorState) String() string {
	if name, ok := behaviorStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// BehaviorType is the personality of an entity
type BehaviorType int

// Behavior types
const (
	PASSIVE BehaviorType = iota + 1
	AGGRESSIVE
	DEFENSIVE
	SOCIAL
	INTELLECTUAL
)

func (t BehaviorType) String() string {
	switch t {
	case PASSIVE:
		return "PASSIVE"
	case AGGRESSIVE:
		return "AGGRESSIVE"
	case DEFENSIVE:
		return "DEFENSIVE"
	case SOCIAL:
		return "SOCIAL"
	case INTELLECTUAL:
		return "INTELLECTUAL"
	}
	return "UNKNOWN"
}

// EntityState is the mutable state of an entity
type EntityState struct {
	Position       common.Vector3 `json:"position"`
	Rotation       common.Vector3 `json:"rotation"`
	Health         float64        `json:"health"`
	Energy         float64        `json:"energy"`
	Mood           string         `json:"mood"`
	LastAction     string         `json:"last_action"`
	ActionCooldown time.Duration  `json:"action_cooldown"`
	Current        BehaviorState  `json:"current"`
}

// BehaviorProfile describes how an entity behaves
type BehaviorProfile struct {
	Type         BehaviorType       `json:"type"`
	Aggression   float64            `json:"aggression"`
	Intelligence float64            `json:"intelligence"`
	Sociality    float64            `json:"sociality"`
	Curiosity    float64            `json:"curiosity"`
	Fear         float64            `json:"fear"`
	Memory       map[string]float64 `json:"memory"`
	Preferences  map[string]float64 `json:"preferences"`
}

// Entity is an AI controlled entity
type Entity struct {
	ID            string             `json:"id"`
	State         EntityState        `json:"state"`
	Behavior      BehaviorProfile    `json:"behavior"`
	Faction       string             `json:"faction"`
	Goals         []string           `json:"goals"`
	Relationships map[string]float64 `json:"relationships"`
}

// NewEntity creates an entity with full health and energy
func NewEntity(id string, pos common.Vector3, behaviorType BehaviorType, faction string) *Entity {
	return &Entity{
		ID: id,
		State: EntityState{
			Position:   pos,
			Health:     100,
			Energy:     100,
			Mood:       "neutral",
			LastAction: "idle",
			Current:    IDLE,
		},
		Behavior: BehaviorProfile{
			Type:         behaviorType,
			Aggression:   0.5,
			Intelligence: 0.5,
			Sociality:    0.5,
			Curiosity:    0.5,
			Fear:         0.3,
			Memory:       map[string]float64{},
			Preferences:  map[string]float64{},
		},
		Faction:       faction,
		Relationships: map[string]float64{},
	}
}

func (e *Entity) clone() Entity {
	c := *e
	c.Goals = append([]string(nil), e.Goals...)
	c.Behavior.Memory = copyMap(e.Behavior.Memory)
	c.Behavior.Preferences = copyMap(e.Behavior.Preferences)
	c.Relationships = copyMap(e.Relationships)
	return c
}

func copyMap(m map[string]float64) map[string]float64 {
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Stats of the AI behavior system
type Stats struct {
	Entities               int           `json:"entities"`
	ActiveBehaviors        int           `json:"active_behaviors"`
	LearningCycles         int           `json:"learning_cycles"`
	AvgResponseTime        time.Duration `json:"avg_response_time"`
	SuccessfulInteractions int           `json:"successful_interactions"`
	FailedInteractions     int           `json:"failed_interactions"`
}

// BehaviorNode is a weighted child of a behavior tree
type BehaviorNode struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// BehaviorTree is a selector over weighted behaviors
type BehaviorTree struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Children []BehaviorNode `json:"children"`
}

func defaultBehaviorTrees() map[string]BehaviorTree {
	return map[string]BehaviorTree{
		"passive": {Name: "passive", Kind: "selector", Children: []BehaviorNode{
			{"idle", 0.7}, {"wander", 0.3},
		}},
		"aggressive": {Name: "aggressive", Kind: "selector", Children: []BehaviorNode{
			{"attack_nearby_threats", 0.6}, {"patrol", 0.3}, {"idle", 0.1},
		}},
		"social": {Name: "social", Kind: "selector", Children: []BehaviorNode{
			{"interact_with_nearby_entities", 0.5}, {"follow_friends", 0.3}, {"explore", 0.2},
		}},
	}
}

type action struct {
	cost     float64
	cooldown time.Duration
	state    BehaviorState
}

var actions = map[string]action{
	"attack":      {5, time.Millisecond * 1000, ATTACK},
	"flee":        {2, time.Millisecond * 800, FLEE},
	"interact":    {1, time.Millisecond * 1500, INTERACT},
	"patrol":      {1.5, time.Millisecond * 2000, PATROL},
	"wander":      {0.5, time.Millisecond * 1200, PATROL},
	"explore":     {2, time.Millisecond * 2500, PATROL},
	"seek_social": {1, time.Millisecond * 1800, CHASE},
}
