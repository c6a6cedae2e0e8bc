package improve

import "time"

// Severity of a performance bottleneck
type Severity string

// Severities
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Strategy is a named optimization applied to a Tunable system
type Strategy struct {
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	Parameters       map[string]float64 `json:"parameters"`
	Effectiveness    float64            `json:"effectiveness"`
	LastApplied      time.Time          `json:"last_applied"`
	ApplicationCount int                `json:"application_count"`
}

// Param returns the strategy parameter, or def if the strategy does not have it
func (s *Strategy) Param(name string, def float64) float64 {
	if v, ok := s.Parameters[name]; ok {
		return v
	}
	return def
}

func (s *Strategy) clone() Strategy {
	c := *s
	c.Parameters = make(map[string]float64, len(s.Parameters))
	for k, v := range s.Parameters {
		c.Parameters[k] = v
	}
	return c
}

// Tunable is implemented by systems that can apply optimization strategies
type Tunable interface {
	// ApplyOptimization applies the strategy and returns false if nothing could be changed
	ApplyOptimization(s *Strategy, severity Severity) bool
}

// Default system names and the strategies tuning them
const (
	SystemRenderer         = "renderer"
	SystemPhysics          = "physics"
	SystemAIBehavior       = "ai_behavior"
	SystemContentGenerator = "content_generator"
	SystemNetworking       = "networking"
)

func defaultStrategies() map[string]*Strategy {
	return map[string]*Strategy{
		SystemRenderer: {
			Name:        "rendering_quality_adjustment",
			Description: "Dynamically adjust rendering quality based on performance",
			Parameters: map[string]float64{
				"target_fps":   60,
				"quality_step": 0.1,
				"min_quality":  0.5,
				"max_quality":  1.5,
			},
		},
		SystemPhysics: {
			Name:        "physics_complexity_reduction",
			Description: "Reduce physics simulation complexity under load",
			Parameters: map[string]float64{
				"target_frame_time": 0.016,
				"complexity_step":   0.05,
				"min_complexity":    0.5,
				"max_complexity":    1.5,
			},
		},
		SystemAIBehavior: {
			Name:        "ai_behavior_optimization",
			Description: "Optimize AI behavior update frequency",
			Parameters: map[string]float64{
				"target_response_time": 0.05,
				"update_rate_step":     0.01,
				"min_update_rate":      0.05,
				"max_update_rate":      0.5,
			},
		},
		SystemContentGenerator: {
			Name:        "content_generation_caching",
			Description: "Optimize content generation caching strategies",
			Parameters: map[string]float64{
				"target_generation_time": 1.0,
				"cache_size_step":        10,
				"min_cache_size":         50,
				"max_cache_size":         500,
			},
		},
		SystemNetworking: {
			Name:        "network_packet_rate_adjustment",
			Description: "Adjust network packet rate based on latency",
			Parameters: map[string]float64{
				"target_latency":   0.05,
				"packet_rate_step": 5,
				"min_packet_rate":  20,
				"max_packet_rate":  120,
			},
		},
	}
}
