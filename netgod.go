package netgod

import (
	"github.com/netgodgame/netgod/engine/ai"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/content"
	"github.com/netgodgame/netgod/engine/core"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/improve"
	"github.com/netgodgame/netgod/engine/network"
	"github.com/netgodgame/netgod/engine/physics"
	"github.com/netgodgame/netgod/engine/render"
)

// Version of the engine and its default systems
const Version = "1.0.0"

// SystemImprovement is the name of the self-improvement system
const SystemImprovement = "improvement"

// Server is an engine with the default systems registered
type Server struct {
	Engine      *core.Engine
	Renderer    *render.System
	Physics     *physics.System
	AI          *ai.System
	Content     *content.System
	Network     *network.System
	Improvement *improve.System
}

// Stats is a snapshot of the engine and its systems
type Stats struct {
	Engine      core.PerformanceStats `json:"engine"`
	Systems     []core.SystemInfo     `json:"systems"`
	Renderer    render.Stats          `json:"renderer"`
	Physics     physics.Stats         `json:"physics"`
	AI          ai.Stats              `json:"ai"`
	Content     content.Stats         `json:"content"`
	Network     network.Stats         `json:"network"`
	Improvement improve.Stats         `json:"improvement"`
}

// New creates the engine and registers the default systems. Systems are initialized by Engine.Start.
func New(cfg *config.NetGodConfig) (*Server, error) {
	s := &Server{
		Engine:      core.NewEngine(&cfg.Engine),
		Renderer:    render.NewSystem(&cfg.Renderer),
		Physics:     physics.NewSystem(&cfg.Physics),
		AI:          ai.NewSystem(&cfg.AI),
		Content:     content.NewSystem(&cfg.Content),
		Network:     network.NewSystem(&cfg.Network, &cfg.Blockchain),
		Improvement: improve.NewSystem(&cfg.Improvement),
	}

	systems := []struct {
		name string
		sys  core.System
	}{
		{improve.SystemRenderer, s.Renderer},
		{improve.SystemPhysics, s.Physics},
		{improve.SystemAIBehavior, s.AI},
		{improve.SystemContentGenerator, s.Content},
		{improve.SystemNetworking, s.Network},
		{SystemImprovement, s.Improvement},
	}
	for _, reg := range systems {
		if err := s.Engine.RegisterSystem(reg.name, reg.sys, Version); err != nil {
			return nil, err
		}
	}

	s.Engine.AddImprovementModule(s.Improvement)
	s.Improvement.RegisterTunable(improve.SystemRenderer, s.Renderer)
	s.Improvement.RegisterTunable(improve.SystemPhysics, s.Physics)
	s.Improvement.RegisterTunable(improve.SystemAIBehavior, s.AI)
	s.Improvement.RegisterTunable(improve.SystemContentGenerator, s.Content)
	s.Improvement.RegisterTunable(improve.SystemNetworking, s.Network)
	return s, nil
}

// Stats returns a snapshot of the engine and all systems
func (s *Server) Stats() Stats {
	return Stats{
		Engine:      s.Engine.PerformanceStats(),
		Systems:     s.Engine.SystemInfo(),
		Renderer:    s.Renderer.Stats(),
		Physics:     s.Physics.Stats(),
		AI:          s.AI.Stats(),
		Content:     s.Content.Stats(),
		Network:     s.Network.Stats(),
		Improvement: s.Improvement.Stats(),
	}
}

// ApplyConfig applies the settings which can change at runtime: log level and frame rate
func (s *Server) ApplyConfig(cfg *config.NetGodConfig) {
	gwlog.SetLevel(gwlog.ParseLevel(cfg.Engine.LogLevel))
	if cfg.Engine.FrameRate != s.Engine.FrameRate() {
		if err := s.Engine.SetFrameRate(cfg.Engine.FrameRate); err != nil {
			gwlog.Errorf("apply config: %v", err)
		}
	}
}
