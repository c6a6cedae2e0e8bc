package render

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/improve"
)

func newTestRenderer(adaptive bool) *System {
	s := NewSystem(&config.RendererConfig{
		Width:           1920,
		Height:          1080,
		MaxFPS:          60,
		QualityLevel:    5,
		AdaptiveQuality: adaptive,
	})
	if err := s.Initialize(); err != nil {
		panic(err)
	}
	return s
}

func TestInitialize(t *testing.T) {
	s := newTestRenderer(false)
	cam, ok := s.Camera("main")
	assert.T(t, ok, "main camera should exist")
	assert.Equal(t, 60.0, cam.FOV)
	assert.Equal(t, 1000.0, cam.Far)
	assert.Equal(t, 44.0, s.Stats().TextureMemoryMB)

	bad := NewSystem(&config.RendererConfig{MaxFPS: 0})
	assert.T(t, bad.Initialize() != nil, "max fps 0 should fail")
}

func TestPlanFrame(t *testing.T) {
	s := newTestRenderer(false)
	s.SetCameraPosition(common.Vec3(0, 0, 0))
	s.AddRenderable("near", Renderable{Position: common.Vec3(0, 0, 10), Triangles: 100, Material: "stone"})
	s.AddRenderable("mid", Renderable{Position: common.Vec3(0, 0, 500), Triangles: 200, Material: "grass"})
	s.AddRenderable("far", Renderable{Position: common.Vec3(0, 0, 2000), Triangles: 300, Material: "water"})

	s.Update(time.Second / 60)
	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.FramesRendered)
	assert.Equal(t, 2, stats.DrawCalls)
	assert.Equal(t, 300, stats.TrianglesRendered)

	snapshot := s.Snapshot()
	assert.Equal(t, 2, len(snapshot))
	assert.Equal(t, "near", snapshot[0].ID)
	assert.Equal(t, "mid", snapshot[1].ID)

	s.SetQualityLevel(1)
	s.RemoveRenderable("mid")
	s.Update(time.Second / 60)
	assert.Equal(t, 1, s.Stats().DrawCalls)
	assert.Equal(t, 20, s.Stats().TrianglesRendered)
}

func TestSettings(t *testing.T) {
	s := newTestRenderer(false)
	assert.T(t, s.SetQualityLevel(0) != nil, "0 is out of range")
	assert.T(t, s.SetQualityLevel(6) != nil, "6 is out of range")
	assert.Equal(t, nil, s.SetQualityLevel(2))
	assert.Equal(t, 2, s.Settings().QualityLevel)

	assert.Equal(t, nil, s.SetResolution(1280, 720))
	assert.T(t, s.SetResolution(0, 720) != nil, "invalid resolution")
	assert.Equal(t, 1280, s.Settings().Width)

	assert.T(t, s.ToggleFullscreen(), "should be fullscreen")
	assert.T(t, !s.ToggleFullscreen(), "should be windowed")
}

func TestAdaptiveQuality(t *testing.T) {
	s := newTestRenderer(true)
	for i := 0; i < 29; i++ {
		s.Update(time.Second / 20)
	}
	assert.Equal(t, 1.0, s.QualityFactor())

	s.Update(time.Second / 20)
	assert.T(t, s.QualityFactor() > 0.94 && s.QualityFactor() < 0.96, "factor should be 0.95")

	for i := 0; i < 100; i++ {
		s.Update(time.Second / 20)
	}
	assert.Equal(t, 0.5, s.QualityFactor())
	assert.T(t, s.PerformanceRating() < 0.5, "slow frames should rate low")

	for i := 0; i < 200; i++ {
		s.Update(time.Second / 200)
	}
	assert.Equal(t, 1.5, s.QualityFactor())
	assert.Equal(t, 1.0, s.PerformanceRating())
}

func TestApplyOptimization(t *testing.T) {
	s := newTestRenderer(false)
	strategy := &improve.Strategy{
		Name:       "rendering_quality_adjustment",
		Parameters: map[string]float64{"quality_step": 0.1, "min_quality": 0.5},
	}
	assert.T(t, s.ApplyOptimization(strategy, improve.SeverityMedium), "should apply")
	assert.T(t, s.QualityFactor() > 0.89 && s.QualityFactor() < 0.91, "factor should be 0.9")
	assert.T(t, s.ApplyOptimization(strategy, improve.SeverityHigh), "should apply")
	assert.T(t, s.QualityFactor() > 0.69 && s.QualityFactor() < 0.71, "factor should be 0.7")
	s.ApplyOptimization(strategy, improve.SeverityHigh)
	s.ApplyOptimization(strategy, improve.SeverityHigh)
	assert.Equal(t, 0.5, s.QualityFactor())
	assert.T(t, !s.ApplyOptimization(strategy, improve.SeverityHigh), "already at min quality")
}

func TestShutdown(t *testing.T) {
	s := newTestRenderer(false)
	s.AddRenderable("a", Renderable{Triangles: 1})
	s.Update(time.Second / 60)
	s.Shutdown()
	assert.Equal(t, 0, len(s.Snapshot()))
}
