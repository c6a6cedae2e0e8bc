package render

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

// Settings of the renderer
type Settings = config.RendererConfig

// Stats of the renderer
type Stats struct {
	FramesRendered    uint64        `json:"frames_rendered"`
	AvgFrameTime      time.Duration `json:"avg_frame_time"`
	DrawCalls         int           `json:"draw_calls"`
	TrianglesRendered int           `json:"triangles_rendered"`
	TextureMemoryMB   float64       `json:"texture_memory_mb"`
}

// Shader is a compiled shader stage
type Shader struct {
	Name  string `json:"name"`
	Stage string `json:"stage"`
}

// Texture is a loaded texture map
type Texture struct {
	Name     string  `json:"name"`
	MemoryMB float64 `json:"memory_mb"`
}

// Camera defines the view used for visibility
type Camera struct {
	Position common.Vector3 `json:"position"`
	Rotation common.Vector3 `json:"rotation"`
	FOV      float64        `json:"fov"`
	Near     float64        `json:"near"`
	Far      float64        `json:"far"`
}

// Light is a scene light
type Light struct {
	Kind      string         `json:"kind"`
	Direction common.Vector3 `json:"direction"`
	Intensity float64        `json:"intensity"`
}

// Renderable is an object drawn by the renderer
type Renderable struct {
	Position  common.Vector3 `json:"position" msgpack:"position"`
	Triangles int            `json:"triangles" msgpack:"triangles"`
	Material  string         `json:"material" msgpack:"material"`
}

// VisibleRenderable is a renderable in the draw list of a frame
type VisibleRenderable struct {
	ID        string         `json:"id" msgpack:"id"`
	Position  common.Vector3 `json:"position" msgpack:"position"`
	Material  string         `json:"material" msgpack:"material"`
	Triangles int            `json:"triangles" msgpack:"triangles"`
	Distance  float64        `json:"distance" msgpack:"distance"`
}

const (
	minQualityFactor = 0.5
	maxQualityFactor = 1.5
	mainCamera       = "main"
)

// System plans frames without a GPU: it culls the scene and keeps render stats
type System struct {
	mu                sync.RWMutex
	settings          Settings
	shaders           map[string]Shader
	textures          map[string]Texture
	cameras           map[string]*Camera
	lights            map[string]Light
	renderables       map[string]Renderable
	visible           []VisibleRenderable
	frameTimes        []time.Duration
	qualityAdjustment float64
	stats             Stats
}

// NewSystem creates the renderer
func NewSystem(cfg *config.RendererConfig) *System {
	return &System{
		settings:          *cfg,
		shaders:           map[string]Shader{},
		textures:          map[string]Texture{},
		cameras:           map[string]*Camera{},
		lights:            map[string]Light{},
		renderables:       map[string]Renderable{},
		qualityAdjustment: 1.0,
	}
}

// Initialize creates the default shaders, textures, camera and light
func (s *System) Initialize() error {
	if s.settings.MaxFPS <= 0 {
		return errors.Errorf("invalid max fps: %d", s.settings.MaxFPS)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stage := range []string{"vertex", "fragment", "geometry", "compute"} {
		s.shaders[stage] = Shader{Name: stage, Stage: stage}
	}
	for name, mb := range map[string]float64{
		"diffuse_map":  16,
		"normal_map":   16,
		"specular_map": 8,
		"emissive_map": 4,
	} {
		s.textures[name] = Texture{Name: name, MemoryMB: mb}
	}
	s.cameras[mainCamera] = &Camera{
		Position: common.Vec3(0, 10, -20),
		FOV:      60,
		Near:     0.1,
		Far:      1000,
	}
	s.lights["directional"] = Light{
		Kind:      "directional",
		Direction: common.Vec3(-0.5, -1, -0.3).Normalized(),
		Intensity: 1.0,
	}
	s.stats.TextureMemoryMB = s.textureMemory()

	gwlog.Infof("Renderer initialized: %dx%d, quality %d, %d shaders, %d textures",
		s.settings.Width, s.settings.Height, s.settings.QualityLevel, len(s.shaders), len(s.textures))
	return nil
}

// Shutdown releases all render resources
func (s *System) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shaders = map[string]Shader{}
	s.textures = map[string]Texture{}
	s.renderables = map[string]Renderable{}
	s.visible = nil
	gwlog.Infof("Renderer shutdown after %d frames", s.stats.FramesRendered)
}

func (s *System) textureMemory() float64 {
	var total float64
	for _, t := range s.textures {
		total += t.MemoryMB
	}
	return total
}

// AddRenderable adds or replaces a renderable
func (s *System) AddRenderable(id string, r Renderable) {
	s.mu.Lock()
	s.renderables[id] = r
	s.mu.Unlock()
}

// RemoveRenderable removes a renderable
func (s *System) RemoveRenderable(id string) {
	s.mu.Lock()
	delete(s.renderables, id)
	s.mu.Unlock()
}

// Camera returns a copy of the named camera
func (s *System) Camera(name string) (Camera, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cameras[name]
	if !ok {
		return Camera{}, false
	}
	return *c, true
}

// SetCameraPosition moves the main camera
func (s *System) SetCameraPosition(pos common.Vector3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cameras[mainCamera]; ok {
		c.Position = pos
	}
}

// Update plans one frame
func (s *System) Update(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frameTimes = append(s.frameTimes, dt)
	if len(s.frameTimes) > consts.TIMING_HISTORY {
		s.frameTimes = s.frameTimes[len(s.frameTimes)-consts.TIMING_HISTORY:]
	}

	s.planFrame()
	if s.settings.AdaptiveQuality {
		s.adaptQuality()
	}

	s.stats.FramesRendered++
	s.stats.AvgFrameTime = avgDuration(s.frameTimes)
	s.stats.TextureMemoryMB = s.textureMemory()
}

func (s *System) lodFactor() float64 {
	return float64(s.settings.QualityLevel) / 5 * s.qualityAdjustment
}

func (s *System) planFrame() {
	cam, ok := s.cameras[mainCamera]
	if !ok {
		s.visible = nil
		s.stats.DrawCalls = 0
		s.stats.TrianglesRendered = 0
		return
	}

	lod := s.lodFactor()
	visible := make([]VisibleRenderable, 0, len(s.renderables))
	triangles := 0
	for id, r := range s.renderables {
		dist := float64(cam.Position.DistanceTo(r.Position))
		if dist > cam.Far {
			continue
		}
		tris := int(math.Round(float64(r.Triangles) * lod))
		triangles += tris
		visible = append(visible, VisibleRenderable{
			ID:        id,
			Position:  r.Position,
			Material:  r.Material,
			Triangles: tris,
			Distance:  dist,
		})
	}
	// front to back
	sort.Slice(visible, func(i, j int) bool {
		if visible[i].Distance != visible[j].Distance {
			return visible[i].Distance < visible[j].Distance
		}
		return visible[i].ID < visible[j].ID
	})

	s.visible = visible
	s.stats.DrawCalls = len(visible)
	s.stats.TrianglesRendered = triangles
}

func (s *System) targetFrameTime() time.Duration {
	return time.Second / time.Duration(s.settings.MaxFPS)
}

func (s *System) adaptQuality() {
	if len(s.frameTimes) < consts.ADAPT_WINDOW {
		return
	}
	avg := avgDuration(s.frameTimes[len(s.frameTimes)-consts.ADAPT_WINDOW:])
	target := s.targetFrameTime()
	if float64(avg) > float64(target)*1.1 {
		s.qualityAdjustment = math.Max(minQualityFactor, s.qualityAdjustment-0.05)
	} else if float64(avg) < float64(target)*0.9 {
		s.qualityAdjustment = math.Min(maxQualityFactor, s.qualityAdjustment+0.02)
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

// SetQualityLevel sets the quality level in 1..5
func (s *System) SetQualityLevel(level int) error {
	if level < 1 || level > 5 {
		return errors.Errorf("quality level must be in 1..5: %d", level)
	}
	s.mu.Lock()
	s.settings.QualityLevel = level
	s.mu.Unlock()
	return nil
}

// SetResolution changes the output resolution
func (s *System) SetResolution(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid resolution %dx%d", width, height)
	}
	s.mu.Lock()
	s.settings.Width, s.settings.Height = width, height
	s.mu.Unlock()
	return nil
}

// ToggleFullscreen switches fullscreen mode and returns the new mode
func (s *System) ToggleFullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Fullscreen = !s.settings.Fullscreen
	return s.settings.Fullscreen
}

// Settings returns the current settings
func (s *System) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Stats returns the render stats
func (s *System) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// QualityFactor returns the adaptive quality adjustment
func (s *System) QualityFactor() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qualityAdjustment
}

// Snapshot returns the draw list of the last frame
func (s *System) Snapshot() []VisibleRenderable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]VisibleRenderable(nil), s.visible...)
}

// PerformanceRating compares recent frame times with the target frame time
func (s *System) PerformanceRating() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.frameTimes) == 0 {
		return 1.0
	}
	avg := avgDuration(tailDurations(s.frameTimes, consts.ADAPT_WINDOW))
	if avg <= 0 {
		return 1.0
	}
	return math.Min(1.0, float64(s.targetFrameTime())/float64(avg))
}

func tailDurations(ds []time.Duration, n int) []time.Duration {
	if len(ds) <= n {
		return ds
	}
	return ds[len(ds)-n:]
}

// ApplyOptimization lowers the quality factor by the strategy quality step
func (s *System) ApplyOptimization(strategy *improve.Strategy, severity improve.Severity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := strategy.Param("quality_step", 0.1)
	if severity == improve.SeverityHigh {
		step *= 2
	}
	minQuality := strategy.Param("min_quality", minQualityFactor)
	if s.qualityAdjustment <= minQuality {
		return false
	}
	s.qualityAdjustment = gwutils.Clamp(s.qualityAdjustment-step, minQuality, maxQualityFactor)
	gwlog.Infof("Renderer quality factor lowered to %.2f", s.qualityAdjustment)
	return true
}
