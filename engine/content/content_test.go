package content

import (
	"math"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/google/go-cmp/cmp"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/improve"
	"github.com/netgodgame/netgod/engine/post"
)

func newTestGenerator(cacheSize int) *System {
	s := NewSystem(&config.ContentConfig{
		Seed:              42,
		QualityLevel:      3,
		ComplexityFactor:  1.0,
		Adaptive:          true,
		MaxGenerationTime: 5 * time.Second,
		CacheSize:         cacheSize,
	})
	if err := s.Initialize(); err != nil {
		panic(err)
	}
	return s
}

func TestInitializeInvalid(t *testing.T) {
	s := NewSystem(&config.ContentConfig{})
	assert.T(t, s.Initialize() != nil, "zero max generation time should fail")
}

func TestWorldDeterministic(t *testing.T) {
	a := newTestGenerator(0).GenerateWorld(7, nil)
	b := newTestGenerator(0).GenerateWorld(7, nil)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed should generate the same world (-a +b):\n%s", diff)
	}

	c := newTestGenerator(0).GenerateWorld(8, nil)
	if cmp.Equal(a, c) {
		t.Errorf("different seeds should generate different worlds")
	}
}

func TestWorldShape(t *testing.T) {
	params := DefaultWorldParameters()
	w := newTestGenerator(0).GenerateWorld(1, &params)
	assert.Equal(t, int64(1), w.Seed)
	assert.Equal(t, 100*100, len(w.Terrain))
	assert.Equal(t, 5, len(w.Biomes))
	assert.Equal(t, 20, len(w.Caves))
	assert.T(t, len(w.WaterBodies) >= 3 && len(w.WaterBodies) <= 8, "3..8 water bodies")
	assert.T(t, len(w.PointsOfInterest) >= 10 && len(w.PointsOfInterest) <= 30, "10..30 points of interest")
	assert.T(t, len(w.NPCSpawns) >= 20 && len(w.NPCSpawns) <= 100, "20..100 npc spawns")

	for _, p := range w.Terrain {
		if math.Abs(float64(p.Position.Y)-params.WaterLevel*100) < 1e-3 {
			continue
		}
		want := "sand"
		if float64(p.Position.Y) > params.WaterLevel*100 {
			want = "grass"
		}
		if p.Material != want {
			t.Fatalf("terrain at %s should be %s, got %s", p.Position, want, p.Material)
		}
	}
	for _, spawn := range w.NPCSpawns {
		if spawn.Type != "enemy" && spawn.AggroRadius != 0 {
			t.Errorf("only enemies have an aggro radius: %+v", spawn)
		}
	}

	small := WorldParameters{Size: common.Vec3(100, 50, 100), TerrainComplexity: 1, WaterLevel: 0.3, BiomeCount: 2}
	w = newTestGenerator(0).GenerateWorld(1, &small)
	assert.Equal(t, 10*10, len(w.Terrain))
	assert.Equal(t, 0, len(w.Caves))
}

func TestWorldCache(t *testing.T) {
	s := newTestGenerator(10)
	a := s.GenerateWorld(3, nil)
	b := s.GenerateWorld(3, nil)
	assert.T(t, a != b, "callers should get their own copy")
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("cached world differs (-a +b):\n%s", diff)
	}
	st := s.Stats()
	assert.Equal(t, 1, st.CacheHits)
	assert.Equal(t, 1, st.CacheMisses)
	assert.Equal(t, 1, st.WorldsGenerated)

	params := DefaultWorldParameters()
	params.BiomeCount = 9
	c := s.GenerateWorld(3, &params)
	assert.Equal(t, 9, len(c.Biomes))
	assert.Equal(t, 2, s.Stats().CacheMisses)
}

func TestMutatingResultKeepsCache(t *testing.T) {
	s := newTestGenerator(10)
	w := s.GenerateWorld(4, nil)
	want := w.Clone()
	w.Biomes[0].Type = "lava"
	w.Terrain = nil
	if diff := cmp.Diff(want, s.GenerateWorld(4, nil)); diff != "" {
		t.Errorf("cached world was changed by a caller (-want +got):\n%s", diff)
	}

	q := s.GenerateQuest(4, nil)
	wantQuest := q.Clone()
	q.Details["changed"] = "yes"
	q.Rewards.XP = -1
	if diff := cmp.Diff(wantQuest, s.GenerateQuest(4, nil)); diff != "" {
		t.Errorf("cached quest was changed by a caller (-want +got):\n%s", diff)
	}

	it := s.GenerateItem(4, ItemWeapon)
	wantItem := it.Clone()
	it.Attributes["damage"] = 9999
	if diff := cmp.Diff(wantItem, s.GenerateItem(4, ItemWeapon)); diff != "" {
		t.Errorf("cached item was changed by a caller (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, s.Stats().CacheHits)
}

func TestNegativeSeed(t *testing.T) {
	s := newTestGenerator(0)
	w := s.GenerateWorld(-1, nil)
	assert.T(t, w.Seed >= 0, "negative seed should be replaced")
	it := s.GenerateItem(-1, ItemWeapon)
	assert.T(t, it.Seed >= 0, "negative seed should be replaced")
}

func TestQuest(t *testing.T) {
	s := newTestGenerator(0)
	params := DefaultQuestParameters()
	kinds := map[string]bool{}
	for seed := int64(0); seed < 50; seed++ {
		q := s.GenerateQuest(seed, &params)
		kinds[q.Type] = true
		assert.T(t, q.Difficulty >= 1 && q.Difficulty <= 10, "difficulty should be in range")
		assert.T(t, q.Objective != "", "quest should have an objective")
		assert.T(t, q.Narrative.Title != "", "quest should have a narrative")
		assert.T(t, q.Rewards.XP >= 69 && q.Rewards.XP <= 1300, "xp should apply the variance")
		assert.T(t, len(q.Rewards.SpecialItems) <= 1, "at most one special item")
	}
	assert.T(t, len(kinds) > 1, "several quest kinds should be generated")
	for k := range kinds {
		assert.T(t, k != QuestGeneric, "generic quests only for unknown objectives")
	}

	params.ObjectiveTypes = []string{"escort"}
	q := s.GenerateQuest(1, &params)
	assert.Equal(t, QuestGeneric, q.Type)

	a := newTestGenerator(0).GenerateQuest(11, nil)
	b := newTestGenerator(0).GenerateQuest(11, nil)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed should generate the same quest (-a +b):\n%s", diff)
	}
}

func TestItem(t *testing.T) {
	s := newTestGenerator(0)
	w := s.GenerateItem(5, ItemWeapon)
	assert.Equal(t, ItemWeapon, w.Type)
	assert.T(t, w.Attributes["damage"] >= 5 && w.Attributes["damage"] <= 50, "damage should be in range")
	assert.T(t, w.Value >= 10 && w.Value <= 1000, "value should be in range")

	a := s.GenerateItem(5, ItemArmor)
	assert.Equal(t, ItemArmor, a.Type)
	assert.T(t, a.Attributes["defense"] >= 3, "armor should have defense")

	q := s.GenerateItem(5, ItemQuest)
	assert.Equal(t, "artifact", q.Subtype)

	g := s.GenerateItem(5, "trinket")
	assert.Equal(t, ItemGeneric, g.Type)

	r := s.GenerateItem(5, "")
	assert.T(t, r.Type != ItemGeneric, "random item type should be one of the known kinds")

	x := newTestGenerator(0).GenerateItem(9, ItemConsumable)
	y := newTestGenerator(0).GenerateItem(9, ItemConsumable)
	if diff := cmp.Diff(x, y); diff != "" {
		t.Errorf("same seed should generate the same item (-x +y):\n%s", diff)
	}
}

func TestCacheBound(t *testing.T) {
	s := newTestGenerator(5)
	for seed := int64(0); seed < 8; seed++ {
		s.GenerateItem(seed, ItemWeapon)
	}
	_, _, items := s.CacheSizes()
	assert.Equal(t, 5, items)

	c := newOrderedCache[int]()
	for i := 0; i < 20; i++ {
		c.put(string(rune('a'+i)), i, 100)
	}
	assert.Equal(t, 10, c.trim(15))
	assert.Equal(t, 10, c.len())
	_, ok := c.get("a")
	assert.T(t, !ok, "oldest entries should be evicted")
	v, ok := c.get("k")
	assert.T(t, ok, "newer entries should be kept")
	assert.Equal(t, 10, v)
	assert.Equal(t, 0, c.trim(15))

	s.ClearCache()
	_, _, items = s.CacheSizes()
	assert.Equal(t, 0, items)
}

func TestAdaptComplexity(t *testing.T) {
	s := newTestGenerator(0)
	s.Update(time.Millisecond)
	assert.Equal(t, 1.0, s.Settings().ComplexityFactor)

	s.mu.Lock()
	for i := 0; i < 10; i++ {
		s.record("world", int64(i), 4500*time.Millisecond)
	}
	s.mu.Unlock()
	s.Update(time.Millisecond)
	assert.T(t, s.Settings().ComplexityFactor < 1.0, "slow generation should reduce complexity")

	fast := newTestGenerator(0)
	fast.mu.Lock()
	for i := 0; i < 10; i++ {
		fast.record("item", int64(i), time.Millisecond)
	}
	fast.mu.Unlock()
	fast.Update(time.Millisecond)
	assert.T(t, fast.Settings().ComplexityFactor > 1.0, "fast generation should raise complexity")
	assert.Equal(t, 10, len(fast.History()))
}

func TestPerformanceRating(t *testing.T) {
	s := newTestGenerator(0)
	assert.Equal(t, 1.0, s.PerformanceRating())

	s.mu.Lock()
	s.record("quest", 1, 2500*time.Millisecond)
	s.mu.Unlock()
	rating := s.PerformanceRating()
	assert.T(t, rating > 0.49 && rating < 0.51, "rating should be 1 - avg/max")
}

func TestApplyOptimization(t *testing.T) {
	s := newTestGenerator(100)
	strategy := &improve.Strategy{
		Name:       "content_generation_caching",
		Parameters: map[string]float64{"cache_size_step": 10, "max_cache_size": 115},
	}
	assert.T(t, s.ApplyOptimization(strategy, improve.SeverityMedium), "cache should grow")
	assert.Equal(t, 110, s.Settings().CacheSize)
	assert.T(t, s.ApplyOptimization(strategy, improve.SeverityMedium), "cache should grow to the max")
	assert.Equal(t, 115, s.Settings().CacheSize)
	assert.T(t, !s.ApplyOptimization(strategy, improve.SeverityHigh), "cache at max should not grow")
}

func TestGenerateWorldAsync(t *testing.T) {
	s := newTestGenerator(10)
	var world *World
	done := false
	s.GenerateWorldAsync(21, nil, func(w *World, err error) {
		assert.Equal(t, nil, err)
		world = w
		done = true
	})

	deadline := time.Now().Add(5 * time.Second)
	for !done {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for async world")
		}
		post.Tick()
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, int64(21), world.Seed)
	hits := s.Stats().CacheHits
	if diff := cmp.Diff(world, s.GenerateWorld(21, nil)); diff != "" {
		t.Errorf("async world should be cached (-async +sync):\n%s", diff)
	}
	assert.Equal(t, hits+1, s.Stats().CacheHits)
}
