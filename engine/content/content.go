package content

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/netgodgame/netgod/engine/async"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/gwutils"
	"github.com/netgodgame/netgod/engine/improve"
	"github.com/netgodgame/netgod/engine/metrics"
	"github.com/netgodgame/netgod/engine/opmon"
	"github.com/pkg/errors"
)

// Settings of the content generator
type Settings = config.ContentConfig

const (
	// AsyncGroup is the async worker group running background generation
	AsyncGroup = "content"

	cacheEvictCount   = 10
	maxHistory        = 1000
	minComplexity     = 0.1
	maxComplexity     = 2.0
	defaultCacheLimit = 500
)

// System generates worlds, quests and items procedurally
type System struct {
	mu          sync.Mutex
	settings    Settings
	worldParams WorldParameters
	questParams QuestParameters
	rng         *rand.Rand

	worlds *orderedCache[*World]
	quests *orderedCache[*Quest]
	items  *orderedCache[*Item]

	stats   Stats
	history []HistoryEntry
}

// NewSystem creates the content generator
func NewSystem(cfg *config.ContentConfig) *System {
	return &System{
		settings:    *cfg,
		worldParams: DefaultWorldParameters(),
		questParams: DefaultQuestParameters(),
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		worlds:      newOrderedCache[*World](),
		quests:      newOrderedCache[*Quest](),
		items:       newOrderedCache[*Item](),
	}
}

// Initialize checks the settings
func (s *System) Initialize() error {
	if s.settings.MaxGenerationTime <= 0 {
		return errors.Errorf("invalid max generation time: %s", s.settings.MaxGenerationTime)
	}
	gwlog.Infof("Content generator initialized: seed %d, quality %d/5, adaptive %v",
		s.settings.Seed, s.settings.QualityLevel, s.settings.Adaptive)
	return nil
}

// Shutdown drops all caches
func (s *System) Shutdown() {
	s.ClearCache()
	st := s.Stats()
	gwlog.Infof("Content generator shutdown: %d worlds, %d quests, %d items generated",
		st.WorldsGenerated, st.QuestsGenerated, st.ItemsGenerated)
}

// Update trims the caches and adapts the generation complexity
func (s *System) Update(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := s.settings.CacheSize
	s.worlds.trim(limit)
	s.quests.trim(limit)
	s.items.trim(limit)

	if s.settings.Adaptive {
		s.adapt()
	}
}

func (s *System) adapt() {
	if len(s.history) < 10 {
		return
	}
	recent := s.history
	if len(recent) > consts.ADAPT_WINDOW {
		recent = recent[len(recent)-consts.ADAPT_WINDOW:]
	}
	var total time.Duration
	for _, h := range recent {
		total += h.Time
	}
	avg := total / time.Duration(len(recent))
	limit := float64(s.settings.MaxGenerationTime)

	if float64(avg) > limit*0.8 {
		s.settings.ComplexityFactor = math.Max(minComplexity, s.settings.ComplexityFactor-0.05)
		gwlog.Infof("Reducing generation complexity to %.2f", s.settings.ComplexityFactor)
	} else if float64(avg) < limit*0.5 && s.settings.ComplexityFactor < maxComplexity {
		s.settings.ComplexityFactor = math.Min(maxComplexity, s.settings.ComplexityFactor+0.02)
		if consts.DEBUG_MODE {
			gwlog.Debugf("Increasing generation complexity to %.2f", s.settings.ComplexityFactor)
		}
	}
}

// Settings returns a copy of the current settings
func (s *System) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Stats returns a copy of the generation stats
func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// History returns a copy of the generation history
func (s *System) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryEntry(nil), s.history...)
}

// CacheSizes returns the number of cached worlds, quests and items
func (s *System) CacheSizes() (worlds, quests, items int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worlds.len(), s.quests.len(), s.items.len()
}

// ClearCache drops all cached content
func (s *System) ClearCache() {
	s.mu.Lock()
	s.worlds.clear()
	s.quests.clear()
	s.items.clear()
	s.mu.Unlock()
	gwlog.Infof("Content generation caches cleared")
}

// resolveSeed returns seed, or a new seed from the generator rng if seed is negative
func (s *System) resolveSeed(seed int64) int64 {
	if seed >= 0 {
		return seed
	}
	return s.rng.Int63n(1000000)
}

// record updates stats and history after a generation; the lock must be held
func (s *System) record(kind string, seed int64, elapsed time.Duration) {
	switch kind {
	case "world":
		s.stats.WorldsGenerated++
	case "quest":
		s.stats.QuestsGenerated++
	case "item":
		s.stats.ItemsGenerated++
	}
	n := s.stats.WorldsGenerated + s.stats.QuestsGenerated + s.stats.ItemsGenerated
	s.stats.AvgGenerationTime += (elapsed - s.stats.AvgGenerationTime) / time.Duration(n)

	metrics.IncContent(kind)
	s.history = append(s.history, HistoryEntry{Kind: kind, Time: elapsed, Seed: seed})
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}

// GenerateWorld generates a world. A nil params uses the default parameters and a negative seed picks one.
// The caller owns the returned world; the cached copy is never handed out.
func (s *System) GenerateWorld(seed int64, params *WorldParameters) *World {
	s.mu.Lock()
	if params == nil {
		p := s.worldParams
		params = &p
	}
	seed = s.resolveSeed(seed)
	key := worldKey(seed, params)
	if w, ok := s.worlds.get(key); ok {
		s.stats.CacheHits++
		s.mu.Unlock()
		return w.Clone()
	}
	s.stats.CacheMisses++
	s.mu.Unlock()

	op := opmon.StartOperation("content.world")
	w := generateWorld(seed, params)
	elapsed := op.Finish(s.settings.MaxGenerationTime)

	s.mu.Lock()
	s.worlds.put(key, w, s.settings.CacheSize)
	s.record("world", seed, elapsed)
	s.mu.Unlock()
	gwlog.Debugf("World %d generated in %s: %d terrain points", seed, elapsed, len(w.Terrain))
	return w.Clone()
}

// GenerateWorldAsync generates a world on the content worker and calls cb in the engine loop
func (s *System) GenerateWorldAsync(seed int64, params *WorldParameters, cb func(w *World, err error)) {
	async.AppendAsyncJob(AsyncGroup, func() (interface{}, error) {
		return s.GenerateWorld(seed, params), nil
	}, func(res interface{}, err error) {
		if cb == nil {
			return
		}
		if err != nil {
			cb(nil, err)
			return
		}
		cb(res.(*World), nil)
	})
}

// GenerateQuest generates a quest. A nil params uses the default parameters and a negative seed picks one.
func (s *System) GenerateQuest(seed int64, params *QuestParameters) *Quest {
	s.mu.Lock()
	if params == nil {
		p := s.questParams
		params = &p
	}
	seed = s.resolveSeed(seed)
	key := questKey(seed, params)
	if q, ok := s.quests.get(key); ok {
		s.stats.CacheHits++
		s.mu.Unlock()
		return q.Clone()
	}
	s.stats.CacheMisses++
	s.mu.Unlock()

	op := opmon.StartOperation("content.quest")
	q := generateQuest(seed, params)
	elapsed := op.Finish(s.settings.MaxGenerationTime)

	s.mu.Lock()
	s.quests.put(key, q, s.settings.CacheSize)
	s.record("quest", seed, elapsed)
	s.mu.Unlock()
	return q.Clone()
}

// GenerateItem generates an item of itemType, or of a random type if itemType is empty
func (s *System) GenerateItem(seed int64, itemType string) *Item {
	s.mu.Lock()
	seed = s.resolveSeed(seed)
	key := itemKey(seed, itemType)
	if it, ok := s.items.get(key); ok {
		s.stats.CacheHits++
		s.mu.Unlock()
		return it.Clone()
	}
	s.stats.CacheMisses++
	s.mu.Unlock()

	op := opmon.StartOperation("content.item")
	it := generateItem(seed, itemType)
	elapsed := op.Finish(s.settings.MaxGenerationTime)

	s.mu.Lock()
	s.items.put(key, it, s.settings.CacheSize)
	s.record("item", seed, elapsed)
	s.mu.Unlock()
	return it.Clone()
}

// PerformanceRating is 1 - avg/max generation time, or 1 if nothing was generated
func (s *System) PerformanceRating() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats.WorldsGenerated+s.stats.QuestsGenerated+s.stats.ItemsGenerated == 0 || s.stats.AvgGenerationTime <= 0 {
		return 1.0
	}
	return gwutils.Clamp(1-float64(s.stats.AvgGenerationTime)/float64(s.settings.MaxGenerationTime), 0, 1)
}

// ApplyOptimization grows the cache size by the strategy cache step
func (s *System) ApplyOptimization(strategy *improve.Strategy, severity improve.Severity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := int(strategy.Param("cache_size_step", 10))
	limit := int(strategy.Param("max_cache_size", defaultCacheLimit))
	if s.settings.CacheSize >= limit {
		return false
	}
	s.settings.CacheSize += step
	if s.settings.CacheSize > limit {
		s.settings.CacheSize = limit
	}
	gwlog.Infof("Content cache size raised to %d", s.settings.CacheSize)
	return true
}

func pick(r *rand.Rand, choices ...string) string {
	return choices[r.Intn(len(choices))]
}

// randInt returns an int in [lo, hi]
func randInt(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func randPos(r *rand.Rand, x, y, z float64) common.Vector3 {
	return common.Vec3(float64(randInt(r, 0, int(x))), float64(randInt(r, 0, int(y))), float64(randInt(r, 0, int(z))))
}

func generateWorld(seed int64, p *WorldParameters) *World {
	r := rand.New(rand.NewSource(seed))
	w, h, d := float64(p.Size.X), float64(p.Size.Y), float64(p.Size.Z)
	world := &World{Seed: seed}

	up := common.Vec3(0, 1, 0)
	for x := 0.0; x < w; x += 10 {
		for z := 0.0; z < d; z += 10 {
			height := valueNoise(seed, x, z)*p.TerrainComplexity*50 + mountain(x, z)*20
			material := "sand"
			if height > p.WaterLevel*100 {
				material = "grass"
			}
			world.Terrain = append(world.Terrain, TerrainPoint{
				Position: common.Vec3(x, height, z),
				Normal:   up,
				Material: material,
			})
		}
	}

	for i := 0; i < p.BiomeCount; i++ {
		world.Biomes = append(world.Biomes, Biome{
			ID:                idOf("biome", i),
			Type:              pick(r, "forest", "desert", "plains", "mountains", "swamp"),
			Position:          randPos(r, w, 0, d),
			Radius:            randInt(r, 50, 200),
			VegetationDensity: uniform(r, 0.1, 0.9),
			Temperature:       uniform(r, -10, 35),
		})
	}

	caves := int(w * d * p.CaveDensity / 10000)
	for i := 0; i < caves; i++ {
		world.Caves = append(world.Caves, Cave{
			ID:             idOf("cave", i),
			Entrance:       randPos(r, w, h*0.3, d),
			Length:         randInt(r, 20, 100),
			Complexity:     uniform(r, 0.1, 1.0),
			TreasureChance: uniform(r, 0.1, 0.5),
		})
	}

	waters := randInt(r, 3, 8)
	for i := 0; i < waters; i++ {
		pos := randPos(r, w, 0, d)
		pos.Y = common.Coord(p.WaterLevel * h)
		world.WaterBodies = append(world.WaterBodies, WaterBody{
			ID:         idOf("water", i),
			Type:       pick(r, "lake", "river", "pond"),
			Position:   pos,
			Size:       common.Vec3(float64(randInt(r, 10, 100)), 5, float64(randInt(r, 10, 100))),
			Freshwater: r.Intn(2) == 0,
		})
	}

	pois := randInt(r, 10, 30)
	for i := 0; i < pois; i++ {
		world.PointsOfInterest = append(world.PointsOfInterest, PointOfInterest{
			ID:          idOf("poi", i),
			Type:        pick(r, "tower", "ruins", "village", "dungeon", "cave_entrance", "landmark"),
			Position:    randPos(r, w, h, d),
			Difficulty:  randInt(r, 1, 10),
			QuestMarker: r.Intn(2) == 0,
		})
	}

	spawns := randInt(r, 20, 100)
	for i := 0; i < spawns; i++ {
		spawn := NPCSpawn{
			ID:          idOf("spawn", i),
			Type:        pick(r, "merchant", "guard", "quest_giver", "enemy", "animal"),
			Position:    randPos(r, w, h, d),
			RespawnTime: time.Duration(randInt(r, 30, 300)) * time.Second,
		}
		if spawn.Type == "enemy" {
			spawn.AggroRadius = randInt(r, 10, 50)
		}
		world.NPCSpawns = append(world.NPCSpawns, spawn)
	}
	return world
}

func idOf(prefix string, i int) string {
	return prefix + "_" + strconv.Itoa(i)
}

func generateQuest(seed int64, p *QuestParameters) *Quest {
	r := rand.New(rand.NewSource(seed))
	kind := QuestGeneric
	if len(p.ObjectiveTypes) > 0 {
		kind = p.ObjectiveTypes[r.Intn(len(p.ObjectiveTypes))]
	}

	q := &Quest{Seed: seed, Details: map[string]string{}}
	location := func() string {
		return pick(r, "Cave", "Ruins", "Tower", "Dungeon") + " of " + pick(r, "Light", "Darkness", "Fire", "Water", "Earth", "Air")
	}
	switch kind {
	case QuestRetrieve:
		target := pick(r, "Ancient", "Cursed", "Blessed", "Lost") + " " + pick(r, "Artifact", "Crystal", "Relic", "Gem")
		q.Objective = "Retrieve the " + target
		q.Details["target_item"] = target
		q.Details["location"] = location()
		q.Details["required_quantity"] = strconv.Itoa(randInt(r, 1, 5))
	case QuestDefeat:
		target := pick(r, "Ancient", "Cursed", "Powerful", "Mighty") + " " + pick(r, "Dragon", "Demon", "Giant", "Beast")
		q.Objective = "Defeat the " + target
		q.Details["target_enemy"] = target
		q.Details["location"] = location()
		q.Details["required_kills"] = strconv.Itoa(randInt(r, 1, 3))
	case QuestExplore:
		place := pick(r, "Mysterious", "Hidden", "Forbidden", "Ancient") + " " + pick(r, "Cave", "Ruins", "Tower", "Dungeon", "Forest", "Mountain")
		q.Objective = "Explore the " + place
		q.Details["location"] = place
		q.Details["exploration_goals"] = strconv.Itoa(randInt(r, 3, 8))
	case QuestProtect:
		target := pick(r, "Village", "Caravan", "Scholar", "Merchant")
		threat := pick(r, "Bandits", "Monsters", "Demons", "Invaders")
		q.Objective = "Protect the " + target + " from " + threat
		q.Details["target_to_protect"] = target
		q.Details["threat"] = threat
		q.Details["duration"] = strconv.Itoa(randInt(r, 5, 30)) + " minutes"
	case QuestDeliver:
		item := pick(r, "Package", "Letter", "Gift", "Supplies")
		recipient := pick(r, "Merchant", "Scholar", "Guard Captain", "Village Elder")
		q.Objective = "Deliver " + item + " to " + recipient
		q.Details["item"] = item
		q.Details["recipient"] = recipient
		q.Details["destination"] = pick(r, "Market District", "Scholar's Tower", "Guard Barracks", "Village Center")
	default:
		kind = QuestGeneric
		q.Objective = "Complete the " + pick(r, "Mysterious", "Challenging", "Important") + " task"
		q.Details["description"] = "A " + pick(r, "simple", "complex", "urgent") + " task requiring " + pick(r, "skill", "courage", "wisdom")
	}
	q.Type = kind
	q.Difficulty = randInt(r, p.DifficultyRange[0], p.DifficultyRange[1])
	q.Rewards = generateRewards(r, p)
	q.Narrative = Narrative{
		Title: "The " + pick(r, "Lost", "Cursed", "Blessed", "Ancient") + " " + pick(r, "Quest", "Journey", "Adventure", "Mission"),
		Description: pick(r, "A long time ago", "Recently", "In the near future", "In a distant land") + ", " +
			pick(r, "a great hero", "a wise scholar", "a brave warrior", "an ordinary person") + " " +
			pick(r, "discovered", "encountered", "found", "learned of") + " " +
			pick(r, "a terrible secret", "an ancient mystery", "a powerful artifact", "a dangerous threat") + ".",
		Giver: pick(r, "Old", "Wise", "Mysterious", "Ancient") + " " + pick(r, "Wizard", "Knight", "Scholar", "Merchant"),
	}
	return q
}

func generateRewards(r *rand.Rand, p *QuestParameters) Rewards {
	v := p.RewardVariance
	rewards := Rewards{
		XP:           int(float64(randInt(r, 100, 1000)) * uniform(r, 1-v, 1+v)),
		Gold:         int(float64(randInt(r, 10, 100)) * uniform(r, 1-v, 1+v)),
		SpecialItems: []string{},
	}
	if r.Float64() < 0.3 {
		rewards.SpecialItems = append(rewards.SpecialItems,
			pick(r, "Rare", "Magic", "Ancient")+" "+pick(r, "Weapon", "Armor", "Potion", "Scroll"))
	}
	return rewards
}

func generateItem(seed int64, itemType string) *Item {
	r := rand.New(rand.NewSource(seed))
	if itemType == "" {
		itemType = pick(r, ItemWeapon, ItemArmor, ItemConsumable, ItemQuest)
	}

	it := &Item{Seed: seed, Type: itemType}
	switch itemType {
	case ItemWeapon:
		it.Subtype = pick(r, "sword", "axe", "bow", "staff", "dagger")
		it.Name = pick(r, "Sharp", "Heavy", "Swift", "Ancient", "Cursed") + " " + capitalize(it.Subtype)
		it.Attributes = map[string]float64{
			"damage": float64(randInt(r, 5, 50)),
			"speed":  uniform(r, 0.5, 2.0),
		}
		if r.Float64() < 0.3 {
			it.SpecialEffects = []string{pick(r, "Fire", "Ice", "Lightning", "Poison") + " Damage"}
		}
	case ItemArmor:
		it.Subtype = pick(r, "helmet", "chestplate", "leggings", "boots", "shield")
		it.Name = pick(r, "Sturdy", "Reinforced", "Enchanted", "Ancient", "Cursed") + " " + capitalize(it.Subtype)
		it.Attributes = map[string]float64{
			"defense":    float64(randInt(r, 3, 30)),
			"durability": float64(randInt(r, 50, 200)),
		}
		if r.Float64() < 0.3 {
			it.SpecialEffects = []string{pick(r, "Fire", "Ice", "Lightning", "Poison") + " Resistance"}
		}
	case ItemConsumable:
		it.Subtype = pick(r, "potion", "scroll", "food", "elixir")
		it.Name = pick(r, "Healing", "Mana", "Strength", "Speed", "Invisibility") + " " + pick(r, "Potion", "Scroll", "Elixir")
		it.Description = pick(r, "heal", "mana_restore", "buff", "debuff_remove")
		it.Attributes = map[string]float64{"potency": float64(randInt(r, 1, 100))}
		if d := randInt(r, 10, 300); r.Float64() < 0.7 {
			it.Duration = time.Duration(d) * time.Second
		}
	case ItemQuest:
		it.Subtype = "artifact"
		it.Name = pick(r, "Ancient", "Cursed", "Blessed", "Lost") + " " + pick(r, "Artifact", "Relic", "Crystal", "Gem")
		it.Description = "A " + pick(r, "powerful", "mysterious", "ancient", "cursed") + " object of " +
			pick(r, "great importance", "unknown origin", "immense power", "historical significance")
	default:
		it.Type = ItemGeneric
		it.Subtype = pick(r, "material", "tool", "junk", "misc")
		it.Name = pick(r, "Common", "Simple", "Basic") + " " + pick(r, "Material", "Tool", "Component")
		it.Description = "A " + pick(r, "useful", "common", "simple") + " item"
	}
	it.Rarity = pick(r, "common", "uncommon", "rare", "epic", "legendary")
	it.Value = randInt(r, 10, 1000)
	return it
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// orderedCache is a map that remembers insertion order for eviction
type orderedCache[V any] struct {
	keys   []string
	values map[string]V
}

func newOrderedCache[V any]() *orderedCache[V] {
	return &orderedCache[V]{values: map[string]V{}}
}

func (c *orderedCache[V]) get(key string) (V, bool) {
	v, ok := c.values[key]
	return v, ok
}

// put stores the value only while the cache is under limit
func (c *orderedCache[V]) put(key string, v V, limit int) {
	if _, ok := c.values[key]; ok || len(c.values) >= limit {
		return
	}
	c.keys = append(c.keys, key)
	c.values[key] = v
}

// trim evicts the oldest entries when the cache is over limit
func (c *orderedCache[V]) trim(limit int) int {
	if len(c.keys) <= limit {
		return 0
	}
	n := cacheEvictCount
	if n > len(c.keys) {
		n = len(c.keys)
	}
	for _, k := range c.keys[:n] {
		delete(c.values, k)
	}
	c.keys = append([]string(nil), c.keys[n:]...)
	return n
}

func (c *orderedCache[V]) len() int {
	return len(c.keys)
}

func (c *orderedCache[V]) clear() {
	c.keys = nil
	c.values = map[string]V{}
}
