package content

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/netgodgame/netgod/engine/common"
)

// WorldParameters control world generation
type WorldParameters struct {
	Size              common.Vector3 `json:"size" msgpack:"size"`
	TerrainComplexity float64        `json:"terrain_complexity" msgpack:"terrain_complexity"`
	WaterLevel        float64        `json:"water_level" msgpack:"water_level"`
	BiomeCount        int            `json:"biome_count" msgpack:"biome_count"`
	CaveDensity       float64        `json:"cave_density" msgpack:"cave_density"`
}

// DefaultWorldParameters returns the parameters used when none are given
func DefaultWorldParameters() WorldParameters {
	return WorldParameters{
		Size:              common.Vec3(1000, 100, 1000),
		TerrainComplexity: 0.5,
		WaterLevel:        0.3,
		BiomeCount:        5,
		CaveDensity:       0.2,
	}
}

// QuestParameters control quest generation
type QuestParameters struct {
	DifficultyRange     [2]int   `json:"difficulty_range" msgpack:"difficulty_range"`
	RewardVariance      float64  `json:"reward_variance" msgpack:"reward_variance"`
	NarrativeComplexity float64  `json:"narrative_complexity" msgpack:"narrative_complexity"`
	ObjectiveTypes      []string `json:"objective_types" msgpack:"objective_types"`
}

// DefaultQuestParameters returns the parameters used when none are given
func DefaultQuestParameters() QuestParameters {
	return QuestParameters{
		DifficultyRange:     [2]int{1, 10},
		RewardVariance:      0.3,
		NarrativeComplexity: 0.5,
		ObjectiveTypes:      []string{QuestRetrieve, QuestDefeat, QuestExplore, QuestProtect, QuestDeliver},
	}
}

// Quest kinds
const (
	QuestRetrieve = "retrieve"
	QuestDefeat   = "defeat"
	QuestExplore  = "explore"
	QuestProtect  = "protect"
	QuestDeliver  = "deliver"
	QuestGeneric  = "generic"
)

// Item kinds
const (
	ItemWeapon     = "weapon"
	ItemArmor      = "armor"
	ItemConsumable = "consumable"
	ItemQuest      = "quest_item"
	ItemGeneric    = "generic"
)

// TerrainPoint is one sample of the terrain grid
type TerrainPoint struct {
	Position common.Vector3 `json:"position" msgpack:"position"`
	Normal   common.Vector3 `json:"normal" msgpack:"normal"`
	Material string         `json:"material" msgpack:"material"`
}

// Biome is a region with its own climate
type Biome struct {
	ID                string         `json:"id" msgpack:"id"`
	Type              string         `json:"type" msgpack:"type"`
	Position          common.Vector3 `json:"position" msgpack:"position"`
	Radius            int            `json:"radius" msgpack:"radius"`
	VegetationDensity float64        `json:"vegetation_density" msgpack:"vegetation_density"`
	Temperature       float64        `json:"temperature" msgpack:"temperature"`
}

// Cave is an underground system
type Cave struct {
	ID             string         `json:"id" msgpack:"id"`
	Entrance       common.Vector3 `json:"entrance" msgpack:"entrance"`
	Length         int            `json:"length" msgpack:"length"`
	Complexity     float64        `json:"complexity" msgpack:"complexity"`
	TreasureChance float64        `json:"treasure_chance" msgpack:"treasure_chance"`
}

// WaterBody is a lake, river or pond
type WaterBody struct {
	ID         string         `json:"id" msgpack:"id"`
	Type       string         `json:"type" msgpack:"type"`
	Position   common.Vector3 `json:"position" msgpack:"position"`
	Size       common.Vector3 `json:"size" msgpack:"size"`
	Freshwater bool           `json:"freshwater" msgpack:"freshwater"`
}

// PointOfInterest is a notable place in the world
type PointOfInterest struct {
	ID          string         `json:"id" msgpack:"id"`
	Type        string         `json:"type" msgpack:"type"`
	Position    common.Vector3 `json:"position" msgpack:"position"`
	Difficulty  int            `json:"difficulty" msgpack:"difficulty"`
	QuestMarker bool           `json:"quest_marker" msgpack:"quest_marker"`
}

// NPCSpawn is a spawn point of NPCs
type NPCSpawn struct {
	ID          string         `json:"id" msgpack:"id"`
	Type        string         `json:"type" msgpack:"type"`
	Position    common.Vector3 `json:"position" msgpack:"position"`
	RespawnTime time.Duration  `json:"respawn_time" msgpack:"respawn_time"`
	AggroRadius int            `json:"aggro_radius" msgpack:"aggro_radius"`
}

// World is a generated world
type World struct {
	Seed             int64             `json:"seed" msgpack:"seed"`
	Terrain          []TerrainPoint    `json:"terrain" msgpack:"terrain"`
	Biomes           []Biome           `json:"biomes" msgpack:"biomes"`
	Caves            []Cave            `json:"caves" msgpack:"caves"`
	WaterBodies      []WaterBody       `json:"water_bodies" msgpack:"water_bodies"`
	PointsOfInterest []PointOfInterest `json:"points_of_interest" msgpack:"points_of_interest"`
	NPCSpawns        []NPCSpawn        `json:"npc_spawns" msgpack:"npc_spawns"`
}

// Rewards of a quest
type Rewards struct {
	XP           int      `json:"xp" msgpack:"xp"`
	Gold         int      `json:"gold" msgpack:"gold"`
	SpecialItems []string `json:"special_items" msgpack:"special_items"`
}

// Narrative is the story around a quest
type Narrative struct {
	Title       string `json:"title" msgpack:"title"`
	Description string `json:"description" msgpack:"description"`
	Giver       string `json:"npc_giver" msgpack:"npc_giver"`
}

// Quest is a generated quest. Details holds the fields specific to the quest kind.
type Quest struct {
	Seed       int64             `json:"seed" msgpack:"seed"`
	Type       string            `json:"type" msgpack:"type"`
	Objective  string            `json:"objective" msgpack:"objective"`
	Details    map[string]string `json:"details" msgpack:"details"`
	Difficulty int               `json:"difficulty" msgpack:"difficulty"`
	Rewards    Rewards           `json:"rewards" msgpack:"rewards"`
	Narrative  Narrative         `json:"narrative" msgpack:"narrative"`
}

// Item is a generated item. Attributes holds the numeric stats of the item kind.
type Item struct {
	Seed           int64              `json:"seed" msgpack:"seed"`
	Type           string             `json:"type" msgpack:"type"`
	Subtype        string             `json:"subtype" msgpack:"subtype"`
	Name           string             `json:"name" msgpack:"name"`
	Description    string             `json:"description,omitempty" msgpack:"description,omitempty"`
	Attributes     map[string]float64 `json:"attributes,omitempty" msgpack:"attributes,omitempty"`
	SpecialEffects []string           `json:"special_effects,omitempty" msgpack:"special_effects,omitempty"`
	Duration       time.Duration      `json:"duration,omitempty" msgpack:"duration,omitempty"`
	Rarity         string             `json:"rarity" msgpack:"rarity"`
	Value          int                `json:"value" msgpack:"value"`
}

// Clone returns a deep copy of the world
func (w *World) Clone() *World {
	c := *w
	c.Terrain = append([]TerrainPoint(nil), w.Terrain...)
	c.Biomes = append([]Biome(nil), w.Biomes...)
	c.Caves = append([]Cave(nil), w.Caves...)
	c.WaterBodies = append([]WaterBody(nil), w.WaterBodies...)
	c.PointsOfInterest = append([]PointOfInterest(nil), w.PointsOfInterest...)
	c.NPCSpawns = append([]NPCSpawn(nil), w.NPCSpawns...)
	return &c
}

// Clone returns a deep copy of the quest
func (q *Quest) Clone() *Quest {
	c := *q
	if q.Details != nil {
		c.Details = make(map[string]string, len(q.Details))
		for k, v := range q.Details {
			c.Details[k] = v
		}
	}
	c.Rewards.SpecialItems = append([]string(nil), q.Rewards.SpecialItems...)
	return &c
}

// Clone returns a deep copy of the item
func (it *Item) Clone() *Item {
	c := *it
	if it.Attributes != nil {
		c.Attributes = make(map[string]float64, len(it.Attributes))
		for k, v := range it.Attributes {
			c.Attributes[k] = v
		}
	}
	c.SpecialEffects = append([]string(nil), it.SpecialEffects...)
	return &c
}

// Stats of content generation
type Stats struct {
	WorldsGenerated   int           `json:"worlds_generated"`
	QuestsGenerated   int           `json:"quests_generated"`
	ItemsGenerated    int           `json:"items_generated"`
	AvgGenerationTime time.Duration `json:"avg_generation_time"`
	CacheHits         int           `json:"cache_hits"`
	CacheMisses       int           `json:"cache_misses"`
}

// HistoryEntry records one generation
type HistoryEntry struct {
	Kind string        `json:"kind"`
	Time time.Duration `json:"time"`
	Seed int64         `json:"seed"`
}

func worldKey(seed int64, p *WorldParameters) string {
	return fmt.Sprintf("world_%d_%x", seed, xxhash.Sum64String(fmt.Sprintf("%+v", *p)))
}

func questKey(seed int64, p *QuestParameters) string {
	return fmt.Sprintf("quest_%d_%x", seed, xxhash.Sum64String(fmt.Sprintf("%+v", *p)))
}

func itemKey(seed int64, itemType string) string {
	if itemType == "" {
		itemType = "random"
	}
	return fmt.Sprintf("item_%d_%s", seed, itemType)
}
