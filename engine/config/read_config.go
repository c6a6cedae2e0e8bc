package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-ini/ini"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/pkg/errors"
)

const (
	_DEFAULT_CONFIG_FILE  = "netgod.ini"
	_DEFAULT_LOCALHOST_IP = "127.0.0.1"
	_DEFAULT_HTTP_IP      = "127.0.0.1"
	_DEFAULT_LOG_LEVEL    = "info"
	_DEFAULT_STORAGE_DB   = "netgod"
)

var (
	configFilePath = _DEFAULT_CONFIG_FILE
	netGodConfig   *NetGodConfig
	configLock     sync.Mutex

	// ErrInvalidConfig is returned by Load when the config file has invalid values
	ErrInvalidConfig = errors.New("invalid config")
)

// EngineConfig defines fields of the engine loop and process
type EngineConfig struct {
	FrameRate           int
	Adaptation          bool
	AdaptIntervalFrames int
	MetricSampleFrames  int
	LogFile             string
	LogStderr           bool
	LogLevel            string
	HTTPIp              string
	HTTPPort            int
	GoMaxProcs          int
	SysmonInterval      time.Duration
}

// RendererConfig defines fields of the rendering system
type RendererConfig struct {
	Width           int
	Height          int
	Fullscreen      bool
	VSync           bool
	MaxFPS          int
	QualityLevel    int
	AdaptiveQuality bool
}

// PhysicsConfig defines fields of the physics system
type PhysicsConfig struct {
	Gravity            common.Vector3
	SimulationRate     int
	MaxSubsteps        int
	CollisionDetection bool
	Constraints        bool
}

// AIConfig defines fields of the AI behavior system
type AIConfig struct {
	UpdateRate         time.Duration
	PerceptionRange    float64
	CommunicationRange float64
	LearningRate       float64
	GroupBehavior      bool
	EmotionalStates    bool
	Learning           bool
	Seed               int64
}

// ContentConfig defines fields of the content generation system
type ContentConfig struct {
	Seed              int64
	QualityLevel      int
	ComplexityFactor  float64
	Adaptive          bool
	MaxGenerationTime time.Duration
	CacheSize         int
}

// NetworkConfig defines fields of the networking system
type NetworkConfig struct {
	Ip                     string
	Port                   int
	KCPPort                int
	MaxConnections         int
	PacketRate             int
	Compression            bool
	Encryption             bool
	Optimization           bool
	TLSKey                 string
	TLSCertificate         string
	MsgPacker              string
	PingInterval           time.Duration
	ConnectionTimeout      time.Duration
	BlockchainSyncInterval time.Duration
}

// BlockchainConfig defines fields of the blockchain ledger
type BlockchainConfig struct {
	RPCEndpoint        string
	ContractAddresses  map[string]string
	WalletAddress      string
	PrivateKey         string `json:"-"`
	NetworkID          int64
	ConfirmationBlocks int
}

// ImprovementConfig defines fields of the self-improvement system
type ImprovementConfig struct {
	LearningRate            float64
	AdaptationInterval      time.Duration
	HistorySize             int
	OptimizationThreshold   float64
	Autonomous              bool
	Predictive              bool
	MaxOptimizationAttempts int
	ExportFile              string
}

// StorageConfig defines fields of storage config
type StorageConfig struct {
	Type      string // Type of storage (filesystem, mongodb, redis)
	Directory string // Directory of filesystem storage (filesystem)
	Url       string // Connection URL (mongodb, redis)
	DB        string // Database name (mongodb, redis)
}

// KVDBConfig defines fields of KVDB config
type KVDBConfig struct {
	Type       string // memory, badger, redis, redis_cluster, mongodb, sql
	Url        string // MongoDB, Redis, SQL data source
	DB         string // MongoDB, Redis
	Collection string // MongoDB
	Driver     string // SQL Driver: e.x. sqlite
	Directory  string // Badger
	StartNodes common.StringSet
}

// NetGodConfig defines the total config file structure
type NetGodConfig struct {
	Engine      EngineConfig
	Renderer    RendererConfig
	Physics     PhysicsConfig
	AI          AIConfig
	Content     ContentConfig
	Network     NetworkConfig
	Blockchain  BlockchainConfig
	Improvement ImprovementConfig
	Storage     StorageConfig
	KVDB        KVDBConfig
}

// SetConfigFile sets the config file path (netgod.ini by default)
func SetConfigFile(f string) {
	configLock.Lock()
	configFilePath = f
	netGodConfig = nil
	configLock.Unlock()
}

// GetConfigDir returns the directory of the config file
func GetConfigDir() string {
	return filepath.Dir(GetConfigFilePath())
}

// GetConfigFilePath returns the config file path
func GetConfigFilePath() string {
	configLock.Lock()
	defer configLock.Unlock()
	return configFilePath
}

// Get returns the total config, reading the config file on first call.
// Invalid config files panic.
func Get() *NetGodConfig {
	configLock.Lock()
	defer configLock.Unlock()
	if netGodConfig == nil {
		netGodConfig = readNetGodConfig(configFilePath)
	}
	return netGodConfig
}

// Reload forces the whole config to be read again
func Reload() *NetGodConfig {
	configLock.Lock()
	netGodConfig = nil
	configLock.Unlock()

	return Get()
}

// Load reads the config file at path without touching the global config
func Load(path string) (cfg *NetGodConfig, err error) {
	defer func() {
		if r := recover(); r != nil {
			cfg = nil
			err = errors.Wrapf(ErrInvalidConfig, "%s: %v", path, r)
		}
	}()
	return readNetGodConfig(path), nil
}

func set(cfg *NetGodConfig) {
	configLock.Lock()
	netGodConfig = cfg
	configLock.Unlock()
}

// GetEngine returns the engine config
func GetEngine() *EngineConfig {
	return &Get().Engine
}

// GetNetwork returns the networking config
func GetNetwork() *NetworkConfig {
	return &Get().Network
}

// GetStorage returns the storage config
func GetStorage() *StorageConfig {
	return &Get().Storage
}

// GetKVDB returns the KVDB config
func GetKVDB() *KVDBConfig {
	return &Get().KVDB
}

// DumpPretty format config to string in pretty format
func DumpPretty(cfg interface{}) string {
	s, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(s)
}

// Default returns the config used when no config file exists
func Default() *NetGodConfig {
	return readNetGodConfig("")
}

func readNetGodConfig(path string) *NetGodConfig {
	config := NetGodConfig{}
	var iniFile *ini.File
	var err error
	if path == "" {
		iniFile = ini.Empty()
	} else {
		gwlog.Infof("Using config file: %s", path)
		iniFile, err = ini.LooseLoad(path)
		checkConfigError(err, "")
	}

	readEngineConfig(iniFile.Section("engine"), &config.Engine)
	readRendererConfig(iniFile.Section("renderer"), &config.Renderer)
	readPhysicsConfig(iniFile.Section("physics"), &config.Physics)
	readAIConfig(iniFile.Section("ai"), &config.AI)
	readContentConfig(iniFile.Section("content"), &config.Content)
	readNetworkConfig(iniFile.Section("network"), &config.Network)
	readBlockchainConfig(iniFile.Section("blockchain"), &config.Blockchain)
	readImprovementConfig(iniFile.Section("improvement"), &config.Improvement)
	readStorageConfig(iniFile.Section("storage"), &config.Storage)
	readKVDBConfig(iniFile.Section("kvdb"), &config.KVDB)

	for _, sec := range iniFile.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		switch strings.ToLower(sec.Name()) {
		case "engine", "renderer", "physics", "ai", "content", "network",
			"blockchain", "improvement", "storage", "kvdb":
		default:
			gwlog.Panicf("unknown section: %s", sec.Name())
		}
	}

	return &config
}

// seconds reads a key given in (possibly fractional) seconds
func seconds(key *ini.Key, def time.Duration) time.Duration {
	return time.Duration(key.MustFloat64(def.Seconds()) * float64(time.Second))
}

func readEngineConfig(sec *ini.Section, ec *EngineConfig) {
	ec.FrameRate = consts.DEFAULT_FRAME_RATE
	ec.Adaptation = true
	ec.AdaptIntervalFrames = consts.ADAPT_INTERVAL_FRAMES
	ec.MetricSampleFrames = consts.METRIC_SAMPLE_FRAMES
	ec.LogFile = "netgod.log"
	ec.LogStderr = true
	ec.LogLevel = _DEFAULT_LOG_LEVEL
	ec.HTTPIp = _DEFAULT_HTTP_IP
	ec.HTTPPort = 0 // admin http not enabled by default
	ec.SysmonInterval = time.Second * 5

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "frame_rate" {
			ec.FrameRate = key.MustInt(ec.FrameRate)
		} else if name == "adaptation" {
			ec.Adaptation = key.MustBool(ec.Adaptation)
		} else if name == "adapt_interval_frames" {
			ec.AdaptIntervalFrames = key.MustInt(ec.AdaptIntervalFrames)
		} else if name == "metric_sample_frames" {
			ec.MetricSampleFrames = key.MustInt(ec.MetricSampleFrames)
		} else if name == "log_file" {
			ec.LogFile = key.MustString(ec.LogFile)
		} else if name == "log_stderr" {
			ec.LogStderr = key.MustBool(ec.LogStderr)
		} else if name == "log_level" {
			ec.LogLevel = key.MustString(ec.LogLevel)
		} else if name == "http_ip" {
			ec.HTTPIp = key.MustString(ec.HTTPIp)
		} else if name == "http_port" {
			ec.HTTPPort = key.MustInt(ec.HTTPPort)
		} else if name == "gomaxprocs" {
			ec.GoMaxProcs = key.MustInt(ec.GoMaxProcs)
		} else if name == "sysmon_interval" {
			ec.SysmonInterval = seconds(key, ec.SysmonInterval)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if ec.FrameRate <= 0 {
		gwlog.Panicf("frame_rate must be positive: %d", ec.FrameRate)
	}
	if ec.AdaptIntervalFrames <= 0 || ec.MetricSampleFrames <= 0 {
		gwlog.Panicf("adapt_interval_frames and metric_sample_frames must be positive")
	}
}

func readRendererConfig(sec *ini.Section, rc *RendererConfig) {
	rc.Width = 1920
	rc.Height = 1080
	rc.VSync = true
	rc.MaxFPS = 60
	rc.QualityLevel = 3
	rc.AdaptiveQuality = true

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "width" {
			rc.Width = key.MustInt(rc.Width)
		} else if name == "height" {
			rc.Height = key.MustInt(rc.Height)
		} else if name == "fullscreen" {
			rc.Fullscreen = key.MustBool(rc.Fullscreen)
		} else if name == "vsync" {
			rc.VSync = key.MustBool(rc.VSync)
		} else if name == "max_fps" {
			rc.MaxFPS = key.MustInt(rc.MaxFPS)
		} else if name == "quality_level" {
			rc.QualityLevel = key.MustInt(rc.QualityLevel)
		} else if name == "adaptive_quality" {
			rc.AdaptiveQuality = key.MustBool(rc.AdaptiveQuality)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if rc.QualityLevel < 1 || rc.QualityLevel > 5 {
		gwlog.Panicf("renderer quality_level must be 1~5: %d", rc.QualityLevel)
	}
	if rc.MaxFPS <= 0 || rc.Width <= 0 || rc.Height <= 0 {
		gwlog.Panicf("renderer max_fps, width and height must be positive")
	}
}

func readPhysicsConfig(sec *ini.Section, pc *PhysicsConfig) {
	pc.Gravity = common.Vec3(0, -9.81, 0)
	pc.SimulationRate = 60
	pc.MaxSubsteps = 4
	pc.CollisionDetection = true
	pc.Constraints = true

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "gravity_x" {
			pc.Gravity.X = common.Coord(key.MustFloat64(float64(pc.Gravity.X)))
		} else if name == "gravity_y" {
			pc.Gravity.Y = common.Coord(key.MustFloat64(float64(pc.Gravity.Y)))
		} else if name == "gravity_z" {
			pc.Gravity.Z = common.Coord(key.MustFloat64(float64(pc.Gravity.Z)))
		} else if name == "simulation_rate" {
			pc.SimulationRate = key.MustInt(pc.SimulationRate)
		} else if name == "max_substeps" {
			pc.MaxSubsteps = key.MustInt(pc.MaxSubsteps)
		} else if name == "collision_detection" {
			pc.CollisionDetection = key.MustBool(pc.CollisionDetection)
		} else if name == "constraints" {
			pc.Constraints = key.MustBool(pc.Constraints)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if pc.SimulationRate <= 0 || pc.MaxSubsteps <= 0 {
		gwlog.Panicf("physics simulation_rate and max_substeps must be positive")
	}
}

func readAIConfig(sec *ini.Section, ac *AIConfig) {
	ac.UpdateRate = time.Millisecond * 100
	ac.PerceptionRange = 20
	ac.CommunicationRange = 10
	ac.LearningRate = 0.01
	ac.GroupBehavior = true
	ac.EmotionalStates = true
	ac.Learning = true
	ac.Seed = 42

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "update_rate" {
			ac.UpdateRate = seconds(key, ac.UpdateRate)
		} else if name == "perception_range" {
			ac.PerceptionRange = key.MustFloat64(ac.PerceptionRange)
		} else if name == "communication_range" {
			ac.CommunicationRange = key.MustFloat64(ac.CommunicationRange)
		} else if name == "learning_rate" {
			ac.LearningRate = key.MustFloat64(ac.LearningRate)
		} else if name == "group_behavior" {
			ac.GroupBehavior = key.MustBool(ac.GroupBehavior)
		} else if name == "emotional_states" {
			ac.EmotionalStates = key.MustBool(ac.EmotionalStates)
		} else if name == "learning" {
			ac.Learning = key.MustBool(ac.Learning)
		} else if name == "seed" {
			ac.Seed = key.MustInt64(ac.Seed)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if ac.UpdateRate <= 0 || ac.PerceptionRange <= 0 {
		gwlog.Panicf("ai update_rate and perception_range must be positive")
	}
}

func readContentConfig(sec *ini.Section, cc *ContentConfig) {
	cc.Seed = 42
	cc.QualityLevel = 3
	cc.ComplexityFactor = 1.0
	cc.Adaptive = true
	cc.MaxGenerationTime = time.Second * 5
	cc.CacheSize = 100

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "seed" {
			cc.Seed = key.MustInt64(cc.Seed)
		} else if name == "quality_level" {
			cc.QualityLevel = key.MustInt(cc.QualityLevel)
		} else if name == "complexity_factor" {
			cc.ComplexityFactor = key.MustFloat64(cc.ComplexityFactor)
		} else if name == "adaptive" {
			cc.Adaptive = key.MustBool(cc.Adaptive)
		} else if name == "max_generation_time" {
			cc.MaxGenerationTime = seconds(key, cc.MaxGenerationTime)
		} else if name == "cache_size" {
			cc.CacheSize = key.MustInt(cc.CacheSize)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if cc.MaxGenerationTime <= 0 || cc.CacheSize < 0 {
		gwlog.Panicf("content max_generation_time must be positive and cache_size must not be negative")
	}
}

func readNetworkConfig(sec *ini.Section, nc *NetworkConfig) {
	nc.Ip = "0.0.0.0"
	nc.Port = 8080
	nc.MaxConnections = 100
	nc.PacketRate = 60
	nc.Compression = true
	nc.Encryption = false
	nc.Optimization = true
	nc.MsgPacker = "json"
	nc.PingInterval = time.Second
	nc.ConnectionTimeout = time.Second * 30
	nc.BlockchainSyncInterval = time.Second * 5

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "ip" {
			nc.Ip = key.MustString(nc.Ip)
		} else if name == "port" {
			nc.Port = key.MustInt(nc.Port)
		} else if name == "kcp_port" {
			nc.KCPPort = key.MustInt(nc.KCPPort)
		} else if name == "max_connections" {
			nc.MaxConnections = key.MustInt(nc.MaxConnections)
		} else if name == "packet_rate" {
			nc.PacketRate = key.MustInt(nc.PacketRate)
		} else if name == "compression" {
			nc.Compression = key.MustBool(nc.Compression)
		} else if name == "encryption" {
			nc.Encryption = key.MustBool(nc.Encryption)
		} else if name == "optimization" {
			nc.Optimization = key.MustBool(nc.Optimization)
		} else if name == "tls_key" {
			nc.TLSKey = key.MustString(nc.TLSKey)
		} else if name == "tls_certificate" {
			nc.TLSCertificate = key.MustString(nc.TLSCertificate)
		} else if name == "msg_packer" {
			nc.MsgPacker = strings.ToLower(key.MustString(nc.MsgPacker))
		} else if name == "ping_interval" {
			nc.PingInterval = seconds(key, nc.PingInterval)
		} else if name == "connection_timeout" {
			nc.ConnectionTimeout = seconds(key, nc.ConnectionTimeout)
		} else if name == "blockchain_sync_interval" {
			nc.BlockchainSyncInterval = seconds(key, nc.BlockchainSyncInterval)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	validateNetworkConfig(nc)
}

func validateNetworkConfig(nc *NetworkConfig) {
	if nc.MsgPacker != "json" && nc.MsgPacker != "msgpack" {
		gwlog.Panicf("unknown msg_packer: %s", nc.MsgPacker)
	}
	if nc.Encryption && (nc.TLSKey == "" || nc.TLSCertificate == "") {
		gwlog.Panicf("encryption requires tls_key and tls_certificate")
	}
	if nc.MaxConnections <= 0 || nc.PacketRate <= 0 {
		gwlog.Panicf("max_connections and packet_rate must be positive")
	}
	if nc.ConnectionTimeout <= 0 || nc.BlockchainSyncInterval <= 0 {
		gwlog.Panicf("connection_timeout and blockchain_sync_interval must be positive")
	}
}

// DefaultContracts are the contracts known to the ledger
var DefaultContracts = []string{"ngt_token", "staking", "governance", "nft"}

func readBlockchainConfig(sec *ini.Section, bc *BlockchainConfig) {
	bc.RPCEndpoint = "http://localhost:8545"
	bc.NetworkID = 1
	bc.ConfirmationBlocks = consts.CHAIN_CONFIRMATION_BLOCKS
	bc.ContractAddresses = map[string]string{}
	for i, name := range DefaultContracts {
		bc.ContractAddresses[name] = fmt.Sprintf("0x%040x", i+1)
	}

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "rpc_endpoint" {
			bc.RPCEndpoint = key.MustString(bc.RPCEndpoint)
		} else if name == "wallet_address" {
			bc.WalletAddress = key.MustString(bc.WalletAddress)
		} else if name == "private_key" {
			bc.PrivateKey = key.MustString(bc.PrivateKey)
		} else if name == "network_id" {
			bc.NetworkID = key.MustInt64(bc.NetworkID)
		} else if name == "confirmation_blocks" {
			bc.ConfirmationBlocks = key.MustInt(bc.ConfirmationBlocks)
		} else if strings.HasPrefix(name, "contract_") {
			bc.ContractAddresses[name[len("contract_"):]] = key.MustString("")
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if bc.ConfirmationBlocks < 0 {
		gwlog.Panicf("confirmation_blocks must not be negative")
	}
}

func readImprovementConfig(sec *ini.Section, ic *ImprovementConfig) {
	ic.LearningRate = 0.01
	ic.AdaptationInterval = time.Second * 10
	ic.HistorySize = 1000
	ic.OptimizationThreshold = 0.8
	ic.Autonomous = true
	ic.Predictive = true
	ic.MaxOptimizationAttempts = 10

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "learning_rate" {
			ic.LearningRate = key.MustFloat64(ic.LearningRate)
		} else if name == "adaptation_interval" {
			ic.AdaptationInterval = seconds(key, ic.AdaptationInterval)
		} else if name == "history_size" {
			ic.HistorySize = key.MustInt(ic.HistorySize)
		} else if name == "optimization_threshold" {
			ic.OptimizationThreshold = key.MustFloat64(ic.OptimizationThreshold)
		} else if name == "autonomous" {
			ic.Autonomous = key.MustBool(ic.Autonomous)
		} else if name == "predictive" {
			ic.Predictive = key.MustBool(ic.Predictive)
		} else if name == "max_optimization_attempts" {
			ic.MaxOptimizationAttempts = key.MustInt(ic.MaxOptimizationAttempts)
		} else if name == "export_file" {
			ic.ExportFile = key.MustString(ic.ExportFile)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if ic.HistorySize <= 0 || ic.AdaptationInterval <= 0 {
		gwlog.Panicf("improvement history_size and adaptation_interval must be positive")
	}
}

func readStorageConfig(sec *ini.Section, config *StorageConfig) {
	// setup default values
	config.Type = "filesystem"
	config.Directory = "_netgod_storage"
	config.DB = _DEFAULT_STORAGE_DB

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "type" {
			config.Type = key.MustString(config.Type)
		} else if name == "directory" {
			config.Directory = key.MustString(config.Directory)
		} else if name == "url" {
			config.Url = key.MustString(config.Url)
		} else if name == "db" {
			config.DB = key.MustString(config.DB)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if config.Type == "redis" && !sec.HasKey("db") {
		config.DB = "0"
	}

	validateStorageConfig(config)
}

func readKVDBConfig(sec *ini.Section, config *KVDBConfig) {
	config.Type = "memory"
	config.Directory = "_netgod_kvdb"
	config.StartNodes = common.StringSet{}
	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "type" {
			config.Type = key.MustString(config.Type)
		} else if name == "url" {
			config.Url = key.MustString(config.Url)
		} else if name == "db" {
			config.DB = key.MustString(config.DB)
		} else if name == "collection" {
			config.Collection = key.MustString(config.Collection)
		} else if name == "driver" {
			config.Driver = key.MustString(config.Driver)
		} else if name == "directory" {
			config.Directory = key.MustString(config.Directory)
		} else if strings.HasPrefix(name, "start_nodes_") {
			config.StartNodes.Add(key.MustString(""))
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if config.Type == "redis" && config.DB == "" {
		config.DB = "0"
	}

	validateKVDBConfig(config)
}

func validateKVDBConfig(config *KVDBConfig) {
	switch config.Type {
	case "", "memory":
		// KVDB in memory or disabled, it's OK
	case "badger":
		if config.Directory == "" {
			gwlog.Panicf("directory is not set in %s KVDB config", config.Type)
		}
	case "mongodb":
		// must set DB and Collection for mongodb
		if config.Url == "" || config.DB == "" || config.Collection == "" {
			gwlog.Panicf("invalid %s KVDB config:\n%s", config.Type, DumpPretty(config))
		}
	case "redis":
		if config.Url == "" {
			gwlog.Panicf("invalid %s KVDB config:\n%s", config.Type, DumpPretty(config))
		}
		if _, err := strconv.Atoi(config.DB); err != nil { // make sure db is integer for redis
			gwlog.Panic(errors.Wrap(err, "redis db must be integer"))
		}
	case "redis_cluster":
		if len(config.StartNodes) == 0 {
			gwlog.Panicf("must have at least 1 start_nodes for [kvdb].redis_cluster")
		}
		for s := range config.StartNodes {
			if s == "" {
				gwlog.Panicf("start_nodes must not be empty")
			}
		}
	case "sql":
		if config.Driver == "" || config.Url == "" {
			gwlog.Panicf("invalid %s KVDB config:\n%s", config.Type, DumpPretty(config))
		}
	default:
		gwlog.Panicf("unknown kvdb type: %s", config.Type)
	}
}

func checkConfigError(err error, msg string) {
	if err != nil {
		if msg == "" {
			msg = err.Error()
		}
		gwlog.Panicf("read config error: %s", msg)
	}
}

func validateStorageConfig(config *StorageConfig) {
	switch config.Type {
	case "filesystem":
		// directory must be set
		if config.Directory == "" {
			gwlog.Panicf("directory is not set in %s storage config", config.Type)
		}
	case "mongodb":
		if config.Url == "" {
			gwlog.Panicf("url is not set in %s storage config", config.Type)
		}
		if config.DB == "" {
			gwlog.Panicf("db is not set in %s storage config", config.Type)
		}
	case "redis":
		if config.Url == "" {
			gwlog.Panicf("redis host is not set")
		}
		if _, err := strconv.Atoi(config.DB); err != nil {
			gwlog.Panic(errors.Wrap(err, "redis db must be integer"))
		}
	default:
		gwlog.Panicf("unknown storage type: %s", config.Type)
	}
}
