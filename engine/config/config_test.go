package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/pkg/errors"
)

const sampleConfig = `
[engine]
frame_rate = 30
log_level = debug
http_port = 18080

[renderer]
quality_level = 5
width = 1280
height = 720

[physics]
gravity_y = -1.62
max_substeps = 8

[ai]
update_rate = 0.25
perception_range = 35

[content]
seed = 7
max_generation_time = 2.5

[network]
port = 9000
kcp_port = 9001
msg_packer = msgpack
connection_timeout = 10

[blockchain]
rpc_endpoint = memory://
network_id = 1337
contract_ngt_token = 0xabc
contract_marketplace = 0xdef

[improvement]
adaptation_interval = 1
export_file = perf.json

[storage]
type = filesystem
directory = _test_storage

[kvdb]
type = redis_cluster
start_nodes_1 = 127.0.0.1:7000
start_nodes_2 = 127.0.0.1:7001
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "netgod.ini")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 60, cfg.Engine.FrameRate)
	assert.Equal(t, 3, cfg.Renderer.QualityLevel)
	assert.Equal(t, common.Vec3(0, -9.81, 0), cfg.Physics.Gravity)
	assert.Equal(t, 100*time.Millisecond, cfg.AI.UpdateRate)
	assert.Equal(t, int64(42), cfg.Content.Seed)
	assert.Equal(t, 8080, cfg.Network.Port)
	assert.Equal(t, 30*time.Second, cfg.Network.ConnectionTimeout)
	assert.Equal(t, "json", cfg.Network.MsgPacker)
	assert.Equal(t, int64(1), cfg.Blockchain.NetworkID)
	assert.Equal(t, 4, len(cfg.Blockchain.ContractAddresses))
	assert.Equal(t, 1000, cfg.Improvement.HistorySize)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
	assert.Equal(t, "memory", cfg.KVDB.Type)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 30, cfg.Engine.FrameRate)
	assert.Equal(t, "debug", cfg.Engine.LogLevel)
	assert.Equal(t, 18080, cfg.Engine.HTTPPort)
	assert.Equal(t, 5, cfg.Renderer.QualityLevel)
	assert.Equal(t, 1280, cfg.Renderer.Width)
	assert.Equal(t, common.Coord(-1.62), cfg.Physics.Gravity.Y)
	assert.Equal(t, 8, cfg.Physics.MaxSubsteps)
	assert.Equal(t, 250*time.Millisecond, cfg.AI.UpdateRate)
	assert.Equal(t, 35.0, cfg.AI.PerceptionRange)
	assert.Equal(t, int64(7), cfg.Content.Seed)
	assert.Equal(t, 2500*time.Millisecond, cfg.Content.MaxGenerationTime)
	assert.Equal(t, 9000, cfg.Network.Port)
	assert.Equal(t, 9001, cfg.Network.KCPPort)
	assert.Equal(t, "msgpack", cfg.Network.MsgPacker)
	assert.Equal(t, 10*time.Second, cfg.Network.ConnectionTimeout)
	assert.Equal(t, "memory://", cfg.Blockchain.RPCEndpoint)
	assert.Equal(t, int64(1337), cfg.Blockchain.NetworkID)
	assert.Equal(t, "0xabc", cfg.Blockchain.ContractAddresses["ngt_token"])
	assert.Equal(t, "0xdef", cfg.Blockchain.ContractAddresses["marketplace"])
	assert.Equal(t, time.Second, cfg.Improvement.AdaptationInterval)
	assert.Equal(t, "perf.json", cfg.Improvement.ExportFile)
	assert.Equal(t, "_test_storage", cfg.Storage.Directory)
	assert.Equal(t, "redis_cluster", cfg.KVDB.Type)
	assert.Equal(t, 2, len(cfg.KVDB.StartNodes))
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "not_exists.ini"))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 60, cfg.Engine.FrameRate)
}

func TestLoadInvalid(t *testing.T) {
	for _, content := range []string{
		"[renderer]\nquality_level = 9\n",
		"[engine]\nunknown_key = 1\n",
		"[nosuchsection]\na = 1\n",
		"[network]\nmsg_packer = xml\n",
		"[network]\nencryption = true\n",
		"[kvdb]\ntype = redis\n",
		"[kvdb]\ntype = cassandra\n",
		"[storage]\ntype = mongodb\n",
	} {
		_, err := Load(writeConfig(t, content))
		assert.Tf(t, err != nil, "config should be invalid: %q", content)
		assert.T(t, errors.Cause(err) == ErrInvalidConfig, "error should be ErrInvalidConfig")
	}
}

func TestGetAndReload(t *testing.T) {
	path := writeConfig(t, "[engine]\nframe_rate = 45\n")
	SetConfigFile(path)
	defer SetConfigFile(_DEFAULT_CONFIG_FILE)

	assert.Equal(t, 45, GetEngine().FrameRate)
	assert.Equal(t, path, GetConfigFilePath())
	assert.Equal(t, filepath.Dir(path), GetConfigDir())

	if err := os.WriteFile(path, []byte("[engine]\nframe_rate = 50\n"), 0644); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 45, Get().Engine.FrameRate)
	assert.Equal(t, 50, Reload().Engine.FrameRate)
	assert.T(t, DumpPretty(GetNetwork()) != "", "dump should not be empty")
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "[engine]\nframe_rate = 20\n")
	SetConfigFile(path)
	defer SetConfigFile(_DEFAULT_CONFIG_FILE)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *NetGodConfig, 1)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- Watch(ctx, func(cfg *NetGodConfig) {
			select {
			case changed <- cfg:
			default:
			}
		})
	}()

	// give the watcher time to register before writing
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("[engine]\nframe_rate = 25\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		assert.Equal(t, 25, cfg.Engine.FrameRate)
		assert.Equal(t, 25, Get().Engine.FrameRate)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}

	cancel()
	if err := <-watchDone; err != nil {
		t.Fatal(err)
	}
}
