package consts

import "time"

// Tunable Options
const (
	// For Engine Loop
	// DEFAULT_FRAME_RATE is the target frame rate of the engine loop
	DEFAULT_FRAME_RATE = 60
	// FRAME_METRICS_HISTORY is the number of recent frames kept for performance stats
	FRAME_METRICS_HISTORY = 300
	// ADAPT_INTERVAL_FRAMES is how often (in frames) the engine analyzes and optimizes systems
	ADAPT_INTERVAL_FRAMES = 300
	// METRIC_SAMPLE_FRAMES is how often (in frames) system performance is fed to self-improvement
	METRIC_SAMPLE_FRAMES = 30
	// PAUSED_LOOP_INTERVAL is the sleep interval of the engine loop when paused
	PAUSED_LOOP_INTERVAL = time.Millisecond * 10
	// SLOW_SYSTEM_PERFORMANCE is the performance under which a system is reported as slow
	SLOW_SYSTEM_PERFORMANCE = 0.7
	// OPTIMIZE_SYSTEM_PERFORMANCE is the performance under which a system gets optimized
	OPTIMIZE_SYSTEM_PERFORMANCE = 0.8

	// For Adaptive Systems
	// ADAPT_WINDOW is the number of recent samples used by adaptive controllers
	ADAPT_WINDOW = 30
	// TIMING_HISTORY is the number of frame/step times kept by render & physics
	TIMING_HISTORY = 100

	// For Underlying Networking
	// PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD is the minimal packet payload length that should be compressed
	PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD = 512
	// MAX_PAYLOAD_LENGTH is the maximal payload length of a single packet
	MAX_PAYLOAD_LENGTH = 32 * 1024 * 1024
	// CLIENT_SEND_QUEUE_SIZE is the number of outgoing packets buffered per client
	CLIENT_SEND_QUEUE_SIZE = 256
	// CLIENT_PROXY_SET_TCP_NO_DELAY = true sets client connections to TcpNoDelay
	CLIENT_PROXY_SET_TCP_NO_DELAY = true
	// NETWORK_PACKET_QUEUE_SIZE is the max inbound message queue length of the networking system
	NETWORK_PACKET_QUEUE_SIZE = 10000
	// MAX_PACKETS_PER_UPDATE is the number of inbound messages handled in one engine frame
	MAX_PACKETS_PER_UPDATE = 10
	// LATENCY_HISTORY is the number of latency samples kept by networking
	LATENCY_HISTORY = 100
	// CONNECTION_CHECK_INTERVAL is how often client timeouts are checked
	CONNECTION_CHECK_INTERVAL = time.Second

	// For Async Jobs
	// ASYNC_JOB_QUEUE_MAXLEN is the max number of pending jobs per async group
	ASYNC_JOB_QUEUE_MAXLEN = 10000

	// For Storage & KVDB
	// STORAGE_OPERATION_WARN_THRESHOLD is the duration after which a storage operation is logged as slow
	STORAGE_OPERATION_WARN_THRESHOLD = time.Millisecond * 100

	// For Operation Monitor
	// OPMON_DUMP_INTERVAL is the interval to print opmon infos to output
	OPMON_DUMP_INTERVAL = 0

	// For Blockchain
	// CHAIN_RPC_TIMEOUT is the timeout of a single blockchain RPC call
	CHAIN_RPC_TIMEOUT = time.Second * 10
	// CHAIN_CONFIRMATION_BLOCKS is the number of blocks after which a pending transaction is confirmed
	CHAIN_CONFIRMATION_BLOCKS = 3

	// For Self Improvement
	// IMPROVE_ANALYSIS_WINDOW is the number of recent metrics analyzed per cycle
	IMPROVE_ANALYSIS_WINDOW = 100
	// IMPROVE_TREND_WINDOW is the number of recent values kept per system trend
	IMPROVE_TREND_WINDOW = 100
	// BOTTLENECK_THRESHOLD is the value/target ratio under which a system is a bottleneck
	BOTTLENECK_THRESHOLD = 0.7
)

// Debug Options
const (
	// DEBUG_PACKETS prints packet send/recv debug logs
	DEBUG_PACKETS = false
	// DEBUG_SAVE_LOAD prints save & load debug logs
	DEBUG_SAVE_LOAD = false
	// DEBUG_CLIENTS prints clients operation debug logs
	DEBUG_CLIENTS = false
	// DEBUG_FRAMES prints per-frame timing logs
	DEBUG_FRAMES = false
	// DEBUG_AI prints AI decisions
	DEBUG_AI = false
)

// System level configurations
const (
	// DEBUG_MODE = true turns on debug mode
	DEBUG_MODE = false
)
