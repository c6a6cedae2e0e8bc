// Package network serves game clients over TCP, KCP and websocket.
//
// Every connection has a reader and a writer goroutine. Inbound messages are queued and
// handled on the engine loop by Update, so packet handlers never race with the other systems.
// Blockchain transactions requested by clients are submitted to a chain.Ledger on the
// async worker group "chain".
package network

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/netgodgame/netgod/engine/async"
	"github.com/netgodgame/netgod/engine/chain"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/improve"
	"github.com/netgodgame/netgod/engine/kvdb"
	"github.com/netgodgame/netgod/engine/metrics"
	"github.com/netgodgame/netgod/engine/netutil"
	"github.com/netgodgame/netgod/engine/post"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Settings of the networking system
type Settings = config.NetworkConfig

// Client events
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

const (
	// AsyncGroup is the async worker group running ledger operations
	AsyncGroup = "chain"

	minLatencySamples = 10
	highLatency       = 100 * time.Millisecond
	lowLatency        = 20 * time.Millisecond
	targetLatency     = 50 * time.Millisecond
	packetRateStep    = 5
	minPacketRate     = 20
	maxPacketRate     = 120
)

var (
	// ErrServerRunning is returned by StartServer if the server is already started
	ErrServerRunning = errors.New("server already running")
)

// PacketHandler handles one message type on the engine loop
type PacketHandler func(clientID common.ClientID, msg Message)

// Stats of the networking system
type Stats struct {
	ActiveConnections int           `json:"active_connections"`
	TotalConnections  uint64        `json:"total_connections"`
	PacketsSent       uint64        `json:"packets_sent"`
	PacketsReceived   uint64        `json:"packets_received"`
	PacketsDropped    uint64        `json:"packets_dropped"`
	BytesSent         uint64        `json:"bytes_sent"`
	BytesReceived     uint64        `json:"bytes_received"`
	AvgLatency        time.Duration `json:"avg_latency"`
	BlockchainSyncs   uint64        `json:"blockchain_syncs"`
}

type inboundPacket struct {
	clientid common.ClientID
	msg      Message
}

// System is the networking system
type System struct {
	mu        sync.Mutex
	settings  Settings
	packer    netutil.MsgPacker
	tlsConfig *tls.Config
	ledger    chain.Ledger

	running    bool
	listeners  []net.Listener
	serveGroup *errgroup.Group
	connWG     sync.WaitGroup
	clients    map[common.ClientID]*clientProxy
	stats      Stats
	latencies  []time.Duration

	handlers  map[string]PacketHandler
	callbacks map[string][]func(common.ClientID)
	inbound   chan inboundPacket

	// engine loop only
	syncing    bool
	sinceCheck time.Duration
	sinceSync  time.Duration
	chainCfg   config.BlockchainConfig
}

// NewSystem creates the networking system; the ledger is connected by Initialize
func NewSystem(cfg *config.NetworkConfig, chainCfg *config.BlockchainConfig) *System {
	s := &System{
		settings:  *cfg,
		packer:    netutil.MSG_PACKER,
		clients:   map[common.ClientID]*clientProxy{},
		handlers:  map[string]PacketHandler{},
		callbacks: map[string][]func(common.ClientID){},
		inbound:   make(chan inboundPacket, consts.NETWORK_PACKET_QUEUE_SIZE),
		chainCfg:  *chainCfg,
	}
	s.handlers["ping"] = s.handlePing
	s.handlers["player_update"] = s.handlePlayerUpdate
	s.handlers["chat_message"] = s.handleChatMessage
	s.handlers["quest_progress"] = s.handleQuestProgress
	s.handlers["transaction_request"] = s.handleTransactionRequest
	return s
}

func (s *System) String() string {
	return "NetworkSystem"
}

// Initialize selects the msg packer, loads TLS and connects the ledger.
// A ledger that can not be reached only disables transactions.
func (s *System) Initialize() error {
	packer, err := netutil.NewMsgPacker(s.settings.MsgPacker)
	if err != nil {
		return err
	}
	s.packer = packer

	if s.settings.Encryption {
		if err := s.setupTLSConfig(); err != nil {
			return err
		}
	}

	s.connectLedger(&s.chainCfg)
	metrics.SetPacketRate(s.settings.PacketRate)
	gwlog.Infof("%s initialized: packer %s, compression %v, encryption %v, packet rate %d",
		s, s.settings.MsgPacker, s.settings.Compression, s.settings.Encryption, s.settings.PacketRate)
	return nil
}

// Shutdown stops the server and closes the ledger
func (s *System) Shutdown() {
	s.StopServer()
	s.mu.Lock()
	ledger := s.ledger
	s.ledger = nil
	s.mu.Unlock()
	if ledger != nil {
		ledger.Close()
	}
	gwlog.Infof("%s shutdown", s)
}

func (s *System) connectLedger(cfg *config.BlockchainConfig) {
	ledger := chain.NewLedger(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), consts.CHAIN_RPC_TIMEOUT)
	defer cancel()
	if err := ledger.Connect(ctx); err != nil {
		gwlog.Warnf("%s: blockchain connection failed: %v", s, err)
	} else {
		gwlog.Infof("%s: connected to blockchain %s", s, cfg.RPCEndpoint)
	}

	s.mu.Lock()
	old := s.ledger
	s.ledger = ledger
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// SetBlockchainConfig replaces the ledger and reconnects
func (s *System) SetBlockchainConfig(cfg *config.BlockchainConfig) {
	s.chainCfg = *cfg
	s.connectLedger(cfg)
}

// Ledger returns the current ledger, nil before Initialize
func (s *System) Ledger() chain.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger
}

// Settings returns a copy of the current settings
func (s *System) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// RegisterHandler adds or overrides the handler of a message type
func (s *System) RegisterHandler(typ string, handler PacketHandler) {
	s.mu.Lock()
	s.handlers[typ] = handler
	s.mu.Unlock()
}

// RegisterClientCallback registers a callback of the connect or disconnect event.
// Callbacks are called on the engine loop.
func (s *System) RegisterClientCallback(event string, cb func(clientID common.ClientID)) {
	s.mu.Lock()
	s.callbacks[event] = append(s.callbacks[event], cb)
	s.mu.Unlock()
}

func (s *System) postClientEvent(event string, clientID common.ClientID) {
	s.mu.Lock()
	cbs := s.callbacks[event]
	s.mu.Unlock()
	if len(cbs) == 0 {
		return
	}
	post.Post(func() {
		for _, cb := range cbs {
			cb(clientID)
		}
	})
}

// Update handles queued messages and runs the periodic connection and ledger checks
func (s *System) Update(dt time.Duration) {
	s.processInbound()

	s.sinceCheck += dt
	if s.sinceCheck >= consts.CONNECTION_CHECK_INTERVAL {
		s.sinceCheck = 0
		s.checkConnections()
		if s.settings.Optimization {
			s.adaptPacketRate()
		}
	}

	s.sinceSync += dt
	if s.sinceSync >= s.settings.BlockchainSyncInterval {
		s.sinceSync = 0
		s.syncLedger()
	}
}

func (s *System) processInbound() {
	for i := 0; i < consts.MAX_PACKETS_PER_UPDATE; i++ {
		select {
		case pkt := <-s.inbound:
			s.handlePacket(pkt)
		default:
			return
		}
	}
}

func (s *System) handlePacket(pkt inboundPacket) {
	typ := pkt.msg.Type()
	s.mu.Lock()
	s.stats.PacketsReceived++
	handler := s.handlers[typ]
	s.mu.Unlock()

	if consts.DEBUG_PACKETS {
		gwlog.Debugf("%s: recv %s from %s", s, typ, pkt.clientid)
	}
	if handler == nil {
		gwlog.Warnf("%s: unknown packet type %q from %s", s, typ, pkt.clientid)
		return
	}
	handler(pkt.clientid, pkt.msg)
}

func (s *System) checkConnections() {
	now := time.Now()
	var expired []*clientProxy
	s.mu.Lock()
	for _, cp := range s.clients {
		if now.Sub(cp.lastPing) > s.settings.ConnectionTimeout {
			expired = append(expired, cp)
		}
	}
	s.mu.Unlock()

	for _, cp := range expired {
		gwlog.Infof("%s: %s timed out", s, cp)
		cp.close()
	}
}

func (s *System) adaptPacketRate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) < minLatencySamples {
		return
	}

	avg := meanDuration(tailDurations(s.latencies, consts.ADAPT_WINDOW))
	pr := s.settings.PacketRate
	if avg > highLatency {
		pr = max(minPacketRate, pr-packetRateStep)
	} else if avg < lowLatency {
		pr = min(maxPacketRate, pr+packetRateStep)
	}
	if pr != s.settings.PacketRate {
		gwlog.Infof("%s: average latency %s, packet rate %d -> %d", s, avg, s.settings.PacketRate, pr)
		s.setPacketRateLocked(pr)
	}
}

func (s *System) setPacketRateLocked(pr int) {
	s.settings.PacketRate = pr
	for _, cp := range s.clients {
		cp.limiter.SetLimit(rate.Limit(pr))
		cp.limiter.SetBurst(pr)
	}
	metrics.SetPacketRate(pr)
}

func (s *System) recordLatencyLocked(d time.Duration) {
	s.latencies = append(s.latencies, d)
	if len(s.latencies) > consts.LATENCY_HISTORY {
		s.latencies = s.latencies[len(s.latencies)-consts.LATENCY_HISTORY:]
	}
	s.stats.AvgLatency = meanDuration(s.latencies)
}

func (s *System) syncLedger() {
	ledger := s.Ledger()
	if s.syncing || ledger == nil || !ledger.Connected() {
		return
	}

	s.syncing = true
	async.AppendAsyncJob(AsyncGroup, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), consts.CHAIN_RPC_TIMEOUT)
		defer cancel()
		res, err := ledger.Sync(ctx)
		return res, err
	}, func(res interface{}, err error) {
		s.syncing = false
		metrics.IncChainSync(err == nil)
		if err != nil {
			gwlog.Warnf("%s: blockchain sync failed: %v", s, err)
			return
		}

		s.mu.Lock()
		s.stats.BlockchainSyncs++
		s.mu.Unlock()
		for _, tx := range res.(chain.SyncResult).Confirmed {
			s.onTransactionConfirmed(tx)
		}
	})
}

func (s *System) onTransactionConfirmed(tx *chain.Transaction) {
	metrics.IncTransaction(string(tx.Status))
	s.persistTransaction(tx)

	msg := NewMessage("transaction_status")
	msg["transaction_id"] = tx.ID
	msg["status"] = string(tx.Status)
	msg["block"] = tx.ConfirmedBlock
	msg["timestamp"] = timestamp(time.Now())
	s.SendPacket(tx.ClientID, msg)
}

func (s *System) persistTransaction(tx *chain.Transaction) {
	if !kvdb.Initialized() {
		return
	}
	data, err := json.Marshal(tx)
	if err != nil {
		gwlog.Errorf("%s: marshal transaction %s failed: %v", s, tx.ID, err)
		return
	}
	kvdb.Put("tx/"+tx.ID, string(data), func(err error) {
		if err != nil {
			gwlog.Errorf("%s: save transaction %s failed: %v", s, tx.ID, err)
		}
	})
}

// SendPacket packs msg and queues it to the client. Unknown clients are ignored.
func (s *System) SendPacket(clientID common.ClientID, msg Message) {
	s.mu.Lock()
	cp := s.clients[clientID]
	s.mu.Unlock()
	if cp == nil {
		return
	}

	payload, err := s.packer.PackMsg(msg, nil)
	if err != nil {
		gwlog.Errorf("%s: pack %s failed: %v", s, msg.Type(), err)
		return
	}

	s.mu.Lock()
	ok := cp.enqueue(payload)
	if ok {
		cp.sent++
		s.stats.PacketsSent++
		s.stats.BytesSent += uint64(len(payload))
	} else {
		cp.dropped++
		s.stats.PacketsDropped++
	}
	s.mu.Unlock()
	if !ok {
		metrics.IncDropped("send_queue_full")
	}
}

// Broadcast sends msg to all connected clients
func (s *System) Broadcast(msg Message) {
	for _, clientID := range s.ClientIDs() {
		s.SendPacket(clientID, msg)
	}
}

// ClientIDs returns the ids of connected clients
func (s *System) ClientIDs() []common.ClientID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]common.ClientID, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns a snapshot of the networking stats
func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.ActiveConnections = len(s.clients)
	return st
}

// ConnectionInfo returns the info of a connected client
func (s *System) ConnectionInfo(clientID common.ClientID) (ConnectionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.clients[clientID]
	if cp == nil {
		return ConnectionInfo{}, false
	}

	info := ConnectionInfo{
		ClientID:      cp.clientid,
		Address:       cp.RemoteAddr().String(),
		Transport:     cp.transport,
		ConnectedTime: cp.connectedTime,
		LastPing:      cp.lastPing,
		Ping:          cp.ping,
		BytesSent:     cp.BytesSent(),
		BytesReceived: cp.BytesReceived(),
	}
	if total := cp.sent + cp.dropped; total > 0 {
		info.PacketLoss = float64(cp.dropped) / float64(total)
	}
	return info, true
}

// PerformanceRating combines the latency rating (target 50ms) and the delivery ratio
func (s *System) PerformanceRating() float64 {
	st := s.Stats()
	if st.PacketsSent == 0 {
		return 1
	}
	latencyRating := clamp01(1 - float64(st.AvgLatency)/float64(targetLatency))
	delivery := float64(st.PacketsReceived) / float64(max(uint64(1), st.PacketsSent))
	return latencyRating*0.7 + min(1, delivery)*0.3
}

// ApplyOptimization lowers the packet rate by packet_rate_step, down to min_packet_rate
func (s *System) ApplyOptimization(strategy *improve.Strategy, severity improve.Severity) bool {
	step := int(strategy.Param("packet_rate_step", packetRateStep))
	if severity == improve.SeverityHigh {
		step *= 2
	}
	floor := int(strategy.Param("min_packet_rate", minPacketRate))

	s.mu.Lock()
	defer s.mu.Unlock()
	pr := max(floor, s.settings.PacketRate-step)
	if pr == s.settings.PacketRate {
		return false
	}
	gwlog.Infof("%s: %s packet rate %d -> %d", s, strategy.Name, s.settings.PacketRate, pr)
	s.setPacketRateLocked(pr)
	return true
}

func timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

func tailDurations(ds []time.Duration, n int) []time.Duration {
	if len(ds) > n {
		return ds[len(ds)-n:]
	}
	return ds
}

func meanDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum / time.Duration(len(ds))
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

func parseTxRequest(data Message) (chain.TxRequest, error) {
	req := chain.TxRequest{
		From:     data.String("from"),
		To:       data.String("to"),
		Contract: data.String("contract"),
		Method:   data.String("method"),
		Data:     data.String("data"),
	}
	if amount := data.String("amount"); amount != "" {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return req, errors.Wrapf(err, "invalid amount %q", amount)
		}
		req.Amount = d
	}
	return req, nil
}
