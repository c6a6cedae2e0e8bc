package network

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/metrics"
	"github.com/netgodgame/netgod/engine/netutil"
	"golang.org/x/time/rate"
)

// ConnectionInfo describes a connected client
type ConnectionInfo struct {
	ClientID      common.ClientID `json:"client_id"`
	Address       string          `json:"address"`
	Transport     string          `json:"transport"`
	ConnectedTime time.Time       `json:"connected_time"`
	LastPing      time.Time       `json:"last_ping"`
	Ping          time.Duration   `json:"ping"`
	PacketLoss    float64         `json:"packet_loss"`
	BytesSent     uint64          `json:"bytes_sent"`
	BytesReceived uint64          `json:"bytes_received"`
}

// clientProxy is a client connection served by a reader and a writer goroutine
type clientProxy struct {
	*netutil.PacketConnection
	clientid  common.ClientID
	transport string
	limiter   *rate.Limiter
	sendQueue chan []byte
	closeOnce sync.Once
	closed    chan struct{}

	// guarded by System.mu
	connectedTime time.Time
	lastPing      time.Time
	ping          time.Duration
	dropped       uint64
	sent          uint64
}

func newClientProxy(conn net.Conn, transport string, compress bool, packetRate int) *clientProxy {
	now := time.Now()
	return &clientProxy{
		PacketConnection: netutil.NewPacketConnection(conn, compress),
		clientid:         common.GenClientID(),
		transport:        transport,
		limiter:          rate.NewLimiter(rate.Limit(packetRate), packetRate),
		sendQueue:        make(chan []byte, consts.CLIENT_SEND_QUEUE_SIZE),
		closed:           make(chan struct{}),
		connectedTime:    now,
		lastPing:         now,
	}
}

func (cp *clientProxy) String() string {
	return fmt.Sprintf("ClientProxy<%s@%s>", cp.clientid, cp.RemoteAddr())
}

// enqueue adds an encoded payload to the send queue, returning false if the queue is full or closed
func (cp *clientProxy) enqueue(payload []byte) bool {
	select {
	case <-cp.closed:
		return false
	default:
	}
	select {
	case cp.sendQueue <- payload:
		return true
	default:
		return false
	}
}

func (cp *clientProxy) writeLoop() {
	for {
		select {
		case payload := <-cp.sendQueue:
			if err := cp.SendPacket(payload); err != nil {
				if !netutil.IsConnectionError(err) {
					gwlog.Warnf("%s send failed: %v", cp, err)
				}
				cp.close()
				return
			}
			metrics.AddPacket("out", len(payload))
		case <-cp.closed:
			return
		}
	}
}

// close closes the connection once; the reader goroutine then exits and unregisters the client
func (cp *clientProxy) close() {
	cp.closeOnce.Do(func() {
		close(cp.closed)
		cp.PacketConnection.Close()
	})
}
