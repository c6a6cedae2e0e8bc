package network

import (
	"crypto/tls"
	"net"
	"path/filepath"
	"strconv"

	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/metrics"
	"github.com/netgodgame/netgod/engine/netutil"
	"github.com/pkg/errors"
	"github.com/xtaci/kcp-go"
	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"
)

// Transports
const (
	TransportTCP       = "tcp"
	TransportKCP       = "kcp"
	TransportWebSocket = "ws"
)

// StartServer listens on the TCP port, and on the KCP port if it is set
func (s *System) StartServer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrServerRunning
	}

	addr := net.JoinHostPort(s.settings.Ip, strconv.Itoa(s.settings.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	gwlog.Infof("%s: listening on TCP %s ...", s, ln.Addr())
	listeners := []net.Listener{ln}

	if s.settings.KCPPort > 0 {
		kcpAddr := net.JoinHostPort(s.settings.Ip, strconv.Itoa(s.settings.KCPPort))
		kcpListener, err := kcp.ListenWithOptions(kcpAddr, nil, 10, 3)
		if err != nil {
			ln.Close()
			return errors.Wrapf(err, "listen kcp %s", kcpAddr)
		}
		gwlog.Infof("%s: listening on KCP %s ...", s, kcpAddr)
		listeners = append(listeners, kcpListener)
	}

	g := new(errgroup.Group)
	for _, l := range listeners {
		l := l
		g.Go(func() error {
			return netutil.ServeListener(l, s)
		})
	}
	s.running = true
	s.listeners = listeners
	s.serveGroup = g
	return nil
}

// StopServer closes the listeners, disconnects all clients and waits for their goroutines
func (s *System) StopServer() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	listeners, g := s.listeners, s.serveGroup
	s.listeners, s.serveGroup = nil, nil
	clients := make([]*clientProxy, 0, len(s.clients))
	for _, cp := range s.clients {
		clients = append(clients, cp)
	}
	s.mu.Unlock()

	for _, ln := range listeners {
		ln.Close()
	}
	if err := g.Wait(); err != nil {
		gwlog.Errorf("%s: listener failed: %v", s, err)
	}
	for _, cp := range clients {
		cp.close()
	}
	s.connWG.Wait()
	gwlog.Infof("%s: server stopped, %d clients disconnected", s, len(clients))
}

// Addr returns the TCP address the server listens on, or nil if it is not running
func (s *System) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners) == 0 {
		return nil
	}
	return s.listeners[0].Addr()
}

// ServeTCPConnection serves TCP and KCP connections accepted by the listeners
func (s *System) ServeTCPConnection(conn net.Conn) {
	switch c := conn.(type) {
	case *net.TCPConn:
		c.SetNoDelay(consts.CLIENT_PROXY_SET_TCP_NO_DELAY)
		s.handleClientConnection(conn, TransportTCP)
	case *kcp.UDPSession:
		// turbo mode
		c.SetStreamMode(true)
		c.SetWriteDelay(true)
		c.SetNoDelay(1, 10, 2, 1)
		s.handleClientConnection(conn, TransportKCP)
	default:
		s.handleClientConnection(conn, TransportTCP)
	}
}

// ServeWebSocket serves a websocket client until it disconnects
func (s *System) ServeWebSocket(ws *websocket.Conn) {
	ws.PayloadType = websocket.BinaryFrame
	s.handleClientConnection(ws, TransportWebSocket)
}

func (s *System) setupTLSConfig() error {
	cfgdir := config.GetConfigDir()
	cert, err := tls.LoadX509KeyPair(resolvePath(cfgdir, s.settings.TLSCertificate), resolvePath(cfgdir, s.settings.TLSKey))
	if err != nil {
		return errors.Wrap(err, "load TLS key & certificate failed")
	}
	s.tlsConfig = &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	return nil
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func (s *System) handleClientConnection(conn net.Conn, transport string) {
	s.mu.Lock()
	if !s.running || len(s.clients) >= s.settings.MaxConnections {
		running, limit := s.running, s.settings.MaxConnections
		s.mu.Unlock()
		if running {
			gwlog.Warnf("%s: max connections %d reached, refusing %s", s, limit, conn.RemoteAddr())
		}
		metrics.IncConnection(transport, false)
		conn.Close()
		return
	}

	if s.tlsConfig != nil && transport != TransportWebSocket {
		conn = tls.Server(conn, s.tlsConfig)
	}
	cp := newClientProxy(conn, transport, s.settings.Compression, s.settings.PacketRate)
	s.clients[cp.clientid] = cp
	s.stats.TotalConnections++
	numClients := len(s.clients)
	s.connWG.Add(2)
	s.mu.Unlock()

	if consts.DEBUG_CLIENTS {
		gwlog.Debugf("%s: client %s connected", s, cp)
	}
	metrics.IncConnection(transport, true)
	metrics.SetConnections(numClients)
	s.postClientEvent(EventConnect, cp.clientid)

	go func() {
		defer s.connWG.Done()
		cp.writeLoop()
	}()
	s.readLoop(cp)
	cp.close()

	s.mu.Lock()
	delete(s.clients, cp.clientid)
	numClients = len(s.clients)
	s.mu.Unlock()

	if consts.DEBUG_CLIENTS {
		gwlog.Debugf("%s: client %s disconnected", s, cp)
	}
	metrics.SetConnections(numClients)
	s.postClientEvent(EventDisconnect, cp.clientid)
	s.connWG.Done()
}

// readLoop receives packets until a read error. Invalid packets are dropped and the client is kept.
func (s *System) readLoop(cp *clientProxy) {
	for {
		payload, err := cp.RecvPacket()
		if err != nil {
			if errors.Cause(err) == netutil.ErrInvalidPayload {
				gwlog.Warnf("%s: %v", cp, err)
				s.dropPacket("invalid")
				continue
			}
			if !netutil.IsConnectionError(err) {
				gwlog.Warnf("%s: read failed: %v", cp, err)
			}
			return
		}

		metrics.AddPacket("in", len(payload))
		s.mu.Lock()
		s.stats.BytesReceived += uint64(len(payload))
		s.mu.Unlock()

		if !cp.limiter.Allow() {
			s.dropPacket("rate_limit")
			continue
		}

		var msg Message
		if err := s.packer.UnpackMsg(payload, &msg); err != nil || msg.Type() == "" {
			gwlog.Warnf("%s: invalid message dropped: %v", cp, err)
			s.dropPacket("invalid")
			continue
		}

		select {
		case s.inbound <- inboundPacket{clientid: cp.clientid, msg: msg}:
		default:
			s.dropPacket("inbound_full")
		}
	}
}

func (s *System) dropPacket(reason string) {
	s.mu.Lock()
	s.stats.PacketsDropped++
	s.mu.Unlock()
	metrics.IncDropped(reason)
}
