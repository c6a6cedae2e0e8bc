package netutil

import (
	"io"
	"net"
	"time"

	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/pkg/errors"
)

const (
	_RESTART_TCP_SERVER_INTERVAL = 3 * time.Second
)

// TCPServerDelegate is the implementations that a TCP server should provide
type TCPServerDelegate interface {
	ServeTCPConnection(net.Conn)
}

// ServeTCPForever serves on specified address as TCP server, for ever ...
func ServeTCPForever(listenAddr string, delegate TCPServerDelegate) {
	for {
		err := serveTCPForeverOnce(listenAddr, delegate)
		gwlog.Errorf("server@%s failed with error: %v, will restart after %s", listenAddr, err, _RESTART_TCP_SERVER_INTERVAL)
		time.Sleep(_RESTART_TCP_SERVER_INTERVAL)
	}
}

func serveTCPForeverOnce(listenAddr string, delegate TCPServerDelegate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			gwlog.TraceError("serveTCPImpl: paniced with error %s", r)
			err = errors.Errorf("panic: %v", r)
		}
	}()

	return ServeTCP(listenAddr, delegate)
}

// ServeTCP serves on specified address as TCP server
func ServeTCP(listenAddr string, delegate TCPServerDelegate) error {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", listenAddr)
	}
	gwlog.Infof("Listening on TCP: %s ...", listenAddr)
	defer ln.Close()
	return ServeListener(ln, delegate)
}

// ServeListener accepts connections from ln until it is closed.
// Closing the listener (TCP or KCP) makes ServeListener return nil.
func ServeListener(ln net.Listener, delegate TCPServerDelegate) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if IsTimeoutError(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}

		gwlog.Infof("Connection from: %s", conn.RemoteAddr())
		go delegate.ServeTCPConnection(conn)
	}
}
