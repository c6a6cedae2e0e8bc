package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/netutil"
	"github.com/netgodgame/netgod/engine/network"
	"github.com/xtaci/kcp-go"
	"golang.org/x/net/websocket"
)

// ClientBot is a simulated client. It pings the server and chats at random.
type ClientBot struct {
	sync.Mutex

	id     int
	conn   *netutil.PacketConnection
	packer netutil.MsgPacker

	pingSent time.Time
	lastRTT  time.Duration
	received map[string]int
	err      error
}

func newClientBot(id int) *ClientBot {
	return &ClientBot{
		id:       id,
		packer:   netutil.JSONMsgPacker{},
		received: map[string]int{},
	}
}

func (bot *ClientBot) String() string {
	return fmt.Sprintf("ClientBot<%d>", bot.id)
}

func (bot *ClientBot) summary() string {
	bot.Lock()
	defer bot.Unlock()
	if bot.err != nil {
		return fmt.Sprintf("%s failed: %v", bot, bot.err)
	}
	return fmt.Sprintf("%s rtt=%s received=%v", bot, bot.lastRTT, bot.received)
}

func dial(transport, addr string) (net.Conn, error) {
	switch transport {
	case network.TransportKCP:
		sess, err := kcp.DialWithOptions(addr, nil, 10, 3)
		if err != nil {
			return nil, err
		}
		sess.SetStreamMode(true)
		sess.SetWriteDelay(true)
		sess.SetNoDelay(1, 10, 2, 1)
		return sess, nil
	case network.TransportWebSocket:
		if !strings.HasPrefix(addr, "ws") {
			addr = "ws://" + addr + "/ws"
		}
		ws, err := websocket.Dial(addr, "", "http://localhost/")
		if err != nil {
			return nil, err
		}
		ws.PayloadType = websocket.BinaryFrame
		return ws, nil
	default:
		return net.Dial("tcp", addr)
	}
}

func (bot *ClientBot) run(ctx context.Context) {
	var netconn net.Conn
	for { // retry until connected
		var err error
		netconn, err = dial(args.transport, args.addr)
		if err == nil {
			break
		}
		gwlog.Errorf("%s: connect failed: %v", bot, err)
		select {
		case <-ctx.Done():
			bot.err = err
			return
		case <-time.After(time.Second * time.Duration(1+rand.Intn(5))):
		}
	}
	gwlog.Infof("%s: connected to %s", bot, netconn.RemoteAddr())
	bot.conn = netutil.NewPacketConnection(netconn, args.compress)
	defer bot.conn.Close()

	go func() {
		<-ctx.Done()
		bot.conn.Close()
	}()

	recvDone := make(chan error, 1)
	go func() {
		recvDone <- bot.recvLoop()
	}()

	ticker := time.NewTicker(args.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-recvDone
			return
		case err := <-recvDone:
			if !netutil.IsConnectionError(err) {
				bot.err = err
			}
			return
		case <-ticker.C:
			if err := bot.doSomething(); err != nil {
				bot.err = err
				return
			}
		}
	}
}

func (bot *ClientBot) doSomething() error {
	if rand.Intn(4) == 0 {
		msg := network.NewMessage("chat_message")
		msg["chat_data"] = map[string]interface{}{"text": fmt.Sprintf("hello from bot %d", bot.id)}
		return bot.send(msg)
	}
	msg := network.NewMessage("ping")
	bot.Lock()
	if bot.lastRTT > 0 {
		msg["ping_time"] = bot.lastRTT.Seconds()
	}
	bot.pingSent = time.Now()
	bot.Unlock()
	return bot.send(msg)
}

func (bot *ClientBot) send(msg network.Message) error {
	payload, err := bot.packer.PackMsg(msg, nil)
	if err != nil {
		return err
	}
	return bot.conn.SendPacket(payload)
}

func (bot *ClientBot) recvLoop() error {
	for {
		payload, err := bot.conn.RecvPacket()
		if err != nil {
			return err
		}
		var msg network.Message
		if err := bot.packer.UnpackMsg(payload, &msg); err != nil {
			gwlog.Warnf("%s: invalid message: %v", bot, err)
			continue
		}
		bot.handleMessage(msg)
	}
}

func (bot *ClientBot) handleMessage(msg network.Message) {
	typ := msg.Type()
	bot.Lock()
	bot.received[typ]++
	if typ == "pong" {
		bot.lastRTT = time.Since(bot.pingSent)
	}
	bot.Unlock()
	if !args.quiet {
		gwlog.Debugf("%s: received %s", bot, typ)
	}
}
