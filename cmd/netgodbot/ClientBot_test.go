package main

import (
	"context"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod"
	"github.com/netgodgame/netgod/engine/chain"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/network"
)

func TestClientBot(t *testing.T) {
	cfg := config.Default()
	cfg.Network.Ip = "127.0.0.1"
	cfg.Network.Port = 0
	cfg.Blockchain.RPCEndpoint = chain.MemoryEndpoint
	srv, err := netgod.New(cfg)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, srv.Engine.Start())
	defer srv.Engine.Stop()
	assert.Equal(t, nil, srv.Network.StartServer())

	args.addr = srv.Network.Addr().String()
	args.transport = network.TransportTCP
	args.interval = 20 * time.Millisecond
	args.quiet = true

	bot := newClientBot(1)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	bot.run(ctx)

	assert.Equal(t, nil, bot.err)
	assert.T(t, bot.received["pong"] > 0, "bot should receive pongs")
	assert.T(t, srv.Network.Stats().TotalConnections == 1, "bot should connect once")
}
