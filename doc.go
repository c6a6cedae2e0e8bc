/*
Package netgod builds a headless game server engine from netgod.ini.

The engine runs one engine loop goroutine which updates every registered system once per frame:
rendering (a headless frame planner), physics, AI behavior, procedural content generation,
networking and self-improvement. Blocking work (client connections, storage, KVDB, blockchain RPC)
runs on worker goroutines and hands results back to the engine loop with the post queue.

A typical server:

	cfg := config.Get()
	srv, err := netgod.New(cfg)
	if err != nil {
		gwlog.Fatal(err)
	}
	srv.Engine.Start()
	srv.Network.StartServer()

The netgod command (cmd/netgod) does the same and adds the admin HTTP server, config hot reload
and process monitoring.
*/
package netgod
