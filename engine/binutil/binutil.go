// Package binutil holds the process setup shared by the netgod binaries
package binutil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// Handlers are the engine hooks served by the admin HTTP server
type Handlers struct {
	// Stats returns the JSON body of /stats
	Stats func() interface{}
	// WebSocket serves game clients on /ws
	WebSocket func(ws *websocket.Conn)
}

// NewRouter creates the admin router: pprof, prometheus metrics, engine stats and websockets
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Mount("/debug", middleware.Profiler())
	r.Handle("/metrics", promhttp.Handler())
	if h.Stats != nil {
		r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(h.Stats()); err != nil {
				gwlog.Errorf("encode stats failed: %v", err)
			}
		})
	}
	if h.WebSocket != nil {
		r.Handle("/ws", websocket.Handler(h.WebSocket))
	}
	return r
}

// SetupHTTPServer starts the admin HTTP server. It returns nil if port is 0.
func SetupHTTPServer(ip string, port int, h Handlers) *http.Server {
	if port == 0 {
		gwlog.Infof("http server not enabled")
		return nil
	}

	httpHost := fmt.Sprintf("%s:%d", ip, port)
	gwlog.Infof("http server listening on %s", httpHost)
	gwlog.Infof("pprof http://%s/debug/pprof/ ... available commands: ", httpHost)
	gwlog.Infof("    go tool pprof http://%s/debug/pprof/heap", httpHost)
	gwlog.Infof("    go tool pprof http://%s/debug/pprof/profile", httpHost)

	srv := &http.Server{Addr: httpHost, Handler: NewRouter(h)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			gwlog.Errorf("http server failed: %v", err)
		}
	}()
	return srv
}

// SetupGWLog sets the log source, level and outputs
func SetupGWLog(component string, logLevel string, logFile string, logStderr bool) {
	gwlog.SetSource(component)
	gwlog.Infof("Set log level to %s", logLevel)
	gwlog.SetLevel(gwlog.ParseLevel(logLevel))

	outputs := make([]string, 0, 2)
	if logFile != "" {
		outputs = append(outputs, logFile)
	}
	if logStderr || len(outputs) == 0 {
		outputs = append(outputs, "stderr")
	}
	gwlog.SetOutput(outputs)
}
