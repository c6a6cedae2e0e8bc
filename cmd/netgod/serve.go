package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/netgodgame/netgod"
	"github.com/netgodgame/netgod/engine/binutil"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/crontab"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/kvdb"
	"github.com/netgodgame/netgod/engine/post"
	"github.com/netgodgame/netgod/engine/storage"
	"github.com/netgodgame/netgod/engine/sysmon"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveArgs struct {
	daemon   bool
	logLevel string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server until SIGINT or SIGTERM",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVarP(&serveArgs.daemon, "daemon", "d", false, "run in daemon mode")
	serveCmd.Flags().StringVar(&serveArgs.logLevel, "log", "", "log level, overrides the config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveArgs.daemon {
		daemoncontext := binutil.Daemonize()
		defer daemoncontext.Release()
	}

	cfg := config.Get()
	logLevel := serveArgs.logLevel
	if logLevel == "" {
		logLevel = cfg.Engine.LogLevel
	}
	binutil.SetupGWLog("netgod", logLevel, cfg.Engine.LogFile, cfg.Engine.LogStderr)
	defer gwlog.Sync()

	if cfg.Engine.GoMaxProcs > 0 {
		gwlog.Infof("SET GOMAXPROCS = %d", cfg.Engine.GoMaxProcs)
		runtime.GOMAXPROCS(cfg.Engine.GoMaxProcs)
	}
	if limit, err := binutil.RaiseFileLimit(); err != nil {
		gwlog.Warnf("raise file limit failed: %v", err)
	} else if limit > 0 {
		gwlog.Infof("File limit raised to %d", limit)
	}

	if err := kvdb.Initialize(&cfg.KVDB); err != nil {
		return errors.Wrap(err, "kvdb")
	}
	defer kvdb.WaitTerminated()
	defer kvdb.Close()
	if err := storage.Initialize(&cfg.Storage); err != nil {
		return errors.Wrap(err, "storage")
	}
	defer storage.Shutdown()

	srv, err := netgod.New(cfg)
	if err != nil {
		return err
	}
	if err := srv.Engine.Start(); err != nil {
		return err
	}
	defer srv.Engine.Stop()
	if err := srv.Network.StartServer(); err != nil {
		return err
	}

	httpServer := binutil.SetupHTTPServer(cfg.Engine.HTTPIp, cfg.Engine.HTTPPort, binutil.Handlers{
		Stats:     func() interface{} { return srv.Stats() },
		WebSocket: srv.Network.ServeWebSocket,
	})

	if exportFile := cfg.Improvement.ExportFile; exportFile != "" {
		post.Post(func() {
			crontab.Initialize()
			crontab.Hourly(0, func() {
				if err := srv.Improvement.ExportPerformanceData(exportFile); err != nil {
					gwlog.Errorf("export performance data: %v", err)
				}
			})
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return config.Watch(ctx, srv.ApplyConfig)
	})
	if monitor, err := sysmon.New(srv.Improvement); err != nil {
		gwlog.Warnf("process monitor disabled: %v", err)
	} else {
		g.Go(func() error {
			monitor.Run(ctx, cfg.Engine.SysmonInterval)
			return nil
		})
	}

	<-ctx.Done()
	gwlog.Infof("netgod is terminating ...")
	stop()
	if err := g.Wait(); err != nil {
		gwlog.Errorf("%v", err)
	}
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			gwlog.Warnf("http server shutdown: %v", err)
		}
		cancel()
	}
	post.Post(crontab.Shutdown)
	gwlog.Infof("netgod terminated gracefully")
	return nil
}
