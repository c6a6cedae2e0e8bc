// Command netgodbot runs client bots against a netgod server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/network"
	"github.com/spf13/cobra"
)

var args struct {
	addr      string
	transport string
	numBots   int
	compress  bool
	interval  time.Duration
	duration  time.Duration
	quiet     bool
}

var rootCmd = &cobra.Command{
	Use:   "netgodbot",
	Short: "Run client bots which ping and chat with a netgod server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		switch args.transport {
		case network.TransportTCP, network.TransportKCP, network.TransportWebSocket:
		default:
			return fmt.Errorf("unknown transport %q", args.transport)
		}
		if !args.quiet {
			gwlog.SetLevel(gwlog.DebugLevel)
		} else {
			gwlog.SetLevel(gwlog.InfoLevel)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if args.duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, args.duration)
			defer cancel()
		}

		var wait sync.WaitGroup
		bots := make([]*ClientBot, args.numBots)
		for i := range bots {
			bots[i] = newClientBot(i + 1)
			wait.Add(1)
			go func(bot *ClientBot) {
				defer wait.Done()
				bot.run(ctx)
			}(bots[i])
		}
		wait.Wait()

		for _, bot := range bots {
			fmt.Fprintln(cmd.OutOrStdout(), bot.summary())
		}
		return nil
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&args.addr, "addr", "a", "localhost:7000", "server address, a URL for ws")
	flags.StringVarP(&args.transport, "transport", "t", network.TransportTCP, "tcp, kcp or ws")
	flags.IntVarP(&args.numBots, "bots", "n", 10, "number of bots")
	flags.BoolVar(&args.compress, "compress", false, "compress packets, must match the server")
	flags.DurationVar(&args.interval, "interval", time.Second, "interval between bot actions")
	flags.DurationVar(&args.duration, "duration", 0, "stop after the duration, 0 runs until interrupted")
	flags.BoolVarP(&args.quiet, "quiet", "q", false, "do not log every message")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
