// Command netgod runs the netgod game server and its content tools
package main

import (
	"fmt"
	"os"

	"github.com/netgodgame/netgod"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "netgod",
	Short:         "Headless game server engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configFile != "" {
			config.SetConfigFile(configFile)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the engine version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "netgod %s\n", netgod.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default netgod.ini)")
	rootCmd.AddCommand(serveCmd, generateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "netgod: %v\n", err)
		os.Exit(1)
	}
}
