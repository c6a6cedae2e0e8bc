package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/content"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var generateArgs struct {
	seed     int64
	out      string
	itemType string
}

var generateCmd = &cobra.Command{
	Use:       "generate world|quest|item",
	Short:     "Generate procedural content and print it as JSON",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"world", "quest", "item"},
	RunE:      runGenerate,
}

func init() {
	generateCmd.Flags().Int64Var(&generateArgs.seed, "seed", -1, "generation seed, negative picks one")
	generateCmd.Flags().StringVarP(&generateArgs.out, "out", "o", "", "write to the file instead of stdout")
	generateCmd.Flags().StringVar(&generateArgs.itemType, "type", "", "item type (weapon, armor, consumable, artifact)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	gwlog.SetLevel(gwlog.WarnLevel)
	cfg := config.Get()
	gen := content.NewSystem(&cfg.Content)
	if err := gen.Initialize(); err != nil {
		return err
	}
	defer gen.Shutdown()

	var result interface{}
	switch args[0] {
	case "world":
		result = gen.GenerateWorld(generateArgs.seed, nil)
	case "quest":
		result = gen.GenerateQuest(generateArgs.seed, nil)
	case "item":
		result = gen.GenerateItem(generateArgs.seed, generateArgs.itemType)
	}

	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal content")
	}
	if generateArgs.out == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}
	if err := renameio.WriteFile(generateArgs.out, b, 0644); err != nil {
		return errors.Wrapf(err, "write %s", generateArgs.out)
	}
	return nil
}
