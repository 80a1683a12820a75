package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vex/internal/borrowck"
)

var effectsOverlay string

func init() {
	effectsCmd.Flags().StringVar(&effectsOverlay, "overlay", "", "TOML overlay to merge before listing")
}

var effectsCmd = &cobra.Command{
	Use:   "effects",
	Short: "List the builtin effect registry",
	Long: `Effects prints every builtin known to the borrow tracker together
with its positional parameter effects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := borrowck.NewRegistry()
		if effectsOverlay != "" {
			if err := registry.LoadOverlay(effectsOverlay); err != nil {
				return err
			}
		}
		for _, meta := range registry.All() {
			effects := make([]string, len(meta.Effects))
			for i, e := range meta.Effects {
				effects[i] = e.String()
			}
			fmt.Fprintf(os.Stdout, "%s(%s)\n", meta.Name, strings.Join(effects, ", "))
		}
		return nil
	},
}
