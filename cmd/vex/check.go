package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"vex/internal/borrowck"
	"vex/internal/diagfmt"
	"vex/internal/driver"
	"vex/internal/source"
)

var (
	checkJobs    int
	checkEffects string
)

func init() {
	checkCmd.Flags().IntVarP(&checkJobs, "jobs", "j", 0, "number of parallel workers (0 = all CPUs)")
	checkCmd.Flags().StringVar(&checkEffects, "effects", "", "TOML overlay extending the builtin effect registry")
}

var checkCmd = &cobra.Command{
	Use:   "check [path...]",
	Short: "Run ownership checks over compilation units",
	Long: `Check loads serialized compilation units (` + driver.UnitExt + ` files, or
directories containing them) and runs the ownership passes:
immutability, borrows, lifetimes and closure capture resolution.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")
		maxDiag, _ := cmd.Flags().GetInt("max-diagnostics")

		effects := borrowck.NewRegistry()
		if checkEffects != "" {
			if err := effects.LoadOverlay(checkEffects); err != nil {
				return err
			}
		}

		paths, err := collectUnitPaths(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no %s files found", driver.UnitExt)
		}

		results, err := driver.CheckFiles(cmd.Context(), paths, driver.Options{
			Jobs:           checkJobs,
			MaxDiagnostics: maxDiag,
			Effects:        effects,
		})
		if err != nil {
			return err
		}

		failed, errs := 0, 0
		for _, res := range results {
			pathFor := func(source.FileID) string { return res.Path }
			renderer := diagfmt.New(os.Stdout, pathFor)
			renderer.RenderBag(res.Bag)
			if res.Bag.HasErrors() {
				failed++
				errs += res.Bag.Len()
			}
		}
		if !quiet {
			diagfmt.Summary(os.Stdout, len(results), failed, errs)
		}
		if failed > 0 {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return fmt.Errorf("check failed")
		}
		return nil
	},
}

// collectUnitPaths expands directories into their unit files and keeps
// explicit file arguments as-is.
func collectUnitPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			units, err := driver.ListUnits(arg)
			if err != nil {
				return nil, err
			}
			paths = append(paths, units...)
			continue
		}
		if !strings.HasSuffix(arg, driver.UnitExt) {
			return nil, fmt.Errorf("%s: not a %s file", arg, driver.UnitExt)
		}
		paths = append(paths, arg)
	}
	sort.Strings(paths)
	return paths, nil
}
