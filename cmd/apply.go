package cmd

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"dupsync/internal/config"
	"dupsync/internal/driver"
	"dupsync/internal/model"
)

var (
	applyFlags       runFlags
	applyDelete      bool
	applyMoveTo      string
	applyCopyMissing bool
	applyDryRun      bool
	applyYes         bool
)

var applyCmd = &cobra.Command{
	Use:   "apply [roots...]",
	Short: "Find duplicates and act on them: delete, move, or copy missing files",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(&applyFlags, args)
		if err != nil {
			return err
		}
		if applyDelete {
			cfg.Delete = true
		}
		if applyMoveTo != "" {
			cfg.MoveTo = applyMoveTo
		}
		if applyCopyMissing {
			cfg.CopyMissing = true
		}
		dryRun := applyDryRun || cfg.DryRun

		if !dryRun && !applyYes {
			if !confirm(fmt.Sprintf("About to %s duplicates across %d root(s). Continue?", actionVerb(cfg), len(cfg.Roots))) {
				fmt.Println("Aborted.")
				return nil
			}
		}

		filter, err := resolveFilter(cfg)
		if err != nil {
			return err
		}
		cache, closeCache, err := openCache(cfg)
		if err != nil {
			return err
		}
		if closeCache != nil {
			defer closeCache()
		}

		var moveToRoot *model.Root
		if cfg.MoveTo != "" {
			root := model.Root{Kind: model.RootLocal, Path: cfg.MoveTo}
			moveToRoot = &root
		}

		out, err := driver.Run(cmd.Context(), driver.Options{
			RawRoots:                  cfg.Roots,
			Algorithm:                 resolveAlgorithm(cfg),
			Parallelism:               cfg.Parallelism,
			FastMode:                  cfg.FastMode,
			Cache:                     cache,
			Filter:                    filter,
			Selection:                 resolveSelectionStrategy(cfg),
			DryRun:                    dryRun,
			Delete:                    cfg.Delete,
			MoveToRoot:                moveToRoot,
			CopyMissing:               cfg.CopyMissing,
			MediaMode:                 cfg.Media,
			MediaThreshold:            cfg.MediaThreshold,
			MediaRequireAllPairs:      cfg.RequireAllPairs,
			MediaResolutionPreference: cfg.MediaResolutionPreference,
			MediaFormatPreference:     cfg.MediaFormatPreference,
			Remote:                    resolveRemoteOptions(&applyFlags, cfg),
			Log:                       logf,
		})
		if err != nil {
			return err
		}

		return renderReport(out.LocalReport, cfg)
	},
}

func init() {
	addRunFlags(applyCmd, &applyFlags)
	applyCmd.Flags().BoolVar(&applyDelete, "delete", false, "delete duplicate candidates, keeping the selected member of each set")
	applyCmd.Flags().StringVar(&applyMoveTo, "move-to", "", "move duplicate candidates into this directory instead of deleting them")
	applyCmd.Flags().BoolVar(&applyCopyMissing, "copy-missing", false, "copy files present in an earlier root but missing from the last root")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "plan actions and report them without touching the filesystem")
	applyCmd.Flags().BoolVarP(&applyYes, "yes", "y", false, "skip the confirmation prompt")
}

func actionVerb(cfg config.Config) string {
	switch {
	case cfg.Delete:
		return "delete"
	case cfg.MoveTo != "":
		return "move"
	case cfg.CopyMissing:
		return "copy missing files for"
	default:
		return "act on"
	}
}

func confirm(message string) bool {
	prompt := promptui.Prompt{Label: message + " [y/N]"}
	result, err := prompt.Run()
	if err != nil {
		return false
	}
	return result == "y" || result == "Y" || result == "yes"
}
