package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dupsync/internal/config"
	"dupsync/internal/driver"
	"dupsync/internal/hashcache"
	"dupsync/internal/hashengine"
	"dupsync/internal/report"
)

var scanFlags runFlags

var scanCmd = &cobra.Command{
	Use:   "scan [roots...]",
	Short: "Find duplicate files and print a report without acting on them",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(&scanFlags, args)
		if err != nil {
			return err
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

		out, err := driver.Run(cmd.Context(), driver.Options{
			RawRoots:                  cfg.Roots,
			Algorithm:                 resolveAlgorithm(cfg),
			Parallelism:               cfg.Parallelism,
			FastMode:                  cfg.FastMode,
			Cache:                     cache,
			Filter:                    filter,
			Selection:                 resolveSelectionStrategy(cfg),
			DryRun:                    true,
			MediaMode:                 cfg.Media,
			MediaThreshold:            cfg.MediaThreshold,
			MediaRequireAllPairs:      cfg.RequireAllPairs,
			MediaResolutionPreference: cfg.MediaResolutionPreference,
			MediaFormatPreference:     cfg.MediaFormatPreference,
			Remote:                    resolveRemoteOptions(&scanFlags, cfg),
			Log:                       logf,
		})
		if err != nil {
			return err
		}

		return renderReport(out.LocalReport, cfg)
	},
}

func init() {
	addRunFlags(scanCmd, &scanFlags)
}

// openCache opens the hash cache named by cfg.CacheLocation; an empty
// location means "run without a cache" (every file is re-digested).
func openCache(cfg config.Config) (hashengine.Cache, func(), error) {
	if cfg.CacheLocation == "" {
		return nil, nil, nil
	}
	c, err := hashcache.Open(cfg.CacheLocation)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { c.Close() }, nil
}

func renderReport(doc report.Document, cfg config.Config) error {
	var data []byte
	var err error
	switch cfg.OutputFormat {
	case "table":
		var buf bytes.Buffer
		err = report.WriteTable(&buf, doc)
		data = buf.Bytes()
	default:
		data, err = report.MarshalJSON(doc)
	}
	if err != nil {
		return err
	}
	if cfg.OutputPath == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(cfg.OutputPath, data, 0644)
}

func logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
