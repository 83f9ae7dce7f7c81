package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"dupsync/internal/config"
	"dupsync/internal/dedup/selection"
	"dupsync/internal/driver"
	"dupsync/internal/model"
	"dupsync/internal/walker"
)

// runFlags holds the CLI flags shared by scan and apply. resolveConfig
// lets a flag override its config counterpart only when the flag is
// set to a non-zero value, so a boolean flag can switch a config option
// on but not off.
type runFlags struct {
	algorithm    string
	parallelism  int
	selection    string
	include      []string
	exclude      []string
	filterFile   string
	fastMode     bool
	cachePath    string
	media        bool
	mediaThresh  float64
	strictMedia  bool
	mediaResPref string
	mediaFmtPref []string
	output       string
	format       string
	sshCommand   string
	sshConfig    string
	sshNative    bool
	sshIdentity  string
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.algorithm, "algorithm", "", "content digest algorithm (overrides config)")
	cmd.Flags().IntVar(&f.parallelism, "parallelism", 0, "hash engine worker count (overrides config)")
	cmd.Flags().StringVar(&f.selection, "selection", "", "kept-file selection strategy (overrides config)")
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "glob to include, repeatable")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "glob to exclude, repeatable")
	cmd.Flags().StringVar(&f.filterFile, "filter-file", "", "path to a filter file (+/- glob rules)")
	cmd.Flags().BoolVar(&f.fastMode, "fast", false, "consult the hash cache instead of re-reading unchanged files")
	cmd.Flags().StringVar(&f.cachePath, "cache", "", "hash cache database path")
	cmd.Flags().BoolVar(&f.media, "media", false, "enable perceptual near-duplicate grouping")
	cmd.Flags().Float64Var(&f.mediaThresh, "media-threshold", 0, "minimum similarity (0-100) for a media cluster")
	cmd.Flags().BoolVar(&f.strictMedia, "media-require-all-pairs", false, "require every pair within a media cluster to clear the threshold")
	cmd.Flags().StringVar(&f.mediaResPref, "media-resolution-preference", "", "kept-member resolution preference: highest, lowest, or an exact WxH (overrides config)")
	cmd.Flags().StringSliceVar(&f.mediaFmtPref, "media-format-preference", nil, "ordered kept-member format preference, repeatable (overrides config)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the report to this path instead of stdout")
	cmd.Flags().StringVar(&f.format, "format", "", "report format: json or table")
	cmd.Flags().StringVar(&f.sshCommand, "ssh-command", "", "override the ssh binary used for remote roots")
	cmd.Flags().StringVar(&f.sshConfig, "ssh-config", "", "ssh -F config file for remote roots")
	cmd.Flags().BoolVar(&f.sshNative, "ssh-native", false, "drive remote tunnels with an in-process ssh client instead of shelling out to ssh(1)")
	cmd.Flags().StringVar(&f.sshIdentity, "ssh-identity", "", "private key path for --ssh-native (empty uses the running ssh-agent)")
}

// resolveConfig loads dupsync.yaml if present, applies flag
// overrides, and validates the result.
func resolveConfig(f *runFlags, roots []string) (config.Config, error) {
	cfg := config.Default()
	if config.ConfigExists() {
		loaded, err := config.Load()
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if len(roots) > 0 {
		cfg.Roots = roots
	}
	if f.algorithm != "" {
		cfg.Algorithm = f.algorithm
	}
	if f.parallelism != 0 {
		cfg.Parallelism = f.parallelism
	}
	if f.selection != "" {
		cfg.Selection = f.selection
	}
	if len(f.include) > 0 {
		cfg.IncludeGlobs = f.include
	}
	if len(f.exclude) > 0 {
		cfg.ExcludeGlobs = f.exclude
	}
	if f.filterFile != "" {
		cfg.FilterFile = f.filterFile
	}
	if f.fastMode {
		cfg.FastMode = true
	}
	if f.cachePath != "" {
		cfg.CacheLocation = f.cachePath
	}
	if f.media {
		cfg.Media = true
	}
	if f.mediaThresh != 0 {
		cfg.MediaThreshold = f.mediaThresh
	}
	if f.strictMedia {
		cfg.RequireAllPairs = true
	}
	if f.mediaResPref != "" {
		cfg.MediaResolutionPreference = f.mediaResPref
	}
	if len(f.mediaFmtPref) > 0 {
		cfg.MediaFormatPreference = f.mediaFmtPref
	}
	if f.output != "" {
		cfg.OutputPath = f.output
	}
	if f.format != "" {
		cfg.OutputFormat = f.format
	}
	if v := os.Getenv("DEDUP_SSH_COMMAND"); v != "" {
		cfg.SSHCommand = v
	}
	if v := os.Getenv("DEDUP_SSH_CONFIG"); v != "" {
		cfg.SSHConfigFile = v
	}
	if f.sshCommand != "" {
		cfg.SSHCommand = f.sshCommand
	}
	if f.sshConfig != "" {
		cfg.SSHConfigFile = f.sshConfig
	}

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func resolveFilter(cfg config.Config) (*walker.Filter, error) {
	if cfg.FilterFile != "" {
		return walker.ParseFilterFile(cfg.FilterFile)
	}
	return walker.NewFilter(cfg.IncludeGlobs, cfg.ExcludeGlobs), nil
}

func resolveSelectionStrategy(cfg config.Config) selection.Strategy {
	return selection.Strategy(cfg.Selection)
}

func resolveAlgorithm(cfg config.Config) model.Algorithm {
	return model.Algorithm(cfg.Algorithm)
}

func resolveRemoteOptions(f *runFlags, cfg config.Config) driver.RemoteOptions {
	return driver.RemoteOptions{
		SSHCommand:    cfg.SSHCommand,
		SSHConfigFile: cfg.SSHConfigFile,
		UseNativeSSH:  f.sshNative,
		IdentityFile:  f.sshIdentity,
	}
}
