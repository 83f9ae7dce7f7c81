// Package config loads and validates the dupsync.yaml run
// configuration, the same yaml.v3-backed struct-mapping style the
// teacher's own internal/config uses for make-sync.yaml.
package config

import (
	"fmt"
	"os"
	"strings"

	"dupsync/internal/media"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the default file name dupsync looks for in the
// current directory.
const ConfigFileName = "dupsync.yaml"

// Config is the full on-disk run configuration. CLI flags (see cmd/)
// override whatever is set here field-for-field.
type Config struct {
	Roots       []string `yaml:"roots"`
	Algorithm   string   `yaml:"algorithm"`
	Parallelism int      `yaml:"parallelism"`

	Selection string `yaml:"selection"`

	IncludeGlobs []string `yaml:"include"`
	ExcludeGlobs []string `yaml:"exclude"`
	FilterFile   string   `yaml:"filter_file"`

	DryRun      bool   `yaml:"dry_run"`
	Delete      bool   `yaml:"delete"`
	MoveTo      string `yaml:"move_to"`
	CopyMissing bool   `yaml:"copy_missing"`

	CacheLocation string `yaml:"cache_location"`
	FastMode      bool   `yaml:"fast_mode"`

	Media                     bool     `yaml:"media"`
	MediaThreshold            float64  `yaml:"media_threshold"`
	RequireAllPairs           bool     `yaml:"require_all_pairs"`
	MediaResolutionPreference string   `yaml:"media_resolution_preference"`
	MediaFormatPreference     []string `yaml:"media_format_preference"`

	OutputPath   string `yaml:"output_path"`
	OutputFormat string `yaml:"output_format"`
	Verbosity    string `yaml:"verbosity"`

	SSHCommand    string `yaml:"ssh_command"`
	SSHConfigFile string `yaml:"ssh_config_file"`

	ProjectName string `yaml:"project_name"`
}

// Default returns a Config with every field spec.md documents a
// default for.
func Default() Config {
	return Config{
		Algorithm:                 "xxhash64",
		Parallelism:               4,
		Selection:                 "newest_modified",
		CacheLocation:             ".dupsync/cache.db",
		MediaThreshold:            90,
		MediaResolutionPreference: "highest",
		MediaFormatPreference:     append([]string(nil), media.DefaultFormatPreference...),
		OutputFormat:              "json",
		Verbosity:                 "info",
		ProjectName:               "dupsync",
	}
}

// ConfigExists reports whether a config file sits in the current
// directory.
func ConfigExists() bool {
	_, err := os.Stat(ConfigFileName)
	return err == nil
}

// Load reads and parses ConfigFileName, applying Default() values for
// anything the file leaves zero-valued.
func Load() (Config, error) {
	data, err := os.ReadFile(ConfigFileName)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", ConfigFileName, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", ConfigFileName, err)
	}
	return cfg, nil
}

// Save writes cfg to ConfigFileName.
func Save(cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(ConfigFileName, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", ConfigFileName, err)
	}
	return nil
}

// ValidationError collects every problem found in one Validate pass,
// so a user fixes their config file in one edit instead of one error
// at a time.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "config: " + strings.Join(e.Problems, "; ")
}

var validAlgorithms = map[string]bool{
	"md5": true, "sha1": true, "sha256": true, "blake3": true,
	"xxhash64": true, "gxhash": true, "fnv1a": true, "crc32": true,
}

var validSelections = map[string]bool{
	"newest_modified": true, "oldest_modified": true,
	"shortest_path": true, "longest_path": true,
}

var validOutputFormats = map[string]bool{"json": true, "table": true}

// Validate checks cfg for actionable configuration errors, per
// spec.md's supplemented-feature requirement that bad config produce
// a multi-error report rather than stopping at the first problem.
func Validate(cfg Config) error {
	var problems []string

	if len(cfg.Roots) == 0 {
		problems = append(problems, "roots: at least one root is required")
	}
	if !validAlgorithms[cfg.Algorithm] {
		problems = append(problems, fmt.Sprintf("algorithm: %q is not one of md5,sha1,sha256,blake3,xxhash64,gxhash,fnv1a,crc32", cfg.Algorithm))
	}
	if cfg.Parallelism < 1 {
		problems = append(problems, "parallelism: must be >= 1")
	}
	if !validSelections[cfg.Selection] {
		problems = append(problems, fmt.Sprintf("selection: %q is not one of newest_modified,oldest_modified,shortest_path,longest_path", cfg.Selection))
	}
	if !validOutputFormats[cfg.OutputFormat] {
		problems = append(problems, fmt.Sprintf("output_format: %q is not one of json,table", cfg.OutputFormat))
	}
	if cfg.Delete && cfg.MoveTo != "" {
		problems = append(problems, "delete and move_to are mutually exclusive")
	}
	if cfg.CopyMissing && len(cfg.Roots) < 2 {
		problems = append(problems, "copy_missing requires at least two roots")
	}
	if cfg.Media && (cfg.MediaThreshold < 0 || cfg.MediaThreshold > 100) {
		problems = append(problems, "media_threshold: must be between 0 and 100")
	}
	if pref := cfg.MediaResolutionPreference; pref != "" && pref != "highest" && pref != "lowest" && !isExactResolution(pref) {
		problems = append(problems, fmt.Sprintf("media_resolution_preference: %q is not highest, lowest, or an exact WxH", pref))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// isExactResolution reports whether s is a "WxH" pair of positive
// integers, e.g. "1920x1080".
func isExactResolution(s string) bool {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}
