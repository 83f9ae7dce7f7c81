package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dupsync/internal/config"
)

// initCmd generates a default dupsync.yaml in the current directory,
// the same "stop if one already exists" bootstrap the teacher's own
// init command uses for make-sync.yaml.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default dupsync.yaml config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.ConfigExists() {
			fmt.Println("dupsync.yaml already exists.")
			return nil
		}

		cfg := config.Default()
		cfg.Roots = []string{"./"}
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Println("Wrote dupsync.yaml. Edit the roots list, then run `dupsync scan`.")
		return nil
	},
}
