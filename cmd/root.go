package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dupsync",
	Short: "Find and act on duplicate files across local and remote trees",
	Long: `dupsync scans one or more directory trees (local paths or
ssh: remote specs), groups files whose content is equivalent, and
lets you report, delete, move, or copy-missing the results.`,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(initCmd)
}

// Root exposes the cobra command tree for main.go to execute with a
// context via cobra.Command.ExecuteContext.
func Root() *cobra.Command {
	return rootCmd
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
