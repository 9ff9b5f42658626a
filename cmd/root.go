package cmd

import (
	"github.com/asengupta/intervo/internal/journal"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "intervo",
	Short: "AI mock interviewer in your terminal",
	Long:  "Intervo — terminal client for resume-driven mock interviews with live scoring.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "Backend base URL (overrides INTERVO_SERVER env var)")
	rootCmd.PersistentFlags().String("db", "", "Path to the trace database (overrides INTERVO_DB env var)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scorecardCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(traceCmd)
}

// resolveDBPath returns the trace database path using --db flag (highest
// priority), then INTERVO_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, journal.EnsureDir(p)
	}
	return journal.DefaultPath()
}
