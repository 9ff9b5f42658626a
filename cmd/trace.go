package cmd

import (
	"fmt"

	"github.com/asengupta/intervo/internal/journal"
	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Show recent session trace events",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return fmt.Errorf("resolve trace DB path: %w", err)
		}
		j, err := journal.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open trace journal: %w", err)
		}
		defer j.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := j.Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no trace events recorded yet")
			return nil
		}

		for _, e := range entries {
			sid := e.SessionID
			if sid == "" {
				sid = "-"
			}
			fmt.Printf("%s  %-10s %-12s %s\n", e.At.Format("2006-01-02 15:04:05"), journal.ShortID(sid), e.Kind, e.Detail)
		}
		return nil
	},
}

func init() {
	traceCmd.Flags().IntP("limit", "n", 50, "Number of events to show")
}
