package cmd

import (
	"fmt"
	"strings"

	"github.com/asengupta/intervo/internal/api"
	"github.com/spf13/cobra"
)

var scorecardCmd = &cobra.Command{
	Use:   "scorecard <session-id>",
	Short: "Print the scorecard for an ended session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		client := api.NewClient(cfg.ServerURL)
		sc, err := client.Scorecard(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("session  %s\n", sc.SessionID)
		if sc.Role != "" {
			fmt.Printf("role     %s\n", sc.Role)
		}
		fmt.Printf("overall  %.1f/10 across %d questions\n\n", sc.OverallScore, sc.TotalQuestions)

		for i, ev := range sc.Evaluations {
			fmt.Printf("Q%d (%d/10): %s\n", i+1, ev.Score, ev.Question)
			if ev.HumanAnswer != "" {
				fmt.Printf("  answered: %s\n", firstLine(ev.HumanAnswer))
			}
			if ev.Reason != "" {
				fmt.Printf("  feedback: %s\n", ev.Reason)
			}
			fmt.Println()
		}
		return nil
	},
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
