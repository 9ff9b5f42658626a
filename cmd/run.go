package cmd

import (
	"fmt"
	"os"

	"github.com/asengupta/intervo/internal/api"
	"github.com/asengupta/intervo/internal/app"
	"github.com/asengupta/intervo/internal/config"
	"github.com/asengupta/intervo/internal/interview"
	"github.com/asengupta/intervo/internal/journal"
	interviewscreen "github.com/asengupta/intervo/internal/screens/interview"
	"github.com/spf13/cobra"
)

// runApp resolves configuration, opens the trace journal, and launches
// the TUI.
func runApp(cmd *cobra.Command) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	channelURL, err := cfg.ChannelURL()
	if err != nil {
		return err
	}

	// The journal is best effort: the interview runs fine without it.
	var tracer interview.Tracer
	if dbPath, err := resolveDBPath(cmd); err == nil {
		if j, err := journal.Open(dbPath); err == nil {
			defer j.Close()
			tracer = j
		} else {
			fmt.Fprintln(os.Stderr, "trace journal unavailable:", err)
		}
	}

	client := api.NewClient(cfg.ServerURL)
	return app.Run(app.Deps{
		Client: client,
		InterviewDeps: interviewscreen.Deps{
			Client:      client,
			ChannelURL:  channelURL,
			Grace:       cfg.Grace,
			CallTimeout: cfg.CallTimeout,
			Tracer:      tracer,
		},
	})
}

// resolveConfig loads env configuration and applies the --server override.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, fmt.Errorf("load configuration: %w", err)
	}
	if s, _ := cmd.Flags().GetString("server"); s != "" {
		cfg.ServerURL = s
		if err := cfg.Validate(); err != nil {
			return cfg, fmt.Errorf("--server: %w", err)
		}
	}
	return cfg, nil
}
