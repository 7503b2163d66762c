package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/sessiontrack/internal/simulate"
)

// ErrSimulationFailed is returned when a run completes with mismatches.
var ErrSimulationFailed = errors.New("simulation failed")

const defaultSimulationTimeout = 10 * time.Minute

func newSimulateCmd() *cobra.Command {
	cfg := simulate.DefaultConfig()
	cfg.Workers = runtime.NumCPU()
	var deadline time.Duration

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a running server with synthetic sessions and verify the analyses",
		Long: `simulate creates clients with one behavior per collection method and a
skill, plays concurrent sessions against the API, then checks that the
session-points series add up to what was sent. Deliberately invalid events
must come back as rejections.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, deadline)
			defer cancel()

			runner, err := simulate.NewRunner(cfg)
			if err != nil {
				return err
			}
			stats, err := runner.Run(ctx)
			if stats != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(stats); encErr != nil {
					return encErr
				}
			}
			if err != nil {
				return err
			}
			if !stats.OK() {
				return fmt.Errorf("%w: %d mismatches", ErrSimulationFailed, len(stats.Mismatches))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Base URL of the service")
	f.IntVar(&cfg.Clients, "clients", cfg.Clients, "Clients to create")
	f.IntVar(&cfg.SessionsPerClient, "sessions", cfg.SessionsPerClient, "Sessions per client")
	f.IntVar(&cfg.EventsPerSession, "events", cfg.EventsPerSession, "Behavior events per session")
	f.IntVar(&cfg.TrialsPerSession, "trials", cfg.TrialsPerSession, "Skill trials per session")
	f.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Events per request")
	f.Float64Var(&cfg.InvalidRate, "invalid-rate", cfg.InvalidRate, "Share of deliberately invalid events")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent session workers")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.Uint64Var(&cfg.Seed, "seed", 0, "Random seed (0 picks one)")
	f.StringVar(&cfg.OutputFile, "output", "", "Write generated fixtures and sessions to this JSON file")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Log every session")
	f.DurationVar(&deadline, "deadline", defaultSimulationTimeout, "Overall run deadline")
	return cmd
}
