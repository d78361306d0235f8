package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquiditySniper/internal/config"
	"liquiditySniper/internal/coord"
	"liquiditySniper/internal/storage"
	"liquiditySniper/internal/storage/postgres"
)

func runStatus(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := coord.Open(ctx, coord.Options{
		Backend:   cfg.CoordBackend,
		RunID:     cfg.RunID,
		Dir:       cfg.CoordDir,
		RedisAddr: cfg.RedisAddr,
		RedisPass: cfg.RedisPassword,
		RedisDB:   cfg.RedisDB,
		PgDSN:     cfg.PgDSN,
	})
	if err != nil {
		return fmt.Errorf("open coordination store: %w", err)
	}
	defer store.Close()

	record, err := store.Load(ctx)
	if err != nil {
		return err
	}
	winner := "none"
	if record.WinnerNode != nil {
		winner = *record.WinnerNode
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run:    %s\n", cfg.RunID)
	fmt.Fprintf(out, "winner: %s\n", winner)
	fmt.Fprintf(out, "exit:   %t\n", record.Exit)

	var counter storage.Counter
	switch cfg.JournalBackend {
	case "postgres":
		if cfg.PgDSN == "" {
			return nil
		}
		journal, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer journal.Close()
		counter = journal
	case "jsonl":
		counter = storage.NewJsonlJournal(cfg.Journal)
	default:
		return nil
	}
	for _, side := range []string{"buy", "sell", "approve"} {
		count, err := counter.CountExecuted(ctx, cfg.RunID, side)
		if err != nil {
			logger.Warn("count executed submissions", zap.String("side", side), zap.Error(err))
			continue
		}
		fmt.Fprintf(out, "%-8s%d executed\n", side+":", count)
	}
	return nil
}
