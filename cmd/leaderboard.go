/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/clickrush/apiserver/config"
	"github.com/clickrush/apiserver/internal/db"
	"github.com/clickrush/apiserver/internal/logging"
	"github.com/clickrush/apiserver/internal/services"
	"github.com/clickrush/apiserver/internal/storage"
	"github.com/clickrush/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var exportLimit int

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Leaderboard maintenance",
}

var leaderboardExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a snapshot of every leaderboard to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)
		ctx := cmd.Context()

		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
		}

		userService := services.NewUserService(store.NewUserRepository(dbConn))
		scoreService := services.NewScoreService(store.NewScoreRepository(dbConn), userService, nil, logger)
		exporter := services.NewLeaderboardExporter(scoreService, objects, logger)

		keys, err := exporter.Export(ctx, exportLimit)
		if err != nil {
			return err
		}
		logger.Info().Str("bucket", objects.Bucket()).Int("snapshots", len(keys)).Msg("leaderboard export finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)
	leaderboardCmd.AddCommand(leaderboardExportCmd)
	leaderboardExportCmd.Flags().IntVar(&exportLimit, "limit", services.MaxScoreLimit, "entries per leaderboard (1-100)")
}
