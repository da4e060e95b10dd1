package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seoulbike/bikeflow/app"
	"github.com/seoulbike/bikeflow/config"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one ingestion cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
			n, err := svc.Jobs.RunCollect(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("collected %d station observations\n", n)
			return nil
		})
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the demand model from stored history and save the artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
			n, err := svc.Jobs.RunRetrain(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("trained on %d samples\n", n)
			return nil
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete observations past the retention age",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
			n, err := svc.Jobs.RunPurge(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d observations\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(collectCmd, trainCmd, purgeCmd)
}

func withService(ctx context.Context, fn func(context.Context, *app.Service) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(ctx, svc)
}
