package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/invoice-ledger/internal/app"
	"github.com/dvloznov/invoice-ledger/internal/config"
	"github.com/dvloznov/invoice-ledger/internal/logger"
)

func newMigrateCommand() *cobra.Command {
	var appliedBy string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending BigQuery run log migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.NewWithLevel(cfg.Log.Level)
			ctx := logger.WithContext(cmd.Context(), log)

			runs, err := app.NewRunRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			applied, err := runs.Migrate(ctx, appliedBy)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to %s.%s\n", applied, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
			return nil
		},
	}

	cmd.Flags().StringVar(&appliedBy, "applied-by", "invoice-ledger-cli", "name recorded with each applied migration")

	return cmd
}
