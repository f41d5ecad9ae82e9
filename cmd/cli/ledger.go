package main

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/spf13/cobra"

	"github.com/dvloznov/invoice-ledger/internal/app"
	"github.com/dvloznov/invoice-ledger/internal/config"
	"github.com/dvloznov/invoice-ledger/internal/ledger"
	"github.com/dvloznov/invoice-ledger/internal/logger"
)

func newLedgerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <YYYY.MM>",
		Short: "Print the ledger rows of one monthly folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := logger.WithContext(cmd.Context(), logger.NewWithLevel(cfg.Log.Level))

			store, closeStore, err := app.NewStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			return printLedger(ctx, app.NewCommitter(cfg, store), args[0], cmd.OutOrStdout())
		},
	}
}

// ledgerReader is the part of commit.Committer the ledger command needs.
type ledgerReader interface {
	ReadLedger(ctx context.Context, period string) ([]ledger.Row, error)
}

func printLedger(ctx context.Context, r ledgerReader, period string, w io.Writer) error {
	rows, err := r.ReadLedger(ctx, period)
	if err != nil {
		return err
	}

	if _, err := w.Write(ledger.HeaderContent()); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	for _, row := range rows {
		if err := cw.Write(ledger.Marshal(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
