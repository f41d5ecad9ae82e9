package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dvloznov/invoice-ledger/internal/app"
	"github.com/dvloznov/invoice-ledger/internal/config"
	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/logger"
)

func newExtractCommand() *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the fields extracted from one attachment without filing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.NewWithLevel(cfg.Log.Level)
			ctx := logger.WithContext(cmd.Context(), log)

			application, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer application.Close()

			att, err := readAttachment(args[0])
			if err != nil {
				return err
			}

			fields, err := application.Extractor.Extract(ctx, att.Data, att.ContentType)
			if err != nil {
				return err
			}
			if validate {
				if fields, err = invoice.Validate(fields); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(fields)
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "fail when required fields are missing")

	return cmd
}
