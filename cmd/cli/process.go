package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dvloznov/invoice-ledger/internal/app"
	"github.com/dvloznov/invoice-ledger/internal/config"
	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/logger"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
)

func newProcessCommand() *cobra.Command {
	var concurrency int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "process <dir|file>...",
		Short: "Extract, validate and file invoice attachments",
		Args:  cobra.MinimumNArgs(1),
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

			return runProcess(ctx, application.Processor, args, concurrency, asJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", pipeline.DefaultBatchConcurrency, "attachments processed at once")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON outcome per line")

	return cmd
}

// batchProcessor is the part of pipeline.Processor the process command needs.
type batchProcessor interface {
	ProcessBatch(ctx context.Context, atts []invoice.RawAttachment, limit int) []pipeline.Outcome
}

func runProcess(ctx context.Context, p batchProcessor, paths []string, concurrency int, asJSON bool, w io.Writer) error {
	files, err := collectFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found in %v", paths)
	}

	atts := make([]invoice.RawAttachment, 0, len(files))
	for _, f := range files {
		att, err := readAttachment(f)
		if err != nil {
			return err
		}
		atts = append(atts, att)
	}

	outcomes := p.ProcessBatch(ctx, atts, concurrency)

	if err := printOutcomes(w, files, outcomes, asJSON); err != nil {
		return err
	}

	failed := 0
	for _, out := range outcomes {
		if !out.OK {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d attachments failed", failed, len(outcomes))
	}
	return nil
}

func printOutcomes(w io.Writer, files []string, outcomes []pipeline.Outcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, out := range outcomes {
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tFILE\tSTORED AS\tDETAIL")
	for i, out := range outcomes {
		if out.OK {
			fmt.Fprintf(tw, "ok\t%s\t%s/%s\t\n", files[i], out.Folder, out.Filename)
			continue
		}
		fmt.Fprintf(tw, "failed\t%s\t-\t%s: %s\n", files[i], out.Kind, out.Error)
	}
	return tw.Flush()
}
