package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"google.golang.org/api/option"

	"github.com/zombor/ride-receipts/internal/ingest"
	"github.com/zombor/ride-receipts/internal/mailbox"
	"github.com/zombor/ride-receipts/internal/receipt"
)

func newSyncCommand(root *rootConfig, parent *ff.FlagSet, stdin io.Reader, stderr io.Writer) *ff.Command {
	fs := ff.NewFlagSet("sync").SetParent(parent)
	parser := registerParserFlags(fs)
	var (
		credentials = fs.StringLong("credentials", "credentials.json", "Google OAuth client credentials file")
		token       = fs.StringLong("token", "token.json", "Saved Gmail OAuth token file")
		threshold   = fs.IntLong("threshold", ingest.DefaultThreshold, "Consecutive duplicates before asking whether to continue")
		limit       = fs.IntLong("limit", 0, "Messages fetched per vendor (0 for no limit)")
		yes         = fs.BoolLong("yes", "Never stop on runs of duplicates")
		queries     = make(map[receipt.Vendor]*string, len(receipt.Vendors))
	)
	for _, v := range receipt.Vendors {
		queries[v] = fs.StringLong("query-"+strings.ToLower(string(v)), mailbox.DefaultQueries[v], fmt.Sprintf("Gmail search for %s receipts (empty to skip)", v))
	}

	return &ff.Command{
		Name:      "sync",
		Usage:     "ride-receipts sync [FLAGS]",
		ShortHelp: "Fetch new receipts from Gmail",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			logger := root.logger

			db, err := root.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			orchestrator, closeAI, err := parser.build(logger)
			if err != nil {
				return err
			}
			defer closeAI()

			ts, err := mailbox.LoadTokenSource(ctx, *credentials, *token)
			if err != nil {
				return fmt.Errorf("loading gmail credentials: %w", err)
			}
			source, err := mailbox.NewGmail(ctx, option.WithTokenSource(ts))
			if err != nil {
				return err
			}

			var decider ingest.Decider = ingest.NewPromptDecider(stdin, stderr)
			if *yes {
				decider = ingest.AlwaysContinue
			}

			cfg := ingest.Config{
				Threshold: *threshold,
				Limit:     *limit,
				Queries:   make(map[receipt.Vendor]string, len(queries)),
			}
			for v, q := range queries {
				cfg.Queries[v] = strings.TrimSpace(*q)
			}

			progress := newProgressReporter(stderr)
			runner := ingest.NewRunnerWithLogger(cfg, source, orchestrator, receipt.NewService(db, orchestrator), decider, progress, logger)
			result, err := runner.Run(ctx)
			progress.finish()
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			logger.Info("Sync finished",
				"new", result.Accepted,
				"duplicates", result.Duplicates,
				"already_stored", result.Skipped,
				"unparsed", result.Unparsed,
				"failed", result.Failed,
			)
			return nil
		},
	}
}
