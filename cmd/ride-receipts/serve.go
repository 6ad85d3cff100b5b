package main

import (
	"context"
	"fmt"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/ride-receipts/internal/receipt"
)

func newServeCommand(root *rootConfig, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(parent)
	parser := registerParserFlags(fs)
	var (
		port     = fs.IntLong("port", 8080, "HTTP server port")
		authUser = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
	)

	return &ff.Command{
		Name:      "serve",
		Usage:     "ride-receipts serve [FLAGS]",
		ShortHelp: "Serve the receipts API",
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

			server := receipt.NewServer(receipt.NewService(db, orchestrator), receipt.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			})

			addr := fmt.Sprintf(":%d", *port)
			errc := make(chan error, 1)
			go func() {
				errc <- server.Start(addr)
			}()

			logger.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
			if *authUser != "" || *authPass != "" {
				logger.Info("Basic auth enabled", "user", *authUser)
			}

			select {
			case err := <-errc:
				return fmt.Errorf("server: %w", err)
			case <-ctx.Done():
				logger.Info("Shutting down...")
				return nil
			}
		},
	}
}
