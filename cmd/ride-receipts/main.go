package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/ride-receipts/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// rootConfig holds the flags shared by every subcommand
type rootConfig struct {
	dbPath   *string
	logLevel *string
	logJSON  *bool
	logger   *slog.Logger
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	rootFlags := ff.NewFlagSet("ride-receipts")
	root := &rootConfig{
		dbPath:   rootFlags.StringLong("db", "ride-receipts.db", "Database file path"),
		logLevel: rootFlags.StringLong("log-level", "info", "Log level: debug, info, warn or error"),
		logJSON:  rootFlags.BoolLong("log-json", "Write logs as JSON"),
	}
	_ = rootFlags.StringLong("config", "", "Config file (plain key value lines)")

	rootCmd := &ff.Command{
		Name:      "ride-receipts",
		Usage:     "ride-receipts [FLAGS] <SUBCOMMAND>",
		ShortHelp: "Collect ride-hail and rail receipts from email",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			newSyncCommand(root, rootFlags, stdin, stderr),
			newParseCommand(root, rootFlags, stdin, stdout),
			newServeCommand(root, rootFlags),
		},
		Exec: func(context.Context, []string) error {
			return ff.ErrHelp
		},
	}

	err := rootCmd.Parse(args,
		ff.WithEnvVarPrefix("RIDE_RECEIPTS"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(rootCmd.GetSelected()))
		return err
	}

	root.logger, err = newLogger(*root.logLevel, *root.logJSON, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(root.logger)

	if err := rootCmd.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(stderr, "%s\n", ffhelp.Command(rootCmd.GetSelected()))
		}
		return err
	}
	return nil
}

// newLogger builds the process logger from the log flags
func newLogger(level string, asJSON bool, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// openDB opens the receipt store named by --db
func (c *rootConfig) openDB() (*receipt.BoltDB, error) {
	c.logger.Debug("Opening database", "path", *c.dbPath)
	db, err := receipt.NewBoltDB(*c.dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return db, nil
}
