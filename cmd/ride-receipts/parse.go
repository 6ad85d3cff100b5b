package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/ride-receipts/internal/receipt"
)

func newParseCommand(root *rootConfig, parent *ff.FlagSet, stdin io.Reader, stdout io.Writer) *ff.Command {
	fs := ff.NewFlagSet("parse").SetParent(parent)
	parser := registerParserFlags(fs)
	var (
		vendorName = fs.StringLong("vendor", "", "Vendor that sent the message: Uber, Lyft, Curb or Amtrak")
		subject    = fs.StringLong("subject", "", "Message subject line")
		messageID  = fs.StringLong("message-id", "", "Message id to record with the receipt")
		received   = fs.StringLong("received", "", "Time the message was received (RFC 3339 or YYYY-MM-DD, default now)")
		store      = fs.BoolLong("store", "Save the receipt to the database")
	)

	return &ff.Command{
		Name:      "parse",
		Usage:     "ride-receipts parse [FLAGS] [FILE]",
		ShortHelp: "Parse one message body from a file or stdin",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			vendor, ok := receipt.ParseVendor(*vendorName)
			if !ok {
				return fmt.Errorf("unknown vendor %q", *vendorName)
			}
			receivedAt, err := parseReceived(*received)
			if err != nil {
				return err
			}
			body, err := readBody(args, stdin)
			if err != nil {
				return err
			}
			msg := &receipt.Message{ID: *messageID, Subject: *subject, ReceivedAt: receivedAt, Body: body}

			db, err := root.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			orchestrator, closeAI, err := parser.build(root.logger)
			if err != nil {
				return err
			}
			defer closeAI()

			service := receipt.NewService(db, orchestrator)
			var r *receipt.Receipt
			if *store {
				r, err = service.ParseMessage(ctx, vendor, msg)
			} else {
				var known []*receipt.Receipt
				if known, err = service.ListReceipts(); err == nil {
					r, err = orchestrator.ParseAgainst(ctx, vendor, msg, known)
				}
			}
			if errors.Is(err, receipt.ErrDuplicate) {
				fmt.Fprintln(stdout, "duplicate: receipt already recorded")
				return nil
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		},
	}
}

func parseReceived(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid received time %q", s)
}

func readBody(args []string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("reading message body: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("message body is empty")
	}
	return string(data), nil
}
