package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/zombor/ride-receipts/internal/ingest"
)

// progressReporter draws one progress bar per vendor query
type progressReporter struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{writer: w}
}

func (p *progressReporter) Report(e ingest.Event) {
	switch e.Phase {
	case ingest.PhaseSearching:
		p.finish()
		fmt.Fprintf(p.writer, "Searching %s (%s)\n", e.Vendor, e.Query)
	case ingest.PhaseProcessing:
		if p.bar == nil {
			p.start(e)
		}
		p.bar.Describe(fmt.Sprintf("[cyan]%s[reset] %d new", e.Vendor, e.New))
		if err := p.bar.Set(e.Current); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	case ingest.PhaseError:
		if e.Total == 0 {
			fmt.Fprintf(p.writer, "  %s search failed: %s\n", e.Vendor, e.Message)
		}
	case ingest.PhaseComplete:
		p.finish()
		fmt.Fprintf(p.writer, "Sync complete: %s\n", e.Message)
	}
}

func (p *progressReporter) start(e ingest.Event) {
	p.bar = progressbar.NewOptions(e.Total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// finish closes the current bar, if any
func (p *progressReporter) finish() {
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
	fmt.Fprintln(p.writer)
	p.bar = nil
}
