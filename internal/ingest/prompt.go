package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/zombor/ride-receipts/internal/receipt"
)

// PromptDecider asks on a terminal. Anything but "y" or "yes" skips.
//
// One goroutine owns the reader for the decider's lifetime, so a line typed
// after a cancelled question answers the next one.
type PromptDecider struct {
	in      *bufio.Reader
	out     io.Writer
	once    sync.Once
	answers chan answer
}

// NewPromptDecider creates a decider reading answers from in and writing questions to out
func NewPromptDecider(in io.Reader, out io.Writer) *PromptDecider {
	return &PromptDecider{in: bufio.NewReader(in), out: out, answers: make(chan answer)}
}

type answer struct {
	line string
	err  error
}

func (p *PromptDecider) readLines() {
	defer close(p.answers)
	for {
		line, err := p.in.ReadString('\n')
		p.answers <- answer{line: line, err: err}
		if err != nil {
			return
		}
	}
}

func (p *PromptDecider) AskContinue(ctx context.Context, vendor receipt.Vendor, count int) (bool, error) {
	fmt.Fprintf(p.out, "\n%d consecutive %s receipts are already recorded. Keep scanning %s? [y/N] ", count, vendor, vendor)
	p.once.Do(func() { go p.readLines() })

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a, ok := <-p.answers:
		if !ok {
			return false, nil
		}
		if a.err != nil && a.line == "" {
			if a.err == io.EOF {
				return false, nil
			}
			return false, fmt.Errorf("reading answer: %w", a.err)
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
