package scanning

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/zombor/ride-receipts/internal/receipt"
)

// DefaultTimeout bounds one generator call
const DefaultTimeout = 60 * time.Second

// Options configures an Extractor
type Options struct {
	// RequestsPerSecond paces generator calls; zero means unlimited
	RequestsPerSecond float64
	// Timeout bounds each generator call; zero means DefaultTimeout
	Timeout time.Duration
	// Now supplies the fallback date for unparsable responses
	Now    func() time.Time
	Logger *slog.Logger
}

// Extractor asks a Generator for a receipt and validates the reply
type Extractor struct {
	gen     Generator
	limiter *rate.Limiter
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewExtractor creates an Extractor around a generator
func NewExtractor(gen Generator, opts Options) *Extractor {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Extractor{
		gen:     gen,
		limiter: rate.NewLimiter(limit, 1),
		timeout: opts.Timeout,
		now:     opts.Now,
		logger:  opts.Logger,
	}
}

// Extract returns a receipt read by the generator from body.
// Transport, quota and content failures all surface as *receipt.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, vendor receipt.Vendor, body string) (*receipt.Receipt, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, &receipt.ExtractionError{Vendor: vendor, Source: receipt.ParsedByAI, Reason: "waiting for rate limit", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	text, err := e.gen.Generate(callCtx, BuildPrompt(vendor, body))
	if err != nil {
		e.logger.Debug("Generator call failed", "vendor", vendor, "error", err)
		return nil, &receipt.ExtractionError{Vendor: vendor, Source: receipt.ParsedByAI, Reason: "generator call failed", Err: err}
	}
	e.logger.Debug("Generator replied", "vendor", vendor, "duration", time.Since(started), "length", len(text))

	return ParseResponse(text, vendor, e.now(), e.logger)
}

// Close releases the generator
func (e *Extractor) Close() error {
	return e.gen.Close()
}
