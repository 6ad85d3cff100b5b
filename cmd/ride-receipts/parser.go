package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/ride-receipts/internal/parsing"
	"github.com/zombor/ride-receipts/internal/receipt"
	"github.com/zombor/ride-receipts/internal/scanning"
)

// parserFlags are the extraction settings shared by sync, parse and serve
type parserFlags struct {
	policy         *string
	ai             *string
	geminiKey      *string
	geminiModel    *string
	anthropicKey   *string
	anthropicModel *string
	ollamaURL      *string
	ollamaModel    *string
	aiRate         *float64
	aiTimeout      *time.Duration
	centsTolerance *int
	subjects       map[receipt.Vendor]*string
}

func registerParserFlags(fs *ff.FlagSet) *parserFlags {
	p := &parserFlags{
		policy:         fs.StringLong("parser", string(parsing.PolicyRegexFirst), "Parser policy: regex-only, ai-only, regex-first or ai-with-subject-filter"),
		ai:             fs.StringLong("ai", "gemini", "AI backend: gemini, anthropic, ollama or none"),
		geminiKey:      fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:    fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name"),
		anthropicKey:   fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)"),
		anthropicModel: fs.StringLong("anthropic-model", scanning.DefaultAnthropicModel, "Anthropic model name"),
		ollamaURL:      fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:    fs.StringLong("ollama-model", "llama3.1", "Ollama model name"),
		aiRate:         fs.Float64Long("ai-rate", 0, "Maximum AI requests per second (0 for unlimited)"),
		aiTimeout:      fs.DurationLong("ai-timeout", scanning.DefaultTimeout, "Timeout for one AI request"),
		centsTolerance: fs.IntLong("cents-tolerance", 1, "Largest total difference in cents still treated as the same trip"),
		subjects:       make(map[receipt.Vendor]*string, len(receipt.Vendors)),
	}
	for _, v := range receipt.Vendors {
		name := strings.ToLower(string(v)) + "-subject"
		p.subjects[v] = fs.StringLong(name, "", fmt.Sprintf("Subject pattern for %s under ai-with-subject-filter", v))
	}
	return p
}

// config resolves the flags into an orchestrator configuration
func (p *parserFlags) config(logger *slog.Logger) (parsing.Config, error) {
	policy, err := parsing.ParsePolicy(*p.policy)
	if err != nil {
		return parsing.Config{}, err
	}
	patterns := make(map[receipt.Vendor]string)
	for v, s := range p.subjects {
		if *s != "" {
			patterns[v] = *s
		}
	}
	return parsing.Config{
		Policy:          policy,
		SubjectPatterns: patterns,
		ToleranceCents:  int64(*p.centsTolerance),
		Logger:          logger,
	}, nil
}

// build creates the orchestrator and the AI extractor it uses, if any.
// The returned close function releases the AI client.
func (p *parserFlags) build(logger *slog.Logger) (*parsing.Orchestrator, func() error, error) {
	cfg, err := p.config(logger)
	if err != nil {
		return nil, nil, err
	}

	closer := func() error { return nil }
	var ai parsing.AIExtractor
	if cfg.Policy.UsesAI() && *p.ai != "none" {
		gen, err := p.generator(logger)
		switch {
		case err != nil && cfg.Policy == parsing.PolicyRegexFirst:
			logger.Warn("AI fallback disabled", "error", err)
		case err != nil:
			return nil, nil, err
		default:
			extractor := scanning.NewExtractor(gen, scanning.Options{
				RequestsPerSecond: *p.aiRate,
				Timeout:           *p.aiTimeout,
				Logger:            logger,
			})
			ai, closer = extractor, extractor.Close
		}
	}

	o, err := parsing.NewOrchestrator(cfg, ai)
	if err != nil {
		closer()
		return nil, nil, err
	}
	logger.Info("Parser ready", "policy", o.Policy(), "ai", ai != nil)
	return o, closer, nil
}

func (p *parserFlags) generator(logger *slog.Logger) (scanning.Generator, error) {
	switch *p.ai {
	case "gemini":
		apiKey := *p.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		logger.Info("Initializing Gemini...", "model", *p.geminiModel)
		return scanning.NewGemini(apiKey, *p.geminiModel)
	case "anthropic":
		apiKey := *p.anthropicKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic API key is required: set --anthropic-key or ANTHROPIC_API_KEY")
		}
		logger.Info("Initializing Anthropic...", "model", *p.anthropicModel)
		return scanning.NewAnthropic(apiKey, *p.anthropicModel)
	case "ollama":
		logger.Info("Initializing Ollama...", "url", *p.ollamaURL, "model", *p.ollamaModel)
		return scanning.NewOllama(*p.ollamaURL, *p.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid AI backend %q: want gemini, anthropic, ollama or none", *p.ai)
	}
}
