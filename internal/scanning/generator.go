package scanning

import "context"

// Generator defines the interface for a generative text service
type Generator interface {
	// Generate sends a prompt and returns the completion text
	Generate(ctx context.Context, prompt string) (string, error)
	// Close closes the generator and releases resources
	Close() error
}
