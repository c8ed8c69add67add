// Package generate provides clients for text generation services used to
// compose answers from retrieved context.
package generate

import (
	"context"
	"time"
)

// Defaults shared by the generation clients.
const (
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024
)

// Generator produces a completion for a prompt.
//
// Implementations make one attempt per call and do not retry.
type Generator interface {
	// Generate returns the completion text for prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName identifies the model used.
	ModelName() string
}
