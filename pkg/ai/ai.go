// Package ai wraps the hosted model APIs used for burnout scoring and
// recommendation illustrations.
package ai

//go:generate mockgen -source=ai.go -destination=mock_ai.go -package=ai

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("ai provider not configured")

// ChatCompleter sends a system and a user prompt and returns the model's text
// answer.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ImageGenerator renders one prompt and returns a URL for the image.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
