package imagegen

import (
	"context"
	"strings"

	"rewards-controlplane/pkg/ai"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxPrompts bounds one request.
const MaxPrompts = 10

// maxInFlight caps concurrent calls to the hosted image model per request.
const maxInFlight = 3

type Request struct {
	Prompts []string `json:"prompts"`
}

// Response holds one entry per prompt; failed prompts are null.
type Response struct {
	Images []*string `json:"images"`
}

type Service struct {
	images   ai.ImageGenerator
	inFlight int
}

func NewService(images ai.ImageGenerator) *Service {
	return &Service{images: images, inFlight: maxInFlight}
}

// Generate renders prompts concurrently, at most maxInFlight at a time. A
// failing prompt leaves a nil slot and does not fail the batch. Nothing is
// retried.
func (s *Service) Generate(ctx context.Context, prompts []string) ([]*string, error) {
	if len(prompts) == 0 {
		return nil, errutil.BadRequest("prompts must be a non-empty array", nil)
	}
	if len(prompts) > MaxPrompts {
		return nil, errutil.BadRequest("too many prompts", nil)
	}

	zapLog := logger.FromContext(ctx)
	out := make([]*string, len(prompts))

	var g errgroup.Group
	g.SetLimit(s.inFlight)
	for i, prompt := range prompts {
		if strings.TrimSpace(prompt) == "" {
			continue
		}
		g.Go(func() error {
			url, err := s.images.Generate(ctx, prompt)
			if err != nil {
				zapLog.Warn("image generation failed", zap.Int("index", i), zap.Error(err))
				return nil
			}
			out[i] = &url
			return nil
		})
	}
	// Workers never return an error; Wait only joins them.
	_ = g.Wait()
	return out, nil
}
