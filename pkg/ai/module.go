package ai

import (
	"context"
	"strings"
	"time"

	"rewards-controlplane/pkg/config"
	"rewards-controlplane/pkg/minio"

	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ai",
	fx.Provide(
		ProvideChatCompleter,
		ProvideImageGenerator,
	),
)

type Params struct {
	fx.In
	Config *config.Config
	Store  minio.ObjectStore `optional:"true"`
}

func timeout(cfg *config.Config) time.Duration {
	if cfg.AI.Timeout > 0 {
		return cfg.AI.Timeout
	}
	return time.Minute
}

// ProvideChatCompleter builds the eino openai chat model. Without an API key
// every call fails with ErrNotConfigured.
func ProvideChatCompleter(p Params) (ChatCompleter, error) {
	cfg := p.Config
	if strings.TrimSpace(cfg.AI.APIKey) == "" {
		zap.L().Warn("ai api key not set, burnout analysis disabled")
		return disabled{}, nil
	}

	temperature := float32(0.2)
	cm, err := openaiModel.NewChatModel(context.Background(), &openaiModel.ChatModelConfig{
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.ChatModel,
		BaseURL:     cfg.AI.BaseURL,
		Timeout:     timeout(cfg),
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("chat model ready", zap.String("model", cfg.AI.ChatModel))
	return NewEinoCompleter(cm), nil
}

func ProvideImageGenerator(p Params) ImageGenerator {
	cfg := p.Config
	if strings.TrimSpace(cfg.AI.APIKey) == "" {
		return disabled{}
	}
	return NewRestyImageGenerator(ImageConfig{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.ImageModel,
		Size:    cfg.AI.ImageSize,
		Timeout: timeout(cfg),
	}, p.Store)
}

type disabled struct{}

func (disabled) Complete(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

func (disabled) Generate(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
