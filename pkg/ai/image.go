package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards-controlplane/pkg/minio"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

type ImageConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Size    string
	Timeout time.Duration
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type restyImageGenerator struct {
	client *resty.Client
	cfg    ImageConfig
	store  minio.ObjectStore
}

// NewRestyImageGenerator calls an OpenAI compatible images endpoint. Base64
// results are uploaded to store when one is configured, otherwise they are
// returned as data URLs.
func NewRestyImageGenerator(cfg ImageConfig, store minio.ObjectStore) ImageGenerator {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &restyImageGenerator{client: client, cfg: cfg, store: store}
}

func (g *restyImageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var out imageResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(imageRequest{Model: g.cfg.Model, Prompt: prompt, N: 1, Size: g.cfg.Size}).
		SetResult(&out).
		SetError(&out).
		Post("/images/generations")
	if err != nil {
		return "", err
	}

	if resp.IsError() {
		msg := resp.Status()
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("image generation failed: %s", msg)
	}

	if len(out.Data) == 0 {
		return "", errors.New("image generation returned no data")
	}

	img := out.Data[0]
	if img.URL != "" {
		return img.URL, nil
	}
	if img.B64JSON == "" {
		return "", errors.New("image generation returned empty payload")
	}

	if g.store == nil {
		return "data:image/png;base64," + img.B64JSON, nil
	}

	raw, err := base64.StdEncoding.DecodeString(img.B64JSON)
	if err != nil {
		return "", fmt.Errorf("decode image payload: %w", err)
	}

	key := fmt.Sprintf("recommendations/%s/%s.png", time.Now().UTC().Format("2006/01/02"), uuid.NewString())
	return g.store.Put(ctx, key, "image/png", raw)
}
