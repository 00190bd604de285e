package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type einoCompleter struct {
	model model.BaseChatModel
}

func NewEinoCompleter(m model.BaseChatModel) ChatCompleter {
	return &einoCompleter{model: m}
}

func (c *einoCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}

	out, err := c.model.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", errors.New("empty completion")
	}
	return out.Content, nil
}

// ExtractJSON strips markdown code fences and any prose around the first
// JSON object in s.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}
