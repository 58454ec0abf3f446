package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mrlokans/lectern/internal/entities"
)

// Ollama /api/chat request/response types.

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

func (r *Router) chatOllama(ctx context.Context, cfg entities.ProviderConfig, messages []entities.Message) (Completion, error) {
	reqBody := ollamaChatRequest{
		Model:    cfg.ModelName,
		Messages: make([]ollamaChatMessage, 0, len(messages)),
		Stream:   false,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, err
	}

	url := strings.TrimRight(cfg.BaseEndpoint, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Completion{}, &TransportError{Provider: cfg.ProviderID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, cfg)

	var resp ollamaChatResponse
	if err := r.doJSON(req, cfg.ProviderID, &resp); err != nil {
		return Completion{}, err
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return Completion{}, ErrEmptyResponse
	}
	return Completion{
		Content: resp.Message.Content,
		Usage: entities.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}
