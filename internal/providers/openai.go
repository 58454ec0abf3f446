package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mrlokans/lectern/internal/entities"
)

// OpenAI-compatible request/response types.

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (r *Router) chatOpenAICompat(ctx context.Context, cfg entities.ProviderConfig, messages []entities.Message, temperature *float64) (Completion, error) {
	reqBody := oaiChatRequest{
		Model:       cfg.ModelName,
		Messages:    make([]oaiMessage, 0, len(messages)),
		Temperature: temperature,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, oaiMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, err
	}

	url := strings.TrimRight(cfg.BaseEndpoint, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Completion{}, &TransportError{Provider: cfg.ProviderID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, cfg)

	var chatResp oaiChatResponse
	if err := r.doJSON(req, cfg.ProviderID, &chatResp); err != nil {
		return Completion{}, err
	}
	if len(chatResp.Choices) == 0 {
		return Completion{}, ErrEmptyResponse
	}
	content := chatResp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return Completion{}, ErrEmptyResponse
	}

	completion := Completion{Content: content}
	if chatResp.Usage != nil {
		completion.Usage = entities.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		}
	}
	return completion, nil
}

func setAuth(req *http.Request, cfg entities.ProviderConfig) {
	if cfg.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Credential)
	}
}

// doJSON sends req and decodes a JSON body into out. Every failure is
// reported as a TransportError.
func (r *Router) doJSON(req *http.Request, provider entities.ProviderID, out any) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &TransportError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, provider); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Provider: provider, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func checkStatus(resp *http.Response, provider entities.ProviderID) error {
	if resp.StatusCode < 400 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var errResp oaiErrorResponse
	_ = json.Unmarshal(raw, &errResp)
	message := errResp.Error.Message
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	return &TransportError{Provider: provider, StatusCode: resp.StatusCode, Message: message}
}
