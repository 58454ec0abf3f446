// Package providers routes chat completions and document uploads to the
// model family named by a model string.
//
// Every call takes an explicit entities.ProviderConfig; the router keeps no
// per-request state. Families:
//
//   - deepSeek: "deepseek-*" models, OpenAI-compatible chat API
//   - kimichat: "moonshot-*" and "kimi*" models, OpenAI-compatible chat API
//     plus the file-extract document API
//   - local:    "local/<name>" or the configured local model name; an
//     OpenAI-compatible server when the URL ends in /v1, Ollama otherwise
package providers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/kv"
)

const (
	DefaultTimeout = 120 * time.Second

	localModelPrefix = "local/"
)

// ConfigSource supplies the effective configuration of a family.
type ConfigSource interface {
	ProviderConfig(ctx context.Context, provider entities.ProviderID) (entities.ProviderConfig, error)
}

// Completion is the result of a chat completion.
type Completion struct {
	Content string         `json:"content"`
	Usage   entities.Usage `json:"usage"`
}

// Options configures a Router.
type Options struct {
	Timeout           time.Duration
	GroundingProvider entities.ProviderID
	HTTPClient        *http.Client
}

type Router struct {
	source            ConfigSource
	documents         kv.Store
	httpClient        *http.Client
	groundingProvider entities.ProviderID
}

// NewRouter creates a router. documents keeps text extracted on this host
// for the local family.
func NewRouter(source ConfigSource, documents kv.Store, opts Options) *Router {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	grounding := opts.GroundingProvider
	if grounding == "" {
		grounding = entities.ProviderKimiChat
	}
	return &Router{
		source:            source,
		documents:         documents,
		httpClient:        client,
		groundingProvider: grounding,
	}
}

// Family returns the provider family a model name belongs to.
func Family(model string) (entities.ProviderID, bool) {
	lower := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(lower, "deepseek-"):
		return entities.ProviderDeepSeek, true
	case strings.HasPrefix(lower, "moonshot-"), strings.HasPrefix(lower, "kimi"):
		return entities.ProviderKimiChat, true
	case strings.HasPrefix(lower, localModelPrefix):
		return entities.ProviderLocal, true
	default:
		return "", false
	}
}

// Resolve maps a model name to the configuration used to call it.
func (r *Router) Resolve(ctx context.Context, model string) (entities.ProviderConfig, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return entities.ProviderConfig{}, &ConfigurationError{Reason: "no model selected"}
	}

	family, ok := Family(model)
	if !ok {
		// A bare name is accepted when it is the configured local model.
		local, err := r.source.ProviderConfig(ctx, entities.ProviderLocal)
		if err != nil {
			return entities.ProviderConfig{}, err
		}
		if local.ModelName == "" || local.ModelName != model {
			return entities.ProviderConfig{}, &ConfigurationError{Model: model, Reason: "unknown model family"}
		}
		family = entities.ProviderLocal
	}

	cfg, err := r.source.ProviderConfig(ctx, family)
	if err != nil {
		return entities.ProviderConfig{}, err
	}
	cfg.ModelName = strings.TrimPrefix(model, localModelPrefix)

	if err := checkConfigured(cfg, model); err != nil {
		return entities.ProviderConfig{}, err
	}
	return cfg, nil
}

// GroundingConfig returns the configuration used to register documents.
func (r *Router) GroundingConfig(ctx context.Context) (entities.ProviderConfig, error) {
	cfg, err := r.source.ProviderConfig(ctx, r.groundingProvider)
	if err != nil {
		return entities.ProviderConfig{}, err
	}
	// Local documents are extracted on this host and need no server.
	if cfg.ProviderID == entities.ProviderLocal {
		return cfg, nil
	}
	if err := checkConfigured(cfg, cfg.ModelName); err != nil {
		return entities.ProviderConfig{}, err
	}
	return cfg, nil
}

func checkConfigured(cfg entities.ProviderConfig, model string) error {
	switch cfg.ProviderID {
	case entities.ProviderLocal:
		if cfg.BaseEndpoint == "" {
			return &ConfigurationError{Model: model, Provider: cfg.ProviderID, Reason: "missing url"}
		}
		if cfg.ModelName == "" {
			return &ConfigurationError{Model: model, Provider: cfg.ProviderID, Reason: "missing model"}
		}
	default:
		if cfg.Credential == "" {
			return &ConfigurationError{Model: model, Provider: cfg.ProviderID, Reason: "missing api key"}
		}
		if cfg.BaseEndpoint == "" {
			return &ConfigurationError{Model: model, Provider: cfg.ProviderID, Reason: "missing url"}
		}
	}
	return nil
}

// Complete sends the messages to the configured model.
func (r *Router) Complete(ctx context.Context, cfg entities.ProviderConfig, messages []entities.Message) (Completion, error) {
	switch cfg.ProviderID {
	case entities.ProviderDeepSeek:
		return r.chatOpenAICompat(ctx, cfg, messages, nil)
	case entities.ProviderKimiChat:
		temperature := 0.3
		return r.chatOpenAICompat(ctx, cfg, messages, &temperature)
	case entities.ProviderLocal:
		if isOpenAICompatURL(cfg.BaseEndpoint) {
			return r.chatOpenAICompat(ctx, cfg, messages, nil)
		}
		return r.chatOllama(ctx, cfg, messages)
	default:
		return Completion{}, &ConfigurationError{Model: cfg.ModelName, Provider: cfg.ProviderID, Reason: "unknown provider"}
	}
}

func isOpenAICompatURL(baseURL string) bool {
	return strings.HasSuffix(strings.TrimRight(baseURL, "/"), "/v1")
}
