package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/epub/epubtest"
	"github.com/mrlokans/lectern/internal/kv"
)

type staticSource map[entities.ProviderID]entities.ProviderConfig

func (s staticSource) ProviderConfig(_ context.Context, provider entities.ProviderID) (entities.ProviderConfig, error) {
	cfg, ok := s[provider]
	if !ok {
		return entities.ProviderConfig{}, fmt.Errorf("unknown provider %q", provider)
	}
	return cfg, nil
}

func newSource(baseURL string) staticSource {
	return staticSource{
		entities.ProviderDeepSeek: {ProviderID: entities.ProviderDeepSeek, BaseEndpoint: baseURL, Credential: "sk-deep", ModelName: "deepseek-chat"},
		entities.ProviderKimiChat: {ProviderID: entities.ProviderKimiChat, BaseEndpoint: baseURL, Credential: "sk-kimi", ModelName: "moonshot-v1-32k"},
		entities.ProviderLocal:    {ProviderID: entities.ProviderLocal, BaseEndpoint: baseURL, ModelName: "qwen2.5"},
	}
}

func newRouter(t *testing.T, source ConfigSource) *Router {
	t.Helper()
	docs, err := kv.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewRouter(source, docs, Options{Timeout: 5 * time.Second})
}

func TestFamily(t *testing.T) {
	tests := []struct {
		model    string
		expected entities.ProviderID
		ok       bool
	}{
		{"deepseek-chat", entities.ProviderDeepSeek, true},
		{"deepseek-r1", entities.ProviderDeepSeek, true},
		{"moonshot-v1-32k", entities.ProviderKimiChat, true},
		{"kimi-latest", entities.ProviderKimiChat, true},
		{"local/llama3", entities.ProviderLocal, true},
		{"gpt-4o", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			family, ok := Family(tt.model)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, family)
		})
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("remote family keeps requested model", func(t *testing.T) {
		router := newRouter(t, newSource("http://example"))
		cfg, err := router.Resolve(ctx, "deepseek-r1")
		require.NoError(t, err)
		assert.Equal(t, entities.ProviderDeepSeek, cfg.ProviderID)
		assert.Equal(t, "deepseek-r1", cfg.ModelName)
		assert.Equal(t, "sk-deep", cfg.Credential)
	})

	t.Run("local prefix is stripped", func(t *testing.T) {
		router := newRouter(t, newSource("http://example"))
		cfg, err := router.Resolve(ctx, "local/llama3")
		require.NoError(t, err)
		assert.Equal(t, entities.ProviderLocal, cfg.ProviderID)
		assert.Equal(t, "llama3", cfg.ModelName)
	})

	t.Run("configured local model name", func(t *testing.T) {
		router := newRouter(t, newSource("http://example"))
		cfg, err := router.Resolve(ctx, "qwen2.5")
		require.NoError(t, err)
		assert.Equal(t, entities.ProviderLocal, cfg.ProviderID)
	})

	t.Run("missing credential is a configuration error", func(t *testing.T) {
		source := newSource("http://example")
		kimi := source[entities.ProviderKimiChat]
		kimi.Credential = ""
		source[entities.ProviderKimiChat] = kimi

		router := newRouter(t, source)
		_, err := router.Resolve(ctx, "moonshot-v1-8k")
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, entities.ProviderKimiChat, cfgErr.Provider)
		assert.Equal(t, "moonshot-v1-8k", cfgErr.Model)
	})

	t.Run("local without url is a configuration error", func(t *testing.T) {
		source := newSource("http://example")
		local := source[entities.ProviderLocal]
		local.BaseEndpoint = ""
		source[entities.ProviderLocal] = local

		router := newRouter(t, source)
		_, err := router.Resolve(ctx, "local/llama3")
		assert.True(t, IsConfigurationError(err))
	})

	t.Run("unknown family", func(t *testing.T) {
		router := newRouter(t, newSource("http://example"))
		_, err := router.Resolve(ctx, "gpt-4o")
		assert.True(t, IsConfigurationError(err))

		_, err = router.Resolve(ctx, "  ")
		assert.True(t, IsConfigurationError(err))
	})
}

func TestComplete_OpenAICompat(t *testing.T) {
	var captured oaiChatRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Sydney Carton"}}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
	}))
	defer server.Close()

	router := newRouter(t, newSource(server.URL))
	cfg, err := router.Resolve(context.Background(), "moonshot-v1-32k")
	require.NoError(t, err)

	completion, err := router.Complete(context.Background(), cfg, []entities.Message{
		{Role: entities.RoleSystem, Content: "persona"},
		{Role: entities.RoleUser, Content: "Who sacrifices himself?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sydney Carton", completion.Content)
	assert.Equal(t, 15, completion.Usage.TotalTokens)

	assert.Equal(t, "Bearer sk-kimi", auth)
	assert.Equal(t, "moonshot-v1-32k", captured.Model)
	require.NotNil(t, captured.Temperature)
	assert.InDelta(t, 0.3, *captured.Temperature, 1e-9)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
}

func TestComplete_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"choices":[]}`)
		}))
		defer server.Close()

		router := newRouter(t, newSource(server.URL))
		cfg, _ := router.Resolve(ctx, "deepseek-chat")
		_, err := router.Complete(ctx, cfg, []entities.Message{{Role: entities.RoleUser, Content: "hi"}})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("blank content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`)
		}))
		defer server.Close()

		router := newRouter(t, newSource(server.URL))
		cfg, _ := router.Resolve(ctx, "deepseek-chat")
		_, err := router.Complete(ctx, cfg, []entities.Message{{Role: entities.RoleUser, Content: "hi"}})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("http error carries api message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
		}))
		defer server.Close()

		router := newRouter(t, newSource(server.URL))
		cfg, _ := router.Resolve(ctx, "deepseek-chat")
		_, err := router.Complete(ctx, cfg, []entities.Message{{Role: entities.RoleUser, Content: "hi"}})

		var tErr *TransportError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, http.StatusTooManyRequests, tErr.StatusCode)
		assert.Equal(t, "rate limited", tErr.Message)
	})

	t.Run("network failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		router := newRouter(t, newSource(url))
		cfg, _ := router.Resolve(ctx, "deepseek-chat")
		_, err := router.Complete(ctx, cfg, []entities.Message{{Role: entities.RoleUser, Content: "hi"}})
		assert.True(t, IsTransportError(err))
	})

	t.Run("undecodable body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `<html>gateway</html>`)
		}))
		defer server.Close()

		router := newRouter(t, newSource(server.URL))
		cfg, _ := router.Resolve(ctx, "deepseek-chat")
		_, err := router.Complete(ctx, cfg, []entities.Message{{Role: entities.RoleUser, Content: "hi"}})
		assert.True(t, IsTransportError(err))
	})
}

func TestComplete_LocalOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama3", req.Model)
		io.WriteString(w, `{"message":{"role":"assistant","content":"local answer"},"prompt_eval_count":4,"eval_count":2}`)
	}))
	defer server.Close()

	router := newRouter(t, newSource(server.URL))
	cfg, err := router.Resolve(context.Background(), "local/llama3")
	require.NoError(t, err)

	completion, err := router.Complete(context.Background(), cfg, []entities.Message{{Role: entities.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "local answer", completion.Content)
	assert.Equal(t, 6, completion.Usage.TotalTokens)
}

func TestComplete_LocalOpenAICompat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"vllm answer"}}]}`)
	}))
	defer server.Close()

	router := newRouter(t, newSource(server.URL+"/v1"))
	cfg, err := router.Resolve(context.Background(), "local/llama3")
	require.NoError(t, err)

	completion, err := router.Complete(context.Background(), cfg, []entities.Message{{Role: entities.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "vllm answer", completion.Content)
}

func TestRegisterDocument_Kimi(t *testing.T) {
	var uploads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/files":
			uploads.Add(1)
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "file-extract", r.FormValue("purpose"))
			_, header, err := r.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "book.epub", header.Filename)
			io.WriteString(w, `{"id":"file-abc","object":"file","status":"ok"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/files/file-abc/content":
			io.WriteString(w, `{"content":"It was the best of times","file_type":"application/epub+zip"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	router := newRouter(t, newSource(server.URL))
	cfg, err := router.GroundingConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.ProviderKimiChat, cfg.ProviderID)

	ref, err := router.RegisterDocument(ctx, cfg, "book.epub", []byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, "kimichat:file-abc", ref)
	assert.Equal(t, int32(1), uploads.Load())

	text, err := router.DocumentText(ctx, ref)
	require.NoError(t, err)
	assert.Contains(t, text, "It was the best of times")
}

func TestRegisterDocument_Local(t *testing.T) {
	ctx := context.Background()
	router := newRouter(t, newSource("http://unused"))
	cfg := entities.ProviderConfig{ProviderID: entities.ProviderLocal}

	data := epubtest.Build(epubtest.Options{
		Title:    "Local",
		Chapters: []epubtest.Chapter{{Name: "c.xhtml", Body: "<p>Grounding text.</p>"}},
	})
	ref, err := router.RegisterDocument(ctx, cfg, "local.epub", data)
	require.NoError(t, err)

	parsed, err := ParseRef(ref)
	require.NoError(t, err)
	assert.Equal(t, entities.ProviderLocal, parsed.Provider)

	text, err := router.DocumentText(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Grounding text.", text)
}

func TestRegisterDocument_DeepSeekUnsupported(t *testing.T) {
	router := newRouter(t, newSource("http://unused"))
	cfg := entities.ProviderConfig{ProviderID: entities.ProviderDeepSeek, Credential: "sk"}

	_, err := router.RegisterDocument(context.Background(), cfg, "a.epub", []byte("x"))
	assert.True(t, errors.Is(err, ErrDocumentsUnsupported))
}

func TestParseRef(t *testing.T) {
	_, err := ParseRef("no-separator")
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = ParseRef("openai:file-1")
	assert.ErrorIs(t, err, ErrInvalidRef)

	ref, err := ParseRef("kimichat:file-1")
	require.NoError(t, err)
	assert.Equal(t, Ref{Provider: entities.ProviderKimiChat, ID: "file-1"}, ref)
}
