package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vjoshi/recall/internal/core"
	"github.com/vjoshi/recall/internal/provider"
)

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &Provider{
		config: Config{
			APIKey:  "sk-test",
			Model:   "gpt-4o-mini",
			BaseURL: srv.URL,
		},
		client: srv.Client(),
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func readRequestBody(t *testing.T, r *http.Request) chatRequest {
	t.Helper()
	body, _ := io.ReadAll(r.Body)
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
	return req
}

func strPtr(s string) *string { return &s }

func newAppContext(t *testing.T) *core.AppContext {
	t.Helper()
	return core.NewAppContext(slog.Default(), t.TempDir())
}

func TestComplete_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("missing authorization header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("missing content-type header")
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}

		req := readRequestBody(t, r)
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q, want gpt-4o-mini", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Errorf("got %d messages, want 2", len(req.Messages))
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("first role = %q, want system", req.Messages[0].Role)
		}

		resp := chatResponse{
			Choices: []chatChoice{
				{
					Message:      chatMessage{Role: "assistant", Content: "Hello!"},
					FinishReason: strPtr("stop"),
				},
			},
			Usage: chatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(t, w, resp)
	})

	p := newTestProvider(t, handler)
	resp, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleSystem, Content: "Be brief."},
			{Role: provider.MessageRoleUser, Content: "Hi"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want Hello!", resp.Content)
	}
	if resp.FinishReason != provider.FinishReasonStop {
		t.Errorf("FinishReason = %q, want stop", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestComplete_ConfigOverrides(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := readRequestBody(t, r)
		if req.MaxTokens != 64 {
			t.Errorf("max_tokens = %d, want 64", req.MaxTokens)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("temperature = %v, want 0.2", req.Temperature)
		}
		writeJSON(t, w, chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Content: "ok"}}},
		})
	})

	p := newTestProvider(t, handler)
	temp := 0.7
	p.config.MaxTokens = 128
	p.config.Temperature = &temp

	// Request-level values win over config defaults.
	reqTemp := 0.2
	_, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages:    []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
		MaxTokens:   64,
		Temperature: &reqTemp,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestComplete_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, provider.ErrRateLimit},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, provider.ErrAuthentication},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"no access"}}`, provider.ErrAuthentication},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, provider.ErrEndpointDown},
		{"bad gateway", http.StatusBadGateway, "upstream died", provider.ErrEndpointDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := p.Complete(context.Background(), provider.CompletionRequest{
				Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestComplete_BadRequestNotSentinel(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid payload"}}`))
	}))

	_, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("want error for 400")
	}
	for _, sentinel := range []error{provider.ErrRateLimit, provider.ErrAuthentication, provider.ErrEndpointDown} {
		if errors.Is(err, sentinel) {
			t.Errorf("400 mapped to sentinel %v", sentinel)
		}
	}
}

func TestComplete_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := &Provider{
		config: Config{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: url},
		client: &http.Client{},
	}

	_, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if !errors.Is(err, provider.ErrEndpointDown) {
		t.Errorf("error = %v, want ErrEndpointDown", err)
	}
}

func TestComplete_ContextCanceled(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{APIKey: "k", Model: "m", Timeout: "30s"}, false},
		{"missing key", Config{Model: "m", Timeout: "30s"}, true},
		{"missing model", Config{APIKey: "k", Timeout: "30s"}, true},
		{"bad timeout", Config{APIKey: "k", Model: "m", Timeout: "soon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Provider{config: tt.config}
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProvision_APIKeyEnv(t *testing.T) {
	t.Setenv("RECALL_TEST_API_KEY", "sk-from-env")

	p := &Provider{config: Config{APIKeyEnv: "RECALL_TEST_API_KEY", Model: "m"}}
	p.config.defaults()

	if err := p.Provision(newAppContext(t)); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if p.config.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want sk-from-env", p.config.APIKey)
	}
}
