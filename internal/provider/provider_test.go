package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req oaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "llama3" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(oaiResponse{
			ID:    "cmpl-1",
			Model: "llama3",
			Choices: []oaiChoice{
				{Message: oaiMessage{Role: "assistant", Content: `{"reply_text":"hi","actions":[]}`}},
			},
			Usage: oaiUsage{PromptTokens: 10, CompletionTokens: 5},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test", srv.URL, "test-key")
	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Model: "llama3",
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "hello"},
		},
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != `{"reply_text":"hi","actions":[]}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestOpenAINon200IsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test", srv.URL, "k")
	_, err := p.Complete(context.Background(), &CompletionRequest{Model: "m"})
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if ae.StatusCode != 429 || ae.Provider != "test" {
		t.Errorf("api error = %+v", ae)
	}
}

func TestAnthropicCompleteLiftsSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		var req anthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.System != "sys" {
			t.Errorf("system = %q, not lifted", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		if req.MaxTokens != 1024 {
			t.Errorf("max_tokens = %d, default not applied", req.MaxTokens)
		}
		_ = json.NewEncoder(w).Encode(anthResponse{
			ID:    "msg-1",
			Model: "claude",
			Content: []anthContentBlock{
				{Type: "text", Text: "part one "},
				{Type: "text", Text: "part two"},
			},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test", srv.URL, "test-key")
	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Model: "claude",
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "hello"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "part one part two" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestFromConfig(t *testing.T) {
	if _, err := FromConfig("p", APIOpenAI, "", ""); err != nil {
		t.Errorf("openai: %v", err)
	}
	if _, err := FromConfig("p", "", "", ""); err != nil {
		t.Errorf("default api: %v", err)
	}
	if _, err := FromConfig("p", APIAnthropic, "", ""); err != nil {
		t.Errorf("anthropic: %v", err)
	}
	if _, err := FromConfig("p", "smoke-signals", "", ""); err == nil {
		t.Error("unknown api accepted")
	}
}
