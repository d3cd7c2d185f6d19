package agent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cortexai/analytics/internal/agent"
	"github.com/cortexai/analytics/internal/service"
)

const messageReply = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "test-model",
  "content": [{"type": "text", "text": "{\"intent\": \"evolution\"}"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 12, "output_tokens": 7}
}`

func TestAnthropicGeneratorGenerate(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Api-Key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageReply))
	}))
	defer srv.Close()

	gen := agent.NewAnthropicGenerator("test-key", "", srv.URL+"/")
	out, err := gen.Generate(context.Background(), service.GenerateRequest{
		Model:       "test-model",
		System:      "classify",
		Prompt:      "IMOR de INVEX",
		Temperature: 0.1,
		MaxTokens:   64,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"intent": "evolution"}` {
		t.Errorf("out = %q", out)
	}
	if body["model"] != "test-model" || body["max_tokens"] != float64(64) || body["temperature"] != 0.1 {
		t.Errorf("request body = %v", body)
	}
	if _, ok := body["system"]; !ok {
		t.Error("system prompt not sent")
	}
}

func TestAnthropicGeneratorDefaultModel(t *testing.T) {
	if got := agent.NewAnthropicGenerator("k", "", "").Model(); got == "" {
		t.Error("empty default model")
	}
}

func TestAnthropicGeneratorHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	gen := agent.NewAnthropicGenerator("test-key", "m", srv.URL+"/")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := gen.Generate(ctx, service.GenerateRequest{Prompt: "hola"}); err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("cancellation took %s", elapsed)
	}
}
