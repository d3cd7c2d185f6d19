package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cortexai/analytics/internal/analytics"
	"github.com/cortexai/analytics/internal/service"
)

// fakeGenerator answers with a canned reply, or blocks until ctx is done
type fakeGenerator struct {
	out   string
	err   error
	block bool
	calls atomic.Int32
	last  service.GenerateRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req service.GenerateRequest) (string, error) {
	f.calls.Add(1)
	f.last = req
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, f.err
}

func TestRuleSourceDecisive(t *testing.T) {
	r := service.NewRuleSource()

	tests := []struct {
		query string
		want  analytics.Intent
	}{
		{"Compara IMOR INVEX vs Sistema 2024", analytics.IntentComparison},
		{"ROE de BBVA versus Banorte", analytics.IntentComparison},
		{"top 5 bancos por ICAP en 2024", analytics.IntentRanking},
		{"ranking de bancos por ROE", analytics.IntentRanking},
		{"IMOR de INVEX últimos 3 meses", analytics.IntentEvolution},
		{"ICAP de Santander en 2023", analytics.IntentEvolution},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, decisive := r.Evaluate(tt.query, nil)
			if !decisive {
				t.Fatalf("expected a decisive rule for %q", tt.query)
			}
			if got.Intent != tt.want {
				t.Errorf("intent = %s, want %s (%s)", got.Intent, tt.want, got.Reasoning)
			}
			if got.Confidence < 0.9 {
				t.Errorf("decisive confidence %.2f < 0.9", got.Confidence)
			}
		})
	}
}

func TestRuleSourceSoft(t *testing.T) {
	r := service.NewRuleSource()

	tests := []struct {
		query string
		hint  *analytics.Entities
		want  analytics.Intent
		conf  float64
	}{
		{"evolución del IMOR de INVEX", nil, analytics.IntentEvolution, 0.6},
		{"¿Cuál es el IMOR de Banorte?", nil, analytics.IntentPointValue, 0.6},
		{"banco con mayor ICAP", nil, analytics.IntentRanking, 0.55},
		{"IMOR de INVEX y BBVA", &analytics.Entities{Banks: []string{"INVEX", "BBVA"}}, analytics.IntentComparison, 0.6},
		{"IMOR", nil, analytics.IntentPointValue, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, decisive := r.Evaluate(tt.query, tt.hint)
			if decisive {
				t.Fatalf("%q should not hit a decisive rule", tt.query)
			}
			if got.Intent != tt.want || got.Confidence != tt.conf {
				t.Errorf("got %s/%.2f, want %s/%.2f", got.Intent, got.Confidence, tt.want, tt.conf)
			}
			if got.Source != "rules" {
				t.Errorf("source = %q", got.Source)
			}
		})
	}
}

func classifierWith(gen service.Generator, enabled bool, timeout time.Duration) *service.IntentClassifier {
	var llm service.IntentSource
	if gen != nil {
		llm = service.NewLLMSource(gen, service.LLMOptions{Model: "test-model"})
	}
	return service.NewIntentClassifier(service.NewRuleSource(), llm, service.ClassifierConfig{
		LLMFallbackEnabled:       enabled,
		RulesConfidenceThreshold: 0.9,
		LLMTimeout:               timeout,
	})
}

func TestClassifierSkipsLLMForDecisiveRules(t *testing.T) {
	gen := &fakeGenerator{out: `{"intent":"ranking","confidence":0.99,"reasoning":"x"}`}
	c := classifierWith(gen, true, time.Second)

	got := c.Classify(context.Background(), "Compara IMOR INVEX vs Sistema 2024", nil)
	if got.Intent != analytics.IntentComparison {
		t.Errorf("intent = %s", got.Intent)
	}
	if n := gen.calls.Load(); n != 0 {
		t.Errorf("LLM called %d times for a decisive rule", n)
	}
}

func TestClassifierUsesMoreConfidentLLM(t *testing.T) {
	gen := &fakeGenerator{out: "```json\n{\"intent\": \"evolution\", \"confidence\": 0.8, \"reasoning\": \"trend\"}\n```"}
	c := classifierWith(gen, true, time.Second)

	got := c.Classify(context.Background(), "IMOR de INVEX", nil)
	if got.Intent != analytics.IntentEvolution || got.Source != "llm" {
		t.Errorf("got %+v, want LLM evolution", got)
	}
	if gen.last.Model != "test-model" {
		t.Errorf("model = %q", gen.last.Model)
	}
}

func TestClassifierRulesWinTies(t *testing.T) {
	gen := &fakeGenerator{out: `{"intent":"evolution","confidence":0.5,"reasoning":"guess"}`}
	c := classifierWith(gen, true, time.Second)

	got := c.Classify(context.Background(), "IMOR", nil)
	if got.Intent != analytics.IntentPointValue || got.Source != "rules" {
		t.Errorf("tie should keep the rule result, got %+v", got)
	}
	if gen.calls.Load() != 1 {
		t.Error("LLM should have been consulted")
	}
}

func TestClassifierLLMTimeoutReturnsRuleResult(t *testing.T) {
	gen := &fakeGenerator{block: true}
	c := classifierWith(gen, true, 20*time.Millisecond)

	query := "¿Cuál es el IMOR de Banorte?"
	want, _ := service.NewRuleSource().Evaluate(query, nil)

	start := time.Now()
	got := c.Classify(context.Background(), query, nil)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("classification blocked for %s", elapsed)
	}
	if got != want {
		t.Errorf("got %+v, want rule result %+v", got, want)
	}
}

func TestClassifierParentCancellationPropagates(t *testing.T) {
	gen := &fakeGenerator{block: true}
	c := classifierWith(gen, true, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan analytics.ParsedIntent, 1)
	go func() { done <- c.Classify(ctx, "IMOR", nil) }()

	select {
	case got := <-done:
		if got.Source != "rules" {
			t.Errorf("expected rule fallback, got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not reach the LLM call")
	}
}

func TestClassifierFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		gen     *fakeGenerator
		enabled bool
		calls   int32
	}{
		{"disabled", &fakeGenerator{out: `{"intent":"ranking","confidence":1}`}, false, 0},
		{"llm error", &fakeGenerator{err: errors.New("503")}, true, 1},
		{"garbage answer", &fakeGenerator{out: "I think it's a ranking"}, true, 1},
		{"unknown intent", &fakeGenerator{out: `{"intent":"forecast","confidence":0.99}`}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classifierWith(tt.gen, tt.enabled, time.Second)
			got := c.Classify(context.Background(), "IMOR", nil)
			if got.Source != "rules" || got.Intent != analytics.IntentPointValue {
				t.Errorf("got %+v, want rule result", got)
			}
			if n := tt.gen.calls.Load(); n != tt.calls {
				t.Errorf("LLM calls = %d, want %d", n, tt.calls)
			}
		})
	}

	t.Run("no credential", func(t *testing.T) {
		c := classifierWith(nil, true, time.Second)
		if got := c.Classify(context.Background(), "IMOR", nil); got.Source != "rules" {
			t.Errorf("got %+v", got)
		}
	})
}

func TestLLMSourceClampsConfidence(t *testing.T) {
	src := service.NewLLMSource(&fakeGenerator{out: `{"intent":"Ranking","confidence":1.7,"reasoning":"top"}`}, service.LLMOptions{})
	got, err := src.Classify(context.Background(), "quien lidera", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Intent != analytics.IntentRanking || got.Confidence != 1 {
		t.Errorf("got %+v", got)
	}
}
