package router

import (
	"io"
	"log"
	"strings"
	"testing"

	"ai-saleschat-be/internal/constant"
)

func testConfig() Config {
	return Config{
		DefaultModel:     "llama3",
		PremiumModel:     "qwen2.5:32b",
		LongMessageChars: 400,
	}
}

func newTestRouter() *Router {
	return NewRouter(testConfig(), log.New(io.Discard, "", 0))
}

func TestExtractSignalsMultiStep(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		multiStep bool
	}{
		{"plain question", "what teas do you have?", false},
		{"then keyword", "I want something relaxing then something for pain", true},
		{"after that", "add the chamomile, after that show me my cart", true},
		{"step by step", "walk me through checkout step by step", true},
		{"then inside a word is still a hit", "strengthen my order", true},
		{"next as connective", "show me the green teas. next, the black ones", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ExtractSignals(tt.message, nil)
			if s.MultiStep != tt.multiStep {
				t.Errorf("MultiStep = %v, want %v", s.MultiStep, tt.multiStep)
			}
		})
	}
}

func TestExtractSignalsCategory(t *testing.T) {
	tests := []struct {
		message  string
		category Category
	}{
		{"what teas help with sleep?", CategoryQA},
		{"write a sql query for my orders", CategoryCode},
		{"explain the difference between green and white tea", CategoryReasoning},
		{"summarize my order history", CategoryAnalysis},
		{"write a poem about oolong", CategoryCreative},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			s := ExtractSignals(tt.message, nil)
			if s.Category != tt.category {
				t.Errorf("Category = %s, want %s", s.Category, tt.category)
			}
		})
	}
}

func TestRouteOverrideWins(t *testing.T) {
	r := newTestRouter()

	ctx := map[string]interface{}{constant.ContextKeyModelOverride: "mistral"}
	d := r.Route("explain why oolong costs more", ctx)

	if d.Primary != "mistral" {
		t.Errorf("Primary = %s, want the session override", d.Primary)
	}
	if d.Fallback != "llama3" {
		t.Errorf("Fallback = %s, want the default model", d.Fallback)
	}
}

func TestRouteHeavyCategoryGetsPremium(t *testing.T) {
	r := newTestRouter()

	d := r.Route("explain why oolong costs more than green tea", nil)
	if d.Primary != "qwen2.5:32b" {
		t.Errorf("Primary = %s, want premium for reasoning", d.Primary)
	}
	if d.Fallback != "llama3" {
		t.Errorf("Fallback = %s, want default", d.Fallback)
	}
}

func TestRouteLongMessageGetsPremium(t *testing.T) {
	r := newTestRouter()

	long := strings.Repeat("I have a very detailed question about tea. ", 12)
	d := r.Route(long, nil)
	if d.Primary != "qwen2.5:32b" {
		t.Errorf("Primary = %s, want premium for a long message", d.Primary)
	}
}

func TestRouteDefault(t *testing.T) {
	r := newTestRouter()

	d := r.Route("hello", nil)
	if d.Primary != "llama3" {
		t.Errorf("Primary = %s, want default", d.Primary)
	}
	if d.Fallback != "qwen2.5:32b" {
		t.Errorf("Fallback = %s, want premium as backup", d.Fallback)
	}
	if d.MultiStep {
		t.Error("a greeting must not flag multi-step")
	}
}

func TestRouteMultiStepScenario(t *testing.T) {
	r := newTestRouter()

	d := r.Route("I want something relaxing then something for pain", nil)
	if !d.MultiStep {
		t.Fatal("the multi-step keyword must flag the request for the agent")
	}
}

func TestRouteCategoryModelOverridesSplit(t *testing.T) {
	cfg := testConfig()
	cfg.CategoryModels = map[Category]string{CategoryCode: "codellama"}
	r := NewRouter(cfg, log.New(io.Discard, "", 0))

	d := r.Route("debug this stack trace for me", nil)
	if d.Primary != "codellama" {
		t.Errorf("Primary = %s, want the per-category model", d.Primary)
	}
}

func TestReloadSwapsPolicy(t *testing.T) {
	r := newTestRouter()

	before := r.Route("hello", nil)
	if before.Primary != "llama3" {
		t.Fatalf("Primary = %s before reload", before.Primary)
	}

	cfg := testConfig()
	cfg.DefaultModel = "gemma2"
	r.Reload(cfg)

	after := r.Route("hello", nil)
	if after.Primary != "gemma2" {
		t.Errorf("Primary = %s after reload, want gemma2", after.Primary)
	}
	if snap := r.Snapshot(); snap.DefaultModel != "gemma2" {
		t.Errorf("Snapshot default = %s, want gemma2", snap.DefaultModel)
	}
}
