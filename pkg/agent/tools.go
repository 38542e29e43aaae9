package agent

import (
	"context"
	"fmt"
	"strings"

	"ai-saleschat-be/pkg/catalog"
	"ai-saleschat-be/pkg/llm"
)

const (
	ToolSearchProducts = "search_products"
	ToolRespond        = "respond"
)

// StepInput is everything a tool gets to work with: the step's goal,
// the observations of earlier steps, and the model the router picked
// for this turn.
type StepInput struct {
	Goal         string
	Observations []string
	Model        string
}

// Tool is one capability a plan step can invoke.
type Tool interface {
	Name() string
	Run(ctx context.Context, input StepInput) (string, error)
}

// SearchTool queries the product catalog. The core never ranks or
// filters itself; the storefront backend owns that.
type SearchTool struct {
	provider catalog.SearchProvider
}

func NewSearchTool(provider catalog.SearchProvider) *SearchTool {
	return &SearchTool{provider: provider}
}

func (t *SearchTool) Name() string { return ToolSearchProducts }

func (t *SearchTool) Run(ctx context.Context, input StepInput) (string, error) {
	products, err := t.provider.Search(ctx, input.Goal, nil)
	if err != nil {
		return "", fmt.Errorf("product search failed: %w", err)
	}
	if len(products) == 0 {
		return "No matching products found for: " + input.Goal, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d products for %q:\n", len(products), input.Goal))
	for _, p := range products {
		sb.WriteString(fmt.Sprintf("- %s (%s, $%.2f)\n", p.Name, p.Category, p.Price))
	}
	return sb.String(), nil
}

// RespondTool asks the model to act on a step goal, feeding in the
// observations gathered so far so later steps build on earlier ones.
type RespondTool struct {
	provider llm.LLMProvider
}

func NewRespondTool(provider llm.LLMProvider) *RespondTool {
	return &RespondTool{provider: provider}
}

func (t *RespondTool) Name() string { return ToolRespond }

func (t *RespondTool) Run(ctx context.Context, input StepInput) (string, error) {
	var sb strings.Builder
	if len(input.Observations) > 0 {
		sb.WriteString("Results gathered so far:\n")
		for _, obs := range input.Observations {
			sb.WriteString(obs)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Task: ")
	sb.WriteString(input.Goal)

	opts := []llm.Option{llm.WithTemperature(0.7)}
	if input.Model != "" {
		opts = append(opts, llm.WithModel(input.Model))
	}
	return t.provider.Generate(ctx, sb.String(), opts...)
}
