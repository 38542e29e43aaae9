package catalog

import "context"

// Product is the minimal shape the orchestration core needs from the
// storefront backend.
type Product struct {
	Id       string                 `json:"id"`
	Name     string                 `json:"name"`
	Price    float64                `json:"price"`
	Category string                 `json:"category"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SearchProvider is an opaque capability: the core calls it but never
// implements ranking or inventory logic itself.
type SearchProvider interface {
	Search(ctx context.Context, query string, filters map[string]string) ([]Product, error)
}
