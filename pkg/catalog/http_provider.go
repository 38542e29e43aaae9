package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

var _ SearchProvider = &HTTPProvider{}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type searchResponse struct {
	Products []Product `json:"products"`
}

func (p *HTTPProvider) Search(ctx context.Context, query string, filters map[string]string) ([]Product, error) {
	params := url.Values{}
	params.Set("q", query)
	for k, v := range filters {
		params.Set(k, v)
	}

	endpoint := fmt.Sprintf("%s/api/products/search?%s", p.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog error: status %d, body: %s", res.StatusCode, string(bodyBytes))
	}

	var parsed searchResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return parsed.Products, nil
}
