package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const serperEndpoint = "https://google.serper.dev/search"

// SerperClient queries a Serper-style Google results API.
type SerperClient struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

func NewSerperClient(apiKey string) *SerperClient {
	return &SerperClient{
		APIKey:     apiKey,
		Endpoint:   serperEndpoint,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
	News []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
		Source  string `json:"source"`
	} `json:"news"`
}

func (c *SerperClient) Search(ctx context.Context, query string, limit int) ([]RawResult, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("serper search: SEARCH_API_KEY is required")
	}
	if limit <= 0 {
		limit = 10
	}
	payload, err := json.Marshal(serperRequest{Q: query, Num: limit})
	if err != nil {
		return nil, err
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = serperEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.APIKey)

	body, err := doSearch(c.HTTPClient, req)
	if err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}
	var parsed serperResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("serper search: decode: %w", err)
	}
	out := make([]RawResult, 0, len(parsed.Organic)+len(parsed.News))
	for _, r := range parsed.Organic {
		out = append(out, RawResult{Title: r.Title, URL: r.Link, PublishedDate: r.Date, Snippet: r.Snippet})
	}
	for _, r := range parsed.News {
		out = append(out, RawResult{Title: r.Title, URL: r.Link, PublishedDate: r.Date, Snippet: r.Snippet})
	}
	return out, nil
}

// NewSearcher picks the search collaborator by provider name. An empty API key
// yields nil, which the Aggregator treats as "no sources".
func NewSearcher(provider, apiKey string) Searcher {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "serper":
		return NewSerperClient(apiKey)
	default:
		return NewBraveClient(apiKey)
	}
}
