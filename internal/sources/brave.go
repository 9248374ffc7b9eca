package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// BraveClient queries the Brave Search web API.
type BraveClient struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

// NewBraveClient builds a client with a bounded HTTP timeout.
func NewBraveClient(apiKey string) *BraveClient {
	return &BraveClient{
		APIKey:     apiKey,
		Endpoint:   braveEndpoint,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
			PageAge     string `json:"page_age"`
			MetaURL     struct {
				Hostname string `json:"hostname"`
			} `json:"meta_url"`
		} `json:"results"`
	} `json:"web"`
}

func (c *BraveClient) Search(ctx context.Context, query string, limit int) ([]RawResult, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("brave search: SEARCH_API_KEY is required")
	}
	if limit <= 0 || limit > 20 {
		limit = 20
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = braveEndpoint
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.APIKey)

	body, err := doSearch(c.HTTPClient, req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	var parsed braveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("brave search: decode: %w", err)
	}
	out := make([]RawResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		published := r.PageAge
		if published == "" {
			published = r.Age
		}
		out = append(out, RawResult{
			Title:         r.Title,
			URL:           r.URL,
			Domain:        r.MetaURL.Hostname,
			PublishedDate: published,
			Snippet:       r.Description,
		})
	}
	return out, nil
}

func doSearch(client *http.Client, req *http.Request) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
