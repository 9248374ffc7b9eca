package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"factcheck-backend/internal/analyses"
	"factcheck-backend/internal/bias"
	"factcheck-backend/internal/claims"
	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/llm/anthropic"
	"factcheck-backend/internal/llm/openai"
	"factcheck-backend/internal/ocr"
	"factcheck-backend/internal/services/health"
	"factcheck-backend/internal/shared/config"
	"factcheck-backend/internal/shared/telemetry"
	"factcheck-backend/internal/shared/util"
	"factcheck-backend/internal/sources"
	"factcheck-backend/internal/trust"
	"factcheck-backend/internal/verify"
)

// Components is the model and search wiring behind the pipeline. It has no
// database or queue, so the CLI can run an analysis with it alone.
type Components struct {
	Pipeline       *analyses.Pipeline
	Chat           llm.Completer
	Backends       *llm.BackendCache
	SearchCache    *sources.RedisCache
	searchProvider string
	hasExtractor   bool
}

// BuildComponents wires OCR, extraction, search, the verifier roster and the
// bias panel from cfg. Absent keys leave the matching collaborator nil.
func BuildComponents(ctx context.Context, cfg config.Config) (*Components, error) {
	c := &Components{Backends: llm.NewBackendCache()}

	table, err := sources.LoadCredibilityTable(cfg.CredibilityFile)
	if err != nil {
		return nil, err
	}

	agg := &sources.Aggregator{
		Searcher: sources.NewSearcher(cfg.SearchProvider, cfg.SearchAPIKey),
		Table:    table,
		CacheTTL: cfg.SearchCacheTTL,
	}
	if agg.Searcher != nil {
		c.searchProvider = cfg.SearchProvider
	}
	if url := strings.TrimSpace(cfg.RedisURL); url != "" {
		cache, err := sources.NewRedisCache(url)
		if err != nil {
			return nil, err
		}
		if err := cache.Ping(ctx); err != nil {
			telemetry.Warn("bootstrap.search_cache", map[string]any{"error": err.Error(), "enabled": false})
			_ = cache.Close()
		} else {
			c.SearchCache = cache
			agg.Cache = cache
		}
	}

	p := &analyses.Pipeline{
		Sources:     agg,
		Engine:      trust.Engine{},
		SearchLimit: cfg.SearchResultLimit,
		Timeout:     cfg.JobTimeout,
	}

	if cfg.OpenAIAPIKey != "" {
		spec := config.BackendSpec{Name: cfg.OCRModel, Provider: "openai", Model: cfg.OCRModel, BaseURL: cfg.OpenAIBaseURL}
		vision, err := c.backend(cfg, spec)
		if err != nil {
			return nil, err
		}
		p.OCR = ocr.NewVisionReader(vision, cfg.OCRModel, cfg.ModelRetryAttempts, cfg.ModelCallTimeout)

		spec = config.BackendSpec{Name: cfg.ExtractModel, Provider: "openai", Model: cfg.ExtractModel, BaseURL: cfg.OpenAIBaseURL}
		extractor, err := c.backend(cfg, spec)
		if err != nil {
			return nil, err
		}
		p.Extractor = claims.NewModelExtractor(llm.WithRetry(extractor, cfg.ExtractModel, cfg.ModelRetryAttempts, cfg.ModelCallTimeout), cfg.ExtractModel)
		c.hasExtractor = true

		spec = config.BackendSpec{Name: cfg.ChatModel, Provider: "openai", Model: cfg.ChatModel, BaseURL: cfg.OpenAIBaseURL}
		chatModel, err := c.backend(cfg, spec)
		if err != nil {
			return nil, err
		}
		c.Chat = llm.WithRetry(chatModel, cfg.ChatModel, cfg.ModelRetryAttempts, cfg.ModelCallTimeout)
	}

	roster, models, err := c.roster(cfg)
	if err != nil {
		return nil, err
	}
	p.Verifier = verify.NewVerifier(roster)
	p.Bias = bias.NewAggregator(models)

	c.Pipeline = p
	telemetry.Info("bootstrap.components", map[string]any{
		"ocr":           p.OCR != nil,
		"extractor":     c.hasExtractor,
		"verifier":      seatNames(roster),
		"bias_models":   len(models),
		"search":        c.searchProvider,
		"search_cache":  c.SearchCache != nil,
		"verifier_mode": cfg.VerifierMode,
	})
	return c, nil
}

// roster resolves the verifier seats and the bias panel. The bias panel uses
// each distinct backend once and is never padded, so with fewer than three
// backends it runs perspectives x available models; verifier seats may add
// personas on top.
func (c *Components) roster(cfg config.Config) ([]verify.Backend, []bias.Model, error) {
	specs, err := config.LoadRoster(cfg)
	if err != nil {
		return nil, nil, err
	}
	backends := make([]verify.Backend, 0, len(specs))
	models := make([]bias.Model, 0, len(specs))
	for _, spec := range specs {
		client, err := c.backend(cfg, spec)
		if errors.Is(err, llm.ErrNotConfigured) {
			telemetry.Warn("bootstrap.roster.skipped", map[string]any{"backend": spec.Name, "error": err.Error()})
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		client = llm.WithRetry(client, spec.Name, cfg.ModelRetryAttempts, cfg.ModelCallTimeout)
		backends = append(backends, verify.Backend{Name: spec.Name, Client: client})
		models = append(models, bias.Model{Name: spec.Name, Client: client})
	}
	if len(backends) == 0 {
		return nil, nil, nil
	}
	if cfg.VerifierMode == config.VerifierModePersona {
		first := backends[0]
		return verify.PersonaRoster(first.Name, first.Client, verify.DefaultRosterSize), models[:1], nil
	}
	return verify.FillRoster(backends, verify.DefaultRosterSize), models, nil
}

// backend returns the throttled client for spec, creating it once per process
// for each provider, model, endpoint and key.
func (c *Components) backend(cfg config.Config, spec config.BackendSpec) (llm.Completer, error) {
	apiKey := spec.APIKey(cfg)
	return c.Backends.GetOrCreate(backendKey(spec, apiKey), func() (llm.Completer, error) {
		var (
			client llm.Completer
			err    error
		)
		switch spec.Provider {
		case "anthropic":
			client, err = newAnthropic(apiKey, spec.Model, spec.BaseURL)
		default:
			client, err = newOpenAI(apiKey, spec.Model, spec.BaseURL)
		}
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", spec.Name, err)
		}
		return llm.WithThrottle(client, cfg.ModelRateLimitRPS), nil
	})
}

// backendKey never embeds the raw key.
func backendKey(spec config.BackendSpec, apiKey string) string {
	return spec.Provider + "/" + spec.Model + "@" + spec.BaseURL + "#" + util.ShortHash(apiKey, 12)
}

func newOpenAI(apiKey, model, baseURL string) (llm.Completer, error) {
	client, err := openai.NewClient(apiKey, model, baseURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newAnthropic(apiKey, model, baseURL string) (llm.Completer, error) {
	client, err := anthropic.NewClient(apiKey, model, baseURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Health describes the configured components for the /health endpoint.
func (c *Components) Health() *health.Service {
	hs := health.NewService()
	if c == nil || c.Pipeline == nil {
		return hs
	}
	hs.OCR = c.Pipeline.OCR != nil
	hs.Extractor = c.hasExtractor
	hs.Chat = c.Chat != nil
	hs.SearchProvider = c.searchProvider
	if c.Pipeline.Verifier != nil {
		hs.VerifierSeats = seatNames(c.Pipeline.Verifier.Backends)
		for _, b := range c.Pipeline.Verifier.Backends {
			if b.Simulated() {
				hs.SimulatedSeats++
			}
		}
	}
	if c.SearchCache != nil {
		hs.Checks["redis"] = health.PingFunc(c.SearchCache.Ping)
	}
	return hs
}

// Close releases the search cache connection.
func (c *Components) Close() {
	if c != nil && c.SearchCache != nil {
		_ = c.SearchCache.Close()
	}
}

func seatNames(backends []verify.Backend) []string {
	out := make([]string, 0, len(backends))
	for _, b := range backends {
		out = append(out, b.Name)
	}
	return out
}
