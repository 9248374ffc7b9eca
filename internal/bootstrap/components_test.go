package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/shared/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:           "dev",
		LocalStoreDir: t.TempDir(),
		OCRModel:      "gpt-4o-mini",
		ExtractModel:  "gpt-4o-mini",
		ChatModel:     "gpt-4o-mini",
		VerifierMode:  config.VerifierModeMultiBackend,
	}
}

func TestBuildComponentsWithoutKeys(t *testing.T) {
	c, err := BuildComponents(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Pipeline.OCR)
	assert.Nil(t, c.Pipeline.Extractor)
	assert.Nil(t, c.Chat)
	assert.Empty(t, c.Pipeline.Verifier.Backends)

	report := c.Health().Status(context.Background())
	assert.True(t, report.OK)
	assert.False(t, report.Ready)
	assert.Equal(t, "disabled", report.Search)
	assert.NotEmpty(t, report.Hint)
}

func TestBuildComponentsFillsRoster(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAIAPIKey = "sk-test"

	c, err := BuildComponents(context.Background(), cfg)
	require.NoError(t, err)

	require.NotNil(t, c.Pipeline.OCR)
	require.NotNil(t, c.Chat)
	require.Len(t, c.Pipeline.Verifier.Backends, 3)
	assert.False(t, c.Pipeline.Verifier.Backends[0].Simulated())
	assert.False(t, c.Pipeline.Verifier.Backends[1].Simulated())
	assert.True(t, c.Pipeline.Verifier.Backends[2].Simulated())

	report := c.Health().Status(context.Background())
	assert.True(t, report.Ready)
	assert.Equal(t, 1, report.Verifier.Simulated)

	// the bias panel uses only the distinct backends, no simulated fill
	require.NotNil(t, c.Pipeline.Bias)
	assert.Len(t, c.Pipeline.Bias.Models, 2)
}

func TestBuildComponentsPersonaMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAIAPIKey = "sk-test"
	cfg.VerifierMode = config.VerifierModePersona

	c, err := BuildComponents(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, c.Pipeline.Verifier.Backends, 3)
	for _, b := range c.Pipeline.Verifier.Backends {
		assert.True(t, b.Simulated(), b.Name)
	}
	require.NotNil(t, c.Pipeline.Bias)
	assert.Len(t, c.Pipeline.Bias.Models, 1)
}

func TestBuildComponentsRejectsBadCredibilityFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.CredibilityFile = "/does/not/exist.yaml"

	_, err := BuildComponents(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuildServesHealth(t *testing.T) {
	app, err := Build(testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Presigner)
	assert.Nil(t, app.Queue)
	assert.Equal(t, app.AnalysesService, app.Processor())

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["ready"])
}

func TestBackendCacheSeparatesKeys(t *testing.T) {
	t.Setenv("FACTCHECK_KEY_A", "sk-a")
	t.Setenv("FACTCHECK_KEY_B", "sk-b")
	cfg := testConfig(t)
	c := &Components{Backends: llm.NewBackendCache()}

	specA := config.BackendSpec{Name: "a", Provider: "openai", Model: "gpt-4o-mini", APIKeyEnv: "FACTCHECK_KEY_A"}
	specB := config.BackendSpec{Name: "b", Provider: "openai", Model: "gpt-4o-mini", APIKeyEnv: "FACTCHECK_KEY_B"}

	first, err := c.backend(cfg, specA)
	require.NoError(t, err)
	second, err := c.backend(cfg, specB)
	require.NoError(t, err)
	again, err := c.backend(cfg, specA)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Backends.Len())
	assert.NotSame(t, first, second)
	assert.Same(t, first, again)
	assert.NotContains(t, backendKey(specA, "sk-a"), "sk-a")
}
