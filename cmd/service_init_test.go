package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moveis-planejados/lead-api/internal/cache"
	"github.com/moveis-planejados/lead-api/internal/config"
	"github.com/moveis-planejados/lead-api/internal/resilience"
)

const seedYAML = `
stores:
  - id: 12
    name: Loja Campinas
    city: Campinas
    state: SP
    coordinate:
      lat: -22.9056
      lng: -47.0608
  - id: 7
    name: Loja Curitiba
    city: Curitiba
    state: PR
    coordinate:
      lat: -25.4284
      lng: -49.2733
`

const leadBody = `{"nome":"Maria Souza","email":"maria@example.com","telefone":"(19) 99999-0000","lojaId":12}`

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lojas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Port:             8080,
			CORSOrigins:      []string{"*"},
			ReadTimeoutSecs:  10,
			WriteTimeoutSecs: 30,
		},
		Log:        config.LogConfig{Level: "info", Format: "json"},
		Directory:  config.DirectoryConfig{SeedFile: writeSeed(t), CacheTTL: time.Minute},
		Revalidate: config.RevalidateConfig{Secret: "s3cret"},
		Lead:       config.LeadConfig{UpstreamTimeout: 2 * time.Second},
		Breaker:    config.BreakerConfig{FailureThreshold: 5, ResetTimeoutSecs: 30},
		Journal: config.JournalConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(t.TempDir(), "journal.db"),
		},
	}
}

func postLead(t *testing.T, h http.Handler) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(leadBody))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestInitService_SeedFileWithoutUpstreams(t *testing.T) {
	c := testConfig(t)

	env, err := initService(context.Background(), c)
	require.NoError(t, err)
	defer env.Close()

	assert.IsType(t, &cache.Memory{}, env.Cache)
	assert.NotNil(t, env.Directory)
	assert.Nil(t, env.Journal)
	assert.Nil(t, env.IPGeo)

	body := postLead(t, buildRouter(c, env))
	assert.Equal(t, true, body["success"])
	assert.Nil(t, body["pipefyCardId"])
	assert.Equal(t, float64(12), body["lojaId"])
}

func TestInitService_StoresAndRevalidate(t *testing.T) {
	c := testConfig(t)
	env, err := initService(context.Background(), c)
	require.NoError(t, err)
	defer env.Close()
	h := buildRouter(c, env)

	req := httptest.NewRequest(http.MethodGet, "/api/stores?lat=-22.90&lng=-47.06", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var stores struct {
		Stores []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"stores"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stores))
	require.NotEmpty(t, stores.Stores)
	assert.Equal(t, "Loja Campinas", stores.Stores[0].Name)

	// The store list is now cached under the directory tag.
	mem := env.Cache.(*cache.Memory)
	assert.Equal(t, 1, mem.Len())

	req = httptest.NewRequest(http.MethodPost, "/api/revalidate", strings.NewReader(`{"secret":"s3cret","tag":"lojas"}`))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 0, mem.Len())
}

func TestInitService_JournalsFailedDelivery(t *testing.T) {
	pipefySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer pipefySrv.Close()

	c := testConfig(t)
	c.Pipefy = config.PipefyConfig{Token: "tok", PipeID: "301", BaseURL: pipefySrv.URL}
	c.Journal.Enabled = true

	env, err := initService(context.Background(), c)
	require.NoError(t, err)
	defer env.Close()
	require.NotNil(t, env.Journal)

	body := postLead(t, buildRouter(c, env))
	assert.Equal(t, true, body["success"])
	assert.Nil(t, body["pipefyCardId"])

	n, err := env.Journal.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInitService_BadSeedFile(t *testing.T) {
	c := testConfig(t)
	c.Directory.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := initService(context.Background(), c)
	assert.Error(t, err)
}

func TestInitService_BadRedisURL(t *testing.T) {
	c := testConfig(t)
	c.Cache.RedisURL = "not a url"

	_, err := initService(context.Background(), c)
	assert.Error(t, err)
}

func TestInitDirectory_NoneConfigured(t *testing.T) {
	c := testConfig(t)
	c.Directory.SeedFile = ""

	dir, err := initDirectory(c, nil)
	require.NoError(t, err)
	assert.Nil(t, dir)
}

func TestInitBreakers_ReportsTransitions(t *testing.T) {
	c := testConfig(t)
	c.Breaker.FailureThreshold = 1

	env, err := initService(context.Background(), c)
	require.NoError(t, err)
	defer env.Close()

	br := env.Breakers.Get("pipefy")
	_ = br.Do(context.Background(), func(context.Context) error {
		return resilience.NewTransientError(assert.AnError, http.StatusBadGateway)
	})
	assert.Equal(t, resilience.Open, br.State())

	rr := httptest.NewRecorder()
	env.Metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), `lead_breaker_state{upstream="pipefy"} 2`)
}

func TestBreakerGauge(t *testing.T) {
	assert.Equal(t, 0.0, breakerGauge(resilience.Closed))
	assert.Equal(t, 1.0, breakerGauge(resilience.HalfOpen))
	assert.Equal(t, 2.0, breakerGauge(resilience.Open))
}
