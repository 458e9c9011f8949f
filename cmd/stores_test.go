package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moveis-planejados/lead-api/internal/config"
	"github.com/moveis-planejados/lead-api/internal/geo"
	"github.com/moveis-planejados/lead-api/internal/model"
	"github.com/moveis-planejados/lead-api/pkg/ipgeo"
)

func newNearestCmd() *cobra.Command {
	c := &cobra.Command{Use: "nearest"}
	c.Flags().Float64("lat", 0, "")
	c.Flags().Float64("lng", 0, "")
	return c
}

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestResolveOrigin_Flags(t *testing.T) {
	withConfig(t, testConfig(t))

	c := newNearestCmd()
	require.NoError(t, c.Flags().Parse([]string{"--lat", "-23.55", "--lng", "-46.63"}))

	origin, err := resolveOrigin(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, origin)
	assert.Equal(t, model.Coordinate{Lat: -23.55, Lng: -46.63}, *origin)
}

func TestResolveOrigin_FlagErrors(t *testing.T) {
	withConfig(t, testConfig(t))

	tests := []struct {
		name string
		args []string
	}{
		{"lat only", []string{"--lat", "-23.55"}},
		{"lng only", []string{"--lng", "-46.63"}},
		{"out of range", []string{"--lat", "95", "--lng", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newNearestCmd()
			require.NoError(t, c.Flags().Parse(tt.args))
			_, err := resolveOrigin(context.Background(), c)
			assert.Error(t, err)
		})
	}
}

func TestResolveOrigin_NoFlagsNoIPGeo(t *testing.T) {
	withConfig(t, testConfig(t))

	origin, err := resolveOrigin(context.Background(), newNearestCmd())
	require.NoError(t, err)
	assert.Nil(t, origin)
}

func TestResolveOrigin_IPGeo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ip": "200.160.2.3", "city": "Curitiba", "region": "Paraná",
			"country_code": "BR", "latitude": -25.43, "longitude": -49.27,
		})
	}))
	defer srv.Close()

	c := testConfig(t)
	c.IPGeo = config.IPGeoConfig{Enabled: true, BaseURL: srv.URL}
	withConfig(t, c)

	origin, err := resolveOrigin(context.Background(), newNearestCmd())
	require.NoError(t, err)
	require.NotNil(t, origin)
	assert.Equal(t, model.Coordinate{Lat: -25.43, Lng: -49.27}, *origin)
}

func TestResolveOrigin_IPGeoFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testConfig(t)
	c.IPGeo = config.IPGeoConfig{Enabled: true, BaseURL: srv.URL}
	withConfig(t, c)

	origin, err := resolveOrigin(context.Background(), newNearestCmd())
	require.NoError(t, err)
	assert.Nil(t, origin)
}

func TestSelfLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ip":"1.1.1.1","latitude":-22.9,"longitude":-47.06}`))
	}))
	defer srv.Close()

	locator := geo.NewLocator(selfLookup(ipgeo.NewClient(ipgeo.WithBaseURL(srv.URL), ipgeo.WithRateLimit(0))))
	got, err := locator.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Coordinate{Lat: -22.9, Lng: -47.06}, got)
}

func TestLoadStores_SeedFile(t *testing.T) {
	withConfig(t, testConfig(t))

	stores, err := loadStores(context.Background())
	require.NoError(t, err)
	assert.Len(t, stores, 2)
}

func TestLoadStores_RequiresSource(t *testing.T) {
	c := testConfig(t)
	c.Directory.SeedFile = ""
	withConfig(t, c)

	_, err := loadStores(context.Background())
	assert.Error(t, err)
}

func TestFormatStores(t *testing.T) {
	ranked := []model.RankedStore{
		{StoreRecord: model.StoreRecord{ID: "12", Name: "Loja Campinas", City: "Campinas", State: "SP"}, DistanceKm: 3.14},
		{StoreRecord: model.StoreRecord{ID: "7", Name: "Loja Curitiba", City: "Curitiba", State: "PR"}, DistanceKm: 321.5},
	}

	var buf bytes.Buffer
	formatStores(&buf, ranked, true)
	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Loja Campinas")
	assert.Contains(t, out, "3.1 km")
	assert.Contains(t, out, "321.5 km")

	buf.Reset()
	formatStores(&buf, ranked, false)
	assert.NotContains(t, buf.String(), " km")
}

func TestWriteStores_JSON(t *testing.T) {
	ranked := []model.RankedStore{{StoreRecord: model.StoreRecord{ID: "12", Name: "Loja Campinas"}, DistanceKm: 1.5}}

	var buf bytes.Buffer
	require.NoError(t, writeStores(&buf, ranked, true, true))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "12", got[0]["id"])
	assert.Equal(t, 1.5, got[0]["distanceKm"])
}
