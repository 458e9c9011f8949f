package wordpress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moveis-planejados/lead-api/internal/model"
	"github.com/moveis-planejados/lead-api/internal/resilience"
)

func TestListStores_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/wp-json/api/v1/lojas", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"success": true,
			"lojas": [
				{"id": 12, "nome": "Loja Campinas", "cidade": "Campinas", "estado": "SP",
				 "endereco": "Av. Norte-Sul, 100", "telefone": "(19) 3333-0000",
				 "latitude": "-22.9099", "longitude": -47.0626, "imagens": ["a.jpg"]},
				{"id": "13", "nome": "Loja Sem Mapa", "latitude": "", "longitude": null}
			]
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	stores, err := c.ListStores(context.Background())

	require.NoError(t, err)
	require.Len(t, stores, 2)

	rec := stores[0].Record()
	assert.Equal(t, model.StoreID("12"), rec.ID)
	assert.Equal(t, "Loja Campinas", rec.Name)
	assert.Equal(t, "Campinas", rec.City)
	assert.Equal(t, []string{"a.jpg"}, rec.Images)
	assert.InDelta(t, -22.9099, rec.Coordinate.Lat, 1e-9)
	assert.InDelta(t, -47.0626, rec.Coordinate.Lng, 1e-9)

	rec = stores[1].Record()
	assert.Equal(t, model.StoreID("13"), rec.ID)
	assert.True(t, rec.Coordinate.IsZero())
}

func TestListStores_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantTransient bool
	}{
		{"success false", http.StatusOK, `{"success":false,"lojas":[]}`, "reported failure", false},
		{"malformed", http.StatusOK, `not json`, "unmarshal stores", false},
		{"not found", http.StatusNotFound, `{"code":"rest_no_route"}`, "unexpected status 404", false},
		{"unavailable", http.StatusServiceUnavailable, `maintenance`, "unexpected status 503", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).ListStores(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
		})
	}
}

func TestCreateLead_Success(t *testing.T) {
	t.Parallel()

	storeID := 12
	cardID := "987654"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wp-json/api/v1/leads", r.URL.Path)
		assert.Equal(t, "Bearer wp-token", r.Header.Get("Authorization"))

		var got map[string]any
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "Maria", got["nome"])
		assert.Equal(t, "Cozinha, Sala", got["interesse"])
		assert.Equal(t, "R$ 20 mil", got["expectativa_investimento"])
		assert.Equal(t, float64(12), got["loja_id"])
		assert.Equal(t, "987654", got["pipefy_card_id"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success":true,"id":555}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithToken("wp-token"))
	resp, err := c.CreateLead(context.Background(), LeadRecord{
		Name:            "Maria",
		Email:           "maria@example.com",
		Phone:           "11999990000",
		Interests:       "Cozinha, Sala",
		InvestmentRange: "R$ 20 mil",
		StoreID:         &storeID,
		CRMCardID:       &cardID,
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, model.StoreID("555"), resp.ID)
}

func TestCreateLead_OmitsOptionalIDs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))

		var got map[string]any
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.NotContains(t, got, "loja_id")
		assert.NotContains(t, got, "pipefy_card_id")
		assert.Equal(t, "", got["cidade"])

		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateLead(context.Background(), LeadRecord{Name: "Maria"})
	require.NoError(t, err)
}

func TestCreateLead_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"code":"internal_server_error"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateLead(context.Background(), LeadRecord{Name: "Maria"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create lead: unexpected status 500")
	assert.True(t, resilience.IsTransient(err))
}

func TestCreateLead_EmptyBodyIsDelivered(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"created without body", http.StatusCreated, ``},
		{"html body", http.StatusOK, `<html>ok</html>`},
		{"no success field", http.StatusOK, `{"id":77}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			resp, err := NewClient(srv.URL).CreateLead(context.Background(), LeadRecord{Name: "Maria"})
			require.NoError(t, err)
			assert.True(t, resp.Success)
		})
	}
}

func TestCreateLead_RefusedIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"message":"erro"}`)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).CreateLead(context.Background(), LeadRecord{Name: "Maria"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "refused: erro")
	assert.False(t, resilience.IsTransient(err))
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))

	// "ã" is two bytes; cutting after its first byte must drop it whole.
	got := truncate("Joãozinho", 3)
	assert.Equal(t, "Jo...", got)
	assert.True(t, utf8.ValidString(got))
}

func TestFloat_Decode(t *testing.T) {
	tests := []struct {
		body string
		want float64
	}{
		{`-22.5`, -22.5},
		{`"-22.5"`, -22.5},
		{`"-22,5"`, -22.5},
		{`""`, 0},
		{`null`, 0},
	}
	for _, tt := range tests {
		var f Float
		require.NoError(t, json.Unmarshal([]byte(tt.body), &f), tt.body)
		assert.InDelta(t, tt.want, float64(f), 1e-9, tt.body)
	}

	var f Float
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &f))
}
