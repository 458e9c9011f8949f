package api

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/moveis-planejados/lead-api/internal/geo"
	"github.com/moveis-planejados/lead-api/internal/model"
)

// Origin sources reported by the store locator.
const (
	originQuery = "query"
	originIP    = "ip"
)

type storeOrigin struct {
	model.Coordinate
	Source string `json:"source"`
	City   string `json:"city,omitempty"`
}

type storesResponse struct {
	Origin *storeOrigin        `json:"origin"`
	MaxKm  *float64            `json:"maxKm"`
	Stores []model.RankedStore `json:"stores"`
}

func (s *server) handleStores(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stores == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store directory not configured"})
		return
	}

	q := r.URL.Query()
	origin, err := parseOrigin(q.Get("lat"), q.Get("lng"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid lat/lng", Details: err.Error()})
		return
	}
	maxKm, err := parseMaxKm(q.Get("max_km"), s.cfg.StoreRadiusKm)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid max_km", Details: err.Error()})
		return
	}
	if origin == nil {
		origin = s.locateCaller(r)
	}

	stores, err := s.deps.Stores.Stores(r.Context())
	if err != nil {
		zap.L().Warn("api: list stores", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "store directory unavailable"})
		return
	}

	var at *model.Coordinate
	if origin != nil {
		at = &origin.Coordinate
	}
	ranked := geo.Rank(at, stores, maxKm)

	if q.Get("format") == "geojson" {
		writeGeoJSON(w, ranked)
		return
	}

	resp := storesResponse{Origin: origin, Stores: ranked}
	if origin != nil && !math.IsInf(maxKm, 1) {
		resp.MaxKm = &maxKm
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseOrigin(lat, lng string) (*storeOrigin, error) {
	if lat == "" && lng == "" {
		return nil, nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, err
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, err
	}
	if la < -90 || la > 90 || ln < -180 || ln > 180 {
		return nil, strconv.ErrRange
	}
	return &storeOrigin{Coordinate: model.Coordinate{Lat: la, Lng: ln}, Source: originQuery}, nil
}

// parseMaxKm reads the radius; "none" disables the cutoff.
func parseMaxKm(v string, def float64) (float64, error) {
	switch strings.ToLower(v) {
	case "":
		return def, nil
	case "none":
		return geo.Unbounded, nil
	}
	km, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if km <= 0 || math.IsNaN(km) {
		return 0, strconv.ErrRange
	}
	return km, nil
}

// locateCaller approximates the caller's position from their address. Any
// failure leaves the locator on alphabetical order.
func (s *server) locateCaller(r *http.Request) *storeOrigin {
	if s.deps.IPGeo == nil {
		return nil
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	loc, err := s.deps.IPGeo.Lookup(r.Context(), ip)
	if err != nil {
		zap.L().Debug("api: ip geolocation unavailable", zap.String("ip", ip), zap.Error(err))
		return nil
	}
	return &storeOrigin{
		Coordinate: model.Coordinate{Lat: loc.Latitude, Lng: loc.Longitude},
		Source:     originIP,
		City:       loc.City,
	}
}

func writeGeoJSON(w http.ResponseWriter, stores []model.RankedStore) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(stores))}
	for _, st := range stores {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       st.ID.String(),
			Geometry: geom.NewPointFlat(geom.XY, []float64{st.Coordinate.Lng, st.Coordinate.Lat}),
			Properties: map[string]any{
				"name":       st.Name,
				"city":       st.City,
				"state":      st.State,
				"address":    st.Address,
				"phone":      st.Phone,
				"distanceKm": st.DistanceKm,
			},
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		zap.L().Error("api: encode geojson", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Erro interno do servidor."})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
