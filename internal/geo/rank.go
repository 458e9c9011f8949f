package geo

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/moveis-planejados/lead-api/internal/model"
)

// RankByDistance returns the stores within maxKm of origin, nearest first.
// Stores at equal distance keep their input order. Stores at (0,0) are ranked
// like any other coordinate.
func RankByDistance(origin model.Coordinate, stores []model.StoreRecord, maxKm float64) []model.RankedStore {
	ranked := make([]model.RankedStore, 0, len(stores))
	for _, s := range stores {
		d := Distance(origin, s.Coordinate)
		if d > maxKm {
			continue
		}
		ranked = append(ranked, model.RankedStore{StoreRecord: s, DistanceKm: d})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked
}

// SortByName returns a copy of stores ordered by name using Brazilian
// Portuguese collation, so "Águas Claras" sorts among the A's. Equal names keep
// their input order.
func SortByName(stores []model.StoreRecord) []model.StoreRecord {
	out := make([]model.StoreRecord, len(stores))
	copy(out, stores)

	// Collators are not safe for concurrent use.
	c := collate.New(language.BrazilianPortuguese)
	sort.SliceStable(out, func(i, j int) bool {
		return c.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}

// Rank orders stores for display. With a known origin it ranks by distance
// within maxKm; without one it falls back to alphabetical order and reports
// every distance as zero.
func Rank(origin *model.Coordinate, stores []model.StoreRecord, maxKm float64) []model.RankedStore {
	if origin != nil {
		return RankByDistance(*origin, stores, maxKm)
	}
	sorted := SortByName(stores)
	ranked := make([]model.RankedStore, len(sorted))
	for i, s := range sorted {
		ranked[i] = model.RankedStore{StoreRecord: s}
	}
	return ranked
}
