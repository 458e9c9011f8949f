package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moveis-planejados/lead-api/internal/geo"
	"github.com/moveis-planejados/lead-api/internal/model"
	"github.com/moveis-planejados/lead-api/pkg/ipgeo"
	"github.com/moveis-planejados/lead-api/pkg/wordpress"
)

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Inspect the store directory",
	Long:  "Commands for listing stores and ranking them by distance from a point.",
}

// -- stores list --

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stores sorted by name",
	RunE: func(cmd *cobra.Command, _ []string) error {
		stores, err := loadStores(cmd.Context())
		if err != nil {
			return err
		}
		ranked := geo.Rank(nil, stores, geo.Unbounded)

		asJSON, _ := cmd.Flags().GetBool("json")
		return writeStores(cmd.OutOrStdout(), ranked, false, asJSON)
	},
}

// -- stores nearest --

var storesNearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Rank stores by distance from a point",
	Long:  "Ranks stores by distance from --lat/--lng. Without coordinates the machine's public IP is geolocated when ipgeo is enabled.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		stores, err := loadStores(ctx)
		if err != nil {
			return err
		}

		origin, err := resolveOrigin(ctx, cmd)
		if err != nil {
			return err
		}
		if origin == nil {
			fmt.Fprintln(os.Stderr, "No origin available, listing stores by name.")
		}

		maxKm, _ := cmd.Flags().GetFloat64("max-km")
		if maxKm <= 0 {
			maxKm = geo.Unbounded
		}
		ranked := geo.Rank(origin, stores, maxKm)

		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(ranked) > limit {
			ranked = ranked[:limit]
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		return writeStores(cmd.OutOrStdout(), ranked, origin != nil, asJSON)
	},
}

func init() {
	storesListCmd.Flags().Bool("json", false, "print JSON instead of a table")

	storesNearestCmd.Flags().Float64("lat", 0, "origin latitude")
	storesNearestCmd.Flags().Float64("lng", 0, "origin longitude")
	storesNearestCmd.Flags().Float64("max-km", geo.LocatorRadiusKm, "distance cutoff in km (0 for none)")
	storesNearestCmd.Flags().Int("limit", 10, "maximum number of stores to print (0 for all)")
	storesNearestCmd.Flags().Bool("json", false, "print JSON instead of a table")

	storesCmd.AddCommand(storesListCmd, storesNearestCmd)
	rootCmd.AddCommand(storesCmd)
}

// loadStores reads the directory the same way serve does, minus the cache.
func loadStores(ctx context.Context) ([]model.StoreRecord, error) {
	if err := cfg.Validate("stores"); err != nil {
		return nil, err
	}
	var cms wordpress.Client
	if cfg.WordPress.BaseURL != "" {
		cms = wordpress.NewClient(cfg.WordPress.BaseURL)
	}
	dir, err := initDirectory(cfg, cms)
	if err != nil {
		return nil, err
	}
	stores, err := dir.Stores(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "stores")
	}
	return stores, nil
}

// resolveOrigin returns the coordinate given by flags, or the geolocated
// public IP when ipgeo is enabled. A nil origin means none is known.
func resolveOrigin(ctx context.Context, cmd *cobra.Command) (*model.Coordinate, error) {
	hasLat, hasLng := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
	if hasLat || hasLng {
		if !hasLat || !hasLng {
			return nil, eris.New("stores: --lat and --lng must be given together")
		}
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return nil, eris.Errorf("stores: coordinate out of range: %g,%g", lat, lng)
		}
		return &model.Coordinate{Lat: lat, Lng: lng}, nil
	}

	if !cfg.IPGeo.Enabled {
		return nil, nil
	}
	locator := geo.NewLocator(selfLookup(ipgeo.NewClient(ipgeo.WithBaseURL(cfg.IPGeo.BaseURL))))
	if _, err := locator.Locate(ctx); err != nil {
		zap.L().Warn("stores: ip geolocation failed", zap.Error(err))
		return nil, nil
	}
	return locator.Origin(), nil
}

// selfLookup adapts the geolocation client to a Locator lookup.
func selfLookup(client ipgeo.Client) geo.LookupFunc {
	return func(ctx context.Context) (model.Coordinate, error) {
		loc, err := client.Self(ctx)
		if err != nil {
			return model.Coordinate{}, err
		}
		zap.L().Info("stores: located by ip", zap.String("city", loc.City), zap.String("region", loc.Region))
		return model.Coordinate{Lat: loc.Latitude, Lng: loc.Longitude}, nil
	}
}

// writeStores prints ranked stores as a table or as JSON.
func writeStores(out io.Writer, stores []model.RankedStore, withDistance, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stores)
	}
	if len(stores) == 0 {
		fmt.Fprintln(os.Stderr, "No stores found.")
		return nil
	}
	formatStores(out, stores, withDistance)
	return nil
}

// formatStores writes a tabular list of stores to out.
func formatStores(out io.Writer, stores []model.RankedStore, withDistance bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCITY\tSTATE\tDISTANCE")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t-----\t--------")
	for _, s := range stores {
		dist := "-"
		if withDistance {
			dist = fmt.Sprintf("%.1f km", s.DistanceKm)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.City, s.State, dist)
	}
	_ = w.Flush()
}
