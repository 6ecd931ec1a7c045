package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/disasterboard/internal/geo"
	"github.com/jpalmerr/disasterboard/internal/location"
)

// locateCmd resolves a place and prints its emergency information.
var locateCmd = &cobra.Command{
	Use:   "locate [place]",
	Short: "Show emergency contacts, shelters and safety tips for a place",
	Long: `Resolve a place and print the emergency panel for it as JSON.

A place name is matched against the built-in city catalog. With --lat and
--lng the coordinates are reverse geocoded through Nominatim instead.

Example:
  disasterboard locate Chennai
  disasterboard locate --lat 22.5726 --lng 88.3639`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)

	locateCmd.Flags().Float64("lat", 0, "latitude to reverse geocode")
	locateCmd.Flags().Float64("lng", 0, "longitude to reverse geocode")
	locateCmd.Flags().String("nominatim", geo.DefaultNominatimURL, "Nominatim base URL")
	locateCmd.Flags().Duration("timeout", 5*time.Second, "reverse geocoding timeout")
}

func runLocate(cmd *cobra.Command, args []string) error {
	latSet := cmd.Flags().Changed("lat")
	lngSet := cmd.Flags().Changed("lng")
	if latSet != lngSet {
		return errors.New("--lat and --lng must be used together")
	}

	var pos geo.Position
	switch {
	case latSet:
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		baseURL, _ := cmd.Flags().GetString("nominatim")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		geocoder := geo.NewNominatimClient(baseURL, timeout, newLogger(false))
		resolved, err := geo.Resolve(cmd.Context(), geo.StaticLocator{Lat: lat, Lng: lng}, geocoder)
		if err != nil {
			return fmt.Errorf("failed to resolve location: %w", err)
		}
		pos = resolved

	case len(args) == 1 && strings.TrimSpace(args[0]) != "":
		pos, _ = location.Geocode(args[0])

	default:
		return errors.New("a place or --lat/--lng is required")
	}

	out := struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
		location.Bundle
	}{pos.Latitude, pos.Longitude, location.Resolve(pos.Address)}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
