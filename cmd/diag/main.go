// Command diag fetches one satellite from the remote position service and
// prints how the globe would place it: the projected marker, the orbit
// radius and the antimeridian split of its ground track.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/geo"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/orbit"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/sat"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi"
)

var rootCmd = &cobra.Command{
	Use:   "diag <norad_id>",
	Short: "Print the projected position and orbit segments of one satellite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid norad_id %q", args[0])
		}
		base, _ := cmd.Flags().GetString("api-base")
		step, _ := cmd.Flags().GetDuration("step")
		radius, _ := cmd.Flags().GetFloat64("globe-radius")

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		return diagnose(ctx, satapi.NewClient(base, logger), id, step, radius)
	},
}

func init() {
	rootCmd.Flags().String("api-base", "http://127.0.0.1:8000", "Remote position service base URL")
	rootCmd.Flags().Duration("step", orbit.DefaultStep, "Ground track sample step")
	rootCmd.Flags().Float64("globe-radius", sat.DefaultConfig().GlobeRadius, "Globe radius in scene units")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func diagnose(ctx context.Context, client *satapi.Client, id int, step time.Duration, radius float64) error {
	if sum, err := client.Summary(ctx, id); err != nil {
		fmt.Printf("Summary: ERROR %v\n", err)
	} else {
		fmt.Printf("Satellite: %s (NORAD %d) epoch %s\n", sum.Name, sum.NORADID, sum.EpochUTC)
		fmt.Printf("  velocity=%.3f km/s altitude=%.1f km period=%.1f min\n",
			sum.VelocityKms, sum.AltitudeKm, sum.PeriodMinutes)
	}

	tr, err := orbit.NewLoader(client, radius, step).Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load orbit: %w", err)
	}

	o := tr.Origin
	p := geo.Project(o.Lat, o.Lon, o.AltKm, radius)
	lat, lon, alt := geo.Unproject(p, radius)
	fmt.Printf("State: lat=%.4f lon=%.4f alt=%.1f km\n", o.Lat, o.Lon, o.AltKm)
	fmt.Printf("  scene point=(%.4f, %.4f, %.4f) radius=%.4f\n", p.X(), p.Y(), p.Z(), tr.Radius)
	fmt.Printf("  round trip: lat=%.4f lon=%.4f alt=%.1f km\n", lat, lon, alt)

	total := 0
	for i, seg := range tr.Segments {
		total += len(seg)
		first, last := seg[0], seg[len(seg)-1]
		flat, flon, _ := geo.Unproject(first, radius)
		llat, llon, _ := geo.Unproject(last, radius)
		fmt.Printf("  segment %d: %d points (%.2f, %.2f) -> (%.2f, %.2f)\n",
			i, len(seg), flat, flon, llat, llon)
	}
	fmt.Printf("\nTotal orbit points: %d in %d segments\n", total, len(tr.Segments))
	return nil
}
