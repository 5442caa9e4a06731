// Command calibrate fits a gaze model from recorded calibration samples and
// reports the residual error at every sample.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"gaze-tracker/internal/config"
	"gaze-tracker/internal/gaze"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfgPath := flag.String("config", config.DefaultFile, "Configuration file")
	samplesPath := flag.String("samples", "samples.json", "Calibration sample file")
	out := flag.String("out", "model.json", "Model output file")
	lambda := flag.Float64("lambda", -1, "Ridge penalty (negative = from config)")
	grid := flag.Int("grid", 0, "Print an N×N fixation target grid for the configured screen and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.ApplyDebug()
	opts := cfg.Gaze
	if *lambda >= 0 {
		opts = opts.WithLambda(*lambda)
	}

	if *grid > 0 {
		fmt.Printf("Targets for %.0fx%.0f:\n", opts.Bounds.MaxX, opts.Bounds.MaxY)
		for i, p := range gaze.TargetGrid(opts.Bounds, *grid) {
			fmt.Printf("%3d %8.1f %8.1f\n", i, p.X, p.Y)
		}
		return
	}

	sf, err := gaze.LoadSamples(*samplesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load samples: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d samples from %s\n", len(sf.Samples), *samplesPath)
	if sf.Bounds.MaxX > 0 && sf.Bounds.MaxY > 0 {
		opts = opts.WithBounds(sf.Bounds.MaxX, sf.Bounds.MaxY)
	}
	fmt.Printf("Lambda: %g  Screen: %.0fx%.0f  Smoothing: %.2f\n",
		opts.Lambda, opts.Bounds.MaxX, opts.Bounds.MaxY, opts.Smoothing)

	m, err := gaze.Fit(sf.Samples, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fit failed: %v\n", err)
		os.Exit(1)
	}

	wx, wy := m.Coefficients()
	names := [gaze.NumFeatures]string{"dx", "dy", "dx·dy", "dx²", "dy²", "1"}
	fmt.Printf("\n%-8s %14s %14s\n", "Term", "wx", "wy")
	fmt.Println(strings.Repeat("-", 38))
	for i := range names {
		fmt.Printf("%-8s %14.6g %14.6g\n", names[i], wx[i], wy[i])
	}

	fmt.Printf("\n%-4s %8s %8s %10s %10s %10s %10s %8s\n",
		"#", "dx", "dy", "SX", "SY", "PX", "PY", "Error")
	var sum, worst float64
	for i, s := range sf.Samples {
		p := m.Raw(s.DX, s.DY)
		e := math.Hypot(p.X-s.SX, p.Y-s.SY)
		sum += e
		worst = math.Max(worst, e)
		fmt.Printf("%-4d %8.2f %8.2f %10.1f %10.1f %10.1f %10.1f %8.1f\n",
			i, s.DX, s.DY, s.SX, s.SY, p.X, p.Y, e)
	}
	fmt.Printf("\nMean error: %.1f px  Max error: %.1f px\n", sum/float64(len(sf.Samples)), worst)

	if err := gaze.SaveModel(*out, m, len(sf.Samples)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save model: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Model written to %s\n", *out)
}
