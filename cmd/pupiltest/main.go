// Command pupiltest runs pupil and glint localization on a single eye image
// and prints every candidate.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gaze-tracker/internal/frame"
	"gaze-tracker/internal/glint"
	"gaze-tracker/internal/pupil"
)

func main() {
	imagePath := flag.String("image", "", "Path to eye image (BMP, TIFF, PNG or JPEG)")
	darkPath := flag.String("dark", "", "Optional dark-pupil image of the same eye")
	method := flag.String("method", "tce", "Pupil method: tce or gv")
	threshold := flag.Float64("threshold", 0, "Fixed first-pass threshold (0 = Otsu)")
	blobs := flag.Float64("blobs", 0, "Run the in-pupil blob pass at this threshold (0 = off)")
	glintThreshold := flag.Float64("glint", glint.DefaultParams().Threshold, "Glint binarization level")
	dump := flag.String("dump", "", "Directory for BMP debug images")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: pupiltest -image <path> [-dark <path>] [-method tce|gv] [-threshold 0] [-blobs 0] [-glint 50] [-dump <dir>]")
		os.Exit(1)
	}

	img, err := frame.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %s: %dx%d pixels\n", *imagePath, img.Width(), img.Height())

	var dark *frame.GrayImage
	if *darkPath != "" {
		d, err := frame.Load(*darkPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load dark image: %v\n", err)
			os.Exit(1)
		}
		dark = &d
	}

	m, ok := pupil.ParseMethod(*method)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown method %q\n", *method)
		os.Exit(1)
	}

	switch m {
	case pupil.MethodGV:
		params := pupil.DefaultGVParams()
		fmt.Printf("\nGV parameters: sigma=%.1f step=%d window=%d workers=%d\n",
			params.Sigma, params.Step, params.Window, params.Workers)
		c, err := pupil.LocateGV(img, params)
		if err != nil {
			fmt.Fprintf(os.Stderr, "GV failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Pupil center: (%.1f, %.1f)\n", c.X, c.Y)

	default:
		params := pupil.DefaultParams()
		if *threshold > 0 {
			params = params.WithFixedThreshold(*threshold)
		}
		if *blobs > 0 {
			params = params.WithInnerBlobs(*blobs)
		}
		fmt.Printf("\nTCE parameters:\n")
		fmt.Printf("  Blur: %d  Threshold: %s", params.BlurSize, params.Threshold)
		if params.Threshold == pupil.ThresholdFixed {
			fmt.Printf(" (%.0f)", params.FixedThreshold)
		}
		fmt.Printf("  Canny: %.0f/%.0f\n", params.CannyLow, params.CannyHigh)
		fmt.Printf("  Area: %.0f-%.0f px²  Aspect: %.2f-%.2f  Dedup: %.0f px\n",
			params.MinArea, params.MaxArea, params.MinAspect, params.MaxAspect, params.DedupDistance)

		res, err := pupil.LocateTCE(img, dark, params)
		if err != nil {
			fmt.Fprintf(os.Stderr, "TCE failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nThreshold applied: %.0f\n", res.Threshold)
		fmt.Printf("Contours: %d (skipped %d, degenerate %d, rejected %d)\n",
			res.Contours, res.Skipped, res.Degenerate, res.Rejected)

		fmt.Printf("\nDetected %d pupils:\n", len(res.Pupils))
		fmt.Printf("%-4s %8s %8s %8s %8s %8s %8s %10s\n",
			"#", "X", "Y", "Major", "Minor", "Angle", "Area", "Brightest")
		fmt.Println(strings.Repeat("-", 70))
		for i, p := range res.Pupils {
			e := p.Ellipse
			fmt.Printf("%-4d %8.1f %8.1f %8.1f %8.1f %8.1f %8.0f %10d\n",
				i, e.Center.X, e.Center.Y, e.Major, e.Minor, e.Angle, e.Area(), p.BrightestValue)
			for _, r := range p.Reflections {
				fmt.Printf("     reflection (%.1f, %.1f)\n", r.X, r.Y)
			}
		}
	}

	gp := glint.DefaultParams().WithThreshold(*glintThreshold)
	cands, err := glint.Locate(img, gp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Glint failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetected %d glints:\n", len(cands))
	for _, c := range cands {
		fmt.Printf("  (%.1f, %.1f) area %.0f\n", c.Center.X, c.Center.Y, c.Area)
	}
	if best, ok := glint.Largest(cands); ok {
		fmt.Printf("Largest: (%.1f, %.1f)\n", best.Center.X, best.Center.Y)
	}

	if *dump != "" {
		if err := dumpImages(*dump, img, gp); err != nil {
			fmt.Fprintf(os.Stderr, "Dump failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nDebug images written to %s\n", *dump)
	}
}

func dumpImages(dir string, img frame.GrayImage, gp glint.Params) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	diff, err := glint.DifferenceImage(img, gp)
	if err != nil {
		return err
	}
	if err := frame.SaveBMP(filepath.Join(dir, "glint.bmp"), diff); err != nil {
		return err
	}
	grad, err := pupil.GradientMagnitudeImage(img)
	if err != nil {
		return err
	}
	return frame.SaveBMP(filepath.Join(dir, "gradient.bmp"), grad)
}
