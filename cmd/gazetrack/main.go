// Command gazetrack runs the eye tracking pipeline over image pairs, a
// directory, a video file or a camera, and writes per-eye coordinates.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"gaze-tracker/internal/config"
	"gaze-tracker/internal/export"
	"gaze-tracker/internal/frame"
	"gaze-tracker/internal/gaze"
	"gaze-tracker/internal/region"
	"gaze-tracker/internal/tracker"
	"gaze-tracker/internal/version"
	"gaze-tracker/pkg/geometry"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfgPath := flag.String("config", config.DefaultFile, "Configuration file")
	light := flag.String("light", "", "Light (bright-pupil) image")
	dark := flag.String("dark", "", "Optional dark (dark-pupil) image")
	dir := flag.String("dir", "", "Directory of images, NAME_dark.EXT pairs with NAME.EXT")
	video := flag.String("video", "", "Video file")
	camera := flag.Int("camera", -1, "Camera index")
	interleaved := flag.Bool("interleaved", false, "Video frames alternate light and dark illumination")
	modelPath := flag.String("model", "", "Fitted gaze model (overrides the config file)")
	out := flag.String("out", "", "Coordinate output file (default stdout)")
	target := flag.String("target", "", "Fixation target X,Y: record calibration samples")
	samplesPath := flag.String("samples", "samples.json", "Calibration sample file used with -target")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("gazetrack"))
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.ApplyDebug()

	src, err := openSource(*light, *dark, *dir, *video, *camera, *interleaved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		fmt.Println("Usage: gazetrack (-light <img> [-dark <img>] | -dir <dir> | -video <file> | -camera <n>) [-config config.json] [-model model.json] [-out coords.txt]")
		os.Exit(1)
	}
	defer src.Close()

	locator, err := region.New(cfg.Region)
	if err != nil {
		log.Fatalf("Failed to create region locator: %v", err)
	}
	defer locator.Close()

	t := tracker.New(locator, cfg.Tracker())
	if p := firstNonEmpty(*modelPath, cfg.Model); p != "" {
		m, err := gaze.LoadModel(p)
		if err != nil {
			log.Fatalf("Failed to load model %s: %v", p, err)
		}
		t.Model().Publish(m)
		log.Printf("Loaded gaze model %s", p)
	}

	var w io.Writer = os.Stdout
	var outFile *os.File
	if *out != "" {
		outFile, err = os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *out, err)
		}
		w = outFile
	}

	s := &session{tracker: t, writer: export.NewWriter(w)}
	if *target != "" {
		s.fixation, err = parsePoint(*target)
		if err != nil {
			log.Fatalf("Bad -target: %v", err)
		}
		s.collector = &gaze.Collector{}
	}
	if cfg.DumpDir != "" {
		s.dumper = &export.Dumper{Dir: cfg.DumpDir, Glint: cfg.Glint}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = s.process(ctx, src)
	if outFile != nil {
		if cerr := outFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Tracking failed after %d frames: %v", s.frames, err)
	}
	log.Printf("Processed %d frames, %d with a displacement", s.frames, s.ok)

	if s.collector != nil {
		if err := appendSamples(*samplesPath, cfg.Gaze.Bounds, s.collector.Samples()); err != nil {
			log.Fatalf("Failed to save samples: %v", err)
		}
		log.Printf("Recorded %d samples for target (%.0f, %.0f) in %s",
			s.collector.Len(), s.fixation.X, s.fixation.Y, *samplesPath)
	}
}

// session routes tracker results to the coordinate writer, the debug
// dumper and the calibration collector.
type session struct {
	tracker   *tracker.Tracker
	writer    *export.Writer
	dumper    *export.Dumper
	collector *gaze.Collector
	fixation  geometry.Point2D

	frames, ok int
}

// process runs the tracker over src. Buffered rows are flushed on every
// return path, including a failing source.
func (s *session) process(ctx context.Context, src frame.Source) (err error) {
	defer func() {
		if ferr := s.writer.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}()

	k := &keepLight{src: src}
	return s.tracker.Run(ctx, k, func(res tracker.FrameResult) {
		s.record(res, k.last)
	})
}

func (s *session) record(res tracker.FrameResult, img frame.GrayImage) {
	s.frames++
	if _, found := res.Displacement(); found {
		s.ok++
	}
	if err := s.writer.WriteFrame(res); err != nil {
		log.Printf("Write frame %d: %v", res.Index, err)
	}
	if s.collector != nil {
		if smp, found := tracker.Sample(res, s.fixation); found {
			s.collector.Add(geometry.Point2D{X: smp.DX, Y: smp.DY}, s.fixation)
		}
	}
	if s.dumper != nil {
		for _, e := range res.Eyes {
			if e.Status == tracker.StatusNoRegion {
				continue
			}
			if err := s.dumper.DumpEye(img, res.Index, e); err != nil {
				log.Printf("Dump frame %d: %v", res.Index, err)
			}
		}
	}
}

// keepLight remembers the light image of the frame in flight. Run
// processes frames sequentially, so one slot is enough.
type keepLight struct {
	src  frame.Source
	last frame.GrayImage
}

func (k *keepLight) Next() (frame.Frame, error) {
	f, err := k.src.Next()
	if err == nil {
		k.last = f.Light
	}
	return f, err
}

func (k *keepLight) Close() error { return k.src.Close() }

func openSource(light, dark, dir, video string, camera int, interleaved bool) (frame.Source, error) {
	switch {
	case light != "":
		return frame.NewPairSource([][2]string{{light, dark}}), nil
	case dir != "":
		pairs, err := frame.PairsFromDir(dir)
		if err != nil {
			return nil, err
		}
		if len(pairs) == 0 {
			return nil, fmt.Errorf("no images in %s", dir)
		}
		return frame.NewPairSource(pairs), nil
	case video != "":
		return frame.OpenCapture(video, interleaved)
	case camera >= 0:
		return frame.OpenCapture(camera, interleaved)
	}
	return nil, errors.New("no input given")
}

func appendSamples(path string, b gaze.Bounds, samples []gaze.Sample) error {
	var all []gaze.Sample
	if existing, err := gaze.LoadSamples(path); err == nil {
		all = existing.Samples
	} else if !os.IsNotExist(err) {
		return err
	}
	all = append(all, samples...)
	return gaze.SaveSamples(path, b, all)
}

func parsePoint(s string) (geometry.Point2D, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geometry.Point2D{}, fmt.Errorf("want X,Y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geometry.Point2D{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geometry.Point2D{}, err
	}
	return geometry.Point2D{X: x, Y: y}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
