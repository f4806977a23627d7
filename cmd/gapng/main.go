// Command gapng inspects and renders APNG files from the command line.
//
// Usage:
//
//	gapng info [-v] <input.png>              Display animation metadata and frame timing
//	gapng frame [options] <input.png>        Write the frame visible at a given time as PNG
//	gapng dump [options] <input.png>         Write every frame as PNG plus manifest.yaml
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/deepteams/apng"
	"github.com/deepteams/apng/internal/container"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	var err error
	switch args[0] {
	case "info":
		err = runInfo(args[1:], stdout, stderr)
	case "frame":
		err = runFrame(args[1:], stdout, stderr)
	case "dump":
		err = runDump(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		printUsage(stderr)
		return 0
	default:
		fmt.Fprintf(stderr, "gapng: unknown command %q\n\n", args[0])
		printUsage(stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "gapng: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  gapng info [-v] <input.png>          Display animation metadata
  gapng frame [options] <input.png>    Render the frame visible at -t
  gapng dump [options] <input.png>     Write all frames and a manifest

Use "-" as input to read from stdin.

Run "gapng <command> -h" for command-specific options.
`)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// readInput reads the whole input. "-" means stdin.
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func displayName(path string) string {
	if path == "-" {
		return "<stdin>"
	}
	return path
}

func loopString(n int) string {
	if n == 0 {
		return "infinite"
	}
	return fmt.Sprintf("%d", n)
}

// --- info ---

func runInfo(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("info: missing input file\nUsage: gapng info <input.png>")
	}
	inputPath := fs.Arg(0)

	data, err := readInput(inputPath)
	if err != nil {
		return err
	}
	probe, err := container.Probe(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	frames, err := apng.Decode(bytes.NewReader(data), &apng.Options{Logger: newLogger(stderr, *verbose)})
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	defer frames.Close()

	fmt.Fprintf(stdout, "File:       %s\n", displayName(inputPath))
	fmt.Fprintf(stdout, "Dimensions: %d x %d\n", probe.Header.Width, probe.Header.Height)
	fmt.Fprintf(stdout, "Paletted:   %v\n", probe.Paletted)
	if probe.Animated {
		fmt.Fprintf(stdout, "Declared:   %d frames, loop count %s\n", probe.Control.NumFrames, loopString(probe.Control.NumPlays))
	}
	fmt.Fprintf(stdout, "Animated:   %v\n", !frames.IsSingleFrame())
	fmt.Fprintf(stdout, "File size:  %d bytes\n", len(data))
	if frames.IsSingleFrame() {
		return nil
	}
	fmt.Fprintf(stdout, "Frames:     %d\n", frames.FrameCount())
	fmt.Fprintf(stdout, "Loop count: %s\n", loopString(frames.LoopCount()))
	fmt.Fprintf(stdout, "One play:   %v\n", frames.TotalDuration())
	fmt.Fprintln(stdout)

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tSTART\tDURATION")
	for i := 0; i < frames.FrameCount(); i++ {
		f := frames.Frame(i)
		fmt.Fprintf(tw, "%d\t%v\t%v\n", i, f.Start, f.Duration)
	}
	return tw.Flush()
}

// --- frame ---

func runFrame(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("frame", flag.ContinueOnError)
	fs.SetOutput(stderr)
	at := fs.Duration("t", 0, "elapsed playback time, e.g. 1.5s")
	speed := fs.Float64("speed", 1, "duration scale, >1 plays slower")
	maxDim := fs.Int("max", 0, "cap the larger side in pixels (0=no cap)")
	output := fs.String("o", "", `output path (default: <input>.frame.png, "-" for stdout)`)
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("frame: missing input file\nUsage: gapng frame [options] <input.png>")
	}
	inputPath := fs.Arg(0)

	outPath := *output
	if outPath == "" {
		if inputPath == "-" {
			return fmt.Errorf("frame: -o is required when reading from stdin")
		}
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".frame.png"
	}

	data, err := readInput(inputPath)
	if err != nil {
		return err
	}
	frames, err := apng.Decode(bytes.NewReader(data), &apng.Options{
		MaxPixelDimension: *maxDim,
		DurationScale:     *speed,
		Logger:            newLogger(stderr, *verbose),
	})
	if err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	defer frames.Close()

	res := frames.FindFrame(*at)

	if outPath == "-" {
		err = png.Encode(stdout, res.Image)
	} else {
		err = writePNG(outPath, res.Image)
	}
	if err != nil {
		return fmt.Errorf("frame: encoding PNG: %w", err)
	}

	next := "never"
	if res.Delay != apng.NoChange {
		next = res.Delay.String()
	}
	if outPath == "-" {
		fmt.Fprintf(stderr, "next change in %s\n", next)
		return nil
	}
	fmt.Fprintf(stdout, "%s: %dx%d at %v, next change in %s\n", outPath, res.Image.Rect.Dx(), res.Image.Rect.Dy(), *at, next)
	return nil
}

// --- dump ---

type manifest struct {
	Source    string          `yaml:"source"`
	Width     int             `yaml:"width"`
	Height    int             `yaml:"height"`
	Animated  bool            `yaml:"animated"`
	LoopCount int             `yaml:"loop_count"`
	TotalMS   int64           `yaml:"total_ms"`
	Frames    []manifestFrame `yaml:"frames"`
}

type manifestFrame struct {
	File       string `yaml:"file"`
	StartMS    int64  `yaml:"start_ms"`
	DurationMS int64  `yaml:"duration_ms"`
}

func runDump(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	maxDim := fs.Int("max", 0, "cap the larger side in pixels (0=no cap)")
	output := fs.String("o", "", "output directory (default: <input>_frames)")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("dump: missing input file\nUsage: gapng dump [options] <input.png>")
	}
	inputPath := fs.Arg(0)

	dir := *output
	if dir == "" {
		if inputPath == "-" {
			return fmt.Errorf("dump: -o is required when reading from stdin")
		}
		dir = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_frames"
	}

	logger := newLogger(stderr, *verbose)
	data, err := readInput(inputPath)
	if err != nil {
		return err
	}
	frames, err := apng.Decode(bytes.NewReader(data), &apng.Options{
		MaxPixelDimension: *maxDim,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	defer frames.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	m := manifest{
		Source:    displayName(inputPath),
		Width:     frames.Bounds().Dx(),
		Height:    frames.Bounds().Dy(),
		Animated:  !frames.IsSingleFrame(),
		LoopCount: frames.LoopCount(),
		TotalMS:   frames.TotalDuration().Milliseconds(),
	}
	for i := 0; i < frames.FrameCount(); i++ {
		f := frames.Frame(i)
		name := fmt.Sprintf("frame_%03d.png", i)
		if err := writePNG(filepath.Join(dir, name), f.Image); err != nil {
			return fmt.Errorf("dump: frame %d: %w", i, err)
		}
		m.Frames = append(m.Frames, manifestFrame{
			File:       name,
			StartMS:    f.Start.Milliseconds(),
			DurationMS: f.Duration.Milliseconds(),
		})
		logger.Debug("wrote frame", "index", i, "file", name)
	}

	out, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), out, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d frames written to %s\n", displayName(inputPath), len(m.Frames), dir)
	return nil
}

func writePNG(path string, img image.Image) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(file, img)
}
