package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/term"

	"github.com/esimov/pico"
	"github.com/esimov/pico/internal/imageio"
	"github.com/esimov/pico/utils"
)

const HelpBanner = `
┌─┐┬┌─┐┌─┐
├─┘││  │ │
┴  ┴└─┘└─┘

Pixel Intensity Comparison-based Object detector.
    Version: %s

`

// Version indicates the current build version.
var Version string

var (
	source        = flag.String("in", "", "Source image path or URL")
	destination   = flag.String("out", "", "Destination image path (annotated copy of the source)")
	cascadeFile   = flag.String("cascade", "", "Cascade file path or URL")
	minSize       = flag.Int("minsize", 20, "Minimum detection window size, in pixels")
	maxSize       = flag.Int("maxsize", 1000, "Maximum detection window size, in pixels")
	angle         = flag.Float64("angle", 0.0, "Cascade rotation, in turns (0.0 = 0 rad, 1.0 = 2*pi rad)")
	scaleFactor   = flag.Float64("scalefactor", 1.1, "Multiplicative step between successive scales")
	strideFactor  = flag.Float64("stridefactor", 0.1, "Window-size fraction used as the translation step")
	qThreshold    = flag.Float64("qthreshold", 5.0, "Minimum cluster confidence to keep in the output")
	usePyramid    = flag.Bool("usepyr", false, "Scan through a 5-level image pyramid instead of one pass")
	noClustering  = flag.Bool("noclustering", false, "Skip IoU-based clustering of raw detections")
	iouThreshold  = flag.Float64("iou", 0.2, "IoU threshold used to merge overlapping detections")
	verbose       = flag.Bool("v", false, "Print the cascade header, run parameters, and one line per surviving detection")
	maxDetections = flag.Int("maxdetections", 0, "Cap on raw detections scanned per pass (0 = library default)")
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *source == "" || *cascadeFile == "" {
		flag.Usage()
		log.Fatal(utils.DecorateText("\nBoth -in and -cascade are required", utils.ErrorMessage))
	}

	if err := run(); err != nil {
		log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
	}
}

func run() error {
	cascadeBytes, err := loadCascade(*cascadeFile)
	if err != nil {
		return fmt.Errorf("could not load the cascade: %w", err)
	}
	cascade, err := pico.UnpackCascade(cascadeBytes)
	if err != nil {
		return fmt.Errorf("could not unpack the cascade: %w", err)
	}

	if *verbose {
		printCascadeHeader(cascade)
	}

	statusMsg := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ PICO", utils.StatusMessage),
		utils.DecorateText("⇢ scanning for objects (be patient, it may take a while)...", utils.DefaultMessage),
	)
	spinner := utils.NewSpinner(statusMsg, time.Millisecond*80, term.IsTerminal(int(os.Stderr.Fd())))
	spinner.Start()

	now := time.Now()
	dets, srcImg, err := detect(cascade)
	if err != nil {
		spinner.StopMsg = fmt.Sprintf("%s %s %s\n",
			utils.DecorateText("⚡ PICO", utils.StatusMessage),
			utils.DecorateText("detection failed...", utils.DefaultMessage),
			utils.DecorateText("✘", utils.ErrorMessage),
		)
		spinner.Stop()
		return err
	}

	spinner.StopMsg = fmt.Sprintf("%s %s\n",
		utils.DecorateText("⚡ PICO", utils.StatusMessage),
		utils.DecorateText(fmt.Sprintf("found %d object(s) ✔", len(dets)), utils.SuccessMessage),
	)
	spinner.Stop()

	if *verbose {
		for _, d := range dets {
			fmt.Printf("row=%d col=%d scale=%d q=%.2f\n", d.Row, d.Col, d.Scale, d.Q)
		}
	}

	if *destination != "" {
		if err := render(srcImg, dets, *destination); err != nil {
			return fmt.Errorf("could not render the output image: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	return nil
}

// printCascadeHeader prints the cascade's header fields and the active
// detection parameters under -v, matching sample.c's verbose startup
// dump (tsr, tsc, tdepth, ntrees followed by the run's parameters).
func printCascadeHeader(c *pico.Cascade) {
	tsr, tsc := c.TemplateScales()
	fmt.Printf("cascade: tdepth=%d ntrees=%d tsr=%.4f tsc=%.4f\n", c.TreeDepth(), c.NumTrees(), tsr, tsc)
	fmt.Printf("params: minsize=%d maxsize=%d angle=%.2f scalefactor=%.2f stridefactor=%.2f qthreshold=%.2f usepyr=%v noclustering=%v\n",
		*minSize, *maxSize, *angle, *scaleFactor, *strideFactor, *qThreshold, *usePyramid, *noClustering)
}

// detect loads the source image, runs the scan against the already
// unpacked cascade, and returns the detections that pass -qthreshold
// (clustered unless -noclustering is set) alongside the decoded source image (needed afterwards to render the
// annotated output).
func detect(cascade *pico.Cascade) ([]pico.Detection, image.Image, error) {
	srcPath, cleanup, err := resolveSource(*source)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	img, err := imageio.Load(srcPath)
	if err != nil {
		return nil, nil, err
	}

	params := pico.DetectParams{
		MinSize:       *minSize,
		MaxSize:       *maxSize,
		Angle:         *angle,
		ScaleFactor:   *scaleFactor,
		StrideFactor:  *strideFactor,
		MaxDetections: *maxDetections,
	}

	var dets []pico.Detection
	if *usePyramid {
		resize := imageio.NewPyramidResizer(img)
		dets, err = pico.RunPyramid(cascade, params, imageio.ToImageParams(img), resize)
	} else {
		dets, err = cascade.FindObjects(params, imageio.ToImageParams(img))
	}
	if err != nil {
		return nil, nil, err
	}

	if !*noClustering {
		dets = pico.ClusterDetections(dets, *iouThreshold)
	}

	kept := dets[:0]
	for _, d := range dets {
		if float64(d.Q) >= *qThreshold {
			kept = append(kept, d)
		}
	}

	return kept, img, nil
}

// loadCascade reads the cascade file, downloading it first if -cascade was
// given as a URL.
func loadCascade(path string) ([]byte, error) {
	resolved, cleanup, err := resolveSource(path)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return os.ReadFile(resolved)
}

// resolveSource turns a local path or URL into a local path, downloading
// the URL to a temporary file when needed. The returned cleanup func
// removes that temporary file; it is a no-op for local paths.
func resolveSource(path string) (resolved string, cleanup func(), err error) {
	if !utils.IsValidUrl(path) {
		return path, func() {}, nil
	}

	f, err := utils.DownloadImage(path)
	if f != nil {
		cleanup = func() { os.Remove(f.Name()) }
	} else {
		cleanup = func() {}
	}
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to download %q: %w", path, err)
	}
	return f.Name(), cleanup, nil
}

// render draws a rectangle around every surviving detection and writes the
// annotated image to dst.
func render(img image.Image, dets []pico.Detection, dst string) error {
	bounds := img.Bounds()
	dc := gg.NewContext(bounds.Dx(), bounds.Dy())
	dc.DrawImage(img, 0, 0)
	dc.SetLineWidth(2.0)
	dc.SetStrokeStyle(gg.NewSolidPattern(color.RGBA{R: 255, G: 0, B: 0, A: 255}))

	for _, d := range dets {
		dc.DrawRectangle(
			float64(d.Col-d.Scale/2),
			float64(d.Row-d.Scale/2),
			float64(d.Scale),
			float64(d.Scale),
		)
		dc.Stroke()
	}

	return imageio.Save(dst, dc.Image())
}
