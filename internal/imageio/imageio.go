// Package imageio handles everything that turns a file on disk into the
// pixel buffer the detector operates on, and a set of detections back into
// a file on disk: decoding, grayscale conversion and pyramid resizing.
package imageio

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"

	"github.com/esimov/pico"
	"github.com/esimov/pico/utils"
)

// Load opens and decodes an image file, validating its content type before
// attempting to decode it so a non-image file fails with a clear error
// rather than an opaque codec panic.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open the source image: %w", err)
	}
	defer file.Close()

	ctype, err := utils.DetectFileContentType(path)
	if err != nil {
		return nil, fmt.Errorf("could not sniff the source file: %w", err)
	}
	if !strings.Contains(ctype.(string), "image") {
		return nil, fmt.Errorf("the source file is not an image (detected %v)", ctype)
	}

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("could not decode the source image: %w", err)
	}
	return img, nil
}

// Save encodes img into the file at dst, picking the codec from dst's file
// extension.
func Save(dst string, img image.Image) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("could not create the destination file: %w", err)
	}
	defer out.Close()

	return Encode(out, img, filepath.Ext(dst))
}

// Encode writes img to w using the codec matching ext ("" and ".jpg"/".jpeg"
// default to JPEG, mirroring how most command-line image tools behave when
// no extension is given).
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case "", ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("unsupported output extension %q", ext)
	}
}

// ToGrayscalePixels converts img to a single-channel row-major pixel buffer
// using the ITU-R BT.601 luma weights, the format the cascade evaluator
// expects its ImageParams.Pixels to be in.
func ToGrayscalePixels(img image.Image) (pixels []uint8, rows, cols int) {
	bounds := img.Bounds()
	cols, rows = bounds.Dx(), bounds.Dy()
	pixels = make([]uint8, rows*cols)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA() returns 16-bit-scaled components; 257 converts back to 8-bit.
			lum := 0.299*float64(r)/257 + 0.587*float64(g)/257 + 0.114*float64(b)/257
			pixels[y*cols+x] = uint8(lum)
		}
	}
	return pixels, rows, cols
}

// ToImageParams decodes the grayscale pixel buffer directly into the
// cascade's ImageParams, so callers don't need to juggle rows/cols/dim by
// hand at every call site.
func ToImageParams(img image.Image) pico.ImageParams {
	pixels, rows, cols := ToGrayscalePixels(img)
	return pico.ImageParams{Pixels: pixels, Rows: rows, Cols: cols, Dim: cols}
}

// imagingResizer adapts disintegration/imaging's Resize to the
// pico.PyramidResizer interface, giving the pyramid driver a real
// (anti-aliased) halving step instead of nearest-neighbor decimation.
type imagingResizer struct {
	src image.Image
}

// NewPyramidResizer builds a pico.PyramidResizer backed by src. Each Halve
// call resamples src itself (not the previous level's output), since the
// pyramid driver only needs Halve to answer "what would this level look
// like", and resampling from the original avoids compounding blur.
func NewPyramidResizer(src image.Image) pico.PyramidResizer {
	return imagingResizer{src: src}
}

func (r imagingResizer) Halve(img pico.ImageParams) pico.ImageParams {
	rows, cols := img.Rows/2, img.Cols/2
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	resized := imaging.Resize(r.src, cols, rows, imaging.Linear)
	pixels, rRows, rCols := ToGrayscalePixels(resized)
	return pico.ImageParams{Pixels: pixels, Rows: rRows, Cols: rCols, Dim: rCols}
}
