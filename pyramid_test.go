package pico

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/esimov/pico/utils"
)

// halvingResizer is a minimal PyramidResizer for tests: it halves
// dimensions and fills the result with a constant value, which is enough
// to exercise RunPyramid's clamping and rescaling without depending on a
// real image-resize library.
type halvingResizer struct{ value uint8 }

func (h halvingResizer) Halve(img ImageParams) ImageParams {
	rows, cols := img.Rows/2, img.Cols/2
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	pixels := make([]uint8, rows*cols)
	for i := range pixels {
		pixels[i] = h.value
	}
	return ImageParams{Pixels: pixels, Rows: rows, Cols: cols, Dim: cols}
}

func TestRunPyramid_PerLevelClamps(t *testing.T) {
	c := acceptAllCascade(t)
	img := constantImage(2048, 2048, 10)

	params := DetectParams{
		MinSize: 128, MaxSize: 1024,
		ScaleFactor:  1.1,
		StrideFactor: 0.5,
	}

	dets, err := RunPyramid(c, params, img, halvingResizer{value: 10})
	assert.NoError(t, err)
	assert.NotEmpty(t, dets)

	// Every rescaled detection's size must be a multiple of 2^i for some
	// level i in [0,4], and the post-rescale scale must fall within a
	// multiple of the per-level [min,max] clamp window.
	for _, d := range dets {
		found := false
		for i := 0; i < pyramidLevels; i++ {
			factor := 1 << uint(i)
			if d.Scale%factor != 0 {
				continue
			}
			levelScale := d.Scale / factor
			var minSize int
			if i == 0 {
				minSize = utils.Max(16, params.MinSize)
			} else {
				minSize = utils.Max(64, params.MinSize>>uint(i))
			}
			maxSize := utils.Min(128, params.MaxSize>>uint(i))
			if levelScale >= minSize && levelScale <= maxSize {
				found = true
				break
			}
		}
		assert.True(t, found, "detection scale %d did not match any pyramid level's clamp window", d.Scale)
	}
}

// TestRunPyramid_ScaleEquivariance is Testable Property 5: running the
// scanner directly on a halved image with halved min/max sizes, then
// doubling (row, col, scale), must give windows that lie inside the full
// image with sizes in the full-size [minSize, maxSize] range (within
// rounding). It does not call RunPyramid itself.
func TestRunPyramid_ScaleEquivariance(t *testing.T) {
	c := acceptAllCascade(t)
	full := constantImage(1024, 1024, 10)
	resizer := halvingResizer{value: 10}
	half := resizer.Halve(full)

	minSize, maxSize := 256, 512

	directParams := DetectParams{
		MinSize: minSize / 2, MaxSize: maxSize / 2,
		ScaleFactor:  1.1,
		StrideFactor: 0.25,
	}
	direct, err := c.FindObjects(directParams, half)
	assert.NoError(t, err)
	assert.NotEmpty(t, direct)

	for _, d := range direct {
		r2, c2, s2 := 2*d.Row, 2*d.Col, 2*d.Scale
		assert.True(t, r2 >= 0 && r2 <= full.Rows)
		assert.True(t, c2 >= 0 && c2 <= full.Cols)
		assert.True(t, s2 >= minSize-2 && s2 <= maxSize+2,
			"rescaled size %d should approximate [%d,%d]", s2, minSize, maxSize)
	}
}

func TestRunPyramid_SkipsLevelsWhereMinExceedsMax(t *testing.T) {
	c := acceptAllCascade(t)
	img := constantImage(64, 64, 10)

	// A tiny max_size means every level beyond 0 will clamp min>max and
	// must be skipped without error.
	params := DetectParams{
		MinSize: 8, MaxSize: 20,
		ScaleFactor:  1.1,
		StrideFactor: 0.5,
	}
	_, err := RunPyramid(c, params, img, halvingResizer{value: 10})
	assert.NoError(t, err)
}

func TestRunPyramid_NoPanicOnTinyImage(t *testing.T) {
	c := acceptAllCascade(t)
	img := constantImage(8, 8, 10)
	params := DetectParams{MinSize: 4, MaxSize: 8, ScaleFactor: 1.1, StrideFactor: 0.5}

	assert.NotPanics(t, func() {
		_, _ = RunPyramid(c, params, img, halvingResizer{value: 10})
	})
}

