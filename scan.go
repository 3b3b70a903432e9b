package pico

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
)

// DefaultMaxDetections is the output cap used when DetectParams.MaxDetections
// is left at zero, matching the reference implementation's MAXNDETECTIONS.
const DefaultMaxDetections = 2048

// ImageParams describes a grayscale image buffer borrowed, read-only, by
// the scanner for the duration of one call. Dim is the row stride in
// pixels and must be >= Cols.
type ImageParams struct {
	Pixels []uint8
	Rows   int
	Cols   int
	Dim    int
}

// DetectParams bundles the scan configuration that the reference
// implementation keeps as process-wide globals (minsize, maxsize, angle,
// ...) into one explicit value, per the Design Notes' "global parameter
// bag -> explicit config struct" guidance.
type DetectParams struct {
	// MinSize and MaxSize bound the window sizes swept, in pixels.
	MinSize, MaxSize int
	// Angle is the cascade rotation, in turns: 0.0 is 0 radians, 1.0 is
	// 2*pi radians. Values above 1.0 are clamped to 1.0.
	Angle float64
	// ScaleFactor is the multiplicative step between scales; must be > 1.
	ScaleFactor float64
	// StrideFactor is the fraction of the window size used as the
	// translation step between neighboring windows; must be > 0.
	StrideFactor float64
	// MaxDetections caps the number of candidates returned. Zero means
	// DefaultMaxDetections.
	MaxDetections int
}

// Detection is a candidate or final window: center row/col, size, and an
// accumulated confidence score.
type Detection struct {
	Row   int
	Col   int
	Scale int
	Q     float32
}

// ErrInvalidGeometry is the sentinel wrapped by geometry validation
// failures surfaced synchronously from FindObjects.
var ErrInvalidGeometry = fmt.Errorf("pico: invalid geometry")

func invalidGeometry(reason string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidGeometry, fmt.Sprintf(reason, args...))
}

func (p DetectParams) validate(img ImageParams) error {
	if img.Rows <= 0 || img.Cols <= 0 {
		return invalidGeometry("image dimensions must be positive, got rows=%d cols=%d", img.Rows, img.Cols)
	}
	if img.Dim < img.Cols {
		return invalidGeometry("row stride %d is smaller than column count %d", img.Dim, img.Cols)
	}
	if p.MinSize <= 0 || p.MaxSize <= 0 {
		return invalidGeometry("min_size and max_size must be positive, got min=%d max=%d", p.MinSize, p.MaxSize)
	}
	if p.MinSize > p.MaxSize {
		return invalidGeometry("min_size %d exceeds max_size %d", p.MinSize, p.MaxSize)
	}
	if p.ScaleFactor <= 1.0 {
		return invalidGeometry("scale_factor must be > 1, got %v", p.ScaleFactor)
	}
	if p.StrideFactor <= 0.0 {
		return invalidGeometry("stride_factor must be > 0, got %v", p.StrideFactor)
	}
	return nil
}

func (p DetectParams) cap() int {
	if p.MaxDetections <= 0 {
		return DefaultMaxDetections
	}
	return p.MaxDetections
}

// FindObjects enumerates candidate windows over every (row, col, size) on
// the scale/stride schedule described by p, evaluates each through the
// cascade, and returns every accepted window in scale-ascending,
// row-ascending, then column-ascending order. The result is truncated,
// not an error, once it reaches p.MaxDetections (or DefaultMaxDetections).
func (c *Cascade) FindObjects(p DetectParams, img ImageParams) ([]Detection, error) {
	if err := p.validate(img); err != nil {
		return nil, err
	}

	cap := p.cap()
	var detections []Detection

	angle := p.Angle
	if angle > 1.0 {
		angle = 1.0
	}

scales:
	for scale := p.MinSize; scale <= p.MaxSize; scale = int(float64(scale) * p.ScaleFactor) {
		step := int(math.Max(math.Round(p.StrideFactor*float64(scale)), 1))
		offset := scale / 2

		for r := offset; r+offset <= img.Rows; r += step {
			for col := offset; col+offset <= img.Cols; col += step {
				var ok bool
				var score float32
				if angle > 0.0 {
					ok, score = c.ClassifyRotatedRegion(r, col, scale, angle, img)
				} else {
					ok, score = c.ClassifyRegion(r, col, scale, img)
				}
				if ok {
					detections = append(detections, Detection{Row: r, Col: col, Scale: scale, Q: score})
					if len(detections) >= cap {
						break scales
					}
				}
			}
		}

		// int(float64(scale)*p.ScaleFactor) must strictly increase scale,
		// otherwise a ScaleFactor barely above 1 on a small scale could
		// loop forever; ScaleFactor > 1 is already enforced by validate,
		// but guard the degenerate rounding case explicitly.
		if next := int(float64(scale) * p.ScaleFactor); next <= scale {
			break
		}
	}

	return detections, nil
}

// scaleSchedule returns the sequence of window sizes FindObjects would
// sweep, used to partition work across goroutines in FindObjectsParallel.
func scaleSchedule(p DetectParams) []int {
	var scales []int
	for scale := p.MinSize; scale <= p.MaxSize; {
		scales = append(scales, scale)
		next := int(float64(scale) * p.ScaleFactor)
		if next <= scale {
			break
		}
		scale = next
	}
	return scales
}

// FindObjectsParallel is FindObjects with the scale sweep (see spec's
// "Parallelism opportunity") partitioned across runtime.NumCPU()
// goroutines, each scanning a disjoint subset of scales into its own
// slice. Results are concatenated worker by worker and re-sorted into the
// same scale/row/column ordering FindObjects guarantees, so callers can
// freely mix the two before clustering.
func (c *Cascade) FindObjectsParallel(p DetectParams, img ImageParams) ([]Detection, error) {
	if err := p.validate(img); err != nil {
		return nil, err
	}

	scales := scaleSchedule(p)
	if len(scales) == 0 {
		return nil, nil
	}

	workers := runtime.NumCPU()
	if workers > len(scales) {
		workers = len(scales)
	}
	if workers < 1 {
		workers = 1
	}

	perWorker := make([][]Detection, workers)
	var wg sync.WaitGroup
	cap := p.cap()
	var remaining int32 = int32(cap)
	var mu sync.Mutex

	angle := p.Angle
	if angle > 1.0 {
		angle = 1.0
	}

	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local []Detection
			for i := w; i < len(scales); i += workers {
				scale := scales[i]
				step := int(math.Max(math.Round(p.StrideFactor*float64(scale)), 1))
				offset := scale / 2

				for r := offset; r+offset <= img.Rows; r += step {
					for col := offset; col+offset <= img.Cols; col += step {
						mu.Lock()
						full := remaining <= 0
						mu.Unlock()
						if full {
							perWorker[w] = local
							return
						}

						var ok bool
						var score float32
						if angle > 0.0 {
							ok, score = c.ClassifyRotatedRegion(r, col, scale, angle, img)
						} else {
							ok, score = c.ClassifyRegion(r, col, scale, img)
						}
						if ok {
							local = append(local, Detection{Row: r, Col: col, Scale: scale, Q: score})
							mu.Lock()
							remaining--
							mu.Unlock()
						}
					}
				}
			}
			perWorker[w] = local
		}()
	}
	wg.Wait()

	var all []Detection
	for _, l := range perWorker {
		all = append(all, l...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Scale != all[j].Scale {
			return all[i].Scale < all[j].Scale
		}
		if all[i].Row != all[j].Row {
			return all[i].Row < all[j].Row
		}
		return all[i].Col < all[j].Col
	})

	if len(all) > cap {
		all = all[:cap]
	}
	return all, nil
}
