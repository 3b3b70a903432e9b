package pico

import "github.com/esimov/pico/utils"

// PyramidResizer halves a grayscale image with linear interpolation. The
// pico core has no opinion on which image library performs the resize
// (spec.md assumes "a linear-interpolation resize from an image library");
// cmd/pico-detect supplies an implementation backed by
// github.com/disintegration/imaging.
type PyramidResizer interface {
	Halve(img ImageParams) ImageParams
}

// pyramidLevels is the fixed depth of the halving pyramid: original,
// /2, /4, /8, /16.
const pyramidLevels = 5

// RunPyramid runs FindObjects over pyramidLevels successive halvings of
// img, clamping MinSize/MaxSize per level exactly as the reference
// implementation does (MAX(64, minsize>>i) for i>=1 and MAX(16, minsize)
// at level 0; MIN(128, maxsize>>i) at every level),
// then rescales each detection's (row, col, scale) by 2^i before
// returning. This bounds the evaluator's working window size to roughly
// [16, 128] pixels across a wide range of object sizes, at the cost of
// redundant rescans in overlapping size bands -- ClusterDetections is
// expected to remove the duplicates.
func RunPyramid(c *Cascade, p DetectParams, img ImageParams, resize PyramidResizer) ([]Detection, error) {
	levels := make([]ImageParams, pyramidLevels)
	levels[0] = img
	for i := 1; i < pyramidLevels; i++ {
		levels[i] = resize.Halve(levels[i-1])
	}

	var all []Detection
	for i := 0; i < pyramidLevels; i++ {
		lp := p

		if i == 0 {
			lp.MinSize = utils.Max(16, p.MinSize)
		} else {
			lp.MinSize = utils.Max(64, p.MinSize>>uint(i))
		}
		lp.MaxSize = utils.Min(128, p.MaxSize>>uint(i))

		if lp.MinSize > lp.MaxSize {
			continue
		}

		dets, err := c.FindObjects(lp, levels[i])
		if err != nil {
			return nil, err
		}

		factor := 1 << uint(i)
		for _, d := range dets {
			d.Row *= factor
			d.Col *= factor
			d.Scale *= factor
			all = append(all, d)
		}
	}

	return all, nil
}
