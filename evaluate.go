package pico

import "math"

// roundHalfAwayFromZero rounds to the nearest integer, ties away from
// zero -- the rounding mode the reference pixel-sampling arithmetic uses.
func roundHalfAwayFromZero(x float64) float64 {
	t := math.Trunc(x)
	if math.Abs(x-t) >= 0.5 {
		return t + math.Copysign(1, x)
	}
	return t
}

// samplePixel maps one normalized, signed-byte offset (ri, ci) within a
// window of size s centered at (r, c) to an image pixel coordinate,
// rotating by the given cos/sin pair and scaling by the cascade's
// template row/column scales. It returns ok=false when the sampled
// coordinate falls outside the image -- the only bounds check the
// evaluator performs, per the "silent reject, no clamping" policy.
func samplePixel(r, c, s int, ri, ci int8, cosv, sinv float64, tsr, tsc float32, nrows, ncols int) (pr, pc int, ok bool) {
	dr := (cosv*float64(ri) + sinv*float64(ci)) * float64(tsr) * float64(s) / 256.0
	dc := (-sinv*float64(ri) + cosv*float64(ci)) * float64(tsc) * float64(s) / 256.0

	pr = int(roundHalfAwayFromZero(float64(r) + dr))
	pc = int(roundHalfAwayFromZero(float64(c) + dc))

	if pr < 0 || pr >= nrows || pc < 0 || pc >= ncols {
		return 0, 0, false
	}
	return pr, pc, true
}

// leafScore walks one tree starting at the 1-based heap root, returning
// the leaf contribution selected by the window's pixel comparisons, or
// ok=false if any comparison sampled an out-of-bounds pixel.
func (c *Cascade) leafScore(treeIdx int, r, col, s int, cosv, sinv float64, img ImageParams) (score float32, ok bool) {
	nodeBytes := c.nodeCount * 4
	base := treeIdx * nodeBytes
	idx := 1

	for depth := 0; depth < c.tdepth; depth++ {
		// Node storage holds nodeCount entries (heap indices 1..nodeCount)
		// packed from position 0, so a 1-based heap index needs -1 here.
		off := base + 4*(idx-1)
		r1i, c1i := int8(c.nodes[off+0]), int8(c.nodes[off+1])
		r2i, c2i := int8(c.nodes[off+2]), int8(c.nodes[off+3])

		pr1, pc1, ok1 := samplePixel(r, col, s, r1i, c1i, cosv, sinv, c.tsr, c.tsc, img.Rows, img.Cols)
		if !ok1 {
			return 0, false
		}
		pr2, pc2, ok2 := samplePixel(r, col, s, r2i, c2i, cosv, sinv, c.tsr, c.tsc, img.Rows, img.Cols)
		if !ok2 {
			return 0, false
		}

		p1 := img.Pixels[pr1*img.Dim+pc1]
		p2 := img.Pixels[pr2*img.Dim+pc2]

		if p1 <= p2 {
			idx = 2*idx + 1
		} else {
			idx = 2 * idx
		}
	}

	leafIdx := idx - c.leafCount
	return c.preds[treeIdx*c.leafCount+leafIdx], true
}

// ClassifyRegion scores one (r, c, s) window against the cascade with no
// rotation applied. It returns accept=true with the final accumulated
// score iff the window survives every stage; otherwise accept=false and
// the score accumulated up to the rejecting stage (for a rejection by an
// out-of-bounds sample, the score of the trees before the rejecting one).
func (c *Cascade) ClassifyRegion(r, col, s int, img ImageParams) (accept bool, score float32) {
	return c.classify(r, col, s, 1.0, 0.0, img)
}

// ClassifyRotatedRegion is ClassifyRegion with the comparison offsets
// rotated by angle turns (0.0 == 0 radians, 1.0 == 2*pi radians) before
// being scaled into image coordinates.
func (c *Cascade) ClassifyRotatedRegion(r, col, s int, angle float64, img ImageParams) (accept bool, score float32) {
	if angle > 1.0 {
		angle = 1.0
	}
	theta := 2 * math.Pi * angle
	return c.classify(r, col, s, math.Cos(theta), math.Sin(theta), img)
}

func (c *Cascade) classify(r, col, s int, cosv, sinv float64, img ImageParams) (accept bool, score float32) {
	var total float32
	for t := 0; t < c.ntrees; t++ {
		leaf, ok := c.leafScore(t, r, col, s, cosv, sinv, img)
		if !ok {
			return false, total
		}
		total += leaf
		if total < c.thresholds[t] {
			return false, total
		}
	}
	return true, total
}
