package pico

import (
	"encoding/binary"
	"fmt"
	"math"
)

// maxTreeDepth bounds tdepth so that 1<<tdepth cannot overflow an int on
// any supported platform and so that a single tree holds at most 2^24
// node quads and 2^24 leaf floats (about 128 MiB together). The PICO training tool never emits cascades
// anywhere near this deep; it exists purely as a sanity fence against a
// corrupt or hostile file.
const maxTreeDepth = 24

// headerSize is the fixed byte length of the cascade header: tsr, tsc
// (float32 each), tdepth, ntrees (int32 each).
const headerSize = 16

// Cascade is an immutable, parsed ensemble of binary decision trees. It is
// safe for concurrent use by multiple goroutines: nothing about evaluating
// a cascade mutates it.
type Cascade struct {
	// tsr, tsc are the template row/column scales: a window of physical
	// size S maps to a sample radius (S*tsr, S*tsc) used to place
	// comparison pixels within the window.
	tsr, tsc float32

	tdepth int
	ntrees int

	// nodeCount and leafCount are derived from tdepth and cached, since
	// every tree shares the same depth.
	nodeCount int
	leafCount int

	// nodes holds, per tree, nodeCount*4 signed bytes (r1, c1, r2, c2)
	// in breadth-first order: heap node i (1-based) is stored at entry
	// i-1, so no slot is left unused.
	nodes []int8

	// preds holds, per tree, leafCount float32 leaf contributions.
	preds []float32

	// thresholds holds one stage cutoff per tree, applied to the
	// cumulative score after that tree is evaluated.
	thresholds []float32
}

// MalformedCascadeError describes why a cascade blob was rejected.
type MalformedCascadeError struct {
	Reason string
}

func (e *MalformedCascadeError) Error() string {
	return fmt.Sprintf("pico: malformed cascade: %s", e.Reason)
}

// ErrMalformedCascade is the sentinel all cascade-loading failures wrap,
// so callers can test with errors.Is regardless of the specific reason.
var ErrMalformedCascade = fmt.Errorf("pico: malformed cascade")

func malformed(reason string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedCascade, fmt.Sprintf(reason, args...))
}

// expectedCascadeLen returns the total byte length a well-formed cascade
// with the given tdepth and ntrees must have, per the size law: each tree
// contributes 4*(2^tdepth-1) bytes of node quads, 4*2^tdepth bytes of leaf
// floats, and 4 bytes for its stage threshold.
func expectedCascadeLen(tdepth, ntrees int) int64 {
	leaves := int64(1) << uint(tdepth)
	nodes := leaves - 1
	perTree := 4*nodes + 4*leaves + 4
	return headerSize + int64(ntrees)*perTree
}

// UnpackCascade parses a binary cascade blob into an immutable in-memory
// representation. It fails with an error wrapping ErrMalformedCascade if
// the blob is short, has an inconsistent length for its declared tdepth
// and ntrees, or declares a nonsensical tdepth/ntrees.
func UnpackCascade(packet []byte) (*Cascade, error) {
	if len(packet) < headerSize {
		return nil, malformed("blob too short for header: %d bytes", len(packet))
	}

	tsr := math.Float32frombits(binary.LittleEndian.Uint32(packet[0:4]))
	tsc := math.Float32frombits(binary.LittleEndian.Uint32(packet[4:8]))
	tdepth := int(int32(binary.LittleEndian.Uint32(packet[8:12])))
	ntrees := int(int32(binary.LittleEndian.Uint32(packet[12:16])))

	if tdepth <= 0 {
		return nil, malformed("tdepth must be positive, got %d", tdepth)
	}
	if tdepth > maxTreeDepth {
		return nil, malformed("tdepth %d exceeds sanity limit %d", tdepth, maxTreeDepth)
	}
	if ntrees <= 0 {
		return nil, malformed("ntrees must be at least 1, got %d", ntrees)
	}

	want := expectedCascadeLen(tdepth, ntrees)
	if int64(len(packet)) != want {
		return nil, malformed("blob length %d does not match expected %d for tdepth=%d ntrees=%d",
			len(packet), want, tdepth, ntrees)
	}

	leafCount := 1 << uint(tdepth)
	nodeCount := leafCount - 1

	c := &Cascade{
		tsr:        tsr,
		tsc:        tsc,
		tdepth:     tdepth,
		ntrees:     ntrees,
		nodeCount:  nodeCount,
		leafCount:  leafCount,
		nodes:      make([]int8, ntrees*nodeCount*4),
		preds:      make([]float32, ntrees*leafCount),
		thresholds: make([]float32, ntrees),
	}

	pos := headerSize
	for t := 0; t < ntrees; t++ {
		nodeBytes := nodeCount * 4
		for i := 0; i < nodeBytes; i++ {
			c.nodes[t*nodeBytes+i] = int8(packet[pos+i])
		}
		pos += nodeBytes

		for i := 0; i < leafCount; i++ {
			c.preds[t*leafCount+i] = math.Float32frombits(binary.LittleEndian.Uint32(packet[pos:]))
			pos += 4
		}

		c.thresholds[t] = math.Float32frombits(binary.LittleEndian.Uint32(packet[pos:]))
		pos += 4
	}

	return c, nil
}

// TreeDepth returns the common depth of every tree in the cascade.
func (c *Cascade) TreeDepth() int { return c.tdepth }

// NumTrees returns the number of trees (stages) in the cascade.
func (c *Cascade) NumTrees() int { return c.ntrees }

// TemplateScales returns the tsr, tsc template row/column scale factors.
func (c *Cascade) TemplateScales() (tsr, tsc float32) { return c.tsr, c.tsc }
