/*
Package pico is a pure Go implementation of the PICO method for real-time
object detection: a cascade of binary decision trees whose nodes compare
pairs of pixel intensities, walked over a multi-scale sliding window.

It is a detection runtime only. Training a cascade, decoding images, and
driving a camera or a GUI are outside its scope; see cmd/pico-detect for a
host shim that wires this package to image files on disk.

Basic usage

	raw, err := os.ReadFile("facefinder")
	if err != nil {
		log.Fatalf("reading cascade: %v", err)
	}

	cascade, err := pico.UnpackCascade(raw)
	if err != nil {
		log.Fatalf("unpacking cascade: %v", err)
	}

	params := pico.DetectParams{
		MinSize:      100,
		MaxSize:      1000,
		StrideFactor: 0.1,
		ScaleFactor:  1.1,
	}

	dets, err := cascade.FindObjects(params, img)
	if err != nil {
		log.Fatalf("scanning image: %v", err)
	}
	dets = pico.ClusterDetections(dets, 0.3)

	for _, d := range dets {
		if d.Q >= 5.0 {
			fmt.Printf("%d %d %d %f\n", d.Row, d.Col, d.Scale, d.Q)
		}
	}
*/
package pico
