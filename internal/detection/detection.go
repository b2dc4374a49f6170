// Package detection owns the model registry and the detection-dispatch
// loop. Models run against each frame in configuration order, which makes
// it deterministic which model's hit wins an accident-report race.
package detection

import "errors"

// ErrNoFrame is returned by ProcessLatest when nothing has been captured yet.
var ErrNoFrame = errors.New("detection: no frame captured yet")

// ErrUnknownModel is returned when an operation names a model that is not loaded.
var ErrUnknownModel = errors.New("detection: model not loaded")

// Box is one detected region in pixel coordinates.
type Box struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Detection is the result of running one model against one frame.
// Slices are index-aligned: Boxes[i], Confidences[i], and ClassIDs[i]
// describe the same object.
type Detection struct {
	Model       string
	Boxes       []Box
	Confidences []float64
	ClassIDs    []int
}

// Empty reports whether the model found nothing above its threshold.
func (d Detection) Empty() bool { return len(d.Boxes) == 0 }
