package detector

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// Detection error kinds. Callers distinguish them with errors.Is.
var (
	// ErrUnavailable means no usable keypoint model is loaded.
	ErrUnavailable = errors.New("keypoint model not available")
	// ErrNoHand means the model ran but found no hand in the image.
	ErrNoHand = errors.New("no hand detected")
	// ErrTimeout means the detection did not complete within the request deadline.
	ErrTimeout = errors.New("detection timed out")
	// ErrImageNotFound means the input image could not be loaded.
	ErrImageNotFound = errors.New("image not found")
)

// Detector defines the interface for hand keypoint detection implementations.
type Detector interface {
	// Detect analyzes an image and returns the 21 detected hand landmarks
	// with per-point confidences. Returns ErrNoHand if no hand is visible
	// and ErrTimeout if ctx expires before detection completes.
	Detect(ctx context.Context, frame *gocv.Mat) (*HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for keypoint detection.
type Config struct {
	// ModelPath is the path to the trained keypoint model weights.
	ModelPath string

	// PythonPath overrides the Python interpreter used for the model
	// bridge. Empty means auto-detect.
	PythonPath string
}

// ReadImage loads an image from disk for detection.
// The caller owns the returned Mat and must Close it.
func ReadImage(path string) (*gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, path)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: could not decode %s", ErrImageNotFound, path)
	}

	return &mat, nil
}
