package detector

import (
	"context"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	hand *HandLandmarks
	err  error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHand sets the landmarks that will be returned by Detect.
func (m *MockDetector) SetHand(hand *HandLandmarks) {
	m.hand = hand
	m.err = nil
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns the pre-configured landmarks or error.
// Returns ErrNoHand when nothing has been configured.
func (m *MockDetector) Detect(ctx context.Context, frame *gocv.Mat) (*HandLandmarks, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrTimeout
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.hand == nil {
		return nil, ErrNoHand
	}
	return m.hand, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenPalmLandmarks returns a preset HandLandmarks representing a flat open
// palm facing the camera, in pixel coordinates of a 640x480 image. All
// points carry high confidence.
func OpenPalmLandmarks() *HandLandmarks {
	hand := &HandLandmarks{}

	set := func(idx int, x, y float64) {
		hand.Points[idx] = Landmark{X: x, Y: y, Confidence: 0.95}
	}

	// Wrist at the bottom center
	set(Wrist, 320, 420)

	// Thumb angled out to the side
	set(ThumbCMC, 270, 400)
	set(ThumbMCP, 240, 370)
	set(ThumbIP, 220, 340)
	set(ThumbTip, 205, 315)

	// Index finger
	set(IndexMCP, 280, 300)
	set(IndexPIP, 272, 250)
	set(IndexDIP, 268, 215)
	set(IndexTip, 265, 185)

	// Middle finger (longest)
	set(MiddleMCP, 320, 290)
	set(MiddlePIP, 320, 235)
	set(MiddleDIP, 320, 195)
	set(MiddleTip, 320, 160)

	// Ring finger
	set(RingMCP, 358, 295)
	set(RingPIP, 362, 245)
	set(RingDIP, 365, 208)
	set(RingTip, 367, 178)

	// Pinky
	set(PinkyMCP, 395, 310)
	set(PinkyPIP, 402, 270)
	set(PinkyDIP, 406, 242)
	set(PinkyTip, 409, 218)

	return hand
}

// ShiftedPalmLandmarks returns OpenPalmLandmarks translated and scaled, as
// if the same palm were captured at a different distance and position.
// Useful for exercising scale-invariant matching in tests.
func ShiftedPalmLandmarks(dx, dy, scale float64) *HandLandmarks {
	base := OpenPalmLandmarks()
	hand := &HandLandmarks{}

	wrist := base.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		p := base.Points[i]
		hand.Points[i] = Landmark{
			X:          wrist.X + (p.X-wrist.X)*scale + dx,
			Y:          wrist.Y + (p.Y-wrist.Y)*scale + dy,
			Confidence: p.Confidence,
		}
	}

	return hand
}
