package palmprint

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayusman/hasta/internal/detector"
)

// MinKnuckleConfidence is the minimum per-point confidence required for
// each of the 5 knuckle landmarks before a template is built.
const MinKnuckleConfidence = 0.5

var (
	// ErrInsufficientConfidence means at least one knuckle landmark was
	// detected below MinKnuckleConfidence.
	ErrInsufficientConfidence = errors.New("insufficient knuckle confidence")
	// ErrMissingReference means the normalization reference distance is
	// absent or degenerate, so no scale-invariant vector can be built.
	ErrMissingReference = errors.New("missing normalization reference")
)

// Build turns detected hand landmarks into a palm template. It is a pure
// function of the landmarks: no side effects, deterministic output.
func Build(hand *detector.HandLandmarks) (*Template, error) {
	if hand == nil {
		return nil, fmt.Errorf("build template: nil landmarks")
	}

	for _, kp := range knucklePoints {
		if c := hand.Points[kp.index].Confidence; c < MinKnuckleConfidence {
			return nil, fmt.Errorf("%w: %s at %.3f", ErrInsufficientConfidence, kp.name, c)
		}
	}

	raw := knuckleDistances(hand)

	normalized, err := normalizeDistances(raw)
	if err != nil {
		return nil, err
	}

	snapshot := *hand
	return &Template{
		Signature:           Signature(normalized),
		RawDistances:        raw,
		NormalizedDistances: normalized,
		Landmarks:           &snapshot,
		CreatedAt:           time.Now(),
	}, nil
}

// knuckleDistances computes the Euclidean distance in image coordinates
// for every unordered pair of knuckle points, keyed canonically.
func knuckleDistances(hand *detector.HandLandmarks) DistanceVector {
	distances := make(DistanceVector, NumMeasurements)

	for i, a := range knucklePoints {
		for _, b := range knucklePoints[i+1:] {
			pa := hand.Points[a.index]
			pb := hand.Points[b.index]
			dx := pa.X - pb.X
			dy := pa.Y - pb.Y
			distances[PairKey(a.name, b.name)] = math.Sqrt(dx*dx + dy*dy)
		}
	}

	return distances
}

// normalizeDistances divides every entry by the reference distance so the
// result is invariant to hand size and camera distance. The reference
// entry itself comes out as exactly 1.0. A missing or zero reference is
// an explicit error; silently falling back to another pair would make the
// scale depend on map iteration order.
func normalizeDistances(raw DistanceVector) (DistanceVector, error) {
	reference, ok := raw[ReferenceKey]
	if !ok {
		return nil, fmt.Errorf("%w: no %q measurement", ErrMissingReference, ReferenceKey)
	}
	if reference <= 0 {
		return nil, fmt.Errorf("%w: degenerate %q distance %.6f", ErrMissingReference, ReferenceKey, reference)
	}

	normalized := make(DistanceVector, len(raw))
	for key, distance := range raw {
		normalized[key] = distance / reference
	}

	return normalized, nil
}
