// Package palmprint derives scale-invariant palm signatures from hand
// landmarks and matches them against stored templates.
//
// The biometric basis is the set of 5 knuckle landmarks (wrist plus the
// four finger MCP joints). The 10 pairwise distances between them, divided
// by the wrist-to-middle-knuckle distance, form a scale-invariant vector
// that is stable for one person's palm across captures.
package palmprint

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ayusman/hasta/internal/detector"
)

// knucklePoint names one of the 5 fixed landmark indices used as the
// biometric basis. The set is a constant of the scheme, never configured.
type knucklePoint struct {
	name  string
	index int
}

var knucklePoints = []knucklePoint{
	{"wrist", detector.Wrist},
	{"index_knuckle", detector.IndexMCP},
	{"middle_knuckle", detector.MiddleMCP},
	{"ring_knuckle", detector.RingMCP},
	{"pinky_knuckle", detector.PinkyMCP},
}

// NumMeasurements is the number of unordered knuckle pairs, C(5,2).
const NumMeasurements = 10

// ReferenceKey is the pair whose distance all others are normalized by.
const ReferenceKey = "middle_knuckle_wrist"

// DistanceVector maps a canonical pair key to a non-negative distance.
// A full vector built from the 5 knuckle points has exactly
// NumMeasurements entries.
type DistanceVector map[string]float64

// PairKey returns the canonical key for an unordered pair of point names:
// the lexically smaller name first, joined with "_".
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// Template is the transient output of building a palm signature from one
// detection. Raw distances are in image pixels; normalized distances are
// scale-invariant.
type Template struct {
	Signature           string
	RawDistances        DistanceVector
	NormalizedDistances DistanceVector
	Landmarks           *detector.HandLandmarks
	CreatedAt           time.Time
}

// Signature derives the short palm signature from a normalized distance
// vector. It is a pure function of the (key, value) content: entries are
// sorted by key, rendered as "key:value" with 6 decimal digits, joined
// with "|", hashed with SHA-256, and truncated to 16 hex characters.
func Signature(normalized DistanceVector) string {
	keys := make([]string, 0, len(normalized))
	for key := range normalized {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s:%.6f", key, normalized[key]))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", sum)[:16]
}
