package palmprint

import "math"

// DefaultThreshold is the default maximum distance for declaring a match.
// Callers may pass their own threshold to Decide; lower is stricter.
const DefaultThreshold = 0.13

// Candidate is one stored palm considered during a search.
type Candidate struct {
	Identity  string
	Distances DistanceVector
}

// MatchResult is the outcome of searching a query against candidates.
// Index is -1 when there were no candidates.
type MatchResult struct {
	Index    int
	Identity string
	Distance float64
}

// Distance computes the Euclidean distance between two distance vectors
// over the intersection of their keys. Returns +Inf when the vectors share
// no keys. Vectors built from the fixed knuckle scheme always share the
// full key set; partial overlap only arises from malformed records.
func Distance(a, b DistanceVector) float64 {
	var sum float64
	common := false

	for key, va := range a {
		vb, ok := b[key]
		if !ok {
			continue
		}
		common = true
		diff := va - vb
		sum += diff * diff
	}

	if !common {
		return math.Inf(1)
	}

	return math.Sqrt(sum)
}

// Search computes the distance from query to every candidate and returns
// the nearest one. Ties break in favor of the earliest candidate.
func Search(query DistanceVector, candidates []Candidate) MatchResult {
	best := MatchResult{Index: -1, Distance: math.Inf(1)}

	for i, c := range candidates {
		d := Distance(query, c.Distances)
		if d < best.Distance {
			best = MatchResult{Index: i, Identity: c.Identity, Distance: d}
		}
	}

	return best
}

// Decide reports whether a distance counts as a match under the threshold.
func Decide(distance, threshold float64) bool {
	return distance <= threshold
}
