package palmprint

import (
	"math"
	"testing"
)

func fullVector(base float64) DistanceVector {
	v := make(DistanceVector, NumMeasurements)
	names := []string{"wrist", "index_knuckle", "middle_knuckle", "ring_knuckle", "pinky_knuckle"}
	i := 0.0
	for a := 0; a < len(names); a++ {
		for b := a + 1; b < len(names); b++ {
			v[PairKey(names[a], names[b])] = base + i*0.05
			i++
		}
	}
	return v
}

func TestDistance_Identity(t *testing.T) {
	v := fullVector(1.0)

	if d := Distance(v, v); d != 0 {
		t.Errorf("Distance(v, v) = %f, want 0", d)
	}
}

func TestDistance_NoCommonKeys(t *testing.T) {
	a := DistanceVector{"index_knuckle_wrist": 1.2}
	b := DistanceVector{"pinky_knuckle_wrist": 0.9}

	if d := Distance(a, b); !math.IsInf(d, 1) {
		t.Errorf("Distance with disjoint keys = %f, want +Inf", d)
	}
}

func TestDistance_PartialOverlap(t *testing.T) {
	// Malformed or legacy records can overlap on a subset of keys; only
	// the intersection contributes.
	a := DistanceVector{
		"index_knuckle_wrist":  1.0,
		"middle_knuckle_wrist": 1.0,
	}
	b := DistanceVector{
		"middle_knuckle_wrist": 1.0,
		"ring_knuckle_wrist":   5.0,
	}

	if d := Distance(a, b); d != 0 {
		t.Errorf("Distance over intersection = %f, want 0", d)
	}
}

func TestDistance_Euclidean(t *testing.T) {
	a := DistanceVector{"p1": 1.0, "p2": 2.0}
	b := DistanceVector{"p1": 4.0, "p2": 6.0}

	// sqrt(3^2 + 4^2) = 5
	if d := Distance(a, b); math.Abs(d-5.0) > 1e-9 {
		t.Errorf("Distance = %f, want 5.0", d)
	}
}

func TestSearch_FindsNearest(t *testing.T) {
	query := fullVector(1.0)

	near := fullVector(1.0)
	near["index_knuckle_wrist"] += 0.01

	far := fullVector(2.0)

	result := Search(query, []Candidate{
		{Identity: "far", Distances: far},
		{Identity: "near", Distances: near},
	})

	if result.Identity != "near" {
		t.Errorf("best candidate = %q, want %q", result.Identity, "near")
	}
	if result.Index != 1 {
		t.Errorf("best index = %d, want 1", result.Index)
	}
	if result.Distance > 0.02 {
		t.Errorf("best distance = %f, want <= 0.02", result.Distance)
	}
}

func TestSearch_TieBreaksOnFirst(t *testing.T) {
	query := fullVector(1.0)
	same := fullVector(1.0)

	result := Search(query, []Candidate{
		{Identity: "first", Distances: same},
		{Identity: "second", Distances: same},
	})

	if result.Identity != "first" {
		t.Errorf("tie broke to %q, want %q", result.Identity, "first")
	}
}

func TestSearch_NoCandidates(t *testing.T) {
	result := Search(fullVector(1.0), nil)

	if result.Index != -1 {
		t.Errorf("index = %d, want -1", result.Index)
	}
	if !math.IsInf(result.Distance, 1) {
		t.Errorf("distance = %f, want +Inf", result.Distance)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		distance  float64
		threshold float64
		want      bool
	}{
		{"well within", 0.05, 0.13, true},
		{"exactly at threshold", 0.13, 0.13, true},
		{"just above", 0.1301, 0.13, false},
		{"zero threshold exact match", 0, 0, true},
		{"infinite distance", math.Inf(1), 0.13, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.distance, tt.threshold); got != tt.want {
				t.Errorf("Decide(%f, %f) = %v, want %v", tt.distance, tt.threshold, got, tt.want)
			}
		})
	}
}
