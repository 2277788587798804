package app

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/ayusman/hasta/internal/audit"
	"github.com/ayusman/hasta/internal/palmprint"
	"github.com/ayusman/hasta/internal/store"
)

// Decision is the outcome of a recognition attempt.
type Decision struct {
	// Matched reports whether the best candidate was within the threshold.
	Matched bool
	// Identity is the matched identity; empty when Matched is false.
	Identity string
	// BestDistance is the distance to the nearest candidate, +Inf when
	// the store held no candidates.
	BestDistance float64
	// Threshold is the maximum distance that was applied.
	Threshold float64
	// Confidence is 1 - BestDistance. It is a derived display value, not
	// a calibrated probability: it can be negative or exceed 1.
	Confidence float64
	// Candidates is how many registrations were compared.
	Candidates int
}

// Recognize captures a palm template from the image and decides whether it
// matches a registered palm.
//
// With a non-empty identity the comparison is targeted: only that
// registration is considered, and store.ErrNotRegistered is returned when
// it does not exist. With an empty identity the whole store is searched
// for the nearest candidate (open-set).
//
// Pass a negative threshold to use the pipeline default. On a positive
// match the matched registration's lastUsed timestamp is updated.
func (a *App) Recognize(ctx context.Context, imagePath, identity string, threshold float64) (*Decision, error) {
	if threshold < 0 {
		threshold = a.config.Threshold
	}

	template, err := a.capture(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	var (
		best       palmprint.MatchResult
		candidates int
	)

	if identity != "" {
		best, candidates, err = a.matchTargeted(template, identity)
	} else {
		best, candidates, err = a.matchOpenSet(template)
	}
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		BestDistance: best.Distance,
		Threshold:    threshold,
		Confidence:   1 - best.Distance,
		Candidates:   candidates,
	}

	if best.Index >= 0 && palmprint.Decide(best.Distance, threshold) {
		decision.Matched = true
		decision.Identity = best.Identity

		if err := a.config.Store.Touch(best.Identity); err != nil {
			// The record may have been deleted mid-request; the match
			// decision itself still stands.
			log.Printf("Failed to update lastUsed for %s: %v", best.Identity, err)
		}
	}

	if decision.Matched {
		log.Printf("Palm recognized as %s (distance %.6f, threshold %.3f)", decision.Identity, best.Distance, threshold)
	} else {
		log.Printf("No matching palm (best distance %.6f, threshold %.3f)", best.Distance, threshold)
	}

	a.record(&audit.Event{
		Command:   audit.CommandRecognize,
		Identity:  decision.Identity,
		Matched:   decision.Matched,
		Distance:  finiteOrZero(best.Distance),
		Threshold: threshold,
	})

	return decision, nil
}

// matchTargeted compares the template against exactly one registration.
func (a *App) matchTargeted(template *palmprint.Template, identity string) (palmprint.MatchResult, int, error) {
	reg, err := a.config.Store.Load(identity)
	if err != nil {
		return palmprint.MatchResult{}, 0, err
	}
	if reg == nil {
		return palmprint.MatchResult{}, 0, fmt.Errorf("%w: %s", store.ErrNotRegistered, identity)
	}

	result := palmprint.MatchResult{
		Index:    0,
		Identity: reg.Identity,
		Distance: palmprint.Distance(template.NormalizedDistances, reg.NormalizedDistances),
	}
	return result, 1, nil
}

// matchOpenSet searches the whole store for the nearest registration.
func (a *App) matchOpenSet(template *palmprint.Template) (palmprint.MatchResult, int, error) {
	regs, err := a.config.Store.LoadAll()
	if err != nil {
		return palmprint.MatchResult{}, 0, err
	}

	candidates := make([]palmprint.Candidate, len(regs))
	for i, reg := range regs {
		candidates[i] = palmprint.Candidate{
			Identity:  reg.Identity,
			Distances: reg.NormalizedDistances,
		}
	}

	log.Printf("Comparing against %d registered palm(s)", len(candidates))
	return palmprint.Search(template.NormalizedDistances, candidates), len(candidates), nil
}

func finiteOrZero(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
