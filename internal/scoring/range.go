// Package scoring computes the per-criterion and composite desirability of a listing for a client.
package scoring

import (
	"math"

	"github.com/spigell/lead-matcher/internal/realestate"
)

const (
	edgeBand      = 0.20
	edgePenalty   = 0.22
	centerBand    = 0.25
	centerPenalty = 0.06
	rangeCeiling  = 0.995
	minPad        = 1e-9
)

// Range scores value against the window r. It returns exactly 1 when r has no bounds, 0 when the
// value is missing, and stays below rangeCeiling otherwise. Outside the window the score at the
// violated bound decays linearly to 0 over softness*span, so it never rises moving away from the
// window. Inverted bounds are swapped.
func Range(value *float64, r realestate.Range, softness float64) float64 {
	if !r.IsSet() {
		return 1.0
	}
	if value == nil {
		return 0.0
	}

	v := *value
	lo, hi := r.Min, r.Max
	if r.IsInverted() {
		lo, hi = hi, lo
	}

	span := 1.0
	if lo != nil && hi != nil && *hi > *lo {
		span = *hi - *lo
	}
	pad := math.Max(softness*span, minPad)

	if lo != nil && v < *lo {
		return math.Min(insideScore(*lo, lo, hi)*clamp01(1.0-(*lo-v)/pad), rangeCeiling)
	}
	if hi != nil && v > *hi {
		return math.Min(insideScore(*hi, lo, hi)*clamp01(1.0-(v-*hi)/pad), rangeCeiling)
	}
	return insideScore(v, lo, hi)
}

// insideScore is the score of a value within [lo, hi]: penalized near the edges and, with both
// bounds, slightly away from the center.
func insideScore(v float64, lo, hi *float64) float64 {
	var span, distEdge float64
	switch {
	case lo == nil:
		span = 1.0
		distEdge = *hi - v
	case hi == nil:
		span = 1.0
		distEdge = v - *lo
	default:
		span = math.Max(*hi-*lo, minPad)
		distEdge = math.Min(v-*lo, *hi-v)
	}
	band := math.Max(edgeBand*span, minPad)
	sEdge := 1.0 - edgePenalty*(1.0-clamp01(distEdge/band))

	// A single bound gives no midpoint, so half the penalty applies everywhere.
	sCenter := 1.0 - 0.5*centerPenalty
	if lo != nil && hi != nil {
		center := 0.5 * (*lo + *hi)
		bandCenter := math.Max(centerBand*span, minPad)
		sCenter = 1.0 - centerPenalty*(1.0-clamp01(1.0-math.Abs(v-center)/bandCenter))
	}

	return math.Min(clamp01(sEdge*sCenter), rangeCeiling)
}

// ConstraintMultiplier measures how informative a stated window is: 0.4 without bounds, 0.5 with
// one, and from 0.5 (wide relative to its midpoint) up to 1.0 (narrow) with both.
func ConstraintMultiplier(r realestate.Range) float64 {
	switch {
	case r.Min == nil && r.Max == nil:
		return 0.4
	case r.Min == nil || r.Max == nil:
		return 0.5
	}

	lo, hi := *r.Min, *r.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	span := math.Max(hi-lo, 0)
	center := 0.5 * (hi + lo)
	rel := clamp01(span / math.Max(1.0, math.Abs(center)))
	return 1.0 - 0.5*rel
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}

func round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
