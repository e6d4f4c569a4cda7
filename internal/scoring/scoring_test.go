package scoring

import (
	"fmt"
	"math"
	"testing"

	"github.com/spigell/lead-matcher/internal/realestate"
)

func window(lo, hi *float64) realestate.Range {
	return realestate.Range{Min: lo, Max: hi}
}

func TestRangeUnbounded(t *testing.T) {
	t.Parallel()

	for _, v := range []*float64{nil, realestate.Float(0), realestate.Float(1e9)} {
		if got := Range(v, realestate.Range{}, 0.15); got != 1.0 {
			t.Fatalf("expected exactly 1.0 without bounds, got %v", got)
		}
	}
	if got := ConstraintMultiplier(realestate.Range{}); got != 0.4 {
		t.Fatalf("expected multiplier 0.4 without bounds, got %v", got)
	}
}

func TestRangeMissingValue(t *testing.T) {
	t.Parallel()

	if got := Range(nil, window(realestate.Float(1), nil), 0.35); got != 0 {
		t.Fatalf("expected 0 for missing value, got %v", got)
	}
}

func TestRangeMonotoneAwayFromWindow(t *testing.T) {
	t.Parallel()

	windows := []struct {
		name string
		r    realestate.Range
		from float64
		step float64
		dirs []float64
	}{
		{name: "both bounds from center", r: window(realestate.Float(100000), realestate.Float(130000)), from: 115000, step: 500, dirs: []float64{-1, 1}},
		{name: "below min", r: window(realestate.Float(3), nil), from: 3, step: 0.05, dirs: []float64{-1}},
		{name: "above max", r: window(nil, realestate.Float(200)), from: 200, step: 1, dirs: []float64{1}},
	}

	for _, w := range windows {
		w := w
		t.Run(w.name, func(t *testing.T) {
			t.Parallel()
			for _, dir := range w.dirs {
				prev := math.Inf(1)
				for i := 0; i < 200; i++ {
					v := w.from + dir*float64(i)*w.step
					got := Range(&v, w.r, 0.15)
					if got >= 1.0 || got < 0 {
						t.Fatalf("score out of [0,1) at %v: %v", v, got)
					}
					if got > prev+1e-12 {
						t.Fatalf("score increased moving away at %v: %v > %v", v, got, prev)
					}
					prev = got
				}
			}
		})
	}
}

func TestRangeContinuousAtBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		r       realestate.Range
		bound   float64
		outside float64
	}{
		{name: "lower of two", r: window(realestate.Float(100), realestate.Float(200)), bound: 100, outside: -1},
		{name: "upper of two", r: window(realestate.Float(100), realestate.Float(200)), bound: 200, outside: 1},
		{name: "lower only", r: window(realestate.Float(3), nil), bound: 3, outside: -1},
		{name: "upper only", r: window(nil, realestate.Float(130000)), bound: 130000, outside: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			at := Range(&tt.bound, tt.r, 0.15)
			for _, eps := range []float64{1e-6, 1e-3, 0.01} {
				v := tt.bound + tt.outside*eps
				if got := Range(&v, tt.r, 0.15); got > at {
					t.Fatalf("value %v just outside scores %v, above %v at the bound", v, got, at)
				}
			}
		})
	}
}

func TestRangeBelowOneNearBound(t *testing.T) {
	t.Parallel()

	v := math.Nextafter(1, 0)
	if got := Range(&v, window(realestate.Float(1), realestate.Float(100)), 0.15); got >= 1 {
		t.Fatalf("expected a score below 1 just under the lower bound, got %v", got)
	}
	w := math.Nextafter(100, 200)
	if got := Range(&w, window(nil, realestate.Float(100)), 0.35); got >= 1 {
		t.Fatalf("expected a score below 1 just over the upper bound, got %v", got)
	}
}

func TestScoreOutsideWindowRanksBelowInside(t *testing.T) {
	t.Parallel()

	scorer := New(DefaultConfig())
	listing, client := scenarioPair()
	inside := scorer.Score(listing, client)

	above := *listing
	above.ID = "l-2"
	above.Price = realestate.Float(130100)
	outside := scorer.Score(&above, client)

	if outside.Detail.Price >= inside.Detail.Price {
		t.Fatalf("price above the max scored %v, not below in-window %v", outside.Detail.Price, inside.Detail.Price)
	}
	if outside.Score >= inside.Score {
		t.Fatalf("listing above the max scored %v, not below in-window %v", outside.Score, inside.Score)
	}
}

func TestRangeInvertedBounds(t *testing.T) {
	t.Parallel()

	v := 150.0
	straight := Range(&v, window(realestate.Float(100), realestate.Float(200)), 0.15)
	inverted := Range(&v, window(realestate.Float(200), realestate.Float(100)), 0.15)
	if straight != inverted {
		t.Fatalf("expected inverted bounds to be swapped, got %v and %v", straight, inverted)
	}
	if straight != rangeCeiling {
		t.Fatalf("expected window center to hit the ceiling, got %v", straight)
	}
}

func TestRangeDecay(t *testing.T) {
	t.Parallel()

	r := window(realestate.Float(100), realestate.Float(200))
	tests := []struct {
		value  float64
		expect float64
	}{
		{value: 85, expect: 0},
		{value: 50, expect: 0},
		// Half of the pad past the bound halves the score at the bound (0.78 * 0.94).
		{value: 207.5, expect: 0.5 * 0.7332},
	}
	for _, tt := range tests {
		if got := Range(&tt.value, r, 0.15); math.Abs(got-tt.expect) > 1e-9 {
			t.Fatalf("value %v: expected %v, got %v", tt.value, tt.expect, got)
		}
	}
}

func TestConstraintMultiplier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		r      realestate.Range
		expect float64
	}{
		{name: "one bound", r: window(realestate.Float(3), nil), expect: 0.5},
		{name: "point window", r: window(realestate.Float(3), realestate.Float(3)), expect: 1.0},
		{name: "very wide", r: window(realestate.Float(0), realestate.Float(1000)), expect: 0.5},
		{name: "moderate", r: window(realestate.Float(100), realestate.Float(140)), expect: 1 - 0.5*(40.0/120.0)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ConstraintMultiplier(tt.r); math.Abs(got-tt.expect) > 1e-12 {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func scenarioPair() (*realestate.Listing, *realestate.ClientProfile) {
	client := &realestate.ClientProfile{
		ID:              "c-1",
		Operation:       realestate.OperationSale,
		OperationTokens: []string{realestate.OperationSale},
		Price:           window(realestate.Float(100000), realestate.Float(130000)),
		Rooms:           window(realestate.Float(3), nil),
	}
	listing := &realestate.Listing{
		ID:        "l-1",
		Operation: realestate.OperationSale,
		Price:     realestate.Float(125000),
		Rooms:     realestate.Int(3),
	}
	return listing, client
}

func TestScoreScenario(t *testing.T) {
	t.Parallel()

	listing, client := scenarioPair()
	res := New(DefaultConfig()).Score(listing, client)

	if res.Neutral {
		t.Fatalf("expected active criteria")
	}
	if len(res.Active) != 3 {
		t.Fatalf("expected price, rooms and operation to be active, got %v", res.Active)
	}
	if res.Detail.Price != 0.9055 {
		t.Fatalf("unexpected price sub-score %v", res.Detail.Price)
	}
	if res.Detail.Rooms != 0.7566 {
		t.Fatalf("unexpected rooms sub-score %v", res.Detail.Rooms)
	}
	if res.Detail.Operation != 0.985 {
		t.Fatalf("unexpected operation sub-score %v", res.Detail.Operation)
	}
	// Unopinionated criteria score 1 before capping.
	if res.Detail.Area != 0.975 || res.Detail.Baths != 0.975 {
		t.Fatalf("expected capped unbounded criteria, got %+v", res.Detail)
	}
	if res.Score < 0.53 || res.Score > 0.56 {
		t.Fatalf("unexpected composite score %v", res.Score)
	}
}

func TestScoreNeutral(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	res := New(cfg).Score(&realestate.Listing{ID: "l"}, &realestate.ClientProfile{ID: "c"})
	if !res.Neutral || res.Score != cfg.NeutralScore {
		t.Fatalf("expected neutral score %v, got %+v", cfg.NeutralScore, res)
	}

	cfg.Weights = Weights{}
	listing, client := scenarioPair()
	res = New(cfg).Score(listing, client)
	if !res.Neutral {
		t.Fatalf("expected all-zero weights to take the neutral path, got %+v", res)
	}
}

func TestScoreCoverage(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Weights = Weights{Price: 0.5, Area: 0.5}
	scorer := New(cfg)

	client := &realestate.ClientProfile{
		ID:    "c",
		Price: window(realestate.Float(100), realestate.Float(200)),
		Area:  window(realestate.Float(100), realestate.Float(200)),
	}
	full := scorer.Score(&realestate.Listing{ID: "a", Price: realestate.Float(150), Area: realestate.Float(150)}, client)
	partial := scorer.Score(&realestate.Listing{ID: "b", Price: realestate.Float(150)}, client)

	if full.Detail.Price != partial.Detail.Price {
		t.Fatalf("expected identical price sub-scores")
	}
	if full.Score <= partial.Score+0.01 {
		t.Fatalf("expected fewer criteria to be penalized: full=%v partial=%v", full.Score, partial.Score)
	}
}

func TestScoreBoundedAndDeterministic(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	scorer := New(cfg)
	client := &realestate.ClientProfile{
		ID:        "c",
		Operation: realestate.OperationSale,
		Price:     window(realestate.Float(100), realestate.Float(101)),
		Area:      window(realestate.Float(80), realestate.Float(81)),
		Rooms:     window(realestate.Float(3), realestate.Float(3)),
		Baths:     window(realestate.Float(2), realestate.Float(2)),
	}
	listing := &realestate.Listing{
		ID:        "l",
		Operation: realestate.OperationSale,
		Price:     realestate.Float(100.5),
		Area:      realestate.Float(80.5),
		Rooms:     realestate.Int(3),
		Baths:     realestate.Int(2),
	}

	first := scorer.Score(listing, client)
	if first.Score >= 1.0 || first.Score > cfg.HardCap+jitterScale {
		t.Fatalf("expected score below the hard cap, got %v", first.Score)
	}
	for i := 0; i < 10; i++ {
		if again := scorer.Score(listing, client); again.Score != first.Score || again.Detail != first.Detail {
			t.Fatalf("expected identical results, got %+v and %+v", first, again)
		}
	}
}

func TestTieBreak(t *testing.T) {
	t.Parallel()

	seen := map[float64]struct{}{}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		v := TieBreak("client", id)
		if v < -1 || v > 1 {
			t.Fatalf("tie-break out of range: %v", v)
		}
		if v != TieBreak("client", id) {
			t.Fatalf("tie-break is not stable")
		}
		seen[v] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("expected tie-break to vary across identifiers")
	}
}

func TestScoreStaysBelowOneAtLooseCap(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.HardCap = 0.9999
	cfg.CoverageMin = 1
	cfg.Caps = Weights{Price: 1, Area: 1, Rooms: 1, Baths: 1, Operation: 1}
	scorer := New(cfg)

	client := &realestate.ClientProfile{ID: "c", Operation: realestate.OperationSale}
	jittered := 0
	for i := 0; i < 50; i++ {
		listing := &realestate.Listing{ID: fmt.Sprintf("l-%d", i), Operation: realestate.OperationSale}
		if TieBreak(client.ID, listing.ID) > 0.5 {
			jittered++
		}
		if got := scorer.Score(listing, client).Score; got >= 1 {
			t.Fatalf("listing %s scored %v", listing.ID, got)
		}
	}
	if jittered == 0 {
		t.Fatalf("expected some pairs to be jittered past the cap")
	}
}
