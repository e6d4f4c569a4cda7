package matching

import (
	"sort"

	"github.com/spigell/lead-matcher/internal/filtering"
	"github.com/spigell/lead-matcher/internal/logger"
	"github.com/spigell/lead-matcher/internal/realestate"
	"github.com/spigell/lead-matcher/internal/scoring"
)

const (
	SourcePassesFilters = "passes_filters"
	SourceBestOverall   = "best_overall"
)

// ClientSnapshot is the part of a client's requirements copied into unmatched rows.
type ClientSnapshot struct {
	Operation       string           `json:"operation"`
	Price           realestate.Range `json:"price"`
	Area            realestate.Range `json:"area"`
	Rooms           realestate.Range `json:"rooms"`
	Baths           realestate.Range `json:"baths"`
	LocationTokens  []string         `json:"location_tokens"`
	TypeTokens      []string         `json:"type_tokens"`
	ConditionTokens []string         `json:"condition_tokens"`
}

// UnmatchedReport explains one client without candidates through its best near miss.
type UnmatchedReport struct {
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
	// CandidateSource is empty when the catalog has no listings at all.
	CandidateSource string           `json:"candidate_source"`
	PassesFilters   bool             `json:"passes_filters"`
	Score           float64          `json:"score"`
	Detail          scoring.Detail   `json:"detail"`
	Listing         *ListingSnapshot `json:"listing,omitempty"`
	// ListingReasons are the filters the chosen listing itself fails.
	ListingReasons filtering.ReasonSet `json:"-"`
	// Reasons are the codes counted in the summary for this client.
	Reasons filtering.ReasonSet `json:"-"`
	Client  ClientSnapshot      `json:"client"`
}

// ReasonCount is one histogram bucket.
type ReasonCount struct {
	Reason  filtering.Reason
	Clients int
	Percent float64
}

// UnmatchedSummary aggregates the reasons over all unmatched clients.
type UnmatchedSummary struct {
	Total     int
	Unmatched int
	Reasons   []ReasonCount
}

type nearMiss struct {
	listing *realestate.Listing
	eval    Evaluation
}

// Unmatched rescans the whole catalog for every client of the batch without candidates. The best
// passing listing and the best listing overall are tracked separately; a strictly higher score
// replaces the current best. A passing listing at or above the threshold ends the scan and the
// client is not reported.
func (e *Engine) Unmatched(b *Batch) ([]*UnmatchedReport, UnmatchedSummary) {
	summary := UnmatchedSummary{Total: b.Clients.Len()}
	counts := make(map[filtering.Reason]int)
	var reports []*UnmatchedReport

	for i, c := range b.Clients.Items {
		if len(b.Results[i]) > 0 {
			continue
		}
		summary.Unmatched++

		report, matched := e.explain(c)
		if matched {
			e.logger.Info("client matched on rescan", logger.ClientFields(c.ID, c.Name)...)
			continue
		}
		reports = append(reports, report)
		for r := range report.Reasons {
			counts[r]++
		}
	}

	for r, n := range counts {
		pct := 0.0
		if summary.Unmatched > 0 {
			pct = float64(n) / float64(summary.Unmatched) * 100
		}
		summary.Reasons = append(summary.Reasons, ReasonCount{Reason: r, Clients: n, Percent: pct})
	}
	sort.Slice(summary.Reasons, func(i, j int) bool {
		a, b := summary.Reasons[i], summary.Reasons[j]
		if a.Clients != b.Clients {
			return a.Clients > b.Clients
		}
		return a.Reason < b.Reason
	})

	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Score > reports[j].Score })
	return reports, summary
}

func (e *Engine) explain(c *realestate.ClientProfile) (*UnmatchedReport, bool) {
	var bestOK, bestAny *nearMiss
	accumulated := filtering.NewReasonSet()
	hadCandidate := false

	for _, l := range e.listings.Items {
		eval := e.Evaluate(l, c)
		score := eval.Score.Score

		if eval.Filter.Passes && (bestOK == nil || score > bestOK.eval.Score.Score) {
			bestOK = &nearMiss{listing: l, eval: eval}
		}
		if bestAny == nil || score > bestAny.eval.Score.Score {
			bestAny = &nearMiss{listing: l, eval: eval}
		}

		if eval.Filter.Passes {
			hadCandidate = true
			if score >= e.cfg.MinScore {
				return nil, true
			}
			continue
		}
		accumulated.Merge(eval.Filter.Reasons)
	}

	switch {
	case hadCandidate:
		accumulated = filtering.NewReasonSet(filtering.ReasonScoreBelowThreshold)
	case len(accumulated) == 0:
		accumulated = filtering.NewReasonSet(filtering.ReasonNoInventory)
	}

	report := &UnmatchedReport{
		ClientID:       c.ID,
		ClientName:     c.Name,
		ListingReasons: filtering.NewReasonSet(),
		Reasons:        accumulated,
		Client: ClientSnapshot{
			Operation:       c.Operation,
			Price:           c.Price,
			Area:            c.Area,
			Rooms:           c.Rooms,
			Baths:           c.Baths,
			LocationTokens:  c.LocationTokens,
			TypeTokens:      c.TypeTokens,
			ConditionTokens: c.ConditionTokens,
		},
	}

	chosen := bestOK
	report.CandidateSource = SourcePassesFilters
	if chosen == nil {
		chosen = bestAny
		report.CandidateSource = SourceBestOverall
	}
	if chosen == nil {
		report.CandidateSource = ""
		return report, false
	}

	snap := snapshot(chosen.listing)
	report.Listing = &snap
	report.PassesFilters = chosen.eval.Filter.Passes
	report.Score = chosen.eval.Score.Score
	report.Detail = chosen.eval.Score.Detail
	report.ListingReasons = chosen.eval.Filter.Reasons
	return report, false
}
