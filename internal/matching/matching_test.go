package matching

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/lead-matcher/internal/filtering"
	"github.com/spigell/lead-matcher/internal/location"
	"github.com/spigell/lead-matcher/internal/realestate"
	"github.com/spigell/lead-matcher/internal/scoring"
)

func newResolver() *location.Resolver {
	return location.New(location.DefaultTables())
}

func listing(r *location.Resolver, id, zone, op string, price float64, rooms int) *realestate.Listing {
	return &realestate.Listing{
		ID:             id,
		Link:           "https://portal.example/" + id,
		Source:         "portal",
		Location:       zone,
		LocationTokens: r.CollectText(zone),
		Operation:      op,
		Type:           "piso",
		Price:          realestate.Float(price),
		Rooms:          realestate.Int(rooms),
	}
}

func scenarioClient(r *location.Resolver) *realestate.ClientProfile {
	return &realestate.ClientProfile{
		ID:              "c-1",
		Name:            "Ana",
		Operation:       realestate.OperationSale,
		OperationTokens: []string{realestate.OperationSale},
		LocationTokens:  r.CollectText("Alicante provincia"),
		TypeTokens:      []string{"piso"},
		Price:           realestate.Range{Min: realestate.Float(100000), Max: realestate.Float(130000)},
		Rooms:           realestate.Range{Min: realestate.Float(3)},
	}
}

func TestRankScenario(t *testing.T) {
	t.Parallel()

	r := newResolver()
	cfg := DefaultConfig()
	// Three informative criteria with rooms exactly at the minimum land just under 0.55.
	cfg.MinScore = 0.5

	listings := &realestate.Listings{Items: []*realestate.Listing{
		listing(r, "alcoi", "Alcoi", realestate.OperationSale, 125000, 3),
		listing(r, "valencia", "Valencia", realestate.OperationSale, 125000, 3),
	}}
	engine := NewEngine(cfg, r, listings, nil)
	client := scenarioClient(r)

	got := engine.Rank(client)
	if len(got) != 1 {
		t.Fatalf("expected exactly one candidate, got %d", len(got))
	}
	c := got[0]
	if c.Listing.ID != "alcoi" || c.Rank != 1 {
		t.Fatalf("unexpected candidate %+v", c)
	}
	if c.Score < cfg.MinScore || c.Detail.Price <= 0 || c.Detail.Rooms <= 0 {
		t.Fatalf("expected positive sub-scores above threshold, got score=%v detail=%+v", c.Score, c.Detail)
	}
	if c.ZoneMatch == nil || !*c.ZoneMatch || c.TypeMatch == nil || !*c.TypeMatch {
		t.Fatalf("expected audit flags to be set and true, got zone=%v type=%v", c.ZoneMatch, c.TypeMatch)
	}

	alcoi := engine.Evaluate(listings.Items[0], client)
	valencia := engine.Evaluate(listings.Items[1], client)
	if alcoi.Filter.Reasons.Has(filtering.ReasonLocationMismatch) || !valencia.Filter.Reasons.Has(filtering.ReasonLocationMismatch) {
		t.Fatalf("expected only the Valencia listing to miss the location")
	}
}

func TestRankAuditFlagsWithoutTokens(t *testing.T) {
	t.Parallel()

	r := newResolver()
	engine := NewEngine(DefaultConfig(), r, &realestate.Listings{Items: []*realestate.Listing{
		listing(r, "a", "Alcoy", realestate.OperationSale, 100, 1),
	}}, nil)

	got := engine.Rank(&realestate.ClientProfile{ID: "c"})
	if len(got) != 1 {
		t.Fatalf("expected the neutral score to pass the threshold, got %d candidates", len(got))
	}
	if got[0].ZoneMatch != nil || got[0].TypeMatch != nil {
		t.Fatalf("expected nil audit flags for an unconstrained client")
	}
	if got[0].Score != DefaultConfig().Scoring.NeutralScore {
		t.Fatalf("expected neutral score, got %v", got[0].Score)
	}
}

func catalog(r *location.Resolver, n int) *realestate.Listings {
	out := &realestate.Listings{}
	for i := 0; i < n; i++ {
		out.Items = append(out.Items, listing(r, fmt.Sprintf("l-%02d", i), "Cocentaina", realestate.OperationSale, 90000+float64(i)*2500, 2+i%4))
	}
	return out
}

func clients(r *location.Resolver, n int) *realestate.Clients {
	out := &realestate.Clients{}
	for i := 0; i < n; i++ {
		out.Items = append(out.Items, &realestate.ClientProfile{
			ID:              fmt.Sprintf("c-%02d", i),
			Name:            fmt.Sprintf("Client %d", i),
			Operation:       realestate.OperationSale,
			OperationTokens: []string{realestate.OperationSale},
			LocationTokens:  r.CollectText("Alicante provincia"),
			Price:           realestate.Range{Min: realestate.Float(95000 + float64(i)*1000), Max: realestate.Float(120000 + float64(i)*1000)},
			Rooms:           realestate.Range{Min: realestate.Float(2), Max: realestate.Float(4)},
		})
	}
	return out
}

func TestRankOrderingAndTruncation(t *testing.T) {
	t.Parallel()

	r := newResolver()
	cfg := DefaultConfig()
	cfg.MinScore = 0
	cfg.TopNPerClient = 5
	engine := NewEngine(cfg, r, catalog(r, 30), nil)

	got := engine.Rank(clients(r, 1).Items[0])
	if len(got) != 5 {
		t.Fatalf("expected truncation to 5, got %d", len(got))
	}
	for i, c := range got {
		if c.Rank != i+1 {
			t.Fatalf("expected contiguous ranks, got %d at position %d", c.Rank, i)
		}
		if i == 0 {
			continue
		}
		prev := got[i-1]
		if c.Score > prev.Score || (c.Score == prev.Score && c.Detail.Price > prev.Detail.Price) {
			t.Fatalf("candidates out of order at %d: %+v after %+v", i, c, prev)
		}
	}
}

func TestRunWorkersAreEquivalent(t *testing.T) {
	t.Parallel()

	r := newResolver()
	listings := catalog(r, 40)
	cs := clients(r, 23)

	render := func(workers int) string {
		cfg := DefaultConfig()
		cfg.MinScore = 0.3
		cfg.Workers = workers
		batch, err := NewEngine(cfg, r, listings, nil).Run(context.Background(), cs)
		if err != nil {
			t.Fatalf("run with %d workers: %v", workers, err)
		}
		var b strings.Builder
		for _, c := range batch.Matches().Items {
			fmt.Fprintf(&b, "%s|%d|%s|%.6f\n", c.ClientID, c.Rank, c.Listing.ID, c.Score)
		}
		return b.String()
	}

	single := render(1)
	if single == "" {
		t.Fatalf("expected matches")
	}
	for _, workers := range []int{2, 4, 7, 50} {
		if got := render(workers); got != single {
			t.Fatalf("expected identical output with %d workers", workers)
		}
	}
	if again := render(1); again != single {
		t.Fatalf("expected repeated runs to be identical")
	}
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	r := newResolver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewEngine(DefaultConfig(), r, catalog(r, 3), nil).Run(ctx, clients(r, 3)); err == nil {
		t.Fatalf("expected canceled context to stop the run")
	}
}

func TestRunLogsBatch(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	r := newResolver()
	if _, err := NewEngine(DefaultConfig(), r, catalog(r, 3), zap.New(core)).Run(context.Background(), clients(r, 2)); err != nil {
		t.Fatalf("run: %v", err)
	}

	entries := logs.FilterMessage("batch ranked").All()
	if len(entries) != 1 {
		t.Fatalf("expected one batch entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["clients"]; got != int64(2) {
		t.Fatalf("expected clients=2, got %v", got)
	}
}

func TestUnmatchedNearMiss(t *testing.T) {
	t.Parallel()

	r := newResolver()
	listings := &realestate.Listings{Items: []*realestate.Listing{
		listing(r, "valencia", "Valencia", realestate.OperationSale, 125000, 3),
		listing(r, "rent", "Alcoy", realestate.OperationRent, 900, 3),
	}}
	engine := NewEngine(DefaultConfig(), r, listings, nil)
	cs := &realestate.Clients{Items: []*realestate.ClientProfile{scenarioClient(r)}}

	batch, err := engine.Run(context.Background(), cs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	reports, summary := engine.Unmatched(batch)

	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	report := reports[0]
	if report.ClientID != "c-1" || report.CandidateSource != SourceBestOverall || report.PassesFilters {
		t.Fatalf("unexpected report header %+v", report)
	}
	if report.Listing == nil || report.Listing.ID == "" {
		t.Fatalf("expected a populated best candidate")
	}
	for _, want := range []filtering.Reason{filtering.ReasonLocationMismatch, filtering.ReasonOperationMismatch, filtering.ReasonPriceBelowMin} {
		if !report.Reasons.Has(want) {
			t.Fatalf("expected aggregated reason %s, got %v", want, report.Reasons.Sorted())
		}
	}
	if len(report.ListingReasons) == 0 {
		t.Fatalf("expected the chosen listing's own reasons")
	}

	if summary.Total != 1 || summary.Unmatched != 1 || len(summary.Reasons) != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	for _, bucket := range summary.Reasons {
		if bucket.Clients != 1 || bucket.Percent != 100 {
			t.Fatalf("unexpected bucket %+v", bucket)
		}
	}
	if summary.Reasons[0].Reason != filtering.ReasonLocationMismatch {
		t.Fatalf("expected ties ordered by code, got %v", summary.Reasons)
	}
}

func TestUnmatchedScoreBelowThreshold(t *testing.T) {
	t.Parallel()

	r := newResolver()
	cfg := DefaultConfig()
	cfg.MinScore = 0.99
	listings := &realestate.Listings{Items: []*realestate.Listing{
		listing(r, "alcoi", "Alcoi", realestate.OperationSale, 125000, 3),
		listing(r, "valencia", "Valencia", realestate.OperationSale, 125000, 3),
	}}
	engine := NewEngine(cfg, r, listings, nil)
	cs := &realestate.Clients{Items: []*realestate.ClientProfile{scenarioClient(r)}}

	batch, err := engine.Run(context.Background(), cs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	reports, _ := engine.Unmatched(batch)
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	report := reports[0]
	if report.CandidateSource != SourcePassesFilters || !report.PassesFilters || report.Listing.ID != "alcoi" {
		t.Fatalf("expected the passing listing to be chosen, got %+v", report)
	}
	if got := report.Reasons.Sorted(); len(got) != 1 || got[0] != filtering.ReasonScoreBelowThreshold {
		t.Fatalf("expected only score_below_threshold, got %v", got)
	}
}

func TestUnmatchedNoInventory(t *testing.T) {
	t.Parallel()

	r := newResolver()
	engine := NewEngine(DefaultConfig(), r, nil, nil)
	cs := clients(r, 2)

	batch, err := engine.Run(context.Background(), cs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	reports, summary := engine.Unmatched(batch)
	if len(reports) != 2 {
		t.Fatalf("expected every client to be reported, got %d", len(reports))
	}
	for _, report := range reports {
		if report.Listing != nil || report.CandidateSource != "" {
			t.Fatalf("expected an empty snapshot, got %+v", report)
		}
		if !report.Reasons.Has(filtering.ReasonNoInventory) {
			t.Fatalf("expected sin_inventario, got %v", report.Reasons.Sorted())
		}
	}
	if len(summary.Reasons) != 1 || summary.Reasons[0].Clients != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestUnmatchedSkipsMatchedByOtherConfig(t *testing.T) {
	t.Parallel()

	r := newResolver()
	listings := &realestate.Listings{Items: []*realestate.Listing{
		listing(r, "alcoi", "Alcoi", realestate.OperationSale, 125000, 3),
	}}
	cs := &realestate.Clients{Items: []*realestate.ClientProfile{scenarioClient(r)}}

	// Results computed elsewhere are empty, but this engine's threshold is reachable.
	strict := &Batch{Clients: cs, Results: make([][]*MatchCandidate, 1)}
	cfg := DefaultConfig()
	cfg.MinScore = 0.1
	core, logs := observer.New(zap.InfoLevel)
	reports, summary := NewEngine(cfg, r, listings, zap.New(core)).Unmatched(strict)
	if len(reports) != 0 {
		t.Fatalf("expected the client to be skipped, got %+v", reports)
	}
	if summary.Unmatched != 1 || len(summary.Reasons) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	entries := logs.FilterMessage("client matched on rescan").All()
	if len(entries) != 1 {
		t.Fatalf("expected the skipped client to be logged, got %d entries", len(entries))
	}
	if got := entries[0].ContextMap()["client_id"]; got != "c-1" {
		t.Fatalf("expected client_id=c-1, got %v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if warnings := DefaultConfig().Validate(); len(warnings) != 0 {
		t.Fatalf("expected defaults to be valid, got %v", warnings)
	}

	zero := DefaultConfig()
	zero.Scoring.Weights = scoring.Weights{}
	warnings := zero.Validate()
	if len(warnings) == 0 || !strings.Contains(strings.Join(warnings, ";"), "all weights are zero") {
		t.Fatalf("expected zero weights warning, got %v", warnings)
	}

	bad := DefaultConfig()
	bad.MinScore = 1.5
	bad.HardFilters.Disabled = []string{"colour"}
	if warnings := bad.Validate(); len(warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", warnings)
	}
}

func TestDiagnose(t *testing.T) {
	t.Parallel()

	m := &Matches{}
	for i, score := range []float64{0.9, 0.8, 0.7, 0.6, 0.5} {
		m.Items = append(m.Items, &MatchCandidate{
			ClientID: "c",
			Rank:     i + 1,
			Listing:  ListingSnapshot{ID: fmt.Sprintf("l%d", i)},
			Score:    score,
			Detail:   scoring.Detail{Price: score, Area: 0.5, Rooms: 1 - score},
		})
	}

	d := Diagnose(m, scoring.DefaultConfig().Weights)
	if d.Count != 5 || d.Scores.Min != 0.5 || d.Scores.Max != 0.9 || math.Abs(d.Scores.P50-0.7) > 1e-12 {
		t.Fatalf("unexpected quantiles %+v", d.Scores)
	}
	if math.Abs(d.Scores.P25-0.6) > 1e-12 || math.Abs(d.Scores.P10-0.54) > 1e-12 {
		t.Fatalf("unexpected interpolation %+v", d.Scores)
	}
	if math.Abs(d.Correlation[scoring.CriterionPrice]-1) > 1e-9 || math.Abs(d.Correlation[scoring.CriterionRooms]+1) > 1e-9 {
		t.Fatalf("unexpected correlations %v", d.Correlation)
	}
	if !math.IsNaN(d.Correlation[scoring.CriterionArea]) {
		t.Fatalf("expected NaN correlation for a constant sub-score")
	}
	if d.Groups != 1 || d.Violations != 0 {
		t.Fatalf("expected ordered group, got groups=%d violations=%d", d.Groups, d.Violations)
	}
	if d.Top[0].Score != 0.9 || d.Bottom[0].Score != 0.5 || len(d.Top) != 3 || len(d.Bottom) != 3 {
		t.Fatalf("unexpected examples top=%v bottom=%v", d.Top, d.Bottom)
	}

	m.Items[0].Rank, m.Items[1].Rank = 2, 1
	if d := Diagnose(m, scoring.Weights{}); d.Violations != 1 {
		t.Fatalf("expected one ordering violation, got %d", d.Violations)
	}

	if d := Diagnose(&Matches{}, scoring.Weights{}); d.Count != 0 {
		t.Fatalf("expected empty diagnostics")
	}
}

func TestMatchesReport(t *testing.T) {
	t.Parallel()

	m := &Matches{Items: []*MatchCandidate{
		{ClientID: "1", ClientName: "Ana", Rank: 1, Listing: ListingSnapshot{ID: "a", Price: realestate.Float(120000)}, Score: 0.8},
		{ClientID: "1", ClientName: "Ana", Rank: 2, Listing: ListingSnapshot{ID: "b"}, Score: 0.7},
		{ClientID: "2", ClientName: "Luis", Rank: 1, Listing: ListingSnapshot{ID: "c"}, Score: 0.6},
	}}

	report := m.ReportByClient()
	entries, ok := report["Ana (1)"]
	if !ok || len(entries) != 2 {
		t.Fatalf("expected 2 entries for Ana, got %v", report)
	}
	if entries[0]["price"] != "120000 EUR" || entries[1]["price"] != "-" {
		t.Fatalf("unexpected price rendering %v", entries)
	}

	summary := m.Summary()
	if len(summary) != 2 || summary[0].Candidates != 2 || summary[1].ClientID != "2" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := m.ForClient("2"); len(got) != 1 || got[0].Listing.ID != "c" {
		t.Fatalf("unexpected ForClient result %v", got)
	}
}

func TestConfigValidateHardCap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hardCap float64
		warn    bool
	}{
		{hardCap: 0.982},
		{hardCap: 0.998},
		{hardCap: 0.9995, warn: true},
		{hardCap: 1, warn: true},
		{hardCap: 0, warn: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(fmt.Sprint(tt.hardCap), func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			cfg.Scoring.HardCap = tt.hardCap
			warned := strings.Contains(strings.Join(cfg.Validate(), ";"), "HardCap")
			if warned != tt.warn {
				t.Fatalf("hard cap %v: expected warning %v, got %v", tt.hardCap, tt.warn, cfg.Validate())
			}
		})
	}
}

func TestDiagnosticsLogExamples(t *testing.T) {
	t.Parallel()

	m := &Matches{Items: []*MatchCandidate{
		{ClientID: "1", ClientName: "Ana", Rank: 1, Listing: ListingSnapshot{ID: "a", Source: "idealista"}, Score: 0.8},
	}}
	core, logs := observer.New(zap.InfoLevel)
	Diagnose(m, scoring.DefaultConfig().Weights).Log(zap.New(core))

	entries := logs.FilterMessage("diagnostics top example").All()
	if len(entries) != 1 {
		t.Fatalf("expected one top example, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	for key, want := range map[string]string{"client_id": "1", "client_name": "Ana", "listing_id": "a", "listing_source": "idealista"} {
		if fields[key] != want {
			t.Fatalf("expected %s=%s, got %v", key, want, fields[key])
		}
	}
}
