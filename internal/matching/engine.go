package matching

import (
	"context"
	"slices"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/lead-matcher/internal/filtering"
	"github.com/spigell/lead-matcher/internal/location"
	"github.com/spigell/lead-matcher/internal/logger"
	"github.com/spigell/lead-matcher/internal/realestate"
	"github.com/spigell/lead-matcher/internal/scoring"
)

// Engine ranks a fixed catalog for any number of clients under one frozen Config.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg       Config
	resolver  *location.Resolver
	evaluator *filtering.Evaluator
	scorer    *scoring.Scorer
	listings  *realestate.Listings
	logger    *zap.Logger
}

func NewEngine(cfg Config, resolver *location.Resolver, listings *realestate.Listings, log *zap.Logger) *Engine {
	if listings == nil {
		listings = &realestate.Listings{}
	}
	return &Engine{
		cfg:       cfg,
		resolver:  resolver,
		evaluator: filtering.New(cfg.HardFilters, resolver),
		scorer:    scoring.New(cfg.Scoring),
		listings:  listings,
		logger:    logger.WithFields(log),
	}
}

// Config returns the rule set of the engine.
func (e *Engine) Config() Config { return e.cfg }

// LogFilters reports the setup of every hard filter.
func (e *Engine) LogFilters() { e.evaluator.LogStatus(e.logger) }

// Listings returns the catalog the engine ranks.
func (e *Engine) Listings() *realestate.Listings { return e.listings }

// Evaluation is the full assessment of one pair.
type Evaluation struct {
	Filter filtering.Result
	Score  scoring.Result
}

// Evaluate runs the hard filters and the scorer on one pair.
func (e *Engine) Evaluate(l *realestate.Listing, c *realestate.ClientProfile) Evaluation {
	return Evaluation{
		Filter: e.evaluator.Evaluate(l, c),
		Score:  e.scorer.Score(l, c),
	}
}

// Rank returns the client's candidates ordered by score, then price sub-score, then listing id,
// with contiguous ranks from 1, truncated to TopNPerClient when it is positive.
func (e *Engine) Rank(c *realestate.ClientProfile) []*MatchCandidate {
	var out []*MatchCandidate
	for _, l := range e.listings.Items {
		if !e.evaluator.Evaluate(l, c).Passes {
			continue
		}
		res := e.scorer.Score(l, c)
		if res.Score < e.cfg.MinScore {
			continue
		}
		out = append(out, &MatchCandidate{
			ClientID:   c.ID,
			ClientName: c.Name,
			Listing:    snapshot(l),
			Score:      res.Score,
			Detail:     res.Detail,
			ZoneMatch:  e.zoneMatch(l, c),
			TypeMatch:  typeMatch(l, c),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Detail.Price != b.Detail.Price {
			return a.Detail.Price > b.Detail.Price
		}
		return a.Listing.ID < b.Listing.ID
	})

	if n := e.cfg.TopNPerClient; n > 0 && len(out) > n {
		out = out[:n]
	}
	for i, candidate := range out {
		candidate.Rank = i + 1
	}
	return out
}

func (e *Engine) zoneMatch(l *realestate.Listing, c *realestate.ClientProfile) *bool {
	if len(c.LocationTokens) == 0 {
		return nil
	}
	return boolPtr(e.resolver.Match(l.LocationTokens, c.LocationTokens))
}

func typeMatch(l *realestate.Listing, c *realestate.ClientProfile) *bool {
	if len(c.TypeTokens) == 0 {
		return nil
	}
	return boolPtr(slices.Contains(c.TypeTokens, l.Type))
}

// Batch is the outcome of ranking every client. Results[i] belongs to Clients.Items[i].
type Batch struct {
	Clients *realestate.Clients
	Results [][]*MatchCandidate
}

// Matches flattens the batch in client order.
func (b *Batch) Matches() *Matches {
	m := &Matches{}
	for _, candidates := range b.Results {
		m.Items = append(m.Items, candidates...)
	}
	return m
}

// MatchedClients counts clients with at least one candidate.
func (b *Batch) MatchedClients() int {
	n := 0
	for _, candidates := range b.Results {
		if len(candidates) > 0 {
			n++
		}
	}
	return n
}

// Run ranks every client. With more than one worker the clients are split into contiguous
// shards; each result lands in its client's slot, so the output does not depend on Workers.
func (e *Engine) Run(ctx context.Context, clients *realestate.Clients) (*Batch, error) {
	if clients == nil {
		clients = &realestate.Clients{}
	}
	batch := &Batch{
		Clients: clients,
		Results: make([][]*MatchCandidate, clients.Len()),
	}

	workers := max(1, e.cfg.Workers)
	shard := (clients.Len() + workers - 1) / workers
	if shard == 0 {
		return batch, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < clients.Len(); start += shard {
		start := start
		end := min(start+shard, clients.Len())
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				c := clients.Items[i]
				batch.Results[i] = e.Rank(c)
				logger.WithClient(e.logger, c.ID, c.Name).Debug("client ranked",
					zap.Int("candidates", len(batch.Results[i])),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("batch ranked",
		zap.Int("clients", clients.Len()),
		zap.Int("listings", e.listings.Len()),
		zap.Int("matched_clients", batch.MatchedClients()),
		zap.Int("workers", workers),
	)
	return batch, nil
}
