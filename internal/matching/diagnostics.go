package matching

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/lead-matcher/internal/logger"
	"github.com/spigell/lead-matcher/internal/scoring"
)

const orderingEpsilon = 1e-12

// Quantiles summarizes the score distribution.
type Quantiles struct {
	Min float64
	P10 float64
	P25 float64
	P50 float64
	P75 float64
	P90 float64
	Max float64
}

// Diagnostics are sanity checks over the scores of a batch.
type Diagnostics struct {
	Count       int
	Weights     scoring.Weights
	Scores      Quantiles
	Correlation map[scoring.Criterion]float64
	// Groups counts clients with more than one candidate; Violations those whose order
	// is not descending by (score, price sub-score).
	Groups     int
	Violations int
	Top        []*MatchCandidate
	Bottom     []*MatchCandidate
}

// Diagnose computes the score distribution, how each sub-score correlates with the composite
// score, the ordering checks per client and the three best and worst candidates.
func Diagnose(m *Matches, weights scoring.Weights) Diagnostics {
	d := Diagnostics{
		Count:       m.Len(),
		Weights:     weights,
		Correlation: make(map[scoring.Criterion]float64, len(scoring.Criteria)),
	}
	if d.Count == 0 {
		return d
	}

	scores := make([]float64, d.Count)
	for i, c := range m.Items {
		scores[i] = c.Score
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	d.Scores = Quantiles{
		Min: quantile(sorted, 0),
		P10: quantile(sorted, 0.10),
		P25: quantile(sorted, 0.25),
		P50: quantile(sorted, 0.50),
		P75: quantile(sorted, 0.75),
		P90: quantile(sorted, 0.90),
		Max: quantile(sorted, 1),
	}

	for _, criterion := range scoring.Criteria {
		sub := make([]float64, d.Count)
		for i, c := range m.Items {
			sub[i] = c.Detail.Get(criterion)
		}
		d.Correlation[criterion] = pearson(sub, scores)
	}

	d.Groups, d.Violations = orderingChecks(m)

	byScore := append([]*MatchCandidate(nil), m.Items...)
	sort.SliceStable(byScore, func(i, j int) bool { return byScore[i].Score > byScore[j].Score })
	k := min(3, len(byScore))
	d.Top = byScore[:k]
	d.Bottom = make([]*MatchCandidate, 0, k)
	for i := len(byScore) - 1; i >= len(byScore)-k; i-- {
		d.Bottom = append(d.Bottom, byScore[i])
	}
	return d
}

// Log writes the diagnostics the way the run command reports the batch.
func (d Diagnostics) Log(log *zap.Logger) {
	if log == nil {
		return
	}
	if d.Count == 0 {
		log.Info("diagnostics", zap.String("result", "no matches to analyze"))
		return
	}

	log.Info("diagnostics weights",
		zap.Float64("price", d.Weights.Price),
		zap.Float64("area", d.Weights.Area),
		zap.Float64("rooms", d.Weights.Rooms),
		zap.Float64("baths", d.Weights.Baths),
		zap.Float64("operation", d.Weights.Operation),
		zap.Float64("sum", d.Weights.Sum()),
	)
	log.Info("diagnostics score summary",
		zap.Int("n", d.Count),
		zap.Float64("min", d.Scores.Min),
		zap.Float64("p10", d.Scores.P10),
		zap.Float64("p25", d.Scores.P25),
		zap.Float64("p50", d.Scores.P50),
		zap.Float64("p75", d.Scores.P75),
		zap.Float64("p90", d.Scores.P90),
		zap.Float64("max", d.Scores.Max),
	)

	corr := make([]zap.Field, 0, len(scoring.Criteria))
	for _, criterion := range scoring.Criteria {
		corr = append(corr, zap.Float64("s_"+string(criterion), d.Correlation[criterion]))
	}
	log.Info("diagnostics correlation with score", corr...)
	log.Info("diagnostics ordering checks", zap.Int("groups", d.Groups), zap.Int("violations", d.Violations))

	for _, c := range d.Top {
		log.Info("diagnostics top example", candidateFields(c)...)
	}
	for _, c := range d.Bottom {
		log.Info("diagnostics bottom example", candidateFields(c)...)
	}
}

func candidateFields(c *MatchCandidate) []zap.Field {
	fields := append(logger.ClientFields(c.ClientID, c.ClientName), logger.ListingFields(c.Listing.ID, c.Listing.Source)...)
	return append(fields,
		zap.Float64("score", c.Score),
		zap.String("operation", c.Listing.Operation),
		zap.String("type", c.Listing.Type),
		zap.String("location", c.Listing.Location),
		zap.String("price", formatOptional(c.Listing.Price, "")),
		zap.String("area", formatOptional(c.Listing.Area, "")),
		zap.Any("detail", c.Detail),
	)
}

func orderingChecks(m *Matches) (groups, violations int) {
	var order []string
	byClient := make(map[string][]*MatchCandidate)
	for _, c := range m.Items {
		if _, ok := byClient[c.ClientID]; !ok {
			order = append(order, c.ClientID)
		}
		byClient[c.ClientID] = append(byClient[c.ClientID], c)
	}

	for _, id := range order {
		group := append([]*MatchCandidate(nil), byClient[id]...)
		if len(group) <= 1 {
			continue
		}
		groups++
		sort.SliceStable(group, func(i, j int) bool { return group[i].Rank < group[j].Rank })
		for i := 1; i < len(group); i++ {
			prev, cur := group[i-1], group[i]
			if cur.Score > prev.Score+orderingEpsilon {
				violations++
				break
			}
			if math.Abs(cur.Score-prev.Score) <= orderingEpsilon && cur.Detail.Price > prev.Detail.Price+orderingEpsilon {
				violations++
				break
			}
		}
	}
	return groups, violations
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// pearson returns the correlation coefficient of x and y, NaN when either is constant.
func pearson(x, y []float64) float64 {
	n := float64(len(x))
	if len(x) < 2 || len(x) != len(y) {
		return math.NaN()
	}
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	var cov, vx, vy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(vx*vy)
}
