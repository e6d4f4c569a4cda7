package scoring

import (
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/spigell/lead-matcher/internal/realestate"
)

// Criterion names one of the five scored aspects of a pair.
type Criterion string

const (
	CriterionPrice     Criterion = "price"
	CriterionArea      Criterion = "area"
	CriterionRooms     Criterion = "rooms"
	CriterionBaths     Criterion = "baths"
	CriterionOperation Criterion = "operation"
)

// Criteria lists every criterion in reporting order.
var Criteria = []Criterion{CriterionPrice, CriterionArea, CriterionRooms, CriterionBaths, CriterionOperation}

const (
	logFloor     = 1e-6
	jitterScale  = 0.001
	jitterModulo = 1009
	// maxScore keeps a jittered score below 1 after rounding.
	maxScore     = 0.999999
)

// Weights holds one value per criterion.
type Weights struct {
	Price     float64 `mapstructure:"price" validate:"gte=0"`
	Area      float64 `mapstructure:"area" validate:"gte=0"`
	Rooms     float64 `mapstructure:"rooms" validate:"gte=0"`
	Baths     float64 `mapstructure:"baths" validate:"gte=0"`
	Operation float64 `mapstructure:"operation" validate:"gte=0"`
}

// Get returns the value for c.
func (w Weights) Get(c Criterion) float64 {
	switch c {
	case CriterionPrice:
		return w.Price
	case CriterionArea:
		return w.Area
	case CriterionRooms:
		return w.Rooms
	case CriterionBaths:
		return w.Baths
	case CriterionOperation:
		return w.Operation
	}
	return 0
}

// Sum adds every criterion's value.
func (w Weights) Sum() float64 {
	return w.Price + w.Area + w.Rooms + w.Baths + w.Operation
}

// Softness is the fraction of the window span over which out-of-window values decay to zero.
type Softness struct {
	Price float64 `mapstructure:"price" validate:"gt=0"`
	Area  float64 `mapstructure:"area" validate:"gt=0"`
	Rooms float64 `mapstructure:"rooms" validate:"gt=0"`
	Baths float64 `mapstructure:"baths" validate:"gt=0"`
}

// Config holds every knob of the composite score.
type Config struct {
	Weights       Weights  `mapstructure:"weights"`
	Softness      Softness `mapstructure:"softness"`
	Caps          Weights  `mapstructure:"caps"`
	HardCap       float64  `mapstructure:"hard-cap" validate:"gt=0,lte=0.998"`
	CoverageMin   float64  `mapstructure:"coverage-min" validate:"gte=0,lte=1"`
	CoverageGamma float64  `mapstructure:"coverage-gamma" validate:"gte=0"`
	ScoreGamma    float64  `mapstructure:"score-gamma" validate:"gte=1"`
	NeutralScore  float64  `mapstructure:"neutral-score" validate:"gte=0,lt=1"`
}

func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Price:     0.35,
			Area:      0.30,
			Rooms:     0.20,
			Baths:     0.10,
			Operation: 0.05,
		},
		Softness: Softness{
			Price: 0.15,
			Area:  0.15,
			Rooms: 0.35,
			Baths: 0.35,
		},
		Caps: Weights{
			Price:     0.975,
			Area:      0.975,
			Rooms:     0.975,
			Baths:     0.975,
			Operation: 0.985,
		},
		HardCap:       0.982,
		CoverageMin:   0.6,
		CoverageGamma: 0.7,
		ScoreGamma:    1.25,
		NeutralScore:  0.7,
	}
}

// Detail holds the sub-scores of one pair, rounded to four decimals.
type Detail struct {
	Price     float64 `json:"price"`
	Area      float64 `json:"area"`
	Rooms     float64 `json:"rooms"`
	Baths     float64 `json:"baths"`
	Operation float64 `json:"operation"`
}

// Get returns the sub-score for c.
func (d Detail) Get(c Criterion) float64 {
	switch c {
	case CriterionPrice:
		return d.Price
	case CriterionArea:
		return d.Area
	case CriterionRooms:
		return d.Rooms
	case CriterionBaths:
		return d.Baths
	case CriterionOperation:
		return d.Operation
	}
	return 0
}

// Result is the composite score of one pair and how it was reached.
type Result struct {
	Score   float64
	Detail  Detail
	Active  []Criterion
	Neutral bool
}

// Scorer computes composite scores. It is immutable and safe for concurrent use.
type Scorer struct {
	cfg Config
}

func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the configuration the scorer was built with.
func (s *Scorer) Config() Config { return s.cfg }

type component struct {
	criterion Criterion
	score     float64
	weight    float64
}

// Score combines the five sub-scores into a weighted geometric mean, adjusts it for coverage,
// stretches it, caps it and adds a deterministic tie-break jitter.
func (s *Scorer) Score(l *realestate.Listing, c *realestate.ClientProfile) Result {
	cfg := s.cfg

	sPrice := math.Min(Range(l.Price, c.Price, cfg.Softness.Price), cfg.Caps.Price)
	sArea := math.Min(Range(l.Area, c.Area, cfg.Softness.Area), cfg.Caps.Area)
	sRooms := math.Min(Range(l.RoomsValue(), c.Rooms, cfg.Softness.Rooms), cfg.Caps.Rooms)
	sBaths := math.Min(Range(l.BathsValue(), c.Baths, cfg.Softness.Baths), cfg.Caps.Baths)
	sOperation := math.Min(operationScore(l, c), cfg.Caps.Operation)

	res := Result{
		Detail: Detail{
			Price:     round(sPrice, 4),
			Area:      round(sArea, 4),
			Rooms:     round(sRooms, 4),
			Baths:     round(sBaths, 4),
			Operation: round(sOperation, 4),
		},
	}

	var components []component
	addRange := func(criterion Criterion, score float64, value *float64, r realestate.Range) {
		w := cfg.Weights.Get(criterion) * ConstraintMultiplier(r)
		if r.IsSet() && value != nil && w > 0 {
			components = append(components, component{criterion: criterion, score: score, weight: w})
		}
	}
	addRange(CriterionPrice, sPrice, l.Price, c.Price)
	addRange(CriterionArea, sArea, l.Area, c.Area)
	addRange(CriterionRooms, sRooms, l.RoomsValue(), c.Rooms)
	addRange(CriterionBaths, sBaths, l.BathsValue(), c.Baths)
	if l.Operation != "" && (len(c.OperationTokens) > 0 || c.Operation != "") && cfg.Weights.Operation > 0 {
		components = append(components, component{criterion: CriterionOperation, score: sOperation, weight: cfg.Weights.Operation})
	}

	var wsum float64
	for _, comp := range components {
		wsum += comp.weight
	}
	if len(components) == 0 || wsum <= 0 {
		res.Score = round(cfg.NeutralScore, 6)
		res.Neutral = true
		return res
	}

	var logSum float64
	for _, comp := range components {
		logSum += (comp.weight / wsum) * math.Log(math.Max(logFloor, clamp01(comp.score)))
		res.Active = append(res.Active, comp.criterion)
	}
	score := math.Exp(logSum)

	possible := 0
	for _, criterion := range Criteria {
		if cfg.Weights.Get(criterion) > 0 {
			possible++
		}
	}
	coverage := float64(len(components)) / float64(max(1, possible))
	coverage = math.Max(cfg.CoverageMin, math.Min(1.0, coverage))
	score *= math.Pow(coverage, cfg.CoverageGamma)

	score = math.Pow(score, cfg.ScoreGamma)
	score = math.Min(score, cfg.HardCap)
	score += jitterScale * TieBreak(c.ID, l.ID)

	res.Score = math.Min(round(clamp01(score), 6), maxScore)
	return res
}

// operationScore is 1 when the listing's operation is acceptable to the client and 0 otherwise.
// A client without any operation accepts everything; a listing without one satisfies nobody.
func operationScore(l *realestate.Listing, c *realestate.ClientProfile) float64 {
	if len(c.OperationTokens) > 0 && l.Operation != "" {
		if slices.Contains(c.OperationTokens, l.Operation) {
			return 1
		}
		return 0
	}
	switch {
	case c.Operation == "":
		return 1
	case l.Operation == "":
		return 0
	case l.Operation == c.Operation:
		return 1
	}
	return 0
}

// TieBreak maps the (client, listing) identifiers to a stable value in [-1, 1].
func TieBreak(clientID, listingID string) float64 {
	h := xxhash.Sum64String(clientID+"|"+listingID) % jitterModulo
	return float64(h)/float64(jitterModulo-1)*2.0 - 1.0
}
