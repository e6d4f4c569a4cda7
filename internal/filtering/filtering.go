// Package filtering implements the hard eligibility gate between a listing and a client.
package filtering

import (
	"go.uber.org/zap"

	"github.com/spigell/lead-matcher/internal/location"
	"github.com/spigell/lead-matcher/internal/realestate"
)

// Filter represents a single eligibility check. Check adds the reasons it fails with to reasons.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Check(l *realestate.Listing, c *realestate.ClientProfile, reasons ReasonSet)
}

// Config contains the tolerances consumed by the filters.
type Config struct {
	PriceMaxFactor      float64  `mapstructure:"price-max-factor" validate:"gte=1"`
	PriceMinFactor      float64  `mapstructure:"price-min-factor" validate:"gte=0,lte=1"`
	RoomsBelowTolerance int      `mapstructure:"rooms-below-tolerance" validate:"gte=0"`
	BathsBelowTolerance int      `mapstructure:"baths-below-tolerance" validate:"gte=0"`
	Disabled            []string `mapstructure:"disabled" validate:"dive,oneof=operation location price rooms baths"`
}

// DefaultConfig returns the brokerage tolerances: up to 1.25x the stated max, down to 0.25x the
// stated min, and one room or bath fewer than asked.
func DefaultConfig() Config {
	return Config{
		PriceMaxFactor:      1.25,
		PriceMinFactor:      0.25,
		RoomsBelowTolerance: 1,
		BathsBelowTolerance: 1,
	}
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// Result is the outcome of evaluating one (listing, client) pair.
type Result struct {
	Passes  bool
	Reasons ReasonSet
}

// Evaluator runs every enabled filter against a pair. It is immutable after New.
type Evaluator struct {
	steps []Filter
}

// New builds the standard filter list and disables the ones named in cfg.Disabled.
func New(cfg Config, resolver *location.Resolver) *Evaluator {
	steps := []Filter{
		NewOperation(),
		NewLocation(resolver),
		NewPrice(cfg.PriceMaxFactor, cfg.PriceMinFactor),
		NewRooms(cfg.RoomsBelowTolerance),
		NewBaths(cfg.BathsBelowTolerance),
	}
	for _, name := range cfg.Disabled {
		DisableByName(steps, name, "disabled in configuration")
	}
	return &Evaluator{steps: steps}
}

// Evaluate runs all enabled filters without short-circuiting, so every failing reason is recorded.
func (e *Evaluator) Evaluate(l *realestate.Listing, c *realestate.ClientProfile) Result {
	reasons := NewReasonSet()
	for _, step := range e.steps {
		if !step.IsEnabled() {
			continue
		}
		step.Check(l, c, reasons)
	}
	return Result{Passes: len(reasons) == 0, Reasons: reasons}
}

// Filters returns the filters in evaluation order.
func (e *Evaluator) Filters() []Filter {
	return append([]Filter(nil), e.steps...)
}

// LogStatus logs one line per filter, the way the run command reports its setup.
func (e *Evaluator) LogStatus(logger *zap.Logger) {
	if logger == nil {
		return
	}
	for _, status := range Describe(e.steps) {
		fields := []zap.Field{
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
		}
		if status.Reason != "" {
			fields = append(fields, zap.String("reason", status.Reason))
		}
		if len(status.Details) > 0 {
			fields = append(fields, zap.Any("details", status.Details))
		}
		logger.Info("hard filter", fields...)
	}
}
