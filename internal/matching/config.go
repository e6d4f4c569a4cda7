// Package matching ranks listings per client and explains clients left without a match.
package matching

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/lead-matcher/internal/filtering"
	"github.com/spigell/lead-matcher/internal/scoring"
)

// Config is the complete rule set of one batch. It is passed by value and never mutated
// while a batch runs.
type Config struct {
	TopNPerClient int              `mapstructure:"top-n-per-client" validate:"gte=0"`
	MinScore      float64          `mapstructure:"min-score" validate:"gte=0,lte=1"`
	HardFilters   filtering.Config `mapstructure:"hard-filters"`
	Scoring       scoring.Config   `mapstructure:",squash"`
	Workers       int              `mapstructure:"workers" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		TopNPerClient: 50,
		MinScore:      0.55,
		HardFilters:   filtering.DefaultConfig(),
		Scoring:       scoring.DefaultConfig(),
		Workers:       1,
	}
}

// Validate returns operator warnings. A questionable configuration never stops a run: the
// scorer degrades to the neutral score instead.
func (c Config) Validate() []string {
	var warnings []string

	if err := validator.New().Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, ve := range validationErrors {
				warnings = append(warnings, fmt.Sprintf("%s: failed %q check (value %v)", ve.Namespace(), ve.Tag(), ve.Value()))
			}
		} else {
			warnings = append(warnings, err.Error())
		}
	}

	if c.Scoring.Weights.Sum() <= 0 {
		warnings = append(warnings, "all weights are zero: every pair gets the neutral score and ranking is flat")
	}
	if c.Scoring.NeutralScore < c.MinScore && c.Scoring.Weights.Sum() <= 0 {
		warnings = append(warnings, "neutral score is below min score: no client can match")
	}
	return warnings
}
