package plan

import (
	"errors"
	"fmt"
	"math"
)

// Fallbacks applied when a plan config or its derived rate is unusable.
//
//	tenure <= 0                    -> DefaultTenure
//	initialCapital <= 0 (or NaN)   -> DefaultInitialCapital
//	finalTarget <= initialCapital  -> 2 * initialCapital
//	rate NaN, Inf or < -50%        -> DefaultRate
const (
	DefaultTenure         = 66
	DefaultInitialCapital = 50_000.0
	DefaultRate           = 0.01
	MinRate               = -0.5
)

var (
	ErrInvalidConfig  = errors.New("invalid plan config")
	ErrDegenerateRate = errors.New("degenerate compounding rate")
)

// Config is the challenge definition: grow InitialCapital to FinalTarget in
// Tenure trading days.
type Config struct {
	InitialCapital float64 `json:"initialCapital" yaml:"initial_capital"`
	FinalTarget    float64 `json:"finalTarget" yaml:"final_target"`
	Tenure         int     `json:"tenure" yaml:"tenure"`
}

// Sanitize returns a usable copy of c. Every substituted field is reported
// as an ErrInvalidConfig-wrapped error; the returned config is valid either way.
func Sanitize(c Config) (Config, []error) {
	var fixes []error

	if c.Tenure <= 0 {
		fixes = append(fixes, fmt.Errorf("%w: tenure %d, using %d", ErrInvalidConfig, c.Tenure, DefaultTenure))
		c.Tenure = DefaultTenure
	}
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		fixes = append(fixes, fmt.Errorf("%w: initial capital %v, using %v", ErrInvalidConfig, c.InitialCapital, DefaultInitialCapital))
		c.InitialCapital = DefaultInitialCapital
	}
	if !(c.FinalTarget > c.InitialCapital) || math.IsInf(c.FinalTarget, 0) {
		target := 2 * c.InitialCapital
		fixes = append(fixes, fmt.Errorf("%w: final target %v, using %v", ErrInvalidConfig, c.FinalTarget, target))
		c.FinalTarget = target
	}

	return c, fixes
}

// RequiredRate is the daily compounding rate that turns InitialCapital into
// FinalTarget over Tenure days. c must already be sanitized.
func RequiredRate(c Config) (float64, error) {
	r := math.Pow(c.FinalTarget/c.InitialCapital, 1/float64(c.Tenure)) - 1
	if math.IsNaN(r) || math.IsInf(r, 0) || r < MinRate {
		return DefaultRate, fmt.Errorf("%w: %v, using %v", ErrDegenerateRate, r, DefaultRate)
	}
	return r, nil
}

// roundMoney rounds half up to a whole currency unit.
func roundMoney(x float64) float64 {
	return math.Floor(x + 0.5)
}
