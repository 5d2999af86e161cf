package league

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrUnknownDivision matches any *ConfigurationError
	ErrUnknownDivision = errors.New("unknown division")
	// ErrInsufficientData matches any *InsufficientDataError
	ErrInsufficientData = errors.New("insufficient data")
)

// probabilityTolerance bounds how far an outcome distribution may drift from summing to 1
const probabilityTolerance = 1e-9

// ConfigurationError is returned when a requested division is not present in the data sources.
// It lets callers tell "no such division" apart from "division has no data yet".
type ConfigurationError struct {
	Division string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("division %q not found in data sources", e.Division)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrUnknownDivision
}

// InsufficientDataError names the teams whose rating fell back to the default
// because they have no historical frames.
type InsufficientDataError struct {
	Division string
	Teams    []string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("division %q: no frames played by %s; default strength used",
		e.Division, strings.Join(e.Teams, ", "))
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// requireDivision returns the division or a *ConfigurationError
func requireDivision(ds DataSources, code string) (Division, error) {
	if ds == nil {
		return Division{}, &ConfigurationError{Division: code}
	}
	d, ok := ds.Divisions()[code]
	if !ok {
		return Division{}, &ConfigurationError{Division: code}
	}
	return d, nil
}

// checkDistribution verifies that a home/draw/away triple is a probability distribution.
// A failure is a bug in this package and is only ever asserted on by tests.
func checkDistribution(pHome, pDraw, pAway float64) error {
	for _, p := range []float64{pHome, pDraw, pAway} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("invariant violated: probability %v out of range", p)
		}
	}
	if sum := pHome + pDraw + pAway; math.Abs(sum-1) > probabilityTolerance {
		return fmt.Errorf("invariant violated: probabilities sum to %v", sum)
	}
	return nil
}
