package league

import (
	"fmt"
	"runtime"
)

// MatchFormat names how the frames of a match are played out
type MatchFormat string

const (
	// FormatFixed plays every frame, so an even frame count can end level
	FormatFixed MatchFormat = "fixed"
	// FormatRace is best of FramesPerMatch: play stops once one side holds a
	// majority, so it needs an odd frame count and never ends level
	FormatRace MatchFormat = "race"
)

// Config contains every parameter that influences standings, ratings and simulations.
// It is passed around by value; DefaultConfig returns a fresh copy on every call so
// no two computations share mutable defaults.
type Config struct {
	// === MATCH FORMAT ===
	FramesPerMatch int         `yaml:"frames_per_match" json:"framesPerMatch"` // Frames in a match (default: 10, 1 = single frame)
	Format         MatchFormat `yaml:"format" json:"format"`                   // fixed or race (default: fixed)

	// === SCORING ===
	PointsForWin   int `yaml:"points_for_win" json:"pointsForWin"`     // (default: 2)
	PointsForDraw  int `yaml:"points_for_draw" json:"pointsForDraw"`   // (default: 1)
	PointsForLoss  int `yaml:"points_for_loss" json:"pointsForLoss"`   // (default: 0)
	PointsPerFrame int `yaml:"points_per_frame" json:"pointsPerFrame"` // Bonus per frame won (default: 0)

	// === STRENGTH RATINGS ===
	PriorFrames     float64 `yaml:"prior_frames" json:"priorFrames"`         // Laplace smoothing frames added to each side (default: 2)
	DefaultStrength float64 `yaml:"default_strength" json:"defaultStrength"` // Rating used when a team has no frames (default: 0.5)
	MinStrength     float64 `yaml:"min_strength" json:"minStrength"`         // Lower rating bound (default: 0.02)
	MaxStrength     float64 `yaml:"max_strength" json:"maxStrength"`         // Upper rating bound (default: 0.98)
	AdjustmentScale float64 `yaml:"adjustment_scale" json:"adjustmentScale"` // Multiplier on squad override deltas (default: 1.0)
	TopN            int     `yaml:"top_n" json:"topN"`                       // Players counted in a squad rating (default: 5)

	// === FRAME PREDICTION ===
	FrameScale    float64 `yaml:"frame_scale" json:"frameScale"`       // Logistic steepness over the strength differential (default: 4.0)
	HomeAdvantage float64 `yaml:"home_advantage" json:"homeAdvantage"` // Added to the home strength for fixtures (default: 0.0)

	// === SIMULATION ===
	MatchTrials      int `yaml:"match_trials" json:"matchTrials"`           // Trials for a single fixture prediction (default: 10000)
	SeasonTrials     int `yaml:"season_trials" json:"seasonTrials"`         // Trials for a season simulation (default: 5000)
	MaxTrials        int `yaml:"max_trials" json:"maxTrials"`               // Largest trial count a request may ask for (default: 100000)
	Workers          int `yaml:"workers" json:"workers"`                    // Simulation goroutines (default: runtime.NumCPU())
	PromotionPlaces  int `yaml:"promotion_places" json:"promotionPlaces"`   // (default: 1)
	RelegationPlaces int `yaml:"relegation_places" json:"relegationPlaces"` // (default: 1)

	// === CACHING AND ACCURACY ===
	CacheEntries       int `yaml:"cache_entries" json:"cacheEntries"`             // Fixture importance results kept (default: 256)
	CalibrationBuckets int `yaml:"calibration_buckets" json:"calibrationBuckets"` // Confidence buckets (default: 10)
}

// DefaultConfig returns the default configuration with all standard values
func DefaultConfig() Config {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return Config{
		FramesPerMatch: 10,
		Format:         FormatFixed,

		PointsForWin:   2,
		PointsForDraw:  1,
		PointsForLoss:  0,
		PointsPerFrame: 0,

		PriorFrames:     2,
		DefaultStrength: 0.5,
		MinStrength:     0.02,
		MaxStrength:     0.98,
		AdjustmentScale: 1.0,
		TopN:            5,

		FrameScale:    4.0,
		HomeAdvantage: 0.0,

		MatchTrials:      10000,
		SeasonTrials:     5000,
		MaxTrials:        100000,
		Workers:          workers,
		PromotionPlaces:  1,
		RelegationPlaces: 1,

		CacheEntries:       256,
		CalibrationBuckets: 10,
	}
}

// drawsPossible reports whether a match in this format can end level
func (c Config) drawsPossible() bool {
	return c.Format == FormatFixed && c.FramesPerMatch%2 == 0
}

// === CONFIGURATION VALIDATION ===

// ValidateConfig ensures all configuration values are within reasonable ranges
func ValidateConfig(config Config) error {
	if config.FramesPerMatch < 1 {
		return fmt.Errorf("FramesPerMatch must be at least 1, got: %d", config.FramesPerMatch)
	}
	if config.Format != FormatFixed && config.Format != FormatRace {
		return fmt.Errorf("Format must be %q or %q, got: %q", FormatFixed, FormatRace, config.Format)
	}
	if config.Format == FormatRace && config.FramesPerMatch%2 == 0 {
		return fmt.Errorf("race format needs an odd FramesPerMatch, got: %d", config.FramesPerMatch)
	}
	if config.PointsForWin < config.PointsForDraw || config.PointsForDraw < config.PointsForLoss {
		return fmt.Errorf("points must satisfy win >= draw >= loss, got: %d/%d/%d",
			config.PointsForWin, config.PointsForDraw, config.PointsForLoss)
	}
	if config.PointsPerFrame < 0 {
		return fmt.Errorf("PointsPerFrame must not be negative, got: %d", config.PointsPerFrame)
	}
	if config.PriorFrames < 0 {
		return fmt.Errorf("PriorFrames must not be negative, got: %f", config.PriorFrames)
	}
	if config.MinStrength <= 0.0 || config.MaxStrength >= 1.0 || config.MinStrength >= config.MaxStrength {
		return fmt.Errorf("strength bounds must satisfy 0 < min < max < 1, got: %f..%f",
			config.MinStrength, config.MaxStrength)
	}
	if config.DefaultStrength < config.MinStrength || config.DefaultStrength > config.MaxStrength {
		return fmt.Errorf("DefaultStrength must lie within the strength bounds, got: %f", config.DefaultStrength)
	}
	if config.AdjustmentScale < 0 {
		return fmt.Errorf("AdjustmentScale must not be negative, got: %f", config.AdjustmentScale)
	}
	if config.TopN < 1 {
		return fmt.Errorf("TopN must be at least 1, got: %d", config.TopN)
	}
	if config.FrameScale <= 0 {
		return fmt.Errorf("FrameScale must be positive, got: %f", config.FrameScale)
	}
	if config.HomeAdvantage < -0.5 || config.HomeAdvantage > 0.5 {
		return fmt.Errorf("HomeAdvantage must be between -0.5 and 0.5, got: %f", config.HomeAdvantage)
	}
	if config.MatchTrials < 1 || config.SeasonTrials < 1 {
		return fmt.Errorf("trial counts must be positive, got: match=%d season=%d", config.MatchTrials, config.SeasonTrials)
	}
	if config.MatchTrials > config.MaxTrials || config.SeasonTrials > config.MaxTrials {
		return fmt.Errorf("trial counts must not exceed MaxTrials (%d), got: match=%d season=%d",
			config.MaxTrials, config.MatchTrials, config.SeasonTrials)
	}
	if config.Workers < 1 {
		return fmt.Errorf("Workers must be at least 1, got: %d", config.Workers)
	}
	if config.PromotionPlaces < 0 || config.RelegationPlaces < 0 {
		return fmt.Errorf("promotion and relegation places must not be negative")
	}
	if config.CacheEntries < 0 {
		return fmt.Errorf("CacheEntries must not be negative, got: %d", config.CacheEntries)
	}
	if config.CalibrationBuckets < 1 {
		return fmt.Errorf("CalibrationBuckets must be at least 1, got: %d", config.CalibrationBuckets)
	}
	return nil
}
