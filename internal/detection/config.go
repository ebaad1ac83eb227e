package detection

import (
	"errors"
	"time"
)

// Config holds the tunables of the detection engine
type Config struct {
	// Clustering
	SplitRadiusMeters float64 `koanf:"split_radius_m"` // 0 disables position-based splitting

	// Multilateration
	PathLossExponent float64       `koanf:"path_loss_exponent"`
	RecencyHalfLife  time.Duration `koanf:"recency_half_life"` // 0 disables recency weighting
	MaxIterations    int           `koanf:"max_iterations"`

	// Scoring
	SaturationRadiusMeters float64 `koanf:"saturation_radius_m"`
	DistanceWeight         float64 `koanf:"distance_weight"`
	ParameterWeight        float64 `koanf:"parameter_weight"`
	ParameterSaturation    int     `koanf:"parameter_saturation"`
	UnknownIdentityWeight  float64 `koanf:"unknown_identity_weight"`
	PowerWeight            float64 `koanf:"power_weight"`
	ReferencePowerDBm      float64 `koanf:"reference_power_dbm"` // expected received power at 1 km
	PowerToleranceDB       float64 `koanf:"power_tolerance_db"`
	PowerSaturationDB      float64 `koanf:"power_saturation_db"`

	// Similarity
	SimilarRadiusMeters float64 `koanf:"similar_radius_m"`
	MaxPLMNEditDistance int     `koanf:"max_plmn_edit_distance"`
}

// DefaultConfig returns the default detection thresholds
func DefaultConfig() Config {
	return Config{
		SplitRadiusMeters: 0,

		PathLossExponent: 3.0,
		RecencyHalfLife:  7 * 24 * time.Hour,
		MaxIterations:    50,

		SaturationRadiusMeters: 5000,
		DistanceWeight:         40,
		ParameterWeight:        25,
		ParameterSaturation:    4,
		UnknownIdentityWeight:  15,
		PowerWeight:            20,
		ReferencePowerDBm:      -70,
		PowerToleranceDB:       15,
		PowerSaturationDB:      20,

		SimilarRadiusMeters: 1000,
		MaxPLMNEditDistance: 1,
	}
}

// Validate rejects settings the engine cannot work with
func (c Config) Validate() error {
	var errs []error
	if c.SplitRadiusMeters < 0 {
		errs = append(errs, errors.New("split_radius_m must be >= 0"))
	}
	if c.PathLossExponent <= 0 {
		errs = append(errs, errors.New("path_loss_exponent must be > 0"))
	}
	if c.RecencyHalfLife < 0 {
		errs = append(errs, errors.New("recency_half_life must be >= 0"))
	}
	if c.MaxIterations < 1 {
		errs = append(errs, errors.New("max_iterations must be >= 1"))
	}
	if c.SaturationRadiusMeters <= 0 {
		errs = append(errs, errors.New("saturation_radius_m must be > 0"))
	}
	if c.ParameterSaturation < 1 {
		errs = append(errs, errors.New("parameter_saturation must be >= 1"))
	}
	if c.PowerSaturationDB <= 0 {
		errs = append(errs, errors.New("power_saturation_db must be > 0"))
	}
	if c.DistanceWeight < 0 || c.ParameterWeight < 0 || c.UnknownIdentityWeight < 0 || c.PowerWeight < 0 {
		errs = append(errs, errors.New("score weights must be >= 0"))
	}
	if c.SimilarRadiusMeters < 0 || c.MaxPLMNEditDistance < 0 {
		errs = append(errs, errors.New("similarity thresholds must be >= 0"))
	}
	return errors.Join(errs...)
}

// MaxScore is the sum of all term weights
func (c Config) MaxScore() float64 {
	return c.DistanceWeight + c.ParameterWeight + c.UnknownIdentityWeight + c.PowerWeight
}
