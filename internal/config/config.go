package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/placepulse/backend-go/internal/models"
)

// Config is the full application configuration. Every threshold the
// engine depends on lives here so deployments can tune them without a
// rebuild; nothing below is read from anywhere else.
type Config struct {
	Port          string
	DBPath        string
	RedisAddr     string
	RedisPassword string

	Movement MovementConfig
	Visit    VisitConfig
	Vote     VoteConfig
	Reward   RewardConfig
	Supply   SupplyConfig
}

// AccuracyMode selects the platform location accuracy profile
type AccuracyMode string

const (
	AccuracyHigh     AccuracyMode = "high"
	AccuracyBalanced AccuracyMode = "balanced"
	AccuracyLow      AccuracyMode = "low"
)

// SamplingProfile configures the periodic location sampler for one
// movement mode
type SamplingProfile struct {
	Interval time.Duration
	Accuracy AccuracyMode
	Timeout  time.Duration
}

// ConfidenceBand is the confidence range for one movement type.
// Confidence = Base + consistency * (Max - Base).
type ConfidenceBand struct {
	Base float64
	Max  float64
}

// MovementConfig tunes the movement classifier
type MovementConfig struct {
	WindowSize int // rolling fix window, oldest evicted first
	MinFixes   int // classification requires at least this many

	// Ascending speed thresholds in km/h. A boundary value belongs to
	// the lower bucket; anything above DrivingMaxKmh is transit.
	StationaryMaxKmh float64
	WalkingMaxKmh    float64
	BikingMaxKmh     float64
	DrivingMaxKmh    float64

	Confidence map[models.MovementType]ConfidenceBand
	Profiles   map[models.MovementType]SamplingProfile
}

// VisitConfig tunes visit clustering. These are the canonical values;
// the same radius/gap pair is used everywhere a visit is built.
type VisitConfig struct {
	ClusterRadiusMeters float64
	MaxGap              time.Duration
	MinDurationMinutes  float64
}

// VoteConfig tunes the vote weight calculation
type VoteConfig struct {
	MaxTimeWeight      float64
	TimeCapMinutes     float64
	MovementFactors    map[models.MovementType]float64
	MaxEngagementBonus float64
	MaxDiversityBonus  float64
	MinEligibleMinutes float64
	MaxAccuracyMeters  float64 // at least one fix must be this accurate
}

// RewardConfig tunes the reward calculator
type RewardConfig struct {
	BasePerPoint        float64
	TypeMultipliers     map[models.MovementType]float64
	AccuracyBonus       float64
	AccuracyBoundM      float64 // bonus applies below this accuracy
	TrackingBonusPerMin float64
	TrackingBonusCap    float64
	DensityBonusCap     float64
	DensityCellLevel    int   // s2 cell level used for sparsity lookups
	SparseCellCount     int64 // cells with fewer prior points earn the bonus
	PrecisionDecimals   int
	DedupTTL            time.Duration
}

// SupplyConfig tunes the token supply ledger
type SupplyConfig struct {
	MaxSupply       float64
	HalvingInterval float64
	MinMultiplier   float64
	MintRetries     int
}

// Load reads configuration from the environment with sane defaults.
// Every threshold, sampling profile and reward rate below is bound to
// an environment key, so deployments tune them without a rebuild.
func Load() *Config {
	viper.AutomaticEnv()
	viper.SetDefault("PORT", ":8080")
	viper.SetDefault("DB_PATH", "./data/placepulse.db")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")

	cfg := &Config{
		Port:          viper.GetString("PORT"),
		DBPath:        viper.GetString("DB_PATH"),
		RedisAddr:     viper.GetString("REDIS_ADDR"),
		RedisPassword: viper.GetString("REDIS_PASSWORD"),
		Movement:      DefaultMovement(),
		Visit:         DefaultVisit(),
		Vote:          DefaultVote(),
		Reward:        DefaultReward(),
		Supply:        DefaultSupply(),
	}

	overrideFloat("MAX_SUPPLY", &cfg.Supply.MaxSupply)
	overrideFloat("HALVING_INTERVAL", &cfg.Supply.HalvingInterval)
	overrideFloat("MIN_MULTIPLIER", &cfg.Supply.MinMultiplier)
	overrideInt("MINT_RETRIES", &cfg.Supply.MintRetries)

	overrideFloat("VISIT_RADIUS_METERS", &cfg.Visit.ClusterRadiusMeters)
	overrideMinutes("VISIT_MAX_GAP_MINUTES", &cfg.Visit.MaxGap)
	overrideFloat("VISIT_MIN_MINUTES", &cfg.Visit.MinDurationMinutes)

	overrideFloat("VOTE_MIN_ELIGIBLE_MINUTES", &cfg.Vote.MinEligibleMinutes)
	overrideFloat("VOTE_MAX_ACCURACY_METERS", &cfg.Vote.MaxAccuracyMeters)

	m := &cfg.Movement
	overrideInt("MOVEMENT_WINDOW_SIZE", &m.WindowSize)
	overrideInt("MOVEMENT_MIN_FIXES", &m.MinFixes)
	overrideFloat("MOVEMENT_STATIONARY_MAX_KMH", &m.StationaryMaxKmh)
	overrideFloat("MOVEMENT_WALKING_MAX_KMH", &m.WalkingMaxKmh)
	overrideFloat("MOVEMENT_BIKING_MAX_KMH", &m.BikingMaxKmh)
	overrideFloat("MOVEMENT_DRIVING_MAX_KMH", &m.DrivingMaxKmh)
	for typ, profile := range m.Profiles {
		key := "SAMPLING_" + strings.ToUpper(string(typ))
		overrideSeconds(key+"_INTERVAL_SECONDS", &profile.Interval)
		overrideSeconds(key+"_TIMEOUT_SECONDS", &profile.Timeout)
		mode := string(profile.Accuracy)
		overrideString(key+"_ACCURACY", &mode)
		profile.Accuracy = AccuracyMode(mode)
		m.Profiles[typ] = profile
	}

	r := &cfg.Reward
	overrideFloat("REWARD_BASE_PER_POINT", &r.BasePerPoint)
	overrideFloat("REWARD_ACCURACY_BONUS", &r.AccuracyBonus)
	overrideFloat("REWARD_ACCURACY_BOUND_M", &r.AccuracyBoundM)
	overrideFloat("REWARD_TRACKING_BONUS_PER_MIN", &r.TrackingBonusPerMin)
	overrideFloat("REWARD_TRACKING_BONUS_CAP", &r.TrackingBonusCap)
	overrideFloat("REWARD_DENSITY_BONUS_CAP", &r.DensityBonusCap)
	overrideInt64("REWARD_SPARSE_CELL_COUNT", &r.SparseCellCount)
	overrideSeconds("REWARD_DEDUP_TTL_SECONDS", &r.DedupTTL)
	for typ, mult := range r.TypeMultipliers {
		overrideFloat("REWARD_MULTIPLIER_"+strings.ToUpper(string(typ)), &mult)
		r.TypeMultipliers[typ] = mult
	}

	return cfg
}

// overrideFloat binds key to dst: the current value becomes the viper
// default and an environment value replaces it
func overrideFloat(key string, dst *float64) {
	viper.SetDefault(key, *dst)
	*dst = viper.GetFloat64(key)
}

func overrideInt(key string, dst *int) {
	viper.SetDefault(key, *dst)
	*dst = viper.GetInt(key)
}

func overrideInt64(key string, dst *int64) {
	viper.SetDefault(key, *dst)
	*dst = viper.GetInt64(key)
}

func overrideString(key string, dst *string) {
	viper.SetDefault(key, *dst)
	*dst = viper.GetString(key)
}

func overrideSeconds(key string, dst *time.Duration) {
	viper.SetDefault(key, dst.Seconds())
	*dst = time.Duration(viper.GetFloat64(key) * float64(time.Second))
}

func overrideMinutes(key string, dst *time.Duration) {
	viper.SetDefault(key, dst.Minutes())
	*dst = time.Duration(viper.GetFloat64(key) * float64(time.Minute))
}

// DefaultMovement returns the default classifier tuning
func DefaultMovement() MovementConfig {
	return MovementConfig{
		WindowSize:       20,
		MinFixes:         3,
		StationaryMaxKmh: 0.5,
		WalkingMaxKmh:    6,
		BikingMaxKmh:     25,
		DrivingMaxKmh:    120,
		Confidence: map[models.MovementType]ConfidenceBand{
			models.MovementStationary: {Base: 0.90, Max: 0.99},
			models.MovementWalking:    {Base: 0.80, Max: 0.95},
			models.MovementBiking:     {Base: 0.70, Max: 0.90},
			models.MovementDriving:    {Base: 0.75, Max: 0.95},
			models.MovementTransit:    {Base: 0.60, Max: 0.85},
		},
		Profiles: map[models.MovementType]SamplingProfile{
			models.MovementUnknown:    {Interval: 10 * time.Second, Accuracy: AccuracyBalanced, Timeout: 15 * time.Second},
			models.MovementStationary: {Interval: 60 * time.Second, Accuracy: AccuracyLow, Timeout: 30 * time.Second},
			models.MovementWalking:    {Interval: 10 * time.Second, Accuracy: AccuracyHigh, Timeout: 15 * time.Second},
			models.MovementBiking:     {Interval: 5 * time.Second, Accuracy: AccuracyHigh, Timeout: 10 * time.Second},
			models.MovementDriving:    {Interval: 5 * time.Second, Accuracy: AccuracyBalanced, Timeout: 10 * time.Second},
			models.MovementTransit:    {Interval: 15 * time.Second, Accuracy: AccuracyBalanced, Timeout: 20 * time.Second},
		},
	}
}

// DefaultVisit returns the canonical visit clustering policy
func DefaultVisit() VisitConfig {
	return VisitConfig{
		ClusterRadiusMeters: 50,
		MaxGap:              30 * time.Minute,
		MinDurationMinutes:  5,
	}
}

// DefaultVote returns the default vote weight tuning. Walking is
// weighted highest and motorized movement lowest.
func DefaultVote() VoteConfig {
	return VoteConfig{
		MaxTimeWeight:  2.0,
		TimeCapMinutes: 120,
		MovementFactors: map[models.MovementType]float64{
			models.MovementWalking:    1.0,
			models.MovementBiking:     0.8,
			models.MovementStationary: 0.6,
			models.MovementTransit:    0.3,
			models.MovementDriving:    0.2,
		},
		MaxEngagementBonus: 0.5,
		MaxDiversityBonus:  0.5,
		MinEligibleMinutes: 5,
		MaxAccuracyMeters:  25,
	}
}

// DefaultReward returns the default reward-rate table
func DefaultReward() RewardConfig {
	return RewardConfig{
		BasePerPoint: 0.1,
		TypeMultipliers: map[models.MovementType]float64{
			models.MovementWalking:    1.5,
			models.MovementBiking:     1.3,
			models.MovementStationary: 1.0,
			models.MovementDriving:    0.8,
			models.MovementTransit:    0.6,
			models.MovementUnknown:    0.5,
		},
		AccuracyBonus:       0.05,
		AccuracyBoundM:      20,
		TrackingBonusPerMin: 0.01,
		TrackingBonusCap:    0.3,
		DensityBonusCap:     0.2,
		DensityCellLevel:    16, // roughly 150m cells
		SparseCellCount:     50,
		PrecisionDecimals:   4,
		DedupTTL:            5 * time.Minute,
	}
}

// DefaultSupply returns the Bitcoin-style issuance defaults
func DefaultSupply() SupplyConfig {
	return SupplyConfig{
		MaxSupply:       21_000_000,
		HalvingInterval: 2_100_000,
		MinMultiplier:   0.01,
		MintRetries:     5,
	}
}

// Validate rejects configurations that would break classifier or
// ledger invariants
func (c *Config) Validate() error {
	m := c.Movement
	if !(m.StationaryMaxKmh < m.WalkingMaxKmh && m.WalkingMaxKmh < m.BikingMaxKmh && m.BikingMaxKmh < m.DrivingMaxKmh) {
		return fmt.Errorf("movement speed thresholds must be strictly increasing")
	}
	if m.WindowSize < m.MinFixes {
		return fmt.Errorf("movement window size %d smaller than minimum fixes %d", m.WindowSize, m.MinFixes)
	}
	if c.Supply.MaxSupply <= 0 || c.Supply.HalvingInterval <= 0 {
		return fmt.Errorf("supply cap and halving interval must be positive")
	}
	if c.Supply.HalvingInterval > c.Supply.MaxSupply {
		return fmt.Errorf("halving interval exceeds max supply")
	}
	if c.Supply.MinMultiplier <= 0 || c.Supply.MinMultiplier > 1 {
		return fmt.Errorf("minimum multiplier must be in (0, 1]")
	}
	if c.Visit.ClusterRadiusMeters <= 0 || c.Visit.MaxGap <= 0 {
		return fmt.Errorf("visit radius and gap must be positive")
	}
	return nil
}
