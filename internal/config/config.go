package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Resolver     ResolverConfig     `yaml:"resolver" mapstructure:"resolver"`
	Gaps         GapConfig          `yaml:"gaps" mapstructure:"gaps"`
	Completeness CompletenessConfig `yaml:"completeness" mapstructure:"completeness"`
	Retry        RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Nearby       NearbyConfig       `yaml:"nearby" mapstructure:"nearby"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath    string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	FixturePath   string `yaml:"fixture_path" mapstructure:"fixture_path"`
	MaxCandidates int    `yaml:"max_candidates" mapstructure:"max_candidates"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// TrustProxy honours X-Forwarded-For and X-Real-IP. Enable only behind a
	// proxy that overwrites them.
	TrustProxy     bool     `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// City mismatch policies for the location matcher.
const (
	CityMismatchIgnore   = "ignore"
	CityMismatchPenalize = "penalize"
	CityMismatchExclude  = "exclude"
)

// ResolverConfig holds the location matcher thresholds.
type ResolverConfig struct {
	// Similarity names the fuzzy algorithm: "levenshtein" or "winkler".
	Similarity string `yaml:"similarity" mapstructure:"similarity"`

	// ConfidenceFloor drops candidates scoring below it.
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`

	// KeyWeight blends the suffix-stripped key score with the full folded
	// name score: KeyWeight*key + (1-KeyWeight)*folded.
	KeyWeight float64 `yaml:"key_weight" mapstructure:"key_weight"`

	ContainmentBonus    float64 `yaml:"containment_bonus" mapstructure:"containment_bonus"`
	CityBonus           float64 `yaml:"city_bonus" mapstructure:"city_bonus"`
	CityMismatch        string  `yaml:"city_mismatch" mapstructure:"city_mismatch"`
	CityMismatchPenalty float64 `yaml:"city_mismatch_penalty" mapstructure:"city_mismatch_penalty"`

	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit     int `yaml:"max_limit" mapstructure:"max_limit"`

	// DecisiveMargin is the lead the best match needs over the runner-up
	// before a single-answer resolution accepts it.
	DecisiveMargin float64 `yaml:"decisive_margin" mapstructure:"decisive_margin"`
}

// Anchor policies for the distribution calculator.
const (
	AnchorExclude = "exclude"
	AnchorInclude = "include"
)

// GapConfig holds gap analysis thresholds.
type GapConfig struct {
	UnderRepresentedRatio float64 `yaml:"under_represented_ratio" mapstructure:"under_represented_ratio"`
	OverRepresentedRatio  float64 `yaml:"over_represented_ratio" mapstructure:"over_represented_ratio"`
	HighPriorityGap       float64 `yaml:"high_priority_gap" mapstructure:"high_priority_gap"`
	MediumPriorityGap     float64 `yaml:"medium_priority_gap" mapstructure:"medium_priority_gap"`
	AnchorPolicy          string  `yaml:"anchor_policy" mapstructure:"anchor_policy"`
	MaxCompetitors        int     `yaml:"max_competitors" mapstructure:"max_competitors"`
	MaxConcurrency        int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// CompletenessWeights are the per-dimension points of the completeness score.
type CompletenessWeights struct {
	Social       int `yaml:"social" mapstructure:"social"`
	Operational  int `yaml:"operational" mapstructure:"operational"`
	Reviews      int `yaml:"reviews" mapstructure:"reviews"`
	Demographics int `yaml:"demographics" mapstructure:"demographics"`
	OpeningYear  int `yaml:"opening_year" mapstructure:"opening_year"`
	Contact      int `yaml:"contact" mapstructure:"contact"`
	BaseStats    int `yaml:"base_stats" mapstructure:"base_stats"`
}

// Sum returns the total of all weights.
func (w CompletenessWeights) Sum() int {
	return w.Social + w.Operational + w.Reviews + w.Demographics + w.OpeningYear + w.Contact + w.BaseStats
}

// GradeThresholds are the minimum scores for each grade. Anything below
// Fair is POOR.
type GradeThresholds struct {
	Excellent int `yaml:"excellent" mapstructure:"excellent"`
	Good      int `yaml:"good" mapstructure:"good"`
	Fair      int `yaml:"fair" mapstructure:"fair"`
}

// CompletenessConfig configures the completeness scorer.
type CompletenessConfig struct {
	Weights CompletenessWeights `yaml:"weights" mapstructure:"weights"`
	Grades  GradeThresholds     `yaml:"grades" mapstructure:"grades"`
}

// RetryConfig configures retries of transient store reads.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// NearbyConfig configures the nearby competitor search.
type NearbyConfig struct {
	RadiusKm float64 `yaml:"radius_km" mapstructure:"radius_km"`
	Limit    int     `yaml:"limit" mapstructure:"limit"`
}

// DefaultResolverConfig returns the matcher defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Similarity:          "levenshtein",
		ConfidenceFloor:     0.3,
		KeyWeight:           0.75,
		ContainmentBonus:    0.2,
		CityBonus:           0.3,
		CityMismatch:        CityMismatchPenalize,
		CityMismatchPenalty: 0.25,
		DefaultLimit:        5,
		MaxLimit:            25,
		DecisiveMargin:      0.15,
	}
}

// DefaultGapConfig returns the gap analysis defaults.
func DefaultGapConfig() GapConfig {
	return GapConfig{
		UnderRepresentedRatio: 0.5,
		OverRepresentedRatio:  1.5,
		HighPriorityGap:       0.10,
		MediumPriorityGap:     0.05,
		AnchorPolicy:          AnchorExclude,
		MaxCompetitors:        20,
		MaxConcurrency:        4,
	}
}

// DefaultCompletenessConfig returns the completeness weights and grade table.
func DefaultCompletenessConfig() CompletenessConfig {
	return CompletenessConfig{
		Weights: CompletenessWeights{
			Social:       20,
			Operational:  20,
			Reviews:      15,
			Demographics: 15,
			OpeningYear:  10,
			Contact:      10,
			BaseStats:    10,
		},
		Grades: GradeThresholds{
			Excellent: 76,
			Good:      51,
			Fair:      26,
		},
	}
}

// Defaults returns the configuration Load produces when neither a config
// file nor environment overrides are present.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:        "postgres",
			SQLitePath:    "gapcore.db",
			MaxCandidates: 200,
			MaxConns:      10,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
			RateLimit:      20,
			RateBurst:      40,
			TimeoutSecs:    30,
		},
		Resolver:     DefaultResolverConfig(),
		Gaps:         DefaultGapConfig(),
		Completeness: DefaultCompletenessConfig(),
		Retry: RetryConfig{
			MaxAttempts:      3,
			InitialBackoffMs: 200,
			MaxBackoffMs:     2000,
			Multiplier:       2,
			JitterFraction:   0.25,
		},
		Nearby: NearbyConfig{RadiusKm: 10, Limit: 20},
	}
}

// Validate checks the resolver thresholds.
func (c ResolverConfig) Validate() error {
	var errs []string
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		errs = append(errs, "confidence_floor must be within [0,1]")
	}
	if c.KeyWeight < 0 || c.KeyWeight > 1 {
		errs = append(errs, "key_weight must be within [0,1]")
	}
	if c.ContainmentBonus < 0 || c.CityBonus < 0 || c.CityMismatchPenalty < 0 {
		errs = append(errs, "bonuses and penalties must be non-negative")
	}
	switch c.CityMismatch {
	case CityMismatchIgnore, CityMismatchPenalize, CityMismatchExclude:
	default:
		errs = append(errs, "city_mismatch must be ignore, penalize or exclude")
	}
	if c.DefaultLimit <= 0 || c.MaxLimit < c.DefaultLimit {
		errs = append(errs, "limits must satisfy 0 < default_limit <= max_limit")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: invalid resolver config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the gap thresholds.
func (c GapConfig) Validate() error {
	var errs []string
	if c.UnderRepresentedRatio <= 0 || c.UnderRepresentedRatio >= 1 {
		errs = append(errs, "under_represented_ratio must be within (0,1)")
	}
	if c.OverRepresentedRatio <= 1 {
		errs = append(errs, "over_represented_ratio must be greater than 1")
	}
	if c.MediumPriorityGap < 0 || c.HighPriorityGap < c.MediumPriorityGap {
		errs = append(errs, "priority gaps must satisfy 0 <= medium <= high")
	}
	if c.AnchorPolicy != AnchorExclude && c.AnchorPolicy != AnchorInclude {
		errs = append(errs, "anchor_policy must be exclude or include")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: invalid gap config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration required by the given run mode
// ("serve", "query" or "migrate").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "query", "migrate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	case "memory":
		if mode == "migrate" {
			errs = append(errs, "the memory driver cannot be migrated")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of postgres, sqlite, memory", c.Store.Driver))
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if mode != "migrate" {
		if err := c.Resolver.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := c.Gaps.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GAPCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "gapcore.db")
	v.SetDefault("store.max_candidates", 200)
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.timeout_secs", 30)
	v.SetDefault("server.trust_proxy", false)

	rc := DefaultResolverConfig()
	v.SetDefault("resolver.similarity", rc.Similarity)
	v.SetDefault("resolver.confidence_floor", rc.ConfidenceFloor)
	v.SetDefault("resolver.key_weight", rc.KeyWeight)
	v.SetDefault("resolver.containment_bonus", rc.ContainmentBonus)
	v.SetDefault("resolver.city_bonus", rc.CityBonus)
	v.SetDefault("resolver.city_mismatch", rc.CityMismatch)
	v.SetDefault("resolver.city_mismatch_penalty", rc.CityMismatchPenalty)
	v.SetDefault("resolver.default_limit", rc.DefaultLimit)
	v.SetDefault("resolver.max_limit", rc.MaxLimit)
	v.SetDefault("resolver.decisive_margin", rc.DecisiveMargin)

	gc := DefaultGapConfig()
	v.SetDefault("gaps.under_represented_ratio", gc.UnderRepresentedRatio)
	v.SetDefault("gaps.over_represented_ratio", gc.OverRepresentedRatio)
	v.SetDefault("gaps.high_priority_gap", gc.HighPriorityGap)
	v.SetDefault("gaps.medium_priority_gap", gc.MediumPriorityGap)
	v.SetDefault("gaps.anchor_policy", gc.AnchorPolicy)
	v.SetDefault("gaps.max_competitors", gc.MaxCompetitors)
	v.SetDefault("gaps.max_concurrency", gc.MaxConcurrency)

	cc := DefaultCompletenessConfig()
	v.SetDefault("completeness.weights.social", cc.Weights.Social)
	v.SetDefault("completeness.weights.operational", cc.Weights.Operational)
	v.SetDefault("completeness.weights.reviews", cc.Weights.Reviews)
	v.SetDefault("completeness.weights.demographics", cc.Weights.Demographics)
	v.SetDefault("completeness.weights.opening_year", cc.Weights.OpeningYear)
	v.SetDefault("completeness.weights.contact", cc.Weights.Contact)
	v.SetDefault("completeness.weights.base_stats", cc.Weights.BaseStats)
	v.SetDefault("completeness.grades.excellent", cc.Grades.Excellent)
	v.SetDefault("completeness.grades.good", cc.Grades.Good)
	v.SetDefault("completeness.grades.fair", cc.Grades.Fair)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 200)
	v.SetDefault("retry.max_backoff_ms", 2000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("nearby.radius_km", 10.0)
	v.SetDefault("nearby.limit", 20)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
