// Package config loads the orchestrator's persisted YAML configuration via viper,
// applies defaults, and validates the result against a whitelist of recognized keys.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sri0013/vnf-project/pkg/apierrors"
	"github.com/sri0013/vnf-project/pkg/pathsafe"
)

// ScalingThreshold bounds one metric's upper/lower scaling threshold.
type ScalingThreshold struct {
	Upper float64 `mapstructure:"upper"`
	Lower float64 `mapstructure:"lower"`
}

// ScalingThresholds groups the three threshold-rule metrics of spec §4.7.
type ScalingThresholds struct {
	CPU     ScalingThreshold `mapstructure:"cpu"`
	Memory  ScalingThreshold `mapstructure:"memory"`
	Latency ScalingThreshold `mapstructure:"latency"`
}

// ForecastingConfig configures the forecaster (C5).
type ForecastingConfig struct {
	WindowSize           int     `mapstructure:"window_size"`
	ForecastSteps        int     `mapstructure:"forecast_steps"`
	ConfidenceThreshold  float64 `mapstructure:"confidence_threshold"`
}

// RollingUpdateConfig configures instance create/drain timeouts (C3/C7).
type RollingUpdateConfig struct {
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout"`
	DrainTimeout       time.Duration `mapstructure:"drain_timeout"`
	GracePeriod        time.Duration `mapstructure:"grace_period"`
}

// RewardWeights exposes the reward term weights of spec §4.6, tunable per deployment
// per the spec's own Open Question on reward-weight provenance.
type RewardWeights struct {
	ChainSatisfied     float64 `mapstructure:"chain_satisfied"`
	ChainDropped       float64 `mapstructure:"chain_dropped"`
	InvalidAction      float64 `mapstructure:"invalid_action"`
	UnnecessaryDrain   float64 `mapstructure:"unnecessary_drain"`
	ResourceEfficiency float64 `mapstructure:"resource_efficiency"`
	SLAViolation       float64 `mapstructure:"sla_violation"`
}

// DRLConfig configures the learning agent (C6).
type DRLConfig struct {
	LearningRate     float64       `mapstructure:"learning_rate"`
	BatchSize        int           `mapstructure:"batch_size"`
	MemorySize       int           `mapstructure:"memory_size"`
	Gamma            float64       `mapstructure:"gamma"`
	EpsilonStart     float64       `mapstructure:"epsilon_start"`
	EpsilonMin       float64       `mapstructure:"epsilon_min"`
	EpsilonDecay     float64       `mapstructure:"epsilon_decay"`
	TargetUpdateFreq int           `mapstructure:"target_update_freq"`
	CheckpointEvery  int           `mapstructure:"checkpoint_every"`
	ModelPath        string        `mapstructure:"model_path"`
	RewardWeights    RewardWeights `mapstructure:"reward_weights"`
}

// ControlLoopConfig configures the scaling controller's tick cadence (C7).
type ControlLoopConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	Cooldown     time.Duration `mapstructure:"cooldown"`
}

// HTTPConfig configures the two listeners of §2.4.
type HTTPConfig struct {
	MetricsPort int `mapstructure:"metrics_port"`
	FlowPort    int `mapstructure:"flow_port"`
}

// ChainConfig configures the SFC allocator (C8).
type ChainConfig struct {
	MaxReservationsPerInstance int `mapstructure:"max_reservations_per_instance"`
}

// Config is the top-level, validated orchestrator configuration.
type Config struct {
	LogLevel          string              `mapstructure:"log_level"`
	VNFTypes          []string            `mapstructure:"vnf_types"`
	MinInstances      int                 `mapstructure:"min_instances"`
	MaxInstances      int                 `mapstructure:"max_instances"`
	ScalingThresholds ScalingThresholds   `mapstructure:"scaling_thresholds"`
	Forecasting       ForecastingConfig   `mapstructure:"forecasting"`
	RollingUpdate     RollingUpdateConfig `mapstructure:"rolling_update"`
	DRLConfig         DRLConfig           `mapstructure:"drl_config"`
	ControlLoop       ControlLoopConfig   `mapstructure:"control_loop"`
	Chain             ChainConfig         `mapstructure:"chain"`
	HTTP              HTTPConfig          `mapstructure:"http"`
}

// recognizedKeys is the flat whitelist spec §6 names; unrecognized keys are rejected at
// startup with a schema-mismatch-class fatal error.
var recognizedKeys = []string{
	"log_level",
	"vnf_types",
	"min_instances", "max_instances",
	"scaling_thresholds.cpu.upper", "scaling_thresholds.cpu.lower",
	"scaling_thresholds.memory.upper", "scaling_thresholds.memory.lower",
	"scaling_thresholds.latency.upper", "scaling_thresholds.latency.lower",
	"forecasting.window_size", "forecasting.forecast_steps", "forecasting.confidence_threshold",
	"rolling_update.health_check_timeout", "rolling_update.drain_timeout", "rolling_update.grace_period",
	"drl_config.learning_rate", "drl_config.batch_size", "drl_config.memory_size", "drl_config.gamma",
	"drl_config.epsilon_start", "drl_config.epsilon_min", "drl_config.epsilon_decay",
	"drl_config.target_update_freq", "drl_config.checkpoint_every", "drl_config.model_path",
	"drl_config.reward_weights.chain_satisfied", "drl_config.reward_weights.chain_dropped",
	"drl_config.reward_weights.invalid_action", "drl_config.reward_weights.unnecessary_drain",
	"drl_config.reward_weights.resource_efficiency", "drl_config.reward_weights.sla_violation",
	"control_loop.tick_interval", "control_loop.cooldown",
	"chain.max_reservations_per_instance",
	"http.metrics_port", "http.flow_port",
}

func isRecognized(key string) bool {
	for _, k := range recognizedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// setDefaults mirrors spec.md's stated defaults everywhere one is named.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("min_instances", 1)
	v.SetDefault("max_instances", 10)
	v.SetDefault("scaling_thresholds.cpu.upper", 80.0)
	v.SetDefault("scaling_thresholds.cpu.lower", 30.0)
	v.SetDefault("scaling_thresholds.memory.upper", 85.0)
	v.SetDefault("scaling_thresholds.memory.lower", 40.0)
	v.SetDefault("scaling_thresholds.latency.upper", 1000.0)
	v.SetDefault("scaling_thresholds.latency.lower", 200.0)
	v.SetDefault("forecasting.window_size", 20)
	v.SetDefault("forecasting.forecast_steps", 3)
	v.SetDefault("forecasting.confidence_threshold", 0.7)
	v.SetDefault("rolling_update.health_check_timeout", 30*time.Second)
	v.SetDefault("rolling_update.drain_timeout", 60*time.Second)
	v.SetDefault("rolling_update.grace_period", 10*time.Second)
	v.SetDefault("drl_config.learning_rate", 0.00025)
	v.SetDefault("drl_config.batch_size", 32)
	v.SetDefault("drl_config.memory_size", 10000)
	v.SetDefault("drl_config.gamma", 0.99)
	v.SetDefault("drl_config.epsilon_start", 1.0)
	v.SetDefault("drl_config.epsilon_min", 0.01)
	v.SetDefault("drl_config.epsilon_decay", 0.995)
	v.SetDefault("drl_config.target_update_freq", 100)
	v.SetDefault("drl_config.checkpoint_every", 10)
	v.SetDefault("drl_config.model_path", "checkpoints/agent.gob")
	v.SetDefault("drl_config.reward_weights.chain_satisfied", 2.0)
	v.SetDefault("drl_config.reward_weights.chain_dropped", -1.5)
	v.SetDefault("drl_config.reward_weights.invalid_action", -1.0)
	v.SetDefault("drl_config.reward_weights.unnecessary_drain", -0.5)
	v.SetDefault("drl_config.reward_weights.resource_efficiency", 0.3)
	v.SetDefault("drl_config.reward_weights.sla_violation", -0.8)
	v.SetDefault("control_loop.tick_interval", 60*time.Second)
	v.SetDefault("control_loop.cooldown", 120*time.Second)
	v.SetDefault("chain.max_reservations_per_instance", 4)
	v.SetDefault("http.metrics_port", 9090)
	v.SetDefault("http.flow_port", 8080)
}

// Load reads the YAML file at path (validated by pkg/pathsafe), overlays ORCH_-prefixed
// environment variables, and returns a fully validated Config.
func Load(path string) (*Config, error) {
	validator := pathsafe.NewValidator()
	validator.AddAllowedDirectory(pathsafe.AllowedDirectory{Path: ".", Extensions: []string{".yaml", ".yml"}, Recursive: true})
	if err := validator.ValidatePath(path); err != nil {
		return nil, apierrors.SchemaMismatch("config path", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("ORCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, apierrors.SchemaMismatch("config file", err)
	}

	if err := rejectUnrecognizedKeys(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apierrors.SchemaMismatch("config unmarshal", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, apierrors.SchemaMismatch("config validation", fmt.Errorf("%s", strings.Join(errs, "; ")))
	}
	return &cfg, nil
}

func rejectUnrecognizedKeys(v *viper.Viper) error {
	var unrecognized []string
	for _, key := range flattenKeys(v.AllSettings(), "") {
		if !isRecognized(key) {
			unrecognized = append(unrecognized, key)
		}
	}
	if len(unrecognized) > 0 {
		return apierrors.SchemaMismatch("config keys", fmt.Errorf("unrecognized keys: %s", strings.Join(unrecognized, ", ")))
	}
	return nil
}

// flattenKeys walks a nested settings map (as returned by viper.AllSettings) into
// dotted leaf-key paths, e.g. {"a": {"b": 1}} -> ["a.b"].
func flattenKeys(m map[string]interface{}, prefix string) []string {
	var keys []string
	for k, v := range m {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			keys = append(keys, flattenKeys(nested, full)...)
		} else {
			keys = append(keys, full)
		}
	}
	return keys
}

// Validate checks cross-field invariants beyond what viper's defaults/unmarshal catch,
// collecting every violation rather than failing on the first (teacher idiom).
func (c *Config) Validate() []string {
	var errs []string

	if len(c.VNFTypes) == 0 {
		errs = append(errs, "vnf_types must list at least one VNFType")
	}
	if c.MinInstances < 0 {
		errs = append(errs, "min_instances must be >= 0")
	}
	if c.MaxInstances < c.MinInstances {
		errs = append(errs, "max_instances must be >= min_instances")
	}
	if c.Forecasting.WindowSize <= 0 {
		errs = append(errs, "forecasting.window_size must be > 0")
	}
	if c.Forecasting.ForecastSteps <= 0 {
		errs = append(errs, "forecasting.forecast_steps must be > 0")
	}
	if c.Forecasting.ConfidenceThreshold <= 0 || c.Forecasting.ConfidenceThreshold > 1 {
		errs = append(errs, "forecasting.confidence_threshold must be in (0, 1]")
	}
	if c.DRLConfig.BatchSize <= 0 {
		errs = append(errs, "drl_config.batch_size must be > 0")
	}
	if c.DRLConfig.MemorySize < c.DRLConfig.BatchSize {
		errs = append(errs, "drl_config.memory_size must be >= drl_config.batch_size")
	}
	if c.ControlLoop.TickInterval <= 0 {
		errs = append(errs, "control_loop.tick_interval must be > 0")
	}
	if c.Chain.MaxReservationsPerInstance <= 0 {
		errs = append(errs, "chain.max_reservations_per_instance must be > 0")
	}
	if c.HTTP.MetricsPort == c.HTTP.FlowPort {
		errs = append(errs, "http.metrics_port and http.flow_port must differ")
	}
	return errs
}
