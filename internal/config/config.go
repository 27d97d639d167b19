// Package config loads service configuration from an optional YAML file with
// environment-variable overrides. Everything resolves to concrete values at
// startup; no component reads the environment after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/engine"
)

// #region duration

// Duration is a time.Duration that YAML can decode from "2s"-style strings
// or from plain integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("parse duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds")
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// #endregion

// #region types

// Config is the full service configuration.
type Config struct {
	DBPath string         `yaml:"db_path"`
	Redis  RedisConfig    `yaml:"redis"`
	Log    LogConfig      `yaml:"log"`
	Engine PipelineConfig `yaml:"engine"`
}

// RedisConfig configures the optional read-through cache in front of the
// SQLite repositories. An empty Addr disables it.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// LogConfig selects the logger build.
type LogConfig struct {
	Level       string `yaml:"level"` // debug | info | warn | error
	Development bool   `yaml:"development"`
}

// PipelineConfig is the YAML surface of the engine configuration. Zero values
// fall through to engine defaults.
type PipelineConfig struct {
	Budget        Duration `yaml:"budget"`
	LockTimeout   Duration `yaml:"lock_timeout"`
	RewardProfile string   `yaml:"reward_profile"`

	BanditAlpha  float64 `yaml:"bandit_alpha"`
	BanditLambda float64 `yaml:"bandit_lambda"`

	DisableHeuristic bool    `yaml:"disable_heuristic"`
	HeuristicWeight  float64 `yaml:"heuristic_weight"`

	TraceQueueSize int `yaml:"trace_queue_size"`
	WindowSize     int `yaml:"window_size"`

	MaxUsers      int      `yaml:"max_users"`
	UserTTL       Duration `yaml:"user_ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`

	BreakerThreshold int      `yaml:"breaker_threshold"`
	BreakerReset     Duration `yaml:"breaker_reset"`

	ClassifyCount int `yaml:"classify_count"`
	NormalCount   int `yaml:"normal_count"`
}

// #endregion

// #region defaults

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		DBPath: "amas.db",
		Redis: RedisConfig{
			TTL: Duration(10 * time.Minute),
		},
		Log: LogConfig{
			Level: "info",
		},
		Engine: PipelineConfig{
			SweepInterval: Duration(time.Minute),
		},
	}
}

// #endregion

// #region load

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) on top of defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine; env and defaults still apply.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv layers AMAS_* environment variables over the loaded values.
func (c *Config) applyEnv() {
	c.DBPath = envOr("AMAS_DB", c.DBPath)
	c.Redis.Addr = envOr("AMAS_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envOr("AMAS_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envInt("AMAS_REDIS_DB", c.Redis.DB)
	c.Log.Level = envOr("AMAS_LOG_LEVEL", c.Log.Level)
	c.Log.Development = envBool("AMAS_LOG_DEV", c.Log.Development)

	c.Engine.Budget = Duration(envDuration("AMAS_BUDGET", c.Engine.Budget.Std()))
	c.Engine.LockTimeout = Duration(envDuration("AMAS_LOCK_TIMEOUT", c.Engine.LockTimeout.Std()))
	c.Engine.RewardProfile = envOr("AMAS_REWARD_PROFILE", c.Engine.RewardProfile)
	c.Engine.BanditAlpha = envFloat("AMAS_BANDIT_ALPHA", c.Engine.BanditAlpha)
	c.Engine.DisableHeuristic = envBool("AMAS_DISABLE_HEURISTIC", c.Engine.DisableHeuristic)
	c.Engine.MaxUsers = envInt("AMAS_MAX_USERS", c.Engine.MaxUsers)
}

// #endregion

// #region engine-bridge

// EngineConfig resolves the pipeline section into a concrete engine.Config.
func (c Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()

	if c.Engine.Budget > 0 {
		ec.Budget = c.Engine.Budget.Std()
	}
	if c.Engine.LockTimeout > 0 {
		ec.LockTimeout = c.Engine.LockTimeout.Std()
	}
	if c.Engine.RewardProfile != "" {
		ec.RewardProfile = c.Engine.RewardProfile
	}
	if c.Engine.BanditAlpha > 0 {
		ec.BanditAlpha = c.Engine.BanditAlpha
	}
	if c.Engine.BanditLambda > 0 {
		ec.BanditLambda = c.Engine.BanditLambda
	}
	ec.EnableHeuristic = !c.Engine.DisableHeuristic
	if c.Engine.HeuristicWeight > 0 {
		ec.HeuristicWeight = c.Engine.HeuristicWeight
	}
	if c.Engine.TraceQueueSize > 0 {
		ec.TraceQueueSize = c.Engine.TraceQueueSize
	}
	if c.Engine.WindowSize > 0 {
		ec.WindowSize = c.Engine.WindowSize
	}
	if c.Engine.MaxUsers > 0 {
		ec.Cache.MaxUsers = c.Engine.MaxUsers
	}
	if c.Engine.UserTTL > 0 {
		ec.Cache.TTL = c.Engine.UserTTL.Std()
	}
	if c.Engine.BreakerThreshold > 0 {
		ec.Breaker.FailureThreshold = c.Engine.BreakerThreshold
	}
	if c.Engine.BreakerReset > 0 {
		ec.Breaker.ResetTimeout = c.Engine.BreakerReset.Std()
	}
	if c.Engine.ClassifyCount > 0 {
		ec.ColdStart.ClassifyCount = c.Engine.ClassifyCount
	}
	if c.Engine.NormalCount > 0 {
		ec.ColdStart.NormalCount = c.Engine.NormalCount
	}
	return ec
}

// #endregion

// #region logger

// BuildLogger constructs the service logger from the log section.
func (l LogConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// #endregion

// #region env-helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// #endregion
