package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "amas.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "amas.db" {
		t.Errorf("db path = %s, want default", cfg.DBPath)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %s, want info", cfg.Log.Level)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("redis enabled by default: %s", cfg.Redis.Addr)
	}
}

func TestLoad_ParsesYAMLWithDurationStrings(t *testing.T) {
	path := writeConfigFile(t, `
db_path: /var/lib/amas/state.db
redis:
  addr: localhost:6379
  ttl: 5m
log:
  level: debug
  development: true
engine:
  budget: 750ms
  reward_profile: retention
  bandit_alpha: 0.5
  max_users: 200
  breaker_reset: 10s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/var/lib/amas/state.db" {
		t.Errorf("db path = %s", cfg.DBPath)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.TTL.Std() != 5*time.Minute {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if !cfg.Log.Development || cfg.Log.Level != "debug" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Engine.Budget.Std() != 750*time.Millisecond {
		t.Errorf("budget = %v", cfg.Engine.Budget.Std())
	}
	if cfg.Engine.RewardProfile != "retention" || cfg.Engine.BanditAlpha != 0.5 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
}

func TestLoad_MalformedYAMLErrors(t *testing.T) {
	path := writeConfigFile(t, "engine: [not, a, mapping]")
	if _, err := Load(path); err == nil {
		t.Error("malformed config accepted")
	}
}

func TestLoad_BadDurationErrors(t *testing.T) {
	path := writeConfigFile(t, "engine:\n  budget: soon\n")
	if _, err := Load(path); err == nil {
		t.Error("unparseable duration accepted")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
db_path: from-file.db
engine:
  budget: 1s
`)
	t.Setenv("AMAS_DB", "from-env.db")
	t.Setenv("AMAS_BUDGET", "250ms")
	t.Setenv("AMAS_REWARD_PROFILE", "speed")
	t.Setenv("AMAS_DISABLE_HEURISTIC", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "from-env.db" {
		t.Errorf("db path = %s, want env value", cfg.DBPath)
	}
	if cfg.Engine.Budget.Std() != 250*time.Millisecond {
		t.Errorf("budget = %v, want env value", cfg.Engine.Budget.Std())
	}
	if cfg.Engine.RewardProfile != "speed" {
		t.Errorf("profile = %s", cfg.Engine.RewardProfile)
	}
	if !cfg.Engine.DisableHeuristic {
		t.Error("heuristic flag not overridden")
	}
}

func TestLoad_InvalidEnvValuesAreIgnored(t *testing.T) {
	t.Setenv("AMAS_BUDGET", "whenever")
	t.Setenv("AMAS_MAX_USERS", "many")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.Budget != 0 || cfg.Engine.MaxUsers != 0 {
		t.Errorf("invalid env values applied: %+v", cfg.Engine)
	}
}

func TestEngineConfig_ZeroValuesKeepEngineDefaults(t *testing.T) {
	ec := Default().EngineConfig()
	if ec.Budget != 2*time.Second {
		t.Errorf("budget = %v, want engine default", ec.Budget)
	}
	if !ec.EnableHeuristic {
		t.Error("heuristic disabled by default")
	}
	if ec.RewardProfile != "default" {
		t.Errorf("profile = %s", ec.RewardProfile)
	}
}

func TestEngineConfig_AppliesOverrides(t *testing.T) {
	cfg := Default()
	cfg.Engine.Budget = Duration(500 * time.Millisecond)
	cfg.Engine.DisableHeuristic = true
	cfg.Engine.MaxUsers = 50
	cfg.Engine.ClassifyCount = 10
	cfg.Engine.NormalCount = 40

	ec := cfg.EngineConfig()
	if ec.Budget != 500*time.Millisecond {
		t.Errorf("budget = %v", ec.Budget)
	}
	if ec.EnableHeuristic {
		t.Error("heuristic still enabled")
	}
	if ec.Cache.MaxUsers != 50 {
		t.Errorf("max users = %d", ec.Cache.MaxUsers)
	}
	if ec.ColdStart.ClassifyCount != 10 || ec.ColdStart.NormalCount != 40 {
		t.Errorf("cold start = %+v", ec.ColdStart)
	}
}

func TestBuildLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	lc := LogConfig{Level: "shouty"}
	logger, err := lc.BuildLogger()
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Sync()
	if logger.Core().Enabled(-1) { // -1 is debug
		t.Error("debug enabled after fallback to info")
	}
}
