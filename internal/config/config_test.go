package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  port: 9090
  mode: test
database:
  dsn: postgres://u:p@db:5432/game?sslmode=disable
matchmaking:
  tick_interval: 2s
  tolerance: 150
  cron_secret: from-yaml
game:
  rounds_to_play: 6
  halftime_round: 4
rating:
  delta: 30
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("CRON_SECRET", "")
	cfg, err := LoadConfig(writeConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Mode != "test" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Matchmaking.TickInterval != 2*time.Second || cfg.Matchmaking.CronSecret != "from-yaml" {
		t.Fatalf("matchmaking = %+v", cfg.Matchmaking)
	}
	// 未配置的项取默认值
	if cfg.Database.MaxOpenConns != 20 || cfg.Rating.RetryInterval != 30*time.Second || cfg.Game.VotesToFinal != 2 {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Database, cfg.Rating)
	}

	r := cfg.Rules()
	if r.RoundsToPlay != 6 || r.HalftimeRound != 4 || r.RatingDelta != 30 || r.Tolerance != 150 || r.MaxKeyLength != 20 {
		t.Fatalf("rules = %+v", r)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://env/db")
	t.Setenv("CRON_SECRET", "from-env")
	t.Setenv("AUTH_JWT_SECRET", "jwt")
	cfg, err := LoadConfig(writeConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.DSN != "postgres://env/db" || cfg.Matchmaking.CronSecret != "from-env" || cfg.Auth.JWTSecret != "jwt" {
		t.Fatalf("env override failed: %+v %+v", cfg.Database, cfg.Matchmaking)
	}
}

func TestLoadConfigRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "votes exceed spies", yaml: "game:\n  votes_to_final: 3\n"},
		{name: "halftime outside rounds", yaml: "game:\n  rounds_to_play: 4\n  halftime_round: 7\n"},
		{name: "key longer than column", yaml: "game:\n  max_key_length: 40\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Fatal("expected invalid rules to be rejected")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestDefaultRules(t *testing.T) {
	r := Default().Rules()
	if r.RoundsToPlay != 4 || r.HalftimeRound != 3 || r.VotesToFinal != 2 || r.RatingDelta != 25 || r.Tolerance != 100 {
		t.Fatalf("default rules = %+v", r)
	}
}
