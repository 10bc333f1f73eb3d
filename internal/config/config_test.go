package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

const sampleTOML = `
mode = "standalone"
log_level = "debug"

[auction]
set_size = 5
rtm_window = "45s"
seed = 42
default_purse = "90"
seed_file = "players.json"

[server]
port = 9000

[auth]
jwt_secret = "0123456789abcdef0123456789abcdef"

[[auth.api_keys]]
name = "console"
hash = "$2a$10$abcdefghijklmnopqrstuu"
role = "auctioneer"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auctiond.toml")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	assert.NoError(t, err)

	check.Equal(t, "standalone", cfg.Mode)
	check.Equal(t, 5, cfg.Auction.SetSize)
	check.Equal(t, 45*time.Second, cfg.Auction.RTMWindow.Duration)
	check.Equal(t, uint64(42), cfg.Auction.Seed)
	check.Equal(t, "90", cfg.Auction.Purse().String())
	check.Equal(t, 9000, cfg.Server.Port)
	// untouched keys keep their defaults
	check.Equal(t, 25, cfg.Auction.MaxSquad)
	check.Equal(t, 8, cfg.Auction.MaxOverseas)
	check.Equal(t, time.Second, cfg.Server.BidRateWindow.Duration)
	assert.Equal(t, 1, len(cfg.Auth.APIKeys))
	check.Equal(t, "auctioneer", cfg.Auth.APIKeys[0].Role)
	check.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUCTIOND_AUCTION_RTM_WINDOW", "10s")
	t.Setenv("AUCTIOND_AUCTION_SEED", "7")
	t.Setenv("AUCTIOND_AUCTION_AUTO_ADVANCE", "false")
	t.Setenv("AUCTIOND_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AUCTIOND_REDIS_STREAM_LEN", "500")
	t.Setenv("AUCTIOND_AUCTION_MAX_SQUAD", "not-a-number")

	cfg, err := Load(writeConfig(t, sampleTOML))
	assert.NoError(t, err)

	check.Equal(t, 10*time.Second, cfg.Auction.RTMWindow.Duration)
	check.Equal(t, uint64(7), cfg.Auction.Seed)
	check.False(t, cfg.Auction.AutoAdvance)
	check.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	check.Equal(t, int64(500), cfg.Redis.StreamLen)
	check.Equal(t, 25, cfg.Auction.MaxSquad)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	check.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "defaults with secret are valid in standalone",
			mutate: func(c *Config) { c.Mode = "standalone" },
		},
		{
			name:   "unknown mode",
			mutate: func(c *Config) { c.Mode = "replica" },
			want:   "unknown mode",
		},
		{
			name:   "no credentials",
			mutate: func(c *Config) { c.Auth.JWTSecret = "" },
			want:   "set jwt_secret or at least one api_keys entry",
		},
		{
			name:   "short secret",
			mutate: func(c *Config) { c.Auth.JWTSecret = "short" },
			want:   "at least 32 bytes",
		},
		{
			name:   "bad purse",
			mutate: func(c *Config) { c.Auction.DefaultPurse = "-5" },
			want:   "default_purse",
		},
		{
			name:   "overseas above squad",
			mutate: func(c *Config) { c.Auction.MaxOverseas = 30 },
			want:   "max_overseas",
		},
		{
			name: "team key without team",
			mutate: func(c *Config) {
				c.Auth.APIKeys = []APIKey{{Name: "mi", Hash: "x", Role: "team"}}
			},
			want: "team_id is required",
		},
		{
			name: "full mode checks infrastructure",
			mutate: func(c *Config) {
				c.Mode = "full"
				c.Redis.Addr = ""
				c.S3.Bucket = ""
			},
			want: "redis: addr",
		},
		{
			name: "standalone skips infrastructure",
			mutate: func(c *Config) {
				c.Mode = "standalone"
				c.Redis.Addr = ""
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Auth.JWTSecret = strings.Repeat("k", 32)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				check.NoError(t, err)
				return
			}
			assert.NotNil(t, err)
			check.True(t, strings.Contains(err.Error(), tt.want))
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Auth.JWTSecret = strings.Repeat("k", 32)
	cfg.Auth.APIKeys = []APIKey{{Name: "console", Hash: "$2a$10$hash", Role: "admin"}}
	cfg.Notify.TelegramToken = "tg"

	out := RedactedConfig(&cfg)
	check.Equal(t, "***", out.Postgres.Password)
	check.Equal(t, "***", out.Auth.JWTSecret)
	check.Equal(t, "***", out.Auth.APIKeys[0].Hash)
	check.Equal(t, "***", out.Notify.TelegramToken)
	check.Equal(t, "", out.Redis.Password)

	// the original is untouched
	check.Equal(t, "$2a$10$hash", cfg.Auth.APIKeys[0].Hash)
	check.Equal(t, "pg-secret", cfg.Postgres.Password)
}
