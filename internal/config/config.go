// Package config defines the top-level configuration for the auction server
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUCTIOND_* environment variables.
type Config struct {
	Auction  AuctionConfig  `toml:"auction"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// AuctionConfig holds the engine rules and pacing.
type AuctionConfig struct {
	SetSize          int      `toml:"set_size"`
	RTMWindow        duration `toml:"rtm_window"`
	AutoAdvance      bool     `toml:"auto_advance"`
	Seed             uint64   `toml:"seed"`
	BidHistoryWindow int      `toml:"bid_history_window"`
	RTMEnabled       bool     `toml:"rtm_enabled"`
	DefaultPurse     string   `toml:"default_purse"`
	DefaultRTMCards  int      `toml:"default_rtm_cards"`
	MaxSquad         int      `toml:"max_squad"`
	MaxOverseas      int      `toml:"max_overseas"`
	// SeedFile is the JSON import used in standalone mode.
	SeedFile string `toml:"seed_file"`
	// ArchiveOnComplete uploads the session to S3 when the auction ends.
	ArchiveOnComplete bool `toml:"archive_on_complete"`
}

// Purse parses DefaultPurse. Validate has already rejected bad values.
func (a AuctionConfig) Purse() decimal.Decimal {
	d, err := decimal.NewFromString(a.DefaultPurse)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	// SeedFromStore loads teams and players from the seed tables at startup.
	SeedFromStore bool `toml:"seed_from_store"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LeaseTTL   duration `toml:"lease_ttl"`
	StreamLen  int64    `toml:"stream_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "30s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// BidRateLimit is the number of bids a team may submit per BidRateWindow.
	BidRateLimit  int      `toml:"bid_rate_limit"`
	BidRateWindow duration `toml:"bid_rate_window"`
}

// AuthConfig configures how callers are identified.
type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	JWTIssuer string   `toml:"jwt_issuer"`
	APIKeys   []APIKey `toml:"api_keys"`
}

// APIKey is a static service credential. Hash is a bcrypt hash of the key.
type APIKey struct {
	Name   string `toml:"name"`
	Hash   string `toml:"hash"`
	Role   string `toml:"role"`
	TeamID string `toml:"team_id"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Auction: AuctionConfig{
			SetSize:           10,
			RTMWindow:         duration{30 * time.Second},
			AutoAdvance:       true,
			BidHistoryWindow:  50,
			RTMEnabled:        true,
			DefaultPurse:      "100",
			DefaultRTMCards:   2,
			MaxSquad:          25,
			MaxOverseas:       8,
			SeedFile:          "seed.json",
			ArchiveOnComplete: true,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "auctiond",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
			SeedFromStore: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			LeaseTTL:   duration{15 * time.Second},
			StreamLen:  10_000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "auctiond-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:          8000,
			CORSOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			BidRateLimit:  10,
			BidRateWindow: duration{time.Second},
		},
		Auth: AuthConfig{
			JWTIssuer: "auction-identity",
		},
		Notify: NotifyConfig{
			Events: []string{"lot_sold", "rtm_closed", "auction_completed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":       true,
	"standalone": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validRoles = map[string]bool{
	"admin":      true,
	"auctioneer": true,
	"team":       true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, standalone)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Auction
	a := c.Auction
	if a.SetSize < 1 {
		errs = append(errs, "auction: set_size must be >= 1")
	}
	if a.RTMWindow.Duration <= 0 {
		errs = append(errs, "auction: rtm_window must be > 0")
	}
	if a.BidHistoryWindow < 1 {
		errs = append(errs, "auction: bid_history_window must be >= 1")
	}
	if p, err := decimal.NewFromString(a.DefaultPurse); err != nil || !p.IsPositive() {
		errs = append(errs, fmt.Sprintf("auction: default_purse must be a positive amount, got %q", a.DefaultPurse))
	}
	if a.DefaultRTMCards < 0 {
		errs = append(errs, "auction: default_rtm_cards must be >= 0")
	}
	if a.MaxSquad < 1 {
		errs = append(errs, "auction: max_squad must be >= 1")
	}
	if a.MaxOverseas < 0 || a.MaxOverseas > a.MaxSquad {
		errs = append(errs, "auction: max_overseas must be between 0 and max_squad")
	}
	if c.Mode == "standalone" && a.SeedFile == "" {
		errs = append(errs, "auction: seed_file is required in standalone mode")
	}

	if c.Mode == "full" {
		// Postgres
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}

		// Redis
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LeaseTTL.Duration < time.Second {
			errs = append(errs, "redis: lease_ttl must be at least 1s")
		}

		// S3
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.BidRateLimit < 0 {
		errs = append(errs, "server: bid_rate_limit must be >= 0")
	}

	// Auth
	if c.Auth.JWTSecret == "" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, "auth: set jwt_secret or at least one api_keys entry")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, "auth: jwt_secret must be at least 32 bytes")
	}
	for i, k := range c.Auth.APIKeys {
		if k.Hash == "" {
			errs = append(errs, fmt.Sprintf("auth: api_keys[%d] (%s): hash must not be empty", i, k.Name))
		}
		if !validRoles[k.Role] {
			errs = append(errs, fmt.Sprintf("auth: api_keys[%d] (%s): unknown role %q", i, k.Name, k.Role))
		}
		if k.Role == "team" && k.TeamID == "" {
			errs = append(errs, fmt.Sprintf("auth: api_keys[%d] (%s): team_id is required for team keys", i, k.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
