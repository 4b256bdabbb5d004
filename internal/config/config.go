package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. NNOITRA_DATABASE_DSN.
const EnvPrefix = "nnoitra"

// Config holds everything the service needs at construction time.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Session   SessionConfig   `mapstructure:"session"`
	History   HistoryConfig   `mapstructure:"history"`
	FS        FSConfig        `mapstructure:"fs"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// TrustedProxies lists the CIDRs (or single IPs) whose X-Forwarded-For
	// header is believed. Empty means the TCP peer address is the client.
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	TLS             TLSConfig     `mapstructure:"tls"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type TLSConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	CertDir string   `mapstructure:"cert_dir"`
	// Hosts are extra DNS names or IPs for a generated certificate
	Hosts   []string `mapstructure:"hosts"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepOnLogin  bool          `mapstructure:"sweep_on_login"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

type HistoryConfig struct {
	DefaultSize int `mapstructure:"default_size"`
}

type FSConfig struct {
	Root         string `mapstructure:"root"`
	PublicPrefix string `mapstructure:"public_prefix"`
	RequireAuth  bool   `mapstructure:"require_auth"`
}

type RateLimitConfig struct {
	LoginAttempts int           `mapstructure:"login_attempts"`
	Window        time.Duration `mapstructure:"window"`
	Block         time.Duration `mapstructure:"block"`
}

type AuditConfig struct {
	// Retention is how long audit rows are kept. Zero keeps them forever.
	Retention time.Duration `mapstructure:"retention"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Defaults returns the default value for every known key.
func Defaults() map[string]any {
	return map[string]any{
		"server.address":           ":8080",
		"server.cors_origins":      []string{"http://localhost:3000"},
		"server.tls.enabled":       false,
		"server.tls.cert_dir":      "./data/certs",
		"server.tls.hosts":         []string{},
		"server.trusted_proxies":   []string{},
		"server.read_timeout":      "15s",
		"server.write_timeout":     "15s",
		"server.shutdown_timeout":  "10s",
		"database.driver":          "sqlite",
		"database.dsn":             "./data/users.db",
		"database.max_open_conns":  25,
		"session.ttl":              "168h",
		"session.sweep_on_login":   true,
		"session.sweep_schedule":   "@every 1h",
		"history.default_size":     1000,
		"fs.root":                  "./fs",
		"fs.public_prefix":         "/fs",
		"fs.require_auth":          false,
		"ratelimit.login_attempts": 5,
		"ratelimit.window":         "15m",
		"ratelimit.block":          "15m",
		"audit.retention":          "2160h",
		"log.level":                "info",
		"log.format":               "json",
	}
}

// FlagBindings maps cobra flag names to config keys.
var FlagBindings = map[string]string{
	"address":   "server.address",
	"db-driver": "database.driver",
	"db-dsn":    "database.dsn",
	"fs-root":   "fs.root",
	"log-level": "log.level",
}

// Load resolves the configuration from defaults, an optional file at path,
// NNOITRA_* environment variables and flags, in increasing precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagBindings {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: must not be empty"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl: must be positive"))
	}
	if c.History.DefaultSize <= 0 {
		errs = append(errs, errors.New("history.default_size: must be positive"))
	}
	if c.RateLimit.LoginAttempts <= 0 {
		errs = append(errs, errors.New("ratelimit.login_attempts: must be positive"))
	}
	if c.Audit.Retention < 0 {
		errs = append(errs, errors.New("audit.retention: must not be negative"))
	}
	if _, err := c.Server.TrustedNets(); err != nil {
		errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
	}
	if c.FS.PublicPrefix != "" && !strings.HasPrefix(c.FS.PublicPrefix, "/") {
		errs = append(errs, errors.New("fs.public_prefix: must start with /"))
	}

	return errors.Join(errs...)
}

// TrustedNets parses TrustedProxies. A bare IP is taken as a single host.
func (s ServerConfig) TrustedNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid address %q", raw)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q", raw)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
