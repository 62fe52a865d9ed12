package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

type Config struct {
	Env          string   `koanf:"env"`
	Addr         string   `koanf:"addr"`
	PublicURLRaw string   `koanf:"public_url"`
	PublicURL    *url.URL `koanf:"-"`

	// TrustedProxiesRaw is a comma separated list of IPs or CIDRs whose
	// X-Forwarded-For header is believed.
	TrustedProxiesRaw string         `koanf:"trusted_proxies"`
	TrustedProxies    []netip.Prefix `koanf:"-"`

	DB      DBConfig      `koanf:"db"`
	Redis   RedisConfig   `koanf:"redis"`
	Token   TokenConfig   `koanf:"token"`
	Reset   ResetConfig   `koanf:"reset"`
	Hash    HashConfig    `koanf:"hash"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Admin   AdminConfig   `koanf:"admin"`
}

type DBConfig struct {
	DSN         string        `koanf:"dsn"`
	AutoMigrate bool          `koanf:"auto_migrate"`
	ConnectWait time.Duration `koanf:"connect_wait"`
}

// RedisConfig enables the shared token denylist when Addr is set.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type TokenConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
	Issuer string        `koanf:"issuer"`

	// Ephemeral is set when no secret was configured outside prod and a
	// random one was generated. Tokens do not survive a restart.
	Ephemeral bool `koanf:"-"`
}

type ResetConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	Retention       time.Duration `koanf:"retention"`
	CleanupSchedule string        `koanf:"cleanup_schedule"`
}

type HashConfig struct {
	MemoryKiB   uint32 `koanf:"memory_kib"`
	Iterations  uint32 `koanf:"iterations"`
	Parallelism uint8  `koanf:"parallelism"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

type AdminConfig struct {
	BootstrapEmail    string `koanf:"bootstrap_email"`
	BootstrapUsername string `koanf:"bootstrap_username"`
	BootstrapPassword string `koanf:"bootstrap_password"`
}

func defaults() map[string]any {
	return map[string]any{
		"env":                    "dev",
		"addr":                   "127.0.0.1:8080",
		"db.auto_migrate":        false,
		"db.connect_wait":        "30s",
		"token.ttl":              "24h",
		"token.issuer":           "accountd",
		"reset.ttl":              "1h",
		"reset.retention":        "168h",
		"reset.cleanup_schedule": "0 0 * * * *",
		"hash.memory_kib":        64 * 1024,
		"hash.iterations":        3,
		"hash.parallelism":       2,
		"log.level":              "info",
		"metrics.enabled":        true,
	}
}

// envKeys maps APP_* variables to config keys. Later entries win, so the
// legacy names come first.
var envKeys = []struct{ env, key string }{
	{"APP_ENV", "env"},
	{"APP_ADDR", "addr"},
	{"APP_PUBLIC_URL", "public_url"},
	{"APP_TRUSTED_PROXIES", "trusted_proxies"},
	{"APP_DB_DSN", "db.dsn"},
	{"APP_DB_AUTO_MIGRATE", "db.auto_migrate"},
	{"APP_DB_CONNECT_WAIT", "db.connect_wait"},
	{"APP_REDIS_ADDR", "redis.addr"},
	{"APP_REDIS_PASSWORD", "redis.password"},
	{"APP_REDIS_DB", "redis.db"},
	{"APP_COOKIE_SECRET", "token.secret"},
	{"APP_TOKEN_SECRET", "token.secret"},
	{"APP_SESSION_TTL", "token.ttl"},
	{"APP_TOKEN_TTL", "token.ttl"},
	{"APP_TOKEN_ISSUER", "token.issuer"},
	{"APP_RESET_TTL", "reset.ttl"},
	{"APP_RESET_RETENTION", "reset.retention"},
	{"APP_RESET_CLEANUP_SCHEDULE", "reset.cleanup_schedule"},
	{"APP_HASH_MEMORY_KIB", "hash.memory_kib"},
	{"APP_HASH_ITERATIONS", "hash.iterations"},
	{"APP_HASH_PARALLELISM", "hash.parallelism"},
	{"APP_LOG_LEVEL", "log.level"},
	{"APP_LOG_FORMAT", "log.format"},
	{"APP_METRICS_ENABLED", "metrics.enabled"},
	{"APP_ADMIN_BOOTSTRAP_EMAIL", "admin.bootstrap_email"},
	{"APP_ADMIN_BOOTSTRAP_USERNAME", "admin.bootstrap_username"},
	{"APP_ADMIN_BOOTSTRAP_PASSWORD", "admin.bootstrap_password"},
}

// FlagKeys maps command line flag names to config keys.
var FlagKeys = map[string]string{
	"env":        "env",
	"addr":       "addr",
	"public-url": "public_url",
	"dsn":        "db.dsn",
	"migrate":    "db.auto_migrate",
	"redis-addr": "redis.addr",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// Load layers defaults, the optional YAML file at path, APP_* environment
// variables and changed flags, in that order.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	return load(path, os.Getenv, flags)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	return load("", getenv, nil)
}

func load(path string, getenv func(string) string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	env := map[string]any{}
	for _, e := range envKeys {
		if v := strings.TrimSpace(getenv(e.env)); v != "" {
			env[e.key] = v
		}
	}
	if err := k.Load(confmap.Provider(env, "."), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	switch c.Env {
	case "dev", "prod", "test":
	default:
		return errors.New("APP_ENV: must be one of dev, test, prod")
	}

	if c.PublicURLRaw != "" {
		parsed, err := url.Parse(c.PublicURLRaw)
		if err != nil {
			return fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		c.PublicURL = parsed
	}

	proxies, err := parseTrustedProxies(c.TrustedProxiesRaw)
	if err != nil {
		return fmt.Errorf("APP_TRUSTED_PROXIES: %w", err)
	}
	c.TrustedProxies = proxies

	if c.Token.TTL <= 0 {
		return errors.New("APP_TOKEN_TTL: must be > 0")
	}
	if c.Reset.TTL <= 0 {
		return errors.New("APP_RESET_TTL: must be > 0")
	}
	if c.Reset.Retention < 0 {
		return errors.New("APP_RESET_RETENTION: must be >= 0")
	}
	if c.Hash.Iterations == 0 || c.Hash.Parallelism == 0 {
		return errors.New("APP_HASH_ITERATIONS, APP_HASH_PARALLELISM: must be > 0")
	}
	if c.Hash.MemoryKiB < 8*uint32(c.Hash.Parallelism) {
		return errors.New("APP_HASH_MEMORY_KIB: must be at least 8 * parallelism")
	}

	if c.Log.Format == "" {
		if c.IsProd() {
			c.Log.Format = "json"
		} else {
			c.Log.Format = "text"
		}
	}

	c.Admin.BootstrapEmail = strings.TrimSpace(strings.ToLower(c.Admin.BootstrapEmail))
	c.Admin.BootstrapUsername = strings.TrimSpace(c.Admin.BootstrapUsername)
	if c.Admin.BootstrapPassword != "" {
		if c.Admin.BootstrapEmail == "" {
			return errors.New("APP_ADMIN_BOOTSTRAP_EMAIL: required when APP_ADMIN_BOOTSTRAP_PASSWORD is set")
		}
		if len(c.Admin.BootstrapPassword) < 12 {
			return errors.New("APP_ADMIN_BOOTSTRAP_PASSWORD: must be at least 12 characters")
		}
		if c.Admin.BootstrapUsername == "" {
			c.Admin.BootstrapUsername = "admin"
		}
	}

	if c.IsProd() {
		if c.PublicURL == nil {
			return errors.New("APP_PUBLIC_URL: required in prod")
		}
		if c.DB.DSN == "" {
			return errors.New("APP_DB_DSN: required in prod")
		}
		if len(c.Token.Secret) < 32 {
			return errors.New("APP_TOKEN_SECRET: must be at least 32 bytes in prod")
		}
	}
	if c.Token.Secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generate token secret: %w", err)
		}
		c.Token.Secret = hex.EncodeToString(buf)
		c.Token.Ephemeral = true
	}

	return nil
}

func parseTrustedProxies(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}
