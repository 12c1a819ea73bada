// Package config layers defaults, a TOML file, ini/.env files and HIT_*
// environment variables into one Config.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"hit/internal/auth"
	"hit/internal/llm"
	"hit/internal/photostore"
	"hit/internal/store"
)

const defaultPort = 8080

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
	Photos  PhotosConfig  `toml:"photos"`
	LLM     LLMConfig     `toml:"llm"`
	Auth    AuthConfig    `toml:"auth"`
	Content ContentConfig `toml:"content"`
}

type ServerConfig struct {
	Host                     string `toml:"host"`
	Port                     int    `toml:"port"`
	ReadHeaderTimeoutSeconds int    `toml:"read-header-timeout"`
}

type StoreConfig struct {
	Engine string `toml:"engine"`
	// File path for json/sqlite/bolt, DSN for postgres.
	Location string `toml:"location"`
}

type PhotosConfig struct {
	Backend         string `toml:"backend"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access-key-id"`
	SecretAccessKey string `toml:"secret-access-key"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	UseSSL          bool   `toml:"use-ssl"`
	PublicBaseURL   string `toml:"public-base-url"`
}

type LLMConfig struct {
	APIKey            string  `toml:"api-key"`
	BaseURL           string  `toml:"base-url"`
	TextModel         string  `toml:"text-model"`
	VisionModel       string  `toml:"vision-model"`
	SpeechModel       string  `toml:"speech-model"`
	Voice             string  `toml:"voice"`
	TimeoutSeconds    int     `toml:"timeout"`
	RequestsPerSecond float64 `toml:"requests-per-second"`
	// MaxRetries is how often a rate-limited call is retried. 0 disables
	// retrying; the default is llm.DefaultMaxRetries.
	MaxRetries        int     `toml:"max-retries"`
	RetryDelaySeconds float64 `toml:"retry-delay"`
}

type AuthConfig struct {
	Secret        string `toml:"secret"`
	TokenTTLHours int    `toml:"token-ttl-hours"`
}

type ContentConfig struct {
	CatalogFile string `toml:"catalog-file"`
	Watch       bool   `toml:"watch"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: defaultPort, ReadHeaderTimeoutSeconds: 5},
		Store:  StoreConfig{Engine: store.EngineSQLite},
		Photos: PhotosConfig{Backend: photostore.BackendInline},
		LLM: LLMConfig{
			TimeoutSeconds:    30,
			MaxRetries:        llm.DefaultMaxRetries,
			RetryDelaySeconds: llm.DefaultRetryDelay.Seconds(),
		},
		Auth: AuthConfig{TokenTTLHours: 24 * 30},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/hit/config.toml.
func DefaultPath() string {
	return filepath.Join(xdgConfigHome(), "hit", "config.toml")
}

func xdgConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// Load builds the config: defaults, then the TOML file at path (missing is
// fine), then hit.ini and .env in the working directory, then HIT_*
// variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := decodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	for _, envFile := range []string{"hit.ini", ".env"} {
		if err := LoadEnvFile(envFile); err != nil {
			return Config{}, errors.Wrapf(err, "load %s", envFile)
		}
	}
	ApplyEnv(&cfg, os.LookupEnv)
	cfg.normalize()
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "stat config")
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return errors.Wrapf(err, "decode config %s", path)
	}
	return nil
}

func (c *Config) normalize() {
	c.Store.Engine = strings.ToLower(strings.TrimSpace(c.Store.Engine))
	if c.Store.Engine == "" {
		c.Store.Engine = store.EngineSQLite
	}
	if strings.TrimSpace(c.Store.Location) == "" {
		c.Store.Location = store.DefaultLocation(c.Store.Engine)
	}
	if c.Server.Port <= 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.ReadHeaderTimeoutSeconds <= 0 {
		c.Server.ReadHeaderTimeoutSeconds = 5
	}
}

func (c Config) ListenAddr() string {
	port := c.Server.Port
	if port <= 0 {
		port = defaultPort
	}
	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Sprintf(":%d", port)
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (c Config) ReadHeaderTimeout() time.Duration {
	return time.Duration(c.Server.ReadHeaderTimeoutSeconds) * time.Second
}

func (c LLMConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c LLMConfig) ClientConfig() llm.Config {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = -1
	}
	return llm.Config{
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey,
		TextModel:         c.TextModel,
		VisionModel:       c.VisionModel,
		SpeechModel:       c.SpeechModel,
		Voice:             c.Voice,
		Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.RequestsPerSecond,
		Retry: llm.RetryPolicy{
			MaxRetries:   maxRetries,
			DefaultDelay: time.Duration(c.RetryDelaySeconds * float64(time.Second)),
		},
	}
}

func (c PhotosConfig) StoreConfig() photostore.Config {
	return photostore.Config{
		Backend:         c.Backend,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Bucket:          c.Bucket,
		Region:          c.Region,
		UseSSL:          c.UseSSL,
		PublicBaseURL:   c.PublicBaseURL,
	}
}

func (c AuthConfig) ServiceConfig() auth.Config {
	return auth.Config{
		Secret:   c.Secret,
		TokenTTL: time.Duration(c.TokenTTLHours) * time.Hour,
	}
}

// SafeKeyMeta describes a secret for logs without revealing it.
func SafeKeyMeta(key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "empty=true"
	}
	lower := strings.ToLower(trimmed)
	hasQuotes := (strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"")) ||
		(strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'"))
	return fmt.Sprintf(
		"empty=false,len=%d,has_bearer_prefix=%t,has_quotes=%t,has_whitespace=%t",
		len(trimmed),
		strings.HasPrefix(lower, "bearer "),
		hasQuotes,
		strings.Contains(trimmed, " "),
	)
}
