// Package config loads pgraf-cypher settings from .pgraf-cypher.yaml, the
// environment and .env files.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/DeusData/pgraf-cypher/internal/store"
	"github.com/DeusData/pgraf-cypher/internal/translate"
)

// AppFs is the filesystem config files, .env files and query files are read
// from.
var AppFs = afero.NewOsFs()

const (
	fileName  = ".pgraf-cypher"
	envPrefix = "PGRAF_CYPHER"
	appDir    = "pgraf-cypher"
)

// Config is the effective configuration.
type Config struct {
	Schema               string `mapstructure:"schema" yaml:"schema"`
	NodesTable           string `mapstructure:"nodes_table" yaml:"nodes_table"`
	EdgesTable           string `mapstructure:"edges_table" yaml:"edges_table"`
	PlaceholderStyle     string `mapstructure:"placeholder_style" yaml:"placeholder_style"`
	CaseInsensitiveMatch bool   `mapstructure:"case_insensitive_match" yaml:"case_insensitive_match"`
	MaxPathDepth         int    `mapstructure:"max_path_depth" yaml:"max_path_depth"`
	DefaultMaxHops       int    `mapstructure:"default_max_hops" yaml:"default_max_hops"`
	ValidateSQL          bool   `mapstructure:"validate_sql" yaml:"validate_sql"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch"`

	// File is the config file that was read, empty if none.
	File string `mapstructure:"-" yaml:"-"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url" yaml:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

type CacheConfig struct {
	Size      int           `mapstructure:"size" yaml:"size"`
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

func setDefaults(v *viper.Viper) {
	d := translate.DefaultConfig()
	v.SetDefault("schema", d.Schema)
	v.SetDefault("nodes_table", d.NodesTable)
	v.SetDefault("edges_table", d.EdgesTable)
	v.SetDefault("placeholder_style", string(d.Placeholders))
	v.SetDefault("case_insensitive_match", false)
	v.SetDefault("max_path_depth", d.MaxPathDepth)
	v.SetDefault("default_max_hops", d.DefaultMaxHops)
	v.SetDefault("validate_sql", true)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("batch.concurrency", 8)
}

// Loader locates and reads configuration. The zero value searches the
// working directory, $HOME and $HOME/.config/pgraf-cypher on AppFs.
type Loader struct {
	Fs   afero.Fs
	File string // explicit config file; must exist when set
	Dir  string // working directory, "." when empty
	Home string // home directory, resolved with go-homedir when empty
}

// Load reads the configuration. Precedence, highest first: environment
// (PGRAF_CYPHER_*, DATABASE_URL), .env.local, .env, config file, defaults.
func Load() (*Config, error) {
	return Loader{}.Load()
}

func (l Loader) Load() (*Config, error) {
	fs := l.Fs
	if fs == nil {
		fs = AppFs
	}
	dir := l.Dir
	if dir == "" {
		dir = "."
	}
	home := l.Home
	if home == "" {
		h, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("home dir: %w", err)
		}
		home = h
	}

	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.File != "" {
		v.SetConfigFile(l.File)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", appDir))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	dotenv, err := readDotenv(fs, dir)
	if err != nil {
		return nil, err
	}
	applyDotenv(v, dotenv)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(home, ".cache", appDir, "history.db")
	} else if expanded, err := homedir.Expand(cfg.History.Path); err == nil {
		cfg.History.Path = expanded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readDotenv merges .env and .env.local from dir; .env.local wins.
func readDotenv(fs afero.Fs, dir string) (map[string]string, error) {
	out := map[string]string{}
	for _, name := range []string{".env", ".env.local"} {
		f, err := fs.Open(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		vals, err := godotenv.Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		for k, val := range vals {
			out[k] = val
		}
	}
	return out, nil
}

// applyDotenv feeds .env values to keys the real environment leaves unset.
func applyDotenv(v *viper.Viper, dotenv map[string]string) {
	if _, ok := os.LookupEnv(envPrefix + "_DATABASE_URL"); !ok {
		if dsn, ok := os.LookupEnv("DATABASE_URL"); ok {
			v.Set("database.url", dsn)
		} else if dsn, ok := dotenv[envPrefix+"_DATABASE_URL"]; ok {
			v.Set("database.url", dsn)
		} else if dsn, ok := dotenv["DATABASE_URL"]; ok {
			v.Set("database.url", dsn)
		}
	}
	for k, val := range dotenv {
		if !strings.HasPrefix(k, envPrefix+"_") || k == envPrefix+"_DATABASE_URL" {
			continue
		}
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(k, envPrefix+"_"))
		if nested := dottedKey(v, key); nested != "" {
			v.Set(nested, val)
		}
	}
}

// dottedKey maps an env-style key (cache_redis_addr) to the registered
// viper key (cache.redis_addr).
func dottedKey(v *viper.Viper, envKey string) string {
	for _, k := range v.AllKeys() {
		if strings.ReplaceAll(k, ".", "_") == envKey {
			return k
		}
	}
	return ""
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	if _, err := translate.ParsePlaceholderStyle(c.PlaceholderStyle); err != nil {
		return fmt.Errorf("placeholder_style: %w", err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if c.MaxPathDepth < 1 {
		return fmt.Errorf("max_path_depth must be positive, got %d", c.MaxPathDepth)
	}
	if c.DefaultMaxHops < 1 {
		return fmt.Errorf("default_max_hops must be positive, got %d", c.DefaultMaxHops)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be positive, got %d", c.Batch.Concurrency)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size)
	}
	return nil
}

// Translator returns the translator settings.
func (c *Config) Translator() translate.Config {
	style, _ := translate.ParsePlaceholderStyle(c.PlaceholderStyle)
	return translate.Config{
		Schema:               c.Schema,
		NodesTable:           c.NodesTable,
		EdgesTable:           c.EdgesTable,
		Placeholders:         style,
		CaseInsensitiveMatch: c.CaseInsensitiveMatch,
		MaxPathDepth:         c.MaxPathDepth,
		DefaultMaxHops:       c.DefaultMaxHops,
	}
}

// Store returns the connection pool settings.
func (c *Config) Store() store.Options {
	return store.Options{
		Layout: store.Layout{
			Schema:     c.Schema,
			NodesTable: c.NodesTable,
			EdgesTable: c.EdgesTable,
		},
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// YAML renders the configuration with the database password redacted.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if u, err := url.Parse(out.Database.URL); err == nil && u.User != nil {
		out.Database.URL = u.Redacted()
	}
	return yaml.Marshal(&out)
}

// ReadQueryFile reads a Cypher query file from AppFs.
func ReadQueryFile(path string) (string, error) {
	b, err := afero.ReadFile(AppFs, path)
	if err != nil {
		return "", fmt.Errorf("read query file: %w", err)
	}
	return string(b), nil
}
