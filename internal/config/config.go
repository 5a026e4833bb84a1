// Package config loads the run configuration: scan root, backend selection
// and connection parameters. Values come from an optional
// executer-finder.yaml file, overridden by EXECUTER_FINDER_* environment
// variables (EXECUTER_FINDER_NEO4J_URI sets neo4j.uri).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names.
const (
	BackendSQLite    = "sqlite"
	BackendNeo4j     = "neo4j"
	BackendCouchbase = "couchbase"
	BackendNone      = "none"
)

// DefaultRoot is scanned when no root is configured.
const DefaultRoot = "/src"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EXECUTER_FINDER"

// Config is the explicit configuration passed to the pipeline.
type Config struct {
	Root     string `mapstructure:"root"`
	Workers  int    `mapstructure:"workers"`
	Retries  int    `mapstructure:"retries"`
	LogLevel string `mapstructure:"log_level"`
	// DisableSemantic skips semantic type resolution and uses only the
	// syntactic fallbacks.
	DisableSemantic bool `mapstructure:"disable_semantic"`
	// Watch re-runs the analysis in serve mode when indexed files change.
	Watch bool `mapstructure:"watch"`

	Graph     GraphConfig     `mapstructure:"graph"`
	Neo4j     Neo4jConfig     `mapstructure:"neo4j"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Couchbase CouchbaseConfig `mapstructure:"couchbase"`
}

type GraphConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type DocumentsConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type CouchbaseConfig struct {
	ConnectionString string        `mapstructure:"connection_string"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	Bucket           string        `mapstructure:"bucket"`
	Scope            string        `mapstructure:"scope"`
	Collection       string        `mapstructure:"collection"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", DefaultRoot)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("retries", 3)
	v.SetDefault("log_level", "info")
	v.SetDefault("disable_semantic", false)
	v.SetDefault("watch", false)
	v.SetDefault("graph.backend", BackendSQLite)
	v.SetDefault("graph.sqlite_path", "")
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")
	v.SetDefault("documents.backend", BackendSQLite)
	v.SetDefault("documents.sqlite_path", "")
	v.SetDefault("couchbase.connection_string", "couchbase://localhost")
	v.SetDefault("couchbase.username", "")
	v.SetDefault("couchbase.password", "")
	v.SetDefault("couchbase.bucket", "")
	v.SetDefault("couchbase.scope", "_default")
	v.SetDefault("couchbase.collection", "_default")
	v.SetDefault("couchbase.connect_timeout", 10*time.Second)
}

// Load reads executer-finder.yaml from the given directories (the working
// directory when none are given) and applies environment overrides. A
// missing file is not an error.
func Load(dirs ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("executer-finder")
	v.SetConfigType("yaml")
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		slog.Debug("config.file", "path", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend names and numeric limits.
func (c *Config) Validate() error {
	switch c.Graph.Backend {
	case BackendSQLite, BackendNeo4j, BackendNone:
	default:
		return fmt.Errorf("graph.backend: unknown backend %q", c.Graph.Backend)
	}
	switch c.Documents.Backend {
	case BackendSQLite, BackendCouchbase, BackendNone:
	default:
		return fmt.Errorf("documents.backend: unknown backend %q", c.Documents.Backend)
	}
	if c.Documents.Backend == BackendCouchbase && c.Couchbase.Bucket == "" {
		return errors.New("couchbase.bucket is required for the couchbase backend")
	}
	if c.Workers < 0 || c.Retries < 0 {
		return errors.New("workers and retries must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level: unknown level %q", s)
}
