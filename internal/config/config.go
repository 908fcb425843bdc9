// Package config loads the service configuration from a YAML file
// with CONTEXTD_* environment overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// Storage backends.
const (
	BackendSQLite  = "sqlite"
	BackendChromem = "chromem"
	BackendMemory  = "memory"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// StorageConfig selects and parameterizes the document store.
type StorageConfig struct {
	// Backend is sqlite, chromem or memory.
	Backend string `yaml:"backend" koanf:"backend"`
}

// EmbeddingConfig parameterizes the embedding service.
type EmbeddingConfig struct {
	Provider   string  `yaml:"provider" koanf:"provider"`
	Model      string  `yaml:"model" koanf:"model"`
	BaseURL    string  `yaml:"base_url" koanf:"base_url"`
	Dimensions int     `yaml:"dimensions" koanf:"dimensions"`
	// RequestsPerSecond caps embedding calls; zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" koanf:"requests_per_second"`
}

// RetrievalConfig tunes query planning and ranking.
type RetrievalConfig struct {
	FanoutFactor    int           `yaml:"fanout_factor" koanf:"fanout_factor"`
	MaxPerSource    int           `yaml:"max_per_source" koanf:"max_per_source"`
	SubQueryTimeout time.Duration `yaml:"subquery_timeout" koanf:"subquery_timeout"`
	RankDecay       float64       `yaml:"rank_decay" koanf:"rank_decay"`
}

// IngestionConfig tunes the indexing pipeline and names the fixture
// data directory the source adapters read from.
type IngestionConfig struct {
	ChunkSize  int    `yaml:"chunk_size" koanf:"chunk_size"`
	Overlap    int    `yaml:"overlap" koanf:"overlap"`
	Workers    int    `yaml:"workers" koanf:"workers"`
	FixtureDir string `yaml:"fixture_dir" koanf:"fixture_dir"`
	// Watch re-syncs a source when its fixture files change.
	Watch bool `yaml:"watch" koanf:"watch"`
}

// AuthConfig parameterizes principals and token signing.
type AuthConfig struct {
	PrincipalsFile string        `yaml:"principals_file" koanf:"principals_file"`
	Secret         string        `yaml:"secret" koanf:"secret"`
	TokenTTL       time.Duration `yaml:"token_ttl" koanf:"token_ttl"`
}

// HTTPConfig parameterizes the HTTP surface.
type HTTPConfig struct {
	Addr           string   `yaml:"addr" koanf:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}

// Config is the full service configuration.
type Config struct {
	// DataDir holds the SQLite database and other local state.
	DataDir   string          `yaml:"data_dir" koanf:"data_dir"`
	Verbose   bool            `yaml:"verbose" koanf:"verbose"`
	Storage   StorageConfig   `yaml:"storage" koanf:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding" koanf:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Ingestion IngestionConfig `yaml:"ingestion" koanf:"ingestion"`
	Auth      AuthConfig      `yaml:"auth" koanf:"auth"`
	HTTP      HTTPConfig      `yaml:"http" koanf:"http"`
}

// DefaultConfig returns the configuration used when no file and no
// overrides are present.
func DefaultConfig() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Storage: StorageConfig{
			Backend: BackendSQLite,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		Retrieval: RetrievalConfig{
			FanoutFactor:    3,
			MaxPerSource:    100,
			SubQueryTimeout: 5 * time.Second,
			RankDecay:       0.1,
		},
		Ingestion: IngestionConfig{
			ChunkSize:  1000,
			Overlap:    100,
			Workers:    4,
			FixtureDir: "./fixtures",
		},
		Auth: AuthConfig{
			TokenTTL: 30 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr:           ":8600",
			AllowedOrigins: []string{"*"},
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".contextd"
	}
	return filepath.Join(home, ".contextd")
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. Nested keys use a double
// underscore: CONTEXTD_STORAGE__BACKEND sets storage.backend.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	// An explicit path must exist; running with silent defaults would
	// mask a typo in --config.
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("CONTEXTD_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "CONTEXTD_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validBackends is the set of recognized storage backends.
var validBackends = map[string]bool{
	BackendSQLite:  true,
	BackendChromem: true,
	BackendMemory:  true,
}

// validProviders is the set of recognized embedding providers.
var validProviders = map[string]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("invalid storage backend %q: must be one of sqlite, chromem, memory", c.Storage.Backend)
	}
	if !validProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding provider %q: must be one of openai, ollama", c.Embedding.Provider)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("embedding requests_per_second must be non-negative")
	}
	if c.Retrieval.FanoutFactor < 1 {
		return fmt.Errorf("retrieval fanout_factor must be positive")
	}
	if c.Retrieval.MaxPerSource < 1 {
		return fmt.Errorf("retrieval max_per_source must be positive")
	}
	if c.Retrieval.SubQueryTimeout <= 0 {
		return fmt.Errorf("retrieval subquery_timeout must be positive")
	}
	if c.Retrieval.RankDecay < 0 {
		return fmt.Errorf("retrieval rank_decay must be non-negative")
	}
	if c.Ingestion.ChunkSize < 1 {
		return fmt.Errorf("ingestion chunk_size must be positive")
	}
	if c.Ingestion.Overlap < 0 {
		return fmt.Errorf("ingestion overlap must be non-negative")
	}
	if c.Ingestion.Workers < 1 {
		return fmt.Errorf("ingestion workers must be positive")
	}
	return nil
}

// FixtureDirFor returns the fixture directory for one source.
func (c *Config) FixtureDirFor(source domain.SourceID) string {
	return filepath.Join(c.Ingestion.FixtureDir, string(source))
}
