// Package cli implements the contextd command line interface and owns
// the wiring of stores, adapters and services from configuration.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessellate-ai/contextd/internal/adapters/driven/authz"
	"github.com/tessellate-ai/contextd/internal/adapters/driven/embedding"
	"github.com/tessellate-ai/contextd/internal/adapters/driven/embedding/ollama"
	"github.com/tessellate-ai/contextd/internal/adapters/driven/embedding/openai"
	"github.com/tessellate-ai/contextd/internal/adapters/driven/storage/chromem"
	"github.com/tessellate-ai/contextd/internal/adapters/driven/storage/memory"
	"github.com/tessellate-ai/contextd/internal/adapters/driven/storage/sqlite"
	"github.com/tessellate-ai/contextd/internal/adapters/sources/fixture"
	"github.com/tessellate-ai/contextd/internal/chunker"
	"github.com/tessellate-ai/contextd/internal/config"
	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
	"github.com/tessellate-ai/contextd/internal/core/ports/driving"
	"github.com/tessellate-ai/contextd/internal/core/services"
	"github.com/tessellate-ai/contextd/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "0.1.0"

var (
	cfgFile string
	verbose bool

	cfg *config.Config

	docStore        driven.DocumentStore
	checkpointStore driven.CheckpointStore
	embedService    driven.EmbeddingService
	contextService  driving.ContextService
	ingestService   driving.Ingestor
	fixtureAdapters []*fixture.Adapter
	authProvider    *authz.Provider
	tokenIssuer     *authz.TokenIssuer
)

var rootCmd = &cobra.Command{
	Use:   "contextd",
	Short: "Context aggregation and retrieval engine",
	Long: `contextd indexes content from zoom, gmail, notion and salesforce and
serves ranked, deduplicated context for a query across all of them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Verbose {
			logger.SetVerbose(true)
		}
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the CLI.
func Execute() {
	defer closeServices()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initServices builds the full service graph from the loaded config.
// Commands that need it call this once in their RunE.
func initServices() error {
	if contextService != nil {
		return nil
	}

	if err := buildStore(); err != nil {
		return err
	}
	buildEmbedder()
	if err := buildAdapters(); err != nil {
		return err
	}
	if err := buildAuth(); err != nil {
		return err
	}

	planner := services.NewPlanner(cfg.Retrieval.FanoutFactor, cfg.Retrieval.MaxPerSource)
	executor := services.NewExecutor(docStore, cfg.Retrieval.SubQueryTimeout)
	ranker := services.NewRanker(cfg.Retrieval.RankDecay)
	contextService = services.NewContextEngine(planner, executor, ranker, embedService)

	splitter := chunker.New(
		chunker.WithChunkSize(cfg.Ingestion.ChunkSize),
		chunker.WithOverlap(cfg.Ingestion.Overlap),
	)
	adapters := make([]driven.SourceAdapter, len(fixtureAdapters))
	for i, a := range fixtureAdapters {
		adapters[i] = a
	}
	ingestService = services.NewPipeline(adapters, docStore, checkpointStore, embedService, splitter, cfg.Ingestion.Workers)

	return nil
}

func buildStore() error {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		docStore = store
		checkpointStore = store
	case config.BackendChromem:
		docStore = chromem.NewStore()
		checkpointStore = memory.NewCheckpointStore()
	case config.BackendMemory:
		docStore = memory.NewDocStore()
		checkpointStore = memory.NewCheckpointStore()
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	logger.Debug("Storage backend: %s", cfg.Storage.Backend)
	return nil
}

// buildEmbedder constructs the embedding service. A missing OpenAI key
// is not fatal: the engine runs in recency-only mode without vectors.
func buildEmbedder() {
	var inner driven.EmbeddingService

	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Warn("OPENAI_API_KEY not set; running without embeddings (recency ordering only)")
			return
		}
		service, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     apiKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			logger.Warn("OpenAI embedder unavailable: %v; running without embeddings", err)
			return
		}
		inner = service
	case config.ProviderOllama:
		inner = ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	}

	if inner != nil && cfg.Embedding.RequestsPerSecond > 0 {
		embedService = embedding.NewRateLimited(inner, cfg.Embedding.RequestsPerSecond)
		return
	}
	embedService = inner
}

// buildAdapters creates a fixture adapter per source whose data
// directory exists. Sources without data simply are not ingestible.
func buildAdapters() error {
	for _, source := range domain.AllSources() {
		dir := cfg.FixtureDirFor(source)
		adapter, err := fixture.NewAdapter(source, dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Debug("No fixture dir for %s (%s), skipping", source, dir)
				continue
			}
			return err
		}
		fixtureAdapters = append(fixtureAdapters, adapter)
	}
	return nil
}

// buildAuth loads principals and the token issuer when configured.
// Both stay nil otherwise; serve refuses to start without them.
func buildAuth() error {
	if cfg.Auth.PrincipalsFile != "" {
		provider, err := authz.NewProvider(cfg.Auth.PrincipalsFile)
		if err != nil {
			return fmt.Errorf("loading principals: %w", err)
		}
		authProvider = provider
	}
	if cfg.Auth.Secret != "" {
		issuer, err := authz.NewTokenIssuer([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
		tokenIssuer = issuer
	}
	return nil
}

func closeServices() {
	if embedService != nil {
		embedService.Close() //nolint:errcheck
	}
	if docStore != nil {
		docStore.Close() //nolint:errcheck
	}
}
