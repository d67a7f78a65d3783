// Package cli wires the registry service behind a cobra command tree.
package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"component-registry/config"
	"component-registry/contentstore"
	"component-registry/contentstore/fsstore"
	"component-registry/contentstore/memorystore"
	"component-registry/contentstore/s3store"
	"component-registry/embedding"
	"component-registry/embedding/openai"
	"component-registry/embedding/static"
	"component-registry/orm"
	"component-registry/registry"
	"component-registry/vector"
	"component-registry/vector/memoryindex"
	"component-registry/vector/pinecone"
)

var (
	configFlag string

	service *registry.Service
)

// NewRootCmd creates the root command for the registry CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "component-registry",
		Short:         "Versioned component registry",
		Long:          `component-registry stores versioned UI components with draft/publish lifecycle, semantic search and derived-index maintenance.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeService()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (env: REGISTRY_CONFIG)")

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newRefsCmd())
	rootCmd.AddCommand(newVersionsCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newReindexCmd())
	rootCmd.AddCommand(newReindexDepsCmd())
	rootCmd.AddCommand(newCleanupDraftsCmd())

	return rootCmd
}

func initializeService() error {
	configFile := configFlag
	if configFile == "" {
		configFile = os.Getenv("REGISTRY_CONFIG")
	}
	if err := config.Load(configFile); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	blob, err := initializeBlobStore()
	if err != nil {
		return err
	}

	db, err := orm.Init(config.Cfg)
	if err != nil {
		return err
	}

	service = registry.New(
		contentstore.New(blob),
		db,
		initializeVectorIndex(context.Background()),
		initializeEmbedder(),
	)

	return nil
}

func initializeBlobStore() (contentstore.Blob, error) {
	switch config.Cfg.Persistence.Type {
	case "filesystem":
		return fsstore.New(fsstore.DefaultStorageDir(config.Cfg.Persistence.StorageDir))
	case "s3":
		return s3store.New()
	case "memory":
		return memorystore.New(), nil
	default:
		log.Warn().Msgf("unknown persistence type '%s', defaulting to filesystem", config.Cfg.Persistence.Type)

		return fsstore.New(fsstore.DefaultStorageDir(config.Cfg.Persistence.StorageDir))
	}
}

func initializeVectorIndex(ctx context.Context) vector.Index {
	if !config.Cfg.Vector.Enabled {
		log.Info().Msg("vector search disabled, using in-memory index")

		return memoryindex.New()
	}

	client, err := pinecone.New(pinecone.Config{
		APIKey:  config.Cfg.Vector.APIKey,
		BaseURL: config.Cfg.Vector.BaseURL,
	})
	if err != nil {
		log.Warn().Err(err).Msg("pinecone unavailable, falling back to in-memory index")

		return memoryindex.New()
	}
	index, err := pinecone.NewIndexStore(ctx, client, config.Cfg.Vector.Index, config.Cfg.Vector.Namespace)
	if err != nil {
		log.Warn().Err(err).Msg("pinecone index unavailable, falling back to in-memory index")

		return memoryindex.New()
	}

	return index
}

func initializeEmbedder() embedding.Embedder {
	if config.Cfg.Embedding.APIKey == "" {
		log.Info().Msg("no embedding API key configured, using static embedder")

		return static.New(0)
	}

	embedder, err := openai.New(openai.Config{
		APIKey:  config.Cfg.Embedding.APIKey,
		Model:   config.Cfg.Embedding.Model,
		BaseURL: config.Cfg.Embedding.BaseURL,
	})
	if err != nil {
		log.Warn().Err(err).Msg("OpenAI embedder unavailable, using static embedder")

		return static.New(0)
	}

	return embedder
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
