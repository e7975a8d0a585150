package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"crateprov/internal/augment"
	"crateprov/internal/capture"
	"crateprov/internal/config"
	"crateprov/internal/crate"
	"crateprov/internal/logging"
	"crateprov/internal/provenance"
	"crateprov/internal/storage"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "crateprov",
		Short:         "Record computational provenance into RO-Crate metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
	crateRoot  string
	backend    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&crateRoot, "crate", "c", "", "Crate root directory (overrides crate.root)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Metadata backend: json or sqlite (overrides crate.backend)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(lineageCmd)
	rootCmd.AddCommand(expandCmd)
}

// setup loads the configuration, applies flag overrides and returns a
// context carrying the configured logger.
func setup(cmd *cobra.Command) (context.Context, *config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if crateRoot != "" {
		cfg.Crate.Root = crateRoot
	}
	if backend != "" {
		cfg.Crate.Backend = backend
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	return logging.WithLogger(cmd.Context(), logger), cfg, nil
}

// initStore opens the active crate with the configured backend, creating a
// placeholder crate when none exists.
func initStore(cfg *config.Config, opts crate.InitOptions) (crate.Store, func(), error) {
	root, err := filepath.Abs(cfg.Crate.Root)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Crate.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, nil, err
		}
		store, err := storage.NewSQLiteStore(filepath.Join(root, storage.DefaultDBName), root)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return store, func() { store.Close() }, nil
	case config.BackendJSON, "":
		store, err := crate.Init(root, opts)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend: %s", cfg.Crate.Backend)
	}
}

// initTracker wires the store, the augmenter and the reference crates.
func initTracker(ctx context.Context, cfg *config.Config, store crate.Store) (*provenance.Tracker, error) {
	sampler := augment.DefaultSampler()
	sampler.MaxRows = cfg.AI.MaxSampleRows
	sampler.MaxImages = cfg.AI.MaxImages

	aug, degraded, err := augment.New(ctx, augment.Options{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		BaseURL:  cfg.AI.BaseURL,
		Sampler:  sampler,
	})
	if err != nil {
		return nil, err
	}
	if degraded {
		logging.FromContext(ctx).Warn("AI API key not configured, using fallback descriptions", "provider", cfg.AI.Provider)
	}

	return provenance.NewTracker(ctx, store, provenance.Options{
		Author:          cfg.Crate.Author,
		Keywords:        cfg.Crate.Keywords,
		ReferenceCrates: cfg.Crate.ReferenceCrates,
		Capture:         captureConfig(cfg),
		Augmenter:       aug,
		AugmentTimeout:  cfg.AI.Timeout,
	})
}

func captureConfig(cfg *config.Config) capture.Config {
	return capture.Config{ExcludedPatterns: cfg.Capture.ExcludedPatterns}
}

var (
	initName        string
	initDescription string
	initAuthors     []string
	initKeywords    []string
	initStartClean  bool
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a crate, or clear an existing one with --start-clean",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cfg.Crate.Root = args[0]
		}
		authors := initAuthors
		if len(authors) == 0 && cfg.Crate.Author != config.DefaultAuthor {
			authors = []string{cfg.Crate.Author}
		}

		store, closeStore, err := initStore(cfg, crate.InitOptions{
			Name:        initName,
			Description: initDescription,
			Author:      authors,
			Keywords:    initKeywords,
			StartClean:  initStartClean || cfg.Crate.StartClean,
		})
		if err != nil {
			return err
		}
		defer closeStore()

		entities, err := store.ReadEntityMap(ctx)
		if err != nil {
			return err
		}
		logging.FromContext(ctx).Info("crate ready", "root", store.Root(), "backend", cfg.Crate.Backend, "entities", len(entities))
		fmt.Printf("Crate ready at %s (%d entities)\n", store.Root(), len(entities))
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Name of the root dataset")
	initCmd.Flags().StringVar(&initDescription, "description", "", "Description of the root dataset")
	initCmd.Flags().StringSliceVar(&initAuthors, "author", nil, "Crate author (repeatable)")
	initCmd.Flags().StringSliceVar(&initKeywords, "keyword", nil, "Crate keyword (repeatable)")
	initCmd.Flags().BoolVar(&initStartClean, "start-clean", false, "Drop every entity except the descriptor and root")
}
