package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"doxnav/internal/analysis"
	"doxnav/internal/config"
	"doxnav/internal/crawler"
	"doxnav/internal/extractor"
	"doxnav/internal/storage"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "doxnav",
		Short:         "Parse, validate and catalogue Doxygen navigation trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
	dbPath     string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the catalogue database (SQLite); overrides database.path")

	rootCmd.AddCommand(parseCmd, lintCmd, fmtCmd, reindexCmd, renderCmd, exportCmd, buildCmd)
	rootCmd.AddCommand(scanCmd, updateCmd, searchCmd, lookupCmd, sitesCmd)
	rootCmd.AddCommand(watchCmd, serveCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

func lintOptions(cfg *config.Config) analysis.Options {
	return analysis.Options{
		MaxDepth:     cfg.Lint.MaxDepth,
		Extension:    cfg.Lint.Extension,
		CheckTargets: cfg.Lint.CheckTargets,
		ChunkSize:    cfg.Index.ChunkSize,
	}
}

func newCrawler(cfg *config.Config) *crawler.Crawler {
	return crawler.NewCrawler(extractor.NewExtractor(), cfg.Scan.Workers)
}

func openStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// loadSite reads one HTML output directory with the configured settings.
func loadSite(ctx context.Context, dir string) (*config.Config, *crawler.Site, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	site, err := newCrawler(cfg).Load(ctx, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load %s: %w", dir, err)
	}
	return cfg, site, nil
}
