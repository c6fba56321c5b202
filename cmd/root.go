package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/pipeline"
	"github.com/sells-group/docintel/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "docintel",
	Short: "Document intelligence pipeline",
	Long:  "Runs OCR, classification and field extraction over invoices and other business documents, with optional entity enrichment and agent analysis.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// env bundles the wired pipeline and its store for command lifetimes.
type env struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

// initPipeline opens the configured store, runs migrations and wires the
// pipeline.
func initPipeline(ctx context.Context) (*env, error) {
	st, err := store.New(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	p, err := pipeline.NewFromConfig(cfg, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &env{Store: st, Pipeline: p}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
