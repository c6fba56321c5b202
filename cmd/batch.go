package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docintel/internal/ocr"
)

var batchConcurrency int

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Process every supported document in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dir := args[0]
		entries, err := os.ReadDir(dir)
		if err != nil {
			return eris.Wrapf(err, "read directory %s", dir)
		}

		var files []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if ocr.SupportedExt(strings.ToLower(filepath.Ext(e.Name()))) {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
		if len(files) == 0 {
			return eris.Errorf("no supported documents in %s", dir)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.MaxConcurrentJobs
		}
		if concurrency < 1 {
			concurrency = 1
		}

		zap.L().Info("starting batch",
			zap.Int("files", len(files)),
			zap.Int("concurrency", concurrency))

		var completed, failed atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		for _, path := range files {
			g.Go(func() error {
				jobID := uuid.NewString()
				if _, err := env.Pipeline.Submit(gctx, jobID, path); err != nil {
					failed.Add(1)
					zap.L().Error("batch submit failed", zap.String("file", path), zap.Error(err))
					return nil
				}
				if err := env.Pipeline.Run(gctx, jobID); err != nil {
					failed.Add(1)
					return nil
				}
				completed.Add(1)
				fmt.Printf("%s: completed (job %s)\n", filepath.Base(path), jobID)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Printf("batch finished: %d completed, %d failed of %d\n",
			completed.Load(), failed.Load(), len(files))
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent jobs (default from config)")
	rootCmd.AddCommand(batchCmd)
}
