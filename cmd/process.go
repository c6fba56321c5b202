package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/docintel/internal/ocr"
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Process a single document and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		path := args[0]
		if _, err := os.Stat(path); err != nil {
			return eris.Wrapf(err, "stat %s", path)
		}
		if ext := strings.ToLower(filepath.Ext(path)); !ocr.SupportedExt(ext) {
			return eris.Errorf("unsupported file extension %q", ext)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		jobID := uuid.NewString()
		if _, err := env.Pipeline.Submit(ctx, jobID, path); err != nil {
			return err
		}
		if err := env.Pipeline.Run(ctx, jobID); err != nil {
			return err
		}

		res, err := env.Store.GetResult(ctx, jobID)
		if err != nil {
			return eris.Wrap(err, "load result")
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return eris.Wrap(err, "encode result")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
