package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/ocr"
	"github.com/sells-group/docintel/internal/pipeline"
	"github.com/sells-group/docintel/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document processing HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		api := &apiServer{
			store:       env.Store,
			pipeline:    env.Pipeline,
			uploadDir:   filepath.Join(os.TempDir(), "docintel-uploads"),
			maxUploadMB: cfg.Server.MaxUploadMB,
			runCtx:      ctx,
		}
		if err := os.MkdirAll(api.uploadDir, 0o755); err != nil {
			return eris.Wrap(err, "create upload dir")
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type apiServer struct {
	store       store.Store
	pipeline    *pipeline.Pipeline
	uploadDir   string
	maxUploadMB int
	// runCtx outlives individual requests so async jobs survive the
	// upload request ending.
	runCtx context.Context
}

func (s *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/documents", s.handleSubmit)
	r.Get("/documents/{id}/status", s.handleStatus)
	r.Get("/documents/{id}/result", s.handleResult)
	return r
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.maxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !ocr.SupportedExt(ext) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q", ext))
		return
	}

	jobID := uuid.NewString()
	dest := filepath.Join(s.uploadDir, jobID+ext)
	out, err := os.Create(dest)
	if err != nil {
		zap.L().Error("upload save failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(dest)
		zap.L().Error("upload save failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	out.Close()

	if _, err := s.pipeline.Submit(r.Context(), jobID, dest); err != nil {
		zap.L().Error("job submit failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create job")
		return
	}

	go func() {
		if err := s.pipeline.Run(s.runCtx, jobID); err != nil {
			zap.L().Error("job run failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   jobID,
		"status":   string(model.JobStatusPending),
		"filename": header.Filename,
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job, err := s.store.GetStatus(r.Context(), jobID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		zap.L().Error("status lookup failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job, err := s.store.GetStatus(r.Context(), jobID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		zap.L().Error("result lookup failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "result lookup failed")
		return
	}

	switch job.Status {
	case model.JobStatusCompleted:
		res, err := s.store.GetResult(r.Context(), jobID)
		if err != nil {
			// COMPLETED with no result record is a store
			// inconsistency, not a pending state.
			zap.L().Error("completed job has no result", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "result record missing for completed job")
			return
		}
		writeJSON(w, http.StatusOK, res)
	case model.JobStatusFailed:
		writeJSON(w, http.StatusOK, map[string]string{
			"job_id": jobID,
			"status": string(job.Status),
			"error":  job.Error,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"job_id":   jobID,
			"status":   string(job.Status),
			"progress": job.Progress,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
