// Package pipeline orchestrates the document processing stages and owns
// the job state machine. Stages run strictly in order: OCR,
// classification, extraction, enrichment, validation, agent analysis.
// OCR failure is fatal to the job; everything downstream degrades to a
// partial result.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/classify"
	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/enrich"
	"github.com/sells-group/docintel/internal/extract"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/ocr"
	"github.com/sells-group/docintel/internal/store"
	"github.com/sells-group/docintel/internal/validate"
	"github.com/sells-group/docintel/pkg/agent"
)

// Engine is the OCR stage dependency.
type Engine interface {
	Process(ctx context.Context, path, jobID string) (*model.OCRResult, error)
}

// Pipeline drives one job at a time from PENDING to a terminal state.
// A single Pipeline is safe for concurrent Run calls with distinct job
// ids; each job has exactly one status writer, its own Run.
type Pipeline struct {
	store     store.Store
	engine    Engine
	extractor *extract.Extractor
	enricher  enrich.Enricher
	analyzer  agent.Analyzer
}

// New creates a Pipeline with all stage dependencies.
func New(st store.Store, engine Engine, ex *extract.Extractor, en enrich.Enricher, an agent.Analyzer) *Pipeline {
	return &Pipeline{
		store:     st,
		engine:    engine,
		extractor: ex,
		enricher:  en,
		analyzer:  an,
	}
}

// NewFromConfig wires a Pipeline from configuration. The store is owned
// by the caller.
func NewFromConfig(cfg *config.Config, st store.Store) (*Pipeline, error) {
	ex, err := extract.New(cfg.Extract)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build extractor")
	}
	return New(st, ocr.NewEngine(cfg.OCR), ex, enrich.New(cfg.Enrich), agent.New(cfg.Anthropic)), nil
}

// Submit registers a new PENDING job for a source file and returns it.
func (p *Pipeline) Submit(ctx context.Context, jobID, sourcePath string) (*model.Job, error) {
	job := model.Job{
		ID:       jobID,
		Status:   model.JobStatusPending,
		Filename: filepath.Base(sourcePath),
		Path:     sourcePath,
	}
	if err := p.store.CreateJob(ctx, job); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create job %s", jobID)
	}
	return &job, nil
}

// Run executes the pipeline for a previously submitted job, leaving it
// COMPLETED or FAILED. The returned error reports the fatal cause when
// the job failed.
func (p *Pipeline) Run(ctx context.Context, jobID string) error {
	log := zap.L().With(zap.String("job_id", jobID))
	start := time.Now()

	job, err := p.store.GetStatus(ctx, jobID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: load job %s", jobID)
	}

	setProgress := func(status model.JobStatus, msg string) {
		upd := model.StatusUpdate{Status: status, Progress: &msg}
		if err := p.store.PutStatus(ctx, jobID, upd); err != nil {
			log.Warn("pipeline: status update failed", zap.Error(err))
		}
	}

	setProgress(model.JobStatusProcessing, "Starting processing...")

	setProgress(model.JobStatusProcessing, "Performing OCR...")
	ocrRes, err := p.engine.Process(ctx, job.Path, jobID)
	if err != nil {
		return p.fail(ctx, jobID, start, eris.Wrap(err, "pipeline: ocr stage"))
	}
	log.Info("ocr complete",
		zap.Int("pages", ocrRes.Pages),
		zap.Int("words", ocrRes.TotalWords))

	docType := classify.Classify(ocrRes)
	log.Info("document classified", zap.String("document_type", string(docType)))

	setProgress(model.JobStatusProcessing, "Extracting fields...")
	data, additional := p.extractor.Extract(ocrRes, docType)

	p.runEnrichment(ctx, log, ocrRes, data, additional)

	setProgress(model.JobStatusProcessing, "Validating results...")
	data = validate.Normalize(data)

	result := &model.Result{
		JobID:            jobID,
		Status:           model.JobStatusCompleted,
		DocumentType:     docType,
		ExtractedData:    data,
		RawText:          ocrRes.FullText,
		AdditionalFields: additional,
	}

	if p.analyzer.Enabled() {
		setProgress(model.JobStatusProcessing, "Analyzing with agent...")
		result.AgentAnalysis = p.analyzer.Analyze(ctx, data, additional)
	}

	result.ProcessingTime = time.Since(start).Seconds()

	if err := validate.CheckResult(result); err != nil {
		log.Warn("result schema violation", zap.Error(err))
	}

	if err := p.store.PutResult(ctx, jobID, result); err != nil {
		return p.fail(ctx, jobID, start, eris.Wrap(err, "pipeline: persist result"))
	}
	setProgress(model.JobStatusCompleted, "Processing completed")

	log.Info("job completed",
		zap.String("document_type", string(docType)),
		zap.Float64("processing_time_s", result.ProcessingTime))
	return nil
}

// runEnrichment applies the optional entity collaborator. Failures are
// logged and the rule-based result stands.
func (p *Pipeline) runEnrichment(ctx context.Context, log *zap.Logger, ocrRes *model.OCRResult, data *model.ExtractedData, additional map[string]any) {
	if !p.enricher.Enabled() || len(ocrRes.ImagePaths) == 0 {
		return
	}

	pages := make([]enrich.Page, 0, len(ocrRes.PageResults))
	for i, pr := range ocrRes.PageResults {
		if i >= len(ocrRes.ImagePaths) {
			break
		}
		pages = append(pages, enrich.Page{ImagePath: ocrRes.ImagePaths[i], Text: pr.Text})
	}

	detections, err := p.enricher.Detect(ctx, pages)
	if err != nil {
		log.Warn("enrichment unavailable", zap.Error(err))
		return
	}
	enrich.Apply(data, additional, pages, detections)
}

// fail moves the job to FAILED with the cause and returns it.
func (p *Pipeline) fail(ctx context.Context, jobID string, start time.Time, cause error) error {
	msg := "Processing failed: " + cause.Error()
	errMsg := cause.Error()
	upd := model.StatusUpdate{
		Status:   model.JobStatusFailed,
		Progress: &msg,
		Error:    &errMsg,
	}
	if err := p.store.PutStatus(ctx, jobID, upd); err != nil {
		zap.L().Error("pipeline: failed to record job failure",
			zap.String("job_id", jobID), zap.Error(err))
	}
	zap.L().Error("job failed",
		zap.String("job_id", jobID),
		zap.Float64("elapsed_s", time.Since(start).Seconds()),
		zap.Error(cause))
	return cause
}
