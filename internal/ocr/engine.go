// Package ocr acquires text from documents. Born-digital PDFs are read
// through their text layer; scanned PDFs and images go through tesseract.
// Page images are rendered either way so downstream consumers that need
// pixels (entity enrichment) always have them.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
)

// imageExts are the raster formats handed to tesseract directly.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".tif":  true,
	".bmp":  true,
}

// SupportedExt reports whether the engine can ingest a file extension.
func SupportedExt(ext string) bool {
	ext = strings.ToLower(ext)
	return ext == ".pdf" || ext == ".txt" || imageExts[ext]
}

// Engine runs the text-acquisition stage for one document at a time.
type Engine struct {
	cfg    config.OCRConfig
	runner Runner
}

// NewEngine creates an Engine, filling unset config fields with defaults.
func NewEngine(cfg config.OCRConfig) *Engine {
	if cfg.TesseractPath == "" {
		cfg.TesseractPath = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "docintel")
	}
	return &Engine{cfg: cfg, runner: execRunner{}}
}

// Process acquires text from the document at path. The jobID names the
// per-job temp directory where page images and the ocr_result.json
// artifact are written.
func (e *Engine) Process(ctx context.Context, path, jobID string) (*model.OCRResult, error) {
	jobDir := filepath.Join(e.cfg.TempDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "ocr: create job dir %s", jobDir)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var (
		result *model.OCRResult
		err    error
	)
	switch {
	case ext == ".pdf":
		result, err = e.processPDF(ctx, path, jobDir)
	case ext == ".txt":
		result, err = e.processText(path)
	case imageExts[ext]:
		result, err = e.processImages(ctx, []string{path})
		if result != nil {
			result.ImagePaths = []string{path}
		}
	default:
		return nil, eris.Errorf("ocr: unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if artErr := e.writeArtifact(jobDir, result); artErr != nil {
		zap.L().Warn("failed to write ocr artifact", zap.String("job_id", jobID), zap.Error(artErr))
	}
	return result, nil
}

// processPDF prefers the embedded text layer and falls back to OCR over
// rendered pages. Pages are rendered in both branches so image paths are
// always available.
func (e *Engine) processPDF(ctx context.Context, path, jobDir string) (*model.OCRResult, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: open pdf %s", path)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	if numPages == 0 {
		return nil, eris.Errorf("ocr: pdf %s has no pages", path)
	}

	imagePaths := e.renderPages(doc, jobDir)

	pageTexts := make([]string, 0, numPages)
	hasText := false
	for i := 0; i < numPages; i++ {
		text, terr := doc.Text(i)
		if terr != nil {
			zap.L().Warn("text layer extraction failed", zap.Int("page", i+1), zap.Error(terr))
			text = ""
		}
		if strings.TrimSpace(text) != "" {
			hasText = true
		}
		pageTexts = append(pageTexts, text)
	}

	if hasText {
		pageResults := make([]model.PageResult, 0, numPages)
		for i, text := range pageTexts {
			pageResults = append(pageResults, model.PageResult{
				Page: i + 1,
				Text: strings.TrimSpace(text),
			})
		}
		result := combinePages(pageResults)
		result.ImagePaths = imagePaths
		return result, nil
	}

	if len(imagePaths) == 0 {
		return nil, eris.Errorf("ocr: pdf %s has no text layer and no pages could be rendered", path)
	}
	result, err := e.processImages(ctx, imagePaths)
	if err != nil {
		return nil, err
	}
	result.ImagePaths = imagePaths
	return result, nil
}

// renderPages renders every page to a grayscale PNG under jobDir.
// Individual page failures are logged and skipped.
func (e *Engine) renderPages(doc *fitz.Document, jobDir string) []string {
	var paths []string
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.ImageDPI(i, float64(e.cfg.DPI))
		if err != nil {
			zap.L().Warn("page render failed", zap.Int("page", i+1), zap.Error(err))
			continue
		}
		out := filepath.Join(jobDir, fmt.Sprintf("page_%d.png", i+1))
		if err := savePNG(out, grayscale(img)); err != nil {
			zap.L().Warn("page image write failed", zap.Int("page", i+1), zap.Error(err))
			continue
		}
		paths = append(paths, out)
	}
	return paths
}

// processImages OCRs each page image and combines the page results.
func (e *Engine) processImages(ctx context.Context, imagePaths []string) (*model.OCRResult, error) {
	var pageResults []model.PageResult
	for i, imgPath := range imagePaths {
		zap.L().Info("running ocr",
			zap.Int("page", i+1),
			zap.Int("total_pages", len(imagePaths)))
		pr, err := e.ocrPage(ctx, imgPath, i+1)
		if err != nil {
			zap.L().Error("ocr failed for page", zap.Int("page", i+1), zap.Error(err))
			continue
		}
		pageResults = append(pageResults, *pr)
	}
	if len(pageResults) == 0 {
		return nil, eris.New("ocr: no pages produced readable text")
	}
	return combinePages(pageResults), nil
}

// processText wraps a plain-text file in a single synthetic page with no
// word geometry.
func (e *Engine) processText(path string) (*model.OCRResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read text file %s", path)
	}
	pr := model.PageResult{
		Page: 1,
		Text: strings.TrimSpace(string(data)),
	}
	return combinePages([]model.PageResult{pr}), nil
}

// combinePages joins per-page results into the document-level result.
// Each page contributes a marker line, its text, and a blank separator.
func combinePages(pages []model.PageResult) *model.OCRResult {
	var (
		parts      []string
		allWords   []model.Word
		totalWords int
	)
	for _, pr := range pages {
		parts = append(parts, fmt.Sprintf("--- Page %d ---", pr.Page))
		parts = append(parts, pr.Text)
		parts = append(parts, "")
		allWords = append(allWords, pr.Words...)
		totalWords += pr.WordCount
	}
	return &model.OCRResult{
		Pages:       len(pages),
		FullText:    strings.Join(parts, "\n"),
		Words:       allWords,
		TotalWords:  totalWords,
		PageResults: pages,
	}
}

// writeArtifact persists the combined result under the job temp dir.
func (e *Engine) writeArtifact(jobDir string, result *model.OCRResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return eris.Wrap(err, "ocr: marshal artifact")
	}
	out := filepath.Join(jobDir, "ocr_result.json")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return eris.Wrapf(err, "ocr: write artifact %s", out)
	}
	return nil
}

// grayscale converts a rendered page to 8-bit grayscale. Rendered pages
// get no further preprocessing.
func grayscale(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "ocr: create %s", path)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return eris.Wrapf(err, "ocr: encode %s", path)
	}
	return nil
}
