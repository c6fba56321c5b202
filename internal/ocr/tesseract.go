package ocr

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/model"
)

// tsvColumns is the fixed column count of tesseract TSV output:
// level page_num block_num par_num line_num word_num left top width
// height conf text.
const tsvColumns = 12

// ocrPage runs tesseract twice over one page image: once for the plain
// text rendering and once in TSV mode for word boxes and confidences.
func (e *Engine) ocrPage(ctx context.Context, imagePath string, pageNum int) (*model.PageResult, error) {
	base := []string{
		imagePath, "stdout",
		"-l", e.cfg.Language,
		"--psm", strconv.Itoa(e.cfg.PSM),
		"--oem", strconv.Itoa(e.cfg.OEM),
	}

	textOut, stderr, err := e.runner.Run(ctx, e.cfg.TesseractPath, base...)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: tesseract page %d: %s", pageNum, strings.TrimSpace(string(stderr)))
	}

	tsvOut, stderr, err := e.runner.Run(ctx, e.cfg.TesseractPath, append(base, "tsv")...)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: tesseract tsv page %d: %s", pageNum, strings.TrimSpace(string(stderr)))
	}

	words := parseTSV(string(tsvOut))
	return &model.PageResult{
		Page:      pageNum,
		Text:      strings.TrimSpace(string(textOut)),
		Words:     words,
		WordCount: len(words),
	}, nil
}

// parseTSV extracts word detections from tesseract TSV output. Only rows
// with positive confidence and non-empty text are kept; confidence is
// normalized from percent to [0,1].
func parseTSV(out string) []model.Word {
	var words []model.Word
	for i, line := range strings.Split(out, "\n") {
		if i == 0 || line == "" {
			continue // header
		}
		cols := strings.Split(line, "\t")
		if len(cols) < tsvColumns {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf <= 0 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		words = append(words, model.Word{
			Text:       text,
			Confidence: conf / 100.0,
			BBox: model.BBox{
				X:      atoi(cols[6]),
				Y:      atoi(cols[7]),
				Width:  atoi(cols[8]),
				Height: atoi(cols[9]),
			},
			BlockNum: atoi(cols[2]),
			ParNum:   atoi(cols[3]),
			LineNum:  atoi(cols[4]),
			WordNum:  atoi(cols[5]),
		})
	}
	return words
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
