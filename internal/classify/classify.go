// Package classify assigns a DocumentType from OCR evidence: keyword
// density in the full text plus a table-structure signal from word
// geometry.
package classify

import (
	"strings"

	"github.com/sells-group/docintel/internal/model"
)

// structuredIndicators is the fixed vocabulary counted in the full text.
var structuredIndicators = []string{
	"invoice", "bill", "receipt", "statement",
	"total", "subtotal", "tax", "amount due",
}

// Classify decides the document type. STRUCTURED requires at least three
// indicator terms and a detectable table; SEMI_STRUCTURED requires two
// indicators; everything else is UNSTRUCTURED.
func Classify(res *model.OCRResult) model.DocumentType {
	text := strings.ToLower(res.FullText)

	count := 0
	for _, ind := range structuredIndicators {
		if strings.Contains(text, ind) {
			count++
		}
	}

	switch {
	case count >= 3 && HasTableStructure(res.Words):
		return model.DocTypeStructured
	case count >= 2:
		return model.DocTypeSemiStructured
	default:
		return model.DocTypeUnstructured
	}
}

// HasTableStructure reports whether the word layout looks tabular: at
// least 10 words, at least 3 row buckets (y div 20), and at least 3
// buckets whose word count is within 2 of the mean.
func HasTableStructure(words []model.Word) bool {
	if len(words) < 10 {
		return false
	}

	rows := make(map[int]int)
	for _, w := range words {
		rows[w.BBox.Y/20]++
	}
	if len(rows) < 3 {
		return false
	}

	var total int
	for _, n := range rows {
		total += n
	}
	avg := float64(total) / float64(len(rows))

	consistent := 0
	for _, n := range rows {
		d := float64(n) - avg
		if d < 0 {
			d = -d
		}
		if d <= 2 {
			consistent++
		}
	}
	return consistent >= 3
}
