package extract

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sells-group/docintel/internal/model"
)

// supplierBlacklist disqualifies header lines in the textual fallback.
var supplierBlacklist = []string{
	"invoice", "bill to", "billed to", "ship to", "date", "due",
	"total", "amount", "tax", "subtotal",
}

// corporateSuffixes mark lines that look like company names.
var corporateSuffixes = []string{"Inc", "INC", "LLC", "Ltd", "Co.", "Company"}

// extractSupplier finds the supplier name. With word geometry it scores
// lines in the top 20% of the page by text length times mean confidence;
// without geometry it falls back to scanning the leading text lines.
func extractSupplier(text string, words []model.Word) string {
	if len(words) > 0 {
		if s := supplierFromLayout(words); s != "" {
			return s
		}
	}
	return supplierFromText(text)
}

func supplierFromLayout(words []model.Word) string {
	sorted := make([]model.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BBox.Y < sorted[j].BBox.Y })

	topN := len(sorted) * 20 / 100
	if topN < 5 {
		topN = 5
	}
	if topN > len(sorted) {
		topN = len(sorted)
	}
	top := sorted[:topN]

	lines := make(map[int][]model.Word)
	for _, w := range top {
		key := w.BBox.Y / 15
		lines[key] = append(lines[key], w)
	}

	var (
		bestLine  string
		bestScore float64
	)
	for _, lineWords := range lines {
		sort.SliceStable(lineWords, func(i, j int) bool { return lineWords[i].BBox.X < lineWords[j].BBox.X })

		var parts []string
		for _, w := range lineWords {
			if strings.TrimSpace(w.Text) != "" {
				parts = append(parts, w.Text)
			}
		}
		lineText := strings.Join(parts, " ")
		if len(lineText) <= 5 {
			continue
		}

		var confSum float64
		for _, w := range lineWords {
			confSum += w.Confidence
		}
		score := float64(len(lineText)) * (confSum / float64(len(lineWords)))
		if score > bestScore {
			bestScore = score
			bestLine = lineText
		}
	}

	if len(bestLine) > 3 {
		return bestLine
	}
	return ""
}

func supplierFromText(text string) string {
	if text == "" {
		return ""
	}
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) > 15 {
		lines = lines[:15]
	}

	blacklisted := func(l string) bool {
		low := strings.ToLower(l)
		for _, b := range supplierBlacklist {
			if strings.Contains(low, b) {
				return true
			}
		}
		return false
	}

	for _, l := range lines {
		if blacklisted(l) {
			continue
		}
		for _, tag := range corporateSuffixes {
			if strings.Contains(l, tag) {
				return l
			}
		}
		if countUpper(l) >= 3 && len(strings.Fields(l)) >= 2 {
			return l
		}
	}
	for _, l := range lines {
		if !blacklisted(l) {
			return l
		}
	}
	return ""
}

func countUpper(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsUpper(r) {
			n++
		}
	}
	return n
}
