package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/docintel/internal/model"
)

const maxLineItems = 10

// headerKeywords maps line-item columns to the header labels that
// identify them, checked in order.
var headerKeywords = []struct {
	column string
	labels []string
}{
	{"description", []string{"description", "item", "product", "service"}},
	{"quantity", []string{"qty", "quantity", "qnty"}},
	{"unit_price", []string{"unit price", "price", "rate"}},
	{"amount", []string{"amount", "total", "line total"}},
	{"tax_rate", []string{"tax %", "tax rate", "vat %"}},
	{"item_code", []string{"sku", "code", "hsn", "item code"}},
}

var (
	numberToken  = regexp.MustCompile(`\d+\.?\d*`)
	pureNumber   = regexp.MustCompile(`^\d+\.?\d*$`)
	percentValue = regexp.MustCompile(`(\d{1,3}\.?\d*)\s*%`)
)

// extractLineItems reads table rows out of positioned words. Words are
// bucketed into rows by y div 20; a header row (first bucket among the
// top ten with two or more recognized column labels) contributes column
// x-positions for item_code and tax_rate assignment. Every row with two
// or more numeric tokens becomes an item, capped at maxLineItems.
func extractLineItems(words []model.Word) []model.LineItem {
	if len(words) < 10 {
		return nil
	}

	buckets := make(map[int][]model.Word)
	for _, w := range words {
		key := w.BBox.Y / 20
		buckets[key] = append(buckets[key], w)
	}
	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	columns := detectColumns(buckets, keys)

	var items []model.LineItem
	for _, key := range keys {
		row := buckets[key]
		sort.SliceStable(row, func(i, j int) bool { return row[i].BBox.X < row[j].BBox.X })

		parts := make([]string, len(row))
		for i, w := range row {
			parts[i] = w.Text
		}
		rowText := strings.Join(parts, " ")

		numbers := numberToken.FindAllString(rowText, -1)
		if len(numbers) < 2 {
			continue
		}

		item := model.LineItem{}
		switch {
		case len(numbers) >= 3:
			item.Quantity = ParseNumber(numbers[0])
			item.UnitPrice = ParseNumber(numbers[1])
			item.Amount = ParseNumber(numbers[2])
		default:
			item.Quantity = ParseNumber(numbers[0])
			item.Amount = ParseNumber(numbers[1])
		}

		if loc := numberToken.FindStringIndex(rowText); loc != nil {
			if desc := strings.TrimSpace(rowText[:loc[0]]); len(desc) > 2 {
				item.Description = model.Str(desc)
			}
		}

		var confSum float64
		for _, w := range row {
			confSum += w.Confidence
		}
		item.Confidence = confSum / float64(len(row))

		if x, ok := columns["item_code"]; ok {
			if code := nearestText(row, x); code != "" && !pureNumber.MatchString(code) {
				item.ItemCode = model.Str(code)
			}
		}
		if x, ok := columns["tax_rate"]; ok {
			if cell := nearestText(row, x); cell != "" {
				if m := percentValue.FindStringSubmatch(cell); m != nil {
					item.TaxRate = ParseNumber(m[1])
				}
			}
		}

		items = append(items, item)
		if len(items) == maxLineItems {
			break
		}
	}
	return items
}

// detectColumns scans the first ten row buckets for header labels and
// records the x-position of the first word matching each column. The
// scan stops at the first bucket yielding two or more column hits.
func detectColumns(buckets map[int][]model.Word, keys []int) map[string]int {
	columns := make(map[string]int)
	limit := len(keys)
	if limit > 10 {
		limit = 10
	}
	for _, key := range keys[:limit] {
		row := buckets[key]
		parts := make([]string, len(row))
		for i, w := range row {
			parts[i] = strings.ToLower(w.Text)
		}
		rowText := strings.Join(parts, " ")

		hits := 0
		for _, hk := range headerKeywords {
			for _, label := range hk.labels {
				if !strings.Contains(rowText, label) {
					continue
				}
				for _, w := range row {
					if strings.Contains(strings.ToLower(w.Text), label) {
						columns[hk.column] = w.BBox.X
						hits++
						break
					}
				}
				break
			}
		}
		if hits >= 2 {
			break
		}
	}
	return columns
}

// nearestText returns the text of the row word closest to x.
func nearestText(row []model.Word, x int) string {
	if len(row) == 0 {
		return ""
	}
	best := row[0]
	bestD := abs(row[0].BBox.X - x)
	for _, w := range row[1:] {
		if d := abs(w.BBox.X - x); d < bestD {
			bestD = d
			best = w
		}
	}
	return best.Text
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
