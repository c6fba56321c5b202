package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/docintel/internal/model"
)

// gridWords lays out words in rows x cols buckets, 20px stride vertically.
func gridWords(rows, cols int) []model.Word {
	var words []model.Word
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			words = append(words, model.Word{
				Text:       "w",
				Confidence: 0.9,
				BBox:       model.BBox{X: c * 100, Y: r * 20, Width: 40, Height: 12},
			})
		}
	}
	return words
}

func TestHasTableStructure_AlignedRows(t *testing.T) {
	// 12 words in 4 row buckets of 3.
	assert.True(t, HasTableStructure(gridWords(4, 3)))
}

func TestHasTableStructure_SingleRow(t *testing.T) {
	// Same 12 words collapsed into one bucket.
	words := gridWords(1, 12)
	assert.False(t, HasTableStructure(words))
}

func TestHasTableStructure_TooFewWords(t *testing.T) {
	assert.False(t, HasTableStructure(gridWords(3, 3)))
}

func TestHasTableStructure_TwoBuckets(t *testing.T) {
	assert.False(t, HasTableStructure(gridWords(2, 6)))
}

func TestClassify_Structured(t *testing.T) {
	res := &model.OCRResult{
		FullText: "INVOICE\nSubtotal: $100.00\nTax: $10.00\nTotal: $110.00",
		Words:    gridWords(4, 3),
	}
	assert.Equal(t, model.DocTypeStructured, Classify(res))
}

func TestClassify_SemiStructured_NoTable(t *testing.T) {
	// Enough keywords but no word geometry.
	res := &model.OCRResult{
		FullText: "Invoice total due on receipt",
	}
	assert.Equal(t, model.DocTypeSemiStructured, Classify(res))
}

func TestClassify_SemiStructured_TwoIndicators(t *testing.T) {
	res := &model.OCRResult{
		FullText: "statement of account, amount due immediately",
		Words:    gridWords(4, 3),
	}
	assert.Equal(t, model.DocTypeSemiStructured, Classify(res))
}

func TestClassify_Unstructured(t *testing.T) {
	res := &model.OCRResult{
		FullText: "Dear customer, thank you for your letter.",
	}
	assert.Equal(t, model.DocTypeUnstructured, Classify(res))
}

func TestClassify_IndicatorsAreDistinctTerms(t *testing.T) {
	// One term repeated many times still counts once.
	res := &model.OCRResult{
		FullText: "invoice invoice invoice invoice",
		Words:    gridWords(4, 3),
	}
	assert.Equal(t, model.DocTypeUnstructured, Classify(res))
}
