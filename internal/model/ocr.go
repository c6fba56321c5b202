package model

// BBox is the pixel rectangle locating a detected word on a page image.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Word is a single OCR word detection. Confidence is normalized to [0,1];
// only detections with confidence > 0 and non-empty text are kept.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
	BlockNum   int     `json:"block_num"`
	ParNum     int     `json:"par_num"`
	LineNum    int     `json:"line_num"`
	WordNum    int     `json:"word_num"`
}

// PageResult holds the OCR output for one page.
type PageResult struct {
	Page      int    `json:"page"`
	Text      string `json:"text"`
	Words     []Word `json:"words"`
	WordCount int    `json:"word_count"`
}

// OCRResult is the combined text-acquisition output for a document.
// FullText joins pages in page order, each introduced by a
// "--- Page N ---" marker and followed by a blank line. Words is the flat
// list across all pages. ImagePaths points at the rendered page images
// kept for downstream enrichment (empty for plain-text inputs).
type OCRResult struct {
	Pages       int          `json:"pages"`
	FullText    string       `json:"full_text"`
	Words       []Word       `json:"all_words"`
	TotalWords  int          `json:"total_words"`
	PageResults []PageResult `json:"page_results"`
	ImagePaths  []string     `json:"image_paths,omitempty"`
}
