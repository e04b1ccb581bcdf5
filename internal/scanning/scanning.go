package scanning

import "time"

// Confidence labels attached to an extraction. Display-only.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// RecognizedText is the OCR collaborator's output: the raw text found on the
// ticket plus a coarse 0..1 confidence score.
type RecognizedText struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// MinUsableText is the shortest OCR output callers should treat as usable;
// anything shorter counts as an extraction failure.
const MinUsableText = 5

// Extraction is the AI extractor's tagged result: either the structured
// fields read from a ticket, or a failure with the reason and whatever
// fragment of the text was recognized.
type Extraction struct {
	OK         bool
	Visitor    string
	Plate      string
	Start      time.Time
	End        time.Time
	Confidence string

	// Set when OK is false.
	Reason   string
	Fragment string
}

// Recognizer extracts raw text from a ticket image.
type Recognizer interface {
	Recognize(image []byte, contentType string) (*RecognizedText, error)
	Close() error
}

// Extractor turns raw OCR text into structured parking session fields.
type Extractor interface {
	Extract(rawText string) (*Extraction, error)
	Close() error
}
