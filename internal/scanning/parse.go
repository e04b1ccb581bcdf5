package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeLayout is the timezone-naive instant layout the extractor is prompted
// to produce.
const timeLayout = "2006-01-02T15:04"

// stripAround trims whitespace and markdown code fences and cuts the reply
// down to the outermost JSON object.
func stripAround(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return text[start : end+1], nil
}

// rawExtraction is the wire shape both extractor outcomes share.
type rawExtraction struct {
	Status     string `json:"status"`
	Visitor    string `json:"visitor"`
	Plate      string `json:"plate"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
	Fragment   string `json:"fragment"`
}

// invalidFormat is the failure returned for any reply that is not one of the
// two documented shapes.
func invalidFormat(fragment string) *Extraction {
	if len(fragment) > 200 {
		fragment = fragment[:200]
	}
	return &Extraction{Reason: "invalid response format", Fragment: fragment}
}

// parseExtractionJSON parses the extractor's reply into a tagged Extraction.
// Malformed replies never error out; they parse to a failure so the caller
// can report them uniformly.
func parseExtractionJSON(text string) *Extraction {
	body, err := stripAround(text)
	if err != nil {
		return invalidFormat(text)
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return invalidFormat(text)
	}

	switch raw.Status {
	case "failure":
		reason := strings.TrimSpace(raw.Reason)
		if reason == "" {
			reason = "extraction failed"
		}
		return &Extraction{Reason: reason, Fragment: raw.Fragment}
	case "success":
		// Validated below.
	default:
		return invalidFormat(text)
	}

	plate := strings.TrimSpace(raw.Plate)
	if plate == "" {
		return invalidFormat(text)
	}
	start, err := time.Parse(timeLayout, strings.TrimSpace(raw.Start))
	if err != nil {
		return invalidFormat(text)
	}
	end, err := time.Parse(timeLayout, strings.TrimSpace(raw.End))
	if err != nil {
		return invalidFormat(text)
	}
	if end.Before(start) {
		return &Extraction{
			Reason:   "end time precedes start time",
			Fragment: fmt.Sprintf("%s .. %s", raw.Start, raw.End),
		}
	}

	confidence := strings.ToLower(strings.TrimSpace(raw.Confidence))
	switch confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	default:
		confidence = ConfidenceLow
	}

	return &Extraction{
		OK:         true,
		Visitor:    strings.TrimSpace(raw.Visitor),
		Plate:      plate,
		Start:      start,
		End:        end,
		Confidence: confidence,
	}
}

// parseRecognizedJSON parses the OCR reply into recognized text. Unlike the
// extractor reply, a malformed OCR reply is an error: there is no partial
// text worth reporting.
func parseRecognizedJSON(text string) (*RecognizedText, error) {
	body, err := stripAround(text)
	if err != nil {
		return nil, err
	}

	var recognized RecognizedText
	if err := json.Unmarshal([]byte(body), &recognized); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	recognized.Text = strings.TrimSpace(recognized.Text)
	if recognized.Confidence < 0 {
		recognized.Confidence = 0
	}
	if recognized.Confidence > 1 {
		recognized.Confidence = 1
	}
	return &recognized, nil
}
