package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// extractionPrompt describes the two reply shapes the parser accepts; any
// other shape is treated as "invalid response format".
const extractionPrompt = `You are analyzing text transcribed from a photographed visitor parking ticket. Extract the following fields:

1. **Visitor name**: the name of the visitor the parking was registered for, if present.
2. **Vehicle plate**: the license plate identifier, uppercased, without spaces.
3. **Start time** and **end time**: the full start and end of the parking interval in the local "YYYY-MM-DDTHH:MM" format. If the ticket gives only clock times and the end is earlier than the start, the interval crosses midnight: put the end on the following date. Both values must always carry a full date.
4. **Confidence**: "high", "medium" or "low" — your trust in the extracted fields.

If you found the fields, return ONLY valid JSON in this exact format:
{
  "status": "success",
  "visitor": "Visitor Name",
  "plate": "ABC123",
  "start": "YYYY-MM-DDTHH:MM",
  "end": "YYYY-MM-DDTHH:MM",
  "confidence": "high"
}

If the text is not a parking ticket or the required fields cannot be found, return ONLY:
{
  "status": "failure",
  "reason": "short explanation",
  "fragment": "the closest matching part of the text, if any"
}

Important:
- The plate, start and end fields are required for a success
- Use an empty string for the visitor if no name is present
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// GeminiExtractor implements the Extractor interface using Google Gemini.
type GeminiExtractor struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiExtractor creates a new GeminiExtractor instance.
func NewGeminiExtractor(apiKey string, modelName string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiExtractor{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Extract turns raw OCR text into a tagged extraction result. Transport and
// API failures are returned as errors; a readable reply that does not contain
// usable fields comes back as a non-OK Extraction.
func (g *GeminiExtractor) Extract(rawText string) (*Extraction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx,
		genai.Text(extractionPrompt),
		genai.Text("Ticket text:\n"+rawText),
	)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return parseExtractionJSON(responseText.String()), nil
}

// Close closes the Gemini client.
func (g *GeminiExtractor) Close() error {
	return g.client.Close()
}
