package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ocrPrompt asks the vision model for a verbatim transcription rather than
// interpretation; field extraction happens in a separate step.
const ocrPrompt = `You are reading a photographed parking ticket. Transcribe ALL text visible in the image exactly as written, preserving line breaks. Do not interpret, summarize or translate anything.

Return ONLY valid JSON in this exact format:
{
  "text": "the full transcribed text",
  "confidence": 0.0
}

Important:
- "confidence" is your own estimate between 0.0 and 1.0 of how completely and correctly you could read the image
- If the image contains no readable text, return an empty string for "text" and a low confidence
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// OllamaOCR implements the Recognizer interface against an Ollama vision
// model.
type OllamaOCR struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaOCR creates a new OllamaOCR instance. Vision models known to work
// well for ticket transcription: llava:1.6, qwen2-vl:7b, bakllava.
func NewOllamaOCR(baseURL string, modelName string) (*OllamaOCR, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &OllamaOCR{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // vision models can be slow
		},
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Recognize transcribes all text on the ticket image.
func (o *OllamaOCR) Recognize(imageData []byte, contentType string) (*RecognizedText, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	pngData, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading photographed tickets and receipts. You transcribe text faithfully without interpreting it.",
			},
			{
				Role:    "user",
				Content: ocrPrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	recognized, err := parseRecognizedJSON(strings.TrimSpace(chatResp.Message.Content))
	if err != nil {
		return nil, fmt.Errorf("parsing OCR result: %w", err)
	}
	return recognized, nil
}

// Close closes the recognizer (no-op for the HTTP client).
func (o *OllamaOCR) Close() error {
	return nil
}
