package telegram

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Client is a Telegram Bot API client.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for the given bot token.
func NewClient(token string) (*Client, error) {
	return NewClientWithBaseURL(token, defaultBaseURL)
}

// NewClientWithBaseURL creates a Client against a custom API base URL for
// testing.
func NewClientWithBaseURL(token, baseURL string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		client: &http.Client{
			// Above the long-poll timeout so getUpdates is never cut short.
			Timeout: 90 * time.Second,
		},
	}, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// call posts a Bot API method and returns its raw result payload.
func (c *Client) call(method string, params url.Values) (json.RawMessage, error) {
	apiURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	resp, err := c.client.PostForm(apiURL, params)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("%s failed (status %d): %s", method, resp.StatusCode, api.Description)
	}
	return api.Result, nil
}

// GetUpdates long-polls for updates with ids >= offset.
func (c *Client) GetUpdates(offset int64, timeoutSec int) ([]Update, error) {
	params := url.Values{
		"offset":          {strconv.FormatInt(offset, 10)},
		"timeout":         {strconv.Itoa(timeoutSec)},
		"allowed_updates": {`["message","callback_query"]`},
	}
	result, err := c.call("getUpdates", params)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("decoding updates: %w", err)
	}
	return updates, nil
}

// SendMessage sends an HTML-formatted message and returns its message id.
func (c *Client) SendMessage(chatID int64, text string) (int, error) {
	return c.sendMessage(chatID, text, nil)
}

// SendMessageWithKeyboard sends an HTML-formatted message with an inline
// keyboard attached and returns its message id.
func (c *Client) SendMessageWithKeyboard(chatID int64, text string, keyboard *InlineKeyboardMarkup) (int, error) {
	return c.sendMessage(chatID, text, keyboard)
}

func (c *Client) sendMessage(chatID int64, text string, keyboard *InlineKeyboardMarkup) (int, error) {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"text":       {text},
		"parse_mode": {"HTML"},
	}
	if keyboard != nil {
		markup, err := json.Marshal(keyboard)
		if err != nil {
			return 0, fmt.Errorf("marshaling keyboard: %w", err)
		}
		params.Set("reply_markup", string(markup))
	}

	result, err := c.call("sendMessage", params)
	if err != nil {
		return 0, err
	}
	var msg Message
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("decoding sent message: %w", err)
	}
	return msg.MessageID, nil
}

// EditMessageText replaces the text of a previously sent message, dropping
// any inline keyboard it carried.
func (c *Client) EditMessageText(chatID int64, messageID int, text string) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.Itoa(messageID)},
		"text":       {text},
		"parse_mode": {"HTML"},
	}
	_, err := c.call("editMessageText", params)
	return err
}

// AnswerCallbackQuery acknowledges a callback query, optionally with an
// ephemeral alert shown only to the pressing user.
func (c *Client) AnswerCallbackQuery(callbackID, text string, showAlert bool) error {
	params := url.Values{
		"callback_query_id": {callbackID},
	}
	if text != "" {
		params.Set("text", text)
	}
	if showAlert {
		params.Set("show_alert", "true")
	}
	_, err := c.call("answerCallbackQuery", params)
	return err
}

// GetFile resolves a file id to a downloadable file path.
func (c *Client) GetFile(fileID string) (*File, error) {
	result, err := c.call("getFile", url.Values{"file_id": {fileID}})
	if err != nil {
		return nil, err
	}
	var file File
	if err := json.Unmarshal(result, &file); err != nil {
		return nil, fmt.Errorf("decoding file info: %w", err)
	}
	return &file, nil
}

// DownloadFile fetches the bytes behind a file path from GetFile.
func (c *Client) DownloadFile(filePath string) ([]byte, error) {
	fileURL := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, filePath)
	resp, err := c.client.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}
