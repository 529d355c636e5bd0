package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SemaphoreClient sends SMS through the Semaphore REST API.
type SemaphoreClient struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

// NewSemaphoreClient creates a Semaphore SMS client.
func NewSemaphoreClient(apiKey, baseURL string) *SemaphoreClient {
	if baseURL == "" {
		baseURL = "https://api.semaphore.co/api/v4"
	}
	return &SemaphoreClient{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// semaphoreMessage is one element of the API's send response.
type semaphoreMessage struct {
	MessageID json.Number `json:"message_id"`
	Status    string      `json:"status"`
	Recipient string      `json:"recipient"`
}

// Send posts a form-encoded message request. The number is assumed to be
// normalized already (see NormalizePhone).
func (c *SemaphoreClient) Send(ctx context.Context, phoneNumber, message, senderName string) (string, error) {
	form := url.Values{}
	form.Set("apikey", c.APIKey)
	form.Set("number", phoneNumber)
	form.Set("message", message)
	if senderName != "" {
		form.Set("sendername", senderName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/messages", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("semaphore: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("semaphore: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("semaphore: send failed (%d): %s", resp.StatusCode, string(body))
	}

	var messages []semaphoreMessage
	if err := json.Unmarshal(body, &messages); err != nil {
		return "", fmt.Errorf("semaphore: decode response failed: %w", err)
	}
	if len(messages) == 0 || messages[0].MessageID.String() == "" {
		return "", fmt.Errorf("semaphore: no message accepted: %s", string(body))
	}
	return messages[0].MessageID.String(), nil
}
