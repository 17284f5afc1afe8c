package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint is the Expo push gateway.
	DefaultEndpoint = "https://exp.host/--/api/v2/push/send"

	// Expo accepts at most 100 messages per request.
	maxBatchSize = 100
)

// Message is a single push notification addressed to one Expo token.
type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Sound string         `json:"sound,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

type ticket struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type sendResponse struct {
	Data []ticket `json:"data"`
}

// ExpoClient delivers push notifications through Expo's HTTP API. Delivery is
// best effort; per-ticket errors are logged, never surfaced to callers.
type ExpoClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewExpoClient(endpoint string, logger *slog.Logger) *ExpoClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &ExpoClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Send pushes the given title/body to every token, batching per the gateway
// limit. A failed batch does not abort the remaining ones.
func (c *ExpoClient) Send(ctx context.Context, tokens []string, title, body string, data map[string]any) {
	for start := 0; start < len(tokens); start += maxBatchSize {
		end := min(start+maxBatchSize, len(tokens))

		batch := make([]Message, 0, end-start)
		for _, token := range tokens[start:end] {
			batch = append(batch, Message{
				To:    token,
				Title: title,
				Body:  body,
				Sound: "default",
				Data:  data,
			})
		}

		if err := c.sendBatch(ctx, batch); err != nil {
			c.logger.Error("push batch failed", "count", len(batch), "error", err)
		}
	}
}

func (c *ExpoClient) sendBatch(ctx context.Context, batch []Message) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode push response: %w", err)
	}

	for i, t := range result.Data {
		if t.Status == "error" {
			c.logger.Warn("push ticket rejected",
				"token", batch[i].To,
				"reason", t.Details.Error,
				"message", t.Message,
			)
		}
	}
	return nil
}
