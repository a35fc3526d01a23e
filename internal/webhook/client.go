package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
	userAgent      = "webhook-chat/1.0"

	// Placeholder is used as the reply when the webhook answers without a
	// "response" or "message" field.
	Placeholder = "I received your message."
)

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type exchangeRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// reply fields are read in this order; the first usable one wins
var replyFields = []string{"response", "message"}

// Client posts chat turns to a single configured webhook endpoint.
type Client struct {
	endpoint string
	client   httpDoer
	logger   *zap.SugaredLogger
}

// NewClient builds a Client for endpoint. A non-positive timeout falls back to the
// package default.
func NewClient(endpoint string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Endpoint returns the configured webhook URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Exchange sends one user message and returns the assistant reply. Every failure
// satisfies errors.Is(err, ErrExchangeFailed).
func (c *Client) Exchange(ctx context.Context, text, conversationID string) (string, error) {
	if c.endpoint == "" {
		return "", transportError(errors.New("endpoint is not configured"))
	}

	body, err := json.Marshal(exchangeRequest{Message: text, ConversationID: conversationID})
	if err != nil {
		return "", transportError(fmt.Errorf("marshal payload: %w", err))
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", transportError(fmt.Errorf("create request: %w", err))
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", userAgent)

	started := time.Now()
	response, err := c.client.Do(request)
	if err != nil {
		return "", transportError(fmt.Errorf("call webhook: %w", err))
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(response.Body, maxBodyBytes))
	if err != nil {
		return "", transportError(fmt.Errorf("read response: %w", err))
	}

	c.logger.Debugw("webhook responded",
		"conversation_id", conversationID,
		"status", response.StatusCode,
		"bytes", len(respBody),
		"elapsed", time.Since(started),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", statusError(response.StatusCode, respBody)
	}

	trimmed := bytes.TrimSpace(respBody)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "", decodeError(response.StatusCode, errors.New("empty response body"))
	}

	// valid JSON that is not an object carries no reply fields
	if trimmed[0] != '{' && json.Valid(trimmed) {
		return Placeholder, nil
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", decodeError(response.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	return replyContent(decoded), nil
}

func replyContent(fields map[string]json.RawMessage) string {
	for _, name := range replyFields {
		if text, ok := fieldText(fields[name]); ok {
			return text
		}
	}
	return Placeholder
}

// fieldText renders a non-empty string, a non-zero number or true. Other values
// (null, false, 0, "", objects, arrays) are not usable as a reply.
func fieldText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return "", false
	}

	switch v := value.(type) {
	case string:
		return v, v != ""
	case json.Number:
		f, err := v.Float64()
		if err != nil || f == 0 {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	case bool:
		if !v {
			return "", false
		}
		return "true", true
	default:
		return "", false
	}
}
