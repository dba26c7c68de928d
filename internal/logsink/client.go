package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const logsPath = "/evaluation-service/logs"

type ClientConfig struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Client posts entries to the log service.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client. The logger receives the client's own delivery
// failures and must not be routed back into the sink.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type logResponse struct {
	LogID string `json:"logID"`
}

// linearBackOff waits delay, 2*delay, 3*delay and so on between attempts.
type linearBackOff struct {
	delay time.Duration
	n     int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.delay
}

func (b *linearBackOff) Reset() {
	b.n = 0
}

// Log validates the entry and sends it. It returns the id assigned by the
// service, or "" when there is no token or every attempt failed. Only
// validation problems are reported as errors.
func (c *Client) Log(ctx context.Context, entry Entry) (string, error) {
	const op = "logsink.Client.Log"

	if err := entry.Validate(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if c.cfg.Token == "" {
		return "", nil
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal entry: %w", op, err)
	}

	var logID string

	send := func() error {
		id, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		logID = id
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{delay: c.cfg.RetryDelay}, uint64(c.cfg.RetryAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(send, b); err != nil {
		c.logger.Warn("failed to deliver log entry",
			slog.String("op", op),
			slog.Int("attempts", c.cfg.RetryAttempts),
			slog.Any("err", err),
		)
		return "", nil
	}

	return logID, nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + logsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out logResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return out.LogID, nil
}
