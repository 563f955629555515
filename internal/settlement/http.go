package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	settlePath      = "/v1/settlements"
	defaultMaxTries = 3
)

type settleResponse struct {
	Reference string `json:"reference"`
}

// HTTPSettler posts instructions as JSON to the ledger service.
// The token id is sent as Idempotency-Key so retries of the same instruction settle once.
type HTTPSettler struct {
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	maxTries uint
}

// NewHTTPSettler returns a settler for baseURL (e.g. http://ledger:8080). timeout bounds one Settle call including retries.
func NewHTTPSettler(baseURL string, timeout time.Duration, client *http.Client) *HTTPSettler {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSettler{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   client,
		timeout:  timeout,
		maxTries: defaultMaxTries,
	}
}

func (s *HTTPSettler) Settle(ctx context.Context, in Instruction) (string, error) {
	if s.baseURL == "" {
		return "", errors.New("settlement: base URL is empty")
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("settlement: marshal: %w", err)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	return backoff.Retry(ctx, func() (string, error) {
		return s.post(ctx, in.TokenID, payload)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(s.maxTries))
}

func (s *HTTPSettler) post(ctx context.Context, tokenID string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+settlePath, bytes.NewReader(payload))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", tokenID)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("settlement: ledger returned %s", resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", backoff.Permanent(fmt.Errorf("%w: %s: %s", ErrRejected, resp.Status, strings.TrimSpace(string(body))))
	}
	var out settleResponse
	if err := json.Unmarshal(body, &out); err != nil || out.Reference == "" {
		return "", backoff.Permanent(fmt.Errorf("settlement: response has no reference"))
	}
	return out.Reference, nil
}
