// Package coreuser talks to the core user platform: delegated end-user token
// verification and point-in-time financial summaries.
package coreuser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kyc-core/internal/auth"
	dErrors "kyc-core/pkg/domain-errors"
)

const defaultTimeout = 10 * time.Second

// summaryWindow is the trading-volume lookback requested with every summary.
const summaryWindow = "30d"

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the HTTP adapter. It satisfies both auth.UserAuth and
// service.SummaryService.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// CheckAuthToken verifies an end-user token against the core platform. A
// rejected token comes back as the user-token-invalid business code so the
// transport maps it to 401.
func (c *Client) CheckAuthToken(ctx context.Context, token, ip string) (*auth.User, error) {
	payload, err := json.Marshal(map[string]string{"authToken": token, "ip": ip})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/auth/check", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("check auth token: %w", err)
	}
	defer drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, dErrors.New(dErrors.CodeUserTokenInvalid, "")
	default:
		return nil, fmt.Errorf("check auth token: unexpected status %d", resp.StatusCode)
	}

	var user struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("check auth token: decode: %w", err)
	}
	return &auth.User{ID: user.ID, Username: user.Username, Email: user.Email}, nil
}

// GetSummary fetches the financial snapshot embedded into a case at
// submission time.
func (c *Client) GetSummary(ctx context.Context, uid int64) (map[string]any, error) {
	url := fmt.Sprintf("%s/v1/users/%d/summary?window=%s", c.baseURL, uid, summaryWindow)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get summary: unexpected status %d", resp.StatusCode)
	}
	var summary map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("get summary: decode: %w", err)
	}
	return summary, nil
}

// drain lets the transport reuse the connection.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	_ = body.Close()
}
