// Package enrichment talks to the profile-lookup webhook that turns an
// Instagram handle into a photo, a few posts and AI insights.
package enrichment

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

	"ai-secretary-funnel-be/internal/entity"
)

var ErrNotConfigured = errors.New("enrichment webhook url is not configured")

type Result struct {
	ProfilePhotoUrl string             `json:"profilePhotoUrl"`
	SamplePosts     []string           `json:"samplePosts"`
	AiInsights      *entity.AiInsights `json:"aiInsights"`
}

// Found reports whether the lookup produced anything worth showing.
func (r Result) Found() bool {
	return r.ProfilePhotoUrl != "" || len(r.SamplePosts) > 0 || r.AiInsights != nil
}

type Client struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewClient(url, token string) *Client {
	return &Client{
		URL:   url,
		Token: token,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type lookupRequest struct {
	InstagramHandle string `json:"instagramHandle"`
}

// Some deployments of the webhook wrap the payload in {"data": ...}.
type lookupResponse struct {
	Result
	Data *Result `json:"data"`
}

func (c *Client) Lookup(ctx context.Context, handle string) (Result, error) {
	if strings.TrimSpace(c.URL) == "" {
		return Result{}, ErrNotConfigured
	}

	body, err := json.Marshal(lookupRequest{InstagramHandle: handle})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("enrichment request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("enrichment error: status %d, body: %s", resp.StatusCode, string(raw))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Result{}, nil
	}

	var parsed lookupResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Data != nil {
		return *parsed.Data, nil
	}
	return parsed.Result, nil
}
