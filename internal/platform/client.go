package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pelicanhq/pelican/internal/config"
)

// Client is a thin REST client for the social platform's v2 API. It covers the
// three calls the sweeps need: publish, token refresh, and timeline fetch.
type Client struct {
	config *config.PlatformConfig
	client *http.Client
	logger *zap.Logger
}

func NewClient(cfg *config.PlatformConfig, logger *zap.Logger) *Client {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Publish posts the given text on behalf of the token's owner and returns the
// platform-assigned post id.
func (c *Client) Publish(ctx context.Context, accessToken, text string) (*PublishedPost, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/2/posts", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("platform API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data PublishedPost `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response.Data, nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.config.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/2/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("platform API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}

// UserTimeline fetches the user's most recent posts with public metrics.
// maxResults is capped by the platform at 100 per page; one page is enough for
// the analytics sweep, so no cursor handling here.
func (c *Client) UserTimeline(ctx context.Context, accessToken, platformUserID string, maxResults int) ([]TimelinePost, error) {
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 100
	}

	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?max_results=%d&tweet.fields=public_metrics,created_at",
		c.config.BaseURL, platformUserID, maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("platform API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data []TimelinePost `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Data, nil
}
