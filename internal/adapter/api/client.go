package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/ratelimit"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	baseRetryDelay    = 500 * time.Millisecond
)

// TokenSource supplies the current access token, "" when signed out
type TokenSource interface {
	Token() string
}

// Options tune the client
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond int // 0 = unlimited
	MaxRetries        int // retries on 5xx responses; 0 = default, negative = none
	RetryDelay        time.Duration
}

// Client talks to the OTT platform REST API. It implements
// domain.AccountRepository and domain.MediaRepository.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	limiter    ratelimit.Limiter
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient creates a new API client
func NewClient(baseURL string, tokens TokenSource, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = baseRetryDelay
	}

	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		limiter = ratelimit.New(opts.RequestsPerSecond)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter:    limiter,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// doRequest performs an HTTP request against the API.
// Includes retry logic with exponential backoff for 5xx server errors
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	reqURL := c.baseURL + path

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Wait before retry (exponential backoff)
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		c.limiter.Take()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		c.logger.Debug("api request", "method", method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("api request failed", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, domain.ErrAuthFailed
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrItemNotFound
		case resp.StatusCode >= 500 && resp.StatusCode < 600:
			lastErr = fmt.Errorf("server error: %d - %s", resp.StatusCode, string(respBody))
			c.logger.Warn("api server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", c.maxRetries,
				"path", path,
			)
			continue
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			c.logger.Error("api request error", "status", resp.StatusCode, "body", string(respBody))
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return respBody, nil
	}

	c.logger.Error("api request failed after retries", "error", lastErr, "url", reqURL)
	return nil, lastErr
}

func decode[T any](body []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &v, nil
}

// personalShelves is the request body of UpdatePersonalShelves
type personalShelves struct {
	Favorites []domain.FavoriteItem     `json:"favorites"`
	History   []domain.WatchHistoryItem `json:"history"`
}

// GetExternalData returns the personal shelves stored on the account
func (c *Client) GetExternalData(ctx context.Context) (domain.ExternalData, error) {
	if c.token() == "" {
		return domain.ExternalData{}, domain.ErrNotAuthenticated
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/account/external-data", nil)
	if err != nil {
		return domain.ExternalData{}, err
	}
	data, err := decode[domain.ExternalData](body)
	if err != nil {
		return domain.ExternalData{}, err
	}
	return *data, nil
}

// UpdatePersonalShelves replaces both shelves on the account
func (c *Client) UpdatePersonalShelves(ctx context.Context, favorites []domain.FavoriteItem, history []domain.WatchHistoryItem) error {
	if c.token() == "" {
		return domain.ErrNotAuthenticated
	}
	if favorites == nil {
		favorites = []domain.FavoriteItem{}
	}
	if history == nil {
		history = []domain.WatchHistoryItem{}
	}
	_, err := c.doRequest(ctx, http.MethodPut, "/v1/account/personal-shelves", personalShelves{
		Favorites: favorites,
		History:   history,
	})
	return err
}

// GetMedia returns a single media item
func (c *Client) GetMedia(ctx context.Context, mediaID string) (*domain.PlaylistItem, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/media/"+url.PathEscape(mediaID), nil)
	if err != nil {
		return nil, err
	}
	return decode[domain.PlaylistItem](body)
}

// GetPlaylist returns a playlist or series feed
func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (*domain.Playlist, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/playlists/"+url.PathEscape(playlistID), nil)
	if err != nil {
		return nil, err
	}
	return decode[domain.Playlist](body)
}

// GetEntitlement returns the customer's access to a media item. Anonymous
// callers are never entitled.
func (c *Client) GetEntitlement(ctx context.Context, mediaID string) (*domain.Entitlement, error) {
	if c.token() == "" {
		return &domain.Entitlement{MediaID: mediaID}, nil
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/entitlements/"+url.PathEscape(mediaID), nil)
	if errors.Is(err, domain.ErrItemNotFound) {
		return &domain.Entitlement{MediaID: mediaID}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode[domain.Entitlement](body)
}
