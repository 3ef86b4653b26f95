// Package search queries the YouTube Data API for videos.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/vibe/vibe-go/internal/errors"
	"github.com/vibe/vibe-go/internal/network"
	"github.com/vibe/vibe-go/internal/resolver"
)

const (
	defaultBaseURL    = "https://www.googleapis.com/youtube/v3"
	defaultMaxResults = 10
	cacheTTL          = 10 * time.Minute
)

// Result is one video returned by a search
type Result struct {
	VideoID      string
	Title        string
	ChannelTitle string
	ThumbnailURL string
	Link         string
}

type thumbnail struct {
	URL string `json:"url"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   map[string]thumbnail `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client searches YouTube videos through the Data API v3
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	maxResults  int
	rateLimiter *rate.Limiter
	cache       *cache
	logger      *zap.Logger
}

// NewClient creates a search client. requestsPerSecond throttles API calls.
func NewClient(apiKey string, requestsPerSecond float64, maxResults int, logger *zap.Logger) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if maxResults <= 0 || maxResults > 50 {
		maxResults = defaultMaxResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config := network.DefaultClientConfig()
	config.Timeout = 15 * time.Second

	return &Client{
		httpClient:  network.NewClient(config),
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		maxResults:  maxResults,
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 5),
		cache:       newCache(cacheTTL),
		logger:      logger,
	}
}

// WithBaseURL points the client at another API root
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// WithHTTPClient replaces the HTTP client
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

// Search returns videos matching query, in the order the API ranks them
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("search query cannot be empty")
	}
	if c.apiKey == "" {
		return nil, apperrors.NewValidationError("search API key is not configured")
	}

	if cached, ok := c.cache.get(query); ok {
		return cached, nil
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(c.maxResults))
	params.Set("q", query)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewTransferError("search request failed", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransferError("failed to read search response", resp.StatusCode, err)
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, apperrors.NewTransferError(fmt.Sprintf("search failed with status %d", resp.StatusCode), resp.StatusCode, nil)
		}
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("search failed with status %d", resp.StatusCode)
		if payload.Error != nil && payload.Error.Message != "" {
			msg += ": " + payload.Error.Message
		}
		return nil, apperrors.NewTransferError(msg, resp.StatusCode, nil)
	}

	results := make([]Result, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, Result{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelTitle: item.Snippet.ChannelTitle,
			ThumbnailURL: bestThumbnail(item.Snippet.Thumbnails),
			Link:         resolver.WatchURL(item.ID.VideoID),
		})
	}

	c.cache.set(query, results)
	c.logger.Debug("search completed",
		zap.String("query", query),
		zap.Int("results", len(results)))

	return results, nil
}

// bestThumbnail picks the largest named thumbnail the API returned
func bestThumbnail(thumbs map[string]thumbnail) string {
	for _, size := range []string{"maxres", "standard", "high", "medium", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
