package network

import (
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	// sharedClient serves small API calls (search, artwork)
	sharedClient     *http.Client
	sharedClientOnce sync.Once
)

// ClientConfig holds configuration for HTTP client
type ClientConfig struct {
	// Timeout bounds a whole exchange including the body read
	Timeout time.Duration
	// RequestTimeout bounds the wait for response headers
	RequestTimeout      time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	UserAgent           string
}

// DefaultClientConfig returns the default client configuration
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:             30 * time.Second,
		RequestTimeout:      30 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		UserAgent:           "vibe-go/1.0",
	}
}

// userAgentTransport stamps a User-Agent on requests that lack one
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// NewClient creates a new HTTP client with pooled connections
func NewClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = DefaultClientConfig()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.RequestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: config.Timeout,
		Transport: &userAgentTransport{
			base:      transport,
			userAgent: config.UserAgent,
		},
	}
}

// GetDefaultClient returns a shared HTTP client for short API requests
func GetDefaultClient() *http.Client {
	sharedClientOnce.Do(func() {
		sharedClient = NewClient(DefaultClientConfig())
	})
	return sharedClient
}

// GetDownloadClient returns an HTTP client for long media transfers.
// requestTimeout bounds the wait for the first response byte and
// resourceTimeout bounds the whole transfer.
func GetDownloadClient(requestTimeout, resourceTimeout time.Duration) *http.Client {
	config := DefaultClientConfig()
	config.RequestTimeout = requestTimeout
	config.Timeout = resourceTimeout
	config.IdleConnTimeout = 120 * time.Second
	return NewClient(config)
}
