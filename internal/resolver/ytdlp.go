package resolver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/vibe/vibe-go/internal/errors"
)

// Format is one stream a video offers
type Format struct {
	Itag     int
	MimeType string
	Bitrate  int
}

// StreamLookup fetches the stream list of link and the direct URL of the
// stream picked by selector ("itag=N"; empty lets the library choose).
type StreamLookup func(ctx context.Context, link, selector string) (string, []Format, error)

// ytdlpLookup resolves streams in-process through the ytdlp library
func ytdlpLookup(client *http.Client) StreamLookup {
	return func(ctx context.Context, link, selector string) (string, []Format, error) {
		d := ytdlp.New()
		if client != nil {
			d = d.WithHTTPClient(client)
		}
		if selector != "" {
			d = d.WithFormat(selector, "")
		}

		mediaURL, info, err := d.ResolveURL(ctx, link)
		if err != nil {
			return "", nil, err
		}

		var formats []Format
		if info != nil {
			formats = make([]Format, 0, len(info.Formats))
			for _, f := range info.Formats {
				formats = append(formats, Format{Itag: f.Itag, MimeType: f.MimeType, Bitrate: f.Bitrate})
			}
		}
		return mediaURL, formats, nil
	}
}

// YtDlpResolver resolves watch links to direct audio stream URLs
type YtDlpResolver struct {
	timeout     time.Duration
	rateLimiter *rate.Limiter
	lookup      StreamLookup
	logger      *zap.Logger
}

// NewYtDlpResolver creates a resolver. requestsPerSecond throttles resolver calls.
// A nil client uses the library's default transport.
func NewYtDlpResolver(client *http.Client, requestsPerSecond float64, timeout time.Duration, logger *zap.Logger) *YtDlpResolver {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YtDlpResolver{
		timeout:     timeout,
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 2),
		lookup:      ytdlpLookup(client),
		logger:      logger,
	}
}

// WithLookup replaces the stream lookup
func (r *YtDlpResolver) WithLookup(lookup StreamLookup) *YtDlpResolver {
	r.lookup = lookup
	return r
}

// Resolve returns a directly fetchable URL of the best audio-only stream of link.
// Every failure is a resolution error.
func (r *YtDlpResolver) Resolve(ctx context.Context, link string) (string, error) {
	if err := ValidateLink(link); err != nil {
		return "", err
	}

	if err := r.rateLimiter.Wait(ctx); err != nil {
		return "", apperrors.NewResolutionError("rate limiter error", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	_, formats, err := r.lookup(ctx, link, "")
	if err != nil {
		return "", apperrors.NewResolutionError("failed to read video formats", err)
	}

	best, ok := bestAudio(formats)
	if !ok {
		return "", apperrors.NewResolutionError("no downloadable audio stream found", nil)
	}

	mediaURL, _, err := r.lookup(ctx, link, fmt.Sprintf("itag=%d", best.Itag))
	if err != nil {
		return "", apperrors.NewResolutionError(fmt.Sprintf("failed to resolve audio stream itag %d", best.Itag), err)
	}
	if !strings.HasPrefix(mediaURL, "http://") && !strings.HasPrefix(mediaURL, "https://") {
		return "", apperrors.NewResolutionError(fmt.Sprintf("unexpected stream url %q", mediaURL), nil)
	}

	r.logger.Debug("link resolved",
		zap.String("link", link),
		zap.Int("itag", best.Itag),
		zap.String("mime_type", best.MimeType),
		zap.Int("bitrate", best.Bitrate),
		zap.Duration("elapsed", time.Since(start)))

	return mediaURL, nil
}

// bestAudio picks the highest-bitrate audio-only stream
func bestAudio(formats []Format) (Format, bool) {
	var best Format
	found := false
	for _, f := range formats {
		if !strings.HasPrefix(strings.ToLower(f.MimeType), "audio/") {
			continue
		}
		if !found || f.Bitrate > best.Bitrate {
			best = f
			found = true
		}
	}
	return best, found
}
