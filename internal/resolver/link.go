package resolver

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/vibe/vibe-go/internal/errors"
)

// supportedHosts is the accepted host family; subdomains of these are accepted too
var supportedHosts = []string{"youtube.com", "youtu.be"}

// ValidateLink checks that link is an absolute http(s) URL on a supported host.
// It never touches the network.
func ValidateLink(link string) error {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return apperrors.NewInvalidLinkError(link, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return apperrors.NewInvalidLinkError(link, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}

	host := strings.ToLower(u.Hostname())
	for _, supported := range supportedHosts {
		if host == supported || strings.HasSuffix(host, "."+supported) {
			return nil
		}
	}

	return apperrors.NewInvalidLinkError(link, fmt.Errorf("unsupported host %q", host))
}

// VideoID extracts the video id of a watch, short or youtu.be link
func VideoID(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	if host == "youtu.be" {
		return strings.Trim(u.Path, "/")
	}

	if v := u.Query().Get("v"); v != "" {
		return v
	}

	for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
		if strings.HasPrefix(u.Path, prefix) {
			return strings.Trim(strings.TrimPrefix(u.Path, prefix), "/")
		}
	}

	return ""
}

// PlaylistID extracts the list= parameter of a playlist link
func PlaylistID(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}

// WatchURL builds the canonical watch link of a video id
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}
