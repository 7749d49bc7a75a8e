package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"leadflow/internal/config"
	"leadflow/internal/services"
	"leadflow/internal/textutil"
)

// Fetcher retrieves readable text for a website reference.
type Fetcher interface {
	Fetch(ctx context.Context, reference string) (string, error)
}

// HTTPFetcher fetches pages over HTTP and reduces them to text.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewHTTPFetcher wires an HTTP client; a nil client gets the configured timeout.
func NewHTTPFetcher(cfg config.Enrich, client *http.Client) *HTTPFetcher {
	if client == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	return &HTTPFetcher{client: client, userAgent: cfg.UserAgent, maxBytes: maxBytes}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, reference string) (string, error) {
	target := NormalizeReference(reference)
	if target == "" {
		return "", services.Wrap(services.ErrValidation, "enrich", "fetch", "empty website reference", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "enrich", "build request", target, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", services.Wrap(services.ErrTimeout, "enrich", "fetch", target, err)
		}
		return "", services.Wrap(services.ErrTransient, "enrich", "fetch", target, err)
	}
	defer resp.Body.Close()

	// Every non-2xx is retryable; a misconfigured site often recovers.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout {
			marker = services.ErrTimeout
		}
		return "", services.Wrap(marker, "enrich", "fetch", fmt.Sprintf("%s returned %s", target, resp.Status), nil)
	}

	text, err := textutil.HTMLToText(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		if isTimeout(err) {
			return "", services.Wrap(services.ErrTimeout, "enrich", "read body", target, err)
		}
		return "", services.Wrap(services.ErrTransient, "enrich", "parse document", target, err)
	}
	return text, nil
}

// NormalizeReference adds an https scheme when the reference has none.
func NormalizeReference(reference string) string {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return ""
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return ref
	}
	return "https://" + ref
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
