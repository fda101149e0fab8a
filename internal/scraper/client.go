// Package scraper fetches remote corpus pages politely: rate limited,
// retried with backoff, and sent with a random browser user agent.
package scraper

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corpix/uarand"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Client is an HTTP client for corpus scraping.
type Client struct {
	httpClient  *http.Client
	rateLimiter *RateLimiter
	maxRetries  int
	retryDelay  time.Duration
	userAgent   func() string
}

// NewClient creates a scraper client. workers bounds request bursts,
// minDelay/maxDelay bound the pause after each request.
func NewClient(timeout time.Duration, workers int, minDelay, maxDelay time.Duration, maxRetries int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: NewRateLimiter(workers, minDelay, maxDelay),
		maxRetries:  maxRetries,
		retryDelay:  time.Second,
		userAgent:   uarand.GetRandom,
	}
}

// Get performs a GET request with rate limiting and retries.
// Caller is responsible for closing the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	var resp *http.Response

	err := RetryWithBackoff(ctx, c.maxRetries, c.retryDelay, 30*time.Second, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return &permanentError{err: fmt.Errorf("failed to create request: %w", err)}
		}
		req.Header.Set("User-Agent", c.userAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7")
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("rate limited for %s: status %d", url, resp.StatusCode)
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error for %s: status %d", url, resp.StatusCode)
		default:
			return &permanentError{err: fmt.Errorf("client error for %s: status %d", url, resp.StatusCode)}
		}
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetDocument fetches url and parses it as HTML.
func (c *Client) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	reader, closeFn, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// GetText fetches url and returns its body as UTF-8 text.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	reader, closeFn, err := decodeBody(resp)
	if err != nil {
		return "", err
	}
	defer closeFn()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}

// decodeBody undoes gzip and converts legacy Vietnamese pages
// (windows-1258) to UTF-8.
func decodeBody(resp *http.Response) (io.Reader, func(), error) {
	var reader io.Reader = resp.Body
	closeFn := func() {}

	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		reader = gz
		closeFn = func() { _ = gz.Close() }
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "windows-1258") {
		reader = transform.NewReader(reader, charmap.Windows1258.NewDecoder())
	}
	return reader, closeFn, nil
}
