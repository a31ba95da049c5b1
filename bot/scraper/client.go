// Package scraper retrieves and parses the third-party SMS inbox page for a
// registered phone number, yielding Apple verification message bodies.
package scraper

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Fetcher retrieves the raw inbox page for a phone number (digits only).
type Fetcher interface {
	FetchPage(ctx context.Context, phoneDigits string) (string, error)
}

const defaultBaseURL = "https://receive-sms-free.cc/Free-USA-Phone-Number"

// The inbox site blocks obvious bots; requests carry a rotating desktop
// browser profile.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

// ClientConfig tunes the page fetcher. Zero values fall back to the ranges
// the inbox site tolerates.
type ClientConfig struct {
	BaseURL           string
	ConnectTimeoutMin time.Duration
	ConnectTimeoutMax time.Duration
	ReadTimeoutMin    time.Duration
	ReadTimeoutMax    time.Duration
}

func (c *ClientConfig) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.ConnectTimeoutMin <= 0 {
		c.ConnectTimeoutMin = 5 * time.Second
	}
	if c.ConnectTimeoutMax < c.ConnectTimeoutMin {
		c.ConnectTimeoutMax = 8 * time.Second
	}
	if c.ReadTimeoutMin <= 0 {
		c.ReadTimeoutMin = 10 * time.Second
	}
	if c.ReadTimeoutMax < c.ReadTimeoutMin {
		c.ReadTimeoutMax = 15 * time.Second
	}
}

// Client fetches inbox pages with per-request randomized timeouts and
// browser-shaped headers.
type Client struct {
	cfg ClientConfig
}

// NewClient builds a page fetcher from config.
func NewClient(cfg ClientConfig) *Client {
	cfg.normalize()
	return &Client{cfg: cfg}
}

// FetchPage performs a single GET of the inbox page. Non-2xx responses and
// network failures are transport errors; interpreting them is the caller's job.
func (c *Client) FetchPage(ctx context.Context, phoneDigits string) (string, error) {
	url := fmt.Sprintf("%s/%s/", c.cfg.BaseURL, phoneDigits)

	connectTimeout := uniformDuration(c.cfg.ConnectTimeoutMin, c.cfg.ConnectTimeoutMax)
	readTimeout := uniformDuration(c.cfg.ReadTimeoutMin, c.cfg.ReadTimeoutMax)

	// A fresh transport per request so the randomized connect/read pair
	// actually applies; connection reuse is worthless against this site anyway.
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	client := &http.Client{
		Timeout:   connectTimeout + readTimeout,
		Transport: transport,
	}
	defer transport.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("scrape request: %w", err)
	}
	for k, v := range requestHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("scrape fetch: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("scrape read: %w", err)
	}
	return string(body), nil
}

func requestHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                userAgents[rand.Intn(len(userAgents))],
		"DNT":                       strconv.Itoa(rand.Intn(2)),
		"Connection":                "keep-alive",
		"Referer":                   "https://www.google.com/",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		// Accept-Encoding is left to the transport so gzip bodies come back
		// decompressed.
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "cross-site",
		"Sec-Fetch-User":            "?1",
	}
}

var nonDigitRe = regexp.MustCompile(`[^\d]`)

// PhoneDigits strips everything but digits from a stored phone number.
func PhoneDigits(phone string) string {
	return nonDigitRe.ReplaceAllString(phone, "")
}

// uniformDuration returns a duration uniformly distributed in [min, max].
func uniformDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

var _ Fetcher = (*Client)(nil)
