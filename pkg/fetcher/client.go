package fetcher

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

// DefaultUserAgent is sent when no User-Agent header is configured
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Stream is an open response body. Callers must Close it.
type Stream struct {
	io.ReadCloser
	URL           string
	ContentType   string
	ContentLength int64
}

// Client performs single GET requests. It never retries; retry policy
// belongs to the caller.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates a fetcher whose requests are bounded by timeout
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      DefaultUserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Accept-Encoding": "gzip, br",
			"Cache-Control":   "no-cache",
		},
		logger: log,
	}
}

// NewClientFromConfig applies the timeout, user agent and extra headers of cfg
func NewClientFromConfig(cfg config.HTTPConfig, log logger.Logger) *Client {
	c := NewClient(cfg.Timeout, log)
	if cfg.UserAgent != "" {
		c.SetHeader("User-Agent", cfg.UserAgent)
	}
	c.SetHeaders(cfg.Headers)
	return c
}

// SetHeader sets a custom header for every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// FetchText GETs url and returns the body decoded to UTF-8.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	stream, err := c.get(ctx, "fetch text", url)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	reader, err := charset.NewReader(stream, stream.ContentType)
	if err != nil {
		// Unknown charset; fall back to the raw bytes
		reader = stream
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", errs.Network("read body", url, 0, err)
	}

	c.logger.DebugWithFields("fetched text", map[string]interface{}{
		"url":  url,
		"size": len(body),
	})

	return string(body), nil
}

// FetchStream GETs url and returns the still-open body
func (c *Client) FetchStream(ctx context.Context, url string) (*Stream, error) {
	return c.get(ctx, "fetch stream", url)
}

func (c *Client) get(ctx context.Context, op, url string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Network(op, url, 0, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, errs.Network(op, url, 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errs.Network(op, url, resp.StatusCode, fmt.Errorf("unexpected status: %s", resp.Status))
	}

	body, err := decodeBody(resp)
	if err != nil {
		resp.Body.Close()
		return nil, errs.Network(op, url, resp.StatusCode, err)
	}

	contentLength := resp.ContentLength
	if resp.Header.Get("Content-Encoding") != "" {
		contentLength = -1
	}

	return &Stream{
		ReadCloser:    body,
		URL:           url,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: contentLength,
	}, nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, err
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// decodeBody undoes the Content-Encoding we advertised in Accept-Encoding.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		return &decodedBody{Reader: gz, closers: []io.Closer{gz, resp.Body}}, nil
	case "br":
		return &decodedBody{Reader: brotli.NewReader(resp.Body), closers: []io.Closer{resp.Body}}, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}

type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (d *decodedBody) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
