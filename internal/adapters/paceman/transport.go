package paceman

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBase = "https://paceman.gg/api"

type Client struct {
	http    *http.Client
	baseURL string
	log     *slog.Logger
}

func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBase,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	return c
}

// doJSON: construye URL, maneja 404 y 429 con Retry-After simple.
func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, out any) error {
	return c.doJSONRetry(ctx, method, path, q, out, true)
}

func (c *Client) doJSONRetry(ctx context.Context, method, path string, q url.Values, out any, retry bool) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("paceman request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "paceman-pings")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paceman http: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests && retry {
		// backoff básico leyendo Retry-After (segundos)
		if sec, _ := strconv.Atoi(res.Header.Get("Retry-After")); sec > 0 {
			c.log.Warn("paceman rate limited", "retry_after", sec)
			select {
			case <-time.After(time.Duration(sec) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			// un reintento
			return c.doJSONRetry(ctx, method, path, q, out, false)
		}
	}

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	return json.NewDecoder(res.Body).Decode(out)
}
