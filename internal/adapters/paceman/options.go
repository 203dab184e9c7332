package paceman

import (
	"log/slog"
	"net/http"
)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}
