package paceman

import (
	"context"
	"net/url"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

// LiveRuns devuelve los runs en curso (un record por runner).
func (c *Client) LiveRuns(ctx context.Context) ([]domain.Record, error) {
	q := url.Values{}
	q.Set("gameVersion", "1.16.1")
	var out []domain.Record
	if err := c.doJSON(ctx, "GET", "/ars/liveruns", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
