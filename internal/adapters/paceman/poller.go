package paceman

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Poller consulta LiveRuns cada intervalo y entrega solo lo que cambió.
// Un run se identifica por (userId, lastUpdated): mismo par = mismo record.
type Poller struct {
	client   *Client
	interval time.Duration
	seen     *expirable.LRU[string, struct{}]
	log      *slog.Logger
}

func NewPoller(client *Client, interval time.Duration, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		client:   client,
		interval: interval,
		// un run vivo se re-lista en cada poll; con 1h de TTL no lo re-entregamos
		seen: expirable.NewLRU[string, struct{}](10_000, nil, time.Hour),
		log:  log,
	}
}

// Run bloquea hasta que ctx se cancela.
func (p *Poller) Run(ctx context.Context, handle Handler) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		p.pollOnce(ctx, handle)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context, handle Handler) int {
	runs, err := p.client.LiveRuns(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("live runs poll failed", "error", err)
		}
		return 0
	}
	delivered := 0
	for _, rec := range runs {
		key := rec.PlayerKey() + "|" + strconv.FormatInt(rec.LastUpdated, 10)
		if p.seen.Contains(key) {
			continue
		}
		p.seen.Add(key, struct{}{})
		if err := handle(ctx, rec); err != nil {
			p.log.Warn("record handler failed", "nickname", rec.Nickname, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
