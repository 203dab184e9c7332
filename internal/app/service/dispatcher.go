package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

// Dispatcher corre cada record en su propia goroutine, con un tope de records en vuelo.
// Un record que aborta o falla nunca frena a los demás.
type Dispatcher struct {
	notify *NotifyService
	sem    *semaphore.Weighted
	log    *slog.Logger
	wg     sync.WaitGroup
}

func NewDispatcher(notify *NotifyService, maxInflight int64, log *slog.Logger) *Dispatcher {
	if maxInflight <= 0 {
		maxInflight = 16
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{notify: notify, sem: semaphore.NewWeighted(maxInflight), log: log}
}

// Submit bloquea solo si ya hay maxInflight records en proceso; ctx acota esa espera.
// Una vez aceptado, el record se procesa completo aunque ctx se cancele
// (cada llamada al sink tiene su propio timeout).
func (d *Dispatcher) Submit(ctx context.Context, rec domain.Record) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	d.wg.Add(1)
	inflightGauge.Inc()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("panic while routing record", "panic", r, "nickname", rec.Nickname)
			}
			inflightGauge.Dec()
			d.sem.Release(1)
			d.wg.Done()
		}()
		log := d.log.With("trace_id", uuid.NewString())
		res := d.notify.route(context.WithoutCancel(ctx), log, rec)
		log.Debug("record routed", "verdict", res.Verdict.Kind.String(), "aborted", res.Aborted, "guilds", len(res.Outcomes))
	}()
	return nil
}

// Wait espera a que terminen los records en vuelo.
func (d *Dispatcher) Wait() { d.wg.Wait() }
