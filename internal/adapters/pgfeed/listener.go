package pgfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5"

	"github.com/jose-valero/paceman-pings/internal/adapters/paceman"
	"github.com/jose-valero/paceman-pings/internal/domain"
	"github.com/jose-valero/paceman-pings/internal/infra/storage"
)

// Channel es el canal de NOTIFY que usa cmd/webhook.
const Channel = "pace_record"

const (
	catchUpBatch = 200
	// los bigserial pueden commitear fuera de orden entre Lambdas concurrentes:
	// cada catch-up relee esta ventana por debajo del último id visto
	catchUpWindow = 64
	deliveredSize = 4096
	deliveredTTL  = time.Hour
)

// Source abstrae FeedRepo para poder testear sin Postgres.
type Source interface {
	Payload(ctx context.Context, id int64) ([]byte, error)
	Since(ctx context.Context, afterID int64, limit int) ([]storage.FeedRecord, error)
	LastID(ctx context.Context) (int64, error)
}

// Listener hace LISTEN pace_record y entrega cada record guardado por el webhook.
// Al reconectar se pone al día con lo insertado mientras no escuchaba.
type Listener struct {
	dsn    string
	source Source
	log    *slog.Logger

	// floor: ids <= floor son backlog previo al arranque y no se entregan
	floor     int64
	lastID    int64
	delivered *expirable.LRU[int64, struct{}]
}

func NewListener(dsn string, source Source, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{
		dsn:       dsn,
		source:    source,
		log:       log,
		delivered: expirable.NewLRU[int64, struct{}](deliveredSize, nil, deliveredTTL),
	}
}

// Run bloquea hasta que ctx se cancela.
func (l *Listener) Run(ctx context.Context, handle paceman.Handler) error {
	// arrancamos desde el final: el backlog previo al arranque ya es viejo
	id, err := l.source.LastID(ctx)
	if err != nil {
		return fmt.Errorf("feed last id: %w", err)
	}
	l.floor, l.lastID = id, id

	backoff := time.Second
	for {
		err := l.listen(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Warn("pg listener disconnected", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (l *Listener) listen(ctx context.Context, handle paceman.Handler) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}
	l.log.Info("pg listener ready", "channel", Channel, "last_id", l.lastID)

	// lo que llegó entre la última notificación y el LISTEN
	if err := l.catchUp(ctx, handle); err != nil {
		return err
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(n.Payload, 10, 64)
		if err != nil {
			l.log.Warn("ignoring notification with bad payload", "payload", n.Payload)
			continue
		}
		if err := l.onNotify(ctx, handle, id); err != nil {
			return err
		}
	}
}

// onNotify entrega el record id salvo que ya se haya entregado. Un id por debajo
// de lastID no es un repetido: puede ser un commit que llegó tarde.
func (l *Listener) onNotify(ctx context.Context, handle paceman.Handler, id int64) error {
	if id <= l.floor || l.delivered.Contains(id) {
		return nil
	}
	if id > l.lastID+1 {
		// hubo un hueco (notificación perdida o ids salteados): leemos en orden
		return l.catchUp(ctx, handle)
	}
	payload, err := l.source.Payload(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// el janitor ya lo borró
		l.markSeen(id)
		return nil
	}
	if err != nil {
		return err
	}
	l.deliver(ctx, handle, id, payload)
	return nil
}

func (l *Listener) catchUp(ctx context.Context, handle paceman.Handler) error {
	cursor := l.lastID - catchUpWindow
	if cursor < l.floor {
		cursor = l.floor
	}
	for {
		recs, err := l.source.Since(ctx, cursor, catchUpBatch)
		if err != nil {
			return fmt.Errorf("feed catch up: %w", err)
		}
		for _, fr := range recs {
			cursor = fr.ID
			if l.delivered.Contains(fr.ID) {
				continue
			}
			l.deliver(ctx, handle, fr.ID, fr.Payload)
		}
		if len(recs) < catchUpBatch {
			return nil
		}
	}
}

func (l *Listener) markSeen(id int64) {
	l.delivered.Add(id, struct{}{})
	if id > l.lastID {
		l.lastID = id
	}
}

func (l *Listener) deliver(ctx context.Context, handle paceman.Handler, id int64, payload []byte) {
	l.markSeen(id)
	var rec domain.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		l.log.Warn("dropping undecodable feed record", "id", id, "error", err)
		return
	}
	if err := handle(ctx, rec); err != nil {
		l.log.Warn("record handler failed", "id", id, "nickname", rec.Nickname, "error", err)
	}
}
