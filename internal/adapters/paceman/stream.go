package paceman

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	writeWait  = 10 * time.Second
)

// Stream consume el feed por websocket: un record JSON por mensaje.
// Se reconecta sola con backoff hasta que ctx se cancela.
type Stream struct {
	url    string
	dialer *websocket.Dialer
	log    *slog.Logger
}

func NewStream(url string, log *slog.Logger) *Stream {
	if log == nil {
		log = slog.Default()
	}
	return &Stream{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log,
	}
}

func sleepForBackoff(b int) time.Duration {
	if b == 0 {
		return 0
	}
	if b < 10 {
		return time.Millisecond * time.Duration(rand.Intn(250)+(500*b))
	}
	return 5 * time.Second
}

// Run bloquea hasta que ctx se cancela.
func (s *Stream) Run(ctx context.Context, handle Handler) error {
	header := http.Header{"User-Agent": []string{"paceman-pings"}}
	var backoff int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepForBackoff(backoff)):
		}

		con, res, err := s.dialer.DialContext(ctx, s.url, header)
		if err != nil {
			s.log.Warn("feed dial failed", "url", s.url, "error", err, "backoff", backoff)
			backoff++
			continue
		}
		s.log.Info("feed connected", "url", s.url, "code", res.StatusCode)

		n, err := s.handleConnection(ctx, con, handle)
		if n > 0 {
			backoff = 0
		} else {
			backoff++
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("feed connection closed", "error", err, "records", n)
	}
}

func (s *Stream) handleConnection(ctx context.Context, con *websocket.Conn, handle Handler) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer con.Close()

	_ = con.SetReadDeadline(time.Now().Add(pongWait))
	con.SetPongHandler(func(string) error {
		return con.SetReadDeadline(time.Now().Add(pongWait))
	})

	// ping + cierre del socket cuando ctx termina
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = con.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				_ = con.Close()
				return
			case <-t.C:
				if err := con.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	n := 0
	for {
		mt, data, err := con.ReadMessage()
		if err != nil {
			return n, err
		}
		_ = con.SetReadDeadline(time.Now().Add(pongWait))
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		var rec domain.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.log.Warn("dropping undecodable feed message", "error", err, "bytes", len(data))
			continue
		}
		n++
		if err := handle(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return n, fmt.Errorf("handler: %w", err)
			}
			s.log.Warn("record handler failed", "nickname", rec.Nickname, "error", err)
		}
	}
}
