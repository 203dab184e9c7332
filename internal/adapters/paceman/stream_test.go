package paceman

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

func TestStream_ReadsRecordsAndReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var (
		mu    sync.Mutex
		conns int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		_ = c.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = c.WriteMessage(websocket.TextMessage, []byte(
			`{"nickname":"r`+string(rune('0'+n))+`","userId":"u","liveAccount":"x","lastUpdated":1,"eventList":[{"eventId":"rsg.enter_bastion","igt":1}]}`))
		// cierra: el cliente tiene que reconectar
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	s := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, rec domain.Record) error {
			got <- rec.Nickname
			return nil
		})
	}()

	for _, want := range []string{"r1", "r2"} {
		select {
		case nick := <-got:
			assert.Equal(t, want, nick)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for record")
		}
	}
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
}
