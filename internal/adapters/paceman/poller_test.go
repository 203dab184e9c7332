package paceman

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

func TestPoller_DeliversOnlyNewRecords(t *testing.T) {
	var body atomic.Value
	body.Store(liveRunsBody)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body.Load().(string)))
	}))
	defer srv.Close()

	p := NewPoller(New(WithBaseURL(srv.URL)), time.Second, nil)
	var got []string
	handle := func(ctx context.Context, rec domain.Record) error {
		got = append(got, rec.Nickname)
		return nil
	}

	assert.Equal(t, 2, p.pollOnce(context.Background(), handle))
	assert.Equal(t, 0, p.pollOnce(context.Background(), handle))

	// "a" avanzó: nuevo lastUpdated
	body.Store(`[{"nickname":"a","user":{"uuid":"u-a","liveAccount":"a_ttv"},"lastUpdated":11,"eventList":[{"eventId":"rsg.first_portal","igt":300000}]}]`)
	assert.Equal(t, 1, p.pollOnce(context.Background(), handle))
	assert.Equal(t, []string{"a", "b", "a"}, got)
}

func TestPoller_HandlerErrorDoesNotStopBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(liveRunsBody))
	}))
	defer srv.Close()

	p := NewPoller(New(WithBaseURL(srv.URL)), time.Second, nil)
	calls := 0
	n := p.pollOnce(context.Background(), func(ctx context.Context, rec domain.Record) error {
		calls++
		if rec.Nickname == "a" {
			return errors.New("boom")
		}
		return nil
	})
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, n)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := NewPoller(New(WithBaseURL(srv.URL)), 10*time.Millisecond, nil).Run(ctx, func(context.Context, domain.Record) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
