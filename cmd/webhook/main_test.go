package main

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{"nickname":"Feinberg","userId":"u1","liveAccount":"feinberg","lastUpdated":1,"eventList":[{"eventId":"rsg.enter_nether","igt":90000}],"contextEventList":[]}`

func withSecret(t *testing.T, v string) {
	t.Helper()
	prev := secretValue
	secretValue = v
	t.Cleanup(func() { secretValue = prev })
}

func TestHandlerRejectsBadSecret(t *testing.T) {
	withSecret(t, "s3cret")
	res, err := handler(context.Background(), events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{"x-paceman-secret": "nope"},
		Body:    sample,
	})
	require.NoError(t, err)
	assert.Equal(t, 401, res.StatusCode)
}

func TestHandlerRejectsWithoutConfiguredSecret(t *testing.T) {
	withSecret(t, "")
	res, err := handler(context.Background(), events.APIGatewayV2HTTPRequest{Body: sample})
	require.NoError(t, err)
	assert.Equal(t, 401, res.StatusCode)
}

func TestHandlerAcceptsBase64Record(t *testing.T) {
	withSecret(t, "s3cret")
	res, err := handler(context.Background(), events.APIGatewayV2HTTPRequest{
		Headers:         map[string]string{"x-paceman-secret": "s3cret"},
		Body:            base64.StdEncoding.EncodeToString([]byte(sample)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Contains(t, res.Body, `"stored":false`)
}

func TestHandlerRejectsGarbage(t *testing.T) {
	withSecret(t, "s3cret")
	for _, body := range []string{`not json`, `{"eventList":[]}`} {
		res, err := handler(context.Background(), events.APIGatewayV2HTTPRequest{
			QueryStringParameters: map[string]string{"wh": "s3cret"},
			Body:                  body,
		})
		require.NoError(t, err)
		assert.Equal(t, 400, res.StatusCode, body)
	}
}

func TestDedupKeyStable(t *testing.T) {
	assert.Equal(t, dedupKey(sample), dedupKey(sample))
	assert.NotEqual(t, dedupKey(sample), dedupKey(sample+" "))
	assert.Len(t, dedupKey(sample), 64)
}

// memDB imita Postgres lo justo: lo escrito en una tx solo queda al hacer commit.
type memDB struct {
	dedup      map[string]bool
	records    []string
	notified   []string
	failInsert int // cuántos inserts de feed_records fallan
}

func newMemDB() *memDB { return &memDB{dedup: map[string]bool{}} }

func (m *memDB) Begin(ctx context.Context) (pgx.Tx, error) { return &memTx{db: m}, nil }

type memTx struct {
	pgx.Tx
	db       *memDB
	keys     []string
	records  []string
	notified []string
	done     bool
}

func (t *memTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "webhook_dedup"):
		k := args[0].(string)
		if t.db.dedup[k] {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		t.keys = append(t.keys, k)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "pg_notify"):
		t.notified = append(t.notified, args[1].(string))
		return pgconn.NewCommandTag("SELECT 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected sql: " + sql)
}

func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if t.db.failInsert > 0 {
		t.db.failInsert--
		return memRow{err: errors.New("disk full")}
	}
	t.records = append(t.records, args[0].(string))
	return memRow{id: int64(len(t.db.records) + len(t.records))}
}

func (t *memTx) Commit(ctx context.Context) error {
	for _, k := range t.keys {
		t.db.dedup[k] = true
	}
	t.db.records = append(t.db.records, t.records...)
	t.db.notified = append(t.db.notified, t.notified...)
	t.done = true
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	return nil
}

type memRow struct {
	id  int64
	err error
}

func (r memRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.id
	return nil
}

func withDB(t *testing.T, m *memDB) {
	t.Helper()
	prev := db
	db = m
	t.Cleanup(func() { db = prev })
}

func authed(body string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{"x-paceman-secret": "s3cret"},
		Body:    body,
	}
}

func TestHandlerStoresAndDedups(t *testing.T) {
	withSecret(t, "s3cret")
	m := newMemDB()
	withDB(t, m)

	res, err := handler(context.Background(), authed(sample))
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Contains(t, res.Body, `"id":1`)
	assert.Equal(t, []string{sample}, m.records)
	assert.Equal(t, []string{"1"}, m.notified)

	res, err = handler(context.Background(), authed(sample))
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Contains(t, res.Body, `"duplicate":true`)
	assert.Len(t, m.records, 1)
	assert.Len(t, m.notified, 1)
}

func TestHandlerFailedInsertAllowsRetry(t *testing.T) {
	withSecret(t, "s3cret")
	m := newMemDB()
	m.failInsert = 1
	withDB(t, m)

	res, err := handler(context.Background(), authed(sample))
	require.NoError(t, err)
	assert.Equal(t, 500, res.StatusCode)
	assert.Empty(t, m.dedup, "dedup key must roll back with the failed insert")
	assert.Empty(t, m.notified)

	// el reintento del emisor se guarda, no se toma como duplicado
	res, err = handler(context.Background(), authed(sample))
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.NotContains(t, res.Body, "duplicate")
	assert.Equal(t, []string{sample}, m.records)
	assert.Equal(t, []string{"1"}, m.notified)
}
