package main

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

const notifyChannel = "pace_record"

// beginner lo cumple *pgxpool.Pool
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	db          beginner
	secretHdr   = getenv("WEBHOOK_HEADER_NAME", "X-Paceman-Secret")
	secretValue = os.Getenv("WEBHOOK_HEADER_VALUE")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func init() {
	// DB opcional (sin DATABASE_URL validamos y respondemos igual)
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Println("DATABASE_URL empty; running without DB")
		return
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		fmt.Println("pgx ParseConfig:", err)
		return
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		fmt.Println("pgxpool New:", err)
		return
	}
	db = pool
}

func readSecret(req events.APIGatewayV2HTTPRequest) string {
	// API Gateway v2 manda los headers en minúscula
	for _, k := range []string{strings.ToLower(secretHdr), secretHdr} {
		if v := req.Headers[k]; v != "" {
			return v
		}
	}
	qname := getenv("WEBHOOK_QUERY_NAME", "wh")
	return req.QueryStringParameters[qname]
}

func decodeBody(req events.APIGatewayV2HTTPRequest) (string, error) {
	if !req.IsBase64Encoded {
		return req.Body, nil
	}
	dec, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", err
	}
	return string(dec), nil
}

// validRecord: solo aceptamos payloads que el bot pueda clasificar.
func validRecord(body string) error {
	var rec domain.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return err
	}
	if strings.TrimSpace(rec.Nickname) == "" && strings.TrimSpace(rec.UserID) == "" {
		return errors.New("record without nickname or userId")
	}
	return nil
}

func dedupKey(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func reply(code int, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	fmt.Printf("ingest hit | path=%s method=%s ip=%s b64=%v\n",
		req.RawPath, req.RequestContext.HTTP.Method, req.RequestContext.HTTP.SourceIP, req.IsBase64Encoded)

	// 1) secreto
	got := readSecret(req)
	if secretValue == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secretValue)) != 1 {
		fmt.Println("auth: unauthorized (missing/invalid secret)")
		return reply(401, `{"error":"unauthorized"}`), nil
	}

	// 2) body
	body, err := decodeBody(req)
	if err != nil {
		return reply(400, `{"error":"invalid base64"}`), nil
	}
	if err := validRecord(body); err != nil {
		fmt.Println("body: invalid record:", err)
		return reply(400, `{"error":"invalid record"}`), nil
	}

	if db == nil {
		return reply(200, `{"ok":true,"stored":false}`), nil
	}

	// 3) dedup + persistir + notificar en una sola tx: si el insert falla, el
	// reintento del emisor no queda marcado como duplicado
	id, dup, err := store(ctx, db, dedupKey(body), body)
	if err != nil {
		fmt.Println("store:", err)
		return reply(500, `{"error":"store failed"}`), nil
	}
	if dup {
		return reply(200, `{"ok":true,"duplicate":true}`), nil
	}
	return reply(200, fmt.Sprintf(`{"ok":true,"id":%d}`, id)), nil
}

// store corre todo dentro de la tx. pg_notify dentro de la tx se entrega recién
// en el commit, así el bot nunca lee un id que todavía no existe.
func store(ctx context.Context, db beginner, key, body string) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `INSERT INTO webhook_dedup(dedup_key) VALUES ($1) ON CONFLICT DO NOTHING`, key)
	if err != nil {
		return 0, false, fmt.Errorf("dedup insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, true, nil
	}

	var id int64
	if err := tx.QueryRow(ctx, `INSERT INTO feed_records(payload) VALUES ($1::jsonb) RETURNING id`, body).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("feed insert: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, fmt.Sprint(id)); err != nil {
		return 0, false, fmt.Errorf("pg_notify: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit: %w", err)
	}
	return id, false, nil
}

func main() { lambda.Start(handler) }
