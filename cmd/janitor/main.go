package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
)

func hoursEnv(k string, def int) time.Duration {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil && n > 0 {
		return time.Duration(n) * time.Hour
	}
	return time.Duration(def) * time.Hour
}

type cleanup struct {
	name string
	sql  string
	keep time.Duration
}

func cleanups() []cleanup {
	return []cleanup{
		{"feed_records", `DELETE FROM feed_records WHERE received_at < now() - make_interval(secs => $1)`, hoursEnv("FEED_RETENTION_HOURS", 24)},
		{"webhook_dedup", `DELETE FROM webhook_dedup WHERE received_at < now() - make_interval(secs => $1)`, 7 * 24 * time.Hour},
		{"pace_messages", `DELETE FROM pace_messages WHERE updated_at < now() - make_interval(secs => $1)`, hoursEnv("REF_RETENTION_HOURS", 24)},
	}
}

func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Sprintf("parse: %v", err), nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("pool: %v", err), nil
	}
	defer pool.Close()

	cctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	out := "ok"
	for _, c := range cleanups() {
		tag, err := pool.Exec(cctx, c.sql, c.keep.Seconds())
		if err != nil {
			fmt.Printf("janitor %s: %v\n", c.name, err)
			continue
		}
		out += fmt.Sprintf(" %s=%d", c.name, tag.RowsAffected())
	}
	return out, nil
}

func main() { lambda.Start(handler) }
