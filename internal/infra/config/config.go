package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type FeedMode string

const (
	FeedWebsocket FeedMode = "ws"
	FeedPoll      FeedMode = "poll"
	FeedPostgres  FeedMode = "pg"
)

const (
	defaultWSURL   = "wss://paceman.gg/ws"
	defaultHTTPURL = "https://paceman.gg/api"
)

type Config struct {
	DatabaseURL  string
	DiscordToken string
	// opcional: si está, los slash commands se registran solo en ese guild (dev)
	DiscordGuild string

	FeedMode     FeedMode
	FeedURL      string
	FeedInterval time.Duration

	HTTPAddr     string // opcional, default :8080
	IngestSecret string // vacío = sin POST /paceman/record

	SinkTimeout  time.Duration
	MaxInflight  int64
	RefRetention time.Duration
	AdminRoleIDs []string
	LogLevel     slog.Level
}

// LoadDotenv carga .env si existe; las variables ya definidas no se pisan.
func LoadDotenv() {
	_ = godotenv.Load()
}

// Load lee la config del entorno.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	var errs []error
	get := func(k string, req bool) string {
		v := strings.TrimSpace(getenv(k))
		if v == "" && req {
			errs = append(errs, fmt.Errorf("faltante env %s", k))
		}
		return v
	}
	getInt := func(k string, def int) int {
		v := get(k, false)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("env %s: entero inválido %q", k, v))
			return def
		}
		return n
	}

	cfg := Config{
		DatabaseURL:  get("DATABASE_URL", true),
		DiscordToken: get("DISCORD_BOT_TOKEN", true),
		DiscordGuild: get("DISCORD_GUILD_ID", false),
		FeedMode:     FeedMode(strings.ToLower(get("FEED_MODE", false))),
		FeedURL:      get("FEED_URL", false),
		FeedInterval: time.Duration(getInt("FEED_POLL_SECONDS", 10)) * time.Second,
		HTTPAddr:     get("HTTP_ADDR", false),
		IngestSecret: get("INGEST_SECRET", false),
		SinkTimeout:  time.Duration(getInt("SINK_TIMEOUT_SECONDS", 5)) * time.Second,
		MaxInflight:  int64(getInt("MAX_INFLIGHT_RECORDS", 16)),
		RefRetention: time.Duration(getInt("REF_RETENTION_HOURS", 24)) * time.Hour,
	}

	if cfg.DiscordToken != "" && !strings.HasPrefix(cfg.DiscordToken, "Bot ") {
		cfg.DiscordToken = "Bot " + cfg.DiscordToken
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	switch cfg.FeedMode {
	case "":
		cfg.FeedMode = FeedWebsocket
	case FeedWebsocket, FeedPoll, FeedPostgres:
	default:
		errs = append(errs, fmt.Errorf("env FEED_MODE: %q no es ws|poll|pg", cfg.FeedMode))
	}
	if cfg.FeedURL == "" {
		switch cfg.FeedMode {
		case FeedWebsocket:
			cfg.FeedURL = defaultWSURL
		case FeedPoll:
			cfg.FeedURL = defaultHTTPURL
		}
	}
	if cfg.FeedInterval <= 0 {
		errs = append(errs, errors.New("env FEED_POLL_SECONDS debe ser > 0"))
	}
	if cfg.MaxInflight <= 0 {
		errs = append(errs, errors.New("env MAX_INFLIGHT_RECORDS debe ser > 0"))
	}

	for _, id := range strings.Split(get("ADMIN_ROLE_IDS", false), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.AdminRoleIDs = append(cfg.AdminRoleIDs, id)
		}
	}

	if lvl := get("LOG_LEVEL", false); lvl != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			errs = append(errs, fmt.Errorf("env LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
