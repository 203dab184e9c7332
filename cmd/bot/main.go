package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	discordrouter "github.com/jose-valero/paceman-pings/internal/adapters/discord"
	"github.com/jose-valero/paceman-pings/internal/adapters/httpfeed"
	"github.com/jose-valero/paceman-pings/internal/adapters/paceman"
	"github.com/jose-valero/paceman-pings/internal/adapters/pgfeed"
	"github.com/jose-valero/paceman-pings/internal/app/service"
	"github.com/jose-valero/paceman-pings/internal/domain"
	"github.com/jose-valero/paceman-pings/internal/infra/config"
	"github.com/jose-valero/paceman-pings/internal/infra/storage"
)

func main() {
	config.LoadDotenv()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db); err != nil {
		log.Fatal("migrate:", err)
	}
	logger.Info("DB lista y migrada")

	// Repos
	settingsRepo := storage.NewSettingsRepo(db)
	rosterRepo := storage.NewRosterRepo(db)
	refsRepo := storage.NewMessageRefRepo(db)
	finishRepo := storage.NewFinishRepo(db)
	lbUIRepo := storage.NewLeaderboardUIRepo(db)

	// Discord session
	s, err := discordgo.New(cfg.DiscordToken)
	if err != nil {
		log.Fatal(err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	s.State.MaxMessageCount = 100
	sink := discordrouter.NewSink(s)

	// Services
	settingsSvc := service.NewSettingsService(settingsRepo)
	rosterSvc := service.NewRosterService(rosterRepo)
	lbSvc := service.NewLeaderboardService(finishRepo, lbUIRepo, sink, logger)
	directory := service.NewGuildDirectory(discordrouter.NewGuildLoader(s), settingsRepo, logger)
	store := service.NewPlayerStore()
	notify := service.NewNotifyService(directory, store, sink, lbSvc, rosterSvc, refsRepo, cfg.SinkTimeout, logger)
	disp := service.NewDispatcher(notify, cfg.MaxInflight, logger)

	// Router: handlers antes de Open para no perder los GuildCreate iniciales
	r := discordrouter.NewRouter(s, logger, directory, rosterSvc, settingsSvc, lbSvc, cfg.AdminRoleIDs)
	r.Handlers()
	if err := s.Open(); err != nil {
		log.Fatal(err)
	}
	defer s.Close()
	logger.Info("conectado a Discord", "user", s.State.User.Username, "user_id", s.State.User.ID, "guilds", len(s.State.Guilds))

	if err := r.Register(cfg.DiscordGuild); err != nil {
		log.Fatalf("registrando comandos: %v", err)
	}

	// refs persistidos: un reset después de reiniciar todavía encuentra su mensaje
	guildIDs := make([]string, 0, len(s.State.Guilds))
	for _, g := range s.State.Guilds {
		guildIDs = append(guildIDs, g.ID)
	}
	if n, err := service.RestoreRefs(ctx, store, refsRepo, guildIDs); err != nil {
		logger.Warn("unable to restore message refs", "error", err)
	} else {
		logger.Info("message refs restored", "count", n)
	}

	submit := func(ctx context.Context, rec domain.Record) error { return disp.Submit(ctx, rec) }

	// HTTP: ingest push + health + métricas
	web := httpfeed.New(cfg.IngestSecret, submit, logger)
	go func() {
		if err := web.Run(ctx, cfg.HTTPAddr); err != nil {
			logger.Error("http server", "error", err)
			stop()
		}
	}()

	// Feed
	var feed func(context.Context, paceman.Handler) error
	switch cfg.FeedMode {
	case config.FeedPoll:
		client := paceman.New(paceman.WithBaseURL(cfg.FeedURL), paceman.WithLogger(logger))
		feed = paceman.NewPoller(client, cfg.FeedInterval, logger).Run
	case config.FeedPostgres:
		feed = pgfeed.NewListener(cfg.DatabaseURL, storage.NewFeedRepo(db), logger).Run
	default:
		feed = paceman.NewStream(cfg.FeedURL, logger).Run
	}
	go func() {
		logger.Info("feed started", "mode", cfg.FeedMode, "url", cfg.FeedURL)
		if err := feed(ctx, submit); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("feed stopped", "error", err)
			stop()
		}
	}()

	// Pruner de refs viejos
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := refsRepo.Prune(pctx, cfg.RefRetention)
			cancel()
			if err != nil {
				logger.Warn("ref prune failed", "error", err)
				continue
			}
			logger.Debug("refs pruned", "rows", n)
		}
	}()

	// Esperar señal
	<-ctx.Done()
	logger.Info("shutting down; waiting for in-flight records")
	disp.Wait()
}
