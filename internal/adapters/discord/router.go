package discord

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/paceman-pings/internal/app/service"
)

// atajos de tunning
const (
	refreshDebounce = 2 * time.Second
	refreshTimeout  = 15 * time.Second
	commandTimeout  = 12 * time.Second
)

type Router struct {
	s   *discordgo.Session
	log *slog.Logger

	directory   *service.GuildDirectory
	roster      *service.RosterService
	settings    *service.SettingsService
	leaderboard *service.LeaderboardService

	adminRoleIDs []string
	cmdLimiter   *userLimiter
	clickLimiter *userLimiter

	refreshMu     sync.Mutex
	refreshTimers map[string]*time.Timer
}

func NewRouter(
	s *discordgo.Session,
	log *slog.Logger,
	directory *service.GuildDirectory,
	roster *service.RosterService,
	settings *service.SettingsService,
	leaderboard *service.LeaderboardService,
	adminRoleIDs []string,
) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		s:             s,
		log:           log,
		directory:     directory,
		roster:        roster,
		settings:      settings,
		leaderboard:   leaderboard,
		adminRoleIDs:  adminRoleIDs,
		cmdLimiter:    newUserLimiter(2 * time.Second),
		clickLimiter:  newUserLimiter(time.Second),
		refreshTimers: map[string]*time.Timer{},
	}
}

// Register sube los slash commands. guildID vacío = globales.
func (r *Router) Register(guildID string) error {
	appID := r.s.State.User.ID
	_, err := r.s.ApplicationCommandBulkOverwrite(appID, guildID, Commands)
	return err
}

func (r *Router) Handlers() {
	r.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		switch ic.Type {
		case discordgo.InteractionApplicationCommand:
			r.handleSlashCommand(s, ic)
		case discordgo.InteractionMessageComponent:
			r.handleMessageComponent(s, ic)
		}
	})

	// el guild llega completo (canales y roles) en GuildCreate
	r.s.AddHandler(func(s *discordgo.Session, gc *discordgo.GuildCreate) {
		go r.refreshGuild(gc.ID)
	})
	r.s.AddHandler(func(s *discordgo.Session, gd *discordgo.GuildDelete) {
		r.log.Info("guild removed", "guild_id", gd.ID)
		r.directory.Remove(gd.ID)
	})

	// cambios de canales/roles: refresco con debounce
	r.s.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelCreate) { r.scheduleRefresh(e.GuildID) })
	r.s.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelUpdate) { r.scheduleRefresh(e.GuildID) })
	r.s.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelDelete) { r.scheduleRefresh(e.GuildID) })
	r.s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildRoleCreate) { r.scheduleRefresh(e.GuildID) })
	r.s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildRoleUpdate) { r.scheduleRefresh(e.GuildID) })
	r.s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildRoleDelete) { r.scheduleRefresh(e.GuildID) })
}

// scheduleRefresh agrupa ráfagas de eventos (ej: /setup_default_roles crea 20 roles).
func (r *Router) scheduleRefresh(guildID string) {
	if guildID == "" {
		return
	}
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()
	if t, ok := r.refreshTimers[guildID]; ok {
		t.Stop()
	}
	r.refreshTimers[guildID] = time.AfterFunc(refreshDebounce, func() {
		r.refreshMu.Lock()
		delete(r.refreshTimers, guildID)
		r.refreshMu.Unlock()
		r.refreshGuild(guildID)
	})
}

func (r *Router) refreshGuild(guildID string) {
	defer step(r.log, "guild.refresh")()
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	cfg, err := r.directory.Refresh(ctx, guildID)
	if err != nil {
		r.log.Warn("guild config invalid, guild disabled", "guild_id", guildID, "error", err)
		return
	}
	r.log.Info("guild config loaded",
		"guild_id", guildID,
		"guild", cfg.Name,
		"private", cfg.IsPrivate,
		"roles", len(cfg.Roles),
		"leaderboard", cfg.LeaderboardChannel != "",
	)
}
