package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

var ErrNoGuildChannel = errors.New("no #pacemanbot channel")

// ConfigError describe un problema de configuración del guild (se muestra en /validate_config).
type ConfigError struct {
	GuildID string
	Problem string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("guild %s: %s", e.GuildID, e.Problem)
}

// GuildDirectory cachea la GuildConfig de cada guild. Se carga una vez por guild
// y se refresca en GuildCreate o /validate_config.
type GuildDirectory struct {
	loader   GuildLoader
	settings SettingsRepo
	log      *slog.Logger

	mu     sync.RWMutex
	guilds map[string]domain.GuildConfig
}

func NewGuildDirectory(loader GuildLoader, settings SettingsRepo, log *slog.Logger) *GuildDirectory {
	if log == nil {
		log = slog.Default()
	}
	return &GuildDirectory{loader: loader, settings: settings, log: log, guilds: map[string]domain.GuildConfig{}}
}

// Refresh recarga un guild. Si falla, el guild sale del directorio.
func (d *GuildDirectory) Refresh(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	cfg, err := d.loader.LoadGuild(ctx, guildID)
	if err != nil {
		d.Remove(guildID)
		return domain.GuildConfig{}, err
	}
	st, err := d.settings.Get(ctx, guildID)
	if err != nil {
		d.log.Warn("guild settings unavailable, using defaults", "guild_id", guildID, "error", err)
	} else if st.FinishThresholdMinutes > 0 {
		cfg.FinishThresholdMinutes = uint32(st.FinishThresholdMinutes)
	}

	d.mu.Lock()
	d.guilds[guildID] = cfg
	d.mu.Unlock()
	return cfg, nil
}

func (d *GuildDirectory) Remove(guildID string) {
	d.mu.Lock()
	delete(d.guilds, guildID)
	d.mu.Unlock()
}

// Guilds devuelve un snapshot ordenado por guild id.
func (d *GuildDirectory) Guilds() []domain.GuildConfig {
	d.mu.RLock()
	out := make([]domain.GuildConfig, 0, len(d.guilds))
	for _, g := range d.guilds {
		out = append(out, g)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out
}

func (d *GuildDirectory) IDs() []string {
	gs := d.Guilds()
	ids := make([]string, len(gs))
	for i, g := range gs {
		ids[i] = g.GuildID
	}
	return ids
}

// RestoreRefs rehidrata el store con los refs persistidos de los guilds conocidos.
func RestoreRefs(ctx context.Context, store *PlayerStore, refs RefStore, guildIDs []string) (int, error) {
	rows, err := refs.LoadForGuilds(ctx, guildIDs)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		sp, ok := domain.SplitFromCode(r.Split)
		if !ok {
			continue
		}
		ref := domain.MessageRef{ChannelID: r.ChannelID, MessageID: r.MessageID}
		if store.Restore(r.GuildID, r.PlayerKey, sp, r.IGTMillis, ref, r.ResetApplied) {
			n++
		}
	}
	return n, nil
}
