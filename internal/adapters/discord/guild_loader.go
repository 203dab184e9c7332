package discord

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/paceman-pings/internal/app/service"
	"github.com/jose-valero/paceman-pings/internal/domain"
)

// Nombres de canales que el bot busca en cada guild.
const (
	ChannelNotifications = "pacemanbot"
	ChannelLeaderboard   = "pacemanbot-runner-leaderboard"
	ChannelRunnerNames   = "pacemanbot-runner-names" // su presencia hace al guild privado
)

// *FS2:3 -> FS, 2 min, 30 s. *EE9:0 -> EE, 9 min. *BPB -> rol de PB para Blind.
var (
	reThresholdRole = regexp.MustCompile(`^\*(FS|SS|B|EE|E|F)(\d{1,2}):(\d)$`)
	rePBRole        = regexp.MustCompile(`^\*(FS|SS|B|EE|E|F)PB$`)
)

// ParseRoleName interpreta el nombre de un rol suscriptor. ok=false para cualquier otro rol.
func ParseRoleName(name string) (domain.RoleDef, bool) {
	name = strings.TrimSpace(name)
	if m := rePBRole.FindStringSubmatch(name); m != nil {
		sp, _ := domain.SplitFromCode(m[1])
		return domain.RoleDef{Name: name, Split: sp, IsPersonalBest: true}, true
	}
	m := reThresholdRole.FindStringSubmatch(name)
	if m == nil {
		return domain.RoleDef{}, false
	}
	sp, _ := domain.SplitFromCode(m[1])
	mins, err := strconv.Atoi(m[2])
	if err != nil {
		return domain.RoleDef{}, false
	}
	tens, _ := strconv.Atoi(m[3])
	if tens > 5 {
		return domain.RoleDef{}, false
	}
	return domain.RoleDef{
		Name:             name,
		Split:            sp,
		ThresholdMinutes: uint32(mins),
		ThresholdSeconds: uint32(tens * 10),
	}, true
}

// SortRoles: por split, después por umbral; los PB al final de su split.
func SortRoles(roles []domain.RoleDef) {
	sort.SliceStable(roles, func(i, j int) bool {
		a, b := roles[i], roles[j]
		if a.Split != b.Split {
			return a.Split < b.Split
		}
		if a.IsPersonalBest != b.IsPersonalBest {
			return !a.IsPersonalBest
		}
		if a.ThresholdMinutes != b.ThresholdMinutes {
			return a.ThresholdMinutes < b.ThresholdMinutes
		}
		return a.ThresholdSeconds < b.ThresholdSeconds
	})
}

// BuildGuildConfig arma la config a partir de lo que el guild tiene creado.
func BuildGuildConfig(guildID, name string, channels []*discordgo.Channel, roles []*discordgo.Role) (domain.GuildConfig, error) {
	cfg := domain.GuildConfig{GuildID: guildID, Name: name}
	for _, ch := range channels {
		if ch == nil || ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		switch ch.Name {
		case ChannelNotifications:
			cfg.NotificationChannel = ch.ID
		case ChannelLeaderboard:
			cfg.LeaderboardChannel = ch.ID
		case ChannelRunnerNames:
			cfg.IsPrivate = true
		}
	}
	if cfg.NotificationChannel == "" {
		return cfg, &service.ConfigError{GuildID: guildID, Problem: fmt.Sprintf("%v: create a text channel named #%s", service.ErrNoGuildChannel, ChannelNotifications)}
	}

	for _, ro := range roles {
		if ro == nil {
			continue
		}
		def, ok := ParseRoleName(ro.Name)
		if !ok {
			continue
		}
		def.RoleID = ro.ID
		cfg.Roles = append(cfg.Roles, def)
	}
	SortRoles(cfg.Roles)
	return cfg, nil
}

// GuildLoader lee canales y roles del guild (state primero, REST si hace falta).
type GuildLoader struct {
	s *discordgo.Session
}

func NewGuildLoader(s *discordgo.Session) *GuildLoader { return &GuildLoader{s: s} }

func (l *GuildLoader) LoadGuild(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	var (
		name     string
		channels []*discordgo.Channel
		roles    []*discordgo.Role
	)
	if g, err := l.s.State.Guild(guildID); err == nil && g != nil {
		name, channels, roles = g.Name, g.Channels, g.Roles
	}
	if len(channels) == 0 {
		chs, err := l.s.GuildChannels(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return domain.GuildConfig{}, fmt.Errorf("guild channels: %w", err)
		}
		channels = chs
	}
	if len(roles) == 0 {
		rs, err := l.s.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return domain.GuildConfig{}, fmt.Errorf("guild roles: %w", err)
		}
		roles = rs
	}
	if name == "" {
		name = guildID
	}
	return BuildGuildConfig(guildID, name, channels, roles)
}
