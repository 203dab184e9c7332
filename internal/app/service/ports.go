package service

import (
	"context"

	"github.com/jose-valero/paceman-pings/internal/domain"
	"github.com/jose-valero/paceman-pings/internal/infra/storage"
)

// Lo implementa internal/adapters/discord.Sink
type Sink interface {
	SendMessage(ctx context.Context, channelID, content string) (domain.MessageRef, error)
	EditMessage(ctx context.Context, ref domain.MessageRef, content string) error
	// FetchMessage devuelve (nil, nil) si el mensaje ya no existe.
	FetchMessage(ctx context.Context, ref domain.MessageRef) (*StoredMessage, error)
}

type StoredMessage struct {
	Ref     domain.MessageRef
	Content string
}

// LeaderboardRef: ChannelID vacío = el guild no tiene canal de leaderboard.
type LeaderboardRef struct {
	GuildID   string
	ChannelID string
}

// Lo implementa LeaderboardService
type Leaderboard interface {
	RecordFinish(ctx context.Context, ref LeaderboardRef, runner string, minutes, seconds uint32) error
}

// Lo implementa RosterService
type Roster interface {
	LookupExpectedSplits(ctx context.Context, guildID, playerKey string) (domain.ExpectedSplits, bool, error)
}

// Lo implementa GuildDirectory
type GuildSource interface {
	Guilds() []domain.GuildConfig
}

// Lo implementa internal/adapters/discord.GuildLoader
type GuildLoader interface {
	LoadGuild(ctx context.Context, guildID string) (domain.GuildConfig, error)
}

// Lo implementa internal/infra/storage.MessageRefRepo
type RefStore interface {
	Save(ctx context.Context, m storage.PaceMessage) error
	MarkReset(ctx context.Context, guildID, playerKey, messageID string) error
	LoadForGuilds(ctx context.Context, guildIDs []string) ([]storage.PaceMessage, error)
}

// Lo implementa internal/infra/storage.SettingsRepo
type SettingsRepo interface {
	Get(ctx context.Context, guildID string) (storage.GuildSettings, error)
	Upsert(ctx context.Context, gs storage.GuildSettings) error
}

// Lo implementa internal/infra/storage.RosterRepo
type RosterRepo interface {
	Get(ctx context.Context, guildID, playerKey string) (storage.Runner, error)
	Upsert(ctx context.Context, r storage.Runner) error
	Delete(ctx context.Context, guildID, playerKey string) (bool, error)
	List(ctx context.Context, guildID string) ([]storage.Runner, error)
}

// Lo implementan internal/infra/storage.FinishRepo y LeaderboardUIRepo
type FinishRepo interface {
	RecordBest(ctx context.Context, f storage.Finish) (bool, error)
	Top(ctx context.Context, guildID string, limit int) ([]storage.Finish, error)
}

type LeaderboardUIRepo interface {
	Get(ctx context.Context, guildID string) (storage.LeaderboardUI, error)
	Upsert(ctx context.Context, guildID, channelID, messageID string) error
}
