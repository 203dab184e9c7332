package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jose-valero/paceman-pings/internal/domain"
	"github.com/jose-valero/paceman-pings/internal/infra/storage"
)

const leaderboardSize = 25

// LeaderboardService guarda el mejor finish por runner y mantiene un único
// mensaje de leaderboard por guild (publica la primera vez, después edita).
type LeaderboardService struct {
	finishes FinishRepo
	ui       LeaderboardUIRepo
	sink     Sink
	log      *slog.Logger

	mu sync.Mutex // serializa publish/edit para no duplicar el mensaje
}

func NewLeaderboardService(finishes FinishRepo, ui LeaderboardUIRepo, sink Sink, log *slog.Logger) *LeaderboardService {
	if log == nil {
		log = slog.Default()
	}
	return &LeaderboardService{finishes: finishes, ui: ui, sink: sink, log: log}
}

func (l *LeaderboardService) RecordFinish(ctx context.Context, ref LeaderboardRef, runner string, minutes, seconds uint32) error {
	improved, err := l.finishes.RecordBest(ctx, storage.Finish{
		GuildID:    ref.GuildID,
		Runner:     runner,
		IGTSeconds: int(minutes*60 + seconds),
	})
	if err != nil {
		return fmt.Errorf("record finish: %w", err)
	}
	if ref.ChannelID == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ui, err := l.ui.Get(ctx, ref.GuildID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("leaderboard ui: %w", err)
	case !improved && ui.ChannelID == ref.ChannelID:
		// nada nuevo que mostrar
		return nil
	}

	return l.publish(ctx, ref.GuildID, ref.ChannelID, ui)
}

// Publish re-renderiza el leaderboard en channelID (lo usa /leaderboard).
func (l *LeaderboardService) Publish(ctx context.Context, guildID, channelID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ui, err := l.ui.Get(ctx, guildID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("leaderboard ui: %w", err)
	}
	return l.publish(ctx, guildID, channelID, ui)
}

// publish edita el mensaje existente o publica uno nuevo. Requiere l.mu.
func (l *LeaderboardService) publish(ctx context.Context, guildID, channelID string, ui storage.LeaderboardUI) error {
	top, err := l.finishes.Top(ctx, guildID, leaderboardSize)
	if err != nil {
		return fmt.Errorf("leaderboard top: %w", err)
	}
	content := RenderLeaderboard(top)

	if ui.MessageID != "" && ui.ChannelID == channelID {
		editErr := l.sink.EditMessage(ctx, domain.MessageRef{ChannelID: ui.ChannelID, MessageID: ui.MessageID}, content)
		if editErr == nil {
			return nil
		}
		// el mensaje pudo haber sido borrado: lo republicamos
		l.log.Warn("leaderboard edit failed, republishing", "guild_id", guildID, "error", editErr)
	}
	msg, err := l.sink.SendMessage(ctx, channelID, content)
	if err != nil {
		return fmt.Errorf("leaderboard publish: %w", err)
	}
	return l.ui.Upsert(ctx, guildID, msg.ChannelID, msg.MessageID)
}

// RenderLeaderboard: "## Leaderboard" y una línea por runner.
func RenderLeaderboard(top []storage.Finish) string {
	var b strings.Builder
	b.WriteString("## Leaderboard")
	if len(top) == 0 {
		b.WriteString("\n_No finishes yet._")
		return b.String()
	}
	for i, f := range top {
		fmt.Fprintf(&b, "\n%d. %s - %02d:%02d", i+1, escapeNick(f.Runner), f.IGTSeconds/60, f.IGTSeconds%60)
	}
	return b.String()
}
