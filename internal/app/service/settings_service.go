package service

import (
	"context"
	"fmt"

	"github.com/jose-valero/paceman-pings/internal/infra/storage"
)

type SettingsService struct {
	repo SettingsRepo
}

func NewSettingsService(r SettingsRepo) *SettingsService { return &SettingsService{repo: r} }

type SettingsPatch struct {
	FinishThresholdMinutes *int
}

func (s *SettingsService) Get(ctx context.Context, guildID string) (storage.GuildSettings, error) {
	return s.repo.Get(ctx, guildID)
}

func (s *SettingsService) Show(ctx context.Context, guildID string) (string, error) {
	st, err := s.repo.Get(ctx, guildID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("**Settings de %s**\n• finish_threshold_minutes: **%d**", guildID, st.FinishThresholdMinutes), nil
}

func (s *SettingsService) Update(ctx context.Context, guildID string, patch SettingsPatch) (string, error) {
	cur, err := s.repo.Get(ctx, guildID)
	if err != nil {
		return "", err
	}
	if patch.FinishThresholdMinutes != nil {
		if *patch.FinishThresholdMinutes < 0 {
			return "⚠️ finish_threshold_minutes no puede ser negativo.", nil
		}
		cur.FinishThresholdMinutes = *patch.FinishThresholdMinutes
	}
	if err := s.repo.Upsert(ctx, cur); err != nil {
		return "", err
	}
	return s.Show(ctx, guildID)
}
