package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jose-valero/paceman-pings/internal/domain"
	"github.com/jose-valero/paceman-pings/internal/infra/storage"
)

// RosterService maneja los runners de guilds privados y sus tiempos esperados.
type RosterService struct {
	repo RosterRepo
}

func NewRosterService(repo RosterRepo) *RosterService { return &RosterService{repo: repo} }

// RunnerTimes son los minutos esperados por split; nil = sin definir.
type RunnerTimes map[domain.Split]*int

func (s *RosterService) LookupExpectedSplits(ctx context.Context, guildID, playerKey string) (domain.ExpectedSplits, bool, error) {
	ru, err := s.repo.Get(ctx, guildID, playerKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return expectedFromRunner(ru), true, nil
}

func expectedFromRunner(ru storage.Runner) domain.ExpectedSplits {
	out := domain.ExpectedSplits{}
	set := func(sp domain.Split, v *int) {
		if v != nil && *v > 0 {
			out[sp] = uint32(*v)
		}
	}
	set(domain.FirstStructure, ru.FirstStructure)
	set(domain.SecondStructure, ru.SecondStruct)
	set(domain.Blind, ru.Blind)
	set(domain.EyeSpy, ru.EyeSpy)
	set(domain.EndEnter, ru.EndEnter)
	set(domain.Finish, ru.Finish)
	return out
}

func (s *RosterService) Add(ctx context.Context, guildID, nickname string, times RunnerTimes) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "⚠️ Nickname requerido.", nil
	}
	ru := storage.Runner{
		GuildID:        guildID,
		PlayerKey:      domain.NickKey(nickname),
		Nickname:       nickname,
		FirstStructure: times[domain.FirstStructure],
		SecondStruct:   times[domain.SecondStructure],
		Blind:          times[domain.Blind],
		EyeSpy:         times[domain.EyeSpy],
		EndEnter:       times[domain.EndEnter],
		Finish:         times[domain.Finish],
	}
	if err := s.repo.Upsert(ctx, ru); err != nil {
		return "", err
	}
	return "✅ Runner **" + nickname + "** guardado.\n" + describeRunner(ru), nil
}

func (s *RosterService) Remove(ctx context.Context, guildID, nickname string) (string, error) {
	ok, err := s.repo.Delete(ctx, guildID, domain.NickKey(nickname))
	if err != nil {
		return "", err
	}
	if !ok {
		return "ℹ️ **" + nickname + "** no estaba en el roster.", nil
	}
	return "✅ **" + nickname + "** fuera del roster.", nil
}

func (s *RosterService) Show(ctx context.Context, guildID string) (string, error) {
	runners, err := s.repo.List(ctx, guildID)
	if err != nil {
		return "", err
	}
	if len(runners) == 0 {
		return "ℹ️ El roster está vacío.", nil
	}
	var b strings.Builder
	b.WriteString("📋 **Roster**")
	for _, ru := range runners {
		fmt.Fprintf(&b, "\n• **%s** %s", ru.Nickname, describeRunner(ru))
	}
	return b.String(), nil
}

func describeRunner(ru storage.Runner) string {
	f := func(v *int) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprint(*v)
	}
	return fmt.Sprintf("FS %s / SS %s / B %s / E %s / EE %s / F %s",
		f(ru.FirstStructure), f(ru.SecondStruct), f(ru.Blind), f(ru.EyeSpy), f(ru.EndEnter), f(ru.Finish))
}
