package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/jose-valero/paceman-pings/internal/domain"
	"github.com/jose-valero/paceman-pings/internal/infra/storage"
)

// ------------------------
// Fake Sink
// ------------------------

type fakeSink struct {
	mu       sync.Mutex
	trace    []string
	nextID   int
	messages map[string]string

	SendErr  error
	EditErr  error
	FetchErr error
	// OnSend corre antes de devolver el ref (sirve para simular carreras).
	OnSend func()
}

func newFakeSink() *fakeSink { return &fakeSink{messages: map[string]string{}} }

func (f *fakeSink) record(step string) {
	f.mu.Lock()
	f.trace = append(f.trace, step)
	f.mu.Unlock()
}

func (f *fakeSink) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *fakeSink) SendMessage(ctx context.Context, channelID, content string) (domain.MessageRef, error) {
	f.record("SendMessage")
	if f.OnSend != nil {
		f.OnSend()
	}
	if f.SendErr != nil {
		return domain.MessageRef{}, f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("m%d", f.nextID)
	f.messages[id] = content
	return domain.MessageRef{ChannelID: channelID, MessageID: id}, nil
}

func (f *fakeSink) EditMessage(ctx context.Context, ref domain.MessageRef, content string) error {
	f.record("EditMessage")
	if f.EditErr != nil {
		return f.EditErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[ref.MessageID]; !ok {
		return fmt.Errorf("unknown message %s", ref.MessageID)
	}
	f.messages[ref.MessageID] = content
	return nil
}

func (f *fakeSink) FetchMessage(ctx context.Context, ref domain.MessageRef) (*StoredMessage, error) {
	f.record("FetchMessage")
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.messages[ref.MessageID]
	if !ok {
		return nil, nil
	}
	return &StoredMessage{Ref: ref, Content: c}, nil
}

func (f *fakeSink) Content(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id]
}

// ------------------------
// Fake collaborators
// ------------------------

type finishCall struct {
	Ref     LeaderboardRef
	Runner  string
	Minutes uint32
	Seconds uint32
}

type fakeLeaderboard struct {
	mu    sync.Mutex
	calls []finishCall
	Err   error
}

func (f *fakeLeaderboard) RecordFinish(ctx context.Context, ref LeaderboardRef, runner string, minutes, seconds uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, finishCall{Ref: ref, Runner: runner, Minutes: minutes, Seconds: seconds})
	return f.Err
}

type fakeRoster struct {
	runners map[string]domain.ExpectedSplits // guild/playerKey
	Err     error
	lookups int
}

func (f *fakeRoster) LookupExpectedSplits(ctx context.Context, guildID, playerKey string) (domain.ExpectedSplits, bool, error) {
	f.lookups++
	if f.Err != nil {
		return nil, false, f.Err
	}
	exp, ok := f.runners[guildID+"/"+playerKey]
	return exp, ok, nil
}

type fakeRefs struct {
	mu     sync.Mutex
	saved  []storage.PaceMessage
	resets []string
	rows   []storage.PaceMessage
}

func (f *fakeRefs) Save(ctx context.Context, m storage.PaceMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, m)
	return nil
}

func (f *fakeRefs) MarkReset(ctx context.Context, guildID, playerKey, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, messageID)
	return nil
}

func (f *fakeRefs) LoadForGuilds(ctx context.Context, guildIDs []string) ([]storage.PaceMessage, error) {
	return f.rows, nil
}

type staticGuilds []domain.GuildConfig

func (s staticGuilds) Guilds() []domain.GuildConfig { return s }

// ------------------------
// Helpers
// ------------------------

func ev(id string, igt int64) domain.Event { return domain.Event{EventID: id, IGT: igt} }

func strp(s string) *string { return &s }

func liveRecord(nick string, events ...domain.Event) domain.Record {
	return domain.Record{
		Nickname:    nick,
		UserID:      "id-" + nick,
		LiveAccount: strp(nick + "_ttv"),
		LastUpdated: 1700000000000,
		EventList:   events,
	}
}

func role(id string, sp domain.Split, m, s uint32) domain.RoleDef {
	return domain.RoleDef{RoleID: id, Split: sp, ThresholdMinutes: m, ThresholdSeconds: s}
}

func pbRole(id string, sp domain.Split) domain.RoleDef {
	return domain.RoleDef{RoleID: id, Split: sp, IsPersonalBest: true}
}
