package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

type harness struct {
	svc    *NotifyService
	store  *PlayerStore
	sink   *fakeSink
	lb     *fakeLeaderboard
	roster *fakeRoster
	refs   *fakeRefs
}

func newHarness(guilds ...domain.GuildConfig) *harness {
	h := &harness{
		store:  NewPlayerStore(),
		sink:   newFakeSink(),
		lb:     &fakeLeaderboard{},
		roster: &fakeRoster{runners: map[string]domain.ExpectedSplits{}},
		refs:   &fakeRefs{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.svc = NewNotifyService(staticGuilds(guilds), h.store, h.sink, h.lb, h.roster, h.refs, time.Second, logger)
	return h
}

func publicGuild(id string, roles ...domain.RoleDef) domain.GuildConfig {
	return domain.GuildConfig{GuildID: id, Name: "g-" + id, NotificationChannel: "pace-" + id, Roles: roles}
}

func privateGuild(id string, roles ...domain.RoleDef) domain.GuildConfig {
	g := publicGuild(id, roles...)
	g.IsPrivate = true
	g.LeaderboardChannel = "lb-" + id
	return g
}

var finishRole = role("f45", domain.Finish, 45, 0)

var fsRoles = []domain.RoleDef{
	role("fs200", domain.FirstStructure, 2, 0),
	role("fs230", domain.FirstStructure, 2, 30),
	role("fs300", domain.FirstStructure, 3, 0),
}

func TestRoute_SendThenReset(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...))
	ctx := context.Background()

	rec := liveRecord("PlayerA", ev(EventEnterBastion, 125000))
	res := h.svc.Route(ctx, rec)
	require.Len(t, res.Outcomes, 1)
	out := res.Outcomes[0]
	require.Equal(t, ActionSend, out.Action)
	assert.Equal(t, domain.FirstStructure, res.Verdict.Split)
	assert.True(t, strings.HasPrefix(out.Content, "## 02:05 - Bastion\n"))
	assert.True(t, strings.HasSuffix(out.Content, "\n<@&fs230> <@&fs300>"))

	st, ok := h.store.Snapshot("A", rec.PlayerKey())
	require.True(t, ok)
	assert.Equal(t, out.Ref, st.LastRef)
	assert.Equal(t, domain.FirstStructure, st.LastSplit)
	require.Len(t, h.refs.saved, 1)
	assert.Equal(t, "FS", h.refs.saved[0].Split)

	reset := liveRecord("PlayerA", ev(EventEnterBastion, 125000), ev("common.open_to_lan", 130000))
	res = h.svc.Route(ctx, reset)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionEdit, res.Outcomes[0].Action)
	assert.Equal(t, out.Ref, res.Outcomes[0].Ref)

	edited := h.sink.Content(out.Ref.MessageID)
	origLines := strings.Split(out.Content, "\n")
	newLines := strings.Split(edited, "\n")
	require.Len(t, newLines, len(origLines))
	assert.Equal(t, "## 02:05 - Bastion (Reset)", newLines[0])
	assert.Equal(t, origLines[1:], newLines[1:])

	// lastSplit no cambia por el reset
	st, _ = h.store.Snapshot("A", rec.PlayerKey())
	assert.Equal(t, domain.FirstStructure, st.LastSplit)
	assert.True(t, st.ResetApplied)
	assert.Equal(t, []string{out.Ref.MessageID}, h.refs.resets)

	// un segundo reset no encadena otro edit
	res = h.svc.Route(ctx, reset)
	assert.Equal(t, ActionSuppress, res.Outcomes[0].Action)
	assert.Equal(t, ReasonAlreadyReset, res.Outcomes[0].Reason)
	assert.Equal(t, []string{"SendMessage", "FetchMessage", "EditMessage"}, h.sink.Trace())
}

func TestRoute_ResetWithoutRefIsNoop(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...))
	reset := liveRecord("PlayerA", ev("common.leave_world", 1000))
	for i := 0; i < 2; i++ {
		res := h.svc.Route(context.Background(), reset)
		require.Len(t, res.Outcomes, 1)
		assert.Equal(t, ActionSuppress, res.Outcomes[0].Action)
		assert.Equal(t, ReasonNoRef, res.Outcomes[0].Reason)
	}
	assert.Empty(t, h.sink.Trace())
}

func TestRoute_NoMatchingRolesSuppresses(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...))
	// 3:10: más lento que cualquier rol
	res := h.svc.Route(context.Background(), liveRecord("p", ev(EventEnterBastion, 190000)))
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ReasonNoRoles, res.Outcomes[0].Reason)
	assert.Empty(t, h.sink.Trace())

	// el estado se crea igual, sin ref
	st, ok := h.store.Snapshot("A", "uid:id-p")
	require.True(t, ok)
	assert.True(t, st.LastRef.IsZero())
}

func TestRoute_UnrecognizedAbortsAllGuilds(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...), publicGuild("B", fsRoles...))
	res := h.svc.Route(context.Background(), liveRecord("p", ev(EventEnterBastion, 1000), ev("foo.bar", 2000)))
	assert.True(t, res.Aborted)
	assert.Equal(t, VerdictUnrecognized, res.Verdict.Kind)
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, h.sink.Trace())
	assert.Zero(t, h.roster.lookups)
}

func TestRoute_MalformedAborts(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...))
	res := h.svc.Route(context.Background(), domain.Record{Nickname: "p"})
	assert.True(t, res.Aborted)
	assert.Equal(t, VerdictMalformed, res.Verdict.Kind)
	assert.Empty(t, res.Outcomes)
}

func TestRoute_Liveness(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...), privateGuild("P", fsRoles...))
	h.roster.runners["P/offline_runner"] = domain.ExpectedSplits{}

	rec := liveRecord("Offline_Runner", ev(EventEnterBastion, 60000))
	rec.LiveAccount = nil
	res := h.svc.Route(context.Background(), rec)
	require.Len(t, res.Outcomes, 2)

	assert.Equal(t, "A", res.Outcomes[0].GuildID)
	assert.Equal(t, ReasonNotLive, res.Outcomes[0].Reason)

	assert.Equal(t, "P", res.Outcomes[1].GuildID)
	require.Equal(t, ActionSend, res.Outcomes[1].Action)
	assert.Contains(t, res.Outcomes[1].Content, "\nOffline - Offline\\_Runner\t")
	assert.Equal(t, []string{"SendMessage"}, h.sink.Trace())
}

func TestRoute_PrivateGuildSkipsUnrostered(t *testing.T) {
	h := newHarness(privateGuild("P", fsRoles...))
	rec := liveRecord("stranger", ev(EventEnterBastion, 60000))
	res := h.svc.Route(context.Background(), rec)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ReasonUnrostered, res.Outcomes[0].Reason)

	_, ok := h.store.Snapshot("P", rec.PlayerKey())
	assert.False(t, ok, "unrostered player must not be materialized")

	h.roster.Err = errors.New("db down")
	res = h.svc.Route(context.Background(), rec)
	assert.Equal(t, ReasonRosterError, res.Outcomes[0].Reason)
	assert.Empty(t, h.sink.Trace())
}

func TestRoute_RosterErrorIsGuildLocal(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...), privateGuild("P", fsRoles...))
	h.roster.Err = errors.New("db down")

	rec := liveRecord("p", ev(EventEnterBastion, 60000))
	res := h.svc.Route(context.Background(), rec)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, ActionSend, res.Outcomes[0].Action)
	assert.Equal(t, ReasonRosterError, res.Outcomes[1].Reason)

	_, ok := h.store.Snapshot("P", rec.PlayerKey())
	assert.False(t, ok)
	assert.Equal(t, []string{"SendMessage"}, h.sink.Trace())
}

func TestRoute_PrivatePersonalBestRole(t *testing.T) {
	h := newHarness(privateGuild("P", pbRole("bpb", domain.Blind)))
	h.roster.runners["P/runner"] = domain.ExpectedSplits{domain.Blind: 7}

	res := h.svc.Route(context.Background(), liveRecord("Runner", ev(EventEnterBastion, 1), ev(EventFirstPortal, 6*60000)))
	require.Equal(t, ActionSend, res.Outcomes[0].Action)
	assert.True(t, strings.HasPrefix(res.Outcomes[0].Content, "## 06:00 - First Portal\n"))
	assert.True(t, strings.HasSuffix(res.Outcomes[0].Content, "\n<@&bpb>"))
}

func TestRoute_SendFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...), publicGuild("B", fsRoles...))
	h.sink.SendErr = context.DeadlineExceeded

	rec := liveRecord("p", ev(EventEnterBastion, 60000))
	res := h.svc.Route(context.Background(), rec)
	require.Len(t, res.Outcomes, 2, "a failed guild must not stop the next one")
	for _, out := range res.Outcomes {
		assert.Equal(t, ReasonSinkError, out.Reason)
	}
	st, ok := h.store.Snapshot("A", rec.PlayerKey())
	require.True(t, ok)
	assert.True(t, st.LastRef.IsZero())
	assert.Zero(t, st.LastSplit)
	assert.Empty(t, h.refs.saved)

	// el próximo evento reintenta
	h.sink.SendErr = nil
	res = h.svc.Route(context.Background(), rec)
	assert.Equal(t, ActionSend, res.Outcomes[0].Action)
	assert.Equal(t, ActionSend, res.Outcomes[1].Action)
}

func TestRoute_DuplicateRecordSuppressed(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...))
	rec := liveRecord("p", ev(EventEnterBastion, 60000))
	first := h.svc.Route(context.Background(), rec)
	require.Equal(t, ActionSend, first.Outcomes[0].Action)

	again := h.svc.Route(context.Background(), rec)
	assert.Equal(t, ReasonDuplicate, again.Outcomes[0].Reason)
	assert.Equal(t, []string{"SendMessage"}, h.sink.Trace())
}

func TestRoute_ResetEditFailure(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...))
	h.svc.Route(context.Background(), liveRecord("p", ev(EventEnterBastion, 60000)))

	h.sink.EditErr = errors.New("discord 500")
	res := h.svc.Route(context.Background(), liveRecord("p", ev("common.view_seed", 61000)))
	assert.Equal(t, ReasonSinkError, res.Outcomes[0].Reason)

	st, _ := h.store.Snapshot("A", "uid:id-p")
	assert.False(t, st.ResetApplied)

	// se puede reintentar con el próximo reset
	h.sink.EditErr = nil
	res = h.svc.Route(context.Background(), liveRecord("p", ev("common.view_seed", 61000)))
	assert.Equal(t, ActionEdit, res.Outcomes[0].Action)
}

func TestRoute_ResetMessageGone(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...))
	h.store.Restore("A", "uid:id-p", domain.FirstStructure, 1, domain.MessageRef{ChannelID: "pace-A", MessageID: "deleted"}, false)

	res := h.svc.Route(context.Background(), liveRecord("p", ev("common.multiplayer", 2)))
	assert.Equal(t, ReasonMessageGone, res.Outcomes[0].Reason)
	assert.Equal(t, []string{"FetchMessage"}, h.sink.Trace())
}

func TestRoute_FinishPublicFirstFinishPolicy(t *testing.T) {
	h := newHarness(publicGuild("A", finishRole))
	ctx := context.Background()

	res := h.svc.Route(ctx, liveRecord("p", ev(EventCredits, 12*60000)))
	out := res.Outcomes[0]
	assert.True(t, out.LeaderboardDelegated)
	require.Equal(t, ActionSend, out.Action, "first finish always notifies")
	assert.True(t, strings.HasPrefix(out.Content, "## 12:00 - Finish\n"))
	assert.True(t, strings.HasSuffix(out.Content, "\n<@&f45>"))

	res = h.svc.Route(ctx, liveRecord("p", ev(EventCredits, 13*60000)))
	assert.Equal(t, ReasonFinishSkipped, res.Outcomes[0].Reason)

	res = h.svc.Route(ctx, liveRecord("p", ev(EventCredits, 11*60000)))
	assert.Equal(t, ActionSend, res.Outcomes[0].Action)

	require.Len(t, h.lb.calls, 3)
	assert.Equal(t, finishCall{Ref: LeaderboardRef{GuildID: "A"}, Runner: "p", Minutes: 11, Seconds: 0}, h.lb.calls[2])
}

func TestRoute_FinishPublicThreshold(t *testing.T) {
	g := publicGuild("A", finishRole)
	g.FinishThresholdMinutes = 10
	h := newHarness(g)

	res := h.svc.Route(context.Background(), liveRecord("p", ev(EventCredits, 10*60000+500)))
	assert.Equal(t, ReasonFinishSkipped, res.Outcomes[0].Reason)
	res = h.svc.Route(context.Background(), liveRecord("p", ev(EventCredits, 9*60000+59000)))
	assert.Equal(t, ActionSend, res.Outcomes[0].Action)
	assert.Len(t, h.lb.calls, 2)
}

func TestRoute_FinishGatesAreIndependent(t *testing.T) {
	h := newHarness(privateGuild("P", finishRole))
	h.roster.runners["P/p"] = domain.ExpectedSplits{}
	h.lb.Err = errors.New("leaderboard down")

	res := h.svc.Route(context.Background(), liveRecord("p", ev(EventCredits, 30*60000)))
	out := res.Outcomes[0]
	assert.True(t, out.LeaderboardDelegated)
	assert.Equal(t, ActionSend, out.Action, "private guilds always notify finishes")
	assert.Equal(t, LeaderboardRef{GuildID: "P", ChannelID: "lb-P"}, h.lb.calls[0].Ref)

	// y al revés: un envío que falla no evita el leaderboard
	h.lb.Err = nil
	h.sink.SendErr = errors.New("boom")
	res = h.svc.Route(context.Background(), liveRecord("p", ev(EventCredits, 29*60000)))
	assert.Equal(t, ReasonSinkError, res.Outcomes[0].Reason)
	assert.Len(t, h.lb.calls, 2)
}

func TestRoute_FinishWithoutRolesSuppressed(t *testing.T) {
	// 50:00 es más lento que el único rol de finish
	h := newHarness(publicGuild("A", finishRole), privateGuild("P"))
	h.roster.runners["P/p"] = domain.ExpectedSplits{}

	res := h.svc.Route(context.Background(), liveRecord("p", ev(EventCredits, 50*60000)))
	require.Len(t, res.Outcomes, 2)
	for _, out := range res.Outcomes {
		assert.Equal(t, ActionSuppress, out.Action, out.GuildID)
		assert.Equal(t, ReasonNoRoles, out.Reason, out.GuildID)
		assert.True(t, out.LeaderboardDelegated, out.GuildID)
	}
	assert.Empty(t, h.sink.Trace())
	assert.Len(t, h.lb.calls, 2)

	// sin claim pendiente: un finish que sí matchea sale normal
	res = h.svc.Route(context.Background(), liveRecord("p", ev(EventCredits, 40*60000)))
	assert.Equal(t, ActionSend, res.Outcomes[0].Action)
}

func TestRoute_OfflinePublicFinishStillDelegated(t *testing.T) {
	h := newHarness(publicGuild("A", finishRole))
	rec := liveRecord("p", ev(EventCredits, 9*60000))
	rec.LiveAccount = nil

	res := h.svc.Route(context.Background(), rec)
	require.Len(t, res.Outcomes, 1)
	out := res.Outcomes[0]
	assert.True(t, out.LeaderboardDelegated)
	assert.Equal(t, ActionSuppress, out.Action)
	assert.Equal(t, ReasonNotLive, out.Reason)
	require.Len(t, h.lb.calls, 1)
	assert.Equal(t, finishCall{Ref: LeaderboardRef{GuildID: "A"}, Runner: "p", Minutes: 9, Seconds: 0}, h.lb.calls[0])
	assert.Empty(t, h.sink.Trace())
}

func TestRoute_OfflinePublicResetStillEdits(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...))
	ctx := context.Background()

	res := h.svc.Route(ctx, liveRecord("p", ev(EventEnterBastion, 100000)))
	require.Equal(t, ActionSend, res.Outcomes[0].Action)
	sent := res.Outcomes[0].Ref

	// el stream terminó antes del reset
	reset := liveRecord("p", ev(EventEnterBastion, 100000), ev("common.leave_world", 110000))
	reset.LiveAccount = nil
	res = h.svc.Route(ctx, reset)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionEdit, res.Outcomes[0].Action)
	assert.Equal(t, sent, res.Outcomes[0].Ref)
	assert.True(t, strings.HasPrefix(h.sink.Content(sent.MessageID), "## 01:40 - Bastion (Reset)\n"))
}

func TestRoute_StaleCommitDiscarded(t *testing.T) {
	h := newHarness(publicGuild("A", fsRoles...))
	ctx := context.Background()
	first := liveRecord("p", ev(EventEnterBastion, 60000))
	second := liveRecord("p", ev(EventEnterBastion, 59000))

	// mientras el primer envío está en vuelo entra otro record del mismo runner
	var inner RouteResult
	h.sink.OnSend = func() {
		h.sink.OnSend = nil
		inner = h.svc.Route(ctx, second)
	}
	outer := h.svc.Route(ctx, first)

	require.Equal(t, ActionSend, outer.Outcomes[0].Action)
	require.Equal(t, ActionSend, inner.Outcomes[0].Action)
	st, _ := h.store.Snapshot("A", first.PlayerKey())
	assert.Equal(t, inner.Outcomes[0].Ref, st.LastRef, "newer claim wins")
	assert.Len(t, h.refs.saved, 1)
}
