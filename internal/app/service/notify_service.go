package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jose-valero/paceman-pings/internal/domain"
	"github.com/jose-valero/paceman-pings/internal/infra/storage"
)

type Action int

const (
	ActionSuppress Action = iota
	ActionSend
	ActionEdit
)

func (a Action) String() string {
	switch a {
	case ActionSend:
		return "send"
	case ActionEdit:
		return "edit"
	}
	return "suppress"
}

// Motivos de skip por guild (también van como label de métrica).
const (
	ReasonNotLive       = "not_live"
	ReasonUnrostered    = "unrostered"
	ReasonRosterError   = "roster_error"
	ReasonNoRoles       = "no_roles"
	ReasonDuplicate     = "duplicate"
	ReasonNoRef         = "no_ref"
	ReasonRefInFlight   = "ref_in_flight"
	ReasonAlreadyReset  = "already_reset"
	ReasonMessageGone   = "message_gone"
	ReasonSinkError     = "sink_error"
	ReasonFinishSkipped = "finish_above_threshold"
	ReasonNoChannel     = "no_channel"
)

type GuildOutcome struct {
	GuildID string
	Action  Action
	Reason  string
	Ref     domain.MessageRef
	Content string
	// el finish se delegó al leaderboard (independiente de Action)
	LeaderboardDelegated bool
}

type RouteResult struct {
	Verdict  Verdict
	Aborted  bool
	Outcomes []GuildOutcome
}

// NotifyService: clasificación -> estado -> roles -> sink, guild por guild.
type NotifyService struct {
	guilds      GuildSource
	store       *PlayerStore
	sink        Sink
	leaderboard Leaderboard
	roster      Roster
	refs        RefStore
	sinkTimeout time.Duration
	log         *slog.Logger
}

func NewNotifyService(guilds GuildSource, store *PlayerStore, sink Sink, lb Leaderboard, roster Roster, refs RefStore, sinkTimeout time.Duration, log *slog.Logger) *NotifyService {
	if sinkTimeout <= 0 {
		sinkTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &NotifyService{
		guilds:      guilds,
		store:       store,
		sink:        sink,
		leaderboard: lb,
		roster:      roster,
		refs:        refs,
		sinkTimeout: sinkTimeout,
		log:         log,
	}
}

// Route procesa un record contra todos los guilds. Nunca falla: todo error queda en logs.
func (n *NotifyService) Route(ctx context.Context, rec domain.Record) RouteResult {
	return n.route(ctx, n.log, rec)
}

func (n *NotifyService) route(ctx context.Context, log *slog.Logger, rec domain.Record) RouteResult {
	v := Classify(rec)
	res := RouteResult{Verdict: v}
	recordsCounter.WithLabelValues(v.Kind.String()).Inc()

	switch v.Kind {
	case VerdictMalformed:
		log.Error("no events in event list", "record", rec)
		res.Aborted = true
		return res
	case VerdictUnrecognized:
		// el vocabulario no depende del guild: si no lo conocemos acá, no lo conoce nadie
		log.Info("skipping unrecognized event id for all guilds", "event_id", v.Event.EventID, "nickname", rec.Nickname)
		res.Aborted = true
		return res
	}

	for _, g := range n.guilds.Guilds() {
		if ctx.Err() != nil {
			break
		}
		glog := log.With("guild", g.Name, "guild_id", g.GuildID, "nickname", rec.Nickname)
		out := n.routeGuild(ctx, glog, rec, v, g)
		guildActionsCounter.WithLabelValues(out.Action.String(), out.Reason).Inc()
		res.Outcomes = append(res.Outcomes, out)
	}
	return res
}

func (n *NotifyService) routeGuild(ctx context.Context, log *slog.Logger, rec domain.Record, v Verdict, g domain.GuildConfig) GuildOutcome {
	out := GuildOutcome{GuildID: g.GuildID}

	// la liveness solo gatea los pings (split y aviso de finish); reset y
	// leaderboard corren igual para un runner offline
	if g.NotificationChannel == "" {
		log.Warn("guild has no notification channel")
		out.Reason = ReasonNoChannel
		return out
	}

	// en guilds privados el roster es precondición: sin runner no se crea estado
	var expected domain.ExpectedSplits
	if g.IsPrivate {
		exp, ok, err := n.roster.LookupExpectedSplits(ctx, g.GuildID, domain.NickKey(rec.Nickname))
		if err != nil {
			sinkFailuresCounter.WithLabelValues("roster").Inc()
			log.Error("roster lookup failed", "error", err)
			out.Reason = ReasonRosterError
			return out
		}
		if !ok {
			log.Info("skipping because player is not in the runners roster")
			out.Reason = ReasonUnrostered
			return out
		}
		expected = exp
	}

	switch v.Kind {
	case VerdictReset:
		return n.handleReset(ctx, log, rec, g, out)
	case VerdictFinish:
		return n.handleFinish(ctx, log, rec, v, g, expected, out)
	default:
		return n.handleSplit(ctx, log, rec, v, g, expected, out)
	}
}

func (n *NotifyService) handleSplit(ctx context.Context, log *slog.Logger, rec domain.Record, v Verdict, g domain.GuildConfig, expected domain.ExpectedSplits, out GuildOutcome) GuildOutcome {
	key := rec.PlayerKey()
	desc := v.Split.Desc(v.Label)
	if !rec.IsLive() && !g.IsPrivate {
		log.Info("skipping split because user is not live", "split", desc)
		out.Reason = ReasonNotLive
		return out
	}
	var (
		roles []domain.RoleDef
		claim uint64
		dup   bool
	)
	n.store.Do(func(tx StoreTx) {
		st := tx.GetOrCreate(g.GuildID, key)
		if expected != nil {
			st.Expected = expected
		}
		if st.isDuplicate(v.Split, v.Event.IGT) {
			dup = true
			return
		}
		roles = MatchRoles(g, v.Split, v.Event.IGT, st)
		if len(roles) > 0 {
			claim = st.claim(v.Split, v.Event.IGT)
		}
	})
	if dup {
		log.Info("skipping split already notified", "split", desc)
		out.Reason = ReasonDuplicate
		return out
	}
	if len(roles) == 0 {
		log.Info("skipping split because there are no roles to ping", "split", desc)
		out.Reason = ReasonNoRoles
		return out
	}

	marker := ""
	if v.Bastionless {
		marker = bastionlessLabel
	}
	content := NotificationContent(v.Event.IGT, desc, marker, LiveLink(rec), rec.LastUpdated, roles)
	return n.send(ctx, log, rec, g, v.Split, v.Event.IGT, claim, content, out)
}

func (n *NotifyService) handleFinish(ctx context.Context, log *slog.Logger, rec domain.Record, v Verdict, g domain.GuildConfig, expected domain.ExpectedSplits, out GuildOutcome) GuildOutcome {
	key := rec.PlayerKey()
	minutes, seconds := domain.MinsSecs(v.Event.IGT)
	live := rec.IsLive() || g.IsPrivate
	var (
		roles  []domain.RoleDef
		claim  uint64
		notify bool
		dup    bool
	)
	// la decisión de notificar se toma antes y sin depender del leaderboard
	n.store.Do(func(tx StoreTx) {
		st := tx.GetOrCreate(g.GuildID, key)
		if expected != nil {
			st.Expected = expected
		}
		if st.isDuplicate(domain.Finish, v.Event.IGT) {
			dup = true
			return
		}
		notify = live && (g.IsPrivate || publicFinishVisible(g, st, v.Event.IGT))
		if notify {
			roles = MatchRoles(g, domain.Finish, v.Event.IGT, st)
			if len(roles) > 0 {
				claim = st.claim(domain.Finish, v.Event.IGT)
			}
		}
	})

	lbCtx, cancel := context.WithTimeout(ctx, n.sinkTimeout)
	err := n.leaderboard.RecordFinish(lbCtx, LeaderboardRef{GuildID: g.GuildID, ChannelID: g.LeaderboardChannel}, rec.Nickname, minutes, seconds)
	cancel()
	out.LeaderboardDelegated = true
	if err != nil {
		sinkFailuresCounter.WithLabelValues("leaderboard").Inc()
		log.Error("unable to update leaderboard", "time", domain.FormatIGT(v.Event.IGT), "error", err)
	} else {
		log.Info("updated leaderboard", "time", domain.FormatIGT(v.Event.IGT))
	}

	if dup {
		out.Reason = ReasonDuplicate
		return out
	}
	if !live {
		log.Info("skipping finish ping because user is not live", "time", domain.FormatIGT(v.Event.IGT))
		out.Reason = ReasonNotLive
		return out
	}
	if !notify {
		log.Info("skipping finish above the guild threshold", "time", domain.FormatIGT(v.Event.IGT))
		out.Reason = ReasonFinishSkipped
		return out
	}
	if len(roles) == 0 {
		log.Info("skipping finish because there are no roles to ping", "time", domain.FormatIGT(v.Event.IGT))
		out.Reason = ReasonNoRoles
		return out
	}
	content := NotificationContent(v.Event.IGT, domain.Finish.Desc(""), "", LiveLink(rec), rec.LastUpdated, roles)
	return n.send(ctx, log, rec, g, domain.Finish, v.Event.IGT, claim, content, out)
}

// publicFinishVisible: umbral del guild si existe; si no, el primer finish siempre
// notifica y los siguientes solo si mejoran al primero.
func publicFinishVisible(g domain.GuildConfig, st *PlayerState, igt int64) bool {
	if g.FinishThresholdMinutes > 0 {
		minutes, _ := domain.MinsSecs(igt)
		return minutes < g.FinishThresholdMinutes
	}
	return st.FirstFinish == 0 || igt < st.FirstFinish
}

func (n *NotifyService) send(ctx context.Context, log *slog.Logger, rec domain.Record, g domain.GuildConfig, sp domain.Split, igt int64, claim uint64, content string, out GuildOutcome) GuildOutcome {
	key := rec.PlayerKey()
	sendCtx, cancel := context.WithTimeout(ctx, n.sinkTimeout)
	ref, err := n.sink.SendMessage(sendCtx, g.NotificationChannel, content)
	cancel()
	if err != nil {
		sinkFailuresCounter.WithLabelValues("send").Inc()
		log.Error("unable to send split", "split", sp.String(), "error", err)
		n.store.Do(func(tx StoreTx) {
			if st, ok := tx.Find(g.GuildID, key); ok {
				st.release(claim)
			}
		})
		out.Reason = ReasonSinkError
		return out
	}

	committed := false
	n.store.Do(func(tx StoreTx) {
		st, ok := tx.Find(g.GuildID, key)
		if !ok {
			return
		}
		if committed = st.commit(claim, sp, igt, ref); committed && sp == domain.Finish && st.FirstFinish == 0 {
			st.FirstFinish = igt
		}
	})
	log.Info("sent pace-ping", "split", sp.String(), "message_id", ref.MessageID)
	out.Action = ActionSend
	out.Ref = ref
	out.Content = content
	if !committed {
		// otro record del mismo runner reclamó después; su ref es el que vale
		log.Warn("newer decision for player landed first; discarding this ref", "message_id", ref.MessageID)
		return out
	}

	if err := n.refs.Save(ctx, storage.PaceMessage{
		GuildID:   g.GuildID,
		PlayerKey: key,
		ChannelID: ref.ChannelID,
		MessageID: ref.MessageID,
		Split:     sp.Code(),
		IGTMillis: igt,
	}); err != nil {
		log.Warn("unable to persist message ref", "error", err)
	}
	return out
}

func (n *NotifyService) handleReset(ctx context.Context, log *slog.Logger, rec domain.Record, g domain.GuildConfig, out GuildOutcome) GuildOutcome {
	key := rec.PlayerKey()
	var (
		ref     domain.MessageRef
		version uint64
		reason  string
	)
	n.store.Do(func(tx StoreTx) {
		st, ok := tx.Find(g.GuildID, key)
		switch {
		case !ok || st.LastRef.IsZero():
			reason = ReasonNoRef
		case st.pending != nil:
			reason = ReasonRefInFlight
		case st.ResetApplied:
			reason = ReasonAlreadyReset
		default:
			ref = st.LastRef
			version = st.version
		}
	})
	if reason != "" {
		log.Info("no last pace message to edit for reset", "reason", reason)
		out.Reason = reason
		return out
	}

	fetchCtx, cancel := context.WithTimeout(ctx, n.sinkTimeout)
	msg, err := n.sink.FetchMessage(fetchCtx, ref)
	cancel()
	if err != nil {
		sinkFailuresCounter.WithLabelValues("fetch").Inc()
		log.Error("unable to fetch message for reset", "message_id", ref.MessageID, "error", err)
		out.Reason = ReasonSinkError
		return out
	}
	if msg == nil {
		log.Warn("message for reset no longer exists", "message_id", ref.MessageID)
		out.Reason = ReasonMessageGone
		return out
	}

	content, changed := ApplyResetMarker(msg.Content)
	if !changed {
		n.markReset(ctx, log, g.GuildID, key, ref, version)
		out.Reason = ReasonAlreadyReset
		return out
	}
	editCtx, cancel := context.WithTimeout(ctx, n.sinkTimeout)
	err = n.sink.EditMessage(editCtx, ref, content)
	cancel()
	if err != nil {
		sinkFailuresCounter.WithLabelValues("edit").Inc()
		log.Error("unable to edit message for reset", "message_id", ref.MessageID, "error", err)
		out.Reason = ReasonSinkError
		return out
	}
	n.markReset(ctx, log, g.GuildID, key, ref, version)
	log.Info("marked pace-ping as reset", "message_id", ref.MessageID)
	out.Action = ActionEdit
	out.Ref = ref
	out.Content = content
	return out
}

// markReset consume el ref salvo que un envío nuevo haya entrado en el medio.
func (n *NotifyService) markReset(ctx context.Context, log *slog.Logger, guildID, key string, ref domain.MessageRef, version uint64) {
	applied := false
	n.store.Do(func(tx StoreTx) {
		st, ok := tx.Find(guildID, key)
		if !ok || st.version != version || st.LastRef != ref {
			return
		}
		st.ResetApplied = true
		applied = true
	})
	if !applied {
		log.Warn("player state changed during reset; leaving newer ref untouched", "message_id", ref.MessageID)
		return
	}
	if err := n.refs.MarkReset(ctx, guildID, key, ref.MessageID); err != nil {
		log.Warn("unable to persist reset flag", "error", err)
	}
}
