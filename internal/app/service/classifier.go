package service

import "github.com/jose-valero/paceman-pings/internal/domain"

// Vocabulario del feed.
const (
	EventEnterBastion    = "rsg.enter_bastion"
	EventEnterFortress   = "rsg.enter_fortress"
	EventFirstPortal     = "rsg.first_portal"
	EventEnterStronghold = "rsg.enter_stronghold"
	EventEnterEnd        = "rsg.enter_end"
	EventCredits         = "rsg.credits"

	ContextBlazeRod       = "rsg.obtain_blaze_rod"
	ContextCryingObsidian = "rsg.obtain_crying_obsidian"
	ContextObsidian       = "rsg.obtain_obsidian"
	ContextLootBastion    = "rsg.loot_bastion"
)

// ResetEvents: el run salió de estado de progreso.
var ResetEvents = map[string]struct{}{
	"common.open_to_lan":   {},
	"common.multiplayer":   {},
	"common.enable_cheats": {},
	"common.view_seed":     {},
	"common.leave_world":   {},
	// algunos emisores mandan el id sin namespace
	"open_to_lan":   {},
	"multiplayer":   {},
	"enable_cheats": {},
	"view_seed":     {},
	"leave_world":   {},
}

// hitos 1:1 (las estructuras y el portal tienen reglas propias)
var splitByEvent = map[string]domain.Split{
	EventEnterStronghold: domain.EyeSpy,
	EventEnterEnd:        domain.EndEnter,
}

type VerdictKind int

const (
	VerdictSplit VerdictKind = iota + 1
	VerdictReset
	VerdictFinish
	VerdictUnrecognized
	VerdictMalformed
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictSplit:
		return "split"
	case VerdictReset:
		return "reset"
	case VerdictFinish:
		return "finish"
	case VerdictUnrecognized:
		return "unrecognized"
	case VerdictMalformed:
		return "malformed"
	}
	return "unknown"
}

type Verdict struct {
	Kind        VerdictKind
	Event       domain.Event // evento final del record
	Split       domain.Split
	Label       string // "Bastion" / "Fortress"
	Bastionless bool
}

// AbortsRecord: ningún guild debe evaluarse contra este record.
// Distinto del skip por guild, que decide el router.
func (v Verdict) AbortsRecord() bool {
	return v.Kind == VerdictUnrecognized || v.Kind == VerdictMalformed
}

// Classify es puro: solo lee el evento final, el eventList previo y el contextEventList.
func Classify(rec domain.Record) Verdict {
	last, ok := rec.Last()
	if !ok {
		return Verdict{Kind: VerdictMalformed}
	}
	v := Verdict{Event: last}
	earlier := rec.EventList[:len(rec.EventList)-1]

	if _, ok := ResetEvents[last.EventID]; ok {
		v.Kind = VerdictReset
		return v
	}

	switch last.EventID {
	case EventCredits:
		v.Kind = VerdictFinish
		v.Split = domain.Finish

	case EventEnterBastion:
		v.Kind = VerdictSplit
		v.Label = "Bastion"
		v.Split = domain.FirstStructure
		if hasEvent(rec.ContextEventList, ContextBlazeRod) {
			v.Split = domain.SecondStructure
		}

	case EventEnterFortress:
		v.Kind = VerdictSplit
		v.Label = "Fortress"
		v.Split = domain.FirstStructure
		if hasEvent(earlier, EventEnterBastion) && contextHits(rec.ContextEventList) >= 2 {
			v.Split = domain.SecondStructure
		}

	case EventFirstPortal:
		v.Kind = VerdictSplit
		v.Split = domain.Blind
		v.Bastionless = !hasEvent(earlier, EventEnterBastion)

	default:
		sp, ok := splitByEvent[last.EventID]
		if !ok {
			v.Kind = VerdictUnrecognized
			return v
		}
		v.Kind = VerdictSplit
		v.Split = sp
	}
	return v
}

func hasEvent(evts []domain.Event, id string) bool {
	for _, e := range evts {
		if e.EventID == id {
			return true
		}
	}
	return false
}

// cuántos de los 3 marcadores de bastion aparecen (distintos)
func contextHits(ctx []domain.Event) int {
	seen := map[string]bool{}
	for _, e := range ctx {
		switch e.EventID {
		case ContextCryingObsidian, ContextObsidian, ContextLootBastion:
			seen[e.EventID] = true
		}
	}
	return len(seen)
}
