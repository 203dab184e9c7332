package service

import (
	"sync"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

// PlayerState vive por (guild, player) mientras viva el proceso.
type PlayerState struct {
	LastSplit    domain.Split // 0 = ninguno
	LastSplitIGT int64
	LastRef      domain.MessageRef
	ResetApplied bool // el LastRef ya recibió su edit de reset
	Expected     domain.ExpectedSplits
	FirstFinish  int64 // igt ms del primer finish notificado; 0 = ninguno

	// version sube con cada claim de envío; el commit compara contra ella.
	version uint64
	pending *pendingSend
}

type pendingSend struct {
	split domain.Split
	igt   int64
}

// isDuplicate: mismo split y mismo igt que lo último notificado (o en vuelo).
func (p *PlayerState) isDuplicate(sp domain.Split, igt int64) bool {
	if p.pending != nil && p.pending.split == sp && p.pending.igt == igt {
		return true
	}
	return !p.LastRef.IsZero() && p.LastSplit == sp && p.LastSplitIGT == igt
}

func (p *PlayerState) claim(sp domain.Split, igt int64) uint64 {
	p.version++
	p.pending = &pendingSend{split: sp, igt: igt}
	return p.version
}

// release deshace un claim cuyo envío falló; el estado visible no cambia.
func (p *PlayerState) release(v uint64) {
	if p.version == v {
		p.pending = nil
	}
}

// commit aplica el resultado de un envío si nadie reclamó después.
func (p *PlayerState) commit(v uint64, sp domain.Split, igt int64, ref domain.MessageRef) bool {
	if p.version != v {
		return false
	}
	p.pending = nil
	p.LastSplit = sp
	p.LastSplitIGT = igt
	p.LastRef = ref
	p.ResetApplied = false
	return true
}

// PlayerStore es el cache compartido guild -> player -> estado.
// Un único mutex cubre todo el mapa; el router lo toma por paso de guild (ver Do).
type PlayerStore struct {
	mu     sync.Mutex
	guilds map[string]map[string]*PlayerState
}

func NewPlayerStore() *PlayerStore {
	return &PlayerStore{guilds: map[string]map[string]*PlayerState{}}
}

// StoreTx solo es válido dentro de Do.
type StoreTx struct{ s *PlayerStore }

// Do corre fn con el lock tomado. fn no debe hacer llamadas de red.
func (s *PlayerStore) Do(fn func(tx StoreTx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(StoreTx{s: s})
}

func (tx StoreTx) Find(guildID, playerKey string) (*PlayerState, bool) {
	g, ok := tx.s.guilds[guildID]
	if !ok {
		return nil, false
	}
	p, ok := g[playerKey]
	return p, ok
}

func (tx StoreTx) GetOrCreate(guildID, playerKey string) *PlayerState {
	g, ok := tx.s.guilds[guildID]
	if !ok {
		g = map[string]*PlayerState{}
		tx.s.guilds[guildID] = g
	}
	p, ok := g[playerKey]
	if !ok {
		p = &PlayerState{}
		g[playerKey] = p
	}
	return p
}

// Snapshot devuelve una copia (para tests y debugging).
func (s *PlayerStore) Snapshot(guildID, playerKey string) (PlayerState, bool) {
	var (
		out PlayerState
		ok  bool
	)
	s.Do(func(tx StoreTx) {
		var p *PlayerState
		if p, ok = tx.Find(guildID, playerKey); ok {
			out = *p
			out.pending = nil
		}
	})
	return out, ok
}

// Restore rehidrata el último ref persistido; no pisa estado ya existente.
func (s *PlayerStore) Restore(guildID, playerKey string, sp domain.Split, igt int64, ref domain.MessageRef, resetApplied bool) bool {
	restored := false
	s.Do(func(tx StoreTx) {
		if _, ok := tx.Find(guildID, playerKey); ok {
			return
		}
		p := tx.GetOrCreate(guildID, playerKey)
		p.LastSplit = sp
		p.LastSplitIGT = igt
		p.LastRef = ref
		p.ResetApplied = resetApplied
		restored = true
	})
	return restored
}
