package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type GuildSettings struct {
	GuildID string
	// umbral de visibilidad de finishes en guilds públicos; 0 = primer finish siempre notifica
	FinishThresholdMinutes int
	CreatedAt, UpdatedAt   time.Time
}

// Runner es una fila del roster de un guild privado. Los tiempos son minutos; nil = sin definir.
type Runner struct {
	GuildID        string
	PlayerKey      string // nick en minúsculas
	Nickname       string
	FirstStructure *int
	SecondStruct   *int
	Blind          *int
	EyeSpy         *int
	EndEnter       *int
	Finish         *int
	UpdatedAt      time.Time
}

// PaceMessage es el último pace-ping enviado por (guild, player).
type PaceMessage struct {
	GuildID      string
	PlayerKey    string
	ChannelID    string
	MessageID    string
	Split        string // código (FS, SS, B, ...)
	IGTMillis    int64
	ResetApplied bool
	UpdatedAt    time.Time
}

// Finish guarda el mejor tiempo por runner y guild.
type Finish struct {
	GuildID    string
	Runner     string
	IGTSeconds int
	UpdatedAt  time.Time
}

type LeaderboardUI struct {
	GuildID   string
	ChannelID string
	MessageID string
	CreatedAt time.Time
	UpdatedAt time.Time
}
