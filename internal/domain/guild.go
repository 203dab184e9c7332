package domain

import "fmt"

// RoleDef es un rol suscriptor configurado en el guild.
type RoleDef struct {
	RoleID           string
	Name             string
	Split            Split
	ThresholdMinutes uint32
	ThresholdSeconds uint32 // 0 o 30
	IsPersonalBest   bool
}

func (r RoleDef) Mention() string { return fmt.Sprintf("<@&%s>", r.RoleID) }

// GuildConfig es lo que el router necesita saber de cada guild.
type GuildConfig struct {
	GuildID             string
	Name                string
	IsPrivate           bool
	NotificationChannel string
	LeaderboardChannel  string // vacío = sin leaderboard
	Roles               []RoleDef

	// umbral de visibilidad de finishes en guilds públicos; 0 = sin configurar
	FinishThresholdMinutes uint32
}

// MessageRef apunta a un mensaje ya enviado por el sink.
type MessageRef struct {
	ChannelID string
	MessageID string
}

func (m MessageRef) IsZero() bool { return m.MessageID == "" }

// ExpectedSplits son los tiempos (minutos) que el roster define para un runner.
type ExpectedSplits map[Split]uint32
