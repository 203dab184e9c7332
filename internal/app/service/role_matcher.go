package service

import "github.com/jose-valero/paceman-pings/internal/domain"

// MatchRoles filtra los roles del guild para este split/pace. Respeta el orden de configuración.
// ps puede ser nil (sin tiempos esperados).
func MatchRoles(g domain.GuildConfig, split domain.Split, igtMillis int64, ps *PlayerState) []domain.RoleDef {
	minutes, seconds := domain.MinsSecs(igtMillis)
	var out []domain.RoleDef
	for _, role := range g.Roles {
		if role.Split != split {
			continue
		}
		if role.IsPersonalBest {
			// los roles PB solo existen en guilds privados con roster
			if !g.IsPrivate || ps == nil {
				continue
			}
			expected, ok := ps.Expected[split]
			if !ok || expected <= minutes {
				continue
			}
			out = append(out, role)
			continue
		}
		if minutes < role.ThresholdMinutes ||
			(minutes == role.ThresholdMinutes && seconds < role.ThresholdSeconds) {
			out = append(out, role)
		}
	}
	return out
}
