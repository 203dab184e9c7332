package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

const (
	selectRolePrefix  = "select_role:"
	removePaceRolesID = "remove_pace_roles"
	maxSelectOptions  = 25
)

var selectableSplits = []domain.Split{domain.FirstStructure, domain.SecondStructure, domain.Blind, domain.EyeSpy, domain.EndEnter}

// roleSelectionRows arma un select por split con roles de umbral (los PB no se autoasignan).
func roleSelectionRows(roles []domain.RoleDef) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	for _, sp := range selectableSplits {
		opts := []discordgo.SelectMenuOption{}
		for _, ro := range roles {
			if ro.Split != sp || ro.IsPersonalBest || len(opts) == maxSelectOptions {
				continue
			}
			opts = append(opts, discordgo.SelectMenuOption{
				Label: fmt.Sprintf("Sub %d:%02d %s", ro.ThresholdMinutes, ro.ThresholdSeconds, sp.Desc("")),
				Value: ro.RoleID,
			})
		}
		if len(opts) == 0 {
			continue
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    selectRolePrefix + sp.Code(),
				Placeholder: "Choose a " + sp.Desc("") + " role...",
				Options:     opts,
			},
		}})
	}
	return rows
}

func removeRolesRow() discordgo.MessageComponent {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Remove ALL pace-roles",
			Style:    discordgo.DangerButton,
			CustomID: removePaceRolesID,
		},
	}}
}

// publishRoleSelection manda el selector a channelID. Discord permite 5 filas por
// mensaje, así que el botón de quitar va en un segundo mensaje.
func (r *Router) publishRoleSelection(ctx context.Context, guildID, channelID string) error {
	cfg, err := r.directory.Refresh(ctx, guildID)
	if err != nil {
		return err
	}
	rows := roleSelectionRows(cfg.Roles)
	if len(rows) == 0 {
		return errors.New("no hay pace-roles configurados; usá /setup_default_roles")
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Pace-roles",
		Description: "Elegí un rol por split para recibir pings cuando alguien vaya más rápido que ese tiempo.",
		Color:       0x36393F,
	}
	if _, err := r.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: rows,
	}, discordgo.WithContext(ctx)); err != nil {
		return err
	}
	_, err = r.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Components: []discordgo.MessageComponent{removeRolesRow()},
	}, discordgo.WithContext(ctx))
	return err
}

// rolesToDrop: pace-roles que el miembro ya tiene y que hay que sacar.
// split=0 -> todos; si no, solo los de ese split salvo keep.
func rolesToDrop(memberRoles []string, roles []domain.RoleDef, split domain.Split, keep string) []string {
	byID := make(map[string]domain.RoleDef, len(roles))
	for _, ro := range roles {
		byID[ro.RoleID] = ro
	}
	var out []string
	for _, id := range memberRoles {
		ro, ok := byID[id]
		if !ok || id == keep || ro.IsPersonalBest {
			continue
		}
		if split != 0 && ro.Split != split {
			continue
		}
		out = append(out, id)
	}
	return out
}

func splitFromCustomID(customID string) (domain.Split, bool) {
	code, ok := strings.CutPrefix(customID, selectRolePrefix)
	if !ok {
		return 0, false
	}
	return domain.SplitFromCode(code)
}
