package discord

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// opciones de slash commands, buscando también dentro del subcomando

func findOpt(ic *discordgo.InteractionCreate, name string) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return nil, false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Name == name {
			return o, true
		}
		// subcommand
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			for _, so := range o.Options {
				if so.Name == name {
					return so, true
				}
			}
		}
	}
	return nil, false
}

func optStr(ic *discordgo.InteractionCreate, name string) (string, bool) {
	o, ok := findOpt(ic, name)
	if !ok || o.Type != discordgo.ApplicationCommandOptionString {
		return "", false
	}
	return o.StringValue(), true
}

func optInt(ic *discordgo.InteractionCreate, name string) (int, bool) {
	o, ok := findOpt(ic, name)
	if !ok || o.Type != discordgo.ApplicationCommandOptionInteger {
		return 0, false
	}
	return int(o.IntValue()), true
}

func subcmdName(ic *discordgo.InteractionCreate) (string, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return "", false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			return o.Name, true
		}
	}
	return "", false
}

func interactionUserID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

func (r *Router) guildRoles(guildID string) ([]*discordgo.Role, error) {
	if g, err := r.s.State.Guild(guildID); err == nil && g != nil && len(g.Roles) > 0 {
		return g.Roles, nil
	}
	return r.s.GuildRoles(guildID)
}

func roleName(code string, minutes, tens int) string {
	return "*" + code + strconv.Itoa(minutes) + ":" + strconv.Itoa(tens)
}
