package discord

import "github.com/bwmarrin/discordgo"

var minZero = float64(0)

func minutesOpt(name, desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: desc,
		MinValue:    &minZero,
	}
}

var splitChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "First Structure", Value: "FS"},
	{Name: "Second Structure", Value: "SS"},
	{Name: "Blind", Value: "B"},
	{Name: "Eye Spy", Value: "E"},
	{Name: "End Enter", Value: "EE"},
	{Name: "Finish", Value: "F"},
}

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Chequea que el bot responde",
	},
	{
		Name:        "validate_config",
		Description: "Recarga y valida la configuración del servidor (canales y roles)",
	},
	{
		Name:        "setup_default_roles",
		Description: "Crea el set de pace-roles por defecto (admins)",
	},
	{
		Name:        "setup_roles",
		Description: "Crea pace-roles para un split en un rango de minutos (admins)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "split",
				Description: "Split",
				Required:    true,
				Choices:     splitChoices,
			},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "start", Description: "Minuto inicial", Required: true, MinValue: &minZero},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "end", Description: "Minuto final", Required: true, MinValue: &minZero},
		},
	},
	{
		Name:        "send_role_message",
		Description: "Publica aquí el selector de pace-roles (admins)",
	},
	{
		Name:        "leaderboard",
		Description: "Publica o refresca el leaderboard en #" + ChannelLeaderboard,
	},
	{
		Name:        "settings",
		Description: "Ver o cambiar la configuración del bot (admins)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "Ver configuración"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Actualizar configuración (sólo lo que pases)",
				Options: []*discordgo.ApplicationCommandOption{
					minutesOpt("finish_threshold_minutes", "Finishes más lentos no se anuncian (0 = sólo si mejora el primero)"),
				},
			},
		},
	},
	{
		Name:        "runner",
		Description: "Roster de runners (servidores privados, admins)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Agrega o actualiza un runner",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "nick", Description: "Nickname en paceman", Required: true},
					minutesOpt("first_structure", "Minutos esperados para First Structure"),
					minutesOpt("second_structure", "Minutos esperados para Second Structure"),
					minutesOpt("blind", "Minutos esperados para Blind"),
					minutesOpt("eye_spy", "Minutos esperados para Eye Spy"),
					minutesOpt("end_enter", "Minutos esperados para End Enter"),
					minutesOpt("finish", "Minutos esperados para Finish"),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Saca a un runner del roster",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "nick", Description: "Nickname en paceman", Required: true},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "Lista el roster"},
		},
	},
}

// opción de /runner add -> split
var runnerSplitOpts = map[string]string{
	"first_structure":  "FS",
	"second_structure": "SS",
	"blind":            "B",
	"eye_spy":          "E",
	"end_enter":        "EE",
	"finish":           "F",
}

// DefaultRoleNames es el set que crea /setup_default_roles.
var DefaultRoleNames = []string{
	"*FS2:0", "*FS2:3", "*FS3:0",
	"*SS6:0", "*SS5:3", "*SS5:0", "*SS4:3",
	"*B8:0", "*B7:3", "*B7:0", "*B6:3", "*B6:0", "*B5:3",
	"*E9:3", "*E9:0", "*E8:3", "*E8:0",
	"*EE8:3", "*EE9:0", "*EE9:3", "*EE10:0",
}

// RangeRoleNames: *<code><m>:0 y *<code><m>:3 para m en [start, end), más *<code><end>:0.
func RangeRoleNames(code string, start, end int) []string {
	if end < start {
		start, end = end, start
	}
	out := make([]string, 0, 2*(end-start)+1)
	for m := start; m < end; m++ {
		out = append(out, roleName(code, m, 0), roleName(code, m, 3))
	}
	return append(out, roleName(code, end, 0))
}
