// lógica de InteractionApplicationCommand de discordgo
// aquí solo se parsea la interacción y se despacha a los servicios
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/paceman-pings/internal/app/service"
	"github.com/jose-valero/paceman-pings/internal/domain"
)

func (r *Router) handleSlashCommand(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	cmd := ic.ApplicationCommandData()
	uid := interactionUserID(ic)
	log := r.log.With("cmd", cmd.Name, "user_id", uid, "guild_id", ic.GuildID)
	log.Info("slash command")

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in slash command", "panic", rec)
			ReplyEphemeral(s, ic, "❌ Ocurrió un error inesperado procesando el comando.")
		}
	}()

	_ = DeferEphemeral(s, ic)
	if ic.GuildID == "" {
		ReplyEphemeral(s, ic, "Este bot sólo funciona dentro de un servidor.")
		return
	}
	if !r.cmdLimiter.Allow(uid) {
		ReplyEphemeral(s, ic, "⏳ Esperá un segundo…")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch cmd.Name {

	case "ping":
		ReplyEphemeral(s, ic, "🏓 Pong!")

	//--> recarga la config del guild y dice qué falta
	case "validate_config":
		cfg, err := r.directory.Refresh(ctx, ic.GuildID)
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ Error: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, describeConfig(cfg))

	case "setup_default_roles":
		if !r.requireAdminOrRoles(s, ic) {
			return
		}
		created, err := r.ensureRoles(ctx, ic.GuildID, DefaultRoleNames)
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ No pude crear los roles: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, fmt.Sprintf("✅ Pace-roles por defecto listos (%d nuevos).", created))

	case "setup_roles":
		if !r.requireAdminOrRoles(s, ic) {
			return
		}
		code, _ := optStr(ic, "split")
		start, _ := optInt(ic, "start")
		end, _ := optInt(ic, "end")
		if end-start > 30 || start-end > 30 {
			ReplyEphemeral(s, ic, "⚠️ Rango demasiado grande (máximo 30 minutos).")
			return
		}
		created, err := r.ensureRoles(ctx, ic.GuildID, RangeRoleNames(code, start, end))
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ No pude crear los roles: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, fmt.Sprintf("✅ Pace-roles de %s entre %d y %d listos (%d nuevos).", code, start, end, created))

	case "send_role_message":
		if !r.requireAdminOrRoles(s, ic) {
			return
		}
		if err := r.publishRoleSelection(ctx, ic.GuildID, ic.ChannelID); err != nil {
			ReplyEphemeral(s, ic, "⚠️ No pude publicar el selector: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "✅ Selector publicado aquí.")

	case "leaderboard":
		cfg, err := r.directory.Refresh(ctx, ic.GuildID)
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ Error: "+err.Error())
			return
		}
		if cfg.LeaderboardChannel == "" {
			ReplyEphemeral(s, ic, "ℹ️ Creá un canal #"+ChannelLeaderboard+" para tener leaderboard.")
			return
		}
		if err := r.leaderboard.Publish(ctx, ic.GuildID, cfg.LeaderboardChannel); err != nil {
			ReplyEphemeral(s, ic, "⚠️ No pude publicar el leaderboard: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "✅ Leaderboard actualizado en <#"+cfg.LeaderboardChannel+">.")

	case "settings":
		if !r.requireAdminOrRoles(s, ic) {
			return
		}
		if sub, ok := subcmdName(ic); ok && sub == "set" {
			var patch service.SettingsPatch
			if v, ok := optInt(ic, "finish_threshold_minutes"); ok {
				patch.FinishThresholdMinutes = &v
			}
			msg, err := r.settings.Update(ctx, ic.GuildID, patch)
			if err != nil {
				ReplyEphemeral(s, ic, "⚠️ No pude actualizar: "+err.Error())
				return
			}
			// el umbral vive en la GuildConfig cacheada
			go r.refreshGuild(ic.GuildID)
			ReplyEphemeral(s, ic, "✅ Settings actualizados.\n"+msg)
			return
		}
		msg, err := r.settings.Show(ctx, ic.GuildID)
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ No pude obtener los settings: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, msg)

	case "runner":
		if !r.requireAdminOrRoles(s, ic) {
			return
		}
		sub, _ := subcmdName(ic)
		nick, _ := optStr(ic, "nick")
		var (
			msg string
			err error
		)
		switch sub {
		case "add":
			times := service.RunnerTimes{}
			for opt, code := range runnerSplitOpts {
				if v, ok := optInt(ic, opt); ok {
					sp, _ := domain.SplitFromCode(code)
					times[sp] = &v
				}
			}
			msg, err = r.roster.Add(ctx, ic.GuildID, nick, times)
		case "remove":
			msg, err = r.roster.Remove(ctx, ic.GuildID, nick)
		default:
			msg, err = r.roster.Show(ctx, ic.GuildID)
		}
		if err != nil {
			msg = "⚠️ No pude actualizar el roster: " + err.Error()
		}
		ReplyEphemeral(s, ic, msg)
	}
}

// ensureRoles crea los roles que falten; devuelve cuántos creó.
func (r *Router) ensureRoles(ctx context.Context, guildID string, names []string) (int, error) {
	defer step(r.log, "roles.ensure")()
	existing, err := r.guildRoles(guildID)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, ro := range existing {
		have[ro.Name] = true
	}
	color := 0x36393F
	mentionable := true
	created := 0
	for _, name := range names {
		if have[name] {
			continue
		}
		if _, err := r.s.GuildRoleCreate(guildID, &discordgo.RoleParams{
			Name:        name,
			Color:       &color,
			Mentionable: &mentionable,
		}, discordgo.WithContext(ctx)); err != nil {
			return created, fmt.Errorf("create role %s: %w", name, err)
		}
		have[name] = true
		created++
	}
	return created, nil
}

func describeConfig(cfg domain.GuildConfig) string {
	var b strings.Builder
	b.WriteString("✅ Config válida. Los pace-pings van a <#" + cfg.NotificationChannel + ">.")
	if cfg.IsPrivate {
		b.WriteString("\n🔒 Servidor privado: sólo runners del roster (`/runner add`).")
	}
	if cfg.LeaderboardChannel != "" {
		b.WriteString("\n🏆 Leaderboard en <#" + cfg.LeaderboardChannel + ">.")
	}
	counts := map[domain.Split]int{}
	for _, ro := range cfg.Roles {
		counts[ro.Split]++
	}
	fmt.Fprintf(&b, "\n🎭 %d pace-roles:", len(cfg.Roles))
	for _, sp := range domain.AllSplits {
		fmt.Fprintf(&b, " %s=%d", sp.Code(), counts[sp])
	}
	if len(cfg.Roles) == 0 {
		b.WriteString("\n⚠️ No hay roles `*FS2:3` etc; usá `/setup_default_roles`.")
	}
	return b.String()
}
