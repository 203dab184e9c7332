package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

func (r *Router) handleMessageComponent(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.MessageComponentData()
	uid := interactionUserID(ic)
	log := r.log.With("component", data.CustomID, "user_id", uid, "guild_id", ic.GuildID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in component", "panic", rec)
			ReplyEphemeral(s, ic, "❌ Ocurrió un error inesperado.")
		}
	}()

	_ = DeferEphemeral(s, ic)
	if ic.Member == nil {
		return
	}
	if !r.clickLimiter.Allow(uid) {
		ReplyEphemeral(s, ic, "⏳ Esperá un segundo…")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	var cfg domain.GuildConfig
	found := false
	for _, g := range r.directory.Guilds() {
		if g.GuildID == ic.GuildID {
			cfg, found = g, true
			break
		}
	}
	if !found {
		ReplyEphemeral(s, ic, "⚠️ El servidor no está configurado; un admin debe correr `/validate_config`.")
		return
	}

	if data.CustomID == removePaceRolesID {
		drop := rolesToDrop(ic.Member.Roles, cfg.Roles, 0, "")
		if err := r.applyRoleChanges(ctx, ic.GuildID, uid, "", drop); err != nil {
			log.Warn("unable to remove pace roles", "error", err)
			ReplyEphemeral(s, ic, "⚠️ No pude quitar los roles: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "✅ Pace-roles quitados.")
		return
	}

	sp, ok := splitFromCustomID(data.CustomID)
	if !ok || len(data.Values) == 0 {
		ReplyEphemeral(s, ic, "⚠️ Selección inválida.")
		return
	}
	pick := data.Values[0]
	drop := rolesToDrop(ic.Member.Roles, cfg.Roles, sp, pick)
	if err := r.applyRoleChanges(ctx, ic.GuildID, uid, pick, drop); err != nil {
		log.Warn("unable to update pace roles", "error", err)
		ReplyEphemeral(s, ic, "⚠️ No pude asignar el rol: "+err.Error())
		return
	}
	ReplyEphemeral(s, ic, "✅ Listo: ahora tenés <@&"+pick+">.")
}

func (r *Router) applyRoleChanges(ctx context.Context, guildID, userID, add string, drop []string) error {
	for _, id := range drop {
		if err := r.s.GuildMemberRoleRemove(guildID, userID, id, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	if add == "" {
		return nil
	}
	return r.s.GuildMemberRoleAdd(guildID, userID, add, discordgo.WithContext(ctx))
}
