package service

import (
	"fmt"
	"strings"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

const (
	resetSuffix      = "(Reset)"
	bastionlessLabel = "(Bastionless)"
	twitchBase       = "https://twitch.tv/"
)

// escapeNick evita que los "_" del nick rompan el markdown.
func escapeNick(nick string) string {
	return strings.ReplaceAll(nick, "_", `\_`)
}

// LiveLink: link al stream, o "Offline - nick" (solo guilds privados llegan acá sin live).
func LiveLink(rec domain.Record) string {
	if rec.IsLive() {
		return fmt.Sprintf("[%s](<%s%s>)", escapeNick(rec.Nickname), twitchBase, strings.TrimSpace(*rec.LiveAccount))
	}
	return "Offline - " + escapeNick(rec.Nickname)
}

// NotificationContent arma el mensaje de 3 líneas:
//
//	## mm:ss - desc [marker]
//	link<TAB><t:unix:R>
//	@rol @rol
func NotificationContent(igtMillis int64, desc, marker, liveLink string, lastUpdatedMillis int64, roles []domain.RoleDef) string {
	header := fmt.Sprintf("## %s - %s", domain.FormatIGT(igtMillis), desc)
	if marker != "" {
		header += " " + marker
	}
	mentions := make([]string, 0, len(roles))
	for _, r := range roles {
		mentions = append(mentions, r.Mention())
	}
	return fmt.Sprintf("%s\n%s\t<t:%d:R>\n%s", header, liveLink, lastUpdatedMillis/1000, strings.Join(mentions, " "))
}

// ApplyResetMarker agrega " (Reset)" a la primera línea y deja el resto byte a byte igual.
// false si ya estaba marcado.
func ApplyResetMarker(content string) (string, bool) {
	first, rest, hasRest := strings.Cut(content, "\n")
	if strings.HasSuffix(strings.TrimSpace(first), resetSuffix) {
		return content, false
	}
	first += " " + resetSuffix
	if !hasRest {
		return first, true
	}
	return first + "\n" + rest, true
}
