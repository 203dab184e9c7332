package discord

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/paceman-pings/internal/app/service"
	"github.com/jose-valero/paceman-pings/internal/domain"
)

// Sink es el service.Sink sobre una sesión de discordgo.
// Cada llamada usa el ctx que le pasa el router (ya trae el timeout).
type Sink struct {
	s *discordgo.Session
}

func NewSink(s *discordgo.Session) *Sink { return &Sink{s: s} }

// solo pingueamos roles; nunca @everyone ni usuarios sueltos
var pingRolesOnly = &discordgo.MessageAllowedMentions{
	Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeRoles},
}

func (k *Sink) SendMessage(ctx context.Context, channelID, content string) (domain.MessageRef, error) {
	msg, err := k.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: pingRolesOnly,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return domain.MessageRef{}, err
	}
	return domain.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (k *Sink) EditMessage(ctx context.Context, ref domain.MessageRef, content string) error {
	_, err := k.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:         ref.ChannelID,
		ID:              ref.MessageID,
		Content:         &content,
		AllowedMentions: pingRolesOnly,
	}, discordgo.WithContext(ctx))
	return err
}

// FetchMessage mira primero el state; (nil, nil) si Discord dice que ya no existe.
func (k *Sink) FetchMessage(ctx context.Context, ref domain.MessageRef) (*service.StoredMessage, error) {
	if m, err := k.s.State.Message(ref.ChannelID, ref.MessageID); err == nil && m != nil && m.Content != "" {
		return &service.StoredMessage{Ref: ref, Content: m.Content}, nil
	}
	m, err := k.s.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &service.StoredMessage{Ref: ref, Content: m.Content}, nil
}

func isNotFound(err error) bool {
	var re *discordgo.RESTError
	if !errors.As(err, &re) {
		return false
	}
	if re.Message != nil && (re.Message.Code == discordgo.ErrCodeUnknownMessage || re.Message.Code == discordgo.ErrCodeUnknownChannel) {
		return true
	}
	return re.Response != nil && re.Response.StatusCode == http.StatusNotFound
}
