package domain

import (
	"encoding/json"
	"strings"
)

// Event es un hito del run tal cual llega del feed.
type Event struct {
	EventID string `json:"eventId"`
	IGT     int64  `json:"igt"` // ms de in-game time
}

// Record es un update de un runner (un mensaje del stream).
type Record struct {
	Nickname         string  `json:"nickname"`
	UserID           string  `json:"userId"`
	LiveAccount      *string `json:"liveAccount"`
	LastUpdated      int64   `json:"lastUpdated"` // epoch ms
	EventList        []Event `json:"eventList"`
	ContextEventList []Event `json:"contextEventList"`
}

// Last devuelve el evento final del eventList.
func (r Record) Last() (Event, bool) {
	if len(r.EventList) == 0 {
		return Event{}, false
	}
	return r.EventList[len(r.EventList)-1], true
}

// IsLive: sin liveAccount el runner no está en vivo.
func (r Record) IsLive() bool {
	return r.LiveAccount != nil && strings.TrimSpace(*r.LiveAccount) != ""
}

// PlayerKey es la clave del store. Preferimos el userId estable; el nick
// (case-folded) queda como fallback.
func (r Record) PlayerKey() string {
	if id := strings.TrimSpace(r.UserID); id != "" {
		return "uid:" + id
	}
	return NickKey(r.Nickname)
}

// NickKey normaliza un nickname para lookups de roster.
func NickKey(nick string) string {
	return strings.ToLower(strings.TrimSpace(nick))
}

// UnmarshalJSON acepta también la forma del feed público, donde liveAccount y el
// uuid vienen anidados en "user".
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var aux struct {
		plain
		User *struct {
			UUID        string  `json:"uuid"`
			LiveAccount *string `json:"liveAccount"`
		} `json:"user"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	if aux.User != nil {
		if r.LiveAccount == nil {
			r.LiveAccount = aux.User.LiveAccount
		}
		if r.UserID == "" {
			r.UserID = aux.User.UUID
		}
	}
	return nil
}
