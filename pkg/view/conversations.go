package view

import (
	"sort"
	"strings"

	"nocaflow/pkg/models"
)

// ConversationView is one display-ready entry of the sidebar list.
type ConversationView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Avatar        string   `json:"avatar"`
	IsGroup       bool     `json:"is_group"`
	Participants  []string `json:"participants"`
	LastMessage   string   `json:"last_message,omitempty"`
	LastMessageTS int64    `json:"last_message_ts,omitempty"`
	UnreadCount   int      `json:"unread_count"`
	Blocked       bool     `json:"blocked"`
}

// DecorateConversations turns raw conversation records into the
// display-ready list for one viewer: sorted by last-message time
// descending, identity derived per record, unread counts computed from
// the stored message arrays when supplied (falling back to the
// last-message read set), and an optional case-insensitive substring
// filter over name and last message text.
func DecorateConversations(convs []models.Conversation, msgsByConv map[string][]models.Message, viewer, query string, loc Locale) []ConversationView {
	out := make([]ConversationView, 0, len(convs))
	q := strings.ToLower(strings.TrimSpace(query))
	for i := range convs {
		c := &convs[i]
		id := ConversationIdentity(c, viewer, loc)
		v := ConversationView{
			ID:            c.ID,
			Name:          id.Name,
			Avatar:        id.Avatar,
			IsGroup:       c.IsGroup,
			Participants:  c.Participants,
			LastMessage:   c.LastMessage,
			LastMessageTS: c.LastMessageTS,
			Blocked:       c.IsBlockedBy(viewer),
		}
		if msgs, ok := msgsByConv[c.ID]; ok {
			v.UnreadCount = UnreadCount(msgs, viewer)
		} else if c.LastMessageTS > 0 && !containsID(c.LastMessageReadBy, viewer) {
			v.UnreadCount = 1
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(v.Name), q) &&
			!strings.Contains(strings.ToLower(v.LastMessage), q) {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTS > out[j].LastMessageTS
	})
	return out
}

// UnreadCount counts messages from other senders the viewer has not read.
func UnreadCount(msgs []models.Message, viewer string) int {
	n := 0
	for i := range msgs {
		m := &msgs[i]
		if m.Sender == viewer {
			continue
		}
		if !m.HasRead(viewer) {
			n++
		}
	}
	return n
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
