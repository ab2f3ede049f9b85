package view

import (
	"time"

	"nocaflow/pkg/models"
)

// MessageView is one display-ready entry of the message stream.
type MessageView struct {
	ID          string              `json:"id"`
	Sender      string              `json:"sender"`
	SenderName  string              `json:"sender_name"`
	Mine        bool                `json:"mine"`
	Text        string              `json:"text,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	TS          int64               `json:"ts"`
	TimeLabel   string              `json:"time_label"`
	Ephemeral   bool                `json:"ephemeral,omitempty"`
	Edited      bool                `json:"edited,omitempty"`
	// ReadByAll is computed only for the viewer's own messages; it is
	// always false on messages from other senders.
	ReadByAll bool `json:"read_by_all"`
}

// DecorateMessages turns the raw ordered messages of one conversation
// into display-ready entries for the viewer. When query is non-empty,
// matching substrings in message text and attachment names are wrapped
// in highlight markers and the ids of matching messages are returned for
// search paging.
func DecorateMessages(c *models.Conversation, msgs []models.Message, viewer, query string, now time.Time, loc Locale) ([]MessageView, []string) {
	out := make([]MessageView, 0, len(msgs))
	var matches []string
	for i := range msgs {
		m := &msgs[i]
		v := MessageView{
			ID:         m.ID,
			Sender:     m.Sender,
			SenderName: SenderName(c, m.Sender, viewer, loc),
			Mine:       m.Sender == viewer,
			Text:       m.Text,
			TS:         m.TS,
			TimeLabel:  FormatMessageTime(m.TS, now, loc),
			Ephemeral:  m.Ephemeral,
			Edited:     m.Edited,
		}
		if v.Mine {
			v.ReadByAll = ReadByAllRecipients(c, m)
		}
		if len(m.Attachments) > 0 {
			v.Attachments = append([]models.Attachment(nil), m.Attachments...)
		}
		if query != "" {
			matched := false
			if text, ok := Highlight(m.Text, query); ok {
				v.Text = text
				matched = true
			}
			for ai := range v.Attachments {
				if name, ok := Highlight(v.Attachments[ai].Name, query); ok {
					v.Attachments[ai].Name = name
					matched = true
				}
			}
			if matched {
				matches = append(matches, m.ID)
			}
		}
		out = append(out, v)
	}
	return out, matches
}

// ReadByAllRecipients reports whether every participant other than the
// message's sender appears in its read set. A conversation with no other
// participants satisfies this vacuously.
func ReadByAllRecipients(c *models.Conversation, m *models.Message) bool {
	for _, p := range c.Others(m.Sender) {
		if !m.HasRead(p) {
			return false
		}
	}
	return true
}

// UnreadFrom returns the messages from other senders the viewer has not
// read yet; listing a conversation marks these read as a side effect.
func UnreadFrom(msgs []models.Message, viewer string) []models.Message {
	var out []models.Message
	for i := range msgs {
		m := msgs[i]
		if m.Sender != viewer && !m.HasRead(viewer) {
			out = append(out, m)
		}
	}
	return out
}
