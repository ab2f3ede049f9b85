package models

// AttachmentKind classifies an attachment for rendering.
const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
)

// Attachment is an opaque reference to an externally stored blob.
type Attachment struct {
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

type Message struct {
	ID           string       `json:"id"`
	Conversation string       `json:"conversation"`
	Sender       string       `json:"sender,omitempty"`
	TS           int64        `json:"ts"`
	Text         string       `json:"text,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	// Ephemeral messages carry an absolute expiry; the retention sweeper
	// purges them once ExpiresTS has passed.
	Ephemeral bool  `json:"ephemeral,omitempty"`
	ExpiresTS int64 `json:"expires_ts,omitempty"`
	// ReadBy lists member ids that have read this message.
	ReadBy []string `json:"read_by,omitempty"`
	Edited bool     `json:"edited,omitempty"`
	// Deleted flag; deletes are appended as tombstone versions.
	Deleted bool `json:"deleted,omitempty"`
}

// HasRead reports whether user appears in the read set.
func (m *Message) HasRead(user string) bool {
	for _, r := range m.ReadBy {
		if r == user {
			return true
		}
	}
	return false
}

// MarkRead adds user to the read set if absent and reports whether the
// set changed.
func (m *Message) MarkRead(user string) bool {
	if m.HasRead(user) {
		return false
	}
	m.ReadBy = append(m.ReadBy, user)
	return true
}

// Expired reports whether the message is ephemeral and past its expiry
// at the given instant (unix nanoseconds).
func (m *Message) Expired(nowNS int64) bool {
	return m.Ephemeral && m.ExpiresTS > 0 && m.ExpiresTS <= nowNS
}
