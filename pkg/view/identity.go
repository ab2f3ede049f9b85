package view

import (
	"strings"

	"nocaflow/pkg/models"
)

// DefaultAvatar is the placeholder avatar reference used when no
// participant record resolves.
const DefaultAvatar = "/avatars/default.png"

// Identity is the derived display name and avatar for a conversation as
// seen by one viewer. It is recomputed on every snapshot, never stored.
type Identity struct {
	Name   string
	Avatar string
}

// ConversationIdentity derives the display identity for a conversation.
// Fallback order: explicit name, the counterpart's record for two-party
// conversations, a synthesized group label, the self-chat label for
// single-participant conversations, then placeholders.
func ConversationIdentity(c *models.Conversation, viewer string, loc Locale) Identity {
	others := c.Others(viewer)

	avatar := DefaultAvatar
	switch {
	case len(others) == 1:
		if p, ok := c.ParticipantDetails[others[0]]; ok && p.AvatarURL != "" {
			avatar = p.AvatarURL
		}
	case len(others) == 0:
		if p, ok := c.ParticipantDetails[viewer]; ok && p.AvatarURL != "" {
			avatar = p.AvatarURL
		}
	}

	if c.Name != "" {
		return Identity{Name: c.Name, Avatar: avatar}
	}

	switch len(others) {
	case 0:
		return Identity{Name: loc.SelfChat, Avatar: avatar}
	case 1:
		if name := participantName(c, others[0]); name != "" {
			return Identity{Name: name, Avatar: avatar}
		}
		return Identity{Name: loc.Placeholder, Avatar: DefaultAvatar}
	default:
		names := make([]string, 0, 2)
		for _, id := range others {
			if name := participantName(c, id); name != "" {
				names = append(names, name)
				if len(names) == 2 {
					break
				}
			}
		}
		if len(names) == 0 {
			return Identity{Name: loc.Placeholder, Avatar: DefaultAvatar}
		}
		return Identity{Name: loc.GroupWith + strings.Join(names, ", "), Avatar: avatar}
	}
}

// SenderName resolves the display label for a message sender: the self
// label for the viewer's own messages, the participant's name when the
// record resolves, the unknown-user fallback otherwise.
func SenderName(c *models.Conversation, sender, viewer string, loc Locale) string {
	if sender == viewer {
		return loc.SelfLabel
	}
	if name := participantName(c, sender); name != "" {
		return name
	}
	return loc.UnknownUser
}

func participantName(c *models.Conversation, id string) string {
	if p, ok := c.ParticipantDetails[id]; ok {
		return p.Name
	}
	return ""
}
