package models

import "sort"

// Participant is the display record for one conversation member.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Conversation is the stored metadata for one discussion. The participant
// set is fixed at creation; there is no add/remove-participant operation.
type Conversation struct {
	ID string `json:"id"`
	// Participants holds sorted, de-duplicated member ids.
	Participants []string `json:"participants"`
	// ParticipantDetails maps member id to its display record.
	ParticipantDetails map[string]Participant `json:"participant_details,omitempty"`
	// Name is the explicit conversation name; display names for unnamed
	// conversations are derived at read time, never stored.
	Name    string `json:"name,omitempty"`
	IsGroup bool   `json:"is_group,omitempty"`

	LastMessage       string   `json:"last_message,omitempty"`
	LastMessageTS     int64    `json:"last_message_ts,omitempty"`
	LastMessageReadBy []string `json:"last_message_read_by,omitempty"`

	// BlockedBy lists member ids that blocked this conversation.
	BlockedBy []string `json:"blocked_by,omitempty"`

	CreatedTS int64 `json:"created_ts,omitempty"`
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}

// NormalizeParticipants returns the canonical participant set: sorted,
// de-duplicated, empty ids dropped. Two conversations are duplicates iff
// their normalized sets are equal.
func NormalizeParticipants(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SameParticipants reports whether the normalized set equals other.
func SameParticipants(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Others returns the participant ids excluding the given viewer.
func (c *Conversation) Others(viewer string) []string {
	out := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != viewer {
			out = append(out, p)
		}
	}
	return out
}

// IsBlockedBy reports whether user appears in the blocked-by set.
func (c *Conversation) IsBlockedBy(user string) bool {
	for _, b := range c.BlockedBy {
		if b == user {
			return true
		}
	}
	return false
}
