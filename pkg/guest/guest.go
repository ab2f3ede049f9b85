package guest

import (
	"errors"
	"time"

	"nocaflow/pkg/models"
)

// UserID is the fixed viewer id for the read-only demo surface.
const UserID = "guest"

// ErrNotFound is returned for conversations outside the seeded set.
var ErrNotFound = errors.New("guest: conversation not found")

// Source serves a seeded, immutable data set so the product can be
// browsed without an account. It mirrors the live read surface:
// conversation list and message stream, nothing writable.
type Source struct {
	convs []models.Conversation
	msgs  map[string][]models.Message
}

// NewSource builds the demo data set relative to now, so the stream
// exercises every relative-time bucket (today, yesterday, this week,
// older).
func NewSource(now time.Time) *Source {
	s := &Source{msgs: make(map[string][]models.Message)}
	s.seed(now)
	return s
}

// Conversations returns the seeded list. The viewer is always UserID.
func (s *Source) Conversations() []models.Conversation {
	out := make([]models.Conversation, len(s.convs))
	copy(out, s.convs)
	return out
}

// Messages returns the seeded stream for one conversation.
func (s *Source) Messages(convID string) ([]models.Message, error) {
	msgs, ok := s.msgs[convID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// MessagesByConversation returns the full seeded message map, used to
// derive unread counts for the list view.
func (s *Source) MessagesByConversation() map[string][]models.Message {
	out := make(map[string][]models.Message, len(s.msgs))
	for id, msgs := range s.msgs {
		cp := make([]models.Message, len(msgs))
		copy(cp, msgs)
		out[id] = cp
	}
	return out
}

func (s *Source) seed(now time.Time) {
	ts := func(d time.Duration) int64 { return now.Add(-d).UnixNano() }

	mira := models.Participant{ID: "demo-mira", Name: "Mira Chen", AvatarURL: "/avatars/demo-mira.png"}
	jonas := models.Participant{ID: "demo-jonas", Name: "Jonas Keller", AvatarURL: "/avatars/demo-jonas.png"}
	priya := models.Participant{ID: "demo-priya", Name: "Priya Nair"}

	// 1:1 with recent traffic and one unread message.
	direct := models.Conversation{
		ID:           "guest-conv-1",
		Participants: models.NormalizeParticipants([]string{UserID, mira.ID}),
		ParticipantDetails: map[string]models.Participant{
			mira.ID: mira,
		},
		CreatedTS: ts(240 * time.Hour),
	}
	s.msgs[direct.ID] = []models.Message{
		{ID: "guest-msg-1", Conversation: direct.ID, Sender: UserID, TS: ts(26 * time.Hour),
			Text: "Did the venue confirm for Friday?", ReadBy: []string{UserID, mira.ID}},
		{ID: "guest-msg-2", Conversation: direct.ID, Sender: mira.ID, TS: ts(25 * time.Hour),
			Text: "Yes, all booked. Sending the contract now.", ReadBy: []string{mira.ID, UserID}},
		{ID: "guest-msg-3", Conversation: direct.ID, Sender: mira.ID, TS: ts(2 * time.Hour),
			Text: "One more thing: they asked about catering numbers.", ReadBy: []string{mira.ID}},
	}

	// Named group, older traffic.
	group := models.Conversation{
		ID:           "guest-conv-2",
		Participants: models.NormalizeParticipants([]string{UserID, mira.ID, jonas.ID, priya.ID}),
		ParticipantDetails: map[string]models.Participant{
			mira.ID:  mira,
			jonas.ID: jonas,
			priya.ID: priya,
		},
		Name:      "Launch planning",
		IsGroup:   true,
		CreatedTS: ts(600 * time.Hour),
	}
	s.msgs[group.ID] = []models.Message{
		{ID: "guest-msg-4", Conversation: group.ID, Sender: jonas.ID, TS: ts(5 * 24 * time.Hour),
			Text: "Draft schedule is in the shared folder.", ReadBy: []string{jonas.ID, UserID, mira.ID}},
		{ID: "guest-msg-5", Conversation: group.ID, Sender: priya.ID, TS: ts(4 * 24 * time.Hour),
			Text: "Reviewed, left two comments.",
			Attachments: []models.Attachment{{
				URL: "/demo/schedule-v2.pdf", Name: "schedule-v2.pdf",
				MediaType: "application/pdf", Kind: models.AttachmentFile,
			}},
			ReadBy: []string{priya.ID, UserID}},
	}

	// Unnamed group without details for one member, exercises the
	// derived-name fallbacks.
	trio := models.Conversation{
		ID:           "guest-conv-3",
		Participants: models.NormalizeParticipants([]string{UserID, jonas.ID, "demo-ghost"}),
		ParticipantDetails: map[string]models.Participant{
			jonas.ID: jonas,
		},
		IsGroup:   true,
		CreatedTS: ts(1000 * time.Hour),
	}
	s.msgs[trio.ID] = []models.Message{
		{ID: "guest-msg-6", Conversation: trio.ID, Sender: "demo-ghost", TS: ts(20 * 24 * time.Hour),
			Text: "Kickoff notes attached.", ReadBy: []string{"demo-ghost", UserID, jonas.ID}},
	}

	// Notes-to-self conversation.
	self := models.Conversation{
		ID:           "guest-conv-4",
		Participants: []string{UserID},
		CreatedTS:    ts(2000 * time.Hour),
	}
	s.msgs[self.ID] = []models.Message{
		{ID: "guest-msg-7", Conversation: self.ID, Sender: UserID, TS: ts(30 * time.Minute),
			Text: "Remember to follow up with the printer.", ReadBy: []string{UserID}},
	}

	for _, c := range []*models.Conversation{&direct, &group, &trio, &self} {
		msgs := s.msgs[c.ID]
		last := msgs[len(msgs)-1]
		c.LastMessage = last.Text
		c.LastMessageTS = last.TS
		c.LastMessageReadBy = last.ReadBy
		c.UpdatedTS = last.TS
		s.convs = append(s.convs, *c)
	}
}
