package view

import (
	"strings"
	"testing"

	"nocaflow/pkg/models"
)

func conv(name string, participants []string, details map[string]models.Participant) models.Conversation {
	return models.Conversation{
		ID:                 "c1",
		Name:               name,
		Participants:       models.NormalizeParticipants(participants),
		ParticipantDetails: details,
	}
}

func TestExplicitNameWins(t *testing.T) {
	c := conv("Launch planning", []string{"alice", "bob"}, map[string]models.Participant{
		"bob": {ID: "bob", Name: "Bob Stone"},
	})
	id := ConversationIdentity(&c, "alice", ResolveLocale("en"))
	if id.Name != "Launch planning" {
		t.Fatalf("name = %q", id.Name)
	}
}

func TestOneToOneUsesCounterpartNeverViewer(t *testing.T) {
	c := conv("", []string{"alice", "bob"}, map[string]models.Participant{
		"alice": {ID: "alice", Name: "Alice Hart", AvatarURL: "/a/alice.png"},
		"bob":   {ID: "bob", Name: "Bob Stone", AvatarURL: "/a/bob.png"},
	})
	loc := ResolveLocale("en")

	got := ConversationIdentity(&c, "alice", loc)
	if got.Name != "Bob Stone" || got.Avatar != "/a/bob.png" {
		t.Fatalf("alice sees %+v", got)
	}
	got = ConversationIdentity(&c, "bob", loc)
	if got.Name != "Alice Hart" || got.Avatar != "/a/alice.png" {
		t.Fatalf("bob sees %+v", got)
	}
}

func TestOneToOneMissingRecordFallsBack(t *testing.T) {
	c := conv("", []string{"alice", "bob"}, nil)
	id := ConversationIdentity(&c, "alice", ResolveLocale("en"))
	if id.Name != "Unknown discussion" {
		t.Fatalf("name = %q", id.Name)
	}
	if id.Avatar != DefaultAvatar {
		t.Fatalf("avatar = %q", id.Avatar)
	}
}

func TestGroupLabelFromFirstTwoNames(t *testing.T) {
	c := conv("", []string{"alice", "bob", "carol", "dan"}, map[string]models.Participant{
		"bob":   {ID: "bob", Name: "Bob"},
		"carol": {ID: "carol", Name: "Carol"},
		"dan":   {ID: "dan", Name: "Dan"},
	})
	id := ConversationIdentity(&c, "alice", ResolveLocale("en"))
	if !strings.HasPrefix(id.Name, "Group with ") {
		t.Fatalf("name = %q", id.Name)
	}
	// Two names at most.
	if got := strings.Count(id.Name, ","); got != 1 {
		t.Fatalf("expected exactly two names in %q", id.Name)
	}
}

func TestSelfChatLabelPerLocale(t *testing.T) {
	c := conv("", []string{"alice"}, nil)
	if got := ConversationIdentity(&c, "alice", ResolveLocale("en")).Name; got != "Notes to self" {
		t.Fatalf("en = %q", got)
	}
	if got := ConversationIdentity(&c, "alice", ResolveLocale("fr")).Name; got != "Notes perso" {
		t.Fatalf("fr = %q", got)
	}
}

func TestSenderName(t *testing.T) {
	c := conv("", []string{"alice", "bob"}, map[string]models.Participant{
		"bob": {ID: "bob", Name: "Bob Stone"},
	})
	loc := ResolveLocale("en")
	if got := SenderName(&c, "alice", "alice", loc); got != "You" {
		t.Fatalf("own message label = %q", got)
	}
	if got := SenderName(&c, "bob", "alice", loc); got != "Bob Stone" {
		t.Fatalf("counterpart label = %q", got)
	}
	if got := SenderName(&c, "ghost", "alice", loc); got != "Unknown user" {
		t.Fatalf("unknown label = %q", got)
	}
}
