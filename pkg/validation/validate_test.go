package validation

import (
	"strings"
	"testing"

	"nocaflow/pkg/models"
)

func TestValidateTextBounds(t *testing.T) {
	SetRules(Rules{MaxTextBytes: 10})
	defer SetRules(Rules{})

	if err := ValidateText("short"); err != nil {
		t.Fatalf("short text rejected: %v", err)
	}
	if err := ValidateText(strings.Repeat("a", 11)); err == nil {
		t.Fatal("oversized text accepted")
	}
	// Multi-byte runes count by encoded size.
	if err := ValidateText("ééééé"); err != nil {
		t.Fatalf("10-byte text rejected: %v", err)
	}
	if err := ValidateText("éééééé"); err == nil {
		t.Fatal("12-byte text accepted")
	}
}

func TestValidateTextRejectsInvalidUTF8(t *testing.T) {
	SetRules(Rules{})
	if err := ValidateText(string([]byte{0xff, 0xfe})); err == nil {
		t.Fatal("invalid utf-8 accepted")
	}
}

func TestValidateMessageAttachmentLimits(t *testing.T) {
	SetRules(Rules{MaxAttachments: 2})
	defer SetRules(Rules{})

	m := models.Message{Text: "ok", Attachments: []models.Attachment{
		{Name: "a.png"}, {Name: "b.png"}, {Name: "c.png"},
	}}
	err := ValidateMessage(m)
	if err == nil || !strings.Contains(err.Error(), "too many attachments") {
		t.Fatalf("err = %v", err)
	}

	m.Attachments = m.Attachments[:2]
	if err := ValidateMessage(m); err != nil {
		t.Fatalf("within limit rejected: %v", err)
	}

	m.Attachments = []models.Attachment{{Name: strings.Repeat("x", 300)}}
	err = ValidateMessage(m)
	if err == nil || !strings.Contains(err.Error(), "attachment name") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateMessageJoinsErrors(t *testing.T) {
	SetRules(Rules{MaxTextBytes: 4, MaxAttachments: 1})
	defer SetRules(Rules{})

	m := models.Message{Text: "too long", Attachments: []models.Attachment{{Name: "a"}, {Name: "b"}}}
	err := ValidateMessage(m)
	if err == nil || !strings.Contains(err.Error(), ";") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateConversation(t *testing.T) {
	SetRules(Rules{MaxParticipants: 3, MaxNameLen: 5})
	defer SetRules(Rules{})

	if err := ValidateConversation([]string{"a", "b", "c"}, "team"); err != nil {
		t.Fatalf("valid conversation rejected: %v", err)
	}
	if err := ValidateConversation([]string{"a", "b", "c", "d"}, ""); err == nil {
		t.Fatal("participant overflow accepted")
	}
	if err := ValidateConversation([]string{"a"}, "toolong"); err == nil {
		t.Fatal("oversized name accepted")
	}
	if err := ValidateConversation([]string{strings.Repeat("u", 129)}, ""); err == nil {
		t.Fatal("oversized participant id accepted")
	}
}
