package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"nocaflow/pkg/models"
)

// Rules bounds user-supplied payloads. Zero values fall back to the
// defaults below.
type Rules struct {
	MaxTextBytes      int
	MaxNameLen        int
	MaxParticipants   int
	MaxAttachments    int
	MaxAttachmentName int
}

const (
	defaultMaxTextBytes      = 64 << 10
	defaultMaxNameLen        = 200
	defaultMaxParticipants   = 100
	defaultMaxAttachments    = 10
	defaultMaxAttachmentName = 255
)

var rules Rules

// SetRules installs the active rule set; zero fields keep their defaults.
func SetRules(r Rules) { rules = r }

func maxTextBytes() int {
	if rules.MaxTextBytes > 0 {
		return rules.MaxTextBytes
	}
	return defaultMaxTextBytes
}

func maxNameLen() int {
	if rules.MaxNameLen > 0 {
		return rules.MaxNameLen
	}
	return defaultMaxNameLen
}

func maxParticipants() int {
	if rules.MaxParticipants > 0 {
		return rules.MaxParticipants
	}
	return defaultMaxParticipants
}

func maxAttachments() int {
	if rules.MaxAttachments > 0 {
		return rules.MaxAttachments
	}
	return defaultMaxAttachments
}

// ValidateText checks message text against the active rules. Emptiness
// is the caller's concern; this only bounds size and encoding.
func ValidateText(text string) error {
	if len(text) > maxTextBytes() {
		return fmt.Errorf("message text exceeds %d bytes", maxTextBytes())
	}
	if !utf8.ValidString(text) {
		return errors.New("message text is not valid utf-8")
	}
	return nil
}

// ValidateMessage checks a full message record before it is persisted.
func ValidateMessage(m models.Message) error {
	var errs []string
	if err := ValidateText(m.Text); err != nil {
		errs = append(errs, err.Error())
	}
	if len(m.Attachments) > maxAttachments() {
		errs = append(errs, fmt.Sprintf("too many attachments (max %d)", maxAttachments()))
	}
	for _, a := range m.Attachments {
		if utf8.RuneCountInString(a.Name) > defaultMaxAttachmentName {
			errs = append(errs, fmt.Sprintf("attachment name exceeds %d characters", defaultMaxAttachmentName))
			break
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateConversation checks a conversation payload at creation time.
func ValidateConversation(participants []string, name string) error {
	if len(participants) > maxParticipants() {
		return fmt.Errorf("too many participants (max %d)", maxParticipants())
	}
	for _, p := range participants {
		if len(p) > 128 {
			return errors.New("participant id too long")
		}
	}
	if utf8.RuneCountInString(name) > maxNameLen() {
		return fmt.Errorf("conversation name exceeds %d characters", maxNameLen())
	}
	return nil
}
