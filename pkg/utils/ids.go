package utils

import "github.com/google/uuid"

// GenMessageID returns a new message identifier.
func GenMessageID() string {
	return "msg-" + uuid.NewString()
}

// GenConversationID returns a new conversation identifier.
func GenConversationID() string {
	return "conv-" + uuid.NewString()
}

// GenAttachmentID returns a new attachment object identifier.
func GenAttachmentID() string {
	return "att-" + uuid.NewString()
}
