package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nocaflow/pkg/config"
	"nocaflow/pkg/logger"
	"nocaflow/pkg/models"
	"nocaflow/pkg/store"
	"nocaflow/pkg/subscribe"
	"nocaflow/pkg/utils"
	"nocaflow/pkg/validation"
)

// Dispatch errors the HTTP layer maps onto status codes.
var (
	ErrEmptyMessage    = errors.New("chat: empty message")
	ErrNotFound        = errors.New("chat: not found")
	ErrNotParticipant  = errors.New("chat: not a participant")
	ErrNotSender       = errors.New("chat: not the sender")
	ErrBlocked         = errors.New("chat: conversation blocked")
	ErrUnsupportedType = errors.New("chat: unsupported media type")
	ErrTooLarge        = errors.New("chat: payload too large")
	ErrNoParticipants  = errors.New("chat: no participants")
	ErrInvalid         = errors.New("chat: invalid payload")
)

// Backend is the persistence surface the dispatcher writes through.
// Satisfied by PebbleBackend in production and by fakes in tests.
type Backend interface {
	SaveConversation(c models.Conversation) error
	GetConversation(id string) (models.Conversation, error)
	FindConversationByParticipants(norm []string) (models.Conversation, bool, error)
	SaveMessage(convID string, msg models.Message) error
	UpdateMessage(msg models.Message) error
	ListMessages(convID string, limit ...int) ([]models.Message, error)
	GetLatestMessage(msgID string) (models.Message, error)
}

// BlobStore stores attachment payloads.
type BlobStore interface {
	Put(ctx context.Context, id, mediaType string, data []byte) (string, error)
}

// Notifier signals subscribers after a successful write.
type Notifier interface {
	NotifyAll(topics ...string)
}

// PebbleBackend adapts the package-level store functions to Backend.
type PebbleBackend struct{}

func (PebbleBackend) SaveConversation(c models.Conversation) error { return store.SaveConversation(c) }
func (PebbleBackend) GetConversation(id string) (models.Conversation, error) {
	return store.GetConversation(id)
}
func (PebbleBackend) FindConversationByParticipants(norm []string) (models.Conversation, bool, error) {
	return store.FindConversationByParticipants(norm)
}
func (PebbleBackend) SaveMessage(convID string, msg models.Message) error {
	return store.SaveMessage(convID, msg)
}
func (PebbleBackend) UpdateMessage(msg models.Message) error { return store.UpdateMessage(msg) }
func (PebbleBackend) ListMessages(convID string, limit ...int) ([]models.Message, error) {
	return store.ListMessages(convID, limit...)
}
func (PebbleBackend) GetLatestMessage(msgID string) (models.Message, error) {
	return store.GetLatestMessage(msgID)
}

// Service dispatches every chat mutation: it validates, persists, updates
// the conversation's last-message metadata and signals subscribers.
type Service struct {
	db    Backend
	blobs BlobStore
	hub   Notifier
	cfg   config.ChatConfig
	now   func() time.Time
}

func NewService(db Backend, blobs BlobStore, hub Notifier, cfg config.ChatConfig) *Service {
	return &Service{db: db, blobs: blobs, hub: hub, cfg: cfg, now: time.Now}
}

// StartConversation creates a conversation for the given participant set,
// or returns the existing one when a conversation with the exact same set
// already exists. The creator is always part of the set. The returned bool
// is true when a new conversation was created.
func (s *Service) StartConversation(ctx context.Context, creator string, participants []string, name string) (models.Conversation, bool, error) {
	const op = "chat.StartConversation"

	norm := models.NormalizeParticipants(append(participants, creator))
	if len(norm) == 0 {
		return models.Conversation{}, false, ErrNoParticipants
	}
	if err := validation.ValidateConversation(norm, name); err != nil {
		return models.Conversation{}, false, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	existing, found, err := s.db.FindConversationByParticipants(norm)
	if err != nil {
		return models.Conversation{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if found {
		return existing, false, nil
	}

	now := s.now().UnixNano()
	c := models.Conversation{
		ID:           utils.GenConversationID(),
		Participants: norm,
		Name:         strings.TrimSpace(name),
		IsGroup:      len(norm) > 2,
		CreatedTS:    now,
		UpdatedTS:    now,
	}
	if err := s.db.SaveConversation(c); err != nil {
		return models.Conversation{}, false, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("conversation_created", "conversation", c.ID, "participants", len(norm))
	s.notify(c)
	return c, true, nil
}

// SendMessage appends a plain message. Empty or whitespace-only text is
// rejected before anything touches the store.
func (s *Service) SendMessage(ctx context.Context, convID, sender, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyMessage
	}
	return s.appendMessage(ctx, convID, sender, models.Message{Text: text})
}

// SendEphemeral appends a message carrying an expiry. A zero ttl takes
// the configured default; oversized ttls clamp to the configured cap.
func (s *Service) SendEphemeral(ctx context.Context, convID, sender, text string, ttl time.Duration) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyMessage
	}
	ttl = s.clampTTL(ttl)
	msg := models.Message{Text: text, Ephemeral: true}
	msg.ExpiresTS = s.now().Add(ttl).UnixNano()
	return s.appendMessage(ctx, convID, sender, msg)
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	def := s.cfg.DefaultEphemeralTTL.Duration()
	if def <= 0 {
		def = 24 * time.Hour
	}
	if ttl <= 0 {
		ttl = def
	}
	if max := s.cfg.MaxEphemeralTTL.Duration(); max > 0 && ttl > max {
		ttl = max
	}
	return ttl
}

// AttachFile stores the payload and appends a message referencing it.
// Only images and PDFs are accepted; the media type is checked before a
// single byte reaches the blob store or the database.
func (s *Service) AttachFile(ctx context.Context, convID, sender, name, mediaType string, data []byte) (models.Message, error) {
	const op = "chat.AttachFile"

	if !allowedAttachment(mediaType) {
		return models.Message{}, ErrUnsupportedType
	}
	if s.blobs == nil {
		return models.Message{}, fmt.Errorf("%s: blob storage not configured", op)
	}
	if maxBytes := s.cfg.MaxUploadBytes.Int64(); maxBytes > 0 && int64(len(data)) > maxBytes {
		return models.Message{}, ErrTooLarge
	}
	id := utils.GenAttachmentID()
	url, err := s.blobs.Put(ctx, id, mediaType, data)
	if err != nil {
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	kind := models.AttachmentFile
	if strings.HasPrefix(strings.ToLower(mediaType), "image/") {
		kind = models.AttachmentImage
	}
	msg := models.Message{Attachments: []models.Attachment{{
		URL:       url,
		Name:      name,
		MediaType: mediaType,
		Kind:      kind,
	}}}
	return s.appendMessage(ctx, convID, sender, msg)
}

func allowedAttachment(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return strings.HasPrefix(mt, "image/") || mt == "application/pdf"
}

// appendMessage runs the shared write path: membership and block checks,
// persist, refresh conversation metadata, notify.
func (s *Service) appendMessage(ctx context.Context, convID, sender string, msg models.Message) (models.Message, error) {
	const op = "chat.appendMessage"

	c, err := s.conversationFor(convID, sender)
	if err != nil {
		return models.Message{}, err
	}
	if len(c.BlockedBy) > 0 {
		return models.Message{}, ErrBlocked
	}
	if err := validation.ValidateMessage(msg); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msg.ID = utils.GenMessageID()
	msg.Conversation = convID
	msg.Sender = sender
	msg.TS = s.now().UnixNano()
	msg.ReadBy = []string{sender}
	if err := s.db.SaveMessage(convID, msg); err != nil {
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	c.LastMessage = lastMessagePreview(msg)
	c.LastMessageTS = msg.TS
	c.LastMessageReadBy = []string{sender}
	c.UpdatedTS = msg.TS
	if err := s.db.SaveConversation(c); err != nil {
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	s.notify(c)
	return msg, nil
}

func lastMessagePreview(m models.Message) string {
	if strings.TrimSpace(m.Text) != "" {
		return m.Text
	}
	if len(m.Attachments) > 0 {
		if m.Attachments[0].Name != "" {
			return m.Attachments[0].Name
		}
		return "Attachment"
	}
	return m.Text
}

// EditMessage replaces the text of a message. Only the original sender
// may edit, and the replacement must be non-empty.
func (s *Service) EditMessage(ctx context.Context, convID, msgID, editor, text string) (models.Message, error) {
	const op = "chat.EditMessage"

	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if err := validation.ValidateText(text); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	c, err := s.conversationFor(convID, editor)
	if err != nil {
		return models.Message{}, err
	}
	msg, err := s.db.GetLatestMessage(msgID)
	if err != nil {
		return models.Message{}, ErrNotFound
	}
	if msg.Conversation != convID || msg.Deleted {
		return models.Message{}, ErrNotFound
	}
	if msg.Sender != editor {
		return models.Message{}, ErrNotSender
	}
	msg.Text = text
	msg.Edited = true
	if err := s.db.UpdateMessage(msg); err != nil {
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	if c.LastMessageTS == msg.TS {
		c.LastMessage = lastMessagePreview(msg)
		c.UpdatedTS = s.now().UnixNano()
		if err := s.db.SaveConversation(c); err != nil {
			return models.Message{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	s.notify(c)
	return msg, nil
}

// DeleteMessage tombstones a message. Only the sender may delete.
func (s *Service) DeleteMessage(ctx context.Context, convID, msgID, requester string) error {
	const op = "chat.DeleteMessage"

	c, err := s.conversationFor(convID, requester)
	if err != nil {
		return err
	}
	msg, err := s.db.GetLatestMessage(msgID)
	if err != nil {
		return ErrNotFound
	}
	if msg.Conversation != convID || msg.Deleted {
		return ErrNotFound
	}
	if msg.Sender != requester {
		return ErrNotSender
	}
	msg.Deleted = true
	if err := s.db.UpdateMessage(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("message_deleted", "conversation", convID, "message", msgID)
	s.notify(c)
	return nil
}

// MarkRead stamps the reader on every unread message from other senders
// and on the conversation's last-message read set.
func (s *Service) MarkRead(ctx context.Context, convID, reader string) error {
	const op = "chat.MarkRead"

	c, err := s.conversationFor(convID, reader)
	if err != nil {
		return err
	}
	msgs, err := s.db.ListMessages(convID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	changed := false
	for i := range msgs {
		m := &msgs[i]
		if m.Sender == reader {
			continue
		}
		if m.MarkRead(reader) {
			if err := s.db.UpdateMessage(*m); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			changed = true
		}
	}
	if !containsID(c.LastMessageReadBy, reader) {
		c.LastMessageReadBy = append(c.LastMessageReadBy, reader)
		c.UpdatedTS = s.now().UnixNano()
		if err := s.db.SaveConversation(c); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		changed = true
	}
	if changed {
		s.notify(c)
	}
	return nil
}

// Block marks the conversation blocked by the given participant.
func (s *Service) Block(ctx context.Context, convID, user string) error {
	return s.setBlocked(convID, user, true)
}

// Unblock clears the participant's block.
func (s *Service) Unblock(ctx context.Context, convID, user string) error {
	return s.setBlocked(convID, user, false)
}

func (s *Service) setBlocked(convID, user string, blocked bool) error {
	const op = "chat.setBlocked"

	c, err := s.conversationFor(convID, user)
	if err != nil {
		return err
	}
	cur := c.IsBlockedBy(user)
	if cur == blocked {
		return nil
	}
	if blocked {
		c.BlockedBy = append(c.BlockedBy, user)
	} else {
		out := c.BlockedBy[:0]
		for _, b := range c.BlockedBy {
			if b != user {
				out = append(out, b)
			}
		}
		c.BlockedBy = out
	}
	c.UpdatedTS = s.now().UnixNano()
	if err := s.db.SaveConversation(c); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("conversation_block_changed", "conversation", convID, "user", user, "blocked", blocked)
	s.notify(c)
	return nil
}

func (s *Service) conversationFor(convID, user string) (models.Conversation, error) {
	c, err := s.db.GetConversation(convID)
	if err != nil {
		return models.Conversation{}, ErrNotFound
	}
	if !containsID(c.Participants, user) {
		return models.Conversation{}, ErrNotParticipant
	}
	return c, nil
}

func (s *Service) notify(c models.Conversation) {
	if s.hub == nil {
		return
	}
	topics := make([]string, 0, len(c.Participants)+1)
	topics = append(topics, subscribe.ConvTopic(c.ID))
	for _, p := range c.Participants {
		topics = append(topics, subscribe.UserTopic(p))
	}
	s.hub.NotifyAll(topics...)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
