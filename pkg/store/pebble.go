package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"nocaflow/pkg/logger"
	"nocaflow/pkg/models"

	"github.com/cockroachdb/pebble"
)

var db *pebble.DB

// seq provides a small counter to reduce key collisions when multiple
// messages share the same nanosecond timestamp.
var seq uint64

// Key layout:
//
//	conv:<convID>:meta                    conversation metadata JSON
//	conv:<convID>:msg:<padded-ts>-<seq>   message JSON, insertion ordered
//	msgkey:<msgID>                        message id -> its conv msg key
//	latest:msg:<msgID>                    latest version JSON
//	version:msg:<msgID>:<padded-ts>-<seq> full version history
const (
	convPrefix    = "conv:"
	msgKeyPrefix  = "msgkey:"
	latestPrefix  = "latest:msg:"
	versionPrefix = "version:msg:"
)

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpen() error {
	return fmt.Errorf("pebble not opened; call store.Open first")
}

// MsgKey renders the insertion-ordered key for a message in a conversation.
func MsgKey(convID string, ts int64, s uint64) string {
	return fmt.Sprintf("conv:%s:msg:%020d-%06d", convID, ts, s)
}

// VersionKey renders the version-history key for a message id.
func VersionKey(msgID string, ts int64, s uint64) string {
	return fmt.Sprintf("version:msg:%s:%020d-%06d", msgID, ts, s)
}

// SaveConversation stores conversation metadata under its reserved key.
func SaveConversation(c models.Conversation) error {
	if db == nil {
		return notOpen()
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	key := []byte(convPrefix + c.ID + ":meta")
	if err := db.Set(key, b, pebble.Sync); err != nil {
		logger.Error("save_conversation_failed", "conv", c.ID, "error", err)
		return err
	}
	logger.Debug("conversation_saved", "conv", c.ID)
	return nil
}

// GetConversation returns the stored conversation for the given id.
func GetConversation(id string) (models.Conversation, error) {
	var c models.Conversation
	if db == nil {
		return c, notOpen()
	}
	v, closer, err := db.Get([]byte(convPrefix + id + ":meta"))
	if err != nil {
		return c, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := json.Unmarshal(v, &c); err != nil {
		return c, fmt.Errorf("invalid conversation metadata: %w", err)
	}
	return c, nil
}

// ListConversations returns every conversation the given participant is a
// member of; with an empty participant it returns all conversations.
func ListConversations(participant string) ([]models.Conversation, error) {
	if db == nil {
		return nil, notOpen()
	}
	prefix := []byte(convPrefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Conversation
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var c models.Conversation
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			logger.Warn("skip_invalid_conversation", "key", string(iter.Key()), "error", err)
			continue
		}
		if participant != "" && !containsID(c.Participants, participant) {
			continue
		}
		out = append(out, c)
	}
	return out, iter.Error()
}

// FindConversationByParticipants returns the conversation whose normalized
// participant set equals the given one, if any. Used to deduplicate
// start-conversation requests.
func FindConversationByParticipants(norm []string) (models.Conversation, bool, error) {
	convs, err := ListConversations("")
	if err != nil {
		return models.Conversation{}, false, err
	}
	for _, c := range convs {
		if models.SameParticipants(c.Participants, norm) {
			return c, true, nil
		}
	}
	return models.Conversation{}, false, nil
}

// SaveMessage appends a message to a conversation under an
// insertion-ordered key and indexes it by message id so later edits and
// deletes can address it in place.
func SaveMessage(convID string, msg models.Message) error {
	if db == nil {
		return notOpen()
	}
	if msg.TS == 0 {
		msg.TS = time.Now().UTC().UnixNano()
	}
	s := atomic.AddUint64(&seq, 1)
	key := MsgKey(convID, msg.TS, s)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "conv", convID, "key", key, "error", err)
		return err
	}
	if msg.ID != "" {
		if err := db.Set([]byte(msgKeyPrefix+msg.ID), []byte(key), pebble.Sync); err != nil {
			return err
		}
		if err := writeVersion(msg, data); err != nil {
			return err
		}
	}
	messagesStored.Inc()
	logger.Info("message_saved", "conv", convID, "msg_id", msg.ID)
	return nil
}

// UpdateMessage overwrites the stored message in place (preserving its
// position in the conversation) and appends a new version.
func UpdateMessage(msg models.Message) error {
	if db == nil {
		return notOpen()
	}
	key, closer, err := db.Get([]byte(msgKeyPrefix + msg.ID))
	if err != nil {
		return fmt.Errorf("unknown message %s: %w", msg.ID, err)
	}
	k := append([]byte(nil), key...)
	if closer != nil {
		closer.Close()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set(k, data, pebble.Sync); err != nil {
		logger.Error("update_message_failed", "msg_id", msg.ID, "error", err)
		return err
	}
	return writeVersion(msg, data)
}

func writeVersion(msg models.Message, data []byte) error {
	s := atomic.AddUint64(&seq, 1)
	vk := VersionKey(msg.ID, time.Now().UTC().UnixNano(), s)
	if err := db.Set([]byte(vk), data, pebble.Sync); err != nil {
		return err
	}
	return db.Set([]byte(latestPrefix+msg.ID), data, pebble.Sync)
}

// ListMessages returns the live messages of a conversation in insertion
// order. Tombstoned messages and ephemeral messages past their expiry
// are filtered out; the retention runner removes the latter from disk.
func ListMessages(convID string, limit ...int) ([]models.Message, error) {
	if db == nil {
		return nil, notOpen()
	}
	prefix := []byte(convPrefix + convID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	max := -1
	if len(limit) > 0 {
		max = limit[0]
	}
	now := time.Now().UTC().UnixNano()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("skip_invalid_message", "key", string(iter.Key()), "error", err)
			continue
		}
		if m.Deleted || m.Expired(now) {
			continue
		}
		out = append(out, m)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, iter.Error()
}

// GetLatestMessage returns the latest version for a message id.
func GetLatestMessage(msgID string) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, notOpen()
	}
	v, closer, err := db.Get([]byte(latestPrefix + msgID))
	if err != nil {
		return m, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid stored message: %w", err)
	}
	return m, nil
}

// ListMessageVersions returns all stored versions for a given message id
// in chronological order.
func ListMessageVersions(msgID string) ([]models.Message, error) {
	if db == nil {
		return nil, notOpen()
	}
	prefix := []byte(versionPrefix + msgID + ":")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid message version: %w", err)
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// PurgeExpired scans every conversation and removes ephemeral messages
// whose expiry has passed, including their id index, latest pointer and
// version history. It deletes at most batch messages per call (0 means
// unbounded) and reports how many it removed. With dryRun it only counts.
func PurgeExpired(nowNS int64, batch int, dryRun bool) (int, error) {
	if db == nil {
		return 0, notOpen()
	}
	prefix := []byte(convPrefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	purged := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.Contains(iter.Key(), []byte(":msg:")) {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if !m.Expired(nowNS) {
			continue
		}
		purged++
		if dryRun {
			continue
		}
		k := append([]byte(nil), iter.Key()...)
		if err := db.Delete(k, pebble.Sync); err != nil {
			return purged, err
		}
		if m.ID != "" {
			_ = db.Delete([]byte(msgKeyPrefix+m.ID), pebble.Sync)
			_ = db.Delete([]byte(latestPrefix+m.ID), pebble.Sync)
			if err := deletePrefix(versionPrefix + m.ID + ":"); err != nil {
				return purged, err
			}
		}
		messagesPurged.Inc()
		if batch > 0 && purged >= batch {
			break
		}
	}
	return purged, iter.Error()
}

func deletePrefix(prefix string) error {
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	p := []byte(prefix)
	var keys [][]byte
	for iter.SeekGE(p); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), p) {
			break
		}
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	for _, k := range keys {
		if err := db.Delete(k, pebble.Sync); err != nil {
			return err
		}
	}
	return iter.Error()
}

// ListKeys returns all keys (as strings) that start with the given prefix.
// If prefix is empty it returns all keys in the DB.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, notOpen()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	if prefix == "" {
		for iter.First(); iter.Valid(); iter.Next() {
			out = append(out, string(iter.Key()))
		}
		return out, iter.Error()
	}
	pfx := []byte(prefix)
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(iter.Key()))
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", notOpen()
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), nil
}

// SaveKey writes a raw value under the given key.
func SaveKey(key string, value []byte) error {
	if db == nil {
		return notOpen()
	}
	return db.Set([]byte(key), value, pebble.Sync)
}

// DeleteKey removes a raw key.
func DeleteKey(key string) error {
	if db == nil {
		return notOpen()
	}
	return db.Delete([]byte(key), pebble.Sync)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
