package progressor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nocaflow/pkg/logger"
	"nocaflow/pkg/models"
	"nocaflow/pkg/store"
)

const (
	systemVersionKey    = "system:version"
	systemInProgressKey = "system:migration_in_progress"
)

// Sync performs upgrade work between versions. Edit in-place for
// migration logic.
func Sync(ctx context.Context, from, to string) error {
	logger.Info("progressor_sync_start", "from", from, "to", to)

	// Migration: re-canonicalize participant sets and backfill UpdatedTS
	// on conversations written by earlier versions. Idempotent.
	convs, err := store.ListConversations("")
	if err != nil {
		logger.Error("progressor_list_conversations_failed", "error", err)
		return err
	}
	for _, c := range convs {
		norm := models.NormalizeParticipants(c.Participants)
		changed := !models.SameParticipants(norm, c.Participants) || len(norm) != len(c.Participants)
		if changed {
			c.Participants = norm
		}
		if c.UpdatedTS == 0 {
			ts := c.LastMessageTS
			if ts == 0 {
				ts = c.CreatedTS
			}
			if ts == 0 {
				ts = time.Now().UTC().UnixNano()
			}
			c.UpdatedTS = ts
			changed = true
		}
		if !changed {
			continue
		}
		if err := store.SaveConversation(c); err != nil {
			logger.Error("progressor_save_conversation_failed", "conversation", c.ID, "error", err)
			continue
		}
		logger.Info("progressor_conversation_normalized", "conversation", c.ID)
	}

	logger.Info("progressor_sync_done", "from", from, "to", to)
	return nil
}

// Run checks for a version change and runs Sync if needed.
// Returns (invoked, error): invoked is true if Sync ran.
func Run(ctx context.Context, newVersion string) (bool, error) {
	stored, _ := store.GetKey(systemVersionKey)
	logger.Info("progressor_version_check", "stored", stored, "running", newVersion)
	if stored == newVersion {
		logger.Info("progressor_noop", "version", newVersion)
		return false, nil
	}

	marker := map[string]string{
		"from":       stored,
		"to":         newVersion,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	mb, _ := json.Marshal(marker)
	if err := store.SaveKey(systemInProgressKey, mb); err != nil {
		logger.Error("progressor_write_inprogress_failed", "error", err)
		return true, fmt.Errorf("failed to write in-progress marker: %w", err)
	}

	if err := Sync(ctx, stored, newVersion); err != nil {
		logger.Error("progressor_sync_failed", "from", stored, "to", newVersion, "error", err)
		return true, err
	}

	if err := store.SaveKey(systemVersionKey, []byte(newVersion)); err != nil {
		logger.Error("progressor_persist_version_failed", "version", newVersion, "error", err)
		return true, fmt.Errorf("failed to persist new version: %w", err)
	}
	if err := store.DeleteKey(systemInProgressKey); err != nil {
		logger.Error("progressor_delete_inprogress_failed", "error", err)
	}
	logger.Info("progressor_version_persisted", "version", newVersion)
	return true, nil
}
