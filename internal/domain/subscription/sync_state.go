package subscription

import (
	"strings"
	"time"
)

// SyncState is the per-entity sync cursor: remote identity, dirty-push flag and timestamps.
// RemoteID is a weak reference used for correlation only.
type SyncState struct {
	RemoteID      *string
	NeedsPush     bool
	PushBlocked   bool
	LastPushError string
	LastPushedAt  *time.Time
	LastPulledAt  *time.Time
}

// HasRemoteID reports whether the entity has been created remotely
func (s *SyncState) HasRemoteID() bool {
	return s.RemoteID != nil && *s.RemoteID != ""
}

// RemoteIDValue returns the remote ID or an empty string
func (s *SyncState) RemoteIDValue() string {
	if s.RemoteID == nil {
		return ""
	}
	return *s.RemoteID
}

// MarkDirty flags the entity for the next push and lifts a validation block,
// since an edit is the operator's correction.
func (s *SyncState) MarkDirty() {
	s.NeedsPush = true
	s.PushBlocked = false
}

// IsPushable reports whether a batch push should pick this entity up
func (s *SyncState) IsPushable() bool {
	return s.NeedsPush && !s.PushBlocked
}

// AssignRemoteID sets the remote identity once. Re-assigning the same value is a no-op.
func (s *SyncState) AssignRemoteID(remoteID string) error {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return nil
	}
	if s.HasRemoteID() {
		if *s.RemoteID != remoteID {
			return ErrRemoteIDMismatch
		}
		return nil
	}
	s.RemoteID = &remoteID
	return nil
}

// RecordPushSuccess clears the dirty flag and error and stamps the push time
func (s *SyncState) RecordPushSuccess(at time.Time) {
	s.NeedsPush = false
	s.PushBlocked = false
	s.LastPushError = ""
	at = at.UTC()
	s.LastPushedAt = &at
}

// RecordPushFailure keeps the entity dirty and stores the error for operators.
// blocked=true stops automatic retries until the entity is edited.
func (s *SyncState) RecordPushFailure(message string, blocked bool) {
	s.NeedsPush = true
	s.PushBlocked = blocked
	s.LastPushError = message
}

// RecordPull stamps a remote-originated refresh. The entity is in sync after it.
func (s *SyncState) RecordPull(at time.Time) {
	at = at.UTC()
	s.LastPulledAt = &at
	s.NeedsPush = false
	s.PushBlocked = false
	s.LastPushError = ""
}
