package models

import (
	"sync"
	"time"
)

// SyncStatus is the read-only snapshot handed to the UI's status indicator.
type SyncStatus struct {
	IsOnline     bool       `json:"is_online"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	PendingCount int        `json:"pending_count"`
	LastError    string     `json:"last_error,omitempty"`
}

// SyncStatusTracker holds the process-wide sync status. It is recomputed
// fresh on every start, never persisted.
type SyncStatusTracker struct {
	mu     sync.Mutex
	status SyncStatus
}

func NewSyncStatusTracker() *SyncStatusTracker {
	return &SyncStatusTracker{}
}

func (t *SyncStatusTracker) Snapshot() SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetOnline records a connectivity transition and reports whether this call
// was an offline-to-online edge (the drain trigger).
func (t *SyncStatusTracker) SetOnline() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasOffline := !t.status.IsOnline
	t.status.IsOnline = true
	t.status.LastError = ""
	return wasOffline
}

func (t *SyncStatusTracker) SetOffline(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.IsOnline = false
	if err != nil {
		t.status.LastError = err.Error()
	}
}

func (t *SyncStatusTracker) MarkSynced(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.LastSyncAt = &at
}

func (t *SyncStatusTracker) SetPendingCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 0 {
		n = 0
	}
	t.status.PendingCount = n
}

func (t *SyncStatusTracker) IncPending() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.PendingCount++
}
