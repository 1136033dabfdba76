package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/register_backend/config"
)

// OfflineQueueEntry is a remote write that failed and is parked in the
// terminal's durable store. The auto-increment id gives strict enqueue
// order; draining never skips ahead past a failure, so writes are never
// silently reordered once connectivity returns.
type OfflineQueueEntry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Kind       QueueEntryKind `gorm:"size:16;not null" json:"kind"`
	Payload    []byte         `gorm:"type:blob;not null" json:"payload"`
	EnqueuedAt time.Time      `gorm:"autoCreateTime;index" json:"enqueued_at"`
}

func EnqueueOfflineEntry(ctx context.Context, kind QueueEntryKind, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	entry := OfflineQueueEntry{Kind: kind, Payload: data}
	return config.GetLocalDB().WithContext(ctx).Create(&entry).Error
}

// ListOfflineQueue returns every queued entry in enqueue order.
func ListOfflineQueue(ctx context.Context) ([]OfflineQueueEntry, error) {
	var entries []OfflineQueueEntry
	err := config.GetLocalDB().WithContext(ctx).
		Order("id ASC").Find(&entries).Error
	return entries, err
}

// DeleteOfflineEntries removes a drained prefix by id.
func DeleteOfflineEntries(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return config.GetLocalDB().WithContext(ctx).
		Where("id IN ?", ids).Delete(&OfflineQueueEntry{}).Error
}

func CountOfflineQueue(ctx context.Context) (int, error) {
	var count int64
	err := config.GetLocalDB().WithContext(ctx).
		Model(&OfflineQueueEntry{}).Count(&count).Error
	return int(count), err
}
