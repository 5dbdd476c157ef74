package events

import (
	"context"
	"time"

	"github.com/baytretail/core/pkg/db/option"
	"gorm.io/gorm"
)

const maxAttempts = 5

// Claim selects up to limit pending or previously failed events and marks them processing,
// locking them FOR UPDATE SKIP LOCKED so concurrent drain workers never race over the same row.
func Claim(ctx context.Context, db *gorm.DB, limit int) ([]Event, error) {
	var claimed []Event
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []Event
		stmt := option.ForUpdateSkipLocked().Apply(tx.WithContext(ctx).Model(&Event{}))
		if err := stmt.Where("status IN ?", []Status{StatusPending, StatusFailed}).Order("created_at asc").Limit(limit).Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].Status = StatusProcessing
			rows[i].UpdatedAt = time.Now().UTC()
			if err := tx.WithContext(ctx).Model(&Event{}).Where("id = ?", rows[i].ID).
				Updates(map[string]any{"status": StatusProcessing, "updated_at": rows[i].UpdatedAt}).Error; err != nil {
				return err
			}
		}
		claimed = rows
		return nil
	})
	return claimed, err
}

// MarkDone transitions ev to done.
func MarkDone(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Model(&Event{}).Where("id = ?", id).
		Updates(map[string]any{"status": StatusDone, "updated_at": time.Now().UTC()}).Error
}

// MarkFailed transitions ev to failed, or dead once maxAttempts is reached.
func MarkFailed(ctx context.Context, db *gorm.DB, ev Event, cause error) error {
	attempts := ev.Attempts + 1
	status := StatusFailed
	if attempts >= maxAttempts {
		status = StatusDead
	}
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	return db.WithContext(ctx).Model(&Event{}).Where("id = ?", ev.ID).
		Updates(map[string]any{
			"status":     status,
			"attempts":   attempts,
			"error":      errMsg,
			"updated_at": time.Now().UTC(),
		}).Error
}
