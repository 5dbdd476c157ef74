package events

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Event{}))
	return db
}

func TestPublishTxDedupesOnKey(t *testing.T) {
	db := setupDB(t)
	outbox := NewOutbox()
	ctx := context.Background()

	ev := ToPublish{
		CompanyID: 1, Type: TypePurchaseOrdered,
		Payload:   map[string]any{"purchase_order_id": "42"},
		DedupeKey: "po_ordered_42",
	}
	require.NoError(t, outbox.PublishTx(ctx, db, ev))
	// A retried posting publishes again with the same key; the row count stays 1.
	require.NoError(t, outbox.PublishTx(ctx, db, ev))

	var count int64
	require.NoError(t, db.Model(&Event{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var row Event
	require.NoError(t, db.First(&row, "id = ?", "po_ordered_42").Error)
	require.Equal(t, StatusPending, row.Status)
	require.Equal(t, "42", row.Payload["purchase_order_id"])
}

func TestPublishTxMintsIDWhenNoKey(t *testing.T) {
	db := setupDB(t)
	outbox := NewOutbox()
	ctx := context.Background()

	require.NoError(t, outbox.PublishTx(ctx, db, ToPublish{CompanyID: 1, Type: TypePurchaseReceived, Payload: map[string]any{}}))
	require.NoError(t, outbox.PublishTx(ctx, db, ToPublish{CompanyID: 1, Type: TypePurchaseReceived, Payload: map[string]any{}}))

	var count int64
	require.NoError(t, db.Model(&Event{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestMarkFailedDeadLettersAfterMaxAttempts(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	row := Event{ID: "ev1", CompanyID: 1, EventType: TypePurchaseInvoiced, Payload: map[string]any{}, Status: StatusProcessing}
	require.NoError(t, db.Create(&row).Error)

	cause := errors.New("downstream unavailable")
	for i := 0; i < maxAttempts; i++ {
		var current Event
		require.NoError(t, db.First(&current, "id = ?", "ev1").Error)
		require.NoError(t, MarkFailed(ctx, db, current, cause))
	}

	var final Event
	require.NoError(t, db.First(&final, "id = ?", "ev1").Error)
	require.Equal(t, StatusDead, final.Status)
	require.Equal(t, maxAttempts, final.Attempts)
	require.Equal(t, "downstream unavailable", final.Error)
}

func TestMarkDone(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&Event{ID: "ev2", CompanyID: 1, EventType: TypePurchaseInvoiced, Payload: map[string]any{}, Status: StatusProcessing}).Error)
	require.NoError(t, MarkDone(ctx, db, "ev2"))

	var final Event
	require.NoError(t, db.First(&final, "id = ?", "ev2").Error)
	require.Equal(t, StatusDone, final.Status)
}
