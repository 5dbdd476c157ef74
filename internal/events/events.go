// Package events implements the durable outbox: business events are appended inside the
// same transaction as the state change that produced them, and drained at-least-once by a
// background worker (see internal/scheduler).
package events

import (
	"context"
	"time"

	"github.com/baytretail/core/pkg/telemetry/correlation"
	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusDead       Status = "dead"
)

const (
	TypePurchaseOrdered     = "purchase.ordered"
	TypePurchaseReceived    = "purchase.received"
	TypePurchaseInvoiced    = "purchase.invoiced"
	TypeSupplierCreditPosted = "supplier_credit.posted"
)

// Event is a durable outbox row. ID is a string (not a snowflake.ID) so callers can supply
// a deterministic dedupe key instead of always minting a fresh one.
type Event struct {
	ID        string            `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID      `gorm:"column:company_id;not null;index" json:"company_id"`
	EventType string            `gorm:"column:event_type;not null" json:"event_type"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb;not null" json:"payload"`
	Status    Status            `gorm:"type:text;not null;default:pending;index" json:"status"`
	Attempts  int               `gorm:"not null;default:0" json:"attempts"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Event) TableName() string { return "events" }

// ToPublish is the input shape for Outbox.PublishTx.
type ToPublish struct {
	CompanyID snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// Outbox appends events inside the caller's transaction.
type Outbox struct{}

func NewOutbox() *Outbox {
	return &Outbox{}
}

// PublishTx inserts ev inside tx. If DedupeKey is set and an event with that id already
// exists, the insert is a no-op (ON CONFLICT DO NOTHING) so retried postings never double
// publish. Minted ids are ULIDs rather than snowflakes: the drain loop orders by recency
// and dead-letter triage sorts by id, so lexicographic time-ordering is the useful
// property here. Correlation/trace ids are stamped onto the payload so a consumer can tie
// the event back to the request that produced it.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, ev ToPublish) error {
	id := ev.DedupeKey
	if id == "" {
		id = ulid.Make().String()
	}
	payload := correlation.StampMetadata(ctx, ev.Payload, trace.SpanFromContext(ctx))
	row := Event{
		ID:        id,
		CompanyID: ev.CompanyID,
		EventType: ev.Type,
		Payload:   datatypes.JSONMap(payload),
		Status:    StatusPending,
	}
	return tx.WithContext(ctx).Clauses(onConflictDoNothing()).Create(&row).Error
}
