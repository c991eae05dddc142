package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OutboxMessage is written in the same transaction as the ledger change it describes.
// Publishing happens after commit via workflow.OutboxDispatcher.
type OutboxMessage struct {
	ID               int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	Topic            string     `gorm:"size:100;not null" json:"topic"`
	OrderingKey      string     `gorm:"size:100" json:"ordering_key"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

const StockEventTopic = "stock.changed"

// StockEvent is the payload published for every committed ledger change.
type StockEvent struct {
	MovementId    int               `json:"movement_id"`
	ProduceId     int               `json:"produce_id"`
	Kind          StockMovementKind `json:"kind"`
	Action        StockAction       `json:"action"`
	ReferenceId   int               `json:"reference_id"`
	Delta         decimal.Decimal   `json:"delta"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
	ActorId       int               `json:"actor_id"`
	CorrelationId string            `json:"correlation_id"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

func enqueueStockEvent(tx *gorm.DB, movement *StockMovement) error {
	event := StockEvent{
		MovementId:    movement.ID,
		ProduceId:     movement.ProduceId,
		Kind:          movement.Kind,
		Action:        movement.Action,
		ReferenceId:   movement.ReferenceId,
		Delta:         movement.Delta,
		BalanceAfter:  movement.BalanceAfter,
		ActorId:       movement.ActorId,
		CorrelationId: movement.CorrelationId,
		OccurredAt:    movement.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := OutboxMessage{
		Topic:         StockEventTopic,
		OrderingKey:   fmt.Sprintf("produce-%d", movement.ProduceId),
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: movement.CorrelationId,
	}
	return tx.Create(&msg).Error
}

// PublishAttributes are the Pub/Sub attributes attached to the message.
func (m OutboxMessage) PublishAttributes() map[string]string {
	attrs := map[string]string{
		"topic":     m.Topic,
		"outbox_id": fmt.Sprint(m.ID),
	}
	if m.CorrelationId != "" {
		attrs["correlation_id"] = m.CorrelationId
	}
	return attrs
}
