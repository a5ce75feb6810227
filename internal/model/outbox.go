package model

import (
	"time"
)

const (
	AggregateTypeTransaction = "TRANSACTION"
)

const (
	EventTypeTransferCompleted = "TRANSFER_COMPLETED"
	EventTypeDepositCompleted  = "DEPOSIT_COMPLETED"
	EventTypeHoldPlaced        = "HOLD_PLACED"
	EventTypeHoldCaptured      = "HOLD_CAPTURED"
	EventTypeSagaCompleted     = "SAGA_COMPLETED"
	EventTypeSagaFailed        = "SAGA_FAILED"
)

// OutboxEvent 事务性发件箱表
// 与交易在同一个数据库事务内写入，保证"已记账"必然"最终发布"。
// processed_at 为空表示待发送；发送成功后由分发任务单独提交置位。
// 记录永不删除，保留用于审计与重放
type OutboxEvent struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AggregateType string     `gorm:"type:varchar(100);not null" json:"aggregate_type"`
	AggregateID   string     `gorm:"type:varchar(100);not null" json:"aggregate_id"`
	EventType     string     `gorm:"type:varchar(100);not null" json:"event_type"`
	Payload       string     `gorm:"type:text;not null" json:"payload"` // JSON 序列化后的事件内容
	ProcessedAt   *time.Time `gorm:"index" json:"processed_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// MarkProcessed 置为已处理
func (e *OutboxEvent) MarkProcessed() {
	now := time.Now()
	e.ProcessedAt = &now
}
