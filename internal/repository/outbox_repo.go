package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"ledgerpay/internal/model"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// GetUnprocessed 按创建时间升序取待发送事件，最老的先发，控制积压时延
func (r *OutboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("processed_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// MarkProcessed 置为已处理，只从 pending 翻转一次
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ? AND processed_at IS NULL", id).
		Update("processed_at", time.Now()).Error
}
