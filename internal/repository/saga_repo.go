package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ledgerpay/internal/model"
)

var ErrSagaStatusInvalid = errors.New("saga 状态流转不合法")

// SagaRepository 预留的 saga 存储，核心账务流程不使用
type SagaRepository struct {
	db *gorm.DB
}

func NewSagaRepository(db *gorm.DB) *SagaRepository {
	return &SagaRepository{db: db}
}

func (r *SagaRepository) Create(ctx context.Context, saga *model.Saga) error {
	return r.db.WithContext(ctx).Create(saga).Error
}

func (r *SagaRepository) GetBySagaID(ctx context.Context, sagaID string) (*model.Saga, error) {
	var saga model.Saga
	err := r.db.WithContext(ctx).Where("saga_id = ?", sagaID).First(&saga).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &saga, nil
}

// UpdateStatus 按状态机推进 saga 状态，条件更新防止并发回退
func (r *SagaRepository) UpdateStatus(ctx context.Context, sagaID, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrSagaStatusInvalid
	}

	result := r.db.WithContext(ctx).
		Model(&model.Saga{}).
		Where("saga_id = ? AND status = ?", sagaID, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSagaStatusInvalid
	}
	return nil
}
