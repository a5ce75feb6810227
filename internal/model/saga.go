package model

import (
	"time"
)

// ============================================================================
// Saga 数据模型（预留扩展点）
//
// 当前没有任何核心流程驱动 saga，这里只保留数据形态和状态机定义，
// 供未来的多步可补偿流程使用，不要在没有具体流程前实现编排逻辑
// ============================================================================

const (
	SagaStatusStarted      = "STARTED"
	SagaStatusInProgress   = "IN_PROGRESS"
	SagaStatusCompleted    = "COMPLETED"
	SagaStatusCompensating = "COMPENSATING"
	SagaStatusFailed       = "FAILED"
)

var ValidSagaTransitions = map[string][]string{
	SagaStatusStarted:      {SagaStatusInProgress, SagaStatusFailed},
	SagaStatusInProgress:   {SagaStatusCompleted, SagaStatusCompensating},
	SagaStatusCompensating: {SagaStatusFailed},
}

// CanTransitionTo 校验 saga 状态流转是否合法
func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidSagaTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	StepStatusPending   = "PENDING"
	StepStatusCompleted = "COMPLETED"
	StepStatusFailed    = "FAILED"
)

type Saga struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SagaID        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"saga_id"`
	Type          string    `gorm:"type:varchar(50);not null" json:"type"`
	Status        string    `gorm:"type:varchar(20);not null" json:"status"`
	CurrentStep   int       `gorm:"not null;default:0" json:"current_step"`
	Context       string    `gorm:"type:text" json:"context,omitempty"`
	FailureReason string    `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Saga) TableName() string {
	return "sagas"
}

type SagaStep struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SagaID     int64     `gorm:"index;not null" json:"saga_id"`
	StepNumber int       `gorm:"not null" json:"step_number"`
	StepName   string    `gorm:"type:varchar(100);not null" json:"step_name"`
	Status     string    `gorm:"type:varchar(20);not null" json:"status"`
	Result     string    `gorm:"type:text" json:"result,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SagaStep) TableName() string {
	return "saga_steps"
}
