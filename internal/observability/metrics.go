package observability

import (
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Metrics 账务引擎的埋点协作方
// 以显式依赖注入，引擎不触碰任何进程级单例
type Metrics interface {
	RecordTransfer()
	RecordDeposit()
	RecordHold()
	RecordCapture()
	RecordFailure(reason string)
	RecordTransactionAmount(opType string, amount decimal.Decimal)
}

// LedgerMetrics 原子计数器实现，失败原因走结构化日志
type LedgerMetrics struct {
	logger zerolog.Logger

	transfers int64
	deposits  int64
	holds     int64
	captures  int64
	failures  int64
}

func NewLedgerMetrics(logger zerolog.Logger) *LedgerMetrics {
	return &LedgerMetrics{logger: logger}
}

func (m *LedgerMetrics) RecordTransfer() {
	atomic.AddInt64(&m.transfers, 1)
}

func (m *LedgerMetrics) RecordDeposit() {
	atomic.AddInt64(&m.deposits, 1)
}

func (m *LedgerMetrics) RecordHold() {
	atomic.AddInt64(&m.holds, 1)
}

func (m *LedgerMetrics) RecordCapture() {
	atomic.AddInt64(&m.captures, 1)
}

func (m *LedgerMetrics) RecordFailure(reason string) {
	atomic.AddInt64(&m.failures, 1)
	m.logger.Warn().Str("reason", reason).Msg("交易失败")
}

func (m *LedgerMetrics) RecordTransactionAmount(opType string, amount decimal.Decimal) {
	m.logger.Debug().Str("type", opType).Str("amount", amount.String()).Msg("交易金额")
}

// Counts 当前计数快照，形如 {"transfer": 3, ...}
func (m *LedgerMetrics) Counts() map[string]int64 {
	return map[string]int64{
		"transfer": atomic.LoadInt64(&m.transfers),
		"deposit":  atomic.LoadInt64(&m.deposits),
		"hold":     atomic.LoadInt64(&m.holds),
		"capture":  atomic.LoadInt64(&m.captures),
		"failure":  atomic.LoadInt64(&m.failures),
	}
}

// Nop 空实现，供测试使用
type Nop struct{}

func (Nop) RecordTransfer()                                            {}
func (Nop) RecordDeposit()                                             {}
func (Nop) RecordHold()                                                {}
func (Nop) RecordCapture()                                             {}
func (Nop) RecordFailure(reason string)                                {}
func (Nop) RecordTransactionAmount(opType string, amount decimal.Decimal) {}
