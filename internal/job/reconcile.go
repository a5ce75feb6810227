package job

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ledgerpay/internal/config"
	"ledgerpay/internal/observability"
	"ledgerpay/internal/repository"
)

// ReconcileJob 对账任务
// 定期分页扫描账户表，把缓存余额与最新一条流水的 balance_after 比对，
// 不一致说明缓存与流水出现漂移，记错误日志并计数，留给人工介入。
// 任务只发现问题，不做自动修复
type ReconcileJob struct {
	store   repository.Store
	metrics observability.Metrics
	logger  zerolog.Logger

	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewReconcileJob(store repository.Store, metrics observability.Metrics, cfg *config.Config, logger zerolog.Logger) *ReconcileJob {
	return &ReconcileJob{
		store:     store,
		metrics:   metrics,
		logger:    logger,
		stopCh:    make(chan struct{}),
		interval:  time.Duration(cfg.Ledger.ReconcileIntervalSeconds) * time.Second,
		batchSize: cfg.Ledger.ReconcileBatchSize,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	j.logger.Info().Dur("interval", j.interval).Msg("对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("收到停止信号，对账任务退出")
			return
		case <-j.stopCh:
			j.logger.Info().Msg("对账任务停止")
			return
		case <-ticker.C:
			j.reconcileAll(ctx)
		}
	}
}

func (j *ReconcileJob) Stop() {
	close(j.stopCh)
}

// reconcileAll 扫一遍全部账户
func (j *ReconcileJob) reconcileAll(ctx context.Context) {
	offset := 0
	checked := 0
	diverged := 0

	for {
		accounts, err := j.store.Accounts().List(ctx, offset, j.batchSize)
		if err != nil {
			j.logger.Error().Err(err).Msg("分页查询账户失败")
			return
		}
		if len(accounts) == 0 {
			break
		}

		for _, account := range accounts {
			checked++
			mismatch, _, _, err := j.compareBalances(ctx, account.AccountRef)
			if err != nil {
				j.logger.Error().Err(err).Str("account_ref", account.AccountRef).Msg("读取账户余额失败")
				continue
			}
			if !mismatch {
				continue
			}

			// 账户读与流水读之间可能有交易提交，复核一次再上报
			mismatch, cached, authoritative, err := j.compareBalances(ctx, account.AccountRef)
			if err != nil {
				j.logger.Error().Err(err).Str("account_ref", account.AccountRef).Msg("复核账户余额失败")
				continue
			}
			if mismatch {
				diverged++
				j.reportDivergence(account.AccountRef, cached, authoritative)
			}
		}

		offset += len(accounts)
	}

	if diverged > 0 {
		j.logger.Error().Int("checked", checked).Int("diverged", diverged).Msg("对账发现余额不一致")
	} else {
		j.logger.Info().Int("checked", checked).Msg("对账完成，余额一致")
	}
}

// compareBalances 就地配对读取缓存余额与最新流水的 balance_after
// 没有任何流水的账户，权威余额视为零
func (j *ReconcileJob) compareBalances(ctx context.Context, ref string) (bool, string, string, error) {
	account, err := j.store.Accounts().GetByRef(ctx, ref)
	if err != nil {
		return false, "", "", err
	}
	entry, err := j.store.Entries().GetLatestByAccountID(ctx, account.ID)
	if err != nil {
		return false, "", "", err
	}

	authoritative := decimal.Zero
	if entry != nil {
		authoritative = entry.BalanceAfter
	}
	return !account.Balance.Equal(authoritative), account.Balance.String(), authoritative.String(), nil
}

func (j *ReconcileJob) reportDivergence(ref, cached, authoritative string) {
	j.metrics.RecordFailure("balance_divergence")
	j.logger.Error().
		Str("account_ref", ref).
		Str("cached_balance", cached).
		Str("entry_balance", authoritative).
		Msg("账户余额与流水不一致")
}
