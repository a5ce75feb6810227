package job

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ledgerpay/internal/config"
	"ledgerpay/internal/infrastructure/mq"
	"ledgerpay/internal/model"
	"ledgerpay/internal/repository"
)

// OutboxDispatcher 发件箱分发任务
// 固定间隔轮询待发送事件，按创建时间升序取一批，
// 批内每个事件独立并发发送（有并发上限），整批完成后才进入下一轮。
// 单个事件发送失败只记日志，不影响同批其他事件，下一轮自然重试，
// 由此得到至少一次投递：发布成功与置位之间崩溃会导致重发，
// 下游消费者需按载荷中的 transactionRef 去重
type OutboxDispatcher struct {
	store    repository.Store
	producer mq.Producer
	logger   zerolog.Logger
	topics   config.KafkaTopicConfig

	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
	workers   int
}

func NewOutboxDispatcher(store repository.Store, producer mq.Producer, cfg *config.Config, logger zerolog.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		store:     store,
		producer:  producer,
		logger:    logger,
		topics:    cfg.Kafka.Topic,
		stopCh:    make(chan struct{}),
		interval:  time.Duration(cfg.Outbox.IntervalMS) * time.Millisecond,
		batchSize: cfg.Outbox.BatchSize,
		workers:   cfg.Outbox.Workers,
	}
}

func (d *OutboxDispatcher) Start(ctx context.Context) {
	d.logger.Info().Dur("interval", d.interval).Int("batch_size", d.batchSize).Msg("发件箱分发任务启动")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("收到停止信号，分发任务退出")
			return
		case <-d.stopCh:
			d.logger.Info().Msg("分发任务停止")
			return
		case <-ticker.C:
			d.processPending(ctx)
		}
	}
}

func (d *OutboxDispatcher) Stop() {
	close(d.stopCh)
}

// processPending 执行一轮分发，等所有事件发完才返回
func (d *OutboxDispatcher) processPending(ctx context.Context) {
	events, err := d.store.Outbox().GetUnprocessed(ctx, d.batchSize)
	if err != nil {
		d.logger.Error().Err(err).Msg("查询待发送事件失败")
		return
	}

	if len(events) == 0 {
		return
	}

	d.logger.Info().Int("count", len(events)).Msg("开始分发待发送事件")

	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	for _, event := range events {
		event := event
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			d.dispatch(ctx, event)
		}()
	}
	wg.Wait()
}

// dispatch 发送单个事件，成功后在独立工作单元内置为已处理
func (d *OutboxDispatcher) dispatch(ctx context.Context, event *model.OutboxEvent) {
	topic := d.resolveTopic(event.EventType)

	if err := d.producer.Publish(topic, event.AggregateID, event.Payload); err != nil {
		// 失败只记日志，保持 pending，下一轮重试
		d.logger.Error().Err(err).
			Int64("event_id", event.ID).
			Str("topic", topic).
			Msg("事件发送失败")
		return
	}

	if err := d.store.Outbox().MarkProcessed(ctx, event.ID); err != nil {
		// 置位失败会导致下一轮重发，由下游幂等消费兜底
		d.logger.Error().Err(err).Int64("event_id", event.ID).Msg("更新事件状态失败")
		return
	}

	d.logger.Info().
		Int64("event_id", event.ID).
		Str("topic", topic).
		Str("key", event.AggregateID).
		Msg("事件发送成功")
}

// resolveTopic 事件类型到主题的静态路由表
func (d *OutboxDispatcher) resolveTopic(eventType string) string {
	switch eventType {
	case model.EventTypeTransferCompleted,
		model.EventTypeDepositCompleted,
		model.EventTypeHoldPlaced,
		model.EventTypeHoldCaptured:
		return d.topics.PaymentEvents
	case model.EventTypeSagaCompleted, model.EventTypeSagaFailed:
		return d.topics.SagaEvents
	default:
		return d.topics.LedgerEvents
	}
}
