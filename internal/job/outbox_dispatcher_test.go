package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ledgerpay/internal/config"
	"ledgerpay/internal/model"
	"ledgerpay/internal/repository/memory"
)

// fakeProducer 记录发布调用，可按事件载荷注入失败
type fakeProducer struct {
	mu        sync.Mutex
	published []publishedMsg
	failOn    map[string]error // key: payload
}

type publishedMsg struct {
	topic   string
	key     string
	payload string
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{failOn: make(map[string]error)}
}

func (p *fakeProducer) Publish(topic, key, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.failOn[payload]; ok {
		return err
	}
	p.published = append(p.published, publishedMsg{topic: topic, key: key, payload: payload})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Kafka.Topic = config.KafkaTopicConfig{
		PaymentEvents: "payment-events",
		SagaEvents:    "saga-events",
		LedgerEvents:  "ledger-events",
	}
	cfg.Outbox.IntervalMS = 10
	cfg.Outbox.BatchSize = 50
	cfg.Outbox.Workers = 4
	return cfg
}

func seedEvent(t *testing.T, store *memory.Store, eventType, payload string) *model.OutboxEvent {
	t.Helper()
	event := &model.OutboxEvent{
		AggregateType: model.AggregateTypeTransaction,
		AggregateID:   "1",
		EventType:     eventType,
		Payload:       payload,
	}
	require.NoError(t, store.Outbox().Create(context.Background(), event))
	return event
}

func TestDispatchBatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	producer := newFakeProducer()
	d := NewOutboxDispatcher(store, producer, testConfig(), zerolog.Nop())

	const n = 7
	for i := 0; i < n; i++ {
		seedEvent(t, store, model.EventTypeTransferCompleted, fmt.Sprintf(`{"n":%d}`, i))
	}

	d.processPending(ctx)

	require.Equal(t, n, producer.count())

	// 全部置为已处理，第二轮不再重发
	pending, err := store.Outbox().GetUnprocessed(ctx, 100)
	require.NoError(t, err)
	require.Empty(t, pending)

	d.processPending(ctx)
	require.Equal(t, n, producer.count())
}

func TestDispatchFailureIsolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	producer := newFakeProducer()
	d := NewOutboxDispatcher(store, producer, testConfig(), zerolog.Nop())

	seedEvent(t, store, model.EventTypeTransferCompleted, `{"n":1}`)
	bad := seedEvent(t, store, model.EventTypeTransferCompleted, `{"n":2}`)
	seedEvent(t, store, model.EventTypeTransferCompleted, `{"n":3}`)

	producer.failOn[`{"n":2}`] = errors.New("broker不可用")

	// 单个事件失败不影响同批其他事件
	d.processPending(ctx)
	require.Equal(t, 2, producer.count())

	pending, err := store.Outbox().GetUnprocessed(ctx, 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, bad.ID, pending[0].ID)

	// 故障恢复后，下一轮补发
	delete(producer.failOn, `{"n":2}`)
	d.processPending(ctx)
	require.Equal(t, 3, producer.count())

	pending, err = store.Outbox().GetUnprocessed(ctx, 100)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDispatchTopicRouting(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	producer := newFakeProducer()
	d := NewOutboxDispatcher(store, producer, testConfig(), zerolog.Nop())

	testCases := []struct {
		eventType string
		wantTopic string
	}{
		{model.EventTypeTransferCompleted, "payment-events"},
		{model.EventTypeDepositCompleted, "payment-events"},
		{model.EventTypeHoldPlaced, "payment-events"},
		{model.EventTypeHoldCaptured, "payment-events"},
		{model.EventTypeSagaCompleted, "saga-events"},
		{model.EventTypeSagaFailed, "saga-events"},
		{"UNKNOWN_EVENT", "ledger-events"},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.wantTopic, d.resolveTopic(tc.eventType), tc.eventType)
	}

	// 发布时以聚合ID作为分区键
	event := seedEvent(t, store, model.EventTypeTransferCompleted, `{"n":1}`)
	d.processPending(ctx)

	producer.mu.Lock()
	defer producer.mu.Unlock()
	require.Len(t, producer.published, 1)
	require.Equal(t, event.AggregateID, producer.published[0].key)
	require.Equal(t, "payment-events", producer.published[0].topic)
}
