package mq

import (
	"fmt"

	"github.com/IBM/sarama"

	"ledgerpay/internal/config"
)

// Producer 消息总线发布契约
// 分发任务只依赖这个接口，Kafka 客户端本身可替换
type Producer interface {
	Publish(topic, key, payload string) error
	Close() error
}

// KafkaProducer 基于 sarama 同步生产者的 Producer 实现
type KafkaProducer struct {
	producer sarama.SyncProducer
}

func NewKafkaProducer(cfg *config.KafkaConfig) (*KafkaProducer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}

	return &KafkaProducer{producer: producer}, nil
}

func (p *KafkaProducer) Publish(topic, key, payload string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(payload),
	}

	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
