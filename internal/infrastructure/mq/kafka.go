package mq

import (
	"context"
	"fmt"
	"time"

	"accountstate/internal/config"
	"accountstate/internal/metrics"
	"accountstate/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Producer Kafka 同步生产者，外面包一层熔断器
// broker 持续不可用时快速失败，outbox 消息留在库里等待下一轮
type Producer struct {
	producer sarama.SyncProducer
	breaker  *gobreaker.CircuitBreaker
	log      *logger.Logger
}

// NewSaramaConfig 生产者配置
func NewSaramaConfig() *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3                    // 重试次数
	kafkaConfig.Producer.Return.Successes = true          // 返回成功消息
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1 // 幂等生产者要求
	kafkaConfig.Version = sarama.V2_1_0_0
	return kafkaConfig
}

// InitKafka 初始化 Kafka 生产者
func InitKafka(cfg *config.KafkaConfig, m *metrics.Collector) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}

	logger.L().Info("Kafka 生产者创建成功", zap.Strings("brokers", cfg.Brokers))
	return NewProducer(producer, m), nil
}

// NewProducer 包装已有的 SyncProducer
func NewProducer(producer sarama.SyncProducer, m *metrics.Collector) *Producer {
	log := logger.L().Named("kafka")
	settings := gobreaker.Settings{
		Name:        "kafka",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("熔断器状态变化",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			m.SetCircuitState(name, circuitValue(to))
		},
	}
	return &Producer{
		producer: producer,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		log:      log,
	}
}

func circuitValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Publish 发送消息到 Kafka
func (p *Producer) Publish(ctx context.Context, topic, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.breaker.Execute(func() (interface{}, error) {
		msg := &sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(key),
			Value: sarama.StringEncoder(value),
		}
		_, _, err := p.producer.SendMessage(msg)
		return nil, err
	})
	return err
}

// Close 关闭 Kafka 生产者
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
