package job

import (
	"context"
	"time"

	"accountstate/internal/metrics"
	"accountstate/internal/model"
	"accountstate/pkg/logger"

	"go.uber.org/zap"
)

// Publisher 消息投递
type Publisher interface {
	Publish(ctx context.Context, topic, key, value string) error
}

// OutboxQueue 发件箱表的读写
type OutboxQueue interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
}

// 发件箱指标的 result 标签
const (
	OutboxSent     = "sent"
	OutboxRetry    = "retry"
	OutboxFailed   = "failed"
	OutboxRequeued = "requeued"
)

type OutboxSender struct {
	queue         OutboxQueue
	publisher     Publisher
	metrics       *metrics.Collector
	log           *logger.Logger
	maxRetryCount int
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
}

func NewOutboxSender(queue OutboxQueue, publisher Publisher, m *metrics.Collector, maxRetryCount int) *OutboxSender {
	if maxRetryCount <= 0 {
		maxRetryCount = 1
	}
	return &OutboxSender{
		queue:         queue,
		publisher:     publisher,
		metrics:       m,
		log:           logger.L().Named("OutboxSender"),
		maxRetryCount: maxRetryCount,
		stopCh:        make(chan struct{}),
		interval:      100 * time.Millisecond,
		batchSize:     100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.queue.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.Error("查询消息失败", zap.Error(err))
		return
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			return
		}
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	fields := []zap.Field{
		zap.Int64("id", msg.ID),
		zap.String("topic", msg.Topic),
		zap.String("key", msg.MessageKey),
	}

	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.queue.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			s.log.Error("更新消息状态失败", append(fields, zap.Error(updateErr))...)
			return
		}
		s.metrics.ObserveOutbox(OutboxSent)
		s.log.Debug("消息发送成功", fields...)
		return
	}

	s.log.Warn("消息发送失败", append(fields, zap.Int("retry_count", msg.RetryCount), zap.Error(err))...)

	if msg.RetryCount+1 >= s.maxRetryCount {
		if err := s.queue.MarkAsFailed(ctx, msg.ID); err != nil {
			s.log.Error("标记消息失败状态失败", append(fields, zap.Error(err))...)
			return
		}
		s.metrics.ObserveOutbox(OutboxFailed)
		s.log.Error("消息超过最大重试次数，标记为失败", fields...)
		return
	}

	if err := s.queue.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.log.Error("增加重试次数失败", append(fields, zap.Error(err))...)
		return
	}
	s.metrics.ObserveOutbox(OutboxRetry)
}
