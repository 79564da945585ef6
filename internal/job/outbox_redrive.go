package job

import (
	"context"
	"time"

	"accountstate/internal/metrics"
	"accountstate/internal/model"
	"accountstate/pkg/logger"

	"go.uber.org/zap"
)

// FailedOutbox 失败消息的查询与重新入队
type FailedOutbox interface {
	GetFailedMessages(ctx context.Context, before time.Time, limit int) ([]*model.OutboxMessage, error)
	Requeue(ctx context.Context, id int64) error
}

// OutboxRedriveJob 定期把标记为失败、且已冷却一段时间的消息放回待发送队列，
// 下游 Kafka 恢复后事件最终都能投递出去
type OutboxRedriveJob struct {
	outbox    FailedOutbox
	metrics   *metrics.Collector
	log       *logger.Logger
	after     time.Duration
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewOutboxRedriveJob(outbox FailedOutbox, m *metrics.Collector, after time.Duration) *OutboxRedriveJob {
	return &OutboxRedriveJob{
		outbox:    outbox,
		metrics:   m,
		log:       logger.L().Named("OutboxRedriveJob"),
		after:     after,
		stopCh:    make(chan struct{}),
		interval:  30 * time.Second,
		batchSize: 100,
		now:       time.Now,
	}
}

func (j *OutboxRedriveJob) Start(ctx context.Context) {
	j.log.Info("失败消息重投任务启动", zap.Duration("after", j.after))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.log.Info("任务停止")
			return
		case <-ticker.C:
			j.redrive(ctx)
		}
	}
}

func (j *OutboxRedriveJob) Stop() {
	close(j.stopCh)
}

func (j *OutboxRedriveJob) redrive(ctx context.Context) int {
	messages, err := j.outbox.GetFailedMessages(ctx, j.now().Add(-j.after), j.batchSize)
	if err != nil {
		j.log.Error("查询失败消息失败", zap.Error(err))
		return 0
	}

	if len(messages) == 0 {
		return 0
	}

	j.log.Info("发现失败消息", zap.Int("count", len(messages)))

	requeued := 0
	for _, msg := range messages {
		if err := j.outbox.Requeue(ctx, msg.ID); err != nil {
			j.log.Error("消息重新入队失败", zap.Int64("id", msg.ID), zap.Error(err))
			continue
		}
		requeued++
		j.metrics.ObserveOutbox(OutboxRequeued)
	}

	j.log.Info("本次重新入队消息", zap.Int("requeued", requeued))
	return requeued
}
