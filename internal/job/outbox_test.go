package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"accountstate/internal/metrics"
	"accountstate/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memOutbox struct {
	messages map[int64]*model.OutboxMessage
	failNext error
	before   time.Time
}

func newMemOutbox(msgs ...*model.OutboxMessage) *memOutbox {
	o := &memOutbox{messages: make(map[int64]*model.OutboxMessage)}
	for _, m := range msgs {
		o.messages[m.ID] = m
	}
	return o
}

func (o *memOutbox) GetPendingMessages(_ context.Context, limit int) ([]*model.OutboxMessage, error) {
	if o.failNext != nil {
		return nil, o.failNext
	}
	var out []*model.OutboxMessage
	for id := int64(1); id <= int64(len(o.messages)) && len(out) < limit; id++ {
		if m, ok := o.messages[id]; ok && m.Status == model.OutboxStatusPending {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (o *memOutbox) UpdateStatus(_ context.Context, id int64, status string) error {
	o.messages[id].Status = status
	return nil
}

func (o *memOutbox) IncrementRetryCount(_ context.Context, id int64) error {
	o.messages[id].RetryCount++
	return nil
}

func (o *memOutbox) MarkAsFailed(_ context.Context, id int64) error {
	o.messages[id].Status = model.OutboxStatusFailed
	o.messages[id].RetryCount++
	return nil
}

func (o *memOutbox) GetFailedMessages(_ context.Context, before time.Time, limit int) ([]*model.OutboxMessage, error) {
	o.before = before
	var out []*model.OutboxMessage
	for id := int64(1); id <= int64(len(o.messages)) && len(out) < limit; id++ {
		if m, ok := o.messages[id]; ok && m.Status == model.OutboxStatusFailed && m.UpdatedAt.Before(before) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (o *memOutbox) Requeue(_ context.Context, id int64) error {
	if o.failNext != nil {
		return o.failNext
	}
	o.messages[id].Status = model.OutboxStatusPending
	o.messages[id].RetryCount = 0
	return nil
}

type publishedMessage struct {
	topic, key, value string
}

type fakePublisher struct {
	err  error
	sent []publishedMessage
}

func (p *fakePublisher) Publish(_ context.Context, topic, key, value string) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, publishedMessage{topic, key, value})
	return nil
}

func pending(id int64, key string) *model.OutboxMessage {
	return &model.OutboxMessage{
		ID:         id,
		MessageKey: key,
		Topic:      "account-events",
		Payload:    `{"event":"ACCOUNT_DEPOSITED"}`,
		Status:     model.OutboxStatusPending,
	}
}

func TestOutboxSenderPublishesInOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	queue := newMemOutbox(pending(1, "ACC1"), pending(2, "ACC1"), pending(3, "ACC2"))
	pub := &fakePublisher{}

	s := NewOutboxSender(queue, pub, m, 3)
	s.processPendingMessages(context.Background())

	require.Len(t, pub.sent, 3)
	assert.Equal(t, []string{"ACC1", "ACC1", "ACC2"}, []string{pub.sent[0].key, pub.sent[1].key, pub.sent[2].key})
	assert.Equal(t, "account-events", pub.sent[0].topic)
	for _, msg := range queue.messages {
		assert.Equal(t, model.OutboxStatusSent, msg.Status)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxCounter(OutboxSent)))

	// 已发送的消息不会重复投递
	s.processPendingMessages(context.Background())
	assert.Len(t, pub.sent, 3)
}

func TestOutboxSenderRetriesThenFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	queue := newMemOutbox(pending(1, "ACC1"))
	pub := &fakePublisher{err: errors.New("kafka: broker not available")}

	s := NewOutboxSender(queue, pub, m, 3)
	ctx := context.Background()

	s.processPendingMessages(ctx)
	s.processPendingMessages(ctx)
	assert.Equal(t, model.OutboxStatusPending, queue.messages[1].Status)
	assert.Equal(t, 2, queue.messages[1].RetryCount)

	s.processPendingMessages(ctx)
	assert.Equal(t, model.OutboxStatusFailed, queue.messages[1].Status)
	assert.Equal(t, 3, queue.messages[1].RetryCount)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxCounter(OutboxRetry)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxCounter(OutboxFailed)))

	// 失败消息不再被发送任务拾取
	s.processPendingMessages(ctx)
	assert.Equal(t, 3, queue.messages[1].RetryCount)
}

func TestOutboxSenderQueryError(t *testing.T) {
	queue := newMemOutbox(pending(1, "ACC1"))
	queue.failNext = errors.New("db down")
	pub := &fakePublisher{}

	NewOutboxSender(queue, pub, nil, 3).processPendingMessages(context.Background())
	assert.Empty(t, pub.sent)
}

func TestOutboxSenderStop(t *testing.T) {
	s := NewOutboxSender(newMemOutbox(), &fakePublisher{}, nil, 3)
	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sender did not stop")
	}
}

func TestOutboxRedrive(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	old := pending(1, "ACC1")
	old.Status = model.OutboxStatusFailed
	old.RetryCount = 3
	old.UpdatedAt = now.Add(-time.Hour)
	recent := pending(2, "ACC2")
	recent.Status = model.OutboxStatusFailed
	recent.RetryCount = 3
	recent.UpdatedAt = now.Add(-time.Minute)
	sent := pending(3, "ACC3")
	sent.Status = model.OutboxStatusSent
	sent.UpdatedAt = now.Add(-time.Hour)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	outbox := newMemOutbox(old, recent, sent)

	j := NewOutboxRedriveJob(outbox, m, 10*time.Minute)
	j.now = func() time.Time { return now }

	assert.Equal(t, 1, j.redrive(context.Background()))
	assert.Equal(t, now.Add(-10*time.Minute), outbox.before)
	assert.Equal(t, model.OutboxStatusPending, old.Status)
	assert.Equal(t, 0, old.RetryCount)
	assert.Equal(t, model.OutboxStatusFailed, recent.Status)
	assert.Equal(t, model.OutboxStatusSent, sent.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxCounter(OutboxRequeued)))
}

func TestOutboxRedriveRequeueError(t *testing.T) {
	msg := pending(1, "ACC1")
	msg.Status = model.OutboxStatusFailed
	outbox := newMemOutbox(msg)
	outbox.failNext = errors.New("db down")

	j := NewOutboxRedriveJob(outbox, nil, 0)
	j.now = func() time.Time { return time.Now().Add(time.Hour) }

	assert.Equal(t, 0, j.redrive(context.Background()))
	assert.Equal(t, model.OutboxStatusFailed, msg.Status)
}
