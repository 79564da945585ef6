package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish(t *testing.T) {
	sp := mocks.NewSyncProducer(t, NewSaramaConfig())
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"event":"ACCOUNT_CREATED"}` {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewProducer(sp, nil)
	require.NoError(t, p.Publish(context.Background(), "account_events", "k1", `{"event":"ACCOUNT_CREATED"}`))
	require.NoError(t, p.Close())
}

func TestPublishOpensCircuit(t *testing.T) {
	sp := mocks.NewSyncProducer(t, NewSaramaConfig())
	for i := 0; i < 5; i++ {
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	}

	p := NewProducer(sp, nil)
	for i := 0; i < 5; i++ {
		err := p.Publish(context.Background(), "t", "k", "v")
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	}

	// 熔断打开后不再调用底层生产者
	err := p.Publish(context.Background(), "t", "k", "v")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.NoError(t, p.Close())
}

func TestPublishCanceledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, NewSaramaConfig())
	p := NewProducer(sp, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "t", "k", "v"), context.Canceled)
	require.NoError(t, p.Close())
}

func TestCircuitValue(t *testing.T) {
	assert.Equal(t, 0, circuitValue(gobreaker.StateClosed))
	assert.Equal(t, 1, circuitValue(gobreaker.StateOpen))
	assert.Equal(t, 2, circuitValue(gobreaker.StateHalfOpen))
}
