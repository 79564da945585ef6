package metrics

import (
	"errors"
	"testing"
	"time"

	"accountstate/internal/account"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveOperation(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveOperation("withdraw", nil, time.Millisecond)
	c.ObserveOperation("withdraw", account.ErrInsufficientFunds, time.Millisecond)
	c.ObserveOperation("withdraw", account.ErrInsufficientFunds, time.Millisecond)
	c.ObserveOperation("deposit", errors.New("db down"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("withdraw", "none")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("withdraw", "insufficient_funds")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("deposit", "other")))
}

func TestObserveTransitionAndOutbox(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveTransition(account.StatusActive, account.StatusFrozen)
	c.ObserveOutbox("sent")
	c.ObserveOutbox("sent")
	c.SetCircuitState("kafka", 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("ACTIVE", "FROZEN")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.outbox.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.circuitState.WithLabelValues("kafka")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveOperation("deposit", nil, time.Second)
		c.ObserveTransition(account.StatusActive, account.StatusClosed)
		c.ObserveOutbox("sent")
		c.SetCircuitState("kafka", 0)
	})
}
