package lock

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func TestAccountLockKey(t *testing.T) {
	assert.Equal(t, "account:lock:ACC2024011500000001", AccountLockKey("ACC2024011500000001"))
}

func TestNewAccountLock(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	l := NewAccountLock(client, "ACC1", "req-1", 3*time.Second)
	assert.Equal(t, "account:lock:ACC1", l.key)
	assert.Equal(t, "req-1", l.value)
	assert.Equal(t, 3*time.Second, l.expiration)
}

func TestNewRedisLockerRetries(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	l := NewRedisLocker(client, time.Second)
	assert.Equal(t, 20, l.maxRetries)

	l = NewRedisLocker(client, time.Millisecond)
	assert.Equal(t, 1, l.maxRetries)
}
