package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accountstate/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：同一账户上的取款和冻结请求落在不同实例上
//
// 如果没有分布式锁：
//   实例1: 读到 ACTIVE, 余额=100 -> 取款100 -> 余额=0
//   实例2: 读到 ACTIVE, 余额=100 -> 取款100 -> 版本冲突，只能报错重试
//
// 加了分布式锁：
//   实例1: 获取锁 -> 取款 -> 释放锁
//   实例2: 等待锁 -> 读到余额=0 -> 余额不足，拒绝
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//   - 先检查 value 是否是自己的
//   - 再删除 key
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
//
// 【关键点】使用 SetNX 命令，只有当 key 不存在时才能设置成功
// 这保证了同一时刻只有一个客户端能获取到锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	// SET key value NX EX timeout
	// NX: 只有 key 不存在时才设置
	// EX: 设置过期时间，防止死锁（持有锁的进程崩溃时，锁会自动释放）
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		// 等待一段时间后重试
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】使用 Lua 脚本保证"检查+删除"操作的原子性
//
// 为什么要检查 value？
//
//	场景：A 获取锁 -> A 处理超时，锁自动过期 -> B 获取锁 -> A 执行完毕，调用 Unlock
//	如果不检查 value，A 会把 B 的锁删掉！
//
//	使用 value 验证后：
//	A 的 Unlock 发现 value 不是自己的，不会删除，B 的锁安全
func (l *DistributedLock) Unlock(ctx context.Context) error {
	// Lua 脚本：检查 value 是否匹配，匹配则删除
	// 使用 Lua 脚本保证原子性，避免"检查-删除"之间的并发问题
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	deleted, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockExpired
	}
	return nil
}

// ============================================================================
// 账户维度的锁
// ============================================================================

// AccountLockKey 账户锁的 key
func AccountLockKey(accountNo string) string {
	return fmt.Sprintf("account:lock:%s", accountNo)
}

// NewAccountLock 创建账户锁，同一账户上的变更串行执行
// value 使用请求标识，便于追踪是哪个请求持有锁
func NewAccountLock(client *redis.Client, accountNo, owner string, expiration time.Duration) *DistributedLock {
	return NewDistributedLock(client, AccountLockKey(accountNo), owner, expiration)
}

// RedisLocker 按账户加锁，供 service 层使用
type RedisLocker struct {
	client        *redis.Client
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client, expiration time.Duration) *RedisLocker {
	retryInterval := 50 * time.Millisecond
	maxRetries := int(expiration / retryInterval)
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RedisLocker{
		client:        client,
		expiration:    expiration,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

// Acquire 阻塞获取账户锁，返回释放函数
func (l *RedisLocker) Acquire(ctx context.Context, accountNo, owner string) (func(), error) {
	lk := NewAccountLock(l.client, accountNo, owner, l.expiration)
	if err := lk.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, err
	}
	return func() {
		// 使用独立的 context，请求取消后也要释放锁
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lk.Unlock(ctx); err != nil {
			logger.L().Warn("释放账户锁失败", zap.String("account_no", accountNo), zap.Error(err))
		}
	}, nil
}
