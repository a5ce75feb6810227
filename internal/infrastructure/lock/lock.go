package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrLockFailed = errors.New("获取分布式锁失败")

// Release 释放已持有的锁
type Release func(ctx context.Context) error

// Locker 按 key 串行化临界区
// 账务引擎在进入数据库事务前，对被扣款账户的引用加锁，
// 避免同一账户的并发请求都挤进数据库行锁排队
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// LocalLocker 进程内互斥锁实现，供单机部署和单元测试使用
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return func(ctx context.Context) error {
		m.Unlock()
		return nil
	}, nil
}
