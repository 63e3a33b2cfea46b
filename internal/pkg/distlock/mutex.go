// Package distlock serializes campaign sends across processes that share one
// Redis and therefore one daily quota.
package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

const (
	DefaultTTL   = 30 * time.Second
	DefaultRetry = 250 * time.Millisecond
)

// ErrNotHeld is returned by Unlock when the mutex is not held by this process.
var ErrNotHeld = errors.New("distlock: lock not held")

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Mutex is a Redis-backed lock. The key carries a TTL and is kept alive
// while held, so a crashed holder frees it after at most one TTL.
type Mutex struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	retry  time.Duration

	mu    sync.Mutex
	token string
	stop  chan struct{}
	done  chan struct{}
}

// New returns a Mutex on "lock:"+name. Zero ttl or retry take the defaults.
func New(client *redis.Client, name string, ttl, retry time.Duration) *Mutex {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if retry <= 0 {
		retry = DefaultRetry
	}
	return &Mutex{
		client: client,
		key:    "lock:" + name,
		ttl:    ttl,
		retry:  retry,
	}
}

// Key returns the Redis key backing the mutex.
func (m *Mutex) Key() string { return m.key }

// TryLock makes one attempt to take the lock.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" {
		return false, fmt.Errorf("distlock: %s already held by this process", m.key)
	}

	token, err := newToken()
	if err != nil {
		return false, err
	}
	ok, err := m.client.SetNX(ctx, m.key, token, m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", m.key, err)
	}
	if !ok {
		return false, nil
	}

	m.token = token
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.keepAlive(token, m.stop, m.done)
	return true, nil
}

// Lock polls until the lock is taken or ctx is done.
func (m *Mutex) Lock(ctx context.Context) error {
	for {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retry):
		}
	}
}

// Unlock stops the keepalive and deletes the key if it still holds our token.
func (m *Mutex) Unlock(ctx context.Context) error {
	m.mu.Lock()
	token, stop, done := m.token, m.stop, m.done
	m.token, m.stop, m.done = "", nil, nil
	m.mu.Unlock()

	if token == "" {
		return ErrNotHeld
	}
	close(stop)
	<-done

	n, err := releaseScript.Run(ctx, m.client, []string{m.key}, token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", m.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (m *Mutex) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(m.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			n, err := extendScript.Run(context.Background(), m.client, []string{m.key}, token, m.ttl.Milliseconds()).Int()
			if err != nil {
				logger.Warn("[distlock] extend failed", "key", m.key, "error", err)
				continue
			}
			if n == 0 {
				logger.Error("[distlock] lock lost while held", "key", m.key)
				return
			}
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
