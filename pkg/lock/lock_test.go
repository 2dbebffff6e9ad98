package lock

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, "test:lock:", time.Minute), mr
}

func lockers(t *testing.T) map[string]Locker {
	redisLocker, _ := newRedisLocker(t)
	return map[string]Locker{
		"local": NewLocalLocker(),
		"redis": redisLocker,
	}
}

func TestLocker_MutualExclusion(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := l.Lock(context.Background(), "campaign:1")
					if !assert.NoError(t, err) {
						return
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(2 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					unlock()
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxInside)
		})
	}
}

func TestLocker_TimesOutWhileHeld(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := l.Lock(context.Background(), "k")
			require.NoError(t, err)
			defer unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err = l.Lock(ctx, "k")
			assert.True(t, errors.Is(err, ErrTimeout))

			// other keys are independent
			other, err := l.Lock(context.Background(), "other")
			require.NoError(t, err)
			other()
		})
	}
}

func TestLocker_UnlockIsIdempotent(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := l.Lock(context.Background(), "k")
			require.NoError(t, err)
			unlock()
			unlock()

			again, err := l.Lock(context.Background(), "k")
			require.NoError(t, err)
			again()
		})
	}
}

func TestRedisLocker_DoesNotReleaseForeignToken(t *testing.T) {
	l, mr := newRedisLocker(t)
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// TTL expiry followed by another holder
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set("test:lock:k", "someone-else"))

	unlock()
	got, err := mr.Get("test:lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_RenewsTTLWhileHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	l := NewRedisLocker(client, "test:lock:", 300*time.Millisecond)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// almost expired; the holder must push it back to the full TTL
	mr.SetTTL("test:lock:k", time.Millisecond)
	assert.Eventually(t, func() bool {
		return mr.TTL("test:lock:k") == 300*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	unlock()
	assert.False(t, mr.Exists("test:lock:k"))
}

func TestRedisLocker_DoesNotRenewForeignToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	l := NewRedisLocker(client, "test:lock:", 300*time.Millisecond)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	l.log = &logger

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	require.NoError(t, mr.Set("test:lock:k", "someone-else"))

	time.Sleep(250 * time.Millisecond)
	unlock()

	assert.Zero(t, mr.TTL("test:lock:k"))
	assert.Contains(t, buf.String(), "lock lost while held")
}

func TestRedisLocker_LogsFailedRelease(t *testing.T) {
	l, mr := newRedisLocker(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	l.log = &logger

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	mr.Close()
	unlock()
	assert.Contains(t, buf.String(), "failed to release lock")
	assert.Contains(t, buf.String(), `"lock_key":"test:lock:k"`)
}

func TestLocalLocker_ForgetsIdleKeys(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.slots)
}
