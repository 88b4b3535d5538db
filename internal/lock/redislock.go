// Package lock keeps two archiver runs from working the same stores at once.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	r "github.com/redis/go-redis/v9"
)

const keyPrefix = "enqarchive:lock:"

// ErrHeld is returned when another run holds the lock.
var ErrHeld = errors.New("lock held by another run")

var release = r.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extend = r.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLock is a single-writer lock on one redis key. The value is a random
// token so a run only ever releases a lock it acquired itself.
type RedisLock struct {
	rdb *r.Client
	key string
	ttl time.Duration
}

func New(rdb *r.Client, name string, ttl time.Duration) *RedisLock {
	return &RedisLock{rdb: rdb, key: keyPrefix + name, ttl: ttl}
}

func (l *RedisLock) Key() string { return l.key }

// Acquire takes the lock or fails with ErrHeld. The returned Lease must be
// released when the run ends; the key expires after ttl if it is not.
func (l *RedisLock) Acquire(ctx context.Context) (*Lease, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return &Lease{lock: l, token: token}, nil
}

type Lease struct {
	lock  *RedisLock
	token string
}

// Extend pushes the expiry out by another ttl. It reports ErrHeld when the
// lease was lost.
func (ls *Lease) Extend(ctx context.Context) error {
	n, err := extend.Run(ctx, ls.lock.rdb, []string{ls.lock.key}, ls.token, ls.lock.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrHeld
	}
	return nil
}

// Release deletes the key if this lease still owns it.
func (ls *Lease) Release(ctx context.Context) error {
	err := release.Run(ctx, ls.lock.rdb, []string{ls.lock.key}, ls.token).Err()
	if errors.Is(err, r.Nil) {
		return nil
	}
	return err
}
