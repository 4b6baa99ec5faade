package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("payment is locked")

const DefaultTTL = 2 * time.Minute

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another caller is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PaymentLock serializes work on a single payment across instances.
type PaymentLock struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewPaymentLock(client redis.UniversalClient, ttl time.Duration) *PaymentLock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PaymentLock{client: client, ttl: ttl}
}

// Acquire takes the lock for paymentID and returns its release func. It fails
// with ErrLocked when another holder owns the lock.
func (l *PaymentLock) Acquire(ctx context.Context, paymentID int64) (func(), error) {
	key := Key(paymentID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		// Released on a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}

func Key(paymentID int64) string {
	return fmt.Sprintf("lock:payment:%d", paymentID)
}

// NoopLock is used when no Redis is configured. Concurrent returns for the
// same payment are then only guarded by the persisted status.
type NoopLock struct{}

func (NoopLock) Acquire(context.Context, int64) (func(), error) {
	return func() {}, nil
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
