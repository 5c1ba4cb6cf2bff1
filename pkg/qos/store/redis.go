package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
	"github.com/vnykmshr/volqos/pkg/volume"
)

// Hash fields of a volume's limits.
const (
	fieldIOPSBurst = "iops_burst"
	fieldIOPSAvg   = "iops_avg"
	fieldBPSBurst  = "bps_burst"
	fieldBPSAvg    = "bps_avg"
	fieldType      = "type"
)

// RedisConfig configures a Redis-backed store.
type RedisConfig struct {
	Addr     string        // Redis address (e.g., "localhost:6379")
	Password string        // Redis password (empty for no auth)
	DB       int           // Redis database number
	Prefix   string        // Key prefix (default: "volqos")
	Timeout  time.Duration // Per-operation timeout (default: 500ms)
	LockTTL  time.Duration // Expiry of locks taken by RedisLocker (default: 30s)
}

// DefaultRedisConfig returns a configuration for a local Redis server.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:    "localhost:6379",
		Prefix:  "volqos",
		Timeout: 500 * time.Millisecond,
		LockTTL: 30 * time.Second,
	}
}

func applyRedisDefaults(cfg RedisConfig) RedisConfig {
	def := DefaultRedisConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = def.LockTTL
	}
	return cfg
}

// NewRedisClient opens a client for cfg.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	cfg = applyRedisDefaults(cfg)
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisStore keeps each volume's limits in a hash at <prefix>:qos:<volume>.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store on a new client for cfg.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	return NewRedisStoreFromClient(NewRedisClient(cfg), cfg)
}

// NewRedisStoreFromClient creates a store on an existing client. Only the
// Prefix and Timeout fields of cfg are used.
func NewRedisStoreFromClient(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	cfg = applyRedisDefaults(cfg)
	return &RedisStore{
		client:  client,
		prefix:  cfg.Prefix,
		timeout: cfg.Timeout,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":qos:" + name
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &StoreError{Backend: "redis", Operation: "ping", Err: err}
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, name string) (volume.Limits, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, s.key(name)).Result()
	if err != nil {
		return volume.Limits{}, &StoreError{Backend: "redis", Operation: "get", Err: err}
	}
	if len(fields) == 0 {
		return volume.Limits{}, fmt.Errorf("volume %q: %w", name, qoserrors.ErrNotFound)
	}
	return decodeFields(fields)
}

func (s *RedisStore) Set(ctx context.Context, name string, limits volume.Limits) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.client.HSet(ctx, s.key(name), map[string]interface{}{
		fieldIOPSBurst: limits.IOPSBurst,
		fieldIOPSAvg:   limits.IOPSAvg,
		fieldBPSBurst:  limits.BPSBurst,
		fieldBPSAvg:    limits.BPSAvg,
		fieldType:      string(limits.Type),
	}).Err()
	if err != nil {
		return &StoreError{Backend: "redis", Operation: "set", Err: err}
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return &StoreError{Backend: "redis", Operation: "delete", Err: err}
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeFields(fields map[string]string) (volume.Limits, error) {
	var l volume.Limits
	for _, f := range []struct {
		name string
		dst  *uint64
	}{
		{fieldIOPSBurst, &l.IOPSBurst},
		{fieldIOPSAvg, &l.IOPSAvg},
		{fieldBPSBurst, &l.BPSBurst},
		{fieldBPSAvg, &l.BPSAvg},
	} {
		v, ok := fields[f.name]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return volume.Limits{}, &StoreError{Backend: "redis", Operation: "decode " + f.name, Err: err}
		}
		*f.dst = n
	}
	l.Type = volume.OpType(fields[fieldType])
	return l, nil
}

// releaseScript deletes the lock key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker takes per-volume locks with SET NX and a TTL, so a crashed
// owner's lock eventually expires.
type RedisLocker struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker on an existing client.
func NewRedisLocker(client redis.UniversalClient, cfg RedisConfig) *RedisLocker {
	cfg = applyRedisDefaults(cfg)
	return &RedisLocker{
		client:  client,
		prefix:  cfg.Prefix,
		ttl:     cfg.LockTTL,
		timeout: cfg.Timeout,
	}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, name string) (Lock, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := l.prefix + ":lock:" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, &StoreError{Backend: "redis", Operation: "lock", Err: err}
	}
	if !ok {
		return nil, fmt.Errorf("volume %q: %w", name, qoserrors.ErrLocked)
	}
	return &redisLock{locker: l, key: key, token: token}, nil
}

type redisLock struct {
	locker *RedisLocker
	key    string
	token  string
}

func (r *redisLock) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.locker.timeout)
	defer cancel()

	if err := releaseScript.Run(ctx, r.locker.client, []string{r.key}, r.token).Err(); err != nil {
		return &StoreError{Backend: "redis", Operation: "unlock", Err: err}
	}
	return nil
}
