package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/vnykmshr/volqos/pkg/qos"
	"github.com/vnykmshr/volqos/pkg/qos/store"
)

// runtime holds what commands share within one invocation: the loaded
// configuration and the backends opened from it.
type runtime struct {
	configPath string
	out        io.Writer
	logger     *slog.Logger

	cfg     *Config
	store   store.Store
	locker  store.Locker
	nc      *nats.Conn
	closers []func() error
}

func newRuntime() *runtime {
	return &runtime{out: os.Stdout}
}

func (r *runtime) config() (*Config, error) {
	if r.cfg != nil {
		return r.cfg, nil
	}
	cfg, err := loadConfig(r.configPath)
	if err != nil {
		return nil, err
	}
	r.cfg = cfg
	return cfg, nil
}

func (r *runtime) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	level := slog.LevelInfo
	if r.cfg != nil {
		level, _ = parseLevel(r.cfg.LogLevel)
	}
	r.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return r.logger
}

// openStore opens the configured store once.
func (r *runtime) openStore(ctx context.Context) (store.Store, store.Locker, error) {
	if r.store != nil {
		return r.store, r.locker, nil
	}
	cfg, err := r.config()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Store {
	case backendMemory:
		r.store, r.locker = store.NewMemoryStore(), store.NewMemoryLocker()
	case backendRedis:
		rc := cfg.redisConfig()
		client := store.NewRedisClient(rc)
		s := store.NewRedisStoreFromClient(client, rc)
		if err := s.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		r.store, r.locker = s, store.NewRedisLocker(client, rc)
		r.closers = append(r.closers, client.Close)
	case backendMongo:
		s, err := store.NewMongoStore(cfg.mongoConfig())
		if err != nil {
			return nil, nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, nil, err
		}
		r.store = s
		r.closers = append(r.closers, func() error { return s.Close(context.Background()) })
	}
	return r.store, r.locker, nil
}

// natsConn connects to the configured server once. It returns nil, nil when
// no server is configured.
func (r *runtime) natsConn() (*nats.Conn, error) {
	if r.nc != nil {
		return r.nc, nil
	}
	cfg, err := r.config()
	if err != nil {
		return nil, err
	}
	if cfg.NATS.URL == "" {
		return nil, nil
	}
	nc, err := qos.ConnectNATS(cfg.NATS)
	if err != nil {
		return nil, err
	}
	r.nc = nc
	r.closers = append(r.closers, func() error {
		nc.Close()
		return nil
	})
	return nc, nil
}

func (r *runtime) coordinator(ctx context.Context) (*qos.Coordinator, error) {
	cfg, err := r.config()
	if err != nil {
		return nil, err
	}
	s, locker, err := r.openStore(ctx)
	if err != nil {
		return nil, err
	}
	nc, err := r.natsConn()
	if err != nil {
		return nil, err
	}

	logger := r.log()
	notifiers := qos.MultiNotifier{
		qos.NotifierFunc(func(_ context.Context, u qos.Update) error {
			logger.Debug("qos update committed", "volume", u.Volume, "request_id", u.RequestID)
			return nil
		}),
	}
	if nc != nil {
		notifiers = append(notifiers, qos.NewNATSNotifier(nc, cfg.NATS.Subject))
	}

	return qos.NewCoordinator(qos.Config{
		Store:    s,
		Locker:   locker,
		Notifier: notifiers,
		Origin:   cfg.Origin,
		Logger:   logger,
	})
}

// Close releases every opened backend.
func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
