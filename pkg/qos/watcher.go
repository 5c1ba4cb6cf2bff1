package qos

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
)

// WatcherConfig holds configuration options for creating a new Watcher.
type WatcherConfig struct {
	// Subject is the update subject prefix. Defaults to DefaultSubject.
	Subject string

	// Origin, if set, makes the watcher ignore updates stamped with it;
	// a coordinator in the same process has already applied them.
	Origin string

	// Logger receives watcher records. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Watcher applies updates published by other coordinators to volumes open
// in this process.
type Watcher struct {
	conn    *nats.Conn
	subject string
	origin  string
	logger  *slog.Logger

	mu      sync.RWMutex
	targets map[string]Applier
	sub     *nats.Subscription
	applied int
}

// NewWatcher creates a watcher on an existing connection.
func NewWatcher(conn *nats.Conn, cfg WatcherConfig) *Watcher {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watcher{
		conn:    conn,
		subject: cfg.Subject,
		origin:  cfg.Origin,
		logger:  cfg.Logger.With("component", "qos_watcher"),
		targets: make(map[string]Applier),
	}
}

// Watch routes updates for the named volume to a.
func (w *Watcher) Watch(name string, a Applier) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.targets[name] = a
}

// Unwatch stops routing updates for the named volume.
func (w *Watcher) Unwatch(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.targets, name)
}

// Start subscribes to all volume updates.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sub != nil {
		return errors.New("qos: watcher already started")
	}
	sub, err := w.conn.Subscribe(w.subject+".>", w.handle)
	if err != nil {
		return err
	}
	w.sub = sub
	w.logger.Info("watching qos updates", "subject", w.subject+".>")
	return nil
}

// Applied returns how many updates were applied.
func (w *Watcher) Applied() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.applied
}

func (w *Watcher) handle(msg *nats.Msg) {
	var u Update
	if err := json.Unmarshal(msg.Data, &u); err != nil {
		w.logger.Error("dropping malformed update", "subject", msg.Subject, "error", err)
		return
	}
	if w.origin != "" && u.Origin == w.origin {
		return
	}

	w.mu.RLock()
	target := w.targets[u.Volume]
	w.mu.RUnlock()
	if target == nil {
		return
	}

	logger := w.logger.With("volume", u.Volume, "request_id", u.RequestID)
	if err := target.Apply(u.Limits); err != nil {
		logger.Error("apply update failed", "error", err)
		return
	}

	w.mu.Lock()
	w.applied++
	w.mu.Unlock()
	logger.Info("applied qos update", "limits", u.Limits.String(), "origin", u.Origin)
}

// Close drains the subscription.
func (w *Watcher) Close() error {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Drain()
}
