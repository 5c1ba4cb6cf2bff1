package qos

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/volqos/pkg/volume"
)

// Update announces a committed configuration change.
type Update struct {
	RequestID string        `json:"request_id"`
	Volume    string        `json:"volume"`
	Limits    volume.Limits `json:"limits"`
	Origin    string        `json:"origin"`
	Time      time.Time     `json:"time"`
}

// Notifier tells other holders of a volume that its limits changed.
type Notifier interface {
	Notify(ctx context.Context, u Update) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, u Update) error

func (f NotifierFunc) Notify(ctx context.Context, u Update) error {
	return f(ctx, u)
}

// MultiNotifier notifies every member concurrently. It fails if any member
// fails and cancels the others' context when that happens.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, u Update) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, n := range m {
		n := n
		g.Go(func() error {
			return n.Notify(ctx, u)
		})
	}
	return g.Wait()
}
