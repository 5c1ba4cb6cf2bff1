package volume

import (
	"context"
	"fmt"
	"sync"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
)

// writeState tracks write blocking. Guarded by Gate.mu.
type writeState struct {
	blocks   int
	inflight int

	// unblocked closes when blocks drops back to zero.
	unblocked chan struct{}
	// drained closes when inflight reaches zero while blocked.
	drained chan struct{}
}

// BlockWrites stops new writes from being admitted and waits until writes
// already admitted have completed. Calls nest: writes resume only after a
// matching number of UnblockWrites calls. If ctx ends before the writes
// drain, the block is withdrawn and ctx.Err() is returned.
func (g *Gate) BlockWrites(ctx context.Context) error {
	g.mu.Lock()
	ws := &g.writes
	ws.blocks++
	if ws.blocks == 1 {
		ws.unblocked = make(chan struct{})
		g.setBlockedGauge(1)
	}
	if ws.inflight == 0 {
		blocks := ws.blocks
		g.mu.Unlock()
		g.logger.Debug("writes blocked", "blocks", blocks)
		return nil
	}
	if ws.drained == nil {
		ws.drained = make(chan struct{})
	}
	drained, inflight := ws.drained, ws.inflight
	g.mu.Unlock()

	g.logger.Debug("waiting for in-flight writes", "inflight", inflight)
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		g.UnblockWrites()
		return ctx.Err()
	}
}

// UnblockWrites undoes one BlockWrites call. Extra calls are ignored.
func (g *Gate) UnblockWrites() {
	g.mu.Lock()
	defer g.mu.Unlock()

	ws := &g.writes
	if ws.blocks == 0 {
		return
	}
	ws.blocks--
	if ws.blocks > 0 {
		return
	}
	close(ws.unblocked)
	ws.unblocked = nil
	g.setBlockedGauge(0)
	g.logger.Debug("writes unblocked")
}

// WritesBlocked reports whether writes are currently held back.
func (g *Gate) WritesBlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes.blocks > 0
}

// InflightWrites returns the number of admitted writes not yet completed.
func (g *Gate) InflightWrites() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes.inflight
}

// waitWritable blocks while writes are blocked.
func (g *Gate) waitWritable(ctx context.Context) error {
	for {
		g.mu.Lock()
		ch := g.writes.unblocked
		g.mu.Unlock()
		if ch == nil {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", qoserrors.ErrWritesBlocked, ctx.Err())
		}
	}
}

// tryBeginWrite registers an in-flight write unless writes are blocked.
func (g *Gate) tryBeginWrite() (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writes.unblocked != nil {
		return nil, false
	}
	g.writes.inflight++
	var once sync.Once
	return func() { once.Do(g.endWrite) }, true
}

// beginWrite registers an in-flight write once writes are not blocked.
func (g *Gate) beginWrite(ctx context.Context) (func(), error) {
	for {
		g.mu.Lock()
		ch := g.writes.unblocked
		if ch == nil {
			g.writes.inflight++
			g.mu.Unlock()
			var once sync.Once
			return func() { once.Do(g.endWrite) }, nil
		}
		g.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", qoserrors.ErrWritesBlocked, ctx.Err())
		}
	}
}

func (g *Gate) endWrite() {
	g.mu.Lock()
	defer g.mu.Unlock()

	ws := &g.writes
	ws.inflight--
	if ws.inflight == 0 && ws.drained != nil {
		close(ws.drained)
		ws.drained = nil
	}
}

// setBlockedGauge must be called with g.mu held.
func (g *Gate) setBlockedGauge(v float64) {
	if g.registry != nil {
		g.registry.WritesBlocked.WithLabelValues(g.name).Set(v)
	}
}
