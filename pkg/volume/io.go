package volume

import (
	"context"
	"io"
)

type readerAt struct {
	ctx  context.Context
	gate *Gate
	r    io.ReaderAt
}

// NewReaderAt returns an io.ReaderAt that admits every read through g
// before passing it to r. ctx bounds the wait for admission.
func NewReaderAt(ctx context.Context, g *Gate, r io.ReaderAt) io.ReaderAt {
	return &readerAt{ctx: ctx, gate: g, r: r}
}

// ReadAt charges len(p) bytes before reading, so a short read still
// consumes the full request.
func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	done, err := r.gate.Admit(r.ctx, Read, len(p))
	if err != nil {
		return 0, err
	}
	defer done()
	return r.r.ReadAt(p, off)
}

type writerAt struct {
	ctx  context.Context
	gate *Gate
	w    io.WriterAt
}

// NewWriterAt returns an io.WriterAt that admits every write through g
// before passing it to w. Writes wait while g has writes blocked.
func NewWriterAt(ctx context.Context, g *Gate, w io.WriterAt) io.WriterAt {
	return &writerAt{ctx: ctx, gate: g, w: w}
}

func (w *writerAt) WriteAt(p []byte, off int64) (int, error) {
	done, err := w.gate.Admit(w.ctx, Write, len(p))
	if err != nil {
		return 0, err
	}
	defer done()
	return w.w.WriteAt(p, off)
}
