package testutil

import (
	"errors"
	"sync"
)

// MockDevice is an in-memory block device implementing io.ReaderAt and
// io.WriterAt with read/write counting and injectable write failures.
type MockDevice struct {
	mu         sync.Mutex
	data       []byte
	reads      int
	writes     int
	errorOnNth int
	err        error
	blockWrite chan struct{}
}

// NewMockDevice creates a zero-filled device of the given size.
func NewMockDevice(size int) *MockDevice {
	return &MockDevice{data: make([]byte, size)}
}

// ReadAt implements io.ReaderAt.
func (d *MockDevice) ReadAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reads++
	if off >= int64(len(d.data)) {
		return 0, errors.New("read past end of device")
	}
	n := copy(p, d.data[off:])
	return n, nil
}

// WriteAt implements io.WriterAt. If HoldWrites was called, writes block
// until ReleaseWrites.
func (d *MockDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	gate := d.blockWrite
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.writes++
	if d.err != nil {
		return 0, d.err
	}
	if d.errorOnNth > 0 && d.writes == d.errorOnNth {
		return 0, errors.New("simulated error")
	}
	if off+int64(len(p)) > int64(len(d.data)) {
		return 0, errors.New("write past end of device")
	}
	return copy(d.data[off:], p), nil
}

// Reads returns the number of ReadAt calls.
func (d *MockDevice) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Writes returns the number of completed WriteAt calls.
func (d *MockDevice) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// SetErrorOnNth makes the nth write fail.
func (d *MockDevice) SetErrorOnNth(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errorOnNth = n
}

// SetAlwaysError makes every write fail with err.
func (d *MockDevice) SetAlwaysError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// HoldWrites makes subsequent writes block until ReleaseWrites is called.
func (d *MockDevice) HoldWrites() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.blockWrite == nil {
		d.blockWrite = make(chan struct{})
	}
}

// ReleaseWrites unblocks writes held by HoldWrites.
func (d *MockDevice) ReleaseWrites() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.blockWrite != nil {
		close(d.blockWrite)
		d.blockWrite = nil
	}
}
