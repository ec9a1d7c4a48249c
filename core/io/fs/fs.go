// Package fs provides the filesystem abstraction the page cache performs its
// I/O through. A FileSystem hands out StoreChannels, positioned read/write
// handles to a single backing file. Channels are cancellation-aware: a
// cancellation signal present when a blocking call starts tears the channel
// down, the same way interrupting a thread closes its file channel. The page
// swapper is responsible for recovering from that.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"
)

var (
	// ErrChannelClosed is returned for any operation attempted on a channel
	// that has been closed.
	ErrChannelClosed = errors.New("store channel is closed")

	// ErrAsyncClose is returned to the caller whose cancelled operation tore
	// the channel down. Distinguishable from ErrChannelClosed so callers can
	// tell "closed out from under me just now" from "was already closed".
	ErrAsyncClose = errors.New("store channel closed by aborted operation")
)

// StoreChannel is a positioned read/write handle to one open file.
type StoreChannel interface {
	// ReadAt reads up to len(p) bytes starting at byte offset off. It may
	// read fewer bytes than requested near end-of-file, in which case it
	// returns the count read, possibly together with io.EOF.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// WriteAll writes all of p at byte offset off, extending the file as
	// needed. Partial writes are retried until the buffer is drained.
	WriteAll(ctx context.Context, p []byte, off int64) error

	// Size reports the current size of the backing file in bytes.
	Size() (int64, error)

	// Sync flushes buffered writes to stable storage.
	Sync(ctx context.Context) error

	// IsOpen reports whether the channel is still usable.
	IsOpen() bool

	// Close releases the file handle. Idempotent.
	Close() error
}

// FileSystem creates and opens store channels.
type FileSystem interface {
	// Create opens a read-write channel to name, creating the file if it
	// does not exist.
	Create(name string) (StoreChannel, error)

	// Open opens a read-write channel to an existing file.
	Open(name string) (StoreChannel, error)

	// FileSize reports the size of the named file without opening a channel.
	FileSize(name string) (int64, error)
}

type fileSystem struct {
	backing afero.Fs
}

// New wraps an afero filesystem in the FileSystem interface.
func New(backing afero.Fs) FileSystem {
	return &fileSystem{backing: backing}
}

// NewOS returns a FileSystem backed by the operating system.
func NewOS() FileSystem {
	return New(afero.NewOsFs())
}

// NewEphemeral returns a fresh in-memory FileSystem. Every call returns an
// independent instance, so tests never share filesystem state.
func NewEphemeral() FileSystem {
	return New(afero.NewMemMapFs())
}

func (f *fileSystem) Create(name string) (StoreChannel, error) {
	file, err := f.backing.OpenFile(name, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &storeChannel{file: file}, nil
}

func (f *fileSystem) Open(name string) (StoreChannel, error) {
	file, err := f.backing.OpenFile(name, os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return &storeChannel{file: file}, nil
}

func (f *fileSystem) FileSize(name string) (int64, error) {
	fi, err := f.backing.Stat(name)
	if err != nil {
		return 0, fmt.Errorf("stating %s: %w", name, err)
	}
	return fi.Size(), nil
}

// storeChannel serializes its positioned operations with a single mutex, the
// way the disk layer has always done. Closing waits for any in-flight
// operation to drain.
type storeChannel struct {
	mu     sync.Mutex
	file   afero.File
	closed bool
}

// abortIfCancelled models close-by-interrupt: if the caller's cancellation
// signal is raised when a blocking call starts, the channel is torn down and
// the call fails with ErrAsyncClose. The signal itself is left untouched.
func (c *storeChannel) abortIfCancelled(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	_ = c.Close()
	return fmt.Errorf("%w: %v", ErrAsyncClose, ctx.Err())
}

func (c *storeChannel) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := c.abortIfCancelled(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrChannelClosed
	}
	n, err := c.file.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, normalizeClosed(err)
	}
	return n, err
}

func (c *storeChannel) WriteAll(ctx context.Context, p []byte, off int64) error {
	if err := c.abortIfCancelled(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	for len(p) > 0 {
		n, err := c.file.WriteAt(p, off)
		if err != nil {
			return normalizeClosed(err)
		}
		p = p[n:]
		off += int64(n)
	}
	return nil
}

func (c *storeChannel) Size() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrChannelClosed
	}
	fi, err := c.file.Stat()
	if err != nil {
		return 0, normalizeClosed(err)
	}
	return fi.Size(), nil
}

func (c *storeChannel) Sync(ctx context.Context) error {
	if err := c.abortIfCancelled(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if err := c.file.Sync(); err != nil {
		return normalizeClosed(err)
	}
	return nil
}

func (c *storeChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *storeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.file.Close(); err != nil {
		return fmt.Errorf("closing channel: %w", err)
	}
	return nil
}

// normalizeClosed maps the backing filesystem's use-after-close errors onto
// ErrChannelClosed so callers only ever see one closed-channel sentinel.
func normalizeClosed(err error) error {
	if errors.Is(err, afero.ErrFileClosed) || errors.Is(err, os.ErrClosed) {
		return ErrChannelClosed
	}
	return err
}
