package pagecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/janejin/neo4j/core/io/fs"
	internaltelemetry "github.com/janejin/neo4j/internal/telemetry"
)

// SingleFilePageSwapper swaps pages against exactly one backing file. It owns
// one open store channel and the decision of when to replace it: a channel
// closed by anything other than an explicit Close call is transparently
// reopened and the interrupted operation retried, invisibly to the caller.
// Explicit Close is terminal; nothing resurrects the channel afterwards.
type SingleFilePageSwapper struct {
	fs         fs.FileSystem
	path       string
	pageSize   int
	onEviction PageEvictionCallback
	logger     *zap.Logger
	metrics    *internaltelemetry.PageSwapMetrics

	// mu guards channel replacement and the closed flag. It is never held
	// across page I/O, so operations on distinct page ids do not serialize
	// here. Only one reopen happens per closure event; late arrivals observe
	// the fresh channel.
	mu      sync.Mutex
	channel fs.StoreChannel
	closed  bool
}

var _ PageSwapper = (*SingleFilePageSwapper)(nil)

func newSingleFilePageSwapper(
	filesystem fs.FileSystem,
	path string,
	pageSize int,
	onEviction PageEvictionCallback,
	logger *zap.Logger,
	metrics *internaltelemetry.PageSwapMetrics,
) (*SingleFilePageSwapper, error) {
	channel, err := filesystem.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	return &SingleFilePageSwapper{
		fs:         filesystem,
		path:       path,
		pageSize:   pageSize,
		onEviction: onEviction,
		logger:     logger,
		metrics:    metrics,
		channel:    channel,
	}, nil
}

// current returns the channel to perform the next operation on, or
// fs.ErrChannelClosed if the swapper has been explicitly closed.
func (s *SingleFilePageSwapper) current() (fs.StoreChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fs.ErrChannelClosed
	}
	return s.channel, nil
}

// position computes the byte offset of a page and validates the caller's
// buffer against the swapper's page size. Violations are caller bugs.
func (s *SingleFilePageSwapper) position(pageID PageID, page *Page) int64 {
	if pageID < 0 {
		panic(fmt.Sprintf("negative page id %d", pageID))
	}
	if page.Size() != s.pageSize {
		panic(fmt.Sprintf("page buffer size %d does not match swapper page size %d",
			page.Size(), s.pageSize))
	}
	return int64(pageID) * int64(s.pageSize)
}

// Write performs a positioned write of the full page buffer at the page's
// offset. The caller must hold the page's write lock.
func (s *SingleFilePageSwapper) Write(ctx context.Context, pageID PageID, page *Page) error {
	offset := s.position(pageID, page)
	for {
		channel, err := s.current()
		if err != nil {
			return err
		}
		err = channel.WriteAll(ctx, page.Data(), offset)
		if err == nil {
			s.metrics.RecordSwapOut(ctx, page.Size())
			return nil
		}
		if !isChannelClosure(err) {
			return fmt.Errorf("writing page %d of %s: %w", pageID, s.path, err)
		}
		if err := s.tryReopen(); err != nil {
			return err
		}
		// The retry must run to completion. The caller's cancellation
		// signal stays observable on its own context.
		ctx = context.Background()
	}
}

// Read performs a positioned read of the page's slot into the page buffer.
// The caller must hold the page's write lock. Pages beyond the end of the
// file, and the tail of a short final page, leave the buffer untouched.
func (s *SingleFilePageSwapper) Read(ctx context.Context, pageID PageID, page *Page) error {
	offset := s.position(pageID, page)
	for {
		channel, err := s.current()
		if err != nil {
			return err
		}
		err = readInto(ctx, channel, offset, page)
		if err == nil {
			s.metrics.RecordSwapIn(ctx, page.Size())
			return nil
		}
		if !isChannelClosure(err) {
			return fmt.Errorf("reading page %d of %s: %w", pageID, s.path, err)
		}
		if err := s.tryReopen(); err != nil {
			return err
		}
		ctx = context.Background()
	}
}

func readInto(ctx context.Context, channel fs.StoreChannel, offset int64, page *Page) error {
	size, err := channel.Size()
	if err != nil {
		return err
	}
	if offset >= size {
		// Never-written page slot. The buffer keeps whatever it held.
		return nil
	}
	_, err = channel.ReadAt(ctx, page.Data(), offset)
	if err == io.EOF {
		// Short final page; the unread tail keeps its previous contents.
		return nil
	}
	return err
}

// Force flushes buffered writes on whichever channel is current at the time
// of the call, including one installed by a transparent reopen.
func (s *SingleFilePageSwapper) Force(ctx context.Context) error {
	for {
		channel, err := s.current()
		if err != nil {
			return err
		}
		err = channel.Sync(ctx)
		if err == nil {
			s.metrics.RecordForce(ctx)
			return nil
		}
		if !isChannelClosure(err) {
			return fmt.Errorf("forcing %s: %w", s.path, err)
		}
		if err := s.tryReopen(); err != nil {
			return err
		}
		ctx = context.Background()
	}
}

// LastPageID reports the highest addressable page id given the current file
// size, or -1 for an empty file. A trailing partial page counts as a page.
func (s *SingleFilePageSwapper) LastPageID() (PageID, error) {
	channel, err := s.current()
	if err != nil {
		return -1, err
	}
	size, err := channel.Size()
	if err != nil {
		return -1, err
	}
	fullPages := size / int64(s.pageSize)
	if size%int64(s.pageSize) == 0 {
		return PageID(fullPages - 1), nil
	}
	return PageID(fullPages), nil
}

// Evicted notifies the eviction callback that the binding between pageID and
// page is being dropped.
func (s *SingleFilePageSwapper) Evicted(pageID PageID, page *Page) {
	if s.onEviction == nil {
		return
	}
	s.onEviction(pageID, page)
	s.metrics.RecordEviction(context.Background())
}

// FilePath returns the path of the backing file.
func (s *SingleFilePageSwapper) FilePath() string {
	return s.path
}

// Close releases the channel and makes the swapper permanently unusable.
// Idempotent. A reopen that races with Close can never resurrect the
// channel: both run under the same lock and reopen checks the closed flag.
func (s *SingleFilePageSwapper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.channel.Close()
}

// tryReopen replaces a channel that was closed out from under an operation,
// typically because a cancelled call tore the handle down mid-I/O. Returns
// fs.ErrChannelClosed without reopening if the swapper was explicitly
// closed.
func (s *SingleFilePageSwapper) tryReopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fs.ErrChannelClosed
	}
	if s.channel.IsOpen() {
		// Another caller already reopened; use the fresh channel.
		return nil
	}
	channel, err := s.fs.Open(s.path)
	if err != nil {
		return fmt.Errorf("reopening channel to %s: %w", s.path, err)
	}
	s.channel = channel
	s.logger.Warn("reopened store channel after asynchronous close",
		zap.String("file", s.path))
	s.metrics.RecordReopen(context.Background())
	return nil
}

func isChannelClosure(err error) bool {
	return errors.Is(err, fs.ErrAsyncClose) || errors.Is(err, fs.ErrChannelClosed)
}

// --- Factory ---

// SingleFilePageSwapperFactory creates SingleFilePageSwappers against one
// filesystem. It is stateless beyond its bindings; swappers for different
// files share nothing mutable.
type SingleFilePageSwapperFactory struct {
	fs      fs.FileSystem
	logger  *zap.Logger
	metrics *internaltelemetry.PageSwapMetrics
}

var _ PageSwapperFactory = (*SingleFilePageSwapperFactory)(nil)

// NewSingleFilePageSwapperFactory binds a factory to a filesystem. The
// logger may be nil; metrics may be nil to run uninstrumented.
func NewSingleFilePageSwapperFactory(
	filesystem fs.FileSystem,
	logger *zap.Logger,
	metrics *internaltelemetry.PageSwapMetrics,
) *SingleFilePageSwapperFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SingleFilePageSwapperFactory{
		fs:      filesystem,
		logger:  logger,
		metrics: metrics,
	}
}

// CreatePageSwapper opens a channel to the given pre-existing file and
// returns a swapper bound to it. The swapper holds the channel open until it
// is closed.
func (f *SingleFilePageSwapperFactory) CreatePageSwapper(
	path string,
	pageSize int,
	onEviction PageEvictionCallback,
) (PageSwapper, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("invalid page size %d for %s", pageSize, path)
	}
	swapper, err := newSingleFilePageSwapper(f.fs, path, pageSize, onEviction, f.logger, f.metrics)
	if err != nil {
		return nil, fmt.Errorf("creating page swapper for %s: %w", path, err)
	}
	f.logger.Debug("created page swapper",
		zap.String("file", path),
		zap.Int("pageSize", pageSize))
	return swapper, nil
}
