// Package pagecache implements the page-swapping layer of the storage
// engine: moving fixed-size pages between in-memory buffers and per-file
// backing storage, with transparent recovery when a channel is closed out
// from under an operation and terminal semantics once a swapper is closed
// on purpose.
package pagecache

import "context"

// PageID identifies one page slot within a swapper's backing file. Page N
// lives at byte offset N * pageSize. A negative value means "no page"; in
// particular LastPageID reports -1 for an empty file.
type PageID int64

// PageEvictionCallback is supplied by the cache when a swapper is created
// and invoked when the swapper drops a page binding. It is a pure
// notification sink: it carries no ownership and must not block
// indefinitely. A nil callback disables notification.
type PageEvictionCallback func(pageID PageID, page *Page)

// PageSwapper moves one file's pages between disk and cache buffers. The
// caller must hold the Page's write lock across Read and Write calls; the
// swapper only guards its own channel against concurrent replacement.
//
// Read, Write and Force observe context cancellation at entry. A signal that
// aborts an operation may close the channel as a side effect; the swapper
// recovers by reopening and retrying, and the caller sees no error. Once
// Close has been called, nothing is ever reopened and every operation fails
// with fs.ErrChannelClosed.
type PageSwapper interface {
	// Read fills the page buffer from the page's slot in the backing file.
	// Reading past the end of the file, or a short final page, leaves the
	// unread remainder of the buffer untouched and is not an error.
	Read(ctx context.Context, pageID PageID, page *Page) error

	// Write stores the full page buffer at the page's slot in the backing
	// file, extending the file as needed.
	Write(ctx context.Context, pageID PageID, page *Page) error

	// Force flushes buffered writes on the current channel, including one
	// installed by a transparent reopen, to stable storage.
	Force(ctx context.Context) error

	// LastPageID reports the highest page id addressable in the file, or -1
	// if the file is empty.
	LastPageID() (PageID, error)

	// Evicted notifies the eviction callback that the binding between the
	// given page id and page is being dropped.
	Evicted(pageID PageID, page *Page)

	// FilePath returns the path of the backing file.
	FilePath() string

	// Close releases the channel and makes the swapper permanently
	// unusable. Idempotent.
	Close() error
}

// PageSwapperFactory creates page swappers bound to individual files.
// Swappers created for different files share no mutable state.
type PageSwapperFactory interface {
	CreatePageSwapper(path string, pageSize int, onEviction PageEvictionCallback) (PageSwapper, error)
}
