package pagecache

import (
	"encoding/binary"
	"fmt"
)

// --- Page ---

// Page is an in-memory copy of one fixed-size on-disk page slot. The buffer
// length is fixed at construction and never changes. All multi-byte accessors
// use big-endian byte order, matching the on-disk layout.
//
// A Page carries its own exclusive write lock. Callers must hold the lock
// across any swapper call that touches the page, and release it with the
// stamp they acquired it with, on error paths included. The Page does not
// check lock ownership on the accessors themselves.
type Page struct {
	data []byte
	lock StampedLock
}

// NewPage allocates a page buffer of cachePageSize bytes.
func NewPage(cachePageSize int) *Page {
	if cachePageSize <= 0 {
		panic(fmt.Sprintf("invalid cache page size %d", cachePageSize))
	}
	return &Page{data: make([]byte, cachePageSize)}
}

// Size returns the fixed length of the page buffer.
func (p *Page) Size() int {
	return len(p.data)
}

// Data exposes the raw page buffer. The swapper borrows it for the duration
// of one I/O call; it never retains or resizes it.
func (p *Page) Data() []byte {
	return p.data
}

func (p *Page) checkBounds(offset, width int) {
	if offset < 0 || offset+width > len(p.data) {
		panic(fmt.Sprintf("page access out of bounds: offset %d, width %d, page size %d",
			offset, width, len(p.data)))
	}
}

// GetLong reads the big-endian int64 at the given byte offset.
func (p *Page) GetLong(offset int) int64 {
	p.checkBounds(offset, 8)
	return int64(binary.BigEndian.Uint64(p.data[offset:]))
}

// PutLong writes value as a big-endian int64 at the given byte offset.
func (p *Page) PutLong(value int64, offset int) {
	p.checkBounds(offset, 8)
	binary.BigEndian.PutUint64(p.data[offset:], uint64(value))
}

// GetInt reads the big-endian int32 at the given byte offset.
func (p *Page) GetInt(offset int) int32 {
	p.checkBounds(offset, 4)
	return int32(binary.BigEndian.Uint32(p.data[offset:]))
}

// PutInt writes value as a big-endian int32 at the given byte offset.
func (p *Page) PutInt(value int32, offset int) {
	p.checkBounds(offset, 4)
	binary.BigEndian.PutUint32(p.data[offset:], uint32(value))
}

// GetBytes copies len(dst) bytes out of the page starting at offset.
func (p *Page) GetBytes(dst []byte, offset int) {
	p.checkBounds(offset, len(dst))
	copy(dst, p.data[offset:])
}

// PutBytes copies src into the page starting at offset.
func (p *Page) PutBytes(src []byte, offset int) {
	p.checkBounds(offset, len(src))
	copy(p.data[offset:], src)
}

// WriteLock acquires the page's exclusive write lock and returns the stamp
// needed to release it. A second locker blocks until the first releases.
func (p *Page) WriteLock() uint64 {
	return p.lock.Lock()
}

// WriteUnlock releases the write lock. The stamp must be the one returned by
// the matching WriteLock call; a mismatch panics.
func (p *Page) WriteUnlock(stamp uint64) {
	p.lock.Unlock(stamp)
}
