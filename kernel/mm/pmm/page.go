// Package pmm implements the physical page-frame allocator: a buddy system
// operating on a statically allocated arena of per-frame metadata records.
package pmm

import (
	"sync/atomic"

	"rvos/kernel"
	"rvos/kernel/mm"
)

const (
	// MaxPageOrder is the largest supported block order. A block of order N
	// covers 2^N contiguous page frames; order 0 is a single frame.
	MaxPageOrder = 9

	// maxManagedFrames is the capacity of the metadata arena and therefore
	// the largest physical window this allocator can be asked to manage.
	maxManagedFrames = 1024
)

var (
	errHandleOutOfWindow = &kernel.Error{Module: "pmm", Message: "page handle refers to a frame outside the managed physical window"}
	errFrameOutOfWindow  = &kernel.Error{Module: "pmm", Message: "frame lies outside the managed physical window"}
)

// pageInfo is the metadata record tracked for every physical page frame in
// the managed window. Records are statically allocated and never freed;
// frames moving between the free and allocated states merely re-tag them.
type pageInfo struct {
	// link threads this record into one of the per-order free lists while
	// the frame is the head of a free block.
	link listLink

	// order is the log2 size (in frames) of the block this frame heads. It
	// is only meaningful while the frame is a block head.
	order uint8

	// free is set while the block headed by this frame is on a free list.
	free bool

	// buddy marks a frame that lies inside a block without being its head.
	buddy bool

	// refcount is the frame's reference count, manipulated atomically. It
	// is zero for frames sitting on a free list. The allocator itself does
	// not adjust it on alloc/dealloc; ownership schemes built on top of the
	// allocator do so explicitly.
	refcount uint64
}

// pages is the metadata arena. It is addressed by frame index relative to the
// managed window base; a Handle is exactly such an index.
var pages [maxManagedFrames]pageInfo

// Handle is an opaque capability token referring to one managed page frame.
// It does not own the frame: holding a Handle after the block it belongs to
// has been deallocated is a use-after-free on the caller's part. The zero
// handle is valid and refers to the first frame of the window.
type Handle int32

// InvalidHandle is returned by allocations that fail to reserve a block.
const InvalidHandle = Handle(-1)

// Valid returns true if this is a valid handle.
func (h Handle) Valid() bool {
	return h != InvalidHandle
}

// info returns the metadata record backing this handle. Out-of-window
// handles indicate caller logic errors and panic rather than wrap around.
func (h Handle) info() *pageInfo {
	if h < 0 || int32(h) >= allocator.windowFrames {
		panic(errHandleOutOfWindow)
	}

	return &pages[h]
}

// Frame returns the absolute physical frame number this handle refers to.
func (h Handle) Frame() mm.Frame {
	h.info() // bounds check
	return allocator.windowBase + mm.Frame(h)
}

// Order returns the order of the block this handle heads.
func (h Handle) Order() uint8 {
	return h.info().order
}

// RefCount atomically loads the frame's reference count.
func (h Handle) RefCount() uint64 {
	return atomic.LoadUint64(&h.info().refcount)
}

// IncRef atomically increments the frame's reference count and returns the
// new value.
func (h Handle) IncRef() uint64 {
	return atomic.AddUint64(&h.info().refcount, 1)
}

// DecRef atomically decrements the frame's reference count and returns the
// new value.
func (h Handle) DecRef() uint64 {
	return atomic.AddUint64(&h.info().refcount, ^uint64(0))
}

// HandleForFrame translates an absolute physical frame number into a handle
// for this allocator instance. Frames outside the registered window cannot be
// represented and panic; a silent wraparound here would corrupt the arena.
func HandleForFrame(frame mm.Frame) Handle {
	if frame < allocator.windowBase {
		panic(errFrameOutOfWindow)
	}

	index := int32(frame - allocator.windowBase)
	if index >= allocator.windowFrames {
		panic(errFrameOutOfWindow)
	}

	return Handle(index)
}
