package pmm

import (
	"sync/atomic"

	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/mm"
	"rvos/kernel/sync"
)

var (
	// ErrOutOfMemory is returned by AllocOrder when no free block of
	// sufficient order exists. This is the only recoverable allocator
	// failure; every other misuse indicates a logic error and panics.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	errWindowRegistered = &kernel.Error{Module: "pmm", Message: "physical window already registered"}
	errWindowUnaligned  = &kernel.Error{Module: "pmm", Message: "physical window bounds must be page-aligned"}
	errWindowTooLarge   = &kernel.Error{Module: "pmm", Message: "physical window exceeds metadata arena capacity"}
	errBadDealloc       = &kernel.Error{Module: "pmm", Message: "dealloc of a frame that is not an allocated block head"}
	errFreeWithRefs     = &kernel.Error{Module: "pmm", Message: "dealloc of a frame with a non-zero refcount"}
)

// buddyAllocator manages the metadata arena as power-of-two blocks of
// contiguous frames threaded into per-order free lists. All buddy arithmetic
// is carried out in window-relative frame indices, which keeps a block and
// its buddy symmetric regardless of the absolute alignment of the window
// base.
type buddyAllocator struct {
	freeLists    [MaxPageOrder + 1]freeList
	windowBase   mm.Frame
	windowFrames int32
	registered   bool
}

var (
	// allocLock serializes every mutation of the allocator state. The
	// allocator never calls back into its caller while holding it.
	allocLock sync.Spinlock

	// allocator is the process-wide buddy allocator instance.
	allocator buddyAllocator
)

// Init registers the contiguous physical window [start, end) that this
// allocator manages and seeds it with maximal-order free blocks. It must be
// called exactly once, before any allocation. On success it registers an
// order-0 kernel frame allocator with the mm package.
func Init(start, end uintptr) *kernel.Error {
	allocLock.Acquire()
	defer allocLock.Release()

	if err := allocator.createPages(start, end); err != nil {
		return err
	}

	mm.SetFrameAllocator(allocKernelFrame)

	kfmt.Printf("[pmm] managing physical window 0x%x - 0x%x (%d frames)\n",
		start, end, uint64(allocator.windowFrames))
	return nil
}

// AllocOrder reserves a free block of exactly 2^order contiguous frames and
// returns a handle to its head. If no block of the requested order is free,
// the smallest larger block is split down to size and the leftover halves
// are re-listed at their own orders. ErrOutOfMemory is returned when no
// sufficiently large block exists.
//
// The returned block is off all free lists; its refcount is left untouched
// and remains the caller's responsibility.
func AllocOrder(order uint8) (Handle, *kernel.Error) {
	allocLock.Acquire()
	defer allocLock.Release()

	return allocator.allocOrder(order)
}

// Dealloc returns the block headed by the supplied handle to the free lists,
// coalescing it with its buddy for as long as the buddy is itself a free
// block head of equal order. Deallocating a handle that does not head an
// allocated block (including double frees) is a precondition violation and
// panics.
func Dealloc(h Handle) {
	allocLock.Acquire()
	defer allocLock.Release()

	allocator.dealloc(h)
}

// HasManagementOver returns true iff the handle's frame lies inside the
// registered physical window. Higher layers use it to distinguish frames
// owned by this allocator from frames mapped for other purposes (e.g. MMIO).
// The window bounds are immutable after Init so no lock is required.
func HasManagementOver(h Handle) bool {
	return h >= 0 && int32(h) < allocator.windowFrames
}

// allocKernelFrame adapts the buddy allocator to the mm package's
// single-frame allocator hook.
func allocKernelFrame() (mm.Frame, *kernel.Error) {
	h, err := AllocOrder(0)
	if err != nil {
		return mm.InvalidFrame, err
	}

	return h.Frame(), nil
}

// createPages seeds the window with free blocks: each block is the largest
// order that is index-aligned and still fits in the remaining tail, so no
// frame of the window is left unmanaged.
func (a *buddyAllocator) createPages(start, end uintptr) *kernel.Error {
	if a.registered {
		return errWindowRegistered
	}

	if start&(mm.PageSize-1) != 0 || end&(mm.PageSize-1) != 0 || end <= start {
		return errWindowUnaligned
	}

	frameCount := int32((end - start) >> mm.PageShift)
	if frameCount > maxManagedFrames {
		return errWindowTooLarge
	}

	a.windowBase = mm.FrameFromAddress(start)
	a.windowFrames = frameCount
	a.registered = true

	for order := range a.freeLists {
		a.freeLists[order].head = nilIndex
	}

	for i := int32(0); i < frameCount; i++ {
		pages[i] = pageInfo{link: listLink{prev: nilIndex, next: nilIndex}}
	}

	for index := int32(0); index < frameCount; {
		order := seedOrder(index, frameCount-index)
		blockFrames := int32(1) << order

		head := &pages[index]
		head.order = order
		head.free = true
		for i := index + 1; i < index+blockFrames; i++ {
			pages[i].buddy = true
		}

		a.freeLists[order].push(index)
		index += blockFrames
	}

	return nil
}

// seedOrder returns the largest order usable for a free block starting at
// the given window-relative index with the given number of frames remaining.
func seedOrder(index, remaining int32) uint8 {
	order := uint8(MaxPageOrder)
	for order > 0 && (index&(int32(1)<<order-1) != 0 || int32(1)<<order > remaining) {
		order--
	}

	return order
}

func (a *buddyAllocator) allocOrder(order uint8) (Handle, *kernel.Error) {
	if order > MaxPageOrder {
		return InvalidHandle, ErrOutOfMemory
	}

	// Prefer the smallest free block that can satisfy the request.
	avail := order
	for a.freeLists[avail].empty() {
		if avail++; avail > MaxPageOrder {
			return InvalidHandle, ErrOutOfMemory
		}
	}

	index := a.freeLists[avail].pop()
	head := &pages[index]
	head.free = false

	// Split the block down to the requested order, re-listing the upper
	// half at each step.
	for cur := avail; cur > order; cur-- {
		half := cur - 1
		buddyIndex := index + int32(1)<<half

		buddyHead := &pages[buddyIndex]
		buddyHead.buddy = false
		buddyHead.order = half
		buddyHead.free = true
		a.freeLists[half].push(buddyIndex)
	}

	head.order = order
	return Handle(index), nil
}

func (a *buddyAllocator) dealloc(h Handle) {
	index := int32(h)
	head := h.info()
	if head.free || head.buddy {
		panic(errBadDealloc)
	}

	if atomic.LoadUint64(&head.refcount) != 0 {
		panic(errFreeWithRefs)
	}

	// Coalesce with the buddy block (index XOR at the current order) while
	// it is a free head of equal order that lies fully inside the window.
	order := head.order
	for order < MaxPageOrder {
		buddyIndex := index ^ int32(1)<<order
		if buddyIndex+int32(1)<<order > a.windowFrames {
			break
		}

		buddyHead := &pages[buddyIndex]
		if !buddyHead.free || buddyHead.buddy || buddyHead.order != order {
			break
		}

		a.freeLists[order].remove(buddyIndex)
		buddyHead.free = false

		// The lower half heads the merged block; the upper half becomes
		// interior.
		if buddyIndex < index {
			pages[index].buddy = true
			index = buddyIndex
		} else {
			buddyHead.buddy = true
		}
		order++
	}

	merged := &pages[index]
	merged.order = order
	merged.buddy = false
	merged.free = true
	a.freeLists[order].push(index)
}
