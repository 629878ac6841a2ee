package pmm

import (
	"reflect"
	"testing"

	"rvos/kernel"
	"rvos/kernel/mm"
)

const (
	testWindowStart  = uintptr(0x80400000)
	testWindowEnd    = uintptr(0x80700000)
	testWindowFrames = int32((testWindowEnd - testWindowStart) >> mm.PageShift)
)

func TestCreatePagesSeeding(t *testing.T) {
	initTestWindow(t)

	if exp := int32(768); allocator.windowFrames != exp {
		t.Fatalf("expected the window to contain %d frames; got %d", exp, allocator.windowFrames)
	}

	if exp := mm.Frame(0x80400); allocator.windowBase != exp {
		t.Fatalf("expected window base frame to be %v; got %v", exp, allocator.windowBase)
	}

	// 768 frames seed as an order-9 block at index 0 plus an order-8 block
	// at index 512.
	exp := map[uint8][]int32{
		9: {0},
		8: {512},
	}
	if got := freeBlocks(); !reflect.DeepEqual(got, exp) {
		t.Fatalf("expected free blocks %v after seeding; got %v", exp, got)
	}

	for _, spec := range []struct {
		index    int32
		expOrder uint8
	}{
		{0, 9},
		{512, 8},
	} {
		head := &pages[spec.index]
		if !head.free || head.buddy || head.order != spec.expOrder {
			t.Errorf("expected index %d to head a free order-%d block; got %+v", spec.index, spec.expOrder, *head)
		}
	}

	// every non-head frame is tagged as block interior
	for _, index := range []int32{1, 100, 511, 513, 767} {
		if !pages[index].buddy {
			t.Errorf("expected index %d to be tagged as block interior", index)
		}
	}
}

func TestCreatePagesValidation(t *testing.T) {
	specs := []struct {
		descr      string
		start, end uintptr
		expErr     *kernel.Error
	}{
		{"unaligned start", testWindowStart + 123, testWindowEnd, errWindowUnaligned},
		{"unaligned end", testWindowStart, testWindowEnd + 123, errWindowUnaligned},
		{"empty window", testWindowStart, testWindowStart, errWindowUnaligned},
		{"inverted window", testWindowEnd, testWindowStart, errWindowUnaligned},
		{"window exceeds arena", testWindowStart, testWindowStart + uintptr(maxManagedFrames+1)<<mm.PageShift, errWindowTooLarge},
	}

	for _, spec := range specs {
		resetAllocator()
		if got := allocator.createPages(spec.start, spec.end); got != spec.expErr {
			t.Errorf("[%s] expected error %v; got %v", spec.descr, spec.expErr, got)
		}
	}

	resetAllocator()
	if err := allocator.createPages(testWindowStart, testWindowEnd); err != nil {
		t.Fatal(err)
	}
	if got := allocator.createPages(testWindowStart, testWindowEnd); got != errWindowRegistered {
		t.Errorf("[double registration] expected error %v; got %v", errWindowRegistered, got)
	}
}

func TestAllocOrderSplitsSmallestSufficientBlock(t *testing.T) {
	initTestWindow(t)

	// The order-8 block at index 512 is the smallest that can satisfy an
	// order-0 request; its head becomes the allocation and the split
	// leftovers are re-listed one per order below it.
	h, err := allocator.allocOrder(0)
	if err != nil {
		t.Fatal(err)
	}

	if exp := Handle(512); h != exp {
		t.Fatalf("expected allocation to return handle %d; got %d", exp, h)
	}

	exp := map[uint8][]int32{
		9: {0},
		7: {640},
		6: {576},
		5: {544},
		4: {528},
		3: {520},
		2: {516},
		1: {514},
		0: {513},
	}
	if got := freeBlocks(); !reflect.DeepEqual(got, exp) {
		t.Fatalf("expected free blocks %v after split; got %v", exp, got)
	}

	if head := &pages[512]; head.free || head.buddy || head.order != 0 {
		t.Fatalf("expected the allocated frame to be an order-0 block head; got %+v", *head)
	}
}

func TestAllocDeallocRoundTrip(t *testing.T) {
	for order := uint8(0); order <= MaxPageOrder; order++ {
		initTestWindow(t)
		before := freeBlocks()

		h, err := allocator.allocOrder(order)
		if err != nil {
			t.Fatalf("[order %d] alloc failed: %v", order, err)
		}

		allocator.dealloc(h)

		if got := freeBlocks(); !reflect.DeepEqual(got, before) {
			t.Errorf("[order %d] expected free blocks to return to %v after dealloc; got %v", order, before, got)
		}
	}
}

func TestDeallocCoalescesWithBuddy(t *testing.T) {
	for _, freeInReverse := range []bool{false, true} {
		initTestWindow(t)
		before := freeBlocks()

		// Two order-3 allocations carve buddy blocks out of the order-8
		// block at index 512.
		h1, err := allocator.allocOrder(3)
		if err != nil {
			t.Fatal(err)
		}
		h2, err := allocator.allocOrder(3)
		if err != nil {
			t.Fatal(err)
		}

		if exp := Handle(512); h1 != exp {
			t.Fatalf("expected first allocation to return handle %d; got %d", exp, h1)
		}
		if exp := Handle(520); h2 != exp {
			t.Fatalf("expected second allocation to return handle %d; got %d", exp, h2)
		}

		if freeInReverse {
			h1, h2 = h2, h1
		}

		allocator.dealloc(h1)
		allocator.dealloc(h2)

		if got := freeBlocks(); !reflect.DeepEqual(got, before) {
			t.Errorf("[reverse=%t] expected buddies to coalesce back to %v; got %v", freeInReverse, before, got)
		}
	}
}

func TestExhaustionAndFullRecovery(t *testing.T) {
	initTestWindow(t)

	seen := make(map[Handle]bool)
	handles := make([]Handle, 0, testWindowFrames)
	for i := int32(0); i < testWindowFrames; i++ {
		h, err := allocator.allocOrder(0)
		if err != nil {
			t.Fatalf("[alloc %d] unexpected error: %v", i, err)
		}

		if h < 0 || int32(h) >= testWindowFrames {
			t.Fatalf("[alloc %d] handle %d outside the window", i, h)
		}
		if seen[h] {
			t.Fatalf("[alloc %d] handle %d returned twice", i, h)
		}

		seen[h] = true
		handles = append(handles, h)
	}

	if _, err := allocator.allocOrder(0); err != ErrOutOfMemory {
		t.Fatalf("expected allocation from an exhausted window to return ErrOutOfMemory; got %v", err)
	}

	for _, h := range handles {
		allocator.dealloc(h)
	}

	// With every frame returned, the maximal blocks must be allocatable
	// again in one piece.
	h9, err := allocator.allocOrder(9)
	if err != nil {
		t.Fatalf("expected an order-9 allocation after full recovery; got %v", err)
	}
	if exp := Handle(0); h9 != exp {
		t.Fatalf("expected the order-9 block to start at handle %d; got %d", exp, h9)
	}

	h8, err := allocator.allocOrder(8)
	if err != nil {
		t.Fatalf("expected an order-8 allocation after full recovery; got %v", err)
	}
	if exp := Handle(512); h8 != exp {
		t.Fatalf("expected the order-8 block to start at handle %d; got %d", exp, h8)
	}
}

func TestAllocOrderErrors(t *testing.T) {
	initTestWindow(t)

	if _, err := allocator.allocOrder(MaxPageOrder + 1); err != ErrOutOfMemory {
		t.Fatalf("expected an over-sized order to return ErrOutOfMemory; got %v", err)
	}

	// Orders without large enough blocks fail even with free frames around
	if _, err := allocator.allocOrder(9); err != nil {
		t.Fatal(err)
	}
	if _, err := allocator.allocOrder(9); err != ErrOutOfMemory {
		t.Fatalf("expected a second order-9 allocation to return ErrOutOfMemory; got %v", err)
	}
}

func TestDeallocPanics(t *testing.T) {
	t.Run("double free", func(t *testing.T) {
		initTestWindow(t)

		h, err := allocator.allocOrder(2)
		if err != nil {
			t.Fatal(err)
		}

		allocator.dealloc(h)
		expectPanic(t, errBadDealloc, func() { allocator.dealloc(h) })
	})

	t.Run("free of block interior", func(t *testing.T) {
		initTestWindow(t)

		h, err := allocator.allocOrder(2)
		if err != nil {
			t.Fatal(err)
		}

		expectPanic(t, errBadDealloc, func() { allocator.dealloc(h + 1) })
	})

	t.Run("free with live references", func(t *testing.T) {
		initTestWindow(t)

		h, err := allocator.allocOrder(0)
		if err != nil {
			t.Fatal(err)
		}

		h.IncRef()
		expectPanic(t, errFreeWithRefs, func() { allocator.dealloc(h) })

		h.DecRef()
		allocator.dealloc(h)
	})
}

func TestInitRegistersFrameAllocator(t *testing.T) {
	defer mm.SetFrameAllocator(nil)
	resetAllocator()

	if err := Init(testWindowStart, testWindowEnd); err != nil {
		t.Fatal(err)
	}

	frame, err := mm.AllocFrame()
	if err != nil {
		t.Fatal(err)
	}

	// single-frame requests split the smallest block: the order-8 seed
	if exp := mm.Frame(0x80400 + 512); frame != exp {
		t.Fatalf("expected the first kernel frame to be %v; got %v", exp, frame)
	}
}

func TestAllocKernelFrameOutOfMemory(t *testing.T) {
	initTestWindow(t)

	for i := int32(0); i < testWindowFrames; i++ {
		if _, err := allocator.allocOrder(0); err != nil {
			t.Fatal(err)
		}
	}

	frame, err := allocKernelFrame()
	if err != ErrOutOfMemory {
		t.Fatalf("expected allocKernelFrame to return ErrOutOfMemory; got %v", err)
	}
	if frame.Valid() {
		t.Fatalf("expected allocKernelFrame to return an invalid frame; got %v", frame)
	}
}

// resetAllocator returns the package-level allocator state to its pristine
// pre-Init condition so each test can register its own window.
func resetAllocator() {
	allocator = buddyAllocator{}
	for i := range pages {
		pages[i] = pageInfo{link: listLink{prev: nilIndex, next: nilIndex}}
	}
}

func initTestWindow(t *testing.T) {
	t.Helper()
	resetAllocator()

	if err := allocator.createPages(testWindowStart, testWindowEnd); err != nil {
		t.Fatal(err)
	}
}

// freeBlocks collects the contents of every free list as a map from order to
// the window-relative indices threaded on it.
func freeBlocks() map[uint8][]int32 {
	out := make(map[uint8][]int32)
	for order := uint8(0); order <= MaxPageOrder; order++ {
		for index := allocator.freeLists[order].head; index != nilIndex; index = pages[index].link.next {
			out[order] = append(out[order], index)
		}
	}

	return out
}

func expectPanic(t *testing.T, expErr *kernel.Error, fn func()) {
	t.Helper()
	defer func() {
		if got := recover(); got != expErr {
			t.Fatalf("expected a panic with %v; got %v", expErr, got)
		}
	}()

	fn()
}
