// Package vmm implements the architecture-specific virtual memory layer:
// the page table entry codec for the Sv39/Sv48 paging modes, a range mapper
// that lazily builds intermediate table levels, and the construction and
// activation of the kernel address space.
package vmm

import (
	"unsafe"

	"rvos/kernel"
	"rvos/kernel/mm"
)

var (
	// tablePtrFn returns a pointer to the page table that starts at the
	// supplied physical address. The boot CPU accesses tables through an
	// identity mapping (or with translation still off) so the physical
	// address is directly dereferencable. Tests override this to substitute
	// tables allocated on the Go heap.
	tablePtrFn = func(tableAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(tableAddr)
	}

	errMissingLevels = &kernel.Error{Module: "vmm", Message: "a walk requires at least one paging level"}
	errMapOverLeaf   = &kernel.Error{Module: "vmm", Message: "encountered a leaf entry while descending to a deeper level"}
)

// PageTable is a multi-level translation table rooted at a physical frame.
type PageTable struct {
	root mm.Frame
	mode *PagingMode
}

// NewPageTable allocates a zeroed root table for the supplied paging mode
// using the registered frame allocator. Failure to allocate the root is
// returned to the caller; during boot it is fatal.
func NewPageTable(mode *PagingMode) (PageTable, *kernel.Error) {
	if err := mode.check(); err != nil {
		return PageTable{}, err
	}

	rootFrame, err := mm.AllocFrame()
	if err != nil {
		return PageTable{}, err
	}

	zeroTable(rootFrame, mode.levels[0])
	return PageTable{root: rootFrame, mode: mode}, nil
}

// Root returns the physical frame holding the root table.
func (pt PageTable) Root() mm.Frame {
	return pt.root
}

// Mode returns the paging mode this table translates for.
func (pt PageTable) Mode() *PagingMode {
	return pt.mode
}

// rangeVisitor receives one leaf slot per leaf-granularity unit of a walked
// range, along with the unit's virtual address.
type rangeVisitor func(virtAddr uintptr, pte *pageTableEntry)

// walkRange walks the virtual range [virtStart, virtStart+size) descending
// through the supplied levels, which must be a prefix of the table's mode
// levels; stopping short of the full list yields larger, coarser leaf
// slots. Missing intermediate tables are allocated lazily and installed as
// present table descriptors; the walk then invokes visit for every leaf
// slot in ascending address order, exactly one per leaf unit overlapping
// the range. A zero-length range yields nothing.
//
// Walking has side effects (table allocation), so re-walking a range is not
// idempotent unless all intermediate tables already exist. Failure to
// allocate an intermediate table aborts the walk with the allocator's
// error.
func (pt PageTable) walkRange(virtStart, size uintptr, levels []PageLevel, visit rangeVisitor) *kernel.Error {
	if len(levels) == 0 {
		return errMissingLevels
	}

	if size == 0 {
		return nil
	}

	leafSpan := levels[len(levels)-1].span()
	first := virtStart &^ (leafSpan - 1)
	last := (virtStart + size - 1) &^ (leafSpan - 1)

	for addr := first; ; addr += leafSpan {
		pte, err := pt.slotFor(addr, levels)
		if err != nil {
			return err
		}

		visit(addr, pte)

		if addr == last {
			return nil
		}
	}
}

// slotFor descends from the root to the last of the supplied levels,
// allocating and installing intermediate tables as needed, and returns the
// entry slot for virtAddr at that level.
func (pt PageTable) slotFor(virtAddr uintptr, levels []PageLevel) (*pageTableEntry, *kernel.Error) {
	tableFrame := pt.root
	for i, level := range levels {
		table := tableForFrame(tableFrame, level)
		pte := &table[(virtAddr>>level.Shift)&(level.entryCount()-1)]

		if i == len(levels)-1 {
			return pte, nil
		}

		switch pte.kind() {
		case entryAbsent:
			// Next table does not exist yet; allocate a frame for it,
			// clear it and install a table descriptor.
			nextFrame, err := mm.AllocFrame()
			if err != nil {
				return nil, err
			}

			zeroTable(nextFrame, levels[i+1])
			pte.Set(nextFrame, TableFlags(AttrPresent))
		case entryLeaf:
			return nil, errMapOverLeaf
		}

		tableFrame = pte.Frame()
	}

	// not reached; the last level always returns above
	return nil, errMissingLevels
}

// MapRange maps the virtual range [virtStart, virtStart+size) onto the
// contiguous physical region beginning at frame, with one leaf entry per
// unit of the granularity selected by levels. attr must describe a leaf
// (carry at least one of read/write/execute); PageFlags enforces this.
func (pt PageTable) MapRange(virtStart, size uintptr, frame mm.Frame, attr Attr, levels []PageLevel) *kernel.Error {
	if len(levels) == 0 {
		return errMissingLevels
	}

	flags := PageFlags(attr)
	frameStride := mm.Frame(1) << (levels[len(levels)-1].Shift - mm.PageShift)

	next := frame
	return pt.walkRange(virtStart, size, levels, func(_ uintptr, pte *pageTableEntry) {
		pte.Set(next, flags)
		next += frameStride
	})
}

// tableForFrame overlays a page table entry slice on the physical frame that
// holds the table indexed by level.
func tableForFrame(frame mm.Frame, level PageLevel) []pageTableEntry {
	return unsafe.Slice((*pageTableEntry)(tablePtrFn(frame.Address())), level.entryCount())
}

// zeroTable clears the table that the supplied frame holds. The access goes
// through tablePtrFn like every other table dereference.
func zeroTable(frame mm.Frame, level PageLevel) {
	kernel.Memset(
		uintptr(tablePtrFn(frame.Address())),
		0,
		level.entryCount()<<mm.EntryShift,
	)
}
