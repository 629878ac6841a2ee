package vmm

import (
	"rvos/kernel"
)

// ErrInvalidMapping is returned when a virtual address resolves to an absent
// entry at some translation level.
var ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not map to a physical address"}

// Translate performs a software walk of the table and returns the physical
// address that virtAddr maps to. It mirrors what the MMU would do: the walk
// descends until it hits a leaf entry, at whatever level, and splices the
// untranslated low bits of virtAddr onto the leaf's frame address. Absent
// entries yield ErrInvalidMapping.
func (pt PageTable) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	tableFrame := pt.root
	for _, level := range pt.mode.levels {
		table := tableForFrame(tableFrame, level)
		pte := table[(virtAddr>>level.Shift)&(level.entryCount()-1)]

		switch pte.kind() {
		case entryAbsent:
			return 0, ErrInvalidMapping
		case entryLeaf:
			return pte.Frame().Address() + virtAddr&(level.span()-1), nil
		}

		tableFrame = pte.Frame()
	}

	// A valid table entry at the leaf level is malformed; the codec never
	// produces one, so treat it as unmapped.
	return 0, ErrInvalidMapping
}
