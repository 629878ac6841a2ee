package vmm

import (
	"rvos/kernel"
	"rvos/kernel/mm"
)

var errBadModeLevels = &kernel.Error{Module: "vmm", Message: "paging mode levels do not partition the virtual address"}

// PageLevel describes one translation level of a paging mode: the bit offset
// of its index field within a virtual address and the width of that field in
// bits.
type PageLevel struct {
	Shift, Bits uint8
}

// entryCount returns the number of entries in a table indexed by this level.
func (l PageLevel) entryCount() uintptr {
	return uintptr(1) << l.Bits
}

// span returns the amount of virtual address space translated by one entry
// at this level.
func (l PageLevel) span() uintptr {
	return uintptr(1) << l.Shift
}

// PagingMode is the compile-time description of a hardware paging mode: its
// table levels ordered root to leaf plus the mode number written into satp.
// Parameterizing the walker and codec over this descriptor is what keeps the
// three-level and four-level modes from being two near-identical
// implementations.
type PagingMode struct {
	name     string
	satpMode uint64
	levels   []PageLevel
}

// Sv39 is the three-level paging mode: 39-bit virtual addresses with 9-bit
// index fields at offsets 30/21/12.
var Sv39 = &PagingMode{
	name:     "Sv39",
	satpMode: 8,
	levels:   []PageLevel{{30, 9}, {21, 9}, {12, 9}},
}

// Sv48 is the four-level paging mode: 48-bit virtual addresses with 9-bit
// index fields at offsets 39/30/21/12.
var Sv48 = &PagingMode{
	name:     "Sv48",
	satpMode: 9,
	levels:   []PageLevel{{39, 9}, {30, 9}, {21, 9}, {12, 9}},
}

// Name returns the mode's name.
func (m *PagingMode) Name() string { return m.name }

// Levels returns the mode's table levels ordered root to leaf. Callers
// restrict a walk to a prefix of this slice to select a coarser mapping
// granularity.
func (m *PagingMode) Levels() []PageLevel { return m.levels }

// VirtualAddressBits returns the virtual address width translated by this
// mode.
func (m *PagingMode) VirtualAddressBits() uint8 {
	return m.levels[0].Shift + m.levels[0].Bits
}

// SatpValue packs the mode number and a root table frame into the value
// written to the satp register.
func (m *PagingMode) SatpValue(root mm.Frame) uint64 {
	return m.satpMode<<60 | uint64(root)
}

// check verifies that the levels are ordered root to leaf with adjacent
// index fields and that they partition the virtual address down to the page
// offset.
func (m *PagingMode) check() *kernel.Error {
	if len(m.levels) == 0 || m.levels[len(m.levels)-1].Shift != mm.PageShift {
		return errBadModeLevels
	}

	for i := 0; i < len(m.levels)-1; i++ {
		next := m.levels[i+1]
		if m.levels[i].Shift != next.Shift+next.Bits {
			return errBadModeLevels
		}
	}

	return nil
}
