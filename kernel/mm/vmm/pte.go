package vmm

import "rvos/kernel/mm"

const (
	// pteFrameShift is the bit position of the frame-number field within a
	// page table entry; everything below it is the attribute field.
	pteFrameShift = 10

	// pteFlagMask extracts the attribute field of an entry.
	pteFlagMask = (1 << pteFrameShift) - 1
)

// pageTableEntry describes one 64-bit page table entry. An entry packs a
// physical frame number above a ten-bit attribute field.
type pageTableEntry uint64

// entryKind is the tagged interpretation of an entry produced by kind().
type entryKind uint8

const (
	// entryAbsent: no valid bit; the MMU ignores the entry.
	entryAbsent entryKind = iota

	// entryTable: a valid pointer to the next translation level.
	entryTable

	// entryLeaf: a valid entry that terminates translation.
	entryLeaf
)

// Set overwrites the entry with the supplied frame number and raw attribute
// bits.
func (pte *pageTableEntry) Set(frame mm.Frame, flags EntryFlag) {
	*pte = pageTableEntry(uint64(frame)<<pteFrameShift | uint64(flags))
}

// Get unpacks the entry into its frame number and raw attribute bits.
func (pte pageTableEntry) Get() (mm.Frame, EntryFlag) {
	return pte.Frame(), pte.Flags()
}

// Frame returns the physical frame number packed into this entry.
func (pte pageTableEntry) Frame() mm.Frame {
	return mm.Frame(uint64(pte) >> pteFrameShift)
}

// Flags returns the raw attribute bits of this entry.
func (pte pageTableEntry) Flags() EntryFlag {
	return EntryFlag(pte & pteFlagMask)
}

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags EntryFlag) bool {
	return pte.Flags()&flags == flags
}

// kind classifies the entry using the hardware's own discriminant: a valid
// entry with at least one of the read/write/execute bits terminates
// translation, a valid entry without them descends to the next table.
func (pte pageTableEntry) kind() entryKind {
	flags := pte.Flags()
	switch {
	case flags&FlagValid == 0:
		return entryAbsent
	case flags&flagRWX != 0:
		return entryLeaf
	default:
		return entryTable
	}
}
