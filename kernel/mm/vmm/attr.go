package vmm

import "rvos/kernel"

var (
	errLeafAttrOnTable = &kernel.Error{Module: "vmm", Message: "table descriptor carries read/write/execute bits"}
	errTableAttrOnLeaf = &kernel.Error{Module: "vmm", Message: "leaf attribute set carries none of read/write/execute"}
	errBadTableAttr    = &kernel.Error{Module: "vmm", Message: "attribute not representable on a table descriptor"}
)

// EntryFlag describes a raw attribute bit in the low ten bits of a page
// table entry. Bits 0-7 are defined by the hardware; bits 8 and 9 are the
// software (RSW) bits which this kernel uses for copy-on-write and mmap
// tracking.
type EntryFlag uint64

const (
	// FlagValid marks an entry as present. Entries without it are ignored
	// by the MMU entirely.
	FlagValid EntryFlag = 1 << iota

	// FlagRead permits loads through this mapping.
	FlagRead

	// FlagWrite permits stores through this mapping.
	FlagWrite

	// FlagExec permits instruction fetches through this mapping.
	FlagExec

	// FlagUser makes the mapping accessible to user mode.
	FlagUser

	// FlagGlobal marks the mapping as present in all address spaces.
	FlagGlobal

	// FlagAccessed is set by the hardware when the page is referenced.
	FlagAccessed

	// FlagDirty is set by the hardware when the page is written.
	FlagDirty

	// FlagCopyOnWrite marks a read-only mapping whose backing frame must be
	// duplicated on the first write (software bit).
	FlagCopyOnWrite

	// FlagMapped marks a page belonging to a memory-mapped region
	// (software bit).
	FlagMapped
)

// flagRWX is the hardware's leaf/table discriminant: a valid entry with any
// of these bits terminates translation, one with none of them points at the
// next table level.
const flagRWX = FlagRead | FlagWrite | FlagExec

// Attr is the architecture-neutral attribute set used above the codec. The
// translation to and from raw entry bits is a lossy projection: only the
// subset meaningful to the chosen entry interpretation survives a round
// trip.
type Attr uint16

const (
	AttrPresent Attr = 1 << iota
	AttrRead
	AttrWrite
	AttrExec
	AttrUser
	AttrGlobal
	AttrAccessed
	AttrDirty
	AttrCopyOnWrite
	AttrMapped
)

// attrRWX mirrors flagRWX on the portable side.
const attrRWX = AttrRead | AttrWrite | AttrExec

// tableAttrMask is the subset of portable attributes a table descriptor can
// carry.
const tableAttrMask = AttrPresent | AttrUser | AttrGlobal | AttrAccessed

// TableAttr interprets the raw bits as a table descriptor and returns the
// portable attributes it carries. Raw values with any of the read, write or
// execute bits set describe a leaf, never a table pointer; interpreting one
// as a table descriptor would silently misread the hardware semantics, so it
// panics instead.
func (f EntryFlag) TableAttr() Attr {
	if f&flagRWX != 0 {
		panic(errLeafAttrOnTable)
	}

	var attr Attr
	if f&FlagValid != 0 {
		attr |= AttrPresent
	}
	if f&FlagUser != 0 {
		attr |= AttrUser
	}
	if f&FlagGlobal != 0 {
		attr |= AttrGlobal
	}
	if f&FlagAccessed != 0 {
		attr |= AttrAccessed
	}

	return attr
}

// PageAttr interprets the raw bits as a leaf entry and returns the portable
// attributes it carries. A raw value without any of the read, write or
// execute bits is a table descriptor and panics.
func (f EntryFlag) PageAttr() Attr {
	if f&flagRWX == 0 {
		panic(errTableAttrOnLeaf)
	}

	var attr Attr
	if f&FlagValid != 0 {
		attr |= AttrPresent
	}
	if f&FlagRead != 0 {
		attr |= AttrRead
	}
	if f&FlagWrite != 0 {
		attr |= AttrWrite
	}
	if f&FlagExec != 0 {
		attr |= AttrExec
	}
	if f&FlagUser != 0 {
		attr |= AttrUser
	}
	if f&FlagGlobal != 0 {
		attr |= AttrGlobal
	}
	if f&FlagAccessed != 0 {
		attr |= AttrAccessed
	}
	if f&FlagDirty != 0 {
		attr |= AttrDirty
	}
	if f&FlagCopyOnWrite != 0 {
		attr |= AttrCopyOnWrite
	}
	if f&FlagMapped != 0 {
		attr |= AttrMapped
	}

	return attr
}

// TableFlags encodes a portable attribute set into the raw bits of a table
// descriptor. Only present/user/global/accessed can be expressed on a table
// descriptor; any other attribute panics.
func TableFlags(attr Attr) EntryFlag {
	if attr&^tableAttrMask != 0 {
		panic(errBadTableAttr)
	}

	var f EntryFlag
	if attr&AttrPresent != 0 {
		f |= FlagValid
	}
	if attr&AttrUser != 0 {
		f |= FlagUser
	}
	if attr&AttrGlobal != 0 {
		f |= FlagGlobal
	}
	if attr&AttrAccessed != 0 {
		f |= FlagAccessed
	}

	return f
}

// PageFlags encodes a portable attribute set into the raw bits of a leaf
// entry. An attribute set with none of read/write/execute cannot describe a
// leaf and panics.
func PageFlags(attr Attr) EntryFlag {
	if attr&attrRWX == 0 {
		panic(errTableAttrOnLeaf)
	}

	var f EntryFlag
	if attr&AttrPresent != 0 {
		f |= FlagValid
	}
	if attr&AttrRead != 0 {
		f |= FlagRead
	}
	if attr&AttrWrite != 0 {
		f |= FlagWrite
	}
	if attr&AttrExec != 0 {
		f |= FlagExec
	}
	if attr&AttrUser != 0 {
		f |= FlagUser
	}
	if attr&AttrGlobal != 0 {
		f |= FlagGlobal
	}
	if attr&AttrAccessed != 0 {
		f |= FlagAccessed
	}
	if attr&AttrDirty != 0 {
		f |= FlagDirty
	}
	if attr&AttrCopyOnWrite != 0 {
		f |= FlagCopyOnWrite
	}
	if attr&AttrMapped != 0 {
		f |= FlagMapped
	}

	return f
}
