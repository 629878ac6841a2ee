// Package fdt provides a minimal reader for the flattened device tree blob
// that the SBI firmware hands to the kernel. It walks the blob in place; no
// part of the tree is copied or allocated.
package fdt

import (
	"unsafe"

	"rvos/kernel"
)

var (
	// ErrBadMagic is returned when the registered blob does not start with
	// the device tree magic value.
	ErrBadMagic = &kernel.Error{Module: "fdt", Message: "device tree blob has a bad magic value"}

	// ErrMalformed is returned when the structure block of the blob is
	// truncated or contains an unknown token.
	ErrMalformed = &kernel.Error{Module: "fdt", Message: "device tree structure block is malformed"}

	dtbData uintptr
)

// Device tree blob header field offsets. All header fields are big-endian
// 32-bit values.
const (
	fdtMagic = 0xd00dfeed

	offMagic        = 0
	offTotalSize    = 4
	offDtStruct     = 8
	offDtStrings    = 12
	offVersion      = 20
	offSizeDtStruct = 36
)

// Structure block tokens.
const (
	tokenBeginNode = 1
	tokenEndNode   = 2
	tokenProp      = 3
	tokenNop       = 4
	tokenEnd       = 9
)

// SetDTBPtr updates the internal pointer to the device tree blob provided by
// the firmware. This function must be invoked before invoking any other
// function exported by this package.
func SetDTBPtr(ptr uintptr) {
	dtbData = ptr
}

// be32 reads a big-endian 32-bit value at the given offset into the blob.
func be32(offset uintptr) uint32 {
	p := dtbData + offset
	return uint32(*(*byte)(unsafe.Pointer(p)))<<24 |
		uint32(*(*byte)(unsafe.Pointer(p+1)))<<16 |
		uint32(*(*byte)(unsafe.Pointer(p+2)))<<8 |
		uint32(*(*byte)(unsafe.Pointer(p+3)))
}

// byteAt reads the byte at the given offset into the blob.
func byteAt(offset uintptr) byte {
	return *(*byte)(unsafe.Pointer(dtbData + offset))
}

// nodeNameIsCPU reports whether the NUL-terminated node name at the given
// offset is "cpu" or "cpu@<unit>". The comparison runs over the raw blob
// bytes; building a Go string here would allocate.
func nodeNameIsCPU(offset uintptr) bool {
	if byteAt(offset) != 'c' || byteAt(offset+1) != 'p' || byteAt(offset+2) != 'u' {
		return false
	}

	next := byteAt(offset + 3)
	return next == 0 || next == '@'
}

// nodeNameIsCPUs reports whether the NUL-terminated node name at the given
// offset is exactly "cpus".
func nodeNameIsCPUs(offset uintptr) bool {
	return byteAt(offset) == 'c' && byteAt(offset+1) == 'p' &&
		byteAt(offset+2) == 'u' && byteAt(offset+3) == 's' &&
		byteAt(offset+4) == 0
}

// skipName advances past the NUL-terminated node name at the given offset,
// including the padding that realigns the walk to a token boundary.
func skipName(offset uintptr) uintptr {
	for byteAt(offset) != 0 {
		offset++
	}

	// skip the terminator, then realign to 4 bytes
	return (offset + 1 + 3) &^ 3
}

// NumHarts walks the registered device tree blob and returns the number of
// CPU nodes it describes, which is the number of harts the firmware booted
// with.
func NumHarts() (int, *kernel.Error) {
	if be32(offMagic) != fdtMagic {
		return 0, ErrBadMagic
	}

	var (
		offset    = uintptr(be32(offDtStruct))
		end       = offset + uintptr(be32(offSizeDtStruct))
		depth     int
		cpusDepth = -1
		harts     int
	)

	for offset+4 <= end {
		token := be32(offset)
		offset += 4

		switch token {
		case tokenBeginNode:
			if depth == 1 && nodeNameIsCPUs(offset) {
				cpusDepth = depth
			} else if cpusDepth != -1 && depth == cpusDepth+1 && nodeNameIsCPU(offset) {
				harts++
			}

			offset = skipName(offset)
			depth++
		case tokenEndNode:
			depth--
			if depth == cpusDepth {
				cpusDepth = -1
			}
		case tokenProp:
			// u32 length and name offset precede the property value,
			// which is padded to a token boundary.
			propLen := uintptr(be32(offset))
			offset += 8
			offset = (offset + propLen + 3) &^ 3
		case tokenNop:
		case tokenEnd:
			if depth != 0 {
				return 0, ErrMalformed
			}

			return harts, nil
		default:
			return 0, ErrMalformed
		}
	}

	return 0, ErrMalformed
}
