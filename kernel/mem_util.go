package kernel

import "unsafe"

// Memset sets size bytes at the given address to the supplied value. Its main
// caller is the page-table walker, which must clear freshly allocated table
// frames before the MMU can see them. Instead of a plain for loop, the
// implementation makes log2(size) copy calls which is considerably faster for
// the page-sized regions it is used on.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	// overlay a slice on top of this address region
	target := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	// Set first element and make log2(size) optimized copies
	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}
