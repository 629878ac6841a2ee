//go:build !riscv64

package cpu

// Stub implementations so the kernel packages compile and their tests run on
// hosted architectures. Code under test must never reach actual privileged
// state; tests swap these out via the package-level ...Fn variables of their
// callers.

// SwitchTranslation writes the supplied value (paging mode + root table PFN)
// into the satp register. Calling the stub is always a bug.
func SwitchTranslation(satp uint64) {
	panic("cpu: SwitchTranslation requires a riscv64 target")
}

// FlushTLB performs a full sfence.vma. Calling the stub is always a bug.
func FlushTLB() {
	panic("cpu: FlushTLB requires a riscv64 target")
}

// Halt parks the hart. Calling the stub is always a bug.
func Halt() {
	panic("cpu: Halt requires a riscv64 target")
}
