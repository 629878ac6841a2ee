//go:build !riscv64

package sbi

// Stub so the package compiles on hosted architectures. Kernel code paths
// that reach the firmware console are never executed under test.
func legacyCall(eid, arg uintptr) uintptr {
	panic("sbi: environment calls require a riscv64 target")
}
