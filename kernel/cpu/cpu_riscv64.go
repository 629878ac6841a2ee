// Package cpu provides access to the privileged RISC-V state that the memory
// management code needs: the satp translation-control register, TLB
// maintenance and the wait-for-interrupt idle loop. The implementations live
// in cpu_riscv64.s; on other architectures stub versions are provided so the
// kernel packages can be compiled and tested on a hosted toolchain.
package cpu

// SwitchTranslation writes the supplied value (paging mode + root table PFN)
// into the satp register and then invalidates all cached translations. This
// is the single irreversible hardware transition of enabling paging:
// execution continues uninterrupted at the next instruction, which by then is
// fetched through the new page table.
func SwitchTranslation(satp uint64)

// FlushTLB performs a full sfence.vma, invalidating all cached address
// translations for this hart.
func FlushTLB()

// Halt parks the hart in a wfi loop. It never returns.
func Halt()
