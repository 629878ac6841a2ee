package vmm

import (
	"rvos/kernel"
	"rvos/kernel/cpu"
	"rvos/kernel/kfmt"
	"rvos/kernel/mm"
)

// Boot address space layout. The kernel image is loaded at 0x80200000 by the
// SBI firmware; the image and the firmware window below it stay
// identity-mapped so execution survives the switch to translated mode. All
// of physical memory additionally appears at a fixed high virtual offset,
// and the image itself is remapped read-write-execute at the top of the
// address space with 4 KiB granularity.
const (
	kernelPhysBase      = uintptr(0x80200000)
	identityRegionSize  = uintptr(16 << 20)
	physMapVirtBase     = uintptr(0xFFFFFF0000000000)
	physMapSize         = uintptr(512 << 30)
	kernelImageVirtBase = uintptr(0xFFFFFFFFC0200000)
	kernelImageSize     = uintptr(2 << 20)
	kernelImageAttrs    = AttrPresent | AttrRead | AttrWrite | AttrExec | AttrGlobal
)

var (
	// switchTranslationFn is overridden by tests; writing satp on a host
	// build is not possible.
	switchTranslationFn = cpu.SwitchTranslation
	flushTLBFn          = cpu.FlushTLB

	// kernelPageTable is the address space constructed by Init and active
	// for the remainder of the kernel's lifetime.
	kernelPageTable PageTable
)

// Init constructs the kernel address space for the supplied paging mode and
// switches the boot CPU to it. It must run after the physical allocator has
// been initialized since all table frames come from it.
func Init(mode *PagingMode) *kernel.Error {
	pt, err := NewPageTable(mode)
	if err != nil {
		return err
	}

	levels := mode.Levels()

	// Identity map the firmware and kernel image region with 2 MiB pages.
	err = pt.MapRange(
		kernelPhysBase,
		identityRegionSize,
		mm.FrameFromAddress(kernelPhysBase),
		kernelImageAttrs,
		levels[:len(levels)-1],
	)
	if err != nil {
		return err
	}

	// Map all of physical memory at physMapVirtBase with 1 GiB pages.
	err = pt.MapRange(
		physMapVirtBase,
		physMapSize,
		mm.FrameFromAddress(0),
		kernelImageAttrs,
		levels[:len(levels)-2],
	)
	if err != nil {
		return err
	}

	// Remap the kernel image at the top of the address space with 4 KiB
	// pages so individual image pages can later get distinct permissions.
	err = pt.MapRange(
		kernelImageVirtBase,
		kernelImageSize,
		mm.FrameFromAddress(kernelPhysBase),
		kernelImageAttrs,
		levels,
	)
	if err != nil {
		return err
	}

	kernelPageTable = pt
	kernelPageTable.Activate()

	kfmt.Printf("[vmm] enabled %s translation, root table frame: 0x%x\n", mode.Name(), uint64(pt.Root()))
	return nil
}

// Activate points the MMU at this table and flushes stale translations.
func (pt PageTable) Activate() {
	switchTranslationFn(pt.mode.SatpValue(pt.root))
	flushTLBFn()
}
