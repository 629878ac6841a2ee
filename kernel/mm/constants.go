package mm

const (
	// PageShift is equal to log2(PageSize). This constant is used when we
	// need to convert a physical address to a page frame number (shift right
	// by PageShift) and vice-versa. All RISC-V Sv paging modes use 4Kb base
	// pages.
	PageShift = 12

	// PageSize defines the system's base page size in bytes.
	PageSize = uintptr(1 << PageShift)

	// EntryShift is equal to log2(unsafe.Sizeof(a page table entry)). Page
	// table entries are 64-bit words on riscv64.
	EntryShift = 3
)
