// Package kernel holds the primitives shared by every boot-stage package:
// the error type and raw-memory helpers usable before the Go allocator comes
// up.
package kernel

// Error describes a failure detected during boot, from window registration
// through the paging switch. Errors are always defined as global variables
// that are pointers to the Error structure; errors.New cannot be used since
// the Go allocator is not available this early. Pointer identity doubles as
// the comparison, so callers match errors with == and panics carrying an
// *Error can be asserted on with recover.
type Error struct {
	// The subsystem that detected the failure (pmm, vmm, fdt, kmain).
	Module string

	// The error message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
