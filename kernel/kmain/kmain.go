// Package kmain contains the kernel entry point and the boot sequence that
// brings up the memory managers before handing control to the console loop.
package kmain

import (
	"unicode/utf8"

	"rvos/kernel"
	"rvos/kernel/hal/fdt"
	"rvos/kernel/kfmt"
	"rvos/kernel/mm/pmm"
	"rvos/kernel/mm/vmm"
	"rvos/kernel/sbi"
)

// Physical window handed to the frame allocator. It begins past the kernel
// image and its early heap and ends at the top of the memory the firmware
// reports on the reference board.
const (
	frameWindowStart = uintptr(0x80400000)
	frameWindowEnd   = uintptr(0x80700000)
)

// maxLineLen bounds the length of a line read by the echo loop.
const maxLineLen = 256

var (
	errKmainReturned   = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
	errInvalidEncoding = &kernel.Error{Module: "kmain", Message: "console input is not valid UTF-8"}

	// getCharFn and putCharFn are overridden by tests; firmware calls are
	// not available on a host build.
	getCharFn = sbi.GetChar
	putCharFn = sbi.PutChar

	lineBuf [maxLineLen]byte
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. The rt0 assembly runs on the boot hart with a minimal
// stack, masks interrupts and passes along the device tree blob pointer it
// received from the firmware.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the
// CPU.
//
//go:noinline
func Kmain(dtbPtr uintptr) {
	kfmt.SetOutputSink(sbi.ConsoleWriter{})
	kfmt.Printf("kernel starting on the boot hart\n")

	fdt.SetDTBPtr(dtbPtr)
	if harts, err := fdt.NumHarts(); err != nil {
		kfmt.Panic(err)
	} else {
		kfmt.Printf("[kmain] device tree reports %d hart(s)\n", harts)
	}

	var err *kernel.Error
	if err = pmm.Init(frameWindowStart, frameWindowEnd); err != nil {
		kfmt.Panic(err)
	} else if err = vmm.Init(vmm.Sv48); err != nil {
		kfmt.Panic(err)
	}

	echoLoop()

	// echoLoop never returns; reaching this point means the console loop
	// was miscompiled or unwound.
	kfmt.Panic(errKmainReturned)
}

// echoLoop reads carriage-return terminated lines from the firmware console
// and writes each one back, prefixed so the echo is distinguishable from the
// input.
func echoLoop() {
	for {
		line := readLine()
		if !utf8.Valid(line) {
			kfmt.Panic(errInvalidEncoding)
		}

		kfmt.Printf("you said: %s\n", line)
	}
}

// readLine polls the console until a carriage return arrives, echoing each
// byte as it is typed, and returns the accumulated line without the
// terminator. Input beyond the line buffer is dropped.
func readLine() []byte {
	var n int

	for {
		b, ok := getCharFn()
		if !ok {
			continue
		}

		if b == '\r' {
			putCharFn('\n')
			return lineBuf[:n]
		}

		if n < maxLineLen {
			lineBuf[n] = b
			n++
			putCharFn(b)
		}
	}
}
