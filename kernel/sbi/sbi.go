// Package sbi wraps the legacy console calls exposed by the machine-mode
// firmware (OpenSBI or compatible). These are the only I/O primitives
// available before and during the paging switch.
package sbi

const (
	eidConsolePutChar = 0x01
	eidConsoleGetChar = 0x02
)

// PutChar emits a single byte on the firmware console. There is no contract
// on buffering or flow control.
func PutChar(c byte) {
	legacyCall(eidConsolePutChar, uintptr(c))
}

// GetChar polls the firmware console for a pending input byte. The second
// return value is false when no byte has arrived yet; callers are expected
// to loop.
func GetChar() (byte, bool) {
	v := legacyCall(eidConsoleGetChar, 0)
	if int64(v) == -1 {
		return 0, false
	}

	return byte(v), true
}

// ConsoleWriter adapts the firmware console to io.Writer so it can be
// registered as the kfmt output sink.
type ConsoleWriter struct{}

func (ConsoleWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		PutChar(b)
	}
	return len(p), nil
}
