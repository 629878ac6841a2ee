package sbi

// legacyCall performs an environment call into the firmware using the legacy
// SBI calling convention: extension id in a7, argument in a0, result in a0.
func legacyCall(eid, arg uintptr) uintptr
