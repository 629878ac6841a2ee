package vmm

import (
	"testing"

	"rvos/kernel"
)

func TestPageFlagRoundTrip(t *testing.T) {
	specs := []Attr{
		AttrPresent | AttrRead,
		AttrPresent | AttrRead | AttrWrite,
		AttrPresent | AttrExec,
		AttrPresent | AttrRead | AttrWrite | AttrExec | AttrUser,
		AttrPresent | AttrRead | AttrGlobal | AttrAccessed | AttrDirty,
		AttrPresent | AttrRead | AttrCopyOnWrite,
		AttrPresent | AttrRead | AttrWrite | AttrMapped,
		AttrRead, // not present but still a leaf shape
	}

	for specIndex, attr := range specs {
		if got := PageFlags(attr).PageAttr(); got != attr {
			t.Errorf("[spec %d] expected attr %b to survive a leaf round trip; got %b", specIndex, attr, got)
		}
	}
}

func TestTableFlagRoundTrip(t *testing.T) {
	specs := []Attr{
		AttrPresent,
		AttrPresent | AttrUser,
		AttrPresent | AttrGlobal,
		AttrPresent | AttrUser | AttrGlobal | AttrAccessed,
		0,
	}

	for specIndex, attr := range specs {
		if got := TableFlags(attr).TableAttr(); got != attr {
			t.Errorf("[spec %d] expected attr %b to survive a table round trip; got %b", specIndex, attr, got)
		}
	}
}

func TestFlagEncodingMatchesHardwareLayout(t *testing.T) {
	attr := AttrPresent | AttrRead | AttrWrite | AttrExec | AttrUser | AttrGlobal |
		AttrAccessed | AttrDirty | AttrCopyOnWrite | AttrMapped

	if exp, got := EntryFlag(0x3ff), PageFlags(attr); got != exp {
		t.Fatalf("expected the full leaf attribute set to encode as %b; got %b", exp, got)
	}

	if exp, got := FlagValid|FlagUser|FlagGlobal|FlagAccessed, TableFlags(tableAttrMask); got != exp {
		t.Fatalf("expected the full table attribute set to encode as %b; got %b", exp, got)
	}
}

func TestAttrConversionPanics(t *testing.T) {
	specs := []struct {
		descr  string
		expErr *kernel.Error
		fn     func()
	}{
		{
			"TableAttr on a leaf encoding",
			errLeafAttrOnTable,
			func() { (FlagValid | FlagRead).TableAttr() },
		},
		{
			"PageAttr on a table encoding",
			errTableAttrOnLeaf,
			func() { (FlagValid | FlagGlobal).PageAttr() },
		},
		{
			"TableFlags with leaf-only attributes",
			errBadTableAttr,
			func() { TableFlags(AttrPresent | AttrWrite) },
		},
		{
			"PageFlags without a leaf shape",
			errTableAttrOnLeaf,
			func() { PageFlags(AttrPresent | AttrGlobal) },
		},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			defer func() {
				if got := recover(); got != spec.expErr {
					t.Fatalf("expected a panic with %v; got %v", spec.expErr, got)
				}
			}()

			spec.fn()
		})
	}
}
