package session

import (
	"testing"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// newTestUnicorn creates a bare x86 engine in 32- or 64-bit mode, per bits,
// for component-level tests that
// only need a subset of Session wired up (registers, memory, GDT) rather
// than a full session built from a parsed minidump.
func newTestUnicorn(t *testing.T, bits Bitness) uc.Unicorn {
	t.Helper()
	mode := uc.MODE_64
	if bits == Bitness32 {
		mode = uc.MODE_32
	}
	mu, err := uc.NewUnicorn(uc.ARCH_X86, mode)
	if err != nil {
		t.Fatalf("NewUnicorn: %v", err)
	}
	t.Cleanup(func() { _ = mu.Close() })
	return mu
}
