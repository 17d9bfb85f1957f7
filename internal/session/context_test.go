package session

import (
	"testing"

	"github.com/saitokouna/mrexodia-dumpulator/internal/dump"
)

func TestRestoreContextX64(t *testing.T) {
	mu := newTestUnicorn(t, Bitness64)
	s := &Session{uc: mu, bits: Bitness64}
	s.Regs = newRegisters(mu, Bitness64)

	rec := dump.ThreadRecord{
		Context: dump.ThreadContext{
			Bitness: dump.Bitness64,
			Rax:     1, Rcx: 2, Rdx: 3, Rbx: 4,
			Rsp: 0x130000, Rbp: 5, Rsi: 6, Rdi: 7,
			R8: 8, R9: 9, R10: 10, R11: 11,
			R12: 12, R13: 13, R14: 14, R15: 15,
			Rip:    0x140001000,
			EFlags: 0x202,
			MxCsr:  0x1f80,
		},
	}

	if err := s.restoreContext(rec); err != nil {
		t.Fatalf("restoreContext: %v", err)
	}

	if v, _ := s.Regs.Get("rip"); v != 0x140001000 {
		t.Errorf("rip = 0x%x, want 0x140001000", v)
	}
	if v, _ := s.Regs.Get("rsp"); v != 0x130000 {
		t.Errorf("rsp = 0x%x, want 0x130000", v)
	}
	if v, _ := s.Regs.Get("r15"); v != 15 {
		t.Errorf("r15 = %d, want 15", v)
	}
	if v, _ := s.Regs.Get("eflags"); v != 0x202 {
		t.Errorf("eflags = 0x%x, want 0x202", v)
	}
	if s.Args == nil {
		t.Fatal("restoreContext should install the argument view")
	}
}

func TestRestoreContextX86RestoresEaxAndEip(t *testing.T) {
	mu := newTestUnicorn(t, Bitness32)
	s := &Session{uc: mu, bits: Bitness32}
	s.Regs = newRegisters(mu, Bitness32)

	rec := dump.ThreadRecord{
		Context: dump.ThreadContext{
			Bitness: dump.Bitness32,
			Rax:     0xAAAAAAAA,
			Rip:     0x00401000,
			Rsp:     0x00130000,
		},
	}

	if err := s.restoreContext(rec); err != nil {
		t.Fatalf("restoreContext: %v", err)
	}

	if v, _ := s.Regs.Get("eax"); v != 0xAAAAAAAA {
		t.Errorf("eax = 0x%x, want 0xAAAAAAAA", v)
	}
	if v, _ := s.Regs.Get("eip"); v != 0x00401000 {
		t.Errorf("eip = 0x%x, want 0x401000", v)
	}
}
