package session

import "testing"

func TestSetupGDTx64WritesSelectors(t *testing.T) {
	mu := newTestUnicorn(t, Bitness64)
	s := &Session{uc: mu, bits: Bitness64}
	s.Regs = newRegisters(mu, Bitness64)

	const teb = 0x7ffd0000
	if err := s.setupGDT(teb); err != nil {
		t.Fatalf("setupGDT: %v", err)
	}

	cs, _ := s.Regs.Get("cs")
	if cs != selector(slotCS, gdtFlagsRing3) {
		t.Errorf("cs = 0x%x, want 0x%x", cs, selector(slotCS, gdtFlagsRing3))
	}
	ss, _ := s.Regs.Get("ss")
	if ss != selector(slotSS, gdtFlagsRing0) {
		t.Errorf("ss = 0x%x, want 0x%x", ss, selector(slotSS, gdtFlagsRing0))
	}
	gs, _ := s.Regs.Get("gs")
	if gs != selector(slotGS, gdtFlagsRing3) {
		t.Errorf("gs = 0x%x, want 0x%x", gs, selector(slotGS, gdtFlagsRing3))
	}
}

func TestSetupGDTx86UsesFSForTeb(t *testing.T) {
	mu := newTestUnicorn(t, Bitness32)
	s := &Session{uc: mu, bits: Bitness32}
	s.Regs = newRegisters(mu, Bitness32)

	if err := s.setupGDT(0x7ffdf000); err != nil {
		t.Fatalf("setupGDT: %v", err)
	}

	fs, _ := s.Regs.Get("fs")
	if fs != selector(slotFS, gdtFlagsRing3) {
		t.Errorf("fs = 0x%x, want 0x%x", fs, selector(slotFS, gdtFlagsRing3))
	}
}

func TestSelectorEncodesIndexAndFlags(t *testing.T) {
	if got := selector(slotCS, gdtFlagsRing3); got != uint64(slotCS<<3)|3 {
		t.Errorf("selector(slotCS, ring3) = 0x%x, want 0x%x", got, uint64(slotCS<<3)|3)
	}
	if got := selector(slotSS, gdtFlagsRing0); got != uint64(slotSS<<3) {
		t.Errorf("selector(slotSS, ring0) = 0x%x, want 0x%x", got, uint64(slotSS<<3))
	}
}
