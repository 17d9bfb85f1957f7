package session

import (
	"encoding/binary"
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// Access byte bits for a GDT descriptor. See https://wiki.osdev.org/Global_Descriptor_Table.
const (
	gdtAccessProtMode32         = 0x4
	gdtAccessPresent            = 0x80
	gdtAccessRing3              = 0x60
	gdtAccessRing0              = 0
	gdtAccessDataWritable       = 0x2
	gdtAccessCodeReadable       = 0x2
	gdtAccessDirectionConform   = 0x4
	gdtAccessCode               = 0x18
	gdtAccessData               = 0x10
)

const (
	gdtFlagsRing3 = 0x3
	gdtFlagsRing0 = 0
)

const gdtEntrySize = 8

// Fixed descriptor slots: the indices a loaded Windows process's TEB/PEB
// segment selectors expect.
const (
	slotWow64   = 6  // Wow64 transition marker (code, flags 0x4|0x2)
	slotGS      = 15 // x64 only: GS base = TEB, limit = one page
	slotDS      = 16 // ring-3 flat data
	slotCS      = 17 // ring-3 flat code
	slotSS      = 18 // ring-0 flat data
	slotFS      = 19 // x86 only: FS base = TEB
)

const gdtEntryCount = 31

type gdtState struct {
	base uint64
}

func makeEntry(base uint32, access byte, limit uint32, flags byte) [8]byte {
	access |= gdtAccessPresent | gdtAccessDirectionConform
	entry := uint64(limit) & 0xFFFF
	entry |= (uint64(base) & 0xFFFFFF) << 16
	entry |= uint64(access) << 40
	entry |= ((uint64(limit) >> 16) & 0xF) << 48
	entry |= uint64(flags) << 52
	entry |= ((uint64(base) >> 24) & 0xFF) << 56

	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], entry)
	return out
}

func selector(index int, flags byte) uint64 {
	return uint64(flags) | uint64(index<<3)
}

// setupGDT implements the GDT / Segment Setup component exactly: a flat
// ring-3 data/code pair, a ring-0 stack segment, the Wow64 transition
// marker at slot 6, and a TEB-based FS (x86) or GS (x64) segment.
func (s *Session) setupGDT(tebAddr uint64) error {
	if err := s.uc.MemMap(GDTBase, GDTSize); err != nil {
		return fmt.Errorf("map GDT: %w", err)
	}
	s.gdt = &gdtState{base: GDTBase}

	write := func(index int, base uint32, access byte, limit uint32, flags byte) error {
		entry := makeEntry(base, access, limit, flags)
		return s.uc.MemWrite(GDTBase+uint64(index*gdtEntrySize), entry[:])
	}

	if err := write(slotDS, 0, gdtAccessData|gdtAccessDataWritable|gdtAccessRing3, 0xFFFFF000, gdtAccessProtMode32); err != nil {
		return err
	}
	if err := write(slotCS, 0, gdtAccessCode|gdtAccessCodeReadable|gdtAccessRing3, 0xFFFFF000, gdtAccessProtMode32); err != nil {
		return err
	}
	if err := write(slotSS, 0, gdtAccessData|gdtAccessDataWritable|gdtAccessRing0, 0xFFFFF000, gdtAccessProtMode32); err != nil {
		return err
	}
	if err := write(slotWow64, 0, gdtAccessCode|gdtAccessCodeReadable|gdtAccessRing3, 0xFFFFF000, gdtAccessProtMode32|0x2); err != nil {
		return err
	}

	if err := s.uc.RegWriteMmr(uc.X86_REG_GDTR, &uc.X86Mmr{
		Base:  GDTBase,
		Limit: uint16(gdtEntryCount*gdtEntrySize - 1),
	}); err != nil {
		return fmt.Errorf("load GDTR: %w", err)
	}

	if err := s.Regs.Set("ds", selector(slotDS, gdtFlagsRing3)); err != nil {
		return err
	}
	if err := s.Regs.Set("cs", selector(slotCS, gdtFlagsRing3)); err != nil {
		return err
	}
	if err := s.Regs.Set("ss", selector(slotSS, gdtFlagsRing0)); err != nil {
		return err
	}

	if s.bits == Bitness32 {
		if err := write(slotFS, uint32(tebAddr), gdtAccessData|gdtAccessDataWritable|gdtAccessRing3, 0xFFFFF000, gdtAccessProtMode32); err != nil {
			return err
		}
		if err := s.Regs.Set("fs", selector(slotFS, gdtFlagsRing3)); err != nil {
			return err
		}
	} else {
		if err := write(slotGS, uint32(tebAddr), gdtAccessData|gdtAccessDataWritable|gdtAccessRing3, 0x1000, gdtAccessProtMode32); err != nil {
			return err
		}
		if err := s.Regs.Set("gs", selector(slotGS, gdtFlagsRing3)); err != nil {
			return err
		}
	}

	return nil
}
