package session

import (
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/saitokouna/mrexodia-dumpulator/internal/dump"
	internalpe "github.com/saitokouna/mrexodia-dumpulator/internal/pe"
)

// mapProtect turns a dumped AllocationProtect value into the permission
// bits Unicorn's MemMap/MemProtect expect.
func mapProtect(p dump.AllocationProtect) int {
	switch p {
	case dump.PageNoAccess:
		return uc.PROT_NONE
	case dump.PageReadOnly:
		return uc.PROT_READ
	case dump.PageReadWrite, dump.PageWriteCopy:
		return uc.PROT_READ | uc.PROT_WRITE
	case dump.PageExecute:
		return uc.PROT_EXEC
	case dump.PageExecuteRead:
		return uc.PROT_EXEC | uc.PROT_READ
	case dump.PageExecuteReadWrite, dump.PageExecuteWriteCopy:
		return uc.PROT_EXEC | uc.PROT_READ | uc.PROT_WRITE
	default:
		return uc.PROT_READ
	}
}

// loadAddressSpace implements the Address-Space Loader: it maps every
// committed MemoryInfo region with its translated permissions, remembers
// the first free region big enough to serve as the bump arena, then copies
// every captured memory segment's bytes into the now-mapped address space.
func (s *Session) loadAddressSpace(src dump.Source) error {
	infos, err := src.MemoryInfos()
	if err != nil {
		return fmt.Errorf("read memory info: %w", err)
	}

	var arenaBase uint64
	haveArena := false

	for _, info := range infos {
		switch info.State {
		case dump.StateCommit:
			perm := mapProtect(info.Protect)
			if err := s.uc.MemMap(info.BaseAddress, info.RegionSize); err != nil {
				return fmt.Errorf("map region 0x%x (%d bytes): %w", info.BaseAddress, info.RegionSize, err)
			}
			if err := s.uc.MemProtect(info.BaseAddress, info.RegionSize, perm); err != nil {
				return fmt.Errorf("protect region 0x%x: %w", info.BaseAddress, err)
			}
			s.log.RegionMapped(info.BaseAddress, info.RegionSize, permString(perm))
		case dump.StateFree:
			if !haveArena && info.BaseAddress > 0x10000 && info.RegionSize >= minFreeRegionSize {
				arenaBase = info.BaseAddress
				haveArena = true
			}
		}
	}

	if haveArena {
		s.Memory.setArena(arenaBase, minFreeRegionSize)
	}

	segs, err := src.MemorySegments()
	if err != nil {
		return fmt.Errorf("read memory segments: %w", err)
	}
	reader, err := src.SegmentReader()
	if err != nil {
		return fmt.Errorf("open segment reader: %w", err)
	}

	for _, seg := range segs {
		if err := reader.Seek(seg.StartVA); err != nil {
			return fmt.Errorf("seek to segment 0x%x: %w", seg.StartVA, err)
		}
		if reader.Position() != seg.StartVA {
			return fmt.Errorf("segment reader position mismatch: want 0x%x, got 0x%x", seg.StartVA, reader.Position())
		}
		payload, err := reader.Read(seg.Size)
		if err != nil {
			return fmt.Errorf("read segment 0x%x (%d bytes): %w", seg.StartVA, seg.Size, err)
		}
		if err := s.uc.MemWrite(seg.StartVA, payload); err != nil {
			return fmt.Errorf("write segment 0x%x: %w", seg.StartVA, err)
		}
	}

	return nil
}

// loadModules registers every dumped module in the Module Table and, where
// the bytes are available in mapped memory, decodes its export directory.
func (s *Session) loadModules(src dump.Source) error {
	records, err := src.Modules()
	if err != nil {
		return fmt.Errorf("read modules: %w", err)
	}
	for _, rec := range records {
		m, err := s.Modules.Add(rec.BaseAddress, rec.Size, rec.Path)
		if err != nil {
			return fmt.Errorf("register module %s: %w", rec.Path, err)
		}
		image, err := s.uc.MemRead(rec.BaseAddress, rec.Size)
		if err != nil {
			// A module whose pages weren't captured in the dump's memory
			// segments simply has no readable exports; this is not fatal.
			continue
		}
		rewritten, err := internalpe.RewriteRawOffsets(image)
		if err != nil {
			continue
		}
		_ = m.parseExports(rewritten)
	}
	return nil
}

func permString(perm int) string {
	s := ""
	if perm&uc.PROT_READ != 0 {
		s += "r"
	} else {
		s += "-"
	}
	if perm&uc.PROT_WRITE != 0 {
		s += "w"
	} else {
		s += "-"
	}
	if perm&uc.PROT_EXEC != 0 {
		s += "x"
	} else {
		s += "-"
	}
	return s
}
