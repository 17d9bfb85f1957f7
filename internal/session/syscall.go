package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/saitokouna/mrexodia-dumpulator/internal/trace"
)

// kiFastSystemCall is "mov edx, esp; sysenter; ret", the shim patched into
// Wow64Transition's indirect target so a WOW64 SYSENTER lands somewhere
// sane. See https://opcode0x90.wordpress.com/2007/05/18/kifastsystemcall-hook/
var kiFastSystemCall = []byte{0x8B, 0xD4, 0x0F, 0x34, 0xC3}

// syscallEntry is one slot of the service table: its RVA-sorted index is
// the service number the guest passes in cax.
type syscallEntry struct {
	name    string
	handler *Handler
}

type syscallTable struct {
	entries []syscallEntry
}

// setupSyscalls implements the Syscall Dispatcher's table-construction
// half: it locates ntdll, collects every Zw* export sorted ascending by
// RVA (service number == sorted index, matching how the real ntdll's
// syscall stubs are numbered), and patches Wow64Transition so that a
// WOW64 SYSENTER lands on the shim instead of faulting.
func (s *Session) setupSyscalls() error {
	ntdll, ok := s.Modules.Find("ntdll.dll")
	if !ok {
		return fmt.Errorf("ntdll.dll not found in module table")
	}

	type zwExport struct {
		rva  uint64
		name string
	}
	var zws []zwExport

	for _, e := range ntdll.Exports {
		switch {
		case strings.HasPrefix(e.Name, "Zw"):
			zws = append(zws, zwExport{rva: e.Address - ntdll.Base, name: e.Name})
		case e.Name == "Wow64Transition":
			if err := s.patchWow64Transition(e.Address); err != nil {
				return err
			}
		}
	}

	sort.Slice(zws, func(i, j int) bool { return zws[i].rva < zws[j].rva })

	table := &syscallTable{entries: make([]syscallEntry, len(zws))}
	for i, z := range zws {
		h, _ := lookupHandler(z.name)
		table.entries[i] = syscallEntry{name: z.name, handler: h}
	}
	s.syscalls = table
	return nil
}

func (s *Session) patchWow64Transition(addr uint64) error {
	target, err := s.ReadGuestPtr(addr)
	if err != nil {
		return fmt.Errorf("read Wow64Transition pointer: %w", err)
	}
	if err := s.Memory.Write(target, kiFastSystemCall); err != nil {
		return fmt.Errorf("patch Wow64Transition target: %w", err)
	}
	return nil
}

// dispatchSyscall implements the Syscall Dispatcher's runtime half: cax's
// low 16 bits select a service number, which is looked up in the
// RVA-sorted table and handed to the registered handler, if any.
func (s *Session) dispatchSyscall() {
	cax, err := s.Regs.Get("cax")
	if err != nil {
		s.stopWithError(fmt.Errorf("read cax: %w", err))
		return
	}
	index := uint32(cax & 0xffff)

	if s.syscalls == nil || int(index) >= len(s.syscalls.entries) {
		s.log.SyscallUnimplemented(index)
		s.stopWithError(fmt.Errorf("syscall index %d out of range", index))
		return
	}

	entry := s.syscalls.entries[index]

	pc, _ := s.Regs.Get("cip")
	s.log.SyscallDispatch(entry.name, index, pc)
	s.log.Trace(pc, string(trace.Syscall), entry.name, "")

	if s.Script != nil {
		if err := s.Script.OnSyscall(entry.name); err != nil {
			s.stopWithError(fmt.Errorf("script onSyscall(%s): %w", entry.name, err))
			return
		}
	}

	if override, ok := s.cfg.Override(entry.name); ok {
		if override.Skip {
			return
		}
		if override.Status != nil {
			if err := s.Regs.Set("cax", uint64(*override.Status)); err != nil {
				s.stopWithError(fmt.Errorf("write overridden result: %w", err))
			}
			return
		}
	}

	if entry.handler == nil {
		s.log.SyscallUnimplemented(index)
		s.stopWithError(fmt.Errorf("unimplemented syscall %s (index %d)", entry.name, index))
		return
	}

	status, err := entry.handler.Func(s)
	if err != nil {
		s.stopWithError(fmt.Errorf("%s: %w", entry.name, err))
		return
	}
	if err := s.Regs.Set("cax", status); err != nil {
		s.stopWithError(fmt.Errorf("write result: %w", err))
	}
}
