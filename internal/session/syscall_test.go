package session

import (
	"testing"

	"github.com/saitokouna/mrexodia-dumpulator/internal/config"
	"github.com/saitokouna/mrexodia-dumpulator/internal/log"
)

func newTestSyscallSession(t *testing.T) (*Session, uint64) {
	t.Helper()
	mu := newTestUnicorn(t, Bitness64)
	s := &Session{uc: mu, bits: Bitness64, log: log.NewNop(), cfg: config.Default()}
	s.Regs = newRegisters(mu, Bitness64)
	s.Memory = newMemory(mu)
	s.Modules = newModuleTable()
	s.Handles = newHandleTable()

	const ntdllBase = 0x70000000
	if err := mu.MemMap(ntdllBase, 0x1000); err != nil {
		t.Fatalf("MemMap ntdll: %v", err)
	}
	const shimTarget = 0x80000
	if err := mu.MemMap(shimTarget, 0x1000); err != nil {
		t.Fatalf("MemMap shim target: %v", err)
	}

	m, err := s.Modules.Add(ntdllBase, 0x1000, `C:\Windows\System32\ntdll.dll`)
	if err != nil {
		t.Fatalf("Modules.Add: %v", err)
	}
	if err := s.Memory.WritePtr(ntdllBase+0x300, shimTarget); err != nil {
		t.Fatalf("write Wow64Transition pointer: %v", err)
	}
	m.Exports = []*ModuleExport{
		{Address: ntdllBase + 0x200, Name: "ZwCreateFile"},
		{Address: ntdllBase + 0x100, Name: "ZwClose"},
		{Address: ntdllBase + 0x300, Name: "Wow64Transition"},
	}

	return s, shimTarget
}

func TestSetupSyscallsSortsByRVAAndPatchesWow64Transition(t *testing.T) {
	s, shimTarget := newTestSyscallSession(t)

	if err := s.setupSyscalls(); err != nil {
		t.Fatalf("setupSyscalls: %v", err)
	}
	if len(s.syscalls.entries) != 2 {
		t.Fatalf("expected 2 Zw* entries, got %d", len(s.syscalls.entries))
	}
	if s.syscalls.entries[0].name != "ZwClose" {
		t.Errorf("entry 0 = %s, want ZwClose (lowest RVA)", s.syscalls.entries[0].name)
	}
	if s.syscalls.entries[1].name != "ZwCreateFile" {
		t.Errorf("entry 1 = %s, want ZwCreateFile", s.syscalls.entries[1].name)
	}

	patched, err := s.Memory.Read(shimTarget, uint64(len(kiFastSystemCall)))
	if err != nil {
		t.Fatalf("read patched shim: %v", err)
	}
	for i, b := range kiFastSystemCall {
		if patched[i] != b {
			t.Fatalf("Wow64Transition shim not patched: got %x, want %x", patched, kiFastSystemCall)
		}
	}
}

func TestDispatchSyscallInvokesRegisteredHandler(t *testing.T) {
	s, _ := newTestSyscallSession(t)

	// Handlers are resolved when the table is built, so register first.
	RegisterHandler(&Handler{
		Name: "ZwClose",
		Func: func(s *Session) (uint64, error) { return 0x1234, nil },
	})

	if err := s.setupSyscalls(); err != nil {
		t.Fatalf("setupSyscalls: %v", err)
	}

	if err := s.Regs.Set("cax", 0); err != nil { // index 0 == ZwClose
		t.Fatalf("Set(cax): %v", err)
	}
	s.dispatchSyscall()

	cax, _ := s.Regs.Get("cax")
	if cax != 0x1234 {
		t.Errorf("cax after dispatch = 0x%x, want 0x1234", cax)
	}
	if s.lastError != nil {
		t.Errorf("unexpected lastError: %v", s.lastError)
	}
}

func TestDispatchSyscallUnimplementedStopsWithError(t *testing.T) {
	s, _ := newTestSyscallSession(t)
	if err := s.setupSyscalls(); err != nil {
		t.Fatalf("setupSyscalls: %v", err)
	}

	if err := s.Regs.Set("cax", 1); err != nil { // index 1 == ZwCreateFile, never registered
		t.Fatalf("Set(cax): %v", err)
	}
	s.dispatchSyscall()

	if s.lastError == nil {
		t.Fatal("expected dispatchSyscall to record an error for an unregistered handler")
	}
}

func TestDispatchSyscallHonorsConfigOverride(t *testing.T) {
	s, _ := newTestSyscallSession(t)
	if err := s.setupSyscalls(); err != nil {
		t.Fatalf("setupSyscalls: %v", err)
	}
	status := uint32(0xC0000008)
	s.cfg.Syscalls["ZwCreateFile"] = config.SyscallOverride{Status: &status}

	if err := s.Regs.Set("cax", 1); err != nil {
		t.Fatalf("Set(cax): %v", err)
	}
	s.dispatchSyscall()

	cax, _ := s.Regs.Get("cax")
	if cax != uint64(status) {
		t.Errorf("cax = 0x%x, want overridden status 0x%x", cax, status)
	}
	if s.lastError != nil {
		t.Errorf("an overridden syscall must not be treated as unimplemented: %v", s.lastError)
	}
}
