package script

import (
	"os"
	"path/filepath"
	"testing"
)

// fakeHost is a minimal in-memory Host used to exercise the goja bindings
// without any dependency on internal/session.
type fakeHost struct {
	mem  map[uint64]uint64
	regs map[string]uint64
}

func newFakeHost() *fakeHost {
	return &fakeHost{mem: map[uint64]uint64{}, regs: map[string]uint64{}}
}

func (h *fakeHost) ReadGuestPtr(addr uint64) (uint64, error)  { return h.mem[addr], nil }
func (h *fakeHost) WriteGuestPtr(addr uint64, v uint64) error { h.mem[addr] = v; return nil }
func (h *fakeHost) ReadMemory(addr, n uint64) ([]byte, error) {
	out := make([]byte, n)
	return out, nil
}
func (h *fakeHost) WriteMemory(addr uint64, data []byte) error { return nil }
func (h *fakeHost) GetReg(name string) (uint64, error)         { return h.regs[name], nil }
func (h *fakeHost) SetReg(name string, v uint64) error         { h.regs[name] = v; return nil }

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.js")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestLoadWithNoHooksDefined(t *testing.T) {
	path := writeScript(t, `var x = 1;`)
	rt, err := Load(path, newFakeHost())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := rt.OnSyscall("ZwClose"); err != nil {
		t.Errorf("OnSyscall with no handler defined should be a no-op, got %v", err)
	}
	exit := int64(0)
	if err := rt.OnStop(&exit); err != nil {
		t.Errorf("OnStop with no handler defined should be a no-op, got %v", err)
	}
}

func TestOnSyscallSeesHostRegisters(t *testing.T) {
	host := newFakeHost()
	host.regs["cax"] = 7

	path := writeScript(t, `
var seen = [];
function onSyscall(name) {
  seen.push(name + ":" + dumpulator.getReg("cax"));
  dumpulator.setReg("cax", 99);
}
`)
	rt, err := Load(path, host)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := rt.OnSyscall("ZwTerminateProcess"); err != nil {
		t.Fatalf("OnSyscall: %v", err)
	}
	if got := rt.vm.Get("seen").String(); got != "ZwTerminateProcess:7" {
		t.Errorf("onSyscall saw %q, want %q (cax read from host)", got, "ZwTerminateProcess:7")
	}
	if host.regs["cax"] != 99 {
		t.Errorf("cax = %d, want 99 (set by onSyscall)", host.regs["cax"])
	}
}

func TestOnStopReceivesExitCodeOrNull(t *testing.T) {
	host := newFakeHost()
	path := writeScript(t, `
var lastExit;
function onStop(exitCode) {
  lastExit = exitCode;
  dumpulator.writePtr(0x1000, exitCode === null ? -1 : exitCode);
}
`)
	rt, err := Load(path, host)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := rt.OnStop(nil); err != nil {
		t.Fatalf("OnStop(nil): %v", err)
	}
	if v := int64(host.mem[0x1000]); v != -1 {
		t.Errorf("onStop(null) wrote %d, want -1", v)
	}

	exit := int64(42)
	if err := rt.OnStop(&exit); err != nil {
		t.Fatalf("OnStop(&42): %v", err)
	}
	if host.mem[0x1000] != 42 {
		t.Errorf("onStop(42) wrote %d, want 42", host.mem[0x1000])
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.js"), newFakeHost()); err == nil {
		t.Fatal("expected error loading a nonexistent script")
	}
}

func TestLoadRejectsScriptErrors(t *testing.T) {
	path := writeScript(t, `this is not valid javascript (((`)
	if _, err := Load(path, newFakeHost()); err == nil {
		t.Fatal("expected error evaluating a malformed script")
	}
}
