// Package session implements the emulation core: address-space
// reconstruction from a minidump, CPU state restore, GDT/segment setup,
// the bump allocator, the syscall dispatcher, and the controlled call
// mechanism that ties them together into a runnable EmulatorSession.
package session

import (
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
	"github.com/google/uuid"

	"github.com/saitokouna/mrexodia-dumpulator/internal/config"
	"github.com/saitokouna/mrexodia-dumpulator/internal/dump"
	"github.com/saitokouna/mrexodia-dumpulator/internal/log"
	"github.com/saitokouna/mrexodia-dumpulator/internal/script"
)

// Bitness re-exports dump.Bitness so callers of this package never need to
// import internal/dump just to talk about architecture width.
type Bitness = dump.Bitness

const (
	Bitness32 = dump.Bitness32
	Bitness64 = dump.Bitness64
)

// Fixed addresses the core reserves regardless of what the dump itself maps.
const (
	GDTBase  = 0x3000
	GDTSize  = 0x1000
	GDTLimit = 31*8 - 1 // 31 usable descriptor slots

	CaveBase = 0x5000
	CaveSize = 0x1000
	// CaveFill is the byte the code cave is filled with. Unicorn's HOOK_CODE
	// sees it execute as INT3 (0xCC); the controller recognizes a PC that
	// lands here as "the called function returned".
	CaveFill = 0xCC
)

// minFreeRegionSize is the smallest free MemoryInfo region the loader will
// accept as the bump-arena candidate.
const minFreeRegionSize = 0x10000

// Options configures a Session at construction time.
type Options struct {
	// InstructionBudget caps Start/Call via Unicorn's StartWithOptions. Zero
	// falls back to Config.InstructionBudget; zero in both means unbounded
	// (the engine runs until it faults, syscalls out, or reaches the
	// requested end address).
	InstructionBudget uint64
	Logger            *log.Logger
	Config            *config.Config
	// ScriptPath, if set, is loaded as the session's scripting hook once
	// construction finishes.
	ScriptPath string
}

// Session is the aggregate root: EmulatorSession from the component design,
// gluing together the register file, argument view, memory services,
// module table, loader, GDT, context restorer, syscall dispatcher and the
// four controller hooks into one object addressable by callers.
type Session struct {
	ID uuid.UUID

	uc   uc.Unicorn
	bits Bitness
	opts Options
	log  *log.Logger
	cfg  *config.Config

	Regs    *Registers
	Args    *Arguments
	Memory  *Memory
	Modules *ModuleTable
	Handles *HandleTable

	gdt      *gdtState
	syscalls *syscallTable

	Script *script.Runtime
	onInsn func(pc uint64, code []byte)

	lastError error
	exitCode  *int64
	stopped   bool
}

// New builds a Session from a parsed minidump: it maps committed memory,
// registers modules, restores the first thread's context, sets up
// segmentation, builds the syscall table from ntdll's exports, and installs
// the controller hooks, in that order, so every later stage can rely on
// the ones before it having already run.
func New(src dump.Source, opts Options) (*Session, error) {
	threads, err := src.Threads()
	if err != nil {
		return nil, fmt.Errorf("read threads: %w", err)
	}
	if len(threads) == 0 {
		return nil, fmt.Errorf("dump has no threads")
	}
	bits := threads[0].Context.Bitness

	mode := uc.MODE_64
	if bits == Bitness32 {
		mode = uc.MODE_32
	}
	mu, err := uc.NewUnicorn(uc.ARCH_X86, mode)
	if err != nil {
		return nil, fmt.Errorf("create unicorn: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.InstructionBudget == 0 {
		opts.InstructionBudget = cfg.InstructionBudget
	}

	s := &Session{
		ID:   uuid.New(),
		uc:   mu,
		bits: bits,
		opts: opts,
		log:  logger,
		cfg:  cfg,
	}
	s.Regs = newRegisters(mu, bits)
	s.Memory = newMemory(mu)
	s.Modules = newModuleTable()
	s.Handles = newHandleTable()

	if err := s.loadAddressSpace(src); err != nil {
		mu.Close()
		return nil, err
	}
	if err := s.loadModules(src); err != nil {
		mu.Close()
		return nil, err
	}
	if err := s.restoreContext(threads[0]); err != nil {
		mu.Close()
		return nil, err
	}
	if err := s.setupGDT(threads[0].Teb); err != nil {
		mu.Close()
		return nil, err
	}
	if err := s.setupSyscalls(); err != nil {
		mu.Close()
		return nil, err
	}
	if err := s.setupHooks(); err != nil {
		mu.Close()
		return nil, err
	}
	if err := s.setupCodeCave(); err != nil {
		mu.Close()
		return nil, err
	}

	scriptPath := opts.ScriptPath
	if scriptPath == "" {
		scriptPath = cfg.Script
	}
	if scriptPath != "" {
		rt, err := script.Load(scriptPath, s)
		if err != nil {
			mu.Close()
			return nil, err
		}
		s.Script = rt
	}

	return s, nil
}

// Bitness reports the architecture width this session was restored with.
func (s *Session) Bitness() Bitness { return s.bits }

// Close releases the underlying engine instance. This is the only resource
// release point: there is no other teardown to perform.
func (s *Session) Close() error {
	return s.uc.Close()
}

// LastError is the outcome of the most recent Start/Call, nil if the
// emulation finished by reaching its end address or the code cave.
func (s *Session) LastError() error { return s.lastError }

// ExitCode is set when guest code calls NtTerminateProcess or the stop
// condition otherwise records an explicit exit code. nil means no explicit
// code was ever recorded.
func (s *Session) ExitCode() *int64 { return s.exitCode }

// NtCurrentProcess is the well-known pseudo-handle value -1 reinterpreted
// as an unsigned 64-bit quantity.
const NtCurrentProcess = ^uint64(0)

// NtCurrentThread is the well-known pseudo-handle value -2.
const NtCurrentThread = ^uint64(0) - 1

// ReadGuestPtr reads a pointer-sized value using the session's restored
// bitness (4 bytes on WOW64, 8 on x64), for handlers that dereference
// guest-supplied out-pointers.
func (s *Session) ReadGuestPtr(addr uint64) (uint64, error) {
	if s.bits == Bitness64 {
		return s.Memory.ReadPtr(addr)
	}
	v, err := s.Memory.ReadUint32(addr)
	return uint64(v), err
}

// WriteGuestPtr writes a pointer-sized value using the session's restored
// bitness.
func (s *Session) WriteGuestPtr(addr, v uint64) error {
	if s.bits == Bitness64 {
		return s.Memory.WritePtr(addr, v)
	}
	return s.Memory.WriteUint32(addr, uint32(v))
}

// ReadMemory, WriteMemory, GetReg and SetReg satisfy script.Host, letting a
// loaded script reach into guest memory and the register file without this
// package importing the script package's own dependencies back.
func (s *Session) ReadMemory(addr, n uint64) ([]byte, error) { return s.Memory.Read(addr, n) }
func (s *Session) WriteMemory(addr uint64, data []byte) error { return s.Memory.Write(addr, data) }
func (s *Session) GetReg(name string) (uint64, error)         { return s.Regs.Get(name) }
func (s *Session) SetReg(name string, v uint64) error         { return s.Regs.Set(name, v) }
