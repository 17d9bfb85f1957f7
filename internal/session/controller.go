package session

import (
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/saitokouna/mrexodia-dumpulator/internal/trace"
)

// setupHooks implements the Emulator Controller's hook installation: an
// unmapped/protected-memory fault reporter, the SYSCALL/SYSENTER dispatch
// hook, and an interrupt reporter. A per-instruction trace hook is added
// separately only when the caller asks for tracing, since it costs real
// overhead on every single instruction.
func (s *Session) setupHooks() error {
	faultMask := uc.HOOK_MEM_READ_UNMAPPED | uc.HOOK_MEM_WRITE_UNMAPPED | uc.HOOK_MEM_FETCH_UNMAPPED |
		uc.HOOK_MEM_READ_PROT | uc.HOOK_MEM_WRITE_PROT | uc.HOOK_MEM_FETCH_PROT

	if _, err := s.uc.HookAdd(faultMask, s.onMemoryFault, 1, 0); err != nil {
		return fmt.Errorf("install memory fault hook: %w", err)
	}

	if _, err := s.uc.HookAddInsn(uc.HOOK_INSN, s.onSyscallInsn, 1, 0, uc.X86_INS_SYSCALL); err != nil {
		return fmt.Errorf("install syscall hook: %w", err)
	}
	if _, err := s.uc.HookAddInsn(uc.HOOK_INSN, s.onSyscallInsn, 1, 0, uc.X86_INS_SYSENTER); err != nil {
		return fmt.Errorf("install sysenter hook: %w", err)
	}

	if _, err := s.uc.HookAdd(uc.HOOK_INTR, s.onInterrupt, 1, 0); err != nil {
		return fmt.Errorf("install interrupt hook: %w", err)
	}

	return nil
}

// EnableTrace installs the optional per-instruction trace hook. Call once;
// calling twice double-logs every instruction.
func (s *Session) EnableTrace() error {
	_, err := s.uc.HookAdd(uc.HOOK_CODE, s.onInstruction, 1, 0)
	return err
}

// OnInstruction registers a callback invoked for every instruction the
// trace hook sees, receiving the instruction's address and raw bytes. Only
// meaningful once EnableTrace has installed the hook.
func (s *Session) OnInstruction(fn func(pc uint64, code []byte)) {
	s.onInsn = fn
}

func (s *Session) onInstruction(mu uc.Unicorn, addr uint64, size uint32) {
	s.log.Trace(addr, "", "", fmt.Sprintf("size=%d", size))
	if s.onInsn != nil {
		code, err := s.Memory.Read(addr, uint64(size))
		if err != nil {
			return
		}
		s.onInsn(addr, code)
	}
}

func (s *Session) onMemoryFault(mu uc.Unicorn, access int, addr uint64, size int, value int64) bool {
	write := access == uc.MEM_WRITE_UNMAPPED || access == uc.MEM_WRITE_PROT
	s.log.FaultUnmapped(addr, size, write)
	pc, _ := s.Regs.Get("cip")
	s.log.Trace(pc, string(trace.Fault), "", fmt.Sprintf("addr=0x%x size=%d write=%v", addr, size, write))
	s.stopWithError(fmt.Errorf("unmapped or protected access at 0x%x (size %d, write=%v)", addr, size, write))
	return false
}

func (s *Session) onSyscallInsn(mu uc.Unicorn) uint32 {
	s.dispatchSyscall()
	return 0
}

func (s *Session) onInterrupt(mu uc.Unicorn, number uint32) {
	pc, _ := s.Regs.Get("cip")
	s.log.Trace(pc, string(trace.Interrupt), "", fmt.Sprintf("intno=%d", number))
}

// setupCodeCave maps the fixed code cave and fills it with 0xCC: this both
// gives stray execution somewhere survivable to land, and doubles as the
// landing page Call uses to detect a function returning normally.
func (s *Session) setupCodeCave() error {
	if err := s.uc.MemMap(CaveBase, CaveSize); err != nil {
		return fmt.Errorf("map code cave: %w", err)
	}
	fill := make([]byte, CaveSize)
	for i := range fill {
		fill[i] = CaveFill
	}
	if err := s.uc.MemWrite(CaveBase, fill); err != nil {
		return fmt.Errorf("fill code cave: %w", err)
	}
	return nil
}

func (s *Session) stopWithError(err error) {
	s.lastError = err
	s.stopped = true
	s.uc.Stop()
}

// startOptions returns the instruction-count budget to pass to
// StartWithOptions, or nil when the session carries no budget (the
// engine then runs until it faults, syscalls out unhandled, or reaches
// the requested end address).
func (s *Session) startOptions() *uc.UcOptions {
	if s.opts.InstructionBudget == 0 {
		return nil
	}
	return &uc.UcOptions{Timeout: 0, Count: s.opts.InstructionBudget}
}

// Start runs the engine from begin to end (or until Stop/fault/budget
// exhaustion). end of 0 means "run until stopped".
func (s *Session) Start(begin, end uint64) error {
	s.stopped = false
	s.lastError = nil

	var err error
	if opts := s.startOptions(); opts != nil {
		err = s.uc.StartWithOptions(begin, end, opts)
	} else {
		err = s.uc.Start(begin, end)
	}
	if err != nil {
		// The engine's own error is redundant with whatever hook actually
		// caused the stop (fault, dispatcher giving up, explicit Stop) and
		// already recorded in lastError; only fall back to it if nothing did.
		if s.lastError == nil {
			s.lastError = err
		}
	}
	return s.lastError
}

// Stop halts emulation at the next instruction boundary.
func (s *Session) Stop(exitCode *int64) {
	s.stopped = true
	s.exitCode = exitCode
	if s.Script != nil {
		_ = s.Script.OnStop(exitCode)
	}
	s.uc.Stop()
}

// Call invokes the function at addr with args, using the code cave as the
// return address so that control lands back in mapped, recognizable
// memory instead of an arbitrary caller-supplied return site. Returns the
// accumulator register's value on return.
func (s *Session) Call(addr uint64, args []uint64) (uint64, error) {
	if s.bits == Bitness64 {
		for i, v := range args {
			if err := s.Args.Set(i, v); err != nil {
				return 0, err
			}
		}
	} else {
		for i := len(args) - 1; i >= 0; i-- {
			if err := s.push(args[i]); err != nil {
				return 0, err
			}
		}
	}
	if err := s.push(CaveBase); err != nil {
		return 0, err
	}
	if err := s.Regs.Set("cip", addr); err != nil {
		return 0, err
	}

	if err := s.Start(addr, CaveBase); err != nil {
		return 0, err
	}
	return s.Regs.Get("cax")
}

func (s *Session) push(v uint64) error {
	sp, err := s.Regs.Get("csp")
	if err != nil {
		return err
	}
	ptrSize := uint64(4)
	if s.bits == Bitness64 {
		ptrSize = 8
	}
	sp -= ptrSize
	if s.bits == Bitness64 {
		if err := s.Memory.WritePtr(sp, v); err != nil {
			return err
		}
	} else {
		if err := s.Memory.WriteUint32(sp, uint32(v)); err != nil {
			return err
		}
	}
	return s.Regs.Set("csp", sp)
}
