package session

import "fmt"

// maxArgIndex bounds the argument view: nothing plausible reads past the
// 20th argument, so position 20 and beyond are out of range.
const maxArgIndex = 20

// Arguments is the Argument View: position-addressed access to a call's
// parameters, independent of whether they arrived in registers or on the
// stack.
type Arguments struct {
	s *Session
}

func newArguments(s *Session) *Arguments {
	return &Arguments{s: s}
}

// x64ArgRegs is rcx, rdx, r8, r9 in that order: the four integer register
// slots of the Microsoft x64 calling convention before the stack takes over.
var x64ArgRegs = []string{"rcx", "rdx", "r8", "r9"}

func (a *Arguments) stackSlot(i int) (uint64, error) {
	sp, err := a.s.Regs.Get("csp")
	if err != nil {
		return 0, err
	}
	ptrSize := uint64(4)
	offset := uint64(i+2) * 4
	if a.s.bits == Bitness64 {
		ptrSize = 8
		offset = uint64(i+1) * 8
	}
	_ = ptrSize
	return sp + offset, nil
}

// Get reads argument i (0-based) using the session's calling convention.
func (a *Arguments) Get(i int) (uint64, error) {
	if i < 0 || i >= maxArgIndex {
		return 0, fmt.Errorf("argument index %d out of range", i)
	}
	if a.s.bits == Bitness64 && i < len(x64ArgRegs) {
		return a.s.Regs.Get(x64ArgRegs[i])
	}
	addr, err := a.stackSlot(i)
	if err != nil {
		return 0, err
	}
	if a.s.bits == Bitness64 {
		return a.s.Memory.ReadPtr(addr)
	}
	v32, err := a.s.Memory.ReadUint32(addr)
	return uint64(v32), err
}

// Set writes argument i (0-based) using the session's calling convention.
// x86 positions are stack-only with no register shortcut to rewrite in
// place, so writing one is not implemented.
func (a *Arguments) Set(i int, v uint64) error {
	if i < 0 || i >= maxArgIndex {
		return fmt.Errorf("argument index %d out of range", i)
	}
	if a.s.bits != Bitness64 {
		return fmt.Errorf("Set: not implemented for x86 argument positions")
	}
	if i < len(x64ArgRegs) {
		return a.s.Regs.Set(x64ArgRegs[i], v)
	}
	addr, err := a.stackSlot(i)
	if err != nil {
		return err
	}
	return a.s.Memory.WritePtr(addr, v)
}
