package session

import (
	"fmt"

	"github.com/saitokouna/mrexodia-dumpulator/internal/dump"
)

// restoreContext implements the Thread-Context Restorer: general-purpose
// registers, flags, debug registers, and (x64 only) MXCSR are copied
// straight from the dumped thread context. Segment selectors from the dump
// are discarded; setupGDT synthesizes fresh ones afterward.
func (s *Session) restoreContext(t dump.ThreadRecord) error {
	c := t.Context

	set := func(name string, v uint64) error {
		return s.Regs.Set(name, v)
	}

	if err := set("eflags", uint64(c.EFlags)); err != nil {
		return err
	}
	if err := set("dr0", c.Dr0); err != nil {
		return err
	}
	if err := set("dr1", c.Dr1); err != nil {
		return err
	}
	if err := set("dr2", c.Dr2); err != nil {
		return err
	}
	if err := set("dr3", c.Dr3); err != nil {
		return err
	}
	if err := set("dr6", c.Dr6); err != nil {
		return err
	}
	if err := set("dr7", c.Dr7); err != nil {
		return err
	}

	if c.Bitness == Bitness64 {
		if err := set("mxcsr", uint64(c.MxCsr)); err != nil {
			return err
		}
		for _, reg := range []struct {
			name string
			val  uint64
		}{
			{"rax", c.Rax}, {"rcx", c.Rcx}, {"rdx", c.Rdx}, {"rbx", c.Rbx},
			{"rsp", c.Rsp}, {"rbp", c.Rbp}, {"rsi", c.Rsi}, {"rdi", c.Rdi},
			{"r8", c.R8}, {"r9", c.R9}, {"r10", c.R10}, {"r11", c.R11},
			{"r12", c.R12}, {"r13", c.R13}, {"r14", c.R14}, {"r15", c.R15},
			{"rip", c.Rip},
		} {
			if err := set(reg.name, reg.val); err != nil {
				return fmt.Errorf("restore %s: %w", reg.name, err)
			}
		}
	} else {
		for _, reg := range []struct {
			name string
			val  uint64
		}{
			{"eax", c.Rax}, {"ecx", c.Rcx}, {"edx", c.Rdx}, {"ebx", c.Rbx},
			{"esp", c.Rsp}, {"ebp", c.Rbp}, {"esi", c.Rsi}, {"edi", c.Rdi},
			{"eip", c.Rip},
		} {
			if err := set(reg.name, reg.val); err != nil {
				return fmt.Errorf("restore %s: %w", reg.name, err)
			}
		}
	}

	s.Args = newArguments(s)
	return nil
}
