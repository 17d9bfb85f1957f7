package session

import (
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// baseRegisters is the static name -> Unicorn register id table shared by
// both bitnesses. Register access never goes through reflection or dynamic
// attribute dispatch: callers look a name up in this table (or the bitness
// alias table layered on top of it) and read/write the engine directly.
var baseRegisters = map[string]int{
	"ah": uc.X86_REG_AH, "al": uc.X86_REG_AL, "ax": uc.X86_REG_AX,
	"bh": uc.X86_REG_BH, "bl": uc.X86_REG_BL, "bp": uc.X86_REG_BP, "bpl": uc.X86_REG_BPL, "bx": uc.X86_REG_BX,
	"ch": uc.X86_REG_CH, "cl": uc.X86_REG_CL, "cs": uc.X86_REG_CS, "cx": uc.X86_REG_CX,
	"dh": uc.X86_REG_DH, "di": uc.X86_REG_DI, "dil": uc.X86_REG_DIL, "dl": uc.X86_REG_DL,
	"ds": uc.X86_REG_DS, "dx": uc.X86_REG_DX,
	"eax": uc.X86_REG_EAX, "ebp": uc.X86_REG_EBP, "ebx": uc.X86_REG_EBX, "ecx": uc.X86_REG_ECX,
	"edi": uc.X86_REG_EDI, "edx": uc.X86_REG_EDX, "eflags": uc.X86_REG_EFLAGS, "eip": uc.X86_REG_EIP,
	"es": uc.X86_REG_ES, "esi": uc.X86_REG_ESI, "esp": uc.X86_REG_ESP,
	"fpsw": uc.X86_REG_FPSW, "fs": uc.X86_REG_FS, "gs": uc.X86_REG_GS, "ip": uc.X86_REG_IP,
	"rax": uc.X86_REG_RAX, "rbp": uc.X86_REG_RBP, "rbx": uc.X86_REG_RBX, "rcx": uc.X86_REG_RCX,
	"rdi": uc.X86_REG_RDI, "rdx": uc.X86_REG_RDX, "rip": uc.X86_REG_RIP,
	"rsi": uc.X86_REG_RSI, "rsp": uc.X86_REG_RSP,
	"si": uc.X86_REG_SI, "sil": uc.X86_REG_SIL, "sp": uc.X86_REG_SP, "spl": uc.X86_REG_SPL, "ss": uc.X86_REG_SS,

	"cr0": uc.X86_REG_CR0, "cr1": uc.X86_REG_CR1, "cr2": uc.X86_REG_CR2, "cr3": uc.X86_REG_CR3,
	"cr4": uc.X86_REG_CR4, "cr8": uc.X86_REG_CR8,

	"dr0": uc.X86_REG_DR0, "dr1": uc.X86_REG_DR1, "dr2": uc.X86_REG_DR2, "dr3": uc.X86_REG_DR3,
	"dr6": uc.X86_REG_DR6, "dr7": uc.X86_REG_DR7,

	"r8": uc.X86_REG_R8, "r9": uc.X86_REG_R9, "r10": uc.X86_REG_R10, "r11": uc.X86_REG_R11,
	"r12": uc.X86_REG_R12, "r13": uc.X86_REG_R13, "r14": uc.X86_REG_R14, "r15": uc.X86_REG_R15,
	"r8b": uc.X86_REG_R8B, "r9b": uc.X86_REG_R9B, "r10b": uc.X86_REG_R10B, "r11b": uc.X86_REG_R11B,
	"r12b": uc.X86_REG_R12B, "r13b": uc.X86_REG_R13B, "r14b": uc.X86_REG_R14B, "r15b": uc.X86_REG_R15B,
	"r8d": uc.X86_REG_R8D, "r9d": uc.X86_REG_R9D, "r10d": uc.X86_REG_R10D, "r11d": uc.X86_REG_R11D,
	"r12d": uc.X86_REG_R12D, "r13d": uc.X86_REG_R13D, "r14d": uc.X86_REG_R14D, "r15d": uc.X86_REG_R15D,
	"r8w": uc.X86_REG_R8W, "r9w": uc.X86_REG_R9W, "r10w": uc.X86_REG_R10W, "r11w": uc.X86_REG_R11W,
	"r12w": uc.X86_REG_R12W, "r13w": uc.X86_REG_R13W, "r14w": uc.X86_REG_R14W, "r15w": uc.X86_REG_R15W,

	"idtr": uc.X86_REG_IDTR, "gdtr": uc.X86_REG_GDTR, "ldtr": uc.X86_REG_LDTR, "tr": uc.X86_REG_TR,
	"fpcw": uc.X86_REG_FPCW, "fptag": uc.X86_REG_FPTAG, "msr": uc.X86_REG_MSR, "mxcsr": uc.X86_REG_MXCSR,
	"fs_base": uc.X86_REG_FS_BASE, "gs_base": uc.X86_REG_GS_BASE,
}

// bitnessAliases64/bitnessAliases32 give the architecture-neutral
// cax/cbx/ccx/cdx/cbp/csp/csi/cdi/cip names used by the argument view and
// the calling-convention helpers, so code that doesn't care which mode
// it's running in can ask for "the accumulator" without branching.
var bitnessAliases64 = map[string]int{
	"cax": uc.X86_REG_RAX, "cbx": uc.X86_REG_RBX, "ccx": uc.X86_REG_RCX, "cdx": uc.X86_REG_RDX,
	"cbp": uc.X86_REG_RBP, "csp": uc.X86_REG_RSP, "csi": uc.X86_REG_RSI, "cdi": uc.X86_REG_RDI,
	"cip": uc.X86_REG_RIP,
}

var bitnessAliases32 = map[string]int{
	"cax": uc.X86_REG_EAX, "cbx": uc.X86_REG_EBX, "ccx": uc.X86_REG_ECX, "cdx": uc.X86_REG_EDX,
	"cbp": uc.X86_REG_EBP, "csp": uc.X86_REG_ESP, "csi": uc.X86_REG_ESI, "cdi": uc.X86_REG_EDI,
	"cip": uc.X86_REG_EIP,
}

// Registers is the Register File: a name-addressed view over the engine's
// register state, selected once per session by bitness.
type Registers struct {
	mu      uc.Unicorn
	aliases map[string]int
}

func newRegisters(mu uc.Unicorn, bits Bitness) *Registers {
	aliases := bitnessAliases32
	if bits == Bitness64 {
		aliases = bitnessAliases64
	}
	return &Registers{mu: mu, aliases: aliases}
}

func (r *Registers) lookup(name string) (int, error) {
	if id, ok := r.aliases[name]; ok {
		return id, nil
	}
	if id, ok := baseRegisters[name]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("unknown register %q", name)
}

// Get reads a register by name.
func (r *Registers) Get(name string) (uint64, error) {
	id, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	return r.mu.RegRead(id)
}

// Set writes a register by name.
func (r *Registers) Set(name string, value uint64) error {
	id, err := r.lookup(name)
	if err != nil {
		return err
	}
	return r.mu.RegWrite(id, value)
}

// MustGet reads a register by name, returning 0 on lookup failure. Used by
// callers that already know the name is valid (fixed names baked into the
// emulator's own code paths, not user-supplied register names).
func (r *Registers) MustGet(name string) uint64 {
	v, _ := r.Get(name)
	return v
}
