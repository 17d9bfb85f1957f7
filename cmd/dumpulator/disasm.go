package main

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// disasm decodes one x86 instruction at pc.
func disasm(code []byte, pc uint64, mode int) (x86asm.Inst, string) {
	inst, err := x86asm.Decode(code, mode)
	if err != nil {
		if len(code) == 0 {
			return x86asm.Inst{}, "???"
		}
		return x86asm.Inst{}, fmt.Sprintf("(bad) %02x", code[0])
	}
	return inst, x86asm.IntelSyntax(inst, pc, nil)
}

// instructionTags classifies a disassembled line by its mnemonic.
func instructionTags(dis string) []string {
	upper := strings.ToUpper(dis)
	mnemonic := strings.Fields(upper)
	if len(mnemonic) == 0 {
		return nil
	}

	var tags []string
	switch mnemonic[0] {
	case "XOR":
		tags = append(tags, "#xor")
	case "CALL":
		tags = append(tags, "#call")
	case "JMP":
		tags = append(tags, "#br")
	case "RET", "RETF":
		tags = append(tags, "#ret")
	case "SYSCALL", "SYSENTER", "INT":
		tags = append(tags, "#syscall")
	case "AESENC", "AESDEC", "AESENCLAST", "AESDECLAST", "AESIMC", "AESKEYGENASSIST":
		tags = append(tags, "#aes", "#crypto")
	}
	return tags
}

// isBlockEnd reports whether dis is a control-flow instruction after which
// a blank separator line reads better.
func isBlockEnd(dis string) bool {
	upper := strings.ToUpper(dis)
	fields := strings.Fields(upper)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "RET", "RETF", "JMP", "IRET", "IRETD", "IRETQ":
		return true
	}
	if strings.HasPrefix(fields[0], "J") {
		return true
	}
	return false
}
