// Package colorize provides syntax highlighting for disassembly output.
package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

func init() {
	// Register the disassembly style on package initialization.
	_ = DisasmDark
}

// Disassembly theme colors, addresses in gray, registers in light blue,
// immediates in pink, labels in yellow.
const (
	ColorAddress  = "#808080"
	ColorMnemonic = "#FFFFFF"
	ColorRegister = "#87CEEB"
	ColorNumber   = "#FF80C0"
	ColorLabel    = "#FFC800"
	ColorComment  = "#FF8000"
	ColorString   = "#00FF00"
	ColorHexBytes = "#646464"
)

// DisasmDark is the chroma style used to colorize disassembly output.
var DisasmDark = styles.Register(chroma.MustNewStyle("disasm-dark", chroma.StyleEntries{
	chroma.Text:           ColorMnemonic,
	chroma.Background:     "bg:#000000",
	chroma.Comment:        ColorComment,
	chroma.CommentPreproc: ColorComment,

	// NASM lexer mappings, since x86/x86-64 disassembly is rendered in
	// Intel syntax.
	chroma.Keyword:       ColorMnemonic, // instructions
	chroma.KeywordPseudo: ColorMnemonic,
	chroma.Name:          ColorRegister,
	chroma.NameBuiltin:   ColorRegister,
	chroma.NameVariable:  ColorRegister,

	chroma.LiteralNumber:        ColorNumber,
	chroma.LiteralNumberHex:     ColorNumber,
	chroma.LiteralNumberBin:     ColorNumber,
	chroma.LiteralNumberOct:     ColorNumber,
	chroma.LiteralNumberInteger: ColorNumber,
	chroma.LiteralNumberFloat:   ColorNumber,

	chroma.NameLabel:    ColorLabel,
	chroma.NameFunction: ColorMnemonic,

	chroma.Operator:    ColorMnemonic,
	chroma.Punctuation: ColorMnemonic,

	chroma.String: ColorString,
}))
