// Package pe adapts github.com/saferwall/pe to decode the export directory
// of a module image that only ever existed in memory (an ntdll mapped out
// of a minidump, or any other dumped module), rather than one saferwall/pe
// can itself open from a file on disk.
package pe

import (
	"encoding/binary"
	"fmt"

	saferwall "github.com/saferwall/pe"
)

// Export is a single resolved export directory entry.
type Export struct {
	Name    string // empty for ordinal-only exports
	Ordinal uint32
	RVA     uint32
	// Forwarder is the "DLL.Function" string when this export forwards to
	// another module instead of carrying code of its own. Forwarder
	// resolution itself is not implemented; callers that care see this set
	// and can decide what to do.
	Forwarder string
}

const sectionHeaderSize = 40

// RewriteRawOffsets makes every section's on-disk file offset equal to its
// virtual address, so a PE image copied straight out of process memory
// (where there is no real file layout, only RVAs) parses as if it were a
// normal file laid out identically to how it sits in memory. This is the
// same trick the syscall table builder needs to read the export directory
// of an ntdll that only exists as a block of dumped memory: patch each
// IMAGE_SECTION_HEADER's PointerToRawData field in place to equal its
// VirtualAddress, then re-parse.
func RewriteRawOffsets(image []byte) ([]byte, error) {
	if len(image) < 0x40 {
		return nil, fmt.Errorf("image too small for DOS header")
	}
	out := make([]byte, len(image))
	copy(out, image)

	lfanew := binary.LittleEndian.Uint32(out[0x3c:])
	if int(lfanew)+24 > len(out) {
		return nil, fmt.Errorf("e_lfanew out of range")
	}
	fileHeaderOff := int(lfanew) + 4
	numberOfSections := binary.LittleEndian.Uint16(out[fileHeaderOff+2:])
	sizeOfOptionalHeader := binary.LittleEndian.Uint16(out[fileHeaderOff+16:])

	sectionTableOff := fileHeaderOff + 20 + int(sizeOfOptionalHeader)
	for i := 0; i < int(numberOfSections); i++ {
		hdrOff := sectionTableOff + i*sectionHeaderSize
		if hdrOff+sectionHeaderSize > len(out) {
			return nil, fmt.Errorf("section header %d out of range", i)
		}
		virtualAddress := binary.LittleEndian.Uint32(out[hdrOff+12:])
		binary.LittleEndian.PutUint32(out[hdrOff+20:], virtualAddress)
	}
	return out, nil
}

// Exports decodes the export directory of a PE image whose section raw
// offsets already match virtual addresses (apply RewriteRawOffsets first
// for an in-memory-only image).
func Exports(image []byte) ([]Export, error) {
	f, err := saferwall.NewBytes(image, &saferwall.Options{})
	if err != nil {
		return nil, fmt.Errorf("parse image: %w", err)
	}
	if err := f.Parse(); err != nil {
		return nil, fmt.Errorf("parse image: %w", err)
	}

	out := make([]Export, 0, len(f.Export.Functions))
	for _, fn := range f.Export.Functions {
		out = append(out, Export{
			Name:      fn.Name,
			Ordinal:   fn.Ordinal,
			RVA:       fn.Address,
			Forwarder: fn.ForwarderName,
		})
	}
	return out, nil
}
