package session

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// maxStringLen bounds ReadString's null-terminator search: a string that
// isn't terminated within this many bytes is treated as malformed input
// rather than scanned forever.
const maxStringLen = 512

// StringEncoding selects how ReadString/WriteString interpret guest bytes.
// The guest is Windows, so UTF-16LE (the encoding of UNICODE_STRING and
// most Nt* string arguments) is as common a caller choice as UTF-8.
type StringEncoding int

const (
	UTF8 StringEncoding = iota
	UTF16LE
)

// BumpArena is a lazily-mapped region the session hands out memory from on
// demand (NtAllocateVirtualMemory, syscall scratch buffers, etc). Its
// defining trait is that Allocate returns the address immediately PAST the
// block it just reserved, not the block's start — callers that want the
// start must subtract the requested size themselves.
type BumpArena struct {
	mu   uc.Unicorn
	base uint64
	size uint64
	ptr  uint64
	held bool
}

func newBumpArena(mu uc.Unicorn, base, size uint64) *BumpArena {
	return &BumpArena{mu: mu, base: base, size: size}
}

// Allocate maps the arena on first use, then bumps its cursor by size and
// returns the new cursor position (base+size-claimed, i.e. past the block).
func (b *BumpArena) Allocate(size uint64) (uint64, error) {
	if !b.held {
		if err := b.mu.MemMap(b.base, b.size); err != nil {
			return 0, fmt.Errorf("map arena: %w", err)
		}
		b.ptr = b.base
		b.held = true
	}
	next := b.ptr + size
	if next > b.base+b.size {
		return 0, fmt.Errorf("arena exhausted: requested 0x%x, %d bytes remain", size, b.base+b.size-b.ptr)
	}
	b.ptr = next
	return next, nil
}

// Memory is the Memory Services component: byte-level and typed access to
// guest memory, string helpers, and the bump allocator.
type Memory struct {
	mu    uc.Unicorn
	arena *BumpArena
}

func newMemory(mu uc.Unicorn) *Memory {
	return &Memory{mu: mu}
}

func (m *Memory) setArena(base, size uint64) {
	m.arena = newBumpArena(m.mu, base, size)
}

// Allocate claims size bytes from the bump arena. See BumpArena.Allocate
// for the pre-increment-then-return semantics it preserves.
func (m *Memory) Allocate(size uint64) (uint64, error) {
	if m.arena == nil {
		return 0, fmt.Errorf("no free region available for allocation")
	}
	return m.arena.Allocate(size)
}

// Read reads n bytes at addr.
func (m *Memory) Read(addr, n uint64) ([]byte, error) {
	return m.mu.MemRead(addr, n)
}

// Write writes data at addr.
func (m *Memory) Write(addr uint64, data []byte) error {
	return m.mu.MemWrite(addr, data)
}

// ptrSize returns the architecture pointer width in bytes.
func (m *Memory) ptrSize(bits Bitness) uint64 {
	if bits == Bitness64 {
		return 8
	}
	return 4
}

// ReadPtr reads a pointer-sized value. Always reads 8 bytes; callers on a
// 32-bit session should prefer ReadUint32 when they specifically need the
// narrower width, but most dispatch code goes through the session which
// picks the right one for the restored bitness.
func (m *Memory) ReadPtr(addr uint64) (uint64, error) {
	data, err := m.mu.MemRead(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// WritePtr writes an 8-byte pointer value.
func (m *Memory) WritePtr(addr, v uint64) error {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, v)
	return m.mu.MemWrite(addr, data)
}

// ReadUint32 reads a little-endian uint32.
func (m *Memory) ReadUint32(addr uint64) (uint32, error) {
	data, err := m.mu.MemRead(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// WriteUint32 writes a little-endian uint32.
func (m *Memory) WriteUint32(addr uint64, v uint32) error {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	return m.mu.MemWrite(addr, data)
}

// ReadInt32 reads a little-endian signed int32, for NTSTATUS-shaped fields.
func (m *Memory) ReadInt32(addr uint64) (int32, error) {
	v, err := m.ReadUint32(addr)
	return int32(v), err
}

// WriteInt32 writes a little-endian signed int32.
func (m *Memory) WriteInt32(addr uint64, v int32) error {
	return m.WriteUint32(addr, uint32(v))
}

// ReadUint16 reads a little-endian uint16.
func (m *Memory) ReadUint16(addr uint64) (uint16, error) {
	data, err := m.mu.MemRead(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// WriteUint16 writes a little-endian uint16.
func (m *Memory) WriteUint16(addr uint64, v uint16) error {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, v)
	return m.mu.MemWrite(addr, data)
}

// ReadString reads a nul-terminated string in enc, capped at maxStringLen
// bytes of guest memory.
func (m *Memory) ReadString(addr uint64, enc StringEncoding) (string, error) {
	data, err := m.mu.MemRead(addr, maxStringLen)
	if err != nil {
		return "", err
	}
	if enc == UTF16LE {
		units := make([]uint16, 0, len(data)/2)
		for i := 0; i+1 < len(data); i += 2 {
			u := binary.LittleEndian.Uint16(data[i:])
			if u == 0 {
				break
			}
			units = append(units, u)
		}
		return string(utf16.Decode(units)), nil
	}
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}
	return string(data), nil
}

// WriteString writes s in enc followed by a nul terminator.
func (m *Memory) WriteString(addr uint64, s string, enc StringEncoding) error {
	if enc == UTF16LE {
		units := utf16.Encode([]rune(s))
		data := make([]byte, len(units)*2+2)
		for i, u := range units {
			binary.LittleEndian.PutUint16(data[i*2:], u)
		}
		return m.mu.MemWrite(addr, data)
	}
	data := append([]byte(s), 0)
	return m.mu.MemWrite(addr, data)
}
