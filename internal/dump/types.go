// Package dump defines the consumer contract the emulation core needs from
// a parsed Windows minidump, and a concrete reader that satisfies it by
// decoding the documented MINIDUMP_* stream layouts directly.
package dump

// MemoryState mirrors the Windows MEMORY_BASIC_INFORMATION State field.
type MemoryState uint32

const (
	StateCommit  MemoryState = 0x1000
	StateFree    MemoryState = 0x10000
	StateReserve MemoryState = 0x2000
)

// AllocationProtect mirrors the Windows AllocationProtect / Protect values.
type AllocationProtect uint32

const (
	PageNoAccess          AllocationProtect = 0x01
	PageReadOnly          AllocationProtect = 0x02
	PageReadWrite         AllocationProtect = 0x04
	PageWriteCopy         AllocationProtect = 0x08
	PageExecute           AllocationProtect = 0x10
	PageExecuteRead       AllocationProtect = 0x20
	PageExecuteReadWrite  AllocationProtect = 0x40
	PageExecuteWriteCopy  AllocationProtect = 0x80
)

// MemoryInfo is one MINIDUMP_MEMORY_INFO entry.
type MemoryInfo struct {
	BaseAddress uint64
	RegionSize  uint64
	State       MemoryState
	Protect     AllocationProtect
}

// MemorySegment is one MINIDUMP_MEMORY_DESCRIPTOR64 entry: a contiguous
// range of bytes captured in the dump's memory64 stream.
type MemorySegment struct {
	StartVA uint64
	Size    uint64
}

// SegmentReader is a random-access byte source positioned by absolute
// virtual address, backing the memory segment stream.
type SegmentReader interface {
	// Seek repositions the reader to absolute virtual address va.
	Seek(va uint64) error
	// Position returns the current absolute virtual address.
	Position() uint64
	// Read reads exactly n bytes from the current position, advancing it.
	Read(n uint64) ([]byte, error)
}

// ModuleRecord is one MINIDUMP_MODULE entry.
type ModuleRecord struct {
	BaseAddress uint64
	Size        uint64
	Path        string
}

// Bitness distinguishes the dumped thread's architecture.
type Bitness int

const (
	Bitness32 Bitness = iota
	Bitness64
)

// ThreadContext is the subset of architectural state the core restores,
// normalized across the x86-64 CONTEXT and the WOW64 CONTEXT.
type ThreadContext struct {
	Bitness Bitness

	Rax, Rbx, Rcx, Rdx uint64
	Rsp, Rbp, Rsi, Rdi uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	Rip                uint64

	EFlags uint32
	MxCsr  uint32

	Dr0, Dr1, Dr2, Dr3, Dr6, Dr7 uint64
}

// ThreadRecord is one MINIDUMP_THREAD entry plus its decoded context.
type ThreadRecord struct {
	ThreadID uint32
	Teb      uint64
	Context  ThreadContext
}

// Source is the full contract the emulation core needs from a minidump reader.
type Source interface {
	MemoryInfos() ([]MemoryInfo, error)
	MemorySegments() ([]MemorySegment, error)
	SegmentReader() (SegmentReader, error)
	Modules() ([]ModuleRecord, error)
	Threads() ([]ThreadRecord, error)
}
