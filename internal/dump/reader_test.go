package dump

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"
)

// buildMinidump assembles a minimal but structurally valid minidump byte
// stream covering MemoryInfoList, Memory64List, ModuleList and ThreadList,
// with the thread context encoded at either amd64 or WOW64 size.
func buildMinidump(t *testing.T, wow64 bool) []byte {
	t.Helper()

	var buf []byte
	put32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); buf = append(buf, b...) }
	put64 := func(v uint64) { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); buf = append(buf, b...) }
	pad := func(n int) { buf = append(buf, make([]byte, n)...) }

	// Reserve header (32 bytes) + 4 directory entries (12 bytes each).
	headerLen := 32
	dirLen := 4 * 12
	streamsStart := headerLen + dirLen

	// --- MemoryInfoList ---
	memInfoOff := streamsStart
	var memInfo []byte
	{
		var s []byte
		le32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); s = append(s, b...) }
		le64 := func(v uint64) { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); s = append(s, b...) }
		le32(16) // SizeOfHeader
		le32(48) // SizeOfEntry
		le64(1)  // NumberOfEntries
		entry := make([]byte, 48)
		binary.LittleEndian.PutUint64(entry[0:], 0x10000)     // BaseAddress
		binary.LittleEndian.PutUint64(entry[24:], 0x2000)     // RegionSize
		binary.LittleEndian.PutUint32(entry[32:], uint32(StateCommit))
		binary.LittleEndian.PutUint32(entry[36:], uint32(PageExecuteReadWrite))
		s = append(s, entry...)
		memInfo = s
	}

	// --- Memory64List ---
	mem64Off := memInfoOff + len(memInfo)
	segPayload := []byte("THIS IS THE SEGMENT PAYLOAD....")
	for len(segPayload) < 0x20 {
		segPayload = append(segPayload, 0)
	}
	var mem64 []byte
	{
		var s []byte
		le64 := func(v uint64) { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); s = append(s, b...) }
		le64(1) // NumberOfMemoryRanges
		baseRVA := uint64(mem64Off + 16 + 16)
		le64(baseRVA) // BaseRva
		le64(0x10000) // descriptor StartOfMemoryRange
		le64(uint64(len(segPayload)))
		s = append(s, segPayload...)
		mem64 = s
	}

	// --- ModuleList ---
	modOff := mem64Off + len(mem64)
	name := utf16.Encode([]rune("ntdll.dll"))
	nameBytes := make([]byte, len(name)*2)
	for i, u := range name {
		binary.LittleEndian.PutUint16(nameBytes[i*2:], u)
	}
	var modName []byte
	{
		var s []byte
		le32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); s = append(s, b...) }
		le32(uint32(len(nameBytes)))
		s = append(s, nameBytes...)
		modName = s
	}
	nameRVA := modOff + 4 + 108 // after count + one module entry
	var mods []byte
	{
		var s []byte
		le32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); s = append(s, b...) }
		le32(1) // NumberOfModules
		entry := make([]byte, 108)
		binary.LittleEndian.PutUint64(entry[0:], 0x70000000) // BaseOfImage
		binary.LittleEndian.PutUint32(entry[8:], 0x9000)      // SizeOfImage
		binary.LittleEndian.PutUint32(entry[20:], uint32(nameRVA))
		s = append(s, entry...)
		mods = append(s, modName...)
	}

	// --- ThreadList ---
	threadOff := modOff + len(mods)
	ctxSize := 1232
	if wow64 {
		ctxSize = 204
	}
	ctxRVA := threadOff + 4 + 48
	var ctxBlob []byte
	if wow64 {
		ctxBlob = make([]byte, ctxSize)
		binary.LittleEndian.PutUint32(ctxBlob[0xb0:], 0xAAAAAAAA) // Eax
		binary.LittleEndian.PutUint32(ctxBlob[0xb8:], 0x00401000) // Eip
		binary.LittleEndian.PutUint32(ctxBlob[0xc4:], 0x00130000) // Esp
	} else {
		ctxBlob = make([]byte, ctxSize)
		binary.LittleEndian.PutUint64(ctxBlob[0x78:], 0xBBBBBBBBBBBBBBBB) // Rax
		binary.LittleEndian.PutUint64(ctxBlob[0xf8:], 0x0000000140001000) // Rip
	}
	var threads []byte
	{
		var s []byte
		le32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); s = append(s, b...) }
		le64 := func(v uint64) { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); s = append(s, b...) }
		le32(1) // NumberOfThreads
		entry := make([]byte, 48)
		binary.LittleEndian.PutUint32(entry[0:], 42)            // ThreadId
		binary.LittleEndian.PutUint64(entry[16:], 0x7ffd0000)    // Teb
		binary.LittleEndian.PutUint32(entry[40:], uint32(ctxSize))
		binary.LittleEndian.PutUint32(entry[44:], uint32(ctxRVA))
		s = append(s, entry...)
		_ = le64
		threads = append(s, ctxBlob...)
	}

	// --- assemble ---
	put32(signatureMDMP)
	put32(0)  // Version
	put32(4)  // NumberOfStreams
	put32(uint32(headerLen))
	put32(0) // CheckSum
	put32(0) // TimeDateStamp
	put64(0) // Flags

	writeDir := func(streamType uint32, size, rva int) {
		put32(streamType)
		put32(uint32(size))
		put32(uint32(rva))
	}
	writeDir(streamMemoryInfoList, len(memInfo), memInfoOff)
	writeDir(streamMemory64List, len(mem64), mem64Off)
	writeDir(streamModuleList, len(mods), modOff)
	writeDir(streamThreadList, len(threads), threadOff)

	if len(buf) != streamsStart {
		t.Fatalf("header+directory length mismatch: got %d, want %d", len(buf), streamsStart)
	}
	_ = pad

	buf = append(buf, memInfo...)
	buf = append(buf, mem64...)
	buf = append(buf, mods...)
	buf = append(buf, threads...)

	return buf
}

func TestMinidumpParsesAmd64(t *testing.T) {
	data := buildMinidump(t, false)
	m, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	infos, err := m.MemoryInfos()
	if err != nil {
		t.Fatalf("MemoryInfos: %v", err)
	}
	if len(infos) != 1 || infos[0].BaseAddress != 0x10000 || infos[0].State != StateCommit {
		t.Fatalf("unexpected memory infos: %+v", infos)
	}

	mods, err := m.Modules()
	if err != nil {
		t.Fatalf("Modules: %v", err)
	}
	if len(mods) != 1 || mods[0].Path != "ntdll.dll" || mods[0].BaseAddress != 0x70000000 {
		t.Fatalf("unexpected modules: %+v", mods)
	}

	threads, err := m.Threads()
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(threads))
	}
	ctx := threads[0].Context
	if ctx.Bitness != Bitness64 {
		t.Fatalf("expected Bitness64, got %v", ctx.Bitness)
	}
	if ctx.Rax != 0xBBBBBBBBBBBBBBBB {
		t.Errorf("Rax = 0x%x, want 0xBBBBBBBBBBBBBBBB", ctx.Rax)
	}
	if ctx.Rip != 0x0000000140001000 {
		t.Errorf("Rip = 0x%x, want 0x140001000", ctx.Rip)
	}
	if threads[0].Teb != 0x7ffd0000 {
		t.Errorf("Teb = 0x%x, want 0x7ffd0000", threads[0].Teb)
	}

	reader, err := m.SegmentReader()
	if err != nil {
		t.Fatalf("SegmentReader: %v", err)
	}
	if err := reader.Seek(0x10000); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	payload, err := reader.Read(9)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(payload) != "THIS IS T" {
		t.Errorf("segment payload = %q", payload)
	}
}

func TestMinidumpParsesWow64Context(t *testing.T) {
	data := buildMinidump(t, true)
	m, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	threads, err := m.Threads()
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	ctx := threads[0].Context
	if ctx.Bitness != Bitness32 {
		t.Fatalf("expected Bitness32, got %v", ctx.Bitness)
	}
	if ctx.Rax != 0xAAAAAAAA {
		t.Errorf("Rax = 0x%x, want 0xAAAAAAAA", ctx.Rax)
	}
	if ctx.Rip != 0x00401000 {
		t.Errorf("Rip = 0x%x, want 0x401000", ctx.Rip)
	}
	if ctx.Rsp != 0x00130000 {
		t.Errorf("Rsp = 0x%x, want 0x130000", ctx.Rsp)
	}
}

func TestOpenBytesRejectsBadSignature(t *testing.T) {
	data := make([]byte, 64)
	if _, err := OpenBytes(data); err == nil {
		t.Fatal("expected error for bad signature, got nil")
	}
}

func TestOpenBytesRejectsTooSmall(t *testing.T) {
	if _, err := OpenBytes([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for too-small buffer, got nil")
	}
}

func TestSegmentReaderOutOfRange(t *testing.T) {
	data := buildMinidump(t, false)
	m, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	reader, err := m.SegmentReader()
	if err != nil {
		t.Fatalf("SegmentReader: %v", err)
	}
	if err := reader.Seek(0xdeadbeef); err == nil {
		t.Fatal("expected error seeking to unmapped VA")
	}
}
