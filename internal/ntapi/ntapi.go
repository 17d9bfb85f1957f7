// Package ntapi is a starter library of Nt*/Zw* syscall handlers. The body
// of this library is declared external to the emulation core: the core
// only needs its registration and dispatch plumbing, not a complete
// implementation of every documented syscall. This package supplies enough
// handlers — file, process, and memory management — for a guest to do
// something observable end to end.
package ntapi

import (
	"github.com/saitokouna/mrexodia-dumpulator/internal/session"
)

// NTSTATUS values used by the handlers below.
const (
	StatusSuccess            = 0x00000000
	StatusInvalidHandle      = 0xC0000008
	StatusObjectNameNotFound = 0xC0000034
	StatusInfoLengthMismatch = 0xC0000004
	StatusInvalidParameter   = 0xC000000D
	StatusNotImplemented     = 0xC0000002
)

func init() {
	session.RegisterHandler(&session.Handler{
		Name: "ZwClose",
		Args: []session.ArgDescriptor{{Kind: session.ArgHandle}},
		Func: ntClose,
	})
	session.RegisterHandler(&session.Handler{
		Name: "ZwCreateFile",
		Args: []session.ArgDescriptor{
			{Kind: session.ArgPtr}, {Kind: session.ArgUint, Size: 4}, {Kind: session.ArgPtr},
			{Kind: session.ArgPtr}, {Kind: session.ArgPtr}, {Kind: session.ArgUint, Size: 4},
			{Kind: session.ArgUint, Size: 4}, {Kind: session.ArgUint, Size: 4},
			{Kind: session.ArgUint, Size: 4}, {Kind: session.ArgPtr}, {Kind: session.ArgUint, Size: 4},
		},
		Func: ntCreateFile,
	})
	session.RegisterHandler(&session.Handler{
		Name: "ZwOpenFile",
		Args: []session.ArgDescriptor{
			{Kind: session.ArgPtr}, {Kind: session.ArgUint, Size: 4}, {Kind: session.ArgPtr},
			{Kind: session.ArgPtr}, {Kind: session.ArgUint, Size: 4}, {Kind: session.ArgUint, Size: 4},
		},
		Func: ntOpenFile,
	})
	session.RegisterHandler(&session.Handler{
		Name: "ZwQueryInformationProcess",
		Args: []session.ArgDescriptor{
			{Kind: session.ArgHandle}, {Kind: session.ArgUint, Size: 4}, {Kind: session.ArgPtr},
			{Kind: session.ArgUint, Size: 4}, {Kind: session.ArgPtr},
		},
		Func: ntQueryInformationProcess,
	})
	session.RegisterHandler(&session.Handler{
		Name: "ZwAllocateVirtualMemory",
		Args: []session.ArgDescriptor{
			{Kind: session.ArgHandle}, {Kind: session.ArgPtr}, {Kind: session.ArgUint, Size: 0},
			{Kind: session.ArgPtr}, {Kind: session.ArgUint, Size: 4}, {Kind: session.ArgUint, Size: 4},
		},
		Func: ntAllocateVirtualMemory,
	})
	session.RegisterHandler(&session.Handler{
		Name: "ZwFreeVirtualMemory",
		Args: []session.ArgDescriptor{
			{Kind: session.ArgHandle}, {Kind: session.ArgPtr}, {Kind: session.ArgPtr}, {Kind: session.ArgUint, Size: 4},
		},
		Func: ntFreeVirtualMemory,
	})
	session.RegisterHandler(&session.Handler{
		Name: "ZwProtectVirtualMemory",
		Args: []session.ArgDescriptor{
			{Kind: session.ArgHandle}, {Kind: session.ArgPtr}, {Kind: session.ArgPtr},
			{Kind: session.ArgUint, Size: 4}, {Kind: session.ArgPtr},
		},
		Func: ntProtectVirtualMemory,
	})
	session.RegisterHandler(&session.Handler{
		Name: "ZwQuerySystemInformation",
		Args: []session.ArgDescriptor{
			{Kind: session.ArgUint, Size: 4}, {Kind: session.ArgPtr}, {Kind: session.ArgUint, Size: 4}, {Kind: session.ArgPtr},
		},
		Func: ntQuerySystemInformation,
	})
	session.RegisterHandler(&session.Handler{
		Name: "ZwTerminateProcess",
		Args: []session.ArgDescriptor{
			{Kind: session.ArgHandle}, {Kind: session.ArgUint, Size: 4},
		},
		Func: ntTerminateProcess,
	})
}

func ntClose(s *session.Session) (uint64, error) {
	h, err := s.Args.Get(0)
	if err != nil {
		return StatusInvalidParameter, nil
	}
	if err := s.Handles.Close(h); err != nil {
		return StatusInvalidHandle, nil
	}
	return StatusSuccess, nil
}

func ntCreateFile(s *session.Session) (uint64, error) {
	handlePtr, err := s.Args.Get(0)
	if err != nil {
		return StatusInvalidParameter, nil
	}
	h := s.Handles.New(&session.HandleObject{Kind: session.HandleFile, Name: "ntcreatefile"})
	if err := s.WriteGuestPtr(handlePtr, h); err != nil {
		return StatusInvalidParameter, nil
	}
	return StatusSuccess, nil
}

func ntOpenFile(s *session.Session) (uint64, error) {
	handlePtr, err := s.Args.Get(0)
	if err != nil {
		return StatusInvalidParameter, nil
	}
	h := s.Handles.New(&session.HandleObject{Kind: session.HandleFile, Name: "ntopenfile"})
	if err := s.WriteGuestPtr(handlePtr, h); err != nil {
		return StatusInvalidParameter, nil
	}
	return StatusSuccess, nil
}

func ntQueryInformationProcess(s *session.Session) (uint64, error) {
	processHandle, _ := s.Args.Get(0)
	if _, ok := s.Handles.Get(processHandle); !ok {
		return StatusInvalidHandle, nil
	}
	// Starter set doesn't model any ProcessInformationClass; report that the
	// caller's buffer length doesn't match rather than silently succeeding.
	return StatusInfoLengthMismatch, nil
}

func ntAllocateVirtualMemory(s *session.Session) (uint64, error) {
	regionSizePtr, err := s.Args.Get(3)
	if err != nil {
		return StatusInvalidParameter, nil
	}
	regionSize, err := s.ReadGuestPtr(regionSizePtr)
	if err != nil || regionSize == 0 {
		return StatusInvalidParameter, nil
	}

	base, err := s.Memory.Allocate(regionSize)
	if err != nil {
		return StatusInvalidParameter, nil
	}
	base -= regionSize // Allocate returns the address past the block.

	baseAddrPtr, err := s.Args.Get(1)
	if err != nil {
		return StatusInvalidParameter, nil
	}
	if err := s.WriteGuestPtr(baseAddrPtr, base); err != nil {
		return StatusInvalidParameter, nil
	}
	return StatusSuccess, nil
}

func ntFreeVirtualMemory(s *session.Session) (uint64, error) {
	// The bump allocator this starter set is built on never reclaims
	// memory; report success without actually unmapping anything; enough
	// callers only check the status and never touch the freed region again.
	return StatusSuccess, nil
}

func ntProtectVirtualMemory(s *session.Session) (uint64, error) {
	return StatusSuccess, nil
}

func ntQuerySystemInformation(s *session.Session) (uint64, error) {
	return StatusInfoLengthMismatch, nil
}

func ntTerminateProcess(s *session.Session) (uint64, error) {
	status, err := s.Args.Get(1)
	if err != nil {
		status = 0
	}
	exitCode := int64(int32(status))
	s.Stop(&exitCode)
	return StatusSuccess, nil
}
