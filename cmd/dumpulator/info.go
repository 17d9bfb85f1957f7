package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show module table summary and ntdll export count",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	bits := "x64"
	if s.Bitness() == 0 {
		bits = "wow64"
	}
	fmt.Printf("session %s  arch=%s\n\n", s.ID, bits)

	fmt.Println("modules:")
	for _, m := range s.Modules.All() {
		fmt.Printf("  0x%016x  %-10d  %-24s  %d exports\n", m.Base, m.Size, m.Name, len(m.Exports))
	}

	if ntdll, ok := s.Modules.Find("ntdll.dll"); ok {
		fmt.Printf("\nntdll.dll exports: %d\n", len(ntdll.Exports))
	}

	return nil
}
