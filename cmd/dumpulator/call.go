package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <address> [args...]",
		Short: "Call a function at address in the restored address space",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCall,
	}
}

func runCall(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := parseAddr(args[0])
	if err != nil {
		return fmt.Errorf("parse address %q: %w", args[0], err)
	}

	callArgs := make([]uint64, 0, len(args)-1)
	for _, a := range args[1:] {
		v, err := parseAddr(a)
		if err != nil {
			return fmt.Errorf("parse argument %q: %w", a, err)
		}
		callArgs = append(callArgs, v)
	}

	result, err := s.Call(addr, callArgs)
	if err != nil {
		fmt.Printf("cax = 0x%x\n", result)
		return fmt.Errorf("call failed: %w", err)
	}
	fmt.Printf("cax = 0x%x\n", result)
	return nil
}
