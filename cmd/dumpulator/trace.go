package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	glog "github.com/saitokouna/mrexodia-dumpulator/internal/log"
	internaltrace "github.com/saitokouna/mrexodia-dumpulator/internal/trace"
	"github.com/saitokouna/mrexodia-dumpulator/internal/ui/colorize"
)

var (
	traceMaxInsn int
	tracePlain   bool
)

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <address>",
		Short: "Run from address, showing a live instruction trace",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrace,
	}
	cmd.Flags().IntVarP(&traceMaxInsn, "num", "n", 2000, "max instructions to collect")
	cmd.Flags().BoolVar(&tracePlain, "plain", false, "print a colorized feed to stdout instead of the interactive viewer")
	return cmd
}

// traceLine is one collected, disassembled instruction plus whatever trace
// events (syscalls, faults) landed on it.
type traceLine struct {
	addr   uint64
	dis    string
	events []*internaltrace.Event
}

func runTrace(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := parseAddr(args[0])
	if err != nil {
		return fmt.Errorf("parse address %q: %w", args[0], err)
	}

	mode := 64
	if s.Bitness() == 0 {
		mode = 32
	}

	var collector []*internaltrace.Event
	glog.L.SetOnTrace(func(pc uint64, category, name, detail string) {
		e := internaltrace.NewEvent(pc, category, name, detail)
		internaltrace.DefaultEnricher(e)
		collector = append(collector, e)
	})

	var lines []traceLine
	if err := s.EnableTrace(); err != nil {
		return fmt.Errorf("enable trace: %w", err)
	}
	s.OnInstruction(func(pc uint64, code []byte) {
		if len(lines) >= traceMaxInsn {
			return
		}
		_, dis := disasm(code, pc, mode)
		events := collector
		collector = nil
		lines = append(lines, traceLine{addr: pc, dis: dis, events: events})
	})

	runErr := s.Start(addr, 0)

	if tracePlain || len(lines) == 0 {
		printPlain(lines, runErr)
		return nil
	}
	return runTUI(lines, runErr)
}

func printPlain(lines []traceLine, runErr error) {
	for _, l := range lines {
		fmt.Println(formatLine(l))
		if isBlockEnd(l.dis) {
			fmt.Println()
		}
	}
	fmt.Println()
	fmt.Print(colorize.Border("───────────────────────────────────────── "))
	fmt.Printf("%s insn", colorize.FuncName(fmt.Sprintf("%d", len(lines))))
	if runErr != nil {
		fmt.Printf("  %s", colorize.Error(runErr.Error()))
	}
	fmt.Println()
}

func formatLine(l traceLine) string {
	var b strings.Builder
	b.WriteString(colorize.Address(l.addr))
	b.WriteString("  ")
	b.WriteString(colorize.Instruction(l.dis))

	var comments []string
	var tags []string
	tags = append(tags, instructionTags(l.dis)...)
	for _, e := range l.events {
		if e.Detail != "" {
			comments = append(comments, e.Detail)
		}
		if e.Name != "" {
			comments = append(comments, e.Name)
		}
		tags = append(tags, e.Tags.Strings()...)
	}
	if len(tags) > 0 || len(comments) > 0 {
		var parts []string
		if len(tags) > 0 {
			parts = append(parts, strings.Join(tags, " "))
		}
		if len(comments) > 0 {
			parts = append(parts, strings.Join(comments, ", "))
		}
		b.WriteString("  ")
		b.WriteString(colorize.Comment("; " + strings.Join(parts, " ")))
	}
	return b.String()
}
