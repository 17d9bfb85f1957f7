package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saitokouna/mrexodia-dumpulator/internal/config"
	"github.com/saitokouna/mrexodia-dumpulator/internal/dump"
	glog "github.com/saitokouna/mrexodia-dumpulator/internal/log"
	_ "github.com/saitokouna/mrexodia-dumpulator/internal/ntapi"
	"github.com/saitokouna/mrexodia-dumpulator/internal/session"
)

var (
	dumpPath   string
	configPath string
	scriptPath string
	budget     uint64
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dumpulator",
		Short: "Emulate Windows user-mode code from a full-process minidump",
		Long: `dumpulator loads a full-process Windows minidump, reconstructs its address
space and CPU state in the Unicorn engine, and runs guest code from it.

Examples:
  dumpulator info -d crash.dmp                  # session and module summary
  dumpulator call -d crash.dmp 0x140001000 1 2  # call a function, print cax
  dumpulator trace -d crash.dmp 0x140001000     # interactive instruction trace`,
		DisableFlagsInUseLine: true,
	}

	rootCmd.PersistentFlags().StringVarP(&dumpPath, "dump", "d", "", "path to the minidump file (required)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML session config")
	rootCmd.PersistentFlags().StringVar(&scriptPath, "script", "", "path to a JS session script")
	rootCmd.PersistentFlags().Uint64Var(&budget, "budget", 0, "instruction budget (0 = unbounded)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug logging")

	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newTraceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func newSession() (*session.Session, error) {
	if dumpPath == "" {
		return nil, fmt.Errorf("--dump is required")
	}
	src, err := dump.Open(dumpPath)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	glog.Init(verbose)

	opts := session.Options{
		InstructionBudget: budget,
		Logger:            glog.L,
		Config:            cfg,
		ScriptPath:        scriptPath,
	}
	return session.New(src, opts)
}

// parseAddr accepts both "0x..." and plain decimal addresses.
func parseAddr(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	return strconv.ParseUint(s, base, 64)
}
