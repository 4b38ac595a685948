package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	address string
	port    int
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:     "emexctl",
	Short:   "Drive emexd scenario runs and batches",
	Long:    `emexctl submits EMOE scenarios to a running emexd daemon, pumps their scripted events, and reports the outcome.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&address, "address", "127.0.0.1", "emexd client-listen address")
	rootCmd.PersistentFlags().IntVar(&port, "port", 49901, "emexd client-listen port")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(shellCmd)
}

// Commands are defined in separate files:
// - runCmd in run.go
// - batchCmd in batch.go
// - shellCmd in shell.go

// Exit codes, matching spec's CLI contract.
const (
	exitOK               = 0
	exitFileNotFound     = 1
	exitArgumentConflict = 2
	exitPathConflict     = 3
	exitDuplicateName    = 4
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
