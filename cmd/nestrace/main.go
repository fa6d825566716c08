// Command nestrace runs a ROM against a reference instruction trace and
// reports the first line where the emulator's CPU/PPU state diverges.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gones/internal/app"
	"gones/internal/trace"
)

func main() {
	var romPath, tracePath string
	var maxInstructions int

	root := &cobra.Command{
		Use:   "nestrace",
		Short: "Compare a ROM's execution against a reference trace file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(romPath, tracePath, maxInstructions)
		},
	}

	root.Flags().StringVar(&romPath, "rom", "", "path to the NES ROM to run (required)")
	root.Flags().StringVar(&tracePath, "trace", "", "path to the reference trace file (required)")
	root.Flags().IntVar(&maxInstructions, "max-instructions", 0, "stop after this many instructions (0 = run to end of trace)")
	root.MarkFlagRequired("rom")
	root.MarkFlagRequired("trace")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(romPath, tracePath string, maxInstructions int) error {
	application, err := app.NewApplicationWithMode("", true)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer application.Cleanup()

	if err := application.LoadROM(romPath); err != nil {
		return fmt.Errorf("load rom: %w", err)
	}

	f, err := os.Open(tracePath)
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	b := application.GetBus()
	lines, err := trace.Compare(b, f, maxInstructions)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	fmt.Printf("ok: %d instructions matched the reference trace\n", lines)
	return nil
}
