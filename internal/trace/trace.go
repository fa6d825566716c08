// Package trace renders a CPU/PPU state snapshot as a single reference-trace
// line and compares two such lines for divergence. The line format (PC,
// opcode bytes, disassembly, registers, PPU scanline/cycle) mirrors the
// nestest-style logs used to validate 6502 cores against a known-good run,
// matching the fields the bus already exposes via GetCPUState/GetPPUState.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gones/internal/bus"
	"gones/internal/cpu"
	"gones/internal/neserr"
)

// modeOperandBytes returns how many operand bytes (beyond the opcode itself)
// an addressing mode consumes, for rendering the instruction's raw bytes.
func modeOperandBytes(instr *cpu.Instruction) int {
	if instr == nil {
		return 0
	}
	return int(instr.Bytes) - 1
}

// Line returns one formatted trace line for the bus's current state,
// captured just before the CPU fetches its next instruction.
func Line(b *bus.Bus) string {
	cpuState := b.GetCPUState()
	ppuState := b.GetPPUState()

	opcode := b.Memory.Read(cpuState.PC)
	instr := b.CPU.Lookup(opcode)

	name := "???"
	operandBytes := 0
	if instr != nil {
		name = instr.Name
		operandBytes = modeOperandBytes(instr)
	}

	bytesStr := fmt.Sprintf("%02X", opcode)
	for i := 0; i < operandBytes; i++ {
		bytesStr += fmt.Sprintf(" %02X", b.Memory.Read(cpuState.PC+uint16(i)+1))
	}

	return fmt.Sprintf(
		"%04X  %-8s %-4s A:%02X X:%02X Y:%02X P:%02X SP:%02X PPU:%3d,%3d CYC:%d",
		cpuState.PC, bytesStr, name,
		cpuState.A, cpuState.X, cpuState.Y,
		statusByte(cpuState.Flags), cpuState.SP,
		ppuState.Scanline, ppuState.Cycle,
		cpuState.Cycles,
	)
}

// statusByte packs the CPUFlags snapshot back into the conventional 6502
// status byte layout, for display purposes only.
func statusByte(f bus.CPUFlags) uint8 {
	var v uint8
	if f.N {
		v |= 0x80
	}
	if f.V {
		v |= 0x40
	}
	v |= 0x20
	if f.B {
		v |= 0x10
	}
	if f.D {
		v |= 0x08
	}
	if f.I {
		v |= 0x04
	}
	if f.Z {
		v |= 0x02
	}
	if f.C {
		v |= 0x01
	}
	return v
}

// Compare reads reference trace lines from r, one per emulated instruction,
// and calls Line(b) after each instruction boundary to check for a match.
// It returns the zero-based line number and both lines on the first
// divergence, wrapping neserr.ErrTestDivergence.
func Compare(b *bus.Bus, r io.Reader, maxInstructions int) (int, error) {
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		if maxInstructions > 0 && lineNum >= maxInstructions {
			break
		}

		for !b.CPU.AtInstructionBoundary() {
			b.Step()
		}
		got := Line(b)
		want := strings.TrimRight(scanner.Text(), "\r\n")

		if got != want {
			return lineNum, fmt.Errorf("%w: line %d\n  want: %s\n  got:  %s", neserr.ErrTestDivergence, lineNum, want, got)
		}

		b.Step()
		for !b.CPU.AtInstructionBoundary() {
			b.Step()
		}
		lineNum++
	}

	if err := scanner.Err(); err != nil {
		return lineNum, fmt.Errorf("%w: %v", neserr.ErrIO, err)
	}
	return lineNum, nil
}
