// Package cpu implements the 6502 core used by the NES, stepped one CPU
// cycle at a time so it can be interleaved with the PPU and APU by the bus.
package cpu

import (
	"fmt"

	"gones/internal/interrupt"
	"gones/internal/neserr"
)

// AddressingMode identifies one of the 6502's effective-address forms.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// Instruction is one entry of the 256-slot opcode table.
type Instruction struct {
	Name   string
	Opcode uint8
	Bytes  uint8
	Cycles uint8
	Mode   AddressingMode
}

// MemoryInterface is the bus surface the CPU needs: byte reads/writes over
// the full 16-bit address space.
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8) int
}

// CPU is the 6502-family core (no binary-coded decimal, matching the 2A03).
type CPU struct {
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	PC uint16

	C, Z, I, D, B, V, N bool

	memory      MemoryInterface
	interrupts  *interrupt.Line
	instructions [256]*Instruction

	totalCycles     uint64
	remainingCycles int
	extraCycles     uint8
	parity          bool

	// lastErr records a fatal decode error (UnknownOpcode) for the host
	// loop to observe; the CPU itself never recovers from it.
	lastErr error
}

// New creates a CPU wired to the given bus and shared interrupt line.
func New(memory MemoryInterface, interrupts *interrupt.Line) *CPU {
	cpu := &CPU{
		memory:     memory,
		interrupts: interrupts,
		SP:         0xFD,
	}
	cpu.initInstructions()
	return cpu
}

// Reset runs the 7-cycle 6502 reset sequence: five dummy bus reads followed
// by the two reset-vector reads.
func (cpu *CPU) Reset() {
	cpu.A, cpu.X, cpu.Y = 0, 0, 0
	cpu.SP = 0xFD

	cpu.C, cpu.Z, cpu.V, cpu.N, cpu.D = false, false, false, false, false
	cpu.I = true
	cpu.B = true

	for i := 0; i < 5; i++ {
		cpu.memory.Read(cpu.PC)
	}

	low := uint16(cpu.memory.Read(resetVector))
	high := uint16(cpu.memory.Read(resetVector + 1))
	cpu.PC = (high << 8) | low

	cpu.totalCycles = 7
	cpu.remainingCycles = 0
	cpu.extraCycles = 0
	cpu.parity = false
	cpu.lastErr = nil
}

// Err reports the fatal decode error, if any, raised by the most recent
// Step call.
func (cpu *CPU) Err() error {
	return cpu.lastErr
}

// TotalCycles returns the monotone count of all emitted CPU cycles,
// including interrupt and DMA stall cycles.
func (cpu *CPU) TotalCycles() uint64 {
	return cpu.totalCycles
}

// Parity returns the CPU's cycle-parity bit, used by the bus to clock the
// APU at half rate.
func (cpu *CPU) Parity() bool {
	return cpu.parity
}

// AtInstructionBoundary reports whether the next Step call will fetch a new
// instruction (or service a pending interrupt) rather than burn a cycle of
// one already in flight. Used by instruction-level callers such as trace
// harnesses that want to run the CPU to completion of a single instruction.
func (cpu *CPU) AtInstructionBoundary() bool {
	return cpu.remainingCycles == 0
}

// AddStallCycles adds extra cycles to the in-flight instruction, used by
// the bus to account for OAM-DMA and DMC sample-fetch stalls.
func (cpu *CPU) AddStallCycles(n int) {
	cpu.remainingCycles += n
}

// Lookup returns the decoded instruction metadata for an opcode byte, or nil
// if the opcode is undefined. Used by trace tooling to render a mnemonic and
// operand width without duplicating the opcode table.
func (cpu *CPU) Lookup(opcode uint8) *Instruction {
	return cpu.instructions[opcode]
}

// Step advances the CPU by exactly one cycle: if an
// instruction is still in flight, just burn a cycle; otherwise service a
// pending interrupt or fetch/decode/execute the next instruction and prime
// remainingCycles for the cycles it still owes.
func (cpu *CPU) Step() {
	cpu.totalCycles++
	cpu.parity = !cpu.parity

	if cpu.remainingCycles > 0 {
		cpu.remainingCycles--
		return
	}

	if cpu.lastErr != nil {
		return
	}

	if cpu.interrupts.TakeNMI() {
		cpu.remainingCycles = cpu.serviceInterrupt(nmiVector, false) - 1
		return
	}
	if cpu.interrupts.IRQPending() && !cpu.I {
		cpu.remainingCycles = cpu.serviceInterrupt(irqVector, false) - 1
		return
	}

	opcode := cpu.memory.Read(cpu.PC)
	instruction := cpu.instructions[opcode]
	if instruction == nil {
		cpu.lastErr = fmt.Errorf("%w: $%02X at PC=$%04X", neserr.ErrUnknownOpcode, opcode, cpu.PC)
		return
	}

	address, pageCrossed := cpu.getOperandAddress(instruction.Mode)
	extra := cpu.executeInstruction(opcode, address, pageCrossed)

	if pageCrossed && isReadPageCrossPenalty(opcode) {
		extra++
	}

	cpu.extraCycles = extra
	cpu.remainingCycles += int(instruction.Cycles) + int(cpu.extraCycles) - 1
	cpu.extraCycles = 0
}

// isReadPageCrossPenalty reports whether opcode is one of the indexed read
// forms that costs an extra cycle when indexing crosses a page boundary.
// Writes (STA and the unofficial read-modify-write forms) never take this
// penalty, since their base cycle count already assumes the worst case.
func isReadPageCrossPenalty(opcode uint8) bool {
	switch opcode {
	case 0xBD, 0xB9, 0xB1, 0xBE, 0xBC, 0x7D, 0x79, 0x71, 0x3D, 0x39, 0x31,
		0x1D, 0x19, 0x11, 0x5D, 0x59, 0x51, 0xDD, 0xD9, 0xD1:
		return true
	case 0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC: // unofficial NOP, absolute,X
		return true
	case 0xBF, 0xB3: // LAX absolute,Y / (ind),Y
		return true
	default:
		return false
	}
}

// getOperandAddress returns the effective address for mode, advancing PC
// past the instruction's operand bytes, and reports whether an indexed
// access crossed a page boundary.
func (cpu *CPU) getOperandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		cpu.PC++
		return 0, false

	case Immediate:
		address := cpu.PC + 1
		cpu.PC += 2
		return address, false

	case ZeroPage:
		address := uint16(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2
		return address, false

	case ZeroPageX:
		base := cpu.memory.Read(cpu.PC + 1)
		address := uint16((base + cpu.X) & zeroPageMask)
		cpu.PC += 2
		return address, false

	case ZeroPageY:
		base := cpu.memory.Read(cpu.PC + 1)
		address := uint16((base + cpu.Y) & zeroPageMask)
		cpu.PC += 2
		return address, false

	case Relative:
		offset := int8(cpu.memory.Read(cpu.PC + 1))
		oldPC := cpu.PC + 2
		newPC := uint16(int32(oldPC) + int32(offset))
		cpu.PC = oldPC
		pageCrossed := (oldPC & pageMask) != (newPC & pageMask)
		return newPC, pageCrossed

	case Absolute:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		cpu.PC += 3
		return (high << 8) | low, false

	case AbsoluteX:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		address := base + uint16(cpu.X)
		cpu.PC += 3
		return address, (base & pageMask) != (address & pageMask)

	case AbsoluteY:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		address := base + uint16(cpu.Y)
		cpu.PC += 3
		return address, (base & pageMask) != (address & pageMask)

	case Indirect: // JMP only
		lowPtr := uint16(cpu.memory.Read(cpu.PC + 1))
		highPtr := uint16(cpu.memory.Read(cpu.PC + 2))
		ptr := (highPtr << 8) | lowPtr

		var address uint16
		if (ptr & zeroPageMask) == zeroPageMask {
			// JMP (ind) bug: high byte wraps to the start of the same page.
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr & pageMask))
			address = (high << 8) | low
		} else {
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr + 1))
			address = (high << 8) | low
		}
		cpu.PC += 3
		return address, false

	case IndexedIndirect: // (zp,X)
		base := cpu.memory.Read(cpu.PC + 1)
		ptr := (base + cpu.X) & zeroPageMask
		low := uint16(cpu.memory.Read(uint16(ptr)))
		high := uint16(cpu.memory.Read(uint16((ptr + 1) & zeroPageMask)))
		cpu.PC += 2
		return (high << 8) | low, false

	case IndirectIndexed: // (zp),Y
		ptr := uint16(cpu.memory.Read(cpu.PC + 1))
		low := uint16(cpu.memory.Read(ptr))
		high := uint16(cpu.memory.Read((ptr + 1) & zeroPageMask))
		base := (high << 8) | low
		address := base + uint16(cpu.Y)
		cpu.PC += 2
		return address, (base & pageMask) != (address & pageMask)

	default:
		return 0, false
	}
}

// write performs a bus write and folds any returned stall cycles (OAM-DMA
// at $4014) directly into the in-flight instruction's cycle count.
func (cpu *CPU) write(address uint16, value uint8) {
	if stall := cpu.memory.Write(address, value); stall > 0 {
		cpu.AddStallCycles(stall)
	}
}

func (cpu *CPU) push(value uint8) {
	cpu.write(stackBase+uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(value uint16) {
	cpu.push(uint8(value >> 8))
	cpu.push(uint8(value & 0xFF))
}

func (cpu *CPU) popWord() uint16 {
	low := uint16(cpu.pop())
	high := uint16(cpu.pop())
	return (high << 8) | low
}

func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = (value & nFlagMask) != 0
}

// serviceInterrupt runs the shared 7-cycle NMI/IRQ sequence: push PCH, PCL,
// P (with B=0), set I, load PC from vector. Returns the
// cycle cost.
func (cpu *CPU) serviceInterrupt(vector uint16, _ bool) int {
	cpu.pushWord(cpu.PC)
	status := cpu.GetStatusByte()&^uint8(bFlagMask) | unusedMask
	cpu.push(status)
	cpu.I = true
	low := uint16(cpu.memory.Read(vector))
	high := uint16(cpu.memory.Read(vector + 1))
	cpu.PC = (high << 8) | low
	return 7
}

// GetStatusByte packs the flag bits into the 6502 status byte. Bit 5 is
// always read as 1.
func (cpu *CPU) GetStatusByte() uint8 {
	var status uint8
	if cpu.N {
		status |= nFlagMask
	}
	if cpu.V {
		status |= vFlagMask
	}
	status |= unusedMask
	if cpu.B {
		status |= bFlagMask
	}
	if cpu.D {
		status |= dFlagMask
	}
	if cpu.I {
		status |= iFlagMask
	}
	if cpu.Z {
		status |= zFlagMask
	}
	if cpu.C {
		status |= cFlagMask
	}
	return status
}

// SetStatusByte unpacks a status byte into the flag bits. PLP/RTI ignore
// the B bit they restore; callers that need B semantics (BRK) set cpu.B
// directly instead of going through this path.
func (cpu *CPU) SetStatusByte(status uint8) {
	cpu.N = (status & nFlagMask) != 0
	cpu.V = (status & vFlagMask) != 0
	cpu.D = (status & dFlagMask) != 0
	cpu.I = (status & iFlagMask) != 0
	cpu.Z = (status & zFlagMask) != 0
	cpu.C = (status & cFlagMask) != 0
}
