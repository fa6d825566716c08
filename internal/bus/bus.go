// Package bus implements the system bus for communication between NES components.
package bus

import (
	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/input"
	"gones/internal/interrupt"
	"gones/internal/memory"
	"gones/internal/ppu"
)

// Bus connects all NES components together and drives them in lockstep:
// one CPU cycle, three PPU cycles, and (on alternating cycles) one APU
// cycle, per the 1.789773 MHz CPU / 5.369318 MHz PPU / 0.894886 MHz APU
// NTSC clock relationship.
type Bus struct {
	CPU        *cpu.CPU
	PPU        *ppu.PPU
	APU        *apu.APU
	Memory     *memory.Memory
	Input      *input.InputState
	interrupts *interrupt.Line

	cpuCycles  uint64
	frameCount uint64

	// Execution logging for testing
	executionLog   []BusExecutionEvent
	loggingEnabled bool

	// Memory monitoring for debugging
	memoryWatchpoints map[uint16]uint8
	watchpointLogging bool
}

// New creates a new system bus with all components wired together, running
// with no cartridge loaded (reads as open bus until LoadCartridge).
func New() *Bus {
	interrupts := &interrupt.Line{}
	bus := &Bus{
		PPU:        ppu.New(interrupts),
		APU:        apu.New(),
		Input:      input.NewInputState(),
		interrupts: interrupts,

		memoryWatchpoints: make(map[uint16]uint8),
	}

	bus.Memory = memory.New(bus.PPU, bus.APU, nil)
	bus.Memory.SetInputSystem(bus.Input)

	bus.CPU = cpu.New(bus.Memory, bus.interrupts)

	bus.PPU.SetFrameCompleteCallback(bus.handleFrameComplete)
	bus.Memory.SetDMACallback(bus.TriggerOAMDMA)
	bus.APU.SetSampleFetchCallback(bus.fetchDMCSample)

	bus.Reset()

	return bus
}

// fetchDMCSample reads one sample byte of CPU address space for the DMC
// channel and charges the CPU the fixed 4-cycle DMA stall the real hardware
// pays for stealing a cycle from the CPU to do the fetch.
func (b *Bus) fetchDMCSample(address uint16) uint8 {
	b.CPU.AddStallCycles(4)
	return b.Memory.Read(address)
}

// Reset resets all components to their initial state.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.cpuCycles = 0
	b.frameCount = 0
	b.PPU.SetFrameCount(0)

	b.executionLog = make([]BusExecutionEvent, 0)
	b.loggingEnabled = false
	b.memoryWatchpoints = make(map[uint16]uint8)
	b.watchpointLogging = false
}

// handleFrameComplete is called by the PPU when a frame is naturally completed.
func (b *Bus) handleFrameComplete() {
	b.frameCount = b.PPU.GetFrameCount()
	b.interrupts.SetFrameReady()
}

// Step advances the system by exactly one CPU cycle: one CPU.Step(), three
// PPU.Step()s, and an APU.Step() on every other CPU cycle (the system's
// CPU 1 : PPU 3 : APU 0.5 clock ratio). Frame and IRQ sources are polled after the
// APU steps so a flag raised this cycle is visible to the CPU's interrupt
// check on the following Step.
func (b *Bus) Step() {
	preFrameCount := b.frameCount
	prePC := b.CPU.PC
	var preOpcode uint8
	atBoundary := b.CPU.AtInstructionBoundary()
	if atBoundary {
		preOpcode = b.Memory.Read(prePC)
	}

	b.CPU.Step()

	for i := 0; i < 3; i++ {
		b.PPU.Step()
	}

	if b.CPU.Parity() {
		b.APU.Step()
	}

	if b.APU.GetFrameIRQ() || b.APU.GetDMCIRQ() {
		b.interrupts.RaiseIRQ()
	} else {
		b.interrupts.ClearIRQ()
	}

	b.cpuCycles++

	if b.watchpointLogging && b.cpuCycles%1000 == 0 {
		b.CheckMemoryWatchpoints()
	}

	if b.loggingEnabled && atBoundary {
		event := BusExecutionEvent{
			StepNumber:    len(b.executionLog) + 1,
			CPUCycles:     b.cpuCycles,
			PPUCycles:     b.cpuCycles * 3,
			FrameCount:    b.frameCount,
			NMIProcessed:  b.frameCount > preFrameCount,
			PCValue:       prePC,
			InstructionOp: preOpcode,
		}
		b.executionLog = append(b.executionLog, event)
	}
}

// StepInstruction runs Step until the CPU has completed one full
// instruction (or interrupt service routine entry), for callers that want
// instruction-granularity execution rather than per-cycle.
func (b *Bus) StepInstruction() {
	b.Step()
	for !b.CPU.AtInstructionBoundary() {
		b.Step()
	}
}

// TriggerOAMDMA performs a 256-byte OAM DMA transfer from the given CPU
// page and reports the stall-cycle cost: a flat 514 cycles, whatever the
// CPU cycle parity at the start of the transfer.
func (b *Bus) TriggerOAMDMA(sourcePage uint8) int {
	sourceAddress := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		data := b.Memory.Read(sourceAddress + uint16(i))
		b.PPU.WriteOAM(uint8(i), data)
	}
	return 514
}

// LoadCartridge loads a cartridge into the system, rebuilding the memory
// map and CPU around it and resetting to the cartridge's reset vector.
func (b *Bus) LoadCartridge(cart memory.CartridgeInterface) {
	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)

	b.CPU = cpu.New(b.Memory, b.interrupts)

	mirrorMode := memory.MirrorHorizontal
	if c, ok := cart.(*cartridge.Cartridge); ok {
		switch c.GetMirrorMode() {
		case cartridge.MirrorHorizontal:
			mirrorMode = memory.MirrorHorizontal
		case cartridge.MirrorVertical:
			mirrorMode = memory.MirrorVertical
		case cartridge.MirrorSingleScreen0:
			mirrorMode = memory.MirrorSingleScreen0
		case cartridge.MirrorSingleScreen1:
			mirrorMode = memory.MirrorSingleScreen1
		case cartridge.MirrorFourScreen:
			mirrorMode = memory.MirrorFourScreen
		}
	}

	ppuMemory := memory.NewPPUMemory(cart, mirrorMode)
	b.PPU.SetMemory(ppuMemory)

	b.Memory.SetDMACallback(b.TriggerOAMDMA)
	b.APU.SetSampleFetchCallback(b.fetchDMCSample)

	b.CPU.Reset()
}

// Run runs the emulator for a specified number of frames.
func (b *Bus) Run(frames int) {
	targetFrames := b.frameCount + uint64(frames)
	for b.frameCount < targetFrames {
		b.Step()
	}
}

// RunCycles runs the emulator for a specified number of CPU cycles.
func (b *Bus) RunCycles(cycles uint64) {
	targetCycles := b.cpuCycles + cycles
	for b.cpuCycles < targetCycles {
		b.Step()
	}
}

// Frame executes one complete frame worth of CPU cycles.
func (b *Bus) Frame() {
	targetCycles := b.cpuCycles + 29781
	for b.cpuCycles < targetCycles {
		b.Step()
	}
}

// GetFrameRate returns the NTSC frame rate (~60.0988 Hz).
func (b *Bus) GetFrameRate() float64 {
	cpuFrequency := 1789773.0
	cpuCyclesPerFrame := cpuFrequency / 60.098803
	return cpuFrequency / cpuCyclesPerFrame
}

// GetFrameBuffer returns the current PPU frame buffer.
func (b *Bus) GetFrameBuffer() []uint32 {
	frameBuffer := b.PPU.GetFrameBuffer()
	return frameBuffer[:]
}

// TakeFrameReady reports and clears whether a new frame has completed
// since the last call, for a host render loop to poll.
func (b *Bus) TakeFrameReady() bool {
	return b.interrupts.TakeFrameReady()
}

// GetAudioSamples returns the current audio samples from the APU.
func (b *Bus) GetAudioSamples() []float32 {
	return b.APU.GetSamples()
}

// SetAudioSampleRate sets the target audio sample rate for the APU.
func (b *Bus) SetAudioSampleRate(rate int) {
	b.APU.SetSampleRate(rate)
}

// GetCycleCount returns the current CPU cycle count.
func (b *Bus) GetCycleCount() uint64 {
	return b.cpuCycles
}

// GetFrameCount returns the current frame count.
func (b *Bus) GetFrameCount() uint64 {
	return b.frameCount
}

// SetControllerButton sets the state of a single controller button.
// Accepts both 0-based and 1-based indexing for controller 1.
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

// SetControllerButtons sets all eight button states for a controller at once.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// GetInputState returns the input state for direct access.
func (b *Bus) GetInputState() *input.InputState {
	return b.Input
}

// GetExecutionLog returns the execution log for integration testing.
func (b *Bus) GetExecutionLog() []BusExecutionEvent {
	return b.executionLog
}

// EnableExecutionLogging enables execution logging for testing.
func (b *Bus) EnableExecutionLogging() {
	b.loggingEnabled = true
}

// DisableExecutionLogging disables execution logging.
func (b *Bus) DisableExecutionLogging() {
	b.loggingEnabled = false
}

// ClearExecutionLog clears the execution log.
func (b *Bus) ClearExecutionLog() {
	b.executionLog = make([]BusExecutionEvent, 0)
}

// BusExecutionEvent represents a single instruction boundary for testing.
type BusExecutionEvent struct {
	StepNumber    int
	CPUCycles     uint64
	PPUCycles     uint64
	FrameCount    uint64
	NMIProcessed  bool
	PCValue       uint16
	InstructionOp uint8
}

// GetCPUState returns the current CPU state for testing.
func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.cpuCycles,
		Flags: CPUFlags{
			N: b.CPU.N,
			V: b.CPU.V,
			B: b.CPU.B,
			D: b.CPU.D,
			I: b.CPU.I,
			Z: b.CPU.Z,
			C: b.CPU.C,
		},
	}
}

// CPUState represents a CPU state snapshot for testing.
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

// CPUFlags represents CPU status flags for testing.
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetPPUState returns the current PPU state for testing.
func (b *Bus) GetPPUState() PPUState {
	return PPUState{
		Scanline:    b.PPU.GetScanline(),
		Cycle:       b.PPU.GetCycle(),
		FrameCount:  b.frameCount,
		VBlankFlag:  b.PPU.IsVBlank(),
		RenderingOn: b.PPU.IsRenderingEnabled(),
	}
}

// PPUState represents a PPU state snapshot for testing.
type PPUState struct {
	Scanline    int
	Cycle       int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}

// AddMemoryWatchpoint adds a memory address to monitor for changes.
func (b *Bus) AddMemoryWatchpoint(address uint16) {
	if b.Memory != nil {
		b.memoryWatchpoints[address] = b.Memory.Read(address)
	}
}

// EnableWatchpointLogging enables or disables memory watchpoint logging.
func (b *Bus) EnableWatchpointLogging(enabled bool) {
	b.watchpointLogging = enabled
}

// CheckMemoryWatchpoints checks all watchpoints for changes and stores the
// new value of any that changed; nothing is added to the execution log.
func (b *Bus) CheckMemoryWatchpoints() {
	if !b.watchpointLogging || b.Memory == nil {
		return
	}
	for address, previousValue := range b.memoryWatchpoints {
		currentValue := b.Memory.Read(address)
		if currentValue != previousValue {
			b.memoryWatchpoints[address] = currentValue
		}
	}
}
