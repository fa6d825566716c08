// Package interrupt implements the small shared flag set that couples the
// CPU, PPU and APU: nmi_pending, irq_pending and frame_ready.
package interrupt

// Line is the shared interrupt/frame-ready flag set. PPU sets NMI and
// FrameReady; IRQ follows the APU's frame and DMC IRQ flags, raised and
// retracted through RaiseIRQ/ClearIRQ; only the CPU clears NMI, via
// TakeNMI. FrameReady is cleared by
// whoever consumes a completed frame (the host loop).
type Line struct {
	nmiPending bool
	irqPending bool
	frameReady bool
}

// RaiseNMI is called by the PPU at the VBlank edge (241,1) when NMI output
// is enabled.
func (l *Line) RaiseNMI() {
	l.nmiPending = true
}

// RaiseIRQ is called by the bus while the APU frame sequencer or DMC IRQ
// flag is set. IRQ is level-sensitive: it stays pending until the
// source is acknowledged by re-reading its status register, independent of
// this flag.
func (l *Line) RaiseIRQ() {
	l.irqPending = true
}

// ClearIRQ lets an IRQ source retract its request (e.g. $4015 write
// disabling frame IRQ).
func (l *Line) ClearIRQ() {
	l.irqPending = false
}

// TakeNMI reports whether an NMI is pending and clears it atomically. NMI is
// edge-triggered: once taken, it is gone until RaiseNMI is called again.
func (l *Line) TakeNMI() bool {
	pending := l.nmiPending
	l.nmiPending = false
	return pending
}

// IRQPending reports the level-sensitive IRQ line state without clearing
// it; the CPU gates service on its own I flag, and the source itself
// retracts the request via ClearIRQ.
func (l *Line) IRQPending() bool {
	return l.irqPending
}

// SetFrameReady is called by the PPU when a full frame has been produced.
func (l *Line) SetFrameReady() {
	l.frameReady = true
}

// TakeFrameReady reports and clears the frame-ready flag.
func (l *Line) TakeFrameReady() bool {
	ready := l.frameReady
	l.frameReady = false
	return ready
}
