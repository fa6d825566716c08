package bus

// Test helper methods for bus testing

// SetFrameBufferForTesting sets a frame buffer for testing purposes
func (b *Bus) SetFrameBufferForTesting(frameBuffer [256 * 240]uint32) {
	if b.PPU != nil {
		b.PPU.SetFrameBufferForTesting(frameBuffer)
	}
}

// StepWithError runs one CPU cycle via Step and reports the CPU's fatal
// decode error, if any (exposed for testing harnesses that want to detect
// an UnknownOpcode without inspecting the CPU directly).
func (b *Bus) StepWithError() error {
	b.Step()
	if b.CPU != nil {
		return b.CPU.Err()
	}
	return nil
}
