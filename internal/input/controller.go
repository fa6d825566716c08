// Package input implements the NES's shift-register controller ports.
package input

// Button represents NES controller buttons.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

const (
	A      = ButtonA
	B      = ButtonB
	Select = ButtonSelect
	Start  = ButtonStart
	Up     = ButtonUp
	Down   = ButtonDown
	Left   = ButtonLeft
	Right  = ButtonRight
)

// Controller is one NES controller port: an 8-bit shift register loaded
// from the live button state on strobe, shifted out one bit per read.
type Controller struct {
	buttons uint8

	shiftRegister  uint8
	strobe         bool
	buttonSnapshot uint8
	bitPosition    uint8
}

// New creates a Controller with no buttons pressed.
func New() *Controller {
	return &Controller{}
}

// SetButton sets or clears a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons sets all eight button states at once, in A,B,Select,Start,
// Up,Down,Left,Right order.
func (c *Controller) SetButtons(buttons [8]bool) {
	c.buttons = 0
	order := [8]Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}
	for i, pressed := range buttons {
		if pressed {
			c.buttons |= uint8(order[i])
		}
	}
}

// IsPressed reports whether button is currently held.
func (c *Controller) IsPressed(button Button) bool {
	return (c.buttons & uint8(button)) != 0
}

// Write handles a write to the controller's strobe register. While strobe
// is held high the shift register continuously reloads from the live
// button state; the falling edge latches the snapshot that subsequent
// reads will shift out.
func (c *Controller) Write(value uint8) {
	wasStrobe := c.strobe
	c.strobe = (value & 1) != 0

	if c.strobe {
		c.buttonSnapshot = c.buttons
		c.shiftRegister = c.buttons
		c.bitPosition = 0
	} else if wasStrobe {
		c.buttonSnapshot = c.buttons
		c.shiftRegister = c.buttonSnapshot
		c.bitPosition = 0
	}
}

// Read shifts out the next button bit. While strobe is held high, every
// read returns button A's live state. After the 8 button bits have been
// read, the register reports a steady 1 on further reads, matching real
// 4021 shift-register behavior.
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.bitPosition = 0
		return c.buttonSnapshot & 1
	}

	if c.bitPosition >= 8 {
		c.bitPosition++
		return 1
	}

	result := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitPosition++
	return result
}

// Reset clears all controller state, including held buttons.
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
	c.buttonSnapshot = 0
	c.bitPosition = 0
}

// GetBitPosition reports the current shift position, for tests.
func (c *Controller) GetBitPosition() uint8 {
	return c.bitPosition
}

// InputState holds both controller ports. $4016 strobes and reads
// controller 1; $4017 reads controller 2 but shares the strobe line
// wired to $4016.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates both controller ports, unpressed.
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Reset resets both controllers.
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// SetButtons1 sets all button states for controller 1.
func (is *InputState) SetButtons1(buttons [8]bool) {
	is.Controller1.SetButtons(buttons)
}

// SetButtons2 sets all button states for controller 2.
func (is *InputState) SetButtons2(buttons [8]bool) {
	is.Controller2.SetButtons(buttons)
}

// Read reads from $4016 or $4017; any other address returns 0 (callers
// should not route non-controller addresses here).
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		// Bit 6 set reflects NES open-bus behavior observed on this port.
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write writes the shared strobe signal to $4016; both controllers latch
// or shift together.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
