// Package memory implements the NES CPU and PPU memory maps: address
// decoding, RAM/register mirroring, and the PPU's nametable/palette space.
package memory

// Memory represents the NES CPU-visible memory map ($0000-$FFFF).
type Memory struct {
	ram [0x800]uint8 // internal RAM, mirrored to $1FFF; zero on power-up

	ppuRegisters PPUInterface
	apuRegisters APUInterface
	inputSystem  InputInterface
	cartridge    CartridgeInterface

	dmaCallback func(uint8) int

	// openBusValue is the last value that appeared on the bus, returned
	// for reads of write-only APU/IO registers and of cartridge space
	// when no cartridge is loaded.
	openBusValue uint8
}

// PPUMemory is the PPU's own memory space ($0000-$3FFF): pattern tables
// (via the cartridge), 2KiB of nametable VRAM, and palette RAM.
type PPUMemory struct {
	vram       [0x800]uint8 // 2KiB VRAM; a 4-screen cartridge supplies its own extra RAM
	paletteRAM [32]uint8
	cartridge  CartridgeInterface
	mirroring  MirrorMode
}

// MirrorMode represents nametable mirroring mode.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// PPUInterface defines the interface for PPU register access.
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface defines the interface for APU register access.
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputInterface defines the interface for input system access.
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface defines the interface for cartridge access.
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// New creates a Memory instance wired to the PPU, APU and cartridge. RAM
// starts zeroed, matching the NES's actual (indeterminate but
// conventionally zero-modeled) power-up state.
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Memory {
	return &Memory{
		ppuRegisters: ppu,
		apuRegisters: apu,
		cartridge:    cart,
	}
}

// SetInputSystem sets the input system for controller access.
func (m *Memory) SetInputSystem(input InputInterface) {
	m.inputSystem = input
}

// SetDMACallback sets the OAM-DMA trigger. The callback returns the number
// of stall cycles the transfer costs (514),
// which Write reports back to its caller.
func (m *Memory) SetDMACallback(callback func(uint8) int) {
	m.dmaCallback = callback
}

// Read reads a byte from the given address.
func (m *Memory) Read(address uint16) uint8 {
	var value uint8

	switch {
	case address < 0x2000:
		value = m.ram[address&0x07FF]

	case address < 0x4000:
		value = m.ppuRegisters.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch {
		case address == 0x4015:
			value = m.apuRegisters.ReadStatus()
		case address == 0x4016 || address == 0x4017:
			if m.inputSystem != nil {
				value = m.inputSystem.Read(address)
			}
		case address >= 0x4018:
			value = 0 // Test mode registers ($4018-$401F), disabled
		default:
			value = m.openBusValue
		}

	case address >= 0x6000 && address < 0x8000:
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
		} else {
			value = m.openBusValue
		}

	case address < 0x8000:
		value = 0 // Cartridge expansion area ($4020-$5FFF), unmapped

	default:
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
		} else {
			value = m.openBusValue
		}
	}

	m.openBusValue = value
	return value
}

// Write writes a byte to the given address and reports the number of CPU
// stall cycles the write incurs (nonzero only for OAM DMA at $4014).
func (m *Memory) Write(address uint16, value uint8) int {
	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value

	case address < 0x4000:
		m.ppuRegisters.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch {
		case address == 0x4014:
			if m.dmaCallback != nil {
				return m.dmaCallback(value)
			}
			return m.performOAMDMA(value)
		case address == 0x4016:
			if m.inputSystem != nil {
				m.inputSystem.Write(address, value)
			}
		case address >= 0x4000 && address <= 0x4013, address == 0x4015, address == 0x4017:
			m.apuRegisters.WriteRegister(address, value)
		}
		// Test mode registers ($4018-$401F) are ignored.

	case address >= 0x6000 && address < 0x8000:
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}

	case address < 0x8000:
		// Cartridge expansion area ($4020-$5FFF), unmapped.

	default:
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}
	}
	return 0
}

// performOAMDMA runs the 256-byte page-to-OAM copy directly, used when no
// stall-aware DMA callback has been installed (e.g. in unit tests).
func (m *Memory) performOAMDMA(page uint8) int {
	baseAddress := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		m.ppuRegisters.WriteRegister(0x2004, m.Read(baseAddress+i))
	}
	return 514
}

// NewPPUMemory creates a PPU memory instance for the given cartridge and
// mirroring mode.
func NewPPUMemory(cart CartridgeInterface, mirroring MirrorMode) *PPUMemory {
	mem := &PPUMemory{
		cartridge: cart,
		mirroring: mirroring,
	}
	for i := 0; i < 32; i += 4 {
		mem.paletteRAM[i] = 0x0F
	}
	return mem
}

// SetMirroring updates the nametable mirroring mode, called when a mapper
// changes it at runtime (e.g. MMC1).
func (pm *PPUMemory) SetMirroring(mirroring MirrorMode) {
	pm.mirroring = mirroring
}

// Read reads from PPU memory space ($0000-$3FFF).
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		return pm.cartridge.ReadCHR(address)
	case address < 0x3000:
		return pm.readNametable(address)
	case address < 0x3F00:
		return pm.readNametable(address - 0x1000)
	default:
		return pm.readPalette(address)
	}
}

// Write writes to PPU memory space ($0000-$3FFF).
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		pm.cartridge.WriteCHR(address, value)
	case address < 0x3000:
		pm.writeNametable(address, value)
	case address < 0x3F00:
		pm.writeNametable(address-0x1000, value)
	default:
		pm.writePalette(address, value)
	}
}

func (pm *PPUMemory) readNametable(address uint16) uint8 {
	return pm.vram[pm.getNametableIndex(address)]
}

func (pm *PPUMemory) writeNametable(address uint16, value uint8) {
	pm.vram[pm.getNametableIndex(address)] = value
}

// getNametableIndex maps a $2000-$2FFF address into the 2KiB VRAM array
// according to the cartridge's mirroring mode.
func (pm *PPUMemory) getNametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	nametable := (address >> 10) & 3
	offset := address & 0x3FF

	switch pm.mirroring {
	case MirrorHorizontal:
		if nametable >= 2 {
			return 0x400 + offset
		}
		return offset

	case MirrorVertical:
		if nametable == 1 || nametable == 3 {
			return 0x400 + offset
		}
		return offset

	case MirrorSingleScreen0:
		return offset

	case MirrorSingleScreen1:
		return 0x400 + offset

	default:
		// Four-screen mirroring needs cartridge-supplied extra VRAM this
		// emulator doesn't model; fall back to vertical so something sane
		// still renders instead of indexing out of range.
		if nametable == 1 || nametable == 3 {
			return 0x400 + offset
		}
		return offset
	}
}

func (pm *PPUMemory) readPalette(address uint16) uint8 {
	index := paletteIndex(address)
	return pm.paletteRAM[index]
}

func (pm *PPUMemory) writePalette(address uint16, value uint8) {
	index := paletteIndex(address)
	pm.paletteRAM[index] = value
}

func paletteIndex(address uint16) uint16 {
	index := (address - 0x3F00) & 0x1F
	if index == 0x10 || index == 0x14 || index == 0x18 || index == 0x1C {
		index &= 0x0F
	}
	return index
}
