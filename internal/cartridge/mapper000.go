package cartridge

// Mapper000 implements NROM: no bank switching, PRG-ROM either 16KiB
// (mirrored across both halves of $8000-$FFFF) or 32KiB (mapped
// directly), CHR-ROM or CHR-RAM mapped directly at $0000-$1FFF, and an
// 8KiB PRG-RAM window at $6000-$7FFF.
type Mapper000 struct {
	cart *Cartridge

	// prgAddrMask selects which bits of a $8000-$FFFF offset index into
	// prgROM: 0x3FFF mirrors a single 16KiB bank across both halves,
	// 0x7FFF maps two banks directly.
	prgAddrMask uint16
}

// NewMapper000 builds an NROM mapper for cart, sizing the PRG mirror
// mask from how many 16KiB banks the ROM actually has.
func NewMapper000(cart *Cartridge) *Mapper000 {
	m := &Mapper000{cart: cart, prgAddrMask: 0x7FFF}
	if len(cart.prgROM) <= 0x4000 {
		m.prgAddrMask = 0x3FFF
	}
	return m
}

// ReadPRG reads PRG-RAM ($6000-$7FFF) or PRG-ROM ($8000-$FFFF, mirrored
// per prgAddrMask).
func (m *Mapper000) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0x8000:
		offset := int(address & m.prgAddrMask)
		if offset >= len(m.cart.prgROM) {
			return 0
		}
		return m.cart.prgROM[offset]
	case address >= 0x6000:
		return m.cart.sram[address-0x6000]
	default:
		return 0
	}
}

// WritePRG writes PRG-RAM; NROM has no mapper registers, so writes into
// ROM space are simply dropped.
func (m *Mapper000) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
	}
}

// ReadCHR reads the 8KiB pattern-table space directly from CHR-ROM/RAM.
func (m *Mapper000) ReadCHR(address uint16) uint8 {
	if address >= 0x2000 || int(address) >= len(m.cart.chrROM) {
		return 0
	}
	return m.cart.chrROM[address]
}

// WriteCHR writes the pattern-table space when it's backed by CHR-RAM;
// CHR-ROM carts silently discard the write.
func (m *Mapper000) WriteCHR(address uint16, value uint8) {
	if !m.cart.hasCHRRAM || address >= 0x2000 || int(address) >= len(m.cart.chrROM) {
		return
	}
	m.cart.chrROM[address] = value
}
