package ppu

// renderCycle drives one dot's worth of background/sprite work: the
// 8-dot fetch cadence that feeds the background shift registers, the
// loopy v/t copies, sprite evaluation, and the final pixel composite.
//
// Background tile data is fetched two tiles ahead of the scanline's start
// (dots 321-336 of the previous scanline) so that by dot 1 of the next
// scanline the shift registers already hold the first tile's pattern and
// attribute bits, matching real PPU pipelining.
func (p *PPU) renderCycle() {
	preRender := p.scanline == -1
	visible := p.scanline >= 0 && p.scanline < 240
	if !preRender && !visible {
		return
	}

	if p.renderingEnabled && p.memory != nil {
		fetching := (p.cycle >= 1 && p.cycle <= 256) || (p.cycle >= 321 && p.cycle <= 336)
		if fetching {
			p.shiftBackgroundRegisters()
			switch p.cycle % 8 {
			case 1:
				p.fetchNametableByte()
			case 3:
				p.fetchAttributeByte()
			case 5:
				p.fetchPatternLow()
			case 7:
				p.fetchPatternHigh()
			case 0:
				p.loadBackgroundShifters()
				p.incrementX()
			}
		}

		if p.cycle == 256 {
			p.incrementY()
		}
		if p.cycle == 257 {
			p.copyX()
		}
		if preRender && p.cycle >= 280 && p.cycle <= 304 {
			p.copyY()
		}
	}

	if !visible {
		return
	}

	if p.spritesEnabled && p.cycle == 1 && p.lastEvalScanline != p.scanline {
		p.evaluateSprites()
	}

	if p.cycle < 1 || p.cycle > 256 {
		return
	}
	pixelX := p.cycle - 1
	pixelY := p.scanline

	bg := SpritePixel{transparent: true}
	if p.backgroundEnabled && (pixelX >= 8 || p.showBGLeftColumn) {
		bg = p.currentBackgroundPixel()
	}
	p.bgPixel = bg
	p.bgPixelValid = true

	sprite := SpritePixel{transparent: true, spriteIndex: -1}
	if p.spritesEnabled && (pixelX >= 8 || p.showSpritesLeft) {
		sprite = p.renderSpritePixel(pixelX, pixelY)
	}

	p.frameBuffer[pixelY*256+pixelX] = p.compositeFinalPixel(bg, sprite)
}

// fetchNametableByte loads the tile ID for the next tile into the fetch
// latch, reading through v's current coarse X/Y and nametable select.
func (p *PPU) fetchNametableByte() {
	addr := 0x2000 | (p.v & 0x0FFF)
	p.bgNextTileID = p.memory.Read(addr)
}

// fetchAttributeByte loads the 2-bit palette quadrant for the next tile.
func (p *PPU) fetchAttributeByte() {
	addr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
	attr := p.memory.Read(addr)
	if p.getCoarseY()&0x02 != 0 {
		attr >>= 4
	}
	if p.getCoarseX()&0x02 != 0 {
		attr >>= 2
	}
	p.bgNextAttribute = attr & 0x03
}

func (p *PPU) patternTableBase() uint16 {
	if p.ppuCtrl&0x10 != 0 {
		return 0x1000
	}
	return 0x0000
}

// fetchPatternLow loads the low bit-plane byte of the next tile's row.
func (p *PPU) fetchPatternLow() {
	addr := p.patternTableBase() + uint16(p.bgNextTileID)*16 + uint16(p.getFineY())
	p.bgNextPatternLo = p.memory.Read(addr)
}

// fetchPatternHigh loads the high bit-plane byte of the next tile's row.
func (p *PPU) fetchPatternHigh() {
	addr := p.patternTableBase() + uint16(p.bgNextTileID)*16 + uint16(p.getFineY()) + 8
	p.bgNextPatternHi = p.memory.Read(addr)
}

// shiftBackgroundRegisters advances all four shift registers by one bit,
// run every dot of the fetch window so fine-X selects a moving window.
func (p *PPU) shiftBackgroundRegisters() {
	p.bgShiftPatternLo <<= 1
	p.bgShiftPatternHi <<= 1
	p.bgShiftAttribLo <<= 1
	p.bgShiftAttribHi <<= 1
}

// loadBackgroundShifters merges the latched next-tile bytes into the low
// byte of each shift register, leaving the high byte (the tile currently
// being displayed) untouched.
func (p *PPU) loadBackgroundShifters() {
	p.bgShiftPatternLo = (p.bgShiftPatternLo & 0xFF00) | uint16(p.bgNextPatternLo)
	p.bgShiftPatternHi = (p.bgShiftPatternHi & 0xFF00) | uint16(p.bgNextPatternHi)

	var attrLo, attrHi uint16
	if p.bgNextAttribute&0x01 != 0 {
		attrLo = 0xFF
	}
	if p.bgNextAttribute&0x02 != 0 {
		attrHi = 0xFF
	}
	p.bgShiftAttribLo = (p.bgShiftAttribLo & 0xFF00) | attrLo
	p.bgShiftAttribHi = (p.bgShiftAttribHi & 0xFF00) | attrHi
}

// currentBackgroundPixel reads the background sample for this dot by
// offsetting the shift registers by fine X: bit 15 is the current pixel
// when x==0, bit 8 when x==7.
func (p *PPU) currentBackgroundPixel() SpritePixel {
	bit := uint16(0x8000) >> p.x

	var lo, hi uint8
	if p.bgShiftPatternLo&bit != 0 {
		lo = 1
	}
	if p.bgShiftPatternHi&bit != 0 {
		hi = 1
	}
	colorIndex := (hi << 1) | lo

	var aLo, aHi uint8
	if p.bgShiftAttribLo&bit != 0 {
		aLo = 1
	}
	if p.bgShiftAttribHi&bit != 0 {
		aHi = 1
	}
	paletteIndex := (aHi << 1) | aLo

	var paletteAddr uint16
	if colorIndex == 0 {
		paletteAddr = 0x3F00
	} else {
		paletteAddr = 0x3F00 + uint16(paletteIndex)*4 + uint16(colorIndex)
	}
	rgb := p.NESColorToRGB(p.memory.Read(paletteAddr))

	return SpritePixel{
		colorIndex:   colorIndex,
		paletteIndex: paletteIndex,
		rgbColor:     rgb,
		spriteIndex:  -1,
		transparent:  colorIndex == 0,
	}
}

// SpritePixel is a single rendered sample from the background pipeline
// or a sprite, ready to be composited onto the frame buffer.
type SpritePixel struct {
	colorIndex   uint8  // 0-3, 0 is transparent
	paletteIndex uint8  // palette select
	rgbColor     uint32 // resolved RGB
	spriteIndex  int8   // originating sprite (-1 for background)
	priority     bool   // sprite behind-background flag
	transparent  bool
}

// compositeFinalPixel resolves background/sprite priority per hardware
// rules: sprite's own priority bit wins unless the background pixel is
// itself transparent.
func (p *PPU) compositeFinalPixel(background, sprite SpritePixel) uint32 {
	if sprite.transparent {
		if background.transparent {
			return p.NESColorToRGB(p.memory.Read(0x3F00))
		}
		return background.rgbColor
	}
	if background.transparent {
		return sprite.rgbColor
	}
	if sprite.priority {
		return background.rgbColor
	}
	return sprite.rgbColor
}
