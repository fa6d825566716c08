package ppu

// evaluateSprites scans OAM for sprites visible on the current scanline,
// copying up to 8 into secondary OAM in priority order and setting the
// overflow flag once a 9th candidate is found.
func (p *PPU) evaluateSprites() {
	p.lastEvalScanline = p.scanline

	p.spriteCount = 0
	p.sprite0OnScanline = false

	for i := range p.secondaryOAM {
		p.secondaryOAM[i] = 0xFF
	}
	for i := range p.spriteIndexes {
		p.spriteIndexes[i] = 0xFF
	}

	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	found := 0
	for spriteIndex := 0; spriteIndex < 64; spriteIndex++ {
		base := spriteIndex * 4
		sY := int(p.oam[base])
		tile := p.oam[base+1]
		attr := p.oam[base+2]
		sX := p.oam[base+3]

		if p.scanline < sY+1 || p.scanline >= sY+1+spriteHeight {
			continue
		}

		if found < 8 {
			dst := found * 4
			p.secondaryOAM[dst] = uint8(sY)
			p.secondaryOAM[dst+1] = tile
			p.secondaryOAM[dst+2] = attr
			p.secondaryOAM[dst+3] = sX
			p.spriteIndexes[found] = uint8(spriteIndex)
			if spriteIndex == 0 {
				p.sprite0OnScanline = true
			}
			found++
		} else {
			p.spriteOverflow = true
			p.ppuStatus |= 0x20
			break
		}
	}

	p.spriteCount = uint8(found)
}

// renderSpritePixel returns the highest-priority (lowest OAM index)
// sprite pixel covering (pixelX, pixelY), or a transparent pixel if none.
func (p *PPU) renderSpritePixel(pixelX, pixelY int) SpritePixel {
	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	for i := 0; i < int(p.spriteCount); i++ {
		base := i * 4
		sY := int(p.secondaryOAM[base])
		tile := p.secondaryOAM[base+1]
		attr := p.secondaryOAM[base+2]
		sX := int(p.secondaryOAM[base+3])

		if pixelX < sX || pixelX >= sX+8 || pixelY < sY+1 || pixelY >= sY+1+spriteHeight {
			continue
		}

		spriteX := pixelX - sX
		spriteY := pixelY - (sY + 1)
		if attr&0x40 != 0 {
			spriteX = 7 - spriteX
		}
		if attr&0x80 != 0 {
			spriteY = spriteHeight - 1 - spriteY
		}

		colorIndex := p.spritePatternPixel(tile, spriteX, spriteY, spriteHeight)
		if colorIndex == 0 {
			continue
		}

		if p.isOriginalSprite0(i) && !p.sprite0Hit {
			p.checkSprite0Hit(pixelX, pixelY, colorIndex)
		}

		paletteIndex := attr & 0x03
		paletteAddr := 0x3F10 + uint16(paletteIndex)*4 + uint16(colorIndex)
		rgb := p.NESColorToRGB(p.memory.Read(paletteAddr))

		return SpritePixel{
			colorIndex:   colorIndex,
			paletteIndex: paletteIndex,
			rgbColor:     rgb,
			spriteIndex:  int8(i),
			priority:     attr&0x20 != 0,
			transparent:  false,
		}
	}

	return SpritePixel{transparent: true, spriteIndex: -1}
}

// spritePatternPixel reads the color index for one pixel of a sprite
// tile, handling the 8x16 top/bottom tile split.
func (p *PPU) spritePatternPixel(tile uint8, pixelX, pixelY, spriteHeight int) uint8 {
	var base uint16
	if spriteHeight == 8 {
		if p.ppuCtrl&0x08 != 0 {
			base = 0x1000
		}
	} else {
		if tile&0x01 != 0 {
			base = 0x1000
		}
		tile &= 0xFE
		if pixelY >= 8 {
			tile++
			pixelY -= 8
		}
	}

	addr := base + uint16(tile)*16 + uint16(pixelY)
	low := p.memory.Read(addr)
	high := p.memory.Read(addr + 8)

	shift := 7 - pixelX
	bit0 := (low >> shift) & 1
	bit1 := (high >> shift) & 1
	return (bit1 << 1) | bit0
}

// isOriginalSprite0 reports whether the sprite at secondary OAM slot i
// is OAM sprite 0, tracked separately since evaluation can reorder or
// drop sprites before they reach secondary OAM.
func (p *PPU) isOriginalSprite0(secondaryIndex int) bool {
	if secondaryIndex >= int(p.spriteCount) {
		return false
	}
	return p.spriteIndexes[secondaryIndex] == 0
}

// checkSprite0Hit sets the sprite-0-hit flag once sprite 0 and the
// background both produce an opaque pixel at the same coordinate,
// subject to the usual left-edge clipping and x==255 exclusion.
func (p *PPU) checkSprite0Hit(pixelX, pixelY int, spriteColorIndex uint8) {
	if p.sprite0Hit || !p.backgroundEnabled || !p.spritesEnabled {
		return
	}
	if pixelX >= 255 {
		return
	}
	if pixelX < 8 && (!p.showBGLeftColumn || !p.showSpritesLeft) {
		return
	}
	if spriteColorIndex == 0 {
		return
	}
	if !p.bgPixelValid || p.bgPixel.transparent {
		return
	}

	p.sprite0Hit = true
	p.ppuStatus |= 0x40
	p.debugf("[PPU] sprite 0 hit at (%d,%d) frame %d\n", pixelX, pixelY, p.frameCount)
}
