// Package ppu implements the Picture Processing Unit for the NES (2C02).
package ppu

import (
	"fmt"

	"gones/internal/interrupt"
	"gones/internal/memory"
)

// PPU represents the NES Picture Processing Unit (2C02).
type PPU struct {
	// CPU-visible registers
	ppuCtrl   uint8 // $2000 - PPUCTRL
	ppuMask   uint8 // $2001 - PPUMASK
	ppuStatus uint8 // $2002 - PPUSTATUS
	oamAddr   uint8 // $2003 - OAMADDR
	oamData   uint8 // $2004 - OAMDATA (read/write buffer)
	ppuScroll uint8 // $2005 - PPUSCROLL (write buffer)
	ppuAddr   uint8 // $2006 - PPUADDR (write buffer)
	ppuData   uint8 // $2007 - PPUDATA (read/write buffer)

	// Loopy scroll registers
	v uint16 // current VRAM address (15 bits)
	t uint16 // temporary VRAM address / address latch (15 bits)
	x uint8  // fine X scroll (3 bits)
	w bool   // write toggle, shared by PPUSCROLL/PPUADDR

	memory *memory.PPUMemory

	// Timing
	scanline   int // -1 (pre-render) .. 260
	cycle      int // 0 .. 340
	frameCount uint64
	oddFrame   bool
	readBuffer uint8
	cycleCount uint64

	// Background pipeline (see background.go)
	bgNextTileID     uint8
	bgNextAttribute  uint8
	bgNextPatternLo  uint8
	bgNextPatternHi  uint8
	bgShiftPatternLo uint16
	bgShiftPatternHi uint16
	bgShiftAttribLo  uint16
	bgShiftAttribHi  uint16

	// Sprite data (see sprites.go)
	oam               [256]uint8
	secondaryOAM      [32]uint8
	spriteCount       uint8
	sprite0Hit        bool
	spriteOverflow    bool
	lastEvalScanline  int
	spriteIndexes     [8]uint8
	sprite0OnScanline bool

	frameBuffer [256 * 240]uint32

	interrupts            *interrupt.Line
	frameCompleteCallback func()

	backgroundEnabled bool
	spritesEnabled    bool
	showBGLeftColumn  bool
	showSpritesLeft   bool
	renderingEnabled  bool

	// bgPixel/bgPixelValid cache this dot's background sample so sprite
	// 0 hit detection doesn't have to recompute it.
	bgPixel      SpritePixel
	bgPixelValid bool

	debugLogging   bool
	debugVerbosity int
}

// New creates a PPU wired to the given shared interrupt line. interrupts
// may be nil in tests that don't exercise NMI dispatch.
func New(interrupts *interrupt.Line) *PPU {
	if interrupts == nil {
		interrupts = &interrupt.Line{}
	}
	return &PPU{
		scanline:         -1,
		interrupts:       interrupts,
		lastEvalScanline: -999,
	}
}

// Reset returns the PPU to its post-power-on state.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0xA0 // VBL and sprite overflow set, sprite 0 hit clear
	p.oamAddr = 0
	p.oamData = 0
	p.ppuScroll = 0
	p.ppuAddr = 0
	p.ppuData = 0

	p.v = 0
	p.t = 0
	p.x = 0
	p.w = false

	p.scanline = -1
	p.cycle = 0
	p.frameCount = 0
	p.oddFrame = false
	p.readBuffer = 0
	p.cycleCount = 0

	p.bgNextTileID = 0
	p.bgNextAttribute = 0
	p.bgNextPatternLo = 0
	p.bgNextPatternHi = 0
	p.bgShiftPatternLo = 0
	p.bgShiftPatternHi = 0
	p.bgShiftAttribLo = 0
	p.bgShiftAttribHi = 0

	p.spriteCount = 0
	p.sprite0Hit = false
	p.spriteOverflow = false
	p.lastEvalScanline = -999
	p.bgPixelValid = false

	p.backgroundEnabled = false
	p.spritesEnabled = false
	p.renderingEnabled = false

	for i := range p.oam {
		p.oam[i] = 0
	}
	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0x000000
	}
}

// SetMemory sets the PPU memory interface.
func (p *PPU) SetMemory(mem *memory.PPUMemory) {
	p.memory = mem
}

// SetFrameCompleteCallback sets the callback fired when a frame finishes.
func (p *PPU) SetFrameCompleteCallback(callback func()) {
	p.frameCompleteCallback = callback
}

// ReadRegister reads from a PPU register (CPU $2000-$2007).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2000, 0x2001, 0x2003, 0x2005, 0x2006:
		return p.ppuStatus & 0x1F // write-only: open bus, lower 5 bits
	case 0x2002: // PPUSTATUS
		status := p.ppuStatus
		p.ppuStatus &= 0x7F // clear VBL flag only; sprite 0/overflow clear at pre-render
		p.w = false
		return status
	case 0x2004: // OAMDATA
		return p.oam[p.oamAddr]
	case 0x2007: // PPUDATA
		return p.readPPUData()
	default:
		return 0
	}
}

// WriteRegister writes to a PPU register (CPU $2000-$2007).
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x2000: // PPUCTRL
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10) // nametable select
		p.updateRenderingFlags()
		p.checkNMI()
	case 0x2001: // PPUMASK
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2002: // PPUSTATUS - read only
	case 0x2003: // OAMADDR
		p.oamAddr = value
	case 0x2004: // OAMDATA
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005: // PPUSCROLL
		p.writePPUScroll(value)
	case 0x2006: // PPUADDR
		p.writePPUAddr(value)
	case 0x2007: // PPUDATA
		p.writePPUData(value)
	}
}

// WriteOAM writes to OAM at the given address, used by OAM DMA.
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

// Step advances the PPU by one dot.
func (p *PPU) Step() {
	p.cycleCount++

	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 260 {
			p.scanline = -1
			p.frameCount++
			p.oddFrame = !p.oddFrame
			if p.frameCompleteCallback != nil {
				p.frameCompleteCallback()
			}
		}
	}

	if p.scanline == -1 || (p.scanline >= 0 && p.scanline < 240) {
		p.renderCycle()
	}

	// VBlank start: set the flag and fire NMI if enabled.
	if p.scanline == 241 && p.cycle == 1 {
		p.ppuStatus |= 0x80
		if p.ppuCtrl&0x80 != 0 {
			p.interrupts.RaiseNMI()
		}
	}

	// Pre-render line: VBlank, sprite 0 hit and sprite overflow all clear
	// at cycle 1, matching real hardware timing (not VBlank start).
	if p.scanline == -1 && p.cycle == 1 {
		p.ppuStatus &= 0x1F
		p.sprite0Hit = false
		p.spriteOverflow = false
	}
}

// checkNMI fires an NMI if PPUCTRL's NMI-enable bit is set while VBlank is
// already active, covering the case where a game enables NMI mid-VBlank.
func (p *PPU) checkNMI() {
	if (p.ppuCtrl&0x80 != 0) && (p.ppuStatus&0x80 != 0) {
		p.interrupts.RaiseNMI()
	}
}

// updateRenderingFlags refreshes cached PPUMASK-derived booleans.
func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = (p.ppuMask & 0x08) != 0
	p.spritesEnabled = (p.ppuMask & 0x10) != 0
	p.showBGLeftColumn = (p.ppuMask & 0x02) != 0
	p.showSpritesLeft = (p.ppuMask & 0x04) != 0
	p.renderingEnabled = p.backgroundEnabled || p.spritesEnabled
}

// writePPUScroll handles writes to PPUSCROLL ($2005).
func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
		p.w = true
	} else {
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
		p.w = false
	}
}

// writePPUAddr handles writes to PPUADDR ($2006).
func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

// readPPUData handles reads from PPUDATA ($2007).
func (p *PPU) readPPUData() uint8 {
	var data uint8
	if p.memory == nil {
		data = 0
	} else if p.v >= 0x3F00 {
		data = p.memory.Read(p.v)
		p.readBuffer = p.memory.Read(p.v & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.memory.Read(p.v)
	}
	p.advanceVRAMAddress()
	return data
}

// writePPUData handles writes to PPUDATA ($2007).
func (p *PPU) writePPUData(value uint8) {
	if p.memory != nil {
		p.memory.Write(p.v, value)
	}
	p.advanceVRAMAddress()
}

func (p *PPU) advanceVRAMAddress() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v += 1
	}
	p.v &= 0x3FFF
}

// GetFrameBuffer returns the current frame buffer.
func (p *PPU) GetFrameBuffer() [256 * 240]uint32 {
	return p.frameBuffer
}

// GetFrameCount returns the number of frames rendered so far.
func (p *PPU) GetFrameCount() uint64 {
	return p.frameCount
}

// SetFrameCount forces the frame counter, used by save-state restore.
func (p *PPU) SetFrameCount(count uint64) {
	p.frameCount = count
}

// GetScanline returns the current scanline.
func (p *PPU) GetScanline() int {
	return p.scanline
}

// GetCycle returns the current dot within the scanline.
func (p *PPU) GetCycle() int {
	return p.cycle
}

// IsRenderingEnabled reports whether background or sprite rendering is on.
func (p *PPU) IsRenderingEnabled() bool {
	return p.renderingEnabled
}

// IsVBlank reports whether the VBlank flag is currently set.
func (p *PPU) IsVBlank() bool {
	return (p.ppuStatus & 0x80) != 0
}

// GetCycleCount returns the total number of PPU dots elapsed.
func (p *PPU) GetCycleCount() uint64 {
	return p.cycleCount
}

// EnableBackgroundDebugLogging toggles the tagged diagnostic logging used
// by sprite-0-hit and NMI tracing.
func (p *PPU) EnableBackgroundDebugLogging(enabled bool) {
	p.debugLogging = enabled
}

// SetBackgroundDebugVerbosity sets how much detail the diagnostic log
// lines carry (0 = off, higher = more).
func (p *PPU) SetBackgroundDebugVerbosity(level int) {
	p.debugVerbosity = level
}

func (p *PPU) debugf(format string, args ...interface{}) {
	if p.debugLogging {
		fmt.Printf(format, args...)
	}
}

// nesColorPalette is the NTSC 2C02 palette, indexed by the 6-bit color
// code read from $3F00-$3F1F.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a 6-bit NES color index to an 0x00RRGGBB value.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0x000000
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}

// NESColorToRGB is the PPU-bound form of the free function above.
func (p *PPU) NESColorToRGB(colorIndex uint8) uint32 {
	return NESColorToRGB(colorIndex)
}

// ClearFrameBuffer fills the frame buffer with a single color.
func (p *PPU) ClearFrameBuffer(color uint32) {
	for i := range p.frameBuffer {
		p.frameBuffer[i] = color
	}
}

// getCoarseX extracts the coarse X scroll from v (bits 0-4).
func (p *PPU) getCoarseX() int {
	return int(p.v & 0x001F)
}

// getCoarseY extracts the coarse Y scroll from v (bits 5-9).
func (p *PPU) getCoarseY() int {
	return int((p.v >> 5) & 0x001F)
}

// getFineY extracts the fine Y scroll from v (bits 12-14).
func (p *PPU) getFineY() int {
	return int((p.v >> 12) & 0x0007)
}

// getNametable extracts the nametable select from v (bits 10-11).
func (p *PPU) getNametable() int {
	return int((p.v >> 10) & 0x0003)
}

// incrementX increments v's coarse X, flipping to the next horizontal
// nametable when it wraps past 31.
func (p *PPU) incrementX() {
	if (p.v & 0x001F) == 31 {
		p.v &= ^uint16(0x001F)
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

// incrementY increments v's fine Y, cascading into coarse Y (and the
// vertical nametable bit at the 30-row wrap) when fine Y overflows.
func (p *PPU) incrementY() {
	if (p.v & 0x7000) != 0x7000 {
		p.v += 0x1000
	} else {
		p.v &= ^uint16(0x7000)
		y := (p.v & 0x03E0) >> 5
		if y == 29 {
			y = 0
			p.v ^= 0x0800
		} else if y == 31 {
			y = 0
		} else {
			y++
		}
		p.v = (p.v & ^uint16(0x03E0)) | (y << 5)
	}
}

// copyX copies the horizontal position bits (nametable + coarse X) from
// t into v, done at dot 257 of every rendered scanline.
func (p *PPU) copyX() {
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

// copyY copies the vertical position bits (nametable + coarse/fine Y)
// from t into v, done across dots 280-304 of the pre-render scanline.
func (p *PPU) copyY() {
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}
