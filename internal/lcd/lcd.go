// Package lcd sequences LY and the STAT modes for the DMG and renders each
// visible line into an RGBA frame. Timing is coarse: every line is 80 dots of
// OAM search, 172 of transfer and the rest HBlank.
package lcd

import "github.com/FabianRolfMatthiasNoll/dmgcore/internal/bus"

// Bus is what the LCD needs from the memory bus. Register state lives in the
// bus I/O array; the LCD publishes LY and the STAT mode through SetIO.
type Bus interface {
	IO(addr uint16) byte
	SetIO(addr uint16, value byte)
	VRAM(addr uint16) byte
	OAM(addr uint16) byte
	RequestInterrupt(bit int)
}

const (
	Width  = 160
	Height = 144

	dotsPerLine   = 456
	linesPerFrame = 154
	oamDots       = 80
	transferDots  = 172

	// FrameCycles is the length of one full frame in T-cycles.
	FrameCycles = dotsPerLine * linesPerFrame
)

const (
	addrLCDC = bus.AddrLCDC
	addrSTAT = bus.AddrSTAT
	addrSCY  = 0xFF42
	addrSCX  = 0xFF43
	addrLY   = bus.AddrLY
	addrLYC  = 0xFF45
	addrBGP  = 0xFF47
	addrOBP0 = 0xFF48
	addrOBP1 = 0xFF49
	addrWY   = 0xFF4A
	addrWX   = 0xFF4B
)

// LCDC bits.
const (
	lcdcBGOn       = 1 << 0
	lcdcOBJOn      = 1 << 1
	lcdcOBJTall    = 1 << 2
	lcdcBGMap      = 1 << 3
	lcdcTileData   = 1 << 4
	lcdcWindowOn   = 1 << 5
	lcdcWindowMap  = 1 << 6
	lcdcDisplayOn  = 1 << 7
	statCoincident = 1 << 2
	statHBlankInt  = 1 << 3
	statVBlankInt  = 1 << 4
	statOAMInt     = 1 << 5
	statLYCInt     = 1 << 6
)

// Modes in STAT bits 0-1.
const (
	ModeHBlank   = 0
	ModeVBlank   = 1
	ModeOAM      = 2
	ModeTransfer = 3
)

// LineRegs are the registers latched when a line enters mode 3.
type LineRegs struct {
	LCDC    byte
	SCY     byte
	SCX     byte
	BGP     byte
	OBP0    byte
	OBP1    byte
	WY      byte
	WX      byte
	WinLine byte
	Window  bool
}

type LCD struct {
	bus Bus

	dot     int
	ly      byte
	on      bool
	lycHigh bool

	winLine byte
	// window drew on an earlier line of this frame
	winSeen bool

	lineRegs [Height]LineRegs

	fb      []byte // RGBA, Width*Height*4
	palette Palette
	frames  uint64
}

func New(b Bus) *LCD {
	l := &LCD{bus: b, fb: make([]byte, Width*Height*4), palette: GreyPalette}
	l.Reset()
	return l
}

// Reset restarts the sequencer at line 0. The frame is cleared to white.
func (l *LCD) Reset() {
	l.dot = 0
	l.ly = 0
	l.winLine = 0
	l.winSeen = false
	l.lineRegs = [Height]LineRegs{}
	for i := range l.fb {
		l.fb[i] = 0xFF
	}
	l.on = l.bus.IO(addrLCDC)&lcdcDisplayOn != 0
	l.publishLY()
	l.lycHigh = l.bus.IO(addrSTAT)&statCoincident != 0
	if l.on {
		l.writeMode(ModeOAM)
	}
}

// Step advances the sequencer by the given number of dots (T-cycles).
func (l *LCD) Step(cycles int) {
	for i := 0; i < cycles; i++ {
		if l.bus.IO(addrLCDC)&lcdcDisplayOn == 0 {
			if l.on {
				l.turnOff()
			}
			continue
		}
		if !l.on {
			l.turnOn()
		}
		l.dot++
		if l.dot >= dotsPerLine {
			l.dot = 0
			l.nextLine()
		} else if l.ly < Height {
			switch l.dot {
			case oamDots:
				l.setMode(ModeTransfer)
			case oamDots + transferDots:
				l.setMode(ModeHBlank)
			}
		}
		l.updateLYC()
	}
}

func (l *LCD) nextLine() {
	l.ly++
	switch {
	case l.ly == Height:
		l.setMode(ModeVBlank)
		l.bus.RequestInterrupt(bus.IntVBlank)
		l.frames++
	case l.ly >= linesPerFrame:
		l.ly = 0
		l.winLine = 0
		l.winSeen = false
		l.setMode(ModeOAM)
	case l.ly < Height:
		l.setMode(ModeOAM)
	}
	l.publishLY()
}

func (l *LCD) turnOff() {
	l.on = false
	l.dot = 0
	l.ly = 0
	l.publishLY()
	l.writeMode(ModeHBlank)
}

func (l *LCD) turnOn() {
	l.on = true
	l.dot = 0
	l.ly = 0
	l.winLine = 0
	l.winSeen = false
	l.publishLY()
	l.setMode(ModeOAM)
}

func (l *LCD) publishLY() { l.bus.SetIO(addrLY, l.ly) }

func (l *LCD) writeMode(mode byte) {
	stat := l.bus.IO(addrSTAT)
	l.bus.SetIO(addrSTAT, stat&^0x03|mode&0x03)
}

// Mode returns the current STAT mode.
func (l *LCD) Mode() byte { return l.bus.IO(addrSTAT) & 0x03 }

// LY returns the line being drawn.
func (l *LCD) LY() byte { return l.ly }

func (l *LCD) setMode(mode byte) {
	if l.Mode() == mode {
		return
	}
	l.writeMode(mode)
	stat := l.bus.IO(addrSTAT)
	switch mode {
	case ModeHBlank:
		if stat&statHBlankInt != 0 {
			l.bus.RequestInterrupt(bus.IntSTAT)
		}
	case ModeVBlank:
		if stat&statVBlankInt != 0 {
			l.bus.RequestInterrupt(bus.IntSTAT)
		}
	case ModeOAM:
		if stat&statOAMInt != 0 {
			l.bus.RequestInterrupt(bus.IntSTAT)
		}
	case ModeTransfer:
		l.renderLine()
	}
}

// updateLYC keeps the coincidence flag current. The STAT interrupt fires when
// LY becomes equal to LYC.
func (l *LCD) updateLYC() {
	stat := l.bus.IO(addrSTAT)
	match := l.ly == l.bus.IO(addrLYC)
	if match {
		stat |= statCoincident
	} else {
		stat &^= statCoincident
	}
	l.bus.SetIO(addrSTAT, stat)
	if match && !l.lycHigh && stat&statLYCInt != 0 {
		l.bus.RequestInterrupt(bus.IntSTAT)
	}
	l.lycHigh = match
}

func (l *LCD) latch() LineRegs {
	lr := LineRegs{
		LCDC: l.bus.IO(addrLCDC),
		SCY:  l.bus.IO(addrSCY),
		SCX:  l.bus.IO(addrSCX),
		BGP:  l.bus.IO(addrBGP),
		OBP0: l.bus.IO(addrOBP0),
		OBP1: l.bus.IO(addrOBP1),
		WY:   l.bus.IO(addrWY),
		WX:   l.bus.IO(addrWX),
	}
	// DMG needs both BG and window enabled for the window to show.
	lr.Window = lr.LCDC&lcdcWindowOn != 0 && lr.LCDC&lcdcBGOn != 0 && l.ly >= lr.WY && lr.WX <= 166
	if lr.Window {
		if l.winSeen {
			l.winLine++
		}
		l.winSeen = true
	}
	lr.WinLine = l.winLine
	return lr
}

// LineRegs returns the registers latched for line y of the current frame.
func (l *LCD) LineRegs(y int) LineRegs {
	if y < 0 || y >= Height {
		return LineRegs{}
	}
	return l.lineRegs[y]
}

// SetPalette changes the colors used for lines drawn from now on.
func (l *LCD) SetPalette(p Palette) { l.palette = p }

// Framebuffer is the last rendered frame, RGBA 160x144.
func (l *LCD) Framebuffer() []byte { return l.fb }

// Frames counts VBlank entries since construction.
func (l *LCD) Frames() uint64 { return l.frames }
