package lcd

// Palette maps the four DMG shades, lightest first, to RGB.
type Palette [4][3]byte

// GreyPalette is the default display palette.
var GreyPalette = Palette{
	{0xFF, 0xFF, 0xFF},
	{0xC0, 0xC0, 0xC0},
	{0x60, 0x60, 0x60},
	{0x00, 0x00, 0x00},
}

// shade picks the display shade for color index ci through a BGP/OBP register.
func shade(reg, ci byte) byte {
	return (reg >> (ci * 2)) & 0x03
}

// renderLine latches the line registers and draws line ly into the frame.
func (l *LCD) renderLine() {
	if l.ly >= Height {
		return
	}
	lr := l.latch()
	l.lineRegs[l.ly] = lr
	mem := busVRAM{l.bus}

	var bg [Width]byte
	if lr.LCDC&lcdcBGOn != 0 {
		mapBase := uint16(0x9800)
		if lr.LCDC&lcdcBGMap != 0 {
			mapBase = 0x9C00
		}
		bg = renderBGScanline(mem, mapBase, lr.LCDC&lcdcTileData != 0, lr.SCX, lr.SCY, l.ly)
	}
	if lr.Window {
		mapBase := uint16(0x9800)
		if lr.LCDC&lcdcWindowMap != 0 {
			mapBase = 0x9C00
		}
		win, covered := renderWindowScanline(mem, mapBase, lr.LCDC&lcdcTileData != 0, int(lr.WX)-7, lr.WinLine)
		for x := range bg {
			if covered[x] {
				bg[x] = win[x]
			}
		}
	}

	var sci, spal [Width]byte
	if lr.LCDC&lcdcOBJOn != 0 {
		tall := lr.LCDC&lcdcOBJTall != 0
		sci, spal = composeSpriteLine(mem, scanOAM(l.bus, l.ly, tall), l.ly, bg, tall)
	}

	row := l.fb[int(l.ly)*Width*4:]
	for x := 0; x < Width; x++ {
		s := shade(lr.BGP, bg[x])
		if lr.LCDC&lcdcBGOn == 0 {
			s = 0
		}
		if sci[x] != 0 {
			obp := lr.OBP0
			if spal[x] == 1 {
				obp = lr.OBP1
			}
			s = shade(obp, sci[x])
		}
		c := l.palette[s]
		i := x * 4
		row[i], row[i+1], row[i+2], row[i+3] = c[0], c[1], c[2], 0xFF
	}
}
