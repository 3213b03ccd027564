package lcd

import "sort"

// renderBGScanline returns 160 BG color indices for line ly.
func renderBGScanline(mem vramReader, mapBase uint16, tileData8000 bool, scx, scy, ly byte) [Width]byte {
	var out [Width]byte

	bgY := uint16(ly) + uint16(scy)
	col := uint16(scx>>3) & 31

	var q fifo
	f := newTileFetcher(mem, &q)
	f.Configure(mapBase, tileData8000, (bgY>>3)&31, byte(bgY&7))
	f.Fetch(col)
	for i := 0; i < int(scx&7); i++ {
		_, _ = q.Pop()
	}
	for x := 0; x < Width; x++ {
		if q.Len() == 0 {
			col++
			f.Fetch(col)
		}
		out[x], _ = q.Pop()
	}
	return out
}

// renderWindowScanline draws window line winLine starting at screen column
// startX (WX-7, may be negative). Pixels left of the window stay 0 and are
// reported as not covered.
func renderWindowScanline(mem vramReader, mapBase uint16, tileData8000 bool, startX int, winLine byte) (out [Width]byte, covered [Width]bool) {
	if startX >= Width {
		return
	}
	var q fifo
	f := newTileFetcher(mem, &q)
	f.Configure(mapBase, tileData8000, uint16(winLine>>3), winLine&7)
	col := uint16(0)
	f.Fetch(col)
	x := startX
	for ; x < 0; x++ {
		if q.Len() == 0 {
			col++
			f.Fetch(col)
		}
		_, _ = q.Pop()
	}
	for ; x < Width; x++ {
		if q.Len() == 0 {
			col++
			f.Fetch(col)
		}
		out[x], _ = q.Pop()
		covered[x] = true
	}
	return
}

// Sprite is an OAM entry in screen coordinates.
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

const (
	attrBehindBG = 1 << 7
	attrFlipY    = 1 << 6
	attrFlipX    = 1 << 5
	attrOBP1     = 1 << 4

	maxSpritesPerLine = 10
)

// scanOAM returns the first ten sprites overlapping line ly, in OAM order.
func scanOAM(b Bus, ly byte, tall bool) []Sprite {
	height := 8
	if tall {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < maxSpritesPerLine; i++ {
		base := uint16(0xFE00 + i*4)
		y := int(b.OAM(base)) - 16
		if int(ly) < y || int(ly) >= y+height {
			continue
		}
		out = append(out, Sprite{
			X:        int(b.OAM(base+1)) - 8,
			Y:        y,
			Tile:     b.OAM(base + 2),
			Attr:     b.OAM(base + 3),
			OAMIndex: i,
		})
	}
	return out
}

// composeSpriteLine resolves the sprite layer for line ly. ci holds the
// winning color index per pixel (0 = none) and pal the OBP register
// selector (0 or 1). The sprite with the lower X wins an overlap, ties go to
// the lower OAM index. A winning sprite with the behind-BG attribute hides
// under BG colors 1-3 without letting lower priority sprites through.
func composeSpriteLine(mem vramReader, sprites []Sprite, ly byte, bgci [Width]byte, tall bool) (ci, pal [Width]byte) {
	order := make([]Sprite, len(sprites))
	copy(order, sprites)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].X != order[j].X {
			return order[i].X < order[j].X
		}
		return order[i].OAMIndex < order[j].OAMIndex
	})

	height := 8
	if tall {
		height = 16
	}
	var claimed [Width]bool
	for _, s := range order {
		row := int(ly) - s.Y
		if row < 0 || row >= height {
			continue
		}
		if s.Attr&attrFlipY != 0 {
			row = height - 1 - row
		}
		tile := s.Tile
		if tall {
			tile &^= 1
		}
		addr := 0x8000 + uint16(tile)*16 + uint16(row)*2
		lo, hi := mem.Read(addr), mem.Read(addr+1)
		for px := 0; px < 8; px++ {
			x := s.X + px
			if x < 0 || x >= Width || claimed[x] {
				continue
			}
			bit := uint(7 - px)
			if s.Attr&attrFlipX != 0 {
				bit = uint(px)
			}
			c := pixel(lo, hi, bit)
			if c == 0 {
				continue
			}
			claimed[x] = true
			if s.Attr&attrBehindBG != 0 && bgci[x] != 0 {
				continue
			}
			ci[x] = c
			if s.Attr&attrOBP1 != 0 {
				pal[x] = 1
			}
		}
	}
	return
}
