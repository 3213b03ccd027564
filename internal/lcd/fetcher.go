package lcd

// vramReader is read-only tile memory access for the fetcher and the line
// renderers, so tests can hand them a plain map.
type vramReader interface {
	Read(addr uint16) byte
}

// busVRAM adapts the bus VRAM peek to vramReader.
type busVRAM struct{ b Bus }

func (v busVRAM) Read(addr uint16) byte { return v.b.VRAM(addr) }

// fifo is a ring buffer of 2-bit color indices.
type fifo struct {
	buf  [32]byte
	head int
	tail int
	size int
}

func (q *fifo) Clear()   { q.head, q.tail, q.size = 0, 0, 0 }
func (q *fifo) Len() int { return q.size }

func (q *fifo) Push(ci byte) bool {
	if q.size == len(q.buf) {
		return false
	}
	q.buf[q.tail] = ci & 0x03
	q.tail = (q.tail + 1) % len(q.buf)
	q.size++
	return true
}

func (q *fifo) Pop() (byte, bool) {
	if q.size == 0 {
		return 0, false
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v, true
}

// tileFetcher pushes one 8-pixel tile row from a tile map into the FIFO.
type tileFetcher struct {
	mem          vramReader
	fifo         *fifo
	mapRow       uint16 // address of column 0 of the current map row
	tileData8000 bool   // false selects signed 0x8800 addressing
	fineY        byte
}

func newTileFetcher(mem vramReader, q *fifo) *tileFetcher {
	return &tileFetcher{mem: mem, fifo: q}
}

// Configure selects the map row and tile addressing for following fetches.
func (f *tileFetcher) Configure(mapBase uint16, tileData8000 bool, row uint16, fineY byte) {
	f.mapRow = mapBase + (row&31)*32
	f.tileData8000 = tileData8000
	f.fineY = fineY & 7
}

// Fetch pushes the 8 pixels of map column col (mod 32).
func (f *tileFetcher) Fetch(col uint16) {
	lo, hi := tileRow(f.mem, f.mem.Read(f.mapRow+(col&31)), f.tileData8000, f.fineY)
	for px := 0; px < 8; px++ {
		_ = f.fifo.Push(pixel(lo, hi, 7-uint(px)))
	}
}

// tileRow returns the two bitplanes of row y of a BG/window tile.
func tileRow(mem vramReader, tile byte, tileData8000 bool, y byte) (lo, hi byte) {
	var base uint16
	if tileData8000 {
		base = 0x8000 + uint16(tile)*16
	} else {
		base = uint16(0x9000 + int(int8(tile))*16)
	}
	base += uint16(y&7) * 2
	return mem.Read(base), mem.Read(base + 1)
}

func pixel(lo, hi byte, bit uint) byte {
	return ((hi>>bit)&1)<<1 | (lo>>bit)&1
}
