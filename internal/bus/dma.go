package bus

const (
	dmaLength        = 0xA0
	dmaCyclesPerByte = 4
)

// dmaState tracks an OAM DMA transfer: 160 bytes, one per machine cycle.
// While active the CPU sees neither OAM nor VRAM.
type dmaState struct {
	active bool
	source uint16
	index  int
	carry  int // T-cycles not yet spent on a byte
}

// startDMA (re)starts a transfer from value<<8. A write while a transfer is
// running restarts it from the new source.
func (b *Bus) startDMA(value byte) {
	src := uint16(value) << 8
	if src >= 0xE000 {
		// sources past WRAM read through the echo
		src -= 0x2000
	}
	b.dma = dmaState{active: true, source: src}
}

func (b *Bus) stepDMA(cycles int) {
	if !b.dma.active {
		return
	}
	b.dma.carry += cycles
	for b.dma.carry >= dmaCyclesPerByte && b.dma.active {
		b.dma.carry -= dmaCyclesPerByte
		b.oam[b.dma.index] = b.dmaRead(b.dma.source + uint16(b.dma.index))
		b.dma.index++
		if b.dma.index >= dmaLength {
			b.dma = dmaState{}
		}
	}
}

// dmaRead fetches a source byte without the CPU-side DMA blocking.
func (b *Bus) dmaRead(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.mbc == nil {
			return 0xFF
		}
		return b.mbc.ReadROM(addr)
	case addr < 0xA000:
		return b.vram[addr-0x8000]
	case addr < 0xC000:
		if b.mbc == nil {
			return 0xFF
		}
		return b.mbc.ReadRAM(addr)
	case addr < 0xE000:
		return b.wram[addr-0xC000]
	default:
		return 0xFF
	}
}

// DMAActive reports whether an OAM DMA transfer is in progress.
func (b *Bus) DMAActive() bool { return b.dma.active }
