package bus

import (
	"io"

	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/cart"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/timer"
)

// Interrupt bits in IF/IE, in priority order.
const (
	IntVBlank = 0
	IntSTAT   = 1
	IntTimer  = 2
	IntSerial = 3
	IntJoypad = 4
)

// I/O register addresses the bus gives side effects to.
const (
	AddrJOYP = 0xFF00
	AddrSB   = 0xFF01
	AddrSC   = 0xFF02
	AddrIF   = 0xFF0F
	AddrLCDC = 0xFF40
	AddrSTAT = 0xFF41
	AddrLY   = 0xFF44
	AddrDMA  = 0xFF46
	AddrBOOT = 0xFF50
	AddrIE   = 0xFFFF
)

// Bus decodes the 16-bit address space. It owns every addressable memory
// except cartridge ROM/RAM, which it reaches through the MBC.
type Bus struct {
	cart *cart.Cartridge
	mbc  cart.MBC

	vram [0x2000]byte // 0x8000–0x9FFF
	wram [0x2000]byte // 0xC000–0xDFFF
	oam  [0xA0]byte   // 0xFE00–0xFE9F
	io   [0x80]byte   // 0xFF00–0xFF7F
	hram [0x7F]byte   // 0xFF80–0xFFFE
	ie   byte         // 0xFFFF

	timer *timer.Timer

	boot        []byte
	bootEnabled bool

	joyp      byte // buttons currently pressed, Joyp* bits
	serialOut io.Writer

	dma dmaState
}

// New builds a bus around a cartridge. m may be nil, in which case the
// controller is chosen from the cartridge header; c may be nil when a test
// supplies its own controller.
func New(c *cart.Cartridge, m cart.MBC) *Bus {
	b := &Bus{cart: c, mbc: m}
	if b.mbc == nil && c != nil {
		// unsupported types still come back with a usable fallback
		b.mbc, _ = cart.NewMBC(c)
	}
	b.timer = timer.New(b.RequestInterrupt)
	b.Reset()
	return b
}

// Reset clears bus-owned memory and applies the DMG post-boot I/O state.
// Cartridge RAM and banking are left alone.
func (b *Bus) Reset() {
	b.vram = [0x2000]byte{}
	b.wram = [0x2000]byte{}
	b.oam = [0xA0]byte{}
	b.io = [0x80]byte{}
	b.hram = [0x7F]byte{}
	b.ie = 0
	b.dma = dmaState{}
	b.timer.Reset()
	b.applyPostBootIO()
}

// applyPostBootIO sets the registers the boot ROM leaves behind, so ROMs can
// start from 0x0100 without one.
func (b *Bus) applyPostBootIO() {
	b.io[AddrIF-0xFF00] = 0x01
	b.io[AddrLCDC-0xFF00] = 0x91 // LCD on, BG on, tile data 8000, BG map 9800
	b.io[AddrSTAT-0xFF00] = 0x05
	b.io[0x47] = 0xFC // BGP
	b.io[0x48] = 0xFF // OBP0
	b.io[0x49] = 0xFF // OBP1
}

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 {
			return b.boot[addr]
		}
		if b.mbc == nil {
			return 0xFF
		}
		return b.mbc.ReadROM(addr)
	case addr < 0xA000:
		if b.dma.active {
			return 0xFF
		}
		return b.vram[addr-0x8000]
	case addr < 0xC000:
		if b.mbc == nil {
			return 0xFF
		}
		return b.mbc.ReadRAM(addr)
	case addr < 0xE000:
		return b.wram[addr-0xC000]
	case addr < 0xFE00:
		return b.wram[addr-0xE000]
	case addr < 0xFEA0:
		if b.dma.active {
			return 0xFF
		}
		return b.oam[addr-0xFE00]
	case addr < 0xFF00:
		// unusable
		return 0x00
	case addr < 0xFF80:
		return b.readIO(addr)
	case addr < 0xFFFF:
		return b.hram[addr-0xFF80]
	default:
		return b.ie
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		if b.mbc != nil {
			b.mbc.WriteROM(addr, value)
		}
	case addr < 0xA000:
		if b.dma.active {
			return
		}
		b.vram[addr-0x8000] = value
	case addr < 0xC000:
		if b.mbc != nil {
			b.mbc.WriteRAM(addr, value)
		}
	case addr < 0xE000:
		b.wram[addr-0xC000] = value
	case addr < 0xFE00:
		b.wram[addr-0xE000] = value
	case addr < 0xFEA0:
		if b.dma.active {
			return
		}
		b.oam[addr-0xFE00] = value
	case addr < 0xFF00:
	case addr < 0xFF80:
		b.writeIO(addr, value)
	case addr < 0xFFFF:
		b.hram[addr-0xFF80] = value
	default:
		b.ie = value
	}
}

// Read16 reads a little-endian word as two byte accesses.
func (b *Bus) Read16(addr uint16) uint16 {
	lo := b.Read(addr)
	hi := b.Read(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

// Write16 stores a little-endian word as two byte accesses.
func (b *Bus) Write16(addr uint16, value uint16) {
	b.Write(addr, byte(value))
	b.Write(addr+1, byte(value>>8))
}

func (b *Bus) readIO(addr uint16) byte {
	switch addr {
	case AddrJOYP:
		return b.readJoypad()
	case AddrSC:
		return 0x7E | b.io[AddrSC-0xFF00]
	case timer.AddrDIV, timer.AddrTIMA, timer.AddrTMA, timer.AddrTAC:
		return b.timer.Read(addr)
	case AddrIF:
		return 0xE0 | b.io[AddrIF-0xFF00]&0x1F
	case AddrSTAT:
		return 0x80 | b.io[AddrSTAT-0xFF00]
	case AddrBOOT:
		return 0xFF
	}
	return b.io[addr-0xFF00]
}

func (b *Bus) writeIO(addr uint16, value byte) {
	switch addr {
	case AddrJOYP:
		b.io[AddrJOYP-0xFF00] = value & 0x30
	case AddrSC:
		b.io[AddrSC-0xFF00] = value & 0x81
		if value&0x81 == 0x81 {
			b.serialTransfer()
		}
	case timer.AddrDIV, timer.AddrTIMA, timer.AddrTMA, timer.AddrTAC:
		b.timer.Write(addr, value)
	case AddrIF:
		b.io[AddrIF-0xFF00] = value & 0x1F
	case AddrSTAT:
		// mode and coincidence bits belong to the LCD
		b.io[AddrSTAT-0xFF00] = b.io[AddrSTAT-0xFF00]&0x07 | value&0x78
	case AddrLY:
		// read-only for the CPU
	case AddrDMA:
		b.io[AddrDMA-0xFF00] = value
		b.startDMA(value)
	case AddrBOOT:
		if value != 0 {
			b.bootEnabled = false
		}
	default:
		b.io[addr-0xFF00] = value
	}
}

// serialTransfer completes an internally clocked transfer at once. There is
// no link partner, so the received byte is 0xFF.
func (b *Bus) serialTransfer() {
	if b.serialOut != nil {
		_, _ = b.serialOut.Write([]byte{b.io[AddrSB-0xFF00]})
	}
	b.io[AddrSB-0xFF00] = 0xFF
	b.io[AddrSC-0xFF00] &^= 0x80
	b.RequestInterrupt(IntSerial)
}

// Tick advances everything clocked by the bus: the timer and OAM DMA.
func (b *Bus) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	b.timer.Step(cycles)
	b.stepDMA(cycles)
}

// RequestInterrupt sets bit in IF.
func (b *Bus) RequestInterrupt(bit int) {
	if bit < 0 || bit > 4 {
		return
	}
	b.io[AddrIF-0xFF00] |= 1 << uint(bit)
}

// IO returns the raw register byte without read side effects.
func (b *Bus) IO(addr uint16) byte {
	if addr < 0xFF00 || addr >= 0xFF80 {
		return 0xFF
	}
	return b.io[addr-0xFF00]
}

// SetIO stores a raw register byte without write side effects. The LCD uses
// it to publish LY and the STAT mode bits.
func (b *Bus) SetIO(addr uint16, value byte) {
	if addr < 0xFF00 || addr >= 0xFF80 {
		return
	}
	b.io[addr-0xFF00] = value
}

// VRAM reads video memory regardless of DMA state.
func (b *Bus) VRAM(addr uint16) byte {
	if addr < 0x8000 || addr >= 0xA000 {
		return 0xFF
	}
	return b.vram[addr-0x8000]
}

// OAM reads sprite attribute memory regardless of DMA state.
func (b *Bus) OAM(addr uint16) byte {
	if addr < 0xFE00 || addr >= 0xFEA0 {
		return 0xFF
	}
	return b.oam[addr-0xFE00]
}

func (b *Bus) Timer() *timer.Timer        { return b.timer }
func (b *Bus) MBC() cart.MBC              { return b.mbc }
func (b *Bus) Cartridge() *cart.Cartridge { return b.cart }

// SetSerialWriter receives every byte shifted out of the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.serialOut = w }

// SetBootROM maps a 256-byte boot ROM over 0x0000–0x00FF until FF50 is written.
// A nil or short image disables the overlay.
func (b *Bus) SetBootROM(data []byte) {
	if len(data) < 0x100 {
		b.boot = nil
		b.bootEnabled = false
		return
	}
	b.boot = make([]byte, 0x100)
	copy(b.boot, data)
	b.bootEnabled = true
}

// BootEnabled reports whether the boot ROM overlay is mapped.
func (b *Bus) BootEnabled() bool { return b.bootEnabled }
