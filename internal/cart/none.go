package cart

// None maps ROM linearly with no banking registers. Types 0x08/0x09 add RAM
// that is always accessible since there is no enable gate to write.
type None struct {
	banked
}

func NewNone(rom, ram []byte) *None {
	return &None{banked: newBanked(rom, ram)}
}

func (c *None) ReadROM(addr uint16) byte {
	if int(addr) < len(c.rom) && addr < 0x8000 {
		return c.rom[addr]
	}
	return 0xFF
}

// WriteROM is ignored: there are no registers to latch.
func (c *None) WriteROM(addr uint16, value byte) {}

func (c *None) ReadRAM(addr uint16) byte { return c.readRAM(0, addr) }

func (c *None) WriteRAM(addr uint16, value byte) { c.writeRAM(0, addr, value) }

func (c *None) RAMImage() []byte { return c.ramImage() }

func (c *None) LoadRAMImage(data []byte) error { return c.loadRAMImage(data) }
