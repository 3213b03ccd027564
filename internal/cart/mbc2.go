package cart

// MBC2 has 16 ROM banks and 512 half-bytes of RAM on the controller itself.
// Register writes to 0x0000–0x3FFF are decoded by address bit 8:
// clear selects the RAM gate, set selects the ROM bank.
type MBC2 struct {
	banked

	romBank    byte // 4 bits (1..15)
	ramEnabled bool
}

func NewMBC2(rom, ram []byte) *MBC2 {
	if len(ram) < 512 {
		ram = make([]byte, 512)
	}
	return &MBC2{banked: newBanked(rom, ram[:512]), romBank: 1}
}

func (m *MBC2) ReadROM(addr uint16) byte {
	if addr < 0x4000 {
		return m.romAt(0, addr)
	}
	return m.romAt(int(m.romBank), addr)
}

func (m *MBC2) WriteROM(addr uint16, value byte) {
	if addr >= 0x4000 {
		return
	}
	if addr&0x0100 == 0 {
		m.ramEnabled = (value & 0x0F) == 0x0A
		return
	}
	m.romBank = value & 0x0F
	if m.romBank == 0 {
		m.romBank = 1
	}
}

// ReadRAM returns the stored nibble with the undriven upper bits reading 1.
// The 512-entry array echoes across the whole 0xA000–0xBFFF window.
func (m *MBC2) ReadRAM(addr uint16) byte {
	if !m.ramEnabled {
		return 0xFF
	}
	return 0xF0 | m.ram[int(addr)&0x01FF]
}

func (m *MBC2) WriteRAM(addr uint16, value byte) {
	if !m.ramEnabled {
		return
	}
	m.ram[int(addr)&0x01FF] = value & 0x0F
}

func (m *MBC2) RAMImage() []byte { return m.ramImage() }

func (m *MBC2) LoadRAMImage(data []byte) error { return m.loadRAMImage(data) }
