package cart

// MBC5 supports up to 8MB ROM and 128KB RAM. Unlike MBC1/MBC3, bank 0 can be
// mapped into the switchable window.
type MBC5 struct {
	banked

	romBank    uint16 // 9 bits (0..511)
	ramBank    byte   // 0..15
	ramEnabled bool

	rumble      bool // RAM bank bit 3 drives the motor instead of banking
	motorActive bool
}

func NewMBC5(rom, ram []byte, rumble bool) *MBC5 {
	m := &MBC5{banked: newBanked(rom, ram), rumble: rumble}
	m.romBank = 1 // default
	return m
}

// Rumble reports whether the rumble motor is currently driven.
func (m *MBC5) Rumble() bool { return m.motorActive }

func (m *MBC5) ReadROM(addr uint16) byte {
	if addr < 0x4000 {
		return m.romAt(0, addr)
	}
	return m.romAt(int(m.romBank), addr)
}

func (m *MBC5) WriteROM(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x3000:
		// low 8 bits of ROM bank
		m.romBank = (m.romBank & 0x100) | uint16(value)
	case addr < 0x4000:
		// high bit of ROM bank (bit8)
		m.romBank = (m.romBank & 0x0FF) | uint16(value&0x01)<<8
	case addr < 0x6000:
		if m.rumble {
			m.motorActive = value&0x08 != 0
			m.ramBank = value & 0x07
		} else {
			m.ramBank = value & 0x0F
		}
	}
}

func (m *MBC5) ReadRAM(addr uint16) byte {
	if !m.ramEnabled {
		return 0xFF
	}
	return m.readRAM(int(m.ramBank), addr)
}

func (m *MBC5) WriteRAM(addr uint16, value byte) {
	if !m.ramEnabled {
		return
	}
	m.writeRAM(int(m.ramBank), addr, value)
}

func (m *MBC5) RAMImage() []byte { return m.ramImage() }

func (m *MBC5) LoadRAMImage(data []byte) error { return m.loadRAMImage(data) }
