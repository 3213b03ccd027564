package cart

// MBC1 implements MBC1 ROM/RAM banking, including the multicart wiring used by
// 1MB compilation carts where the secondary register drives bank bits 4-5.
type MBC1 struct {
	banked

	bank1      byte // lower 5 bits of ROM bank number (0->1 remapped)
	bank2      byte // either RAM bank (mode1) or ROM bank high bits
	ramEnabled bool
	mode       byte // 0: simple banking (default), 1: advanced banking
	multicart  bool
}

func NewMBC1(rom, ram []byte) *MBC1 {
	m := &MBC1{banked: newBanked(rom, ram)}
	m.bank1 = 1
	m.multicart = detectMulticart(rom)
	return m
}

// detectMulticart looks for the boot logo repeated at the start of each 256KB
// game slot. Single-game carts only have it in bank 0.
func detectMulticart(rom []byte) bool {
	if len(rom) != 1024*1024 {
		return false
	}
	logos := 0
	for bank := 0; bank < 0x40; bank += 0x10 {
		if LogoOK(rom[bank*romBankSize:]) {
			logos++
		}
	}
	return logos > 1
}

// Multicart reports whether the multicart bank wiring is in effect.
func (m *MBC1) Multicart() bool { return m.multicart }

func (m *MBC1) bankShift() uint {
	if m.multicart {
		return 4
	}
	return 5
}

// zeroBank is the bank visible at 0x0000–0x3FFF.
func (m *MBC1) zeroBank() int {
	if m.mode == 0 {
		return 0
	}
	return int(m.bank2) << m.bankShift()
}

// highBank is the bank visible at 0x4000–0x7FFF.
func (m *MBC1) highBank() int {
	low := m.bank1
	if m.multicart {
		low &= 0x0F
	}
	return int(m.bank2)<<m.bankShift() | int(low)
}

func (m *MBC1) ramBank() int {
	if m.mode == 0 {
		return 0
	}
	return int(m.bank2)
}

func (m *MBC1) ReadROM(addr uint16) byte {
	if addr < 0x4000 {
		return m.romAt(m.zeroBank(), addr)
	}
	return m.romAt(m.highBank(), addr)
}

func (m *MBC1) WriteROM(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		// RAM enable: low 4 bits must be 0x0A
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		// ROM bank low 5 bits (0 maps to 1)
		m.bank1 = value & 0x1F
		if m.bank1 == 0 {
			m.bank1 = 1
		}
	case addr < 0x6000:
		m.bank2 = value & 0x03
	case addr < 0x8000:
		m.mode = value & 0x01
	}
}

func (m *MBC1) ReadRAM(addr uint16) byte {
	if !m.ramEnabled {
		return 0xFF
	}
	return m.readRAM(m.ramBank(), addr)
}

func (m *MBC1) WriteRAM(addr uint16, value byte) {
	if !m.ramEnabled {
		return
	}
	m.writeRAM(m.ramBank(), addr, value)
}

func (m *MBC1) RAMImage() []byte { return m.ramImage() }

func (m *MBC1) LoadRAMImage(data []byte) error { return m.loadRAMImage(data) }
