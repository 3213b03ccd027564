package cart

import (
	"errors"
	"fmt"
)

const (
	romBankSize = 0x4000
	ramBankSize = 0x2000
)

// MBC is the bank controller the Bus routes cartridge windows through.
// ROM addresses are CPU addresses 0x0000–0x7FFF, RAM addresses 0xA000–0xBFFF.
type MBC interface {
	// ReadROM returns a byte from the fixed (0x0000–0x3FFF) or switchable (0x4000–0x7FFF) window.
	ReadROM(addr uint16) byte
	// WriteROM updates banking registers; ROM itself is never modified.
	WriteROM(addr uint16, value byte)
	// ReadRAM returns 0xFF when RAM is disabled or absent.
	ReadRAM(addr uint16) byte
	// WriteRAM is ignored when RAM is disabled or absent.
	WriteRAM(addr uint16, value byte)

	// RAMImage returns a copy of battery-backed state (RAM, plus clock data where present).
	RAMImage() []byte
	// LoadRAMImage restores a previous RAMImage.
	LoadRAMImage(data []byte) error
}

// Cartridge is a loaded ROM image. ROM and Header never change after Load;
// RAM is the external RAM the MBC banks into 0xA000–0xBFFF.
type Cartridge struct {
	ROM    []byte
	RAM    []byte
	Header *Header
}

// InvalidCartridgeError reports why an image was rejected at load time.
type InvalidCartridgeError struct {
	Reason string
}

func (e *InvalidCartridgeError) Error() string {
	return "invalid cartridge: " + e.Reason
}

// UnsupportedMBCError is returned alongside a RAM-less fallback controller
// when the cartridge type byte names hardware this package does not model.
type UnsupportedMBCError struct {
	Type byte
}

func (e *UnsupportedMBCError) Error() string {
	return fmt.Sprintf("unsupported MBC type %#02x (%s)", e.Type, cartTypeString(e.Type))
}

// ErrRAMImageSize is wrapped by LoadRAMImage when the image length does not
// match the cartridge RAM.
var ErrRAMImageSize = errors.New("battery image size mismatch")

// Load validates the header of rom and returns a Cartridge with RAM sized from
// the header. The rom slice is retained, not copied.
func Load(rom []byte) (*Cartridge, error) {
	if len(rom) < headerEnd+1 {
		return nil, &InvalidCartridgeError{Reason: fmt.Sprintf("image is %d bytes, shorter than the header", len(rom))}
	}
	if !LogoOK(rom) {
		return nil, &InvalidCartridgeError{Reason: "nintendo logo mismatch"}
	}
	if !HeaderChecksumOK(rom) {
		return nil, &InvalidCartridgeError{Reason: fmt.Sprintf("header checksum mismatch (stored %#02x)", rom[0x014D])}
	}
	return LoadUnchecked(rom)
}

// LoadUnchecked is Load without the logo and header checksum checks, for
// homebrew and test images that never filled them in.
func LoadUnchecked(rom []byte) (*Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, &InvalidCartridgeError{Reason: err.Error()}
	}

	c := &Cartridge{ROM: rom, Header: h}
	ramSize := h.RAMSizeBytes
	if isMBC2(h.CartType) {
		// MBC2 carries 512 half-bytes on the controller regardless of the header.
		ramSize = 512
	}
	if ramSize > 0 {
		c.RAM = make([]byte, ramSize)
	}
	return c, nil
}

// NewMBC picks a bank controller based on the cartridge type byte. Unknown types
// get a linear, RAM-less controller together with an UnsupportedMBCError so the
// caller can still run the image.
func NewMBC(c *Cartridge) (MBC, error) {
	if c == nil {
		return NewNone(nil, nil), nil
	}
	t := byte(0)
	if c.Header != nil {
		t = c.Header.CartType
	}
	switch t {
	case 0x00, 0x08, 0x09:
		return NewNone(c.ROM, c.RAM), nil
	case 0x01, 0x02, 0x03:
		return NewMBC1(c.ROM, c.RAM), nil
	case 0x05, 0x06:
		return NewMBC2(c.ROM, c.RAM), nil
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return NewMBC3(c.ROM, c.RAM, t == 0x0F || t == 0x10), nil
	case 0x19, 0x1A, 0x1B:
		return NewMBC5(c.ROM, c.RAM, false), nil
	case 0x1C, 0x1D, 0x1E:
		return NewMBC5(c.ROM, c.RAM, true), nil
	default:
		return NewNone(c.ROM, nil), &UnsupportedMBCError{Type: t}
	}
}

// HasBattery reports whether the type byte includes battery-backed RAM or clock.
func HasBattery(t byte) bool {
	switch t {
	case 0x03, 0x06, 0x09, 0x0D, 0x0F, 0x10, 0x13, 0x1B, 0x1E, 0x22, 0xFF:
		return true
	}
	return false
}

func isMBC2(t byte) bool { return t == 0x05 || t == 0x06 }

// banked holds the ROM and RAM slices shared by every controller and applies
// the bank-count modulo that keeps undersized images in bounds.
type banked struct {
	rom      []byte
	ram      []byte
	romBanks int
	ramBanks int
}

func newBanked(rom, ram []byte) banked {
	b := banked{rom: rom, ram: ram}
	b.romBanks = len(rom) / romBankSize
	if len(rom)%romBankSize != 0 {
		b.romBanks++
	}
	if b.romBanks == 0 {
		b.romBanks = 1
	}
	b.ramBanks = len(ram) / ramBankSize
	if b.ramBanks == 0 {
		b.ramBanks = 1
	}
	return b
}

// romAt reads addr (any CPU ROM address) from the given bank number.
func (b *banked) romAt(bank int, addr uint16) byte {
	bank %= b.romBanks
	off := bank*romBankSize + int(addr&0x3FFF)
	if off < len(b.rom) {
		return b.rom[off]
	}
	return 0xFF
}

// ramOffset maps addr in 0xA000–0xBFFF of the given bank to an index into ram.
func (b *banked) ramOffset(bank int, addr uint16) (int, bool) {
	if len(b.ram) == 0 {
		return 0, false
	}
	bank %= b.ramBanks
	off := bank*ramBankSize + (int(addr-0xA000) & (ramBankSize - 1))
	if off >= len(b.ram) {
		// 2KB chips mirror across the 8KB window
		off %= len(b.ram)
	}
	return off, true
}

func (b *banked) readRAM(bank int, addr uint16) byte {
	if off, ok := b.ramOffset(bank, addr); ok {
		return b.ram[off]
	}
	return 0xFF
}

func (b *banked) writeRAM(bank int, addr uint16, value byte) {
	if off, ok := b.ramOffset(bank, addr); ok {
		b.ram[off] = value
	}
}

func (b *banked) ramImage() []byte {
	if len(b.ram) == 0 {
		return nil
	}
	out := make([]byte, len(b.ram))
	copy(out, b.ram)
	return out
}

func (b *banked) loadRAMImage(data []byte) error {
	if len(data) != len(b.ram) {
		return fmt.Errorf("%w: got %d bytes want %d", ErrRAMImageSize, len(data), len(b.ram))
	}
	copy(b.ram, data)
	return nil
}
