package cart

import (
	"encoding/binary"
	"errors"
)

const (
	headerStart = 0x0100
	headerEnd   = 0x014F
	logoStart   = 0x0104
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

type Header struct {
	EntryPoint     [4]byte // 0x0100-0x0103
	Title          string  // 0x0134-0x0143, NUL or CGB-flag terminated
	CGBFlag        byte    // 0x0143
	NewLicensee    string  // 0x0144-0x0145 (ASCII), if old==0x33
	SGBFlag        byte    // 0x0146
	CartType       byte    // 0x0147
	ROMSizeCode    byte    // 0x0148
	RAMSizeCode    byte    // 0x0149
	Destination    byte    // 0x014A
	OldLicensee    byte    // 0x014B
	ROMVersion     byte    // 0x014C
	HeaderChecksum byte    // 0x014D
	GlobalChecksum uint16  // 0x014E-0x014F

	// Decoded helpers (for logs)
	ROMSizeBytes int
	ROMBanks     int
	RAMSizeBytes int
	CartTypeStr  string
}

// ParseHeader decodes the header fields without validating logo or checksums.
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd+1 {
		return nil, errors.New("ROM too small to contain header")
	}

	h := &Header{
		Title:          parseTitle(rom[0x0134:0x0144]),
		CGBFlag:        rom[0x0143],
		NewLicensee:    string(rom[0x0144:0x0146]),
		SGBFlag:        rom[0x0146],
		CartType:       rom[0x0147],
		ROMSizeCode:    rom[0x0148],
		RAMSizeCode:    rom[0x0149],
		Destination:    rom[0x014A],
		OldLicensee:    rom[0x014B],
		ROMVersion:     rom[0x014C],
		HeaderChecksum: rom[0x014D],
		GlobalChecksum: binary.BigEndian.Uint16(rom[0x014E:0x0150]),
	}
	copy(h.EntryPoint[:], rom[headerStart:headerStart+4])

	h.ROMSizeBytes, h.ROMBanks = decodeROMSize(h.ROMSizeCode)
	h.RAMSizeBytes = decodeRAMSize(h.RAMSizeCode)
	h.CartTypeStr = cartTypeString(h.CartType)

	return h, nil
}

// parseTitle stops at the first NUL. The last byte doubles as the CGB flag on
// newer carts, so 0x80/0xC0 there ends the title too.
func parseTitle(raw []byte) string {
	n := 0
	for n < len(raw) {
		c := raw[n]
		if c == 0x00 {
			break
		}
		if n == len(raw)-1 && (c == 0x80 || c == 0xC0) {
			break
		}
		n++
	}
	return string(raw[:n])
}

// LogoOK reports whether the boot logo bitmap at 0x0104 is intact.
func LogoOK(rom []byte) bool {
	if len(rom) < logoStart+len(nintendoLogo) {
		return false
	}
	for i, b := range nintendoLogo {
		if rom[logoStart+i] != b {
			return false
		}
	}
	return true
}

func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	var sum byte = 0
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	return sum == rom[0x014D]
}

// GlobalChecksumOK checks the 16-bit sum of every byte except the checksum
// itself. Hardware never verifies it; it is only useful for diagnostics.
func GlobalChecksumOK(rom []byte) bool {
	if len(rom) < headerEnd+1 {
		return false
	}
	var sum uint16
	for i, b := range rom {
		if i == 0x014E || i == 0x014F {
			continue
		}
		sum += uint16(b)
	}
	return sum == binary.BigEndian.Uint16(rom[0x014E:0x0150])
}

func decodeROMSize(code byte) (size, banks int) {
	switch code {
	case 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08:
		banks = 2 << code
		return banks * romBankSize, banks
	case 0x52:
		return 1152 * 1024, 72
	case 0x53:
		return 1280 * 1024, 80
	case 0x54:
		return 1536 * 1024, 96
	default:
		return 0, 0
	}
}

func decodeRAMSize(code byte) int {
	switch code {
	case 0x01:
		return 2 * 1024
	case 0x02:
		return 8 * 1024
	case 0x03:
		return 32 * 1024
	case 0x04:
		return 128 * 1024
	case 0x05:
		return 64 * 1024
	default:
		return 0
	}
}

func cartTypeString(code byte) string {
	switch code {
	case 0x00:
		return "ROM ONLY"
	case 0x01, 0x02, 0x03:
		return "MBC1 (variants)"
	case 0x05, 0x06:
		return "MBC2 (variants)"
	case 0x08, 0x09:
		return "ROM+RAM (variants)"
	case 0x0B, 0x0C, 0x0D:
		return "MMM01 (variants)"
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return "MBC3 (variants)"
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return "MBC5 (variants)"
	case 0x20:
		return "MBC6"
	case 0x22:
		return "MBC7"
	case 0xFC:
		return "POCKET CAMERA"
	case 0xFD:
		return "BANDAI TAMA5"
	case 0xFE:
		return "HuC3"
	case 0xFF:
		return "HuC1"
	default:
		return "Other/unknown"
	}
}
