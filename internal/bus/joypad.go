package bus

// Joypad button bits for SetJoypadState. The low nibble is the D-pad group
// and the high nibble the button group, each in JOYP bit order.
const (
	JoypRight     = 1 << 0
	JoypLeft      = 1 << 1
	JoypUp        = 1 << 2
	JoypDown      = 1 << 3
	JoypA         = 1 << 4
	JoypB         = 1 << 5
	JoypSelectBtn = 1 << 6
	JoypStart     = 1 << 7
)

// SetJoypadState replaces the pressed-button mask. A button going down
// requests the joypad interrupt.
func (b *Bus) SetJoypadState(mask byte) {
	pressed := mask &^ b.joyp
	b.joyp = mask
	if pressed != 0 {
		b.RequestInterrupt(IntJoypad)
	}
}

// JoypadState returns the current pressed-button mask.
func (b *Bus) JoypadState() byte { return b.joyp }

// readJoypad builds JOYP: bits 6-7 read 1, bits 4-5 are the group select
// (0 = selected) and the low nibble is active low.
func (b *Bus) readJoypad() byte {
	sel := b.io[AddrJOYP-0xFF00] & 0x30
	low := byte(0x0F)
	if sel&0x10 == 0 {
		low &^= b.joyp & 0x0F
	}
	if sel&0x20 == 0 {
		low &^= b.joyp >> 4
	}
	return 0xC0 | sel | low
}
