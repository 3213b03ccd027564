package cpu

func add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	n = false
	h = ((a & 0x0F) + (b & 0x0F)) > 0x0F
	cy = r > 0xFF
	return
}

func adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	n = false
	h = ((a & 0x0F) + (b & 0x0F) + ci) > 0x0F
	cy = r > 0xFF
	return
}

func sub8(a, b byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = int16(a) < int16(b)
	return
}

func sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < ((b & 0x0F) + ci)
	cy = int16(a) < int16(b)+int16(ci)
	return
}

// alu applies one of the eight accumulator operations selected by bits 3-5
// of the 0x80-0xBF and 0xC6-0xFE opcodes.
func (c *CPU) alu(op int, v byte) {
	var (
		res           byte
		z, n, h, cy   bool
		carry         = c.flag(flagC)
		discardResult bool
	)
	switch op {
	case 0: // ADD
		res, z, n, h, cy = add8(c.A, v)
	case 1: // ADC
		res, z, n, h, cy = adc8(c.A, v, carry)
	case 2: // SUB
		res, z, n, h, cy = sub8(c.A, v)
	case 3: // SBC
		res, z, n, h, cy = sbc8(c.A, v, carry)
	case 4: // AND
		res = c.A & v
		z, h = res == 0, true
	case 5: // XOR
		res = c.A ^ v
		z = res == 0
	case 6: // OR
		res = c.A | v
		z = res == 0
	case 7: // CP
		_, z, n, h, cy = sub8(c.A, v)
		discardResult = true
	}
	if !discardResult {
		c.A = res
	}
	c.setZNHC(z, n, h, cy)
}

// inc8 and dec8 leave C untouched.
func (c *CPU) inc8(v byte) byte {
	r := v + 1
	c.F = c.F&flagC | boolFlag(r == 0, flagZ) | boolFlag(v&0x0F == 0x0F, flagH)
	return r
}

func (c *CPU) dec8(v byte) byte {
	r := v - 1
	c.F = c.F&flagC | flagN | boolFlag(r == 0, flagZ) | boolFlag(v&0x0F == 0x00, flagH)
	return r
}

// addHL adds to HL keeping Z; H is the carry out of bit 11.
func (c *CPU) addHL(v uint16) {
	hl := c.Pair(PairHL)
	r := uint32(hl) + uint32(v)
	c.F = c.F&flagZ | boolFlag((hl&0x0FFF)+(v&0x0FFF) > 0x0FFF, flagH) | boolFlag(r > 0xFFFF, flagC)
	c.SetPair(PairHL, uint16(r))
}

// addSPe computes SP plus a signed byte. H and C come from the unsigned add
// of the low byte; Z and N are cleared.
func (c *CPU) addSPe(e byte) uint16 {
	sp := c.SP
	r := uint16(int32(sp) + int32(int8(e)))
	c.F = boolFlag((sp&0x0F)+uint16(e&0x0F) > 0x0F, flagH) | boolFlag((sp&0xFF)+uint16(e) > 0xFF, flagC)
	return r
}

// daa adjusts A to packed BCD after an add or subtract.
func (c *CPU) daa() {
	a := c.A
	var adjust byte
	cy := c.flag(flagC)
	if c.flag(flagN) {
		if c.flag(flagH) {
			adjust |= 0x06
		}
		if cy {
			adjust |= 0x60
		}
		a -= adjust
	} else {
		if c.flag(flagH) || a&0x0F > 0x09 {
			adjust |= 0x06
		}
		if cy || a > 0x99 {
			adjust |= 0x60
			cy = true
		}
		a += adjust
	}
	c.A = a
	c.F = c.F&flagN | boolFlag(a == 0, flagZ) | boolFlag(cy, flagC)
}

// rotate and shift ops shared by the CB table and the accumulator forms.
func (c *CPU) rlc(v byte) byte {
	cy := v >> 7
	r := v<<1 | cy
	c.setZNHC(r == 0, false, false, cy == 1)
	return r
}

func (c *CPU) rrc(v byte) byte {
	cy := v & 1
	r := v>>1 | cy<<7
	c.setZNHC(r == 0, false, false, cy == 1)
	return r
}

func (c *CPU) rl(v byte) byte {
	r := v << 1
	if c.flag(flagC) {
		r |= 1
	}
	c.setZNHC(r == 0, false, false, v&0x80 != 0)
	return r
}

func (c *CPU) rr(v byte) byte {
	r := v >> 1
	if c.flag(flagC) {
		r |= 0x80
	}
	c.setZNHC(r == 0, false, false, v&1 != 0)
	return r
}

func (c *CPU) sla(v byte) byte {
	r := v << 1
	c.setZNHC(r == 0, false, false, v&0x80 != 0)
	return r
}

func (c *CPU) sra(v byte) byte {
	r := v>>1 | v&0x80
	c.setZNHC(r == 0, false, false, v&1 != 0)
	return r
}

func (c *CPU) swap(v byte) byte {
	r := v<<4 | v>>4
	c.setZNHC(r == 0, false, false, false)
	return r
}

func (c *CPU) srl(v byte) byte {
	r := v >> 1
	c.setZNHC(r == 0, false, false, v&1 != 0)
	return r
}

func (c *CPU) bit(n uint, v byte) {
	c.F = c.F&flagC | flagH | boolFlag(v&(1<<n) == 0, flagZ)
}

func boolFlag(on bool, mask byte) byte {
	if on {
		return mask
	}
	return 0
}
