package cpu

import "fmt"

// instruction is one dispatch table entry. exec runs with PC already past
// the opcode; it fetches its own operands and returns true when a
// conditional branch was taken, in which case alt cycles apply.
type instruction struct {
	mnemonic string
	length   int
	cycles   int
	alt      int
	exec     func(c *CPU) bool
}

var (
	opTable [256]instruction
	cbTable [256]instruction
)

// Operand index order used by the opcode encoding.
var (
	reg8Names = [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	rpNames   = [4]string{"BC", "DE", "HL", "SP"}
	rp2Names  = [4]string{"BC", "DE", "HL", "AF"}
	condNames = [4]string{"NZ", "Z", "NC", "C"}
	aluNames  = [8]string{"ADD A,", "ADC A,", "SUB ", "SBC A,", "AND ", "XOR ", "OR ", "CP "}
	rotNames  = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL"}
)

const regHL = 6 // (HL) slot in the 8-bit register index

func (c *CPU) reg8(i int) byte {
	switch i {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case regHL:
		return c.read8(c.Pair(PairHL))
	default:
		return c.A
	}
}

func (c *CPU) setReg8(i int, v byte) {
	switch i {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case regHL:
		c.write8(c.Pair(PairHL), v)
	default:
		c.A = v
	}
}

// rp registers: BC, DE, HL, SP.
func (c *CPU) rp(i int) uint16 {
	if i == 3 {
		return c.SP
	}
	return c.Pair(RegPair(i + 1))
}

func (c *CPU) setRP(i int, v uint16) {
	if i == 3 {
		c.SP = v
		return
	}
	c.SetPair(RegPair(i+1), v)
}

// rp2 registers: BC, DE, HL, AF.
func rp2Pair(i int) RegPair {
	if i == 3 {
		return PairAF
	}
	return RegPair(i + 1)
}

func (c *CPU) cond(i int) bool {
	switch i {
	case 0:
		return !c.flag(flagZ)
	case 1:
		return c.flag(flagZ)
	case 2:
		return !c.flag(flagC)
	default:
		return c.flag(flagC)
	}
}

func (c *CPU) jr() {
	e := int8(c.fetch8())
	c.PC = uint16(int32(c.PC) + int32(e))
}

func def(op byte, mnemonic string, length, cycles int, exec func(c *CPU)) {
	opTable[op] = instruction{mnemonic: mnemonic, length: length, cycles: cycles, alt: cycles,
		exec: func(c *CPU) bool { exec(c); return false }}
}

func defCond(op byte, mnemonic string, length, cycles, alt int, exec func(c *CPU) bool) {
	opTable[op] = instruction{mnemonic: mnemonic, length: length, cycles: cycles, alt: alt, exec: exec}
}

func init() {
	buildPrimary()
	buildCB()
}

func buildPrimary() {
	def(0x00, "NOP", 1, 4, func(c *CPU) {})
	def(0x08, "LD (a16),SP", 3, 20, func(c *CPU) { c.write16(c.fetch16(), c.SP) })
	def(0x10, "STOP", 2, 4, func(c *CPU) { c.stop() })
	def(0x18, "JR r8", 2, 12, func(c *CPU) { c.jr() })
	def(0x76, "HALT", 1, 4, func(c *CPU) { c.halt() })

	// accumulator rotates always clear Z
	def(0x07, "RLCA", 1, 4, func(c *CPU) { c.A = c.rlc(c.A); c.setFlag(flagZ, false) })
	def(0x0F, "RRCA", 1, 4, func(c *CPU) { c.A = c.rrc(c.A); c.setFlag(flagZ, false) })
	def(0x17, "RLA", 1, 4, func(c *CPU) { c.A = c.rl(c.A); c.setFlag(flagZ, false) })
	def(0x1F, "RRA", 1, 4, func(c *CPU) { c.A = c.rr(c.A); c.setFlag(flagZ, false) })

	def(0x27, "DAA", 1, 4, func(c *CPU) { c.daa() })
	def(0x2F, "CPL", 1, 4, func(c *CPU) { c.A = ^c.A; c.F |= flagN | flagH })
	def(0x37, "SCF", 1, 4, func(c *CPU) { c.F = c.F&flagZ | flagC })
	def(0x3F, "CCF", 1, 4, func(c *CPU) { c.F = c.F&(flagZ|flagC) ^ flagC })

	// indirect accumulator loads
	def(0x02, "LD (BC),A", 1, 8, func(c *CPU) { c.write8(c.Pair(PairBC), c.A) })
	def(0x12, "LD (DE),A", 1, 8, func(c *CPU) { c.write8(c.Pair(PairDE), c.A) })
	def(0x22, "LD (HL+),A", 1, 8, func(c *CPU) {
		hl := c.Pair(PairHL)
		c.write8(hl, c.A)
		c.SetPair(PairHL, hl+1)
	})
	def(0x32, "LD (HL-),A", 1, 8, func(c *CPU) {
		hl := c.Pair(PairHL)
		c.write8(hl, c.A)
		c.SetPair(PairHL, hl-1)
	})
	def(0x0A, "LD A,(BC)", 1, 8, func(c *CPU) { c.A = c.read8(c.Pair(PairBC)) })
	def(0x1A, "LD A,(DE)", 1, 8, func(c *CPU) { c.A = c.read8(c.Pair(PairDE)) })
	def(0x2A, "LD A,(HL+)", 1, 8, func(c *CPU) {
		hl := c.Pair(PairHL)
		c.A = c.read8(hl)
		c.SetPair(PairHL, hl+1)
	})
	def(0x3A, "LD A,(HL-)", 1, 8, func(c *CPU) {
		hl := c.Pair(PairHL)
		c.A = c.read8(hl)
		c.SetPair(PairHL, hl-1)
	})

	for i := 0; i < 4; i++ {
		p := i
		base := byte(p << 4)
		def(base|0x01, "LD "+rpNames[p]+",d16", 3, 12, func(c *CPU) { c.setRP(p, c.fetch16()) })
		def(base|0x03, "INC "+rpNames[p], 1, 8, func(c *CPU) { c.setRP(p, c.rp(p)+1) })
		def(base|0x0B, "DEC "+rpNames[p], 1, 8, func(c *CPU) { c.setRP(p, c.rp(p)-1) })
		def(base|0x09, "ADD HL,"+rpNames[p], 1, 8, func(c *CPU) { c.addHL(c.rp(p)) })

		pp := rp2Pair(p)
		def(0xC1|base, "POP "+rp2Names[p], 1, 12, func(c *CPU) { c.SetPair(pp, c.pop16()) })
		def(0xC5|base, "PUSH "+rp2Names[p], 1, 16, func(c *CPU) { c.push16(c.Pair(pp)) })

		cc := p
		defCond(0x20|byte(cc<<3), "JR "+condNames[cc]+",r8", 2, 8, 12, func(c *CPU) bool {
			if !c.cond(cc) {
				c.PC++
				return false
			}
			c.jr()
			return true
		})
		defCond(0xC0|byte(cc<<3), "RET "+condNames[cc], 1, 8, 20, func(c *CPU) bool {
			if !c.cond(cc) {
				return false
			}
			c.PC = c.pop16()
			return true
		})
		defCond(0xC2|byte(cc<<3), "JP "+condNames[cc]+",a16", 3, 12, 16, func(c *CPU) bool {
			addr := c.fetch16()
			if !c.cond(cc) {
				return false
			}
			c.PC = addr
			return true
		})
		defCond(0xC4|byte(cc<<3), "CALL "+condNames[cc]+",a16", 3, 12, 24, func(c *CPU) bool {
			addr := c.fetch16()
			if !c.cond(cc) {
				return false
			}
			c.push16(c.PC)
			c.PC = addr
			return true
		})
	}

	for i := 0; i < 8; i++ {
		r := i
		name := reg8Names[r]
		incCycles, ldCycles := 4, 8
		if r == regHL {
			incCycles, ldCycles = 12, 12
		}
		def(byte(r<<3)|0x04, "INC "+name, 1, incCycles, func(c *CPU) { c.setReg8(r, c.inc8(c.reg8(r))) })
		def(byte(r<<3)|0x05, "DEC "+name, 1, incCycles, func(c *CPU) { c.setReg8(r, c.dec8(c.reg8(r))) })
		def(byte(r<<3)|0x06, "LD "+name+",d8", 2, ldCycles, func(c *CPU) { c.setReg8(r, c.fetch8()) })

		n := i
		def(0xC7|byte(n<<3), fmt.Sprintf("RST %02XH", n*8), 1, 16, func(c *CPU) {
			c.push16(c.PC)
			c.PC = uint16(n * 8)
		})

		op := i
		def(0xC6|byte(op<<3), aluNames[op]+"d8", 2, 8, func(c *CPU) { c.alu(op, c.fetch8()) })
	}

	// 0x40-0x7F: LD r,r' (0x76 is HALT)
	for op := 0x40; op < 0x80; op++ {
		if op == 0x76 {
			continue
		}
		d, s := (op>>3)&7, op&7
		cycles := 4
		if d == regHL || s == regHL {
			cycles = 8
		}
		def(byte(op), "LD "+reg8Names[d]+","+reg8Names[s], 1, cycles, func(c *CPU) { c.setReg8(d, c.reg8(s)) })
	}

	// 0x80-0xBF: ALU A,r
	for op := 0x80; op < 0xC0; op++ {
		kind, s := (op>>3)&7, op&7
		cycles := 4
		if s == regHL {
			cycles = 8
		}
		def(byte(op), aluNames[kind]+reg8Names[s], 1, cycles, func(c *CPU) { c.alu(kind, c.reg8(s)) })
	}

	def(0xC3, "JP a16", 3, 16, func(c *CPU) { c.PC = c.fetch16() })
	def(0xC9, "RET", 1, 16, func(c *CPU) { c.PC = c.pop16() })
	def(0xD9, "RETI", 1, 16, func(c *CPU) {
		c.PC = c.pop16()
		c.IME = true
		c.eiPending = false
	})
	def(0xCD, "CALL a16", 3, 24, func(c *CPU) {
		addr := c.fetch16()
		c.push16(c.PC)
		c.PC = addr
	})
	def(0xE9, "JP (HL)", 1, 4, func(c *CPU) { c.PC = c.Pair(PairHL) })

	def(0xE0, "LDH (a8),A", 2, 12, func(c *CPU) { c.write8(0xFF00|uint16(c.fetch8()), c.A) })
	def(0xF0, "LDH A,(a8)", 2, 12, func(c *CPU) { c.A = c.read8(0xFF00 | uint16(c.fetch8())) })
	def(0xE2, "LD (C),A", 1, 8, func(c *CPU) { c.write8(0xFF00|uint16(c.C), c.A) })
	def(0xF2, "LD A,(C)", 1, 8, func(c *CPU) { c.A = c.read8(0xFF00 | uint16(c.C)) })
	def(0xEA, "LD (a16),A", 3, 16, func(c *CPU) { c.write8(c.fetch16(), c.A) })
	def(0xFA, "LD A,(a16)", 3, 16, func(c *CPU) { c.A = c.read8(c.fetch16()) })

	def(0xE8, "ADD SP,r8", 2, 16, func(c *CPU) { c.SP = c.addSPe(c.fetch8()) })
	def(0xF8, "LD HL,SP+r8", 2, 12, func(c *CPU) { c.SetPair(PairHL, c.addSPe(c.fetch8())) })
	def(0xF9, "LD SP,HL", 1, 8, func(c *CPU) { c.SP = c.Pair(PairHL) })

	def(0xF3, "DI", 1, 4, func(c *CPU) {
		c.IME = false
		c.eiPending = false
	})
	def(0xFB, "EI", 1, 4, func(c *CPU) { c.eiPending = true })

	// Dispatched by Step through cbTable; the entry exists for the disassembler.
	opTable[0xCB] = instruction{mnemonic: "PREFIX CB", length: 2}
}

func buildCB() {
	for op := 0; op < 0x100; op++ {
		r := op & 7
		n := uint((op >> 3) & 7)
		rw, ro := 8, 8
		if r == regHL {
			rw, ro = 16, 12
		}
		var (
			mnemonic string
			cycles   = rw
			exec     func(c *CPU)
		)
		switch op >> 6 {
		case 0:
			mnemonic = rotNames[n] + " " + reg8Names[r]
			shift := cbShift(n)
			exec = func(c *CPU) { c.setReg8(r, shift(c, c.reg8(r))) }
		case 1:
			mnemonic = fmt.Sprintf("BIT %d,%s", n, reg8Names[r])
			cycles = ro
			exec = func(c *CPU) { c.bit(n, c.reg8(r)) }
		case 2:
			mnemonic = fmt.Sprintf("RES %d,%s", n, reg8Names[r])
			exec = func(c *CPU) { c.setReg8(r, c.reg8(r)&^(1<<n)) }
		case 3:
			mnemonic = fmt.Sprintf("SET %d,%s", n, reg8Names[r])
			exec = func(c *CPU) { c.setReg8(r, c.reg8(r)|1<<n) }
		}
		run := exec
		cbTable[op] = instruction{mnemonic: mnemonic, length: 2, cycles: cycles, alt: cycles,
			exec: func(c *CPU) bool { run(c); return false }}
	}
}

func cbShift(n uint) func(c *CPU, v byte) byte {
	switch n {
	case 0:
		return (*CPU).rlc
	case 1:
		return (*CPU).rrc
	case 2:
		return (*CPU).rl
	case 3:
		return (*CPU).rr
	case 4:
		return (*CPU).sla
	case 5:
		return (*CPU).sra
	case 6:
		return (*CPU).swap
	default:
		return (*CPU).srl
	}
}
