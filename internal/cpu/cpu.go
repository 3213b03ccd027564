package cpu

import "fmt"

// Bus is the CPU's view of memory.
type Bus interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

const (
	addrIF  = 0xFF0F
	addrIE  = 0xFFFF
	addrDIV = 0xFF04

	interruptCycles = 20
)

// UnimplementedOpcodeError is returned by Step for opcodes the SM83 does not
// define. PC is the address of the opcode byte.
type UnimplementedOpcodeError struct {
	Opcode byte
	PC     uint16
}

func (e *UnimplementedOpcodeError) Error() string {
	return fmt.Sprintf("unimplemented opcode %#02x at %#04x", e.Opcode, e.PC)
}

// CPU is the SM83 core. It only talks to the rest of the machine through Bus.
type CPU struct {
	Registers

	IME    bool
	halted bool
	// stopped waits for a joypad press
	stopped bool
	// EI enables IME after the following instruction
	eiPending bool
	// haltBug makes the next fetch skip the PC increment
	haltBug bool
	// locked is set by an illegal opcode; the core stops executing until reset
	locked bool

	cycles uint64

	bus Bus
}

// New creates a CPU in the DMG post-boot state.
func New(b Bus) *CPU {
	c := &CPU{bus: b}
	c.Reset()
	return c
}

// Reset sets registers to the DMG post-boot state, as if the boot ROM had
// just handed over at 0x0100.
func (c *CPU) Reset() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.clearState()
}

// ResetForBoot prepares to run a boot ROM from 0x0000.
func (c *CPU) ResetForBoot() {
	c.Registers = Registers{SP: 0xFFFE}
	c.clearState()
}

func (c *CPU) clearState() {
	c.IME = false
	c.halted = false
	c.stopped = false
	c.eiPending = false
	c.haltBug = false
	c.locked = false
	c.cycles = 0
}

// SetPC allows tests or a boot stub to set the program counter.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// Bus exposes the underlying bus for tests/tools.
func (c *CPU) Bus() Bus { return c.bus }

// Cycles is the total number of T-cycles executed since reset.
func (c *CPU) Cycles() uint64 { return c.cycles }

func (c *CPU) Halted() bool  { return c.halted }
func (c *CPU) Stopped() bool { return c.stopped }
func (c *CPU) Locked() bool  { return c.locked }

// Step executes one instruction, then services at most one interrupt, and
// returns the elapsed T-cycles.
func (c *CPU) Step() (cycles int, err error) {
	defer func() { c.cycles += uint64(cycles) }()

	if c.locked {
		return 4, nil
	}

	if c.stopped {
		if c.read8(addrIF)&0x10 == 0 {
			return 4, nil
		}
		c.stopped = false
	}

	if c.halted {
		if c.pending() == 0 {
			return 4, nil
		}
		// wakes even with IME clear; the interrupt is only taken if IME is set
		c.halted = false
		return 4 + c.handleInterrupts(false), nil
	}

	eiWasPending := c.eiPending
	pc := c.PC
	op := c.fetchOpcode()

	var in *instruction
	if op == 0xCB {
		in = &cbTable[c.fetch8()]
	} else {
		in = &opTable[op]
	}
	if in.exec == nil {
		c.locked = true
		return 4, &UnimplementedOpcodeError{Opcode: op, PC: pc}
	}

	cycles = in.cycles
	if in.exec(c) {
		cycles = in.alt
	}
	return cycles + c.handleInterrupts(eiWasPending), nil
}

// pending returns the requested and enabled interrupt bits.
func (c *CPU) pending() byte {
	return c.read8(addrIE) & c.read8(addrIF) & 0x1F
}

// handleInterrupts runs at an instruction boundary. A pending EI takes effect
// here if it was issued by an earlier instruction. Returns cycles spent.
func (c *CPU) handleInterrupts(eiWasPending bool) int {
	if eiWasPending && c.eiPending {
		c.IME = true
		c.eiPending = false
	}
	if !c.IME {
		return 0
	}
	pending := c.pending()
	if pending == 0 {
		return 0
	}
	// priority order VBlank(0), LCD STAT(1), Timer(2), Serial(3), Joypad(4)
	var bit uint
	for bit = 0; bit < 5; bit++ {
		if pending&(1<<bit) != 0 {
			break
		}
	}
	// acknowledge: clear IF bit
	c.write8(addrIF, c.read8(addrIF)&^(1<<bit)&0x1F)
	c.halted = false
	c.IME = false
	ret := c.PC
	if c.haltBug {
		// EI; HALT with an interrupt pending: return to the HALT itself
		c.haltBug = false
		ret--
	}
	c.push16(ret)
	c.PC = 0x40 + uint16(bit)*8
	return interruptCycles
}

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write(addr, v) }

func (c *CPU) fetchOpcode() byte {
	op := c.read8(c.PC)
	if c.haltBug {
		c.haltBug = false
		return op
	}
	c.PC++
	return op
}

func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	c.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | (hi << 8)
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.read8(addr))
	hi := uint16(c.read8(addr + 1))
	return lo | (hi << 8)
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v&0x00FF))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) push16(v uint16) {
	c.SP -= 2
	c.write16(c.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}

// halt enters low power mode. With IME clear and an interrupt already
// pending the CPU does not halt and the next opcode byte is read twice.
func (c *CPU) halt() {
	if !c.IME && c.pending() != 0 {
		c.haltBug = true
		return
	}
	c.halted = true
}

// stop resets the divider and sleeps until a joypad press.
func (c *CPU) stop() {
	c.fetch8() // padding byte
	c.write8(addrDIV, 0)
	c.stopped = true
}
