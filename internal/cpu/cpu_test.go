package cpu

import (
	"errors"
	"testing"

	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/bus"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/cart"
)

// newCPUWithROM places code at the post-boot entry point 0x0100.
func newCPUWithROM(code []byte) (*CPU, *bus.Bus) {
	rom := make([]byte, 0x8000)
	copy(rom[0x0100:], code)
	return newCPUWithImage(rom)
}

func newCPUWithImage(rom []byte) (*CPU, *bus.Bus) {
	b := bus.New(nil, cart.NewNone(rom, nil))
	b.Write(0xFF0F, 0x00)
	return New(b), b
}

func step(t *testing.T, c *CPU) int {
	t.Helper()
	cycles, err := c.Step()
	if err != nil {
		t.Fatalf("Step at %04X: %v", c.PC, err)
	}
	return cycles
}

func TestCPU_ResetState(t *testing.T) {
	c, _ := newCPUWithROM(nil)
	if c.Pair(PairAF) != 0x01B0 || c.Pair(PairBC) != 0x0013 || c.Pair(PairDE) != 0x00D8 || c.Pair(PairHL) != 0x014D {
		t.Fatalf("post-boot registers wrong: %s", c.Registers.String())
	}
	if c.SP != 0xFFFE || c.PC != 0x0100 || c.IME {
		t.Fatalf("post-boot SP/PC/IME wrong: SP=%04X PC=%04X IME=%v", c.SP, c.PC, c.IME)
	}
	c.ResetForBoot()
	if c.PC != 0x0000 || c.SP != 0xFFFE {
		t.Fatalf("boot reset PC=%04X SP=%04X", c.PC, c.SP)
	}
}

func TestCPU_NopAndPC(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x00}) // NOP
	if cycles := step(t, c); cycles != 4 {
		t.Fatalf("NOP cycles got %d want 4", cycles)
	}
	if c.PC != 0x0101 {
		t.Fatalf("PC after NOP got %#04x want 0x0101", c.PC)
	}
	if c.Cycles() != 4 {
		t.Fatalf("cycle counter got %d want 4", c.Cycles())
	}
}

func TestCPU_JP(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0xC3, 0x50, 0x01}) // JP 0x0150
	if cycles := step(t, c); cycles != 16 || c.PC != 0x0150 {
		t.Fatalf("JP cycles=%d PC=%#04x want cycles=16 PC=0x0150", cycles, c.PC)
	}
}

func TestCPU_JR_Loop(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x18, 0xFE}) // JR -2
	step(t, c)
	if c.PC != 0x0100 {
		t.Fatalf("JR -2 PC got %#04x want 0x0100", c.PC)
	}
}

func TestCPU_LD_A_d8_And_XOR_A(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x3E, 0x12, 0xAF}) // LD A,0x12; XOR A
	step(t, c)                                      // LD
	if c.A != 0x12 {
		t.Fatalf("A after LD got %02x want 12", c.A)
	}
	step(t, c) // XOR A
	if c.A != 0x00 {
		t.Fatalf("A after XOR got %02x want 00", c.A)
	}
	if c.F != 0x80 { // only Z
		t.Fatalf("F after XOR A got %02X want 80", c.F)
	}
}

func TestCPU_LD_a16_A_and_LD_A_a16(t *testing.T) {
	// Program: LD A,0x77; LD (0xC000),A; LD A,0x00; LD A,(0xC000)
	prog := []byte{0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0}
	c, b := newCPUWithROM(prog)
	step(t, c) // LD A,77
	step(t, c) // LD (C000),A
	if a := b.Read(0xC000); a != 0x77 {
		t.Fatalf("WRAM at C000 got %02x want 77", a)
	}
	step(t, c) // LD A,00
	step(t, c) // LD A,(C000)
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %02x want 77", c.A)
	}
}

func TestCPU_INC_DEC_Flags(t *testing.T) {
	for r := 0; r < 8; r++ {
		if r == regHL {
			continue
		}
		inc := byte(r<<3) | 0x04
		dec := byte(r<<3) | 0x05
		c, _ := newCPUWithROM([]byte{inc, inc, dec, dec})

		c.setReg8(r, 0x0F)
		c.F = 0x10 // carry set initially
		step(t, c)
		if got := c.reg8(r); got != 0x10 || c.F != 0x30 {
			t.Fatalf("INC %s 0F: got %02X F=%02X want 10 F=30", reg8Names[r], got, c.F)
		}
		c.setReg8(r, 0xFF)
		c.F = 0x00
		step(t, c)
		if got := c.reg8(r); got != 0x00 || c.F != 0xA0 {
			t.Fatalf("INC %s FF: got %02X F=%02X want 00 F=A0", reg8Names[r], got, c.F)
		}
		c.setReg8(r, 0x10)
		c.F = 0x10
		step(t, c)
		if got := c.reg8(r); got != 0x0F || c.F != 0x70 {
			t.Fatalf("DEC %s 10: got %02X F=%02X want 0F F=70", reg8Names[r], got, c.F)
		}
		c.setReg8(r, 0x01)
		c.F = 0x00
		step(t, c)
		if got := c.reg8(r); got != 0x00 || c.F != 0xC0 {
			t.Fatalf("DEC %s 01: got %02X F=%02X want 00 F=C0", reg8Names[r], got, c.F)
		}
	}
}

func TestCPU_INC_HL_Indirect(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x21, 0x00, 0xC0, 0x34, 0x35, 0x35})
	b.Write(0xC000, 0xFF)
	step(t, c)
	if cyc := step(t, c); cyc != 12 || b.Read(0xC000) != 0x00 || c.F&flagZ == 0 {
		t.Fatalf("INC (HL) cyc=%d mem=%02X F=%02X", cyc, b.Read(0xC000), c.F)
	}
	step(t, c)
	if got := b.Read(0xC000); got != 0xFF || c.F&flagH == 0 {
		t.Fatalf("DEC (HL) mem=%02X F=%02X", got, c.F)
	}
}

func TestCPU_LD_16bit_and_LDH(t *testing.T) {
	prog := []byte{
		0x21, 0x00, 0xC0, // LD HL, C000
		0x36, 0x5A, // LD (HL), 5A
		0x3E, 0x00, // LD A, 00
		0xF0, 0x80, // LD A, (FF00+80)
		0xE0, 0x81, // LD (FF00+81), A
		0x0E, 0x82, // LD C, 82
		0xE2, // LD (C), A
		0xF2, // LD A, (C)
	}
	c, b := newCPUWithROM(prog)
	b.Write(0xFF80, 0xA7) // HRAM base

	for i := 0; i < 5; i++ {
		step(t, c)
	}
	if v := b.Read(0xC000); v != 0x5A {
		t.Fatalf("WRAM C000 got %02x want 5A", v)
	}
	if v := b.Read(0xFF81); v != 0xA7 || c.A != 0xA7 {
		t.Fatalf("LDH round trip got A=%02x FF81=%02x want A7", c.A, v)
	}
	step(t, c)
	if cyc := step(t, c); cyc != 8 || b.Read(0xFF82) != 0xA7 {
		t.Fatalf("LD (C),A cyc=%d FF82=%02X", cyc, b.Read(0xFF82))
	}
	c.A = 0
	step(t, c)
	if c.A != 0xA7 {
		t.Fatalf("LD A,(C) got %02X want A7", c.A)
	}
}

func TestCPU_HLIncDec(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x21, 0xFF, 0xC0, 0x22, 0x32, 0x2A, 0x3A})
	c.A = 0x42
	step(t, c)
	step(t, c) // LD (HL+),A
	if c.Pair(PairHL) != 0xC100 || b.Read(0xC0FF) != 0x42 {
		t.Fatalf("LD (HL+),A HL=%04X mem=%02X", c.Pair(PairHL), b.Read(0xC0FF))
	}
	step(t, c) // LD (HL-),A
	if c.Pair(PairHL) != 0xC0FF || b.Read(0xC100) != 0x42 {
		t.Fatalf("LD (HL-),A HL=%04X mem=%02X", c.Pair(PairHL), b.Read(0xC100))
	}
	c.A = 0
	step(t, c) // LD A,(HL+)
	if c.A != 0x42 || c.Pair(PairHL) != 0xC100 {
		t.Fatalf("LD A,(HL+) A=%02X HL=%04X", c.A, c.Pair(PairHL))
	}
	c.A = 0
	step(t, c) // LD A,(HL-)
	if c.A != 0x42 || c.Pair(PairHL) != 0xC0FF {
		t.Fatalf("LD A,(HL-) A=%02X HL=%04X", c.A, c.Pair(PairHL))
	}
}

func TestCPU_CALL_RET(t *testing.T) {
	// 0100: CALL 0105; NOP; NOP; RET at 0105
	c, _ := newCPUWithROM([]byte{0xCD, 0x05, 0x01, 0x00, 0x00, 0xC9})
	if cyc := step(t, c); cyc != 24 || c.PC != 0x0105 || c.SP != 0xFFFC {
		t.Fatalf("CALL cyc=%d PC=%04X SP=%04X", cyc, c.PC, c.SP)
	}
	retCycles := step(t, c)
	if c.PC != 0x0103 || retCycles != 16 || c.SP != 0xFFFE {
		t.Fatalf("RET did not return to 0103; PC=%04x cyc=%d", c.PC, retCycles)
	}
}

func TestCPU_RST(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0xEF}) // RST 28H
	if cyc := step(t, c); cyc != 16 || c.PC != 0x0028 {
		t.Fatalf("RST 28H cyc=%d PC=%04X", cyc, c.PC)
	}
}

func TestCPU_PUSH_POP(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0xC5, 0xD1}) // PUSH BC; POP DE
	c.SetPair(PairBC, 0x1234)
	if cyc := step(t, c); cyc != 16 {
		t.Fatalf("PUSH cycles got %d want 16", cyc)
	}
	if cyc := step(t, c); cyc != 12 || c.Pair(PairDE) != 0x1234 {
		t.Fatalf("POP DE cyc=%d DE=%04X", cyc, c.Pair(PairDE))
	}
}

func TestCPU_InterruptPriority(t *testing.T) {
	c, b := newCPUWithROM(nil)
	c.IME = true
	b.Write(0xFFFF, 0xFF)
	b.Write(0xFF0F, 0x05) // VBlank + Timer

	if cyc := c.handleInterrupts(false); cyc != 20 {
		t.Fatalf("dispatch cycles got %d want 20", cyc)
	}
	if c.PC != 0x0040 {
		t.Fatalf("vector got %04X want 0040", c.PC)
	}
	if got := b.Read(0xFF0F) & 0x1F; got != 0x04 {
		t.Fatalf("IF after dispatch got %02X want 04", got)
	}
	if c.IME {
		t.Fatal("IME should be cleared after interrupt service")
	}
	if ret := c.read16(c.SP); ret != 0x0100 {
		t.Fatalf("pushed PC got %04X want 0100", ret)
	}

	// next source once IME is back
	c.IME = true
	c.handleInterrupts(false)
	if c.PC != 0x0050 {
		t.Fatalf("timer vector got %04X want 0050", c.PC)
	}
}

func TestCPU_InterruptAfterInstruction(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x00})
	c.IME = true
	b.Write(0xFFFF, 0x10)
	b.Write(0xFF0F, 0x10) // joypad
	cyc := step(t, c)
	if cyc != 24 || c.PC != 0x0060 {
		t.Fatalf("NOP + dispatch cyc=%d PC=%04X want 24 0060", cyc, c.PC)
	}
	if ret := c.read16(c.SP); ret != 0x0101 {
		t.Fatalf("return address got %04X want 0101", ret)
	}
}

func TestCPU_HALT_WakeWithoutIME(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x76, 0x00})
	b.Write(0xFFFF, 0x02) // enable LCD STAT
	step(t, c)            // HALT
	if !c.Halted() {
		t.Fatal("HALT did not halt")
	}
	if cyc := step(t, c); cyc != 4 || !c.Halted() {
		t.Fatalf("halted step cyc=%d halted=%v", cyc, c.Halted())
	}
	b.Write(0xFF0F, 0x02) // request STAT
	cyc := step(t, c)
	if cyc != 4 {
		t.Fatalf("halt step without servicing should take 4 cycles, got %d", cyc)
	}
	if c.Halted() {
		t.Fatal("HALT should wake when IF&IE!=0 even with IME=0")
	}
	if c.PC != 0x0101 || b.Read(0xFF0F)&0x02 == 0 {
		t.Fatalf("wake without IME must not service: PC=%04X IF=%02X", c.PC, b.Read(0xFF0F))
	}
}

func TestCPU_HALT_WakeWithIME(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x76})
	c.IME = true
	b.Write(0xFFFF, 0x04)
	step(t, c) // HALT
	b.Write(0xFF0F, 0x04)
	if cyc := step(t, c); cyc != 24 || c.PC != 0x0050 || c.Halted() {
		t.Fatalf("wake+dispatch cyc=%d PC=%04X halted=%v", cyc, c.PC, c.Halted())
	}
}

func TestCPU_DAA_AddAndSub(t *testing.T) {
	// LD A,0x45; ADD A,0x38; DAA -> 0x83 with flags clear
	// LD A,0x45; SUB 0x06; DAA -> 0x39 with N set
	c, _ := newCPUWithROM([]byte{0x3E, 0x45, 0xC6, 0x38, 0x27, 0x3E, 0x45, 0xD6, 0x06, 0x27})
	step(t, c) // LD
	step(t, c) // ADD
	step(t, c) // DAA
	if c.A != 0x83 {
		t.Fatalf("DAA after add got A=%02X want 83", c.A)
	}
	if c.F != 0x00 {
		t.Fatalf("DAA flags unexpected F=%02X", c.F)
	}

	step(t, c)
	step(t, c)
	step(t, c)
	if c.A != 0x39 || c.F != 0x40 {
		t.Fatalf("DAA after sub got A=%02X F=%02X", c.A, c.F)
	}
}

func TestCPU_DAA_CarryOut(t *testing.T) {
	// 0x99 + 0x01 = 0x9A -> DAA gives 0x00 with Z and C
	c, _ := newCPUWithROM([]byte{0x3E, 0x99, 0xC6, 0x01, 0x27})
	step(t, c)
	step(t, c)
	step(t, c)
	if c.A != 0x00 || c.F != 0x90 {
		t.Fatalf("DAA carry got A=%02X F=%02X want 00 90", c.A, c.F)
	}
}

func TestCPU_EI_DelayedEnable(t *testing.T) {
	// EI; NOP; the interrupt is taken after the NOP
	c, b := newCPUWithROM([]byte{0xFB, 0x00, 0x00})
	b.Write(0xFFFF, 0x01)
	b.Write(0xFF0F, 0x01)
	if cyc := step(t, c); cyc != 4 || c.IME {
		t.Fatalf("IME should not be enabled immediately after EI (cyc=%d)", cyc)
	}
	cyc := step(t, c)
	if c.PC != 0x0040 || cyc != 24 {
		t.Fatalf("interrupt not serviced after EI delay; PC=%04X cyc=%d", c.PC, cyc)
	}
	if ret := c.read16(c.SP); ret != 0x0102 {
		t.Fatalf("interrupt taken before the NOP ran: return %04X", ret)
	}
}

func TestCPU_DI_CancelsPendingEI(t *testing.T) {
	c, b := newCPUWithROM([]byte{0xFB, 0xF3, 0x00})
	b.Write(0xFFFF, 0x01)
	b.Write(0xFF0F, 0x01)
	step(t, c)
	step(t, c)
	step(t, c)
	if c.IME || c.PC != 0x0103 {
		t.Fatalf("DI after EI: IME=%v PC=%04X", c.IME, c.PC)
	}
}

func TestCPU_STOP(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x10, 0x00, 0x00})
	b.Tick(0x400)
	if cycles := step(t, c); cycles != 4 {
		t.Fatalf("STOP cycles got %d want 4", cycles)
	}
	if c.PC != 0x0102 || !c.Stopped() {
		t.Fatalf("PC after STOP got %04X stopped=%v", c.PC, c.Stopped())
	}
	if got := b.Read(0xFF04); got != 0 {
		t.Fatalf("DIV after STOP got %02X want 00", got)
	}
	step(t, c)
	if c.PC != 0x0102 {
		t.Fatalf("stopped CPU advanced to %04X", c.PC)
	}
	b.SetJoypadState(bus.JoypStart)
	step(t, c) // wakes and runs the NOP
	if c.Stopped() || c.PC != 0x0103 {
		t.Fatalf("joypad wake: stopped=%v PC=%04X", c.Stopped(), c.PC)
	}
}

func TestCPU_HALT_Bug_DoubleFetch(t *testing.T) {
	// HALT; INC A -- with IME=0 and an interrupt pending, INC A runs twice
	c, b := newCPUWithROM([]byte{0x76, 0x3C, 0x00})
	b.Write(0xFFFF, 0x01)
	b.Write(0xFF0F, 0x01)
	c.A = 0

	if cyc := step(t, c); cyc != 4 || c.Halted() {
		t.Fatalf("HALT bug: step after HALT got cyc=%d halted=%v", cyc, c.Halted())
	}
	step(t, c)
	if c.PC != 0x0101 || c.A != 1 {
		t.Fatalf("HALT bug first INC: PC=%04X A=%d", c.PC, c.A)
	}
	step(t, c)
	if c.PC != 0x0102 || c.A != 2 {
		t.Fatalf("HALT bug second INC: PC=%04X A=%d", c.PC, c.A)
	}
}

func TestCPU_EI_HALT_PendingInterrupt(t *testing.T) {
	rom := make([]byte, 0x8000)
	copy(rom[0x0100:], []byte{0xFB, 0x76, 0x00}) // EI; HALT; NOP
	copy(rom[0x0040:], []byte{0x3C, 0xD9})       // INC A; RETI
	c, b := newCPUWithImage(rom)
	c.A = 0
	b.Write(0xFFFF, 0x01)
	b.Write(0xFF0F, 0x01)

	step(t, c) // EI
	if cyc := step(t, c); cyc != 24 {
		t.Fatalf("HALT + dispatch cycles got %d want 24", cyc)
	}
	if c.PC != 0x0040 || c.Halted() {
		t.Fatalf("after EI;HALT PC=%04X halted=%v want 0040 running", c.PC, c.Halted())
	}
	if got := b.Read16(c.SP); got != 0x0101 {
		t.Fatalf("return address got %04X want 0101 (the HALT)", got)
	}
	step(t, c) // INC A
	if c.PC != 0x0041 || c.A != 1 {
		t.Fatalf("first handler instruction PC=%04X A=%d want 0041 1", c.PC, c.A)
	}
	step(t, c) // RETI
	if c.PC != 0x0101 || !c.IME {
		t.Fatalf("RETI PC=%04X IME=%v want 0101 true", c.PC, c.IME)
	}
	step(t, c) // HALT again, nothing pending now
	if !c.Halted() {
		t.Fatal("HALT after return should halt")
	}
}

func TestCPU_CB_Prefix_CyclesAndBehavior(t *testing.T) {
	c, b := newCPUWithROM([]byte{
		0x21, 0x00, 0xC0, // LD HL,C000
		0x36, 0x80, // LD (HL),80
		0xCB, 0x7E, // BIT 7,(HL)
		0xCB, 0xBE, // RES 7,(HL)
		0xCB, 0xC6, // SET 0,(HL)
		0xCB, 0x00, // RLC B
		0xCB, 0x37, // SWAP A
		0xCB, 0x38, // SRL B
		0xCB, 0x2F, // SRA A
	})
	step(t, c)
	step(t, c)
	cyc := step(t, c)
	if cyc != 12 || c.F&flagZ != 0 || c.F&flagH == 0 {
		t.Fatalf("BIT 7,(HL) cycles/Z got cyc=%d F=%02X", cyc, c.F)
	}
	cyc = step(t, c)
	if cyc != 16 || b.Read(0xC000) != 0x00 {
		t.Fatalf("RES 7,(HL) got cyc=%d mem=%02X", cyc, b.Read(0xC000))
	}
	cyc = step(t, c)
	if cyc != 16 || b.Read(0xC000) != 0x01 {
		t.Fatalf("SET 0,(HL) got cyc=%d mem=%02X", cyc, b.Read(0xC000))
	}
	c.B = 0x80
	cyc = step(t, c)
	if cyc != 8 || c.B != 0x01 || c.F != 0x10 {
		t.Fatalf("RLC B got cyc=%d B=%02X F=%02X", cyc, c.B, c.F)
	}
	c.A = 0xF1
	step(t, c)
	if c.A != 0x1F || c.F != 0x00 {
		t.Fatalf("SWAP A got %02X F=%02X", c.A, c.F)
	}
	step(t, c) // SRL B: 01 -> 00, C=1, Z=1
	if c.B != 0x00 || c.F != 0x90 {
		t.Fatalf("SRL B got %02X F=%02X", c.B, c.F)
	}
	c.A = 0x81
	step(t, c)
	if c.A != 0xC0 || c.F != 0x10 {
		t.Fatalf("SRA A got %02X F=%02X", c.A, c.F)
	}
}

func TestCPU_ADD_HL_FlagsAndCarry(t *testing.T) {
	c, _ := newCPUWithROM([]byte{
		0x21, 0xFF, 0x0F, // LD HL,0x0FFF
		0x01, 0x01, 0x00, // LD BC,0x0001
		0x09,             // ADD HL,BC
		0x21, 0xFF, 0xFF, // LD HL,0xFFFF
		0x01, 0x01, 0x00, // LD BC,0x0001
		0x09, // ADD HL,BC
	})
	step(t, c) // LD HL
	step(t, c) // LD BC
	c.F = 0x80
	step(t, c) // ADD HL,BC -> 0x1000, H=1, C=0, N=0, Z preserved
	if c.Pair(PairHL) != 0x1000 || c.F != 0xA0 {
		t.Fatalf("ADD HL,BC #1 HL=%04X F=%02X (expect Z=1 N=0 H=1 C=0)", c.Pair(PairHL), c.F)
	}
	step(t, c)
	step(t, c)
	c.F = 0x40 // N set beforehand is cleared, Z stays clear
	step(t, c)
	if c.Pair(PairHL) != 0x0000 || c.F != 0x30 {
		t.Fatalf("ADD HL,BC #2 HL=%04X F=%02X (expect Z=0 N=0 H=1 C=1)", c.Pair(PairHL), c.F)
	}
}

func TestCPU_16bit_INC_DEC_DoNotAffectFlags(t *testing.T) {
	code := []byte{0x03, 0x0B, 0x23, 0x2B, 0x13, 0x1B, 0x33, 0x3B}
	c, _ := newCPUWithROM(code)
	c.F = 0xF0
	for range code {
		if cyc := step(t, c); cyc != 8 {
			t.Fatalf("16-bit INC/DEC cycles got %d want 8", cyc)
		}
		if c.F != 0xF0 {
			t.Fatalf("16-bit INC/DEC should not change flags; F=%02X", c.F)
		}
	}
	c.SP = 0xFFFF
	c.PC = 0x0100 + 6 // INC SP
	step(t, c)
	if c.SP != 0x0000 {
		t.Fatalf("INC SP wrap got %04X", c.SP)
	}
}

func TestCPU_Conditional_Cycles(t *testing.T) {
	rom := make([]byte, 0x8000)
	copy(rom[0x0100:], []byte{0x20, 0x02, 0x00, 0x00}) // JR NZ,+2
	copy(rom[0x0110:], []byte{0xD2, 0x34, 0x12})       // JP NC,1234
	copy(rom[0x0120:], []byte{0xC4, 0x00, 0x40})       // CALL NZ,4000
	rom[0x4000] = 0xD8                                 // RET C
	rom[0x4001] = 0xD8
	c, _ := newCPUWithImage(rom)

	c.F = 0x00
	if cyc := step(t, c); cyc != 12 || c.PC != 0x0104 {
		t.Fatalf("JR NZ taken cycles/PC: cyc=%d PC=%04X", cyc, c.PC)
	}
	c.PC = 0x0100
	c.F = 0x80
	if cyc := step(t, c); cyc != 8 || c.PC != 0x0102 {
		t.Fatalf("JR NZ not-taken cycles/PC: cyc=%d PC=%04X", cyc, c.PC)
	}

	c.PC = 0x0110
	c.F = 0x00
	if cyc := step(t, c); cyc != 16 || c.PC != 0x1234 {
		t.Fatalf("JP NC taken cycles/PC: cyc=%d PC=%04X", cyc, c.PC)
	}
	c.PC = 0x0110
	c.F = 0x10
	if cyc := step(t, c); cyc != 12 || c.PC != 0x0113 {
		t.Fatalf("JP NC not-taken cycles/PC: cyc=%d PC=%04X", cyc, c.PC)
	}

	c.PC = 0x0120
	c.F = 0x00
	if cyc := step(t, c); cyc != 24 || c.PC != 0x4000 {
		t.Fatalf("CALL NZ taken cycles/PC: cyc=%d PC=%04X", cyc, c.PC)
	}
	c.F = 0x00 // C=0 => not taken
	if cyc := step(t, c); cyc != 8 || c.PC != 0x4001 {
		t.Fatalf("RET C not-taken cyc=%d PC=%04X", cyc, c.PC)
	}
	c.F = 0x10
	if cyc := step(t, c); cyc != 20 || c.PC != 0x0123 {
		t.Fatalf("RET C taken cyc=%d PC=%04X", cyc, c.PC)
	}
}

func TestCPU_ADC_SBC_HalfCarry(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x3E, 0x0F, 0xCE, 0x00}) // LD A,0F; ADC A,00
	c.F = 0x10
	step(t, c)
	step(t, c)
	if c.A != 0x10 || c.F != 0x20 {
		t.Fatalf("ADC half-carry failed: A=%02X F=%02X", c.A, c.F)
	}

	c, _ = newCPUWithROM([]byte{0x3E, 0x10, 0xDE, 0x01}) // LD A,10; SBC A,01
	c.F = 0x00
	step(t, c)
	step(t, c)
	if c.A != 0x0F || c.F != 0x60 {
		t.Fatalf("SBC half-borrow failed: A=%02X F=%02X", c.A, c.F)
	}

	c, _ = newCPUWithROM([]byte{0x3E, 0x00, 0xDE, 0x01})
	c.F = 0x00
	step(t, c)
	step(t, c)
	if c.A != 0xFF || c.F != 0x70 {
		t.Fatalf("SBC borrow flags failed: A=%02X F=%02X", c.A, c.F)
	}
}

func TestCPU_ALU_Register(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x80, 0x90, 0xA0, 0xB0, 0xA8, 0xB8})
	c.A, c.B = 0x3A, 0xC6
	step(t, c) // ADD A,B -> 00 Z H C
	if c.A != 0x00 || c.F != 0xB0 {
		t.Fatalf("ADD A,B got %02X F=%02X", c.A, c.F)
	}
	c.A, c.B = 0x3E, 0x3E
	step(t, c) // SUB B -> 00 Z N
	if c.A != 0x00 || c.F != 0xC0 {
		t.Fatalf("SUB B got %02X F=%02X", c.A, c.F)
	}
	c.A, c.B = 0x5A, 0x3F
	step(t, c) // AND B -> 1A H
	if c.A != 0x1A || c.F != 0x20 {
		t.Fatalf("AND B got %02X F=%02X", c.A, c.F)
	}
	step(t, c) // OR B -> 3F
	if c.A != 0x3F || c.F != 0x00 {
		t.Fatalf("OR B got %02X F=%02X", c.A, c.F)
	}
	step(t, c) // XOR B -> 00 Z
	if c.A != 0x00 || c.F != 0x80 {
		t.Fatalf("XOR B got %02X F=%02X", c.A, c.F)
	}
	c.A, c.B = 0x3C, 0x40
	step(t, c) // CP B: A unchanged, borrow
	if c.A != 0x3C || c.F != 0x50 {
		t.Fatalf("CP B got %02X F=%02X", c.A, c.F)
	}
}

func TestCPU_LD_HL_SP_plus_r8_and_ADD_SP_r8_Flags(t *testing.T) {
	c, _ := newCPUWithROM([]byte{
		0x31, 0x0F, 0xFF, // LD SP,FF0F
		0xF8, 0xFF, // LD HL,SP-1 => FF0E, H=1,C=1
		0xE8, 0x01, // ADD SP,+1 => FF10, H=1,C=0
		0xE8, 0xFE, // ADD SP,-2 => FF0E, H=0,C=1
		0xF9, // LD SP,HL
	})
	step(t, c)
	if cyc := step(t, c); cyc != 12 || c.Pair(PairHL) != 0xFF0E || c.F != 0x30 {
		t.Fatalf("LD HL,SP-1 cyc=%d HL=%04X F=%02X", cyc, c.Pair(PairHL), c.F)
	}
	if cyc := step(t, c); cyc != 16 || c.SP != 0xFF10 || c.F != 0x20 {
		t.Fatalf("ADD SP,+1 cyc=%d SP=%04X F=%02X", cyc, c.SP, c.F)
	}
	step(t, c)
	if c.SP != 0xFF0E || c.F != 0x10 {
		t.Fatalf("ADD SP,-2 flags/SP wrong: SP=%04X F=%02X", c.SP, c.F)
	}
	c.SetPair(PairHL, 0xD000)
	if cyc := step(t, c); cyc != 8 || c.SP != 0xD000 {
		t.Fatalf("LD SP,HL cyc=%d SP=%04X", cyc, c.SP)
	}
}

func TestCPU_LD_a16_SP(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x08, 0x00, 0xC0})
	c.SP = 0xABCD
	if cyc := step(t, c); cyc != 20 || b.Read(0xC000) != 0xCD || b.Read(0xC001) != 0xAB {
		t.Fatalf("LD (a16),SP cyc=%d mem=%02X %02X", cyc, b.Read(0xC000), b.Read(0xC001))
	}
}

func TestCPU_POP_AF_MasksFlagsLowNibble(t *testing.T) {
	c, b := newCPUWithROM([]byte{0xF5, 0xF1}) // PUSH AF; POP AF
	c.A = 0x12
	c.F = 0xF0
	step(t, c)
	b.Write(c.SP, 0x3F)   // F with low nibble set
	b.Write(c.SP+1, 0x12) // A
	step(t, c)
	if c.A != 0x12 || c.F != 0x30 {
		t.Fatalf("POP AF got A=%02X F=%02X want 12 30", c.A, c.F)
	}
}

func TestCPU_UnprefixedRotates_ClearZ(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x07, 0x0F, 0x17, 0x1F})
	c.A = 0x00
	c.F = 0x80
	step(t, c)
	if c.F&flagZ != 0 {
		t.Fatalf("RLCA should clear Z, F=%02X", c.F)
	}
	c.F = 0x80
	step(t, c)
	if c.F&flagZ != 0 {
		t.Fatalf("RRCA should clear Z, F=%02X", c.F)
	}
	c.F = 0x90 // carry set
	step(t, c)
	if c.F&flagZ != 0 || c.A != 0x01 {
		t.Fatalf("RLA should clear Z and shift carry in, A=%02X F=%02X", c.A, c.F)
	}
	c.F = 0x00
	step(t, c) // RRA: 01 -> 00, C=1
	if c.F != 0x10 || c.A != 0x00 {
		t.Fatalf("RRA got A=%02X F=%02X", c.A, c.F)
	}
}

func TestCPU_CCF_SCF_CPL_Flags(t *testing.T) {
	c, _ := newCPUWithROM([]byte{
		0x3E, 0x00, // LD A,00
		0x37, // SCF
		0x3F, // CCF
		0x2F, // CPL
	})
	c.F = 0x80
	step(t, c)
	step(t, c)
	if c.F != 0x90 {
		t.Fatalf("SCF flags unexpected F=%02X", c.F)
	}
	step(t, c)
	if c.F != 0x80 {
		t.Fatalf("CCF flags unexpected F=%02X", c.F)
	}
	step(t, c)
	if c.A != 0xFF || c.F != 0xE0 {
		t.Fatalf("CPL got A=%02X F=%02X", c.A, c.F)
	}
}

func TestCPU_RETI_EnablesIME_AndCycles(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0040] = 0xD9 // RETI at the VBlank vector
	c, b := newCPUWithImage(rom)
	c.IME = true
	b.Write(0xFFFF, 0x01)
	b.Write(0xFF0F, 0x01)
	// NOP at 0100 then dispatch
	if cyc := step(t, c); cyc != 24 || c.PC != 0x0040 {
		t.Fatalf("Interrupt service failed: cyc=%d PC=%04X", cyc, c.PC)
	}
	if c.IME {
		t.Fatalf("IME should be cleared during ISR")
	}
	if cyc := step(t, c); cyc != 16 {
		t.Fatalf("RETI cycles got %d want 16", cyc)
	}
	if !c.IME || c.PC != 0x0101 {
		t.Fatalf("RETI: IME=%v PC=%04X", c.IME, c.PC)
	}
}

func TestCPU_LD_r_from_HL_CyclesAndBehavior(t *testing.T) {
	var code []byte
	for _, op := range []byte{0x46, 0x4E, 0x56, 0x5E, 0x66, 0x6E, 0x7E} {
		code = append(code, 0x21, 0x00, 0xC0, op) // LD HL,C000; LD r,(HL)
	}
	c, b := newCPUWithROM(code)
	b.Write(0xC000, 0x5A)
	for i, r := range []int{0, 1, 2, 3, 4, 5, 7} {
		if cyc := step(t, c); cyc != 12 || c.Pair(PairHL) != 0xC000 {
			t.Fatalf("LD HL,d16 #%d failed: cyc=%d HL=%04X", i, cyc, c.Pair(PairHL))
		}
		if cyc := step(t, c); cyc != 8 || c.reg8(r) != 0x5A {
			t.Fatalf("LD %s,(HL) cyc=%d got %02X", reg8Names[r], cyc, c.reg8(r))
		}
	}
}

func TestCPU_IllegalOpcode(t *testing.T) {
	for _, op := range []byte{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD} {
		c, _ := newCPUWithROM([]byte{0x00, op})
		step(t, c)
		cyc, err := c.Step()
		var bad *UnimplementedOpcodeError
		if !errors.As(err, &bad) {
			t.Fatalf("opcode %02X: got err %v want UnimplementedOpcodeError", op, err)
		}
		if bad.Opcode != op || bad.PC != 0x0101 || cyc != 4 {
			t.Fatalf("opcode %02X: got %+v cyc=%d", op, bad, cyc)
		}
		if !c.Locked() {
			t.Fatalf("opcode %02X: CPU not locked", op)
		}
		if cyc, err := c.Step(); err != nil || cyc != 4 {
			t.Fatalf("locked step got cyc=%d err=%v", cyc, err)
		}
	}
}

func TestCPU_TablesComplete(t *testing.T) {
	illegal := map[int]bool{0xD3: true, 0xDB: true, 0xDD: true, 0xE3: true, 0xE4: true,
		0xEB: true, 0xEC: true, 0xED: true, 0xF4: true, 0xFC: true, 0xFD: true, 0xCB: true}
	for op := 0; op < 0x100; op++ {
		if illegal[op] {
			continue
		}
		in := opTable[op]
		if in.exec == nil || in.cycles == 0 || in.cycles%4 != 0 || in.length == 0 {
			t.Fatalf("opcode %02X entry incomplete: %+v", op, in)
		}
		cb := cbTable[op]
		if cb.exec == nil || cb.cycles%4 != 0 || cb.length != 2 {
			t.Fatalf("CB %02X entry incomplete", op)
		}
	}
}
