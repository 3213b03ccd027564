package cpu

import (
	"fmt"
	"strings"
)

// Disassemble renders the instruction at pc with its operands filled in and
// returns its length in bytes. Undefined opcodes render as a DB directive.
func Disassemble(b Bus, pc uint16) (string, int) {
	op := b.Read(pc)
	if op == 0xCB {
		return cbTable[b.Read(pc+1)].mnemonic, 2
	}
	in := &opTable[op]
	if in.mnemonic == "" {
		return fmt.Sprintf("DB $%02X", op), 1
	}
	m := in.mnemonic
	d8 := b.Read(pc + 1)
	d16 := uint16(b.Read(pc+2))<<8 | uint16(d8)
	switch {
	case strings.Contains(m, "d16"):
		m = strings.Replace(m, "d16", fmt.Sprintf("$%04X", d16), 1)
	case strings.Contains(m, "a16"):
		m = strings.Replace(m, "a16", fmt.Sprintf("$%04X", d16), 1)
	case strings.Contains(m, "(a8)"):
		m = strings.Replace(m, "(a8)", fmt.Sprintf("($FF%02X)", d8), 1)
	case strings.Contains(m, "d8"):
		m = strings.Replace(m, "d8", fmt.Sprintf("$%02X", d8), 1)
	case strings.HasPrefix(m, "JR"):
		target := uint16(int32(pc) + 2 + int32(int8(d8)))
		m = strings.Replace(m, "r8", fmt.Sprintf("$%04X", target), 1)
	case strings.Contains(m, "SP+r8"):
		m = strings.Replace(m, "SP+r8", fmt.Sprintf("SP%+d", int8(d8)), 1)
	case strings.Contains(m, "r8"):
		m = strings.Replace(m, "r8", fmt.Sprintf("%d", int8(d8)), 1)
	}
	return m, in.length
}

// Mnemonic returns the raw table mnemonic for an opcode, with operand
// placeholders, for tracing and tests.
func Mnemonic(op byte, cb bool) string {
	if cb {
		return cbTable[op].mnemonic
	}
	return opTable[op].mnemonic
}
