package cpu

import "fmt"

// RegPair names one of the four 16-bit register pairs.
type RegPair int

const (
	PairAF RegPair = iota
	PairBC
	PairDE
	PairHL
)

// Flag bits in F. The low nibble of F always reads 0.
const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

// Registers is the SM83 register file. Pairs are views over the 8-bit
// fields, high byte first.
type Registers struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16
}

func (r *Registers) High(p RegPair) byte {
	switch p {
	case PairAF:
		return r.A
	case PairBC:
		return r.B
	case PairDE:
		return r.D
	default:
		return r.H
	}
}

func (r *Registers) Low(p RegPair) byte {
	switch p {
	case PairAF:
		return r.F & 0xF0
	case PairBC:
		return r.C
	case PairDE:
		return r.E
	default:
		return r.L
	}
}

func (r *Registers) SetHigh(p RegPair, v byte) {
	switch p {
	case PairAF:
		r.A = v
	case PairBC:
		r.B = v
	case PairDE:
		r.D = v
	default:
		r.H = v
	}
}

func (r *Registers) SetLow(p RegPair, v byte) {
	switch p {
	case PairAF:
		r.F = v & 0xF0
	case PairBC:
		r.C = v
	case PairDE:
		r.E = v
	default:
		r.L = v
	}
}

// Pair returns high<<8 | low.
func (r *Registers) Pair(p RegPair) uint16 {
	return uint16(r.High(p))<<8 | uint16(r.Low(p))
}

func (r *Registers) SetPair(p RegPair, v uint16) {
	r.SetHigh(p, byte(v>>8))
	r.SetLow(p, byte(v))
}

func (r *Registers) flag(mask byte) bool { return r.F&mask != 0 }

func (r *Registers) setFlag(mask byte, on bool) {
	if on {
		r.F |= mask
	} else {
		r.F &^= mask
	}
	r.F &= 0xF0
}

func (r *Registers) setZNHC(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	r.F = f
}

func (r *Registers) String() string {
	return fmt.Sprintf("AF=%04X BC=%04X DE=%04X HL=%04X SP=%04X PC=%04X",
		r.Pair(PairAF), r.Pair(PairBC), r.Pair(PairDE), r.Pair(PairHL), r.SP, r.PC)
}
