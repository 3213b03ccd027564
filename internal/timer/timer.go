package timer

// InterruptRequester is called with the IF bit to raise (2 for the timer).
type InterruptRequester func(bit int)

const timerIntBit = 2

// Register addresses handled by the timer.
const (
	AddrDIV  = 0xFF04
	AddrTIMA = 0xFF05
	AddrTMA  = 0xFF06
	AddrTAC  = 0xFF07
)

// Timer models the DMG divider and programmable timer. DIV is the high byte of
// a free running 16-bit counter; TIMA counts falling edges of one counter bit
// selected by TAC, gated by the TAC enable bit.
type Timer struct {
	counter uint16
	tima    byte
	tma     byte
	tac     byte

	req InterruptRequester
}

func New(req InterruptRequester) *Timer {
	return &Timer{req: req}
}

// Reset clears every register and the internal counter.
func (t *Timer) Reset() {
	t.counter = 0
	t.tima, t.tma, t.tac = 0, 0, 0
}

// input is the AND of the enable bit and the selected counter bit.
// TAC 00/01/10/11 select bits 9/3/5/7 (periods 1024/16/64/256).
func (t *Timer) input() bool {
	if t.tac&0x04 == 0 {
		return false
	}
	var mask uint16
	switch t.tac & 0x03 {
	case 0x00:
		mask = 1 << 9
	case 0x01:
		mask = 1 << 3
	case 0x02:
		mask = 1 << 5
	case 0x03:
		mask = 1 << 7
	}
	return t.counter&mask != 0
}

// Step advances the counter one tick at a time for the given T-cycles.
func (t *Timer) Step(cycles int) {
	for i := 0; i < cycles; i++ {
		prev := t.input()
		t.counter++
		if prev && !t.input() {
			t.incTIMA()
		}
	}
}

func (t *Timer) incTIMA() {
	t.tima++
	if t.tima != 0 {
		return
	}
	t.tima = t.tma
	if t.req != nil {
		t.req(timerIntBit)
	}
}

// ResetDivider zeroes the counter. If the selected bit was high this is a
// falling edge and TIMA ticks.
func (t *Timer) ResetDivider() {
	prev := t.input()
	t.counter = 0
	if prev {
		t.incTIMA()
	}
}

// DIV returns the visible divider byte.
func (t *Timer) DIV() byte { return byte(t.counter >> 8) }

// Counter exposes the full internal counter for debuggers and scripts.
func (t *Timer) Counter() uint16 { return t.counter }

func (t *Timer) Read(addr uint16) byte {
	switch addr {
	case AddrDIV:
		return t.DIV()
	case AddrTIMA:
		return t.tima
	case AddrTMA:
		return t.tma
	case AddrTAC:
		return 0xF8 | t.tac
	}
	return 0xFF
}

func (t *Timer) Write(addr uint16, value byte) {
	switch addr {
	case AddrDIV:
		t.ResetDivider()
	case AddrTIMA:
		t.tima = value
	case AddrTMA:
		t.tma = value
	case AddrTAC:
		prev := t.input()
		t.tac = value & 0x07
		if prev && !t.input() {
			t.incTIMA()
		}
	}
}
