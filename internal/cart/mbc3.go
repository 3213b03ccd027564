package cart

import (
	"encoding/binary"
	"fmt"
	"time"
)

// MBC3 implements ROM/RAM banking and the optional real-time clock.
// Banking behavior:
// - 0000-1FFF: RAM and RTC enable (0x0A in low nibble)
// - 2000-3FFF: ROM bank low 7 bits (0 maps to 1)
// - 4000-5FFF: RAM bank (0-3) or RTC reg select (08-0C)
// - 6000-7FFF: Latch clock on a 0 -> 1 write sequence
// - A000-BFFF: External RAM or the selected RTC register
type MBC3 struct {
	banked

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	ramSelect  byte // 0x00..0x03 RAM bank, 0x08..0x0C RTC register

	hasRTC    bool
	latchPrev byte

	// live clock
	rtcSec, rtcMin, rtcHour byte
	rtcDay                  uint16 // 9 bits
	rtcHalt, rtcCarry       bool
	lastRTCWallSec          int64

	// latched copy exposed through A000-BFFF
	latched [5]byte
}

// nowUnix is the clock source; tests replace it.
var nowUnix = func() int64 { return time.Now().Unix() }

// rtcTrailerSize is the clock block appended to the RAM image: five live
// registers and five latched registers as 32-bit values, then a 64-bit
// wall-clock timestamp, all little endian.
const rtcTrailerSize = 48

func NewMBC3(rom, ram []byte, hasRTC bool) *MBC3 {
	m := &MBC3{banked: newBanked(rom, ram), hasRTC: hasRTC}
	m.romBank = 1
	m.lastRTCWallSec = nowUnix()
	return m
}

func (m *MBC3) ReadROM(addr uint16) byte {
	if addr < 0x4000 {
		return m.romAt(0, addr)
	}
	return m.romAt(int(m.romBank), addr)
}

func (m *MBC3) WriteROM(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		m.ramSelect = value
	case addr < 0x8000:
		if m.hasRTC && m.latchPrev == 0x00 && value == 0x01 {
			m.updateRTC()
			m.latched = m.liveRegs()
		}
		m.latchPrev = value
	}
}

func (m *MBC3) rtcSelected() bool {
	return m.hasRTC && m.ramSelect >= 0x08 && m.ramSelect <= 0x0C
}

func (m *MBC3) ReadRAM(addr uint16) byte {
	if !m.ramEnabled {
		return 0xFF
	}
	if m.rtcSelected() {
		return m.latched[m.ramSelect-0x08]
	}
	if m.ramSelect > 0x03 {
		return 0xFF
	}
	return m.readRAM(int(m.ramSelect), addr)
}

func (m *MBC3) WriteRAM(addr uint16, value byte) {
	if !m.ramEnabled {
		return
	}
	if m.rtcSelected() {
		m.writeRTC(m.ramSelect, value)
		return
	}
	if m.ramSelect > 0x03 {
		return
	}
	m.writeRAM(int(m.ramSelect), addr, value)
}

func (m *MBC3) liveRegs() [5]byte {
	dh := byte(m.rtcDay>>8) & 0x01
	if m.rtcHalt {
		dh |= 0x40
	}
	if m.rtcCarry {
		dh |= 0x80
	}
	return [5]byte{m.rtcSec, m.rtcMin, m.rtcHour, byte(m.rtcDay), dh}
}

func (m *MBC3) setLiveRegs(r [5]byte) {
	m.rtcSec = r[0] & 0x3F
	m.rtcMin = r[1] & 0x3F
	m.rtcHour = r[2] & 0x1F
	m.rtcDay = uint16(r[3]) | uint16(r[4]&0x01)<<8
	m.rtcHalt = r[4]&0x40 != 0
	m.rtcCarry = r[4]&0x80 != 0
}

func (m *MBC3) writeRTC(sel, value byte) {
	m.updateRTC()
	r := m.liveRegs()
	r[sel-0x08] = value
	m.setLiveRegs(r)
	// the latched view follows writes so a read-back without re-latching sees the value
	m.latched[sel-0x08] = m.liveRegs()[sel-0x08]
}

// updateRTC advances the live clock by the wall-clock seconds since the last update.
func (m *MBC3) updateRTC() {
	now := nowUnix()
	delta := now - m.lastRTCWallSec
	m.lastRTCWallSec = now
	if m.rtcHalt || delta <= 0 {
		return
	}
	m.advance(delta)
}

func (m *MBC3) advance(secs int64) {
	total := int64(m.rtcSec) + secs
	m.rtcSec = byte(total % 60)
	total = int64(m.rtcMin) + total/60
	m.rtcMin = byte(total % 60)
	total = int64(m.rtcHour) + total/60
	m.rtcHour = byte(total % 24)
	days := int64(m.rtcDay) + total/24
	if days > 0x1FF {
		m.rtcCarry = true
		days %= 0x200
	}
	m.rtcDay = uint16(days)
}

// RAMImage returns RAM followed by the clock trailer on RTC carts.
func (m *MBC3) RAMImage() []byte {
	out := m.ramImage()
	if !m.hasRTC {
		return out
	}
	m.updateRTC()
	var t [rtcTrailerSize]byte
	live := m.liveRegs()
	for i := 0; i < 5; i++ {
		binary.LittleEndian.PutUint32(t[i*4:], uint32(live[i]))
		binary.LittleEndian.PutUint32(t[20+i*4:], uint32(m.latched[i]))
	}
	binary.LittleEndian.PutUint64(t[40:], uint64(m.lastRTCWallSec))
	return append(out, t[:]...)
}

// LoadRAMImage accepts RAM alone or RAM plus the clock trailer. A restored
// clock catches up with the wall-clock time that passed since it was saved.
func (m *MBC3) LoadRAMImage(data []byte) error {
	n := len(m.ram)
	switch {
	case len(data) == n:
		return m.loadRAMImage(data)
	case m.hasRTC && len(data) == n+rtcTrailerSize:
		if err := m.loadRAMImage(data[:n]); err != nil {
			return err
		}
		t := data[n:]
		var live [5]byte
		for i := 0; i < 5; i++ {
			live[i] = byte(binary.LittleEndian.Uint32(t[i*4:]))
			m.latched[i] = byte(binary.LittleEndian.Uint32(t[20+i*4:]))
		}
		m.setLiveRegs(live)
		m.lastRTCWallSec = int64(binary.LittleEndian.Uint64(t[40:]))
		m.updateRTC()
		return nil
	default:
		return fmt.Errorf("%w: got %d bytes want %d", ErrRAMImageSize, len(data), n)
	}
}
