// Package emu wires the core into a Machine that can be stepped by
// instruction or by frame.
package emu

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/bus"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/cart"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/lcd"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/logger"
)

// ErrNoCartridge is returned when stepping a machine before LoadCartridge.
var ErrNoCartridge = errors.New("no cartridge loaded")

type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

type Machine struct {
	cfg Config

	cart    *cart.Cartridge
	bus     *bus.Bus
	cpu     *cpu.CPU
	lcd     *lcd.LCD
	bootROM []byte
	romPath string
	palette int

	serial io.Writer
	// cycles run past the end of the previous frame
	overrun int
}

func New(cfg Config) *Machine {
	return &Machine{cfg: cfg, palette: greyPalette}
}

// LoadCartridge validates rom, builds the bank controller and resets the
// machine. A boot image of at least 256 bytes runs from 0x0000 instead of the
// post-boot state. An unsupported controller type is logged and the image
// still runs with plain ROM mapping.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	load := cart.Load
	if m.cfg.SkipHeaderCheck {
		load = cart.LoadUnchecked
	}
	c, err := load(rom)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	mbc, err := cart.NewMBC(c)
	if err != nil {
		var unsupported *cart.UnsupportedMBCError
		if !errors.As(err, &unsupported) {
			return fmt.Errorf("load cart: %w", err)
		}
		logger.Logf("emu", "%s: %v, falling back to ROM-only mapping", c.Header.Title, err)
	}

	m.cart = c
	m.bus = bus.New(c, mbc)
	m.cpu = cpu.New(m.bus)
	m.lcd = lcd.New(m.bus)
	m.bootROM = nil
	if len(boot) >= 0x100 {
		m.bootROM = make([]byte, 0x100)
		copy(m.bootROM, boot[:0x100])
	}

	switch m.cfg.Palette {
	case "":
		m.palette = greyPalette
	case "auto":
		m.palette = autoPaletteFromHeader(c.Header)
	default:
		m.palette = paletteByName(m.cfg.Palette)
	}
	m.Reset()
	logger.Logf("emu", "loaded %q (%s, %d banks)", c.Header.Title, c.Header.CartTypeStr, c.Header.ROMBanks)
	return nil
}

// LoadROMFromFile reads a ROM image and loads it, keeping the current boot
// ROM.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data, m.bootROM); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

func (m *Machine) ROMPath() string { return m.romPath }

// SetROMPath records the path used for battery files when the ROM did not
// come from LoadROMFromFile.
func (m *Machine) SetROMPath(path string) { m.romPath = path }

// Reset reinitialises every component. Cartridge RAM survives, like on
// hardware. With a boot ROM the CPU starts at 0x0000.
func (m *Machine) Reset() {
	if m.bus == nil {
		return
	}
	m.bus.Reset()
	if m.serial != nil {
		m.bus.SetSerialWriter(m.serial)
	}
	if m.bootROM != nil {
		m.bus.SetBootROM(m.bootROM)
		m.cpu.ResetForBoot()
	} else {
		m.bus.SetBootROM(nil)
		m.cpu.Reset()
	}
	m.lcd.Reset()
	m.lcd.SetPalette(paletteSets[m.palette])
	m.overrun = 0
}

// ResetPostBoot resets straight into the post-boot state even when a boot
// ROM is loaded.
func (m *Machine) ResetPostBoot() {
	boot := m.bootROM
	m.bootROM = nil
	m.Reset()
	m.bootROM = boot
}

// Step runs one CPU instruction and advances the timer, DMA and LCD by the
// cycles it took. An illegal opcode either stops with the error
// (Config.TrapIllegal) or is logged and leaves the CPU locked.
func (m *Machine) Step() (int, error) {
	if m.cpu == nil {
		return 0, ErrNoCartridge
	}
	if m.cfg.Trace {
		m.trace()
	}
	cycles, err := m.cpu.Step()
	m.bus.Tick(cycles)
	m.lcd.Step(cycles)
	if err != nil {
		var bad *cpu.UnimplementedOpcodeError
		if errors.As(err, &bad) && !m.cfg.TrapIllegal {
			logger.Logf("cpu", "%v, CPU locked", err)
			return cycles, nil
		}
		return cycles, err
	}
	return cycles, nil
}

func (m *Machine) trace() {
	pc := m.cpu.PC
	text, _ := cpu.Disassemble(m.bus, pc)
	logger.Logf("trace", "%04X %-18s %s", pc, text, m.cpu.Registers.String())
}

// StepFrame runs one frame worth of cycles (70224). Cycles spent past the
// end of the frame count against the next one.
func (m *Machine) StepFrame() error {
	if m.cpu == nil {
		return ErrNoCartridge
	}
	acc := m.overrun
	for acc < lcd.FrameCycles {
		n, err := m.Step()
		acc += n
		if err != nil {
			m.overrun = 0
			return err
		}
	}
	m.overrun = acc - lcd.FrameCycles
	return nil
}

// Framebuffer is the current frame as RGBA 160x144. Nil before a cartridge
// is loaded.
func (m *Machine) Framebuffer() []byte {
	if m.lcd == nil {
		return nil
	}
	return m.lcd.Framebuffer()
}

// SaveBattery returns the cartridge RAM image (plus clock for MBC3) when the
// cartridge has a battery. The caller owns file IO.
func (m *Machine) SaveBattery() ([]byte, bool) {
	if m.cart == nil || !cart.HasBattery(m.cart.Header.CartType) {
		return nil, false
	}
	data := m.bus.MBC().RAMImage()
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// LoadBattery restores a RAM image produced by SaveBattery.
func (m *Machine) LoadBattery(data []byte) error {
	if m.bus == nil {
		return ErrNoCartridge
	}
	if err := m.bus.MBC().LoadRAMImage(data); err != nil {
		return fmt.Errorf("load battery: %w", err)
	}
	return nil
}

// BatteryPath is where the battery image for romPath lives: the ROM path
// with its extension replaced by .sav.
func BatteryPath(romPath string) string {
	return strings.TrimSuffix(romPath, filepath.Ext(romPath)) + ".sav"
}

// SetSerialWriter connects an io.Writer to receive bytes written to the
// serial port. Test ROMs report through it. It survives Reset and reloads.
func (m *Machine) SetSerialWriter(w io.Writer) {
	m.serial = w
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

func (m *Machine) SetButtons(b Buttons) {
	if m.bus == nil {
		return
	}
	var mask byte
	if b.Right {
		mask |= bus.JoypRight
	}
	if b.Left {
		mask |= bus.JoypLeft
	}
	if b.Up {
		mask |= bus.JoypUp
	}
	if b.Down {
		mask |= bus.JoypDown
	}
	if b.A {
		mask |= bus.JoypA
	}
	if b.B {
		mask |= bus.JoypB
	}
	if b.Select {
		mask |= bus.JoypSelectBtn
	}
	if b.Start {
		mask |= bus.JoypStart
	}
	m.bus.SetJoypadState(mask)
}

// CyclePalette moves to the next (dir > 0) or previous display palette and
// returns its name.
func (m *Machine) CyclePalette(dir int) string {
	n := len(paletteSets)
	m.palette = ((m.palette+dir)%n + n) % n
	if m.lcd != nil {
		m.lcd.SetPalette(paletteSets[m.palette])
	}
	return paletteNames[m.palette]
}

// PaletteName is the name of the display palette in use.
func (m *Machine) PaletteName() string { return paletteNames[m.palette] }

// Accessors for tools.
func (m *Machine) CPU() *cpu.CPU              { return m.cpu }
func (m *Machine) Bus() *bus.Bus              { return m.bus }
func (m *Machine) LCD() *lcd.LCD              { return m.lcd }
func (m *Machine) Cartridge() *cart.Cartridge { return m.cart }
