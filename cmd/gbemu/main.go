package main

import (
	"errors"
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/emu"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/lcd"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/logger"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/ui"
	"golang.org/x/term"
)

type CLIFlags struct {
	ROMPath string
	BootROM string
	Scale   int
	Title   string
	Trace   bool
	SaveRAM bool // persist battery RAM next to ROM (.sav)
	Palette string
	Unsafe  bool // skip logo/header checksum validation
	Trap    bool // exit on an illegal opcode
	ROMsDir string

	// headless
	Headless bool
	Frames   int
	PNGOut   string
	Expect   string // expected framebuffer CRC32 hex (e.g., "1a2b3c4d")
	LogOut   string
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.BootROM, "bootrom", "", "optional DMG boot ROM")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "gbemu", "window title")
	flag.BoolVar(&f.Trace, "trace", false, "CPU trace log")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")
	flag.StringVar(&f.Palette, "palette", "auto", "display palette ("+strings.Join(emu.PaletteNames(), ", ")+" or auto)")
	flag.BoolVar(&f.Unsafe, "nocheck", false, "run images with a bad logo or header checksum")
	flag.BoolVar(&f.Trap, "trap", false, "stop on an illegal opcode")
	flag.StringVar(&f.ROMsDir, "roms", "roms", "directory listed by the ROM browser")

	// headless options
	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.StringVar(&f.LogOut, "log", "", "write the emulator log to this file on exit")
	flag.Parse()
	return f
}

func runHeadless(m *emu.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	// progress line only when someone is watching
	live := term.IsTerminal(int(os.Stderr.Fd()))

	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := m.StepFrame(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if live && i%60 == 59 {
			fmt.Fprintf(os.Stderr, "\rframe %d/%d", i+1, frames)
		}
	}
	if live {
		fmt.Fprintln(os.Stderr)
	}
	dur := time.Since(start)

	fb := m.Framebuffer() // RGBA 160x144*4
	crc := crc32.ChecksumIEEE(fb)
	fps := float64(frames) / dur.Seconds()

	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := saveFramePNG(fb, lcd.Width, lcd.Height, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expectCRC != "" {
		// allow with/without 0x, upper/lowercase
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    make([]byte, len(pix)),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	copy(img.Pix, pix)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

func loadBattery(m *emu.Machine) {
	path := emu.BatteryPath(m.ROMPath())
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := m.LoadBattery(data); err != nil {
		log.Printf("%s: %v", path, err)
		return
	}
	log.Printf("loaded save RAM: %s (%d bytes)", path, len(data))
}

func saveBattery(m *emu.Machine) {
	if m.ROMPath() == "" {
		return
	}
	data, ok := m.SaveBattery()
	if !ok {
		return
	}
	path := emu.BatteryPath(m.ROMPath())
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("write %s: %v", path, err)
		return
	}
	log.Printf("wrote %s", path)
}

func writeLog(path string) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		log.Printf("log: %v", err)
		return
	}
	defer f.Close()
	logger.Write(f)
}

func main() {
	if err := run(parseFlags()); err != nil {
		log.Fatal(err)
	}
}

// run loads the ROM and drives the window or headless loop. The emulator log
// is written to f.LogOut on every return path.
func run(f CLIFlags) error {
	defer writeLog(f.LogOut)

	m := emu.New(emu.Config{
		Trace:           f.Trace,
		TrapIllegal:     f.Trap,
		SkipHeaderCheck: f.Unsafe,
		Palette:         f.Palette,
	})
	if f.ROMPath != "" {
		rom, err := readOptional(f.ROMPath)
		if err != nil {
			return err
		}
		boot, err := readOptional(f.BootROM)
		if err != nil {
			return err
		}
		if err := m.LoadCartridge(rom, boot); err != nil {
			return err
		}
		// absolute path keeps .sav placement stable across ROM switches
		path := f.ROMPath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		m.SetROMPath(path)
		h := m.Cartridge().Header
		log.Printf("ROM: %q type=%s banks=%d ram=%dB palette=%s", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes, m.PaletteName())
		if f.SaveRAM {
			loadBattery(m)
		}
	}

	if f.Headless {
		if f.ROMPath == "" {
			return errors.New("-headless needs -rom")
		}
		if err := runHeadless(m, f.Frames, f.PNGOut, f.Expect); err != nil {
			return err
		}
		if f.SaveRAM {
			saveBattery(m)
		}
		return nil
	}

	app := ui.NewApp(ui.Config{Title: f.Title, Scale: f.Scale, ROMsDir: f.ROMsDir, SaveBattery: f.SaveRAM}, m)
	if err := app.Run(); err != nil {
		return err
	}
	// the UI may have switched ROMs; save against whatever is loaded now
	if f.SaveRAM {
		saveBattery(m)
	}
	return nil
}
