package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/emu"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/logger"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/script"
	"github.com/bradleyjkemp/memviz"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"golang.org/x/term"
)

const statsAddr = "localhost:12600"

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootPath := flag.String("bootrom", "", "optional DMG boot ROM to run from 0x0000 until FF50 disables it")
	steps := flag.Int("steps", 5_000_000, "max CPU steps to run")
	startPC := flag.Int("pc", 0x0100, "initial PC value (ignored with -bootrom)")
	trace := flag.Bool("trace", false, "print every instruction")
	until := flag.String("until", "Passed", "stop when serial output contains this substring (case-insensitive); empty to disable")
	auto := flag.Bool("auto", false, "auto-detect 'Passed' or 'Failed N tests' in serial output and exit with code 0/1")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	traceOnFail := flag.Bool("traceOnFail", false, "when -auto detects failure, print a recent trace window (slows down)")
	traceWindow := flag.Int("traceWindow", 200, "number of recent instructions to include in 'traceOnFail' dump")
	serialWindow := flag.Int("serialWindow", 8192, "number of recent serial bytes to retain for diagnostics on fail")
	noCheck := flag.Bool("nocheck", false, "run images with a bad logo or header checksum")
	scriptPath := flag.String("script", "", "Lua script with an optional on_frame(n) hook")
	stats := flag.Bool("statsview", false, "serve Go runtime charts at "+statsAddr+"/debug/statsview")
	vizOut := flag.String("memviz", "", "write a graphviz dot of the CPU and cartridge state on exit")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}
	rom, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("read rom: %v", err)
	}
	var boot []byte
	if *bootPath != "" {
		if boot, err = os.ReadFile(*bootPath); err != nil {
			log.Fatalf("read bootrom: %v", err)
		}
	}

	m := emu.New(emu.Config{TrapIllegal: true, SkipHeaderCheck: *noCheck})
	serial := newSerialLog(*serialWindow)
	m.SetSerialWriter(io.MultiWriter(os.Stdout, serial))
	if err := m.LoadCartridge(rom, boot); err != nil {
		log.Fatal(err)
	}
	if len(boot) < 0x100 {
		m.CPU().SetPC(uint16(*startPC))
	}

	if *stats {
		go func() {
			viewer.SetConfiguration(viewer.WithAddr(statsAddr))
			statsview.New().Start()
		}()
		log.Printf("stats server available at %s/debug/statsview", statsAddr)
	}

	var hooks *script.Engine
	if *scriptPath != "" {
		hooks = script.New(m)
		defer hooks.Close()
		if err := hooks.LoadFile(*scriptPath); err != nil {
			log.Fatal(err)
		}
	}

	r := &runner{
		m:      m,
		serial: serial,
		hooks:  hooks,
		trace:  *trace,
		live:   term.IsTerminal(int(os.Stderr.Fd())) && !*trace,
	}
	if *traceOnFail {
		r.recent = newRing[string](*traceWindow)
	}
	code := r.run(*steps, *timeout, *until, *auto)
	if *vizOut != "" {
		if err := writeMemviz(*vizOut, m); err != nil {
			log.Printf("memviz: %v", err)
		}
	}
	os.Exit(code)
}

type runner struct {
	m      *emu.Machine
	serial *serialLog
	hooks  *script.Engine
	recent *ring[string]
	trace  bool
	live   bool

	steps  int
	frames uint64
	start  time.Time
}

// run steps the machine until a stop condition and returns the exit code:
// 0 pass or step budget spent, 1 failure, 2 timeout or core error, 3 script
// asked to stop.
func (r *runner) run(steps int, timeout time.Duration, until string, auto bool) int {
	r.start = time.Now()
	var deadline time.Time
	if timeout > 0 {
		deadline = r.start.Add(timeout)
	}
	until = strings.ToLower(until)

	for r.steps < steps {
		if r.trace || r.recent != nil {
			line := r.traceLine()
			if r.trace {
				fmt.Println(line)
			}
			if r.recent != nil {
				r.recent.Push(line)
			}
		}
		if _, err := r.m.Step(); err != nil {
			var illegal *cpu.UnimplementedOpcodeError
			if errors.As(err, &illegal) {
				fmt.Printf("\nCPU locked: %v\n", err)
			} else {
				fmt.Printf("\nerror: %v\n", err)
			}
			r.dumpRecent()
			return r.done(2)
		}
		r.steps++

		if f := r.m.LCD().Frames(); f != r.frames {
			r.frames = f
			if r.live && f%60 == 0 {
				fmt.Fprintf(os.Stderr, "\rframe %d  %s", f, time.Since(r.start).Truncate(time.Second))
			}
			if r.hooks != nil {
				more, err := r.hooks.Frame(f)
				if err != nil {
					fmt.Printf("\n%v\n", err)
					return r.done(2)
				}
				if !more {
					fmt.Printf("\nScript stopped at frame %d.\n", f)
					return r.done(3)
				}
			}
		}

		if auto {
			v, detail, stage := judge(r.serial.String())
			switch v {
			case passed:
				fmt.Printf("\nDetected PASS in serial output.\n")
				if stage != "" {
					fmt.Printf("Last stage seen: %s\n", stage)
				}
				return r.done(0)
			case failed:
				fmt.Printf("\nDetected %s in serial output.\n", detail)
				if stage != "" {
					fmt.Printf("Last stage seen: %s\n", stage)
				}
				r.dumpRecent()
				if r.serial.tail.Len() > 0 {
					fmt.Printf("\n--- recent serial (last %d bytes) ---\n", r.serial.tail.Len())
					fmt.Print(r.serial.Tail())
					fmt.Printf("\n--- end serial ---\n")
				}
				return r.done(1)
			}
		} else if until != "" {
			if strings.Contains(strings.ToLower(r.serial.String()), until) {
				fmt.Printf("\nDetected '%s' in serial output.\n", until)
				return r.done(0)
			}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("\nTimeout after %s.\n", time.Since(r.start).Truncate(time.Millisecond))
			return r.done(2)
		}
	}
	return r.done(0)
}

func (r *runner) traceLine() string {
	c := r.m.CPU()
	text, _ := cpu.Disassemble(c.Bus(), c.PC)
	b := r.m.Bus()
	return fmt.Sprintf("%04X %-18s %s IME=%t IF=%02X IE=%02X", c.PC, text, c.Registers.String(), c.IME, b.IO(0xFF0F), b.Read(0xFFFF))
}

func (r *runner) dumpRecent() {
	if r.recent == nil || r.recent.Len() == 0 {
		return
	}
	fmt.Printf("\n--- recent trace (last %d instructions) ---\n", r.recent.Len())
	for _, line := range r.recent.Items() {
		fmt.Println(line)
	}
	fmt.Printf("--- end trace ---\n")
	logger.Tail(os.Stdout, 10)
}

func (r *runner) done(code int) int {
	if r.live {
		fmt.Fprintln(os.Stderr)
	}
	fmt.Printf("\nDone: steps=%d cycles=%d frames=%d elapsed=%s\n",
		r.steps, r.m.CPU().Cycles(), r.frames, time.Since(r.start).Truncate(time.Millisecond))
	return code
}

// writeMemviz dumps the register file, timer and cartridge header as a
// graphviz graph.
func writeMemviz(path string, m *emu.Machine) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h := m.Cartridge().Header
	memviz.Map(f, &m.CPU().Registers, m.Bus().Timer(), h)
	return nil
}
