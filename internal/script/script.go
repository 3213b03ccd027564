// Package script runs Lua hooks against a running machine. A script sees
// these globals:
//
//	peek(addr)       read a byte through the bus
//	poke(addr, v)    write a byte through the bus
//	reg(name)        CPU register by name (A..L, AF..HL, SP, PC, IME)
//	cycles()         T-cycles executed since reset
//	frame()          frames completed
//	log(msg)         add an entry to the central log
//
// A global function on_frame(n) is called after every frame; returning false
// from it asks the host to stop.
package script

import (
	"fmt"
	"strings"

	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/emu"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/logger"
	lua "github.com/yuin/gopher-lua"
)

const logTag = "lua"

type Engine struct {
	L *lua.LState
	m *emu.Machine
}

// New creates a Lua state bound to m.
func New(m *emu.Machine) *Engine {
	e := &Engine{L: lua.NewState(), m: m}
	e.register()
	return e
}

func (e *Engine) Close() { e.L.Close() }

func (e *Engine) register() {
	fns := map[string]lua.LGFunction{
		"peek":   e.peek,
		"poke":   e.poke,
		"reg":    e.reg,
		"cycles": e.cycles,
		"frame":  e.frame,
		"log":    e.log,
	}
	for name, fn := range fns {
		e.L.SetGlobal(name, e.L.NewFunction(fn))
	}
}

// LoadFile runs a script file, defining its hooks.
func (e *Engine) LoadFile(path string) error {
	if err := e.L.DoFile(path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// LoadString runs script source, defining its hooks.
func (e *Engine) LoadString(src string) error {
	if err := e.L.DoString(src); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

// HasFrameHook reports whether the script defined on_frame.
func (e *Engine) HasFrameHook() bool {
	return e.L.GetGlobal("on_frame").Type() == lua.LTFunction
}

// Frame calls on_frame(n). It returns false when the script asked to stop.
func (e *Engine) Frame(n uint64) (bool, error) {
	fn := e.L.GetGlobal("on_frame")
	if fn.Type() != lua.LTFunction {
		return true, nil
	}
	if err := e.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LNumber(n)); err != nil {
		return false, fmt.Errorf("on_frame: %w", err)
	}
	ret := e.L.Get(-1)
	e.L.Pop(1)
	return ret != lua.LFalse, nil
}

func (e *Engine) peek(L *lua.LState) int {
	addr := L.CheckInt(1)
	L.Push(lua.LNumber(e.m.Bus().Read(uint16(addr))))
	return 1
}

func (e *Engine) poke(L *lua.LState) int {
	addr := L.CheckInt(1)
	v := L.CheckInt(2)
	e.m.Bus().Write(uint16(addr), byte(v))
	return 0
}

var pairNames = map[string]cpu.RegPair{
	"AF": cpu.PairAF,
	"BC": cpu.PairBC,
	"DE": cpu.PairDE,
	"HL": cpu.PairHL,
}

func (e *Engine) reg(L *lua.LState) int {
	name := strings.ToUpper(L.CheckString(1))
	c := e.m.CPU()
	var v int
	switch name {
	case "A":
		v = int(c.A)
	case "F":
		v = int(c.F)
	case "B":
		v = int(c.B)
	case "C":
		v = int(c.C)
	case "D":
		v = int(c.D)
	case "E":
		v = int(c.E)
	case "H":
		v = int(c.H)
	case "L":
		v = int(c.L)
	case "SP":
		v = int(c.SP)
	case "PC":
		v = int(c.PC)
	case "IME":
		L.Push(lua.LBool(c.IME))
		return 1
	default:
		p, ok := pairNames[name]
		if !ok {
			L.ArgError(1, "unknown register "+name)
			return 0
		}
		v = int(c.Pair(p))
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (e *Engine) cycles(L *lua.LState) int {
	L.Push(lua.LNumber(e.m.CPU().Cycles()))
	return 1
}

func (e *Engine) frame(L *lua.LState) int {
	L.Push(lua.LNumber(e.m.LCD().Frames()))
	return 1
}

func (e *Engine) log(L *lua.LState) int {
	logger.Log(logTag, L.CheckString(1))
	return 0
}
