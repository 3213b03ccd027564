package emu

// Config contains settings that affect emulation behavior.
type Config struct {
	Trace           bool   // log CPU instructions
	TrapIllegal     bool   // stop on an illegal opcode instead of locking the CPU
	SkipHeaderCheck bool   // run images whose logo or header checksum is wrong
	Palette         string // display palette name, "auto" picks one from the title
}
