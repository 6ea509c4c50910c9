package cpu

import (
	"github.com/lucent-retro/dmgboy/gameboy/addr"
	"github.com/lucent-retro/dmgboy/gameboy/memory"
)

// Flag is one of the 4 possible flags used in the flag register (high part of AF)
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag            = 0x40
	halfCarryFlag      = 0x20
	carryFlag          = 0x10
)

// CPU is the main struct holding Z80-like (SM83) state.
//
// Registers are kept as flat uint8/uint16 fields rather than wrapped
// Register8/Register16 values: every opcode function needs a *uint8 to one
// of a/b/c/d/e/h/l to share the inc/dec/rotate helpers in instructions.go,
// and taking the address of a wrapped type's underlying field is no
// simpler than taking it directly.
type CPU struct {
	bus *memory.MMU

	a, f, b, c, d, e, h, l uint8
	sp, pc                 uint16

	currentOpcode uint16

	interruptsEnabled bool
	eiPending         bool
	halted            bool
	haltBug           bool
	stopped           bool

	cycles uint64
}

// New returns a CPU wired to the given bus, with registers in their
// documented post-boot-ROM state.
func New(bus *memory.MMU) *CPU {
	c := &CPU{
		bus: bus,
		a:   0x01, f: 0xB0,
		b: 0x00, c: 0x13,
		d: 0x00, e: 0xD8,
		h: 0x01, l: 0x4D,
		sp: 0xFFFE,
		pc: 0x0100,
	}
	return c
}

// GetPC returns the current program counter.
func (c *CPU) GetPC() uint16 { return c.pc }

// GetAF returns the AF register pair; GetSP returns the stack pointer.
func (c *CPU) GetAF() uint16 { return c.getAF() }
func (c *CPU) GetSP() uint16 { return c.sp }

// Registers returns the individual 8-bit registers for debug inspection.
func (c *CPU) Registers() (a, f, b, cReg, d, e, h, l uint8) {
	return c.a, c.f, c.b, c.c, c.d, c.e, c.h, c.l
}

// IME reports whether interrupts are currently enabled.
func (c *CPU) IME() bool { return c.interruptsEnabled }

// Cycles returns the total number of master clocks executed so far.
func (c *CPU) Cycles() uint64 { return c.cycles }

func (c *CPU) getAF() uint16 { return uint16(c.a)<<8 | uint16(c.f&0xF0) }
func (c *CPU) setAF(v uint16) {
	c.a = uint8(v >> 8)
	c.f = uint8(v) & 0xF0
}

func (c *CPU) getBC() uint16   { return uint16(c.b)<<8 | uint16(c.c) }
func (c *CPU) setBC(v uint16)  { c.b = uint8(v >> 8); c.c = uint8(v) }
func (c *CPU) getDE() uint16   { return uint16(c.d)<<8 | uint16(c.e) }
func (c *CPU) setDE(v uint16)  { c.d = uint8(v >> 8); c.e = uint8(v) }
func (c *CPU) getHL() uint16   { return uint16(c.h)<<8 | uint16(c.l) }
func (c *CPU) setHL(v uint16)  { c.h = uint8(v >> 8); c.l = uint8(v) }

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

// flagToBit returns 1 if the given flag is set, 0 otherwise.
func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

// readImmediate reads the byte at PC and advances PC by one.
func (c *CPU) readImmediate() uint8 {
	value := c.bus.Read(c.pc)
	c.pc++
	return value
}

// readSignedImmediate reads the byte at PC, advances PC by one, and
// interprets the byte as a signed two's-complement offset.
func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

// readImmediateWord reads the little-endian word at PC and advances PC by two.
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return uint16(high)<<8 | uint16(low)
}

// peekImmediate/peekImmediateWord read without moving PC, used by decode-time
// inspection (debugger, disassembler) where side effects are undesirable.
func (c *CPU) peekImmediate() uint8 {
	return c.bus.Read(c.pc)
}

func (c *CPU) peekImmediateWord() uint16 {
	low := c.bus.Read(c.pc)
	high := c.bus.Read(c.pc + 1)
	return uint16(high)<<8 | uint16(low)
}

// Tick executes exactly one CPU step: waking from HALT, servicing a pending
// interrupt if IME is set, or decoding and executing one instruction. It
// returns the number of master clocks (machine cycles x4) consumed.
//
// EI's one-instruction delay is modeled by applying eiPending at the end of
// the tick: EI sets eiPending during Exec, leaving IME false for the rest of
// that tick; the following tick executes one more instruction before IME
// actually flips, so an interrupt can't dispatch until two ticks after EI.
func (c *CPU) Tick() int {
	if c.halted {
		if !c.handleInterrupts() {
			c.bus.Tick(4)
			return 4
		}

		c.halted = false
		if !c.interruptsEnabled {
			// Not serviced (IME was 0): the HALT bug corrupts the next fetch.
			c.haltBug = true
		} else {
			// handleInterrupts already dispatched the vector.
			return 20
		}
	} else if c.interruptsEnabled && c.handleInterrupts() {
		return 20
	}

	applyEI := c.eiPending
	cycles := c.Exec()

	if applyEI && c.eiPending {
		c.eiPending = false
		c.interruptsEnabled = true
	}

	return cycles
}

// Exec decodes and runs exactly one instruction (no interrupt servicing),
// returning the number of master clocks it consumed.
func (c *CPU) Exec() int {
	fn := Decode(c)

	if c.haltBug {
		// The HALT bug re-reads the opcode byte without advancing PC.
		c.haltBug = false
	} else if c.currentOpcode > 0xFF {
		c.pc += 2
	} else {
		c.pc++
	}

	cycles := fn(c)

	// CB-prefixed opcodes tick the bus themselves, access by access; plain
	// opcodes don't, so the base cost is applied here as a single tick.
	if c.currentOpcode <= 0xFF {
		c.bus.Tick(cycles)
	}

	c.cycles += uint64(cycles)
	return cycles
}

// handleInterrupts reports whether an interrupt is pending (IE & IF & 0x1F
// != 0), which is true regardless of IME and is what wakes the CPU from
// HALT. When IME is also set, it additionally dispatches the
// highest-priority pending vector: clears its IF bit, disables IME, and
// pushes the return address.
func (c *CPU) handleInterrupts() bool {
	pending := c.bus.Read(addr.IE) & c.bus.Read(addr.IF) & 0x1F
	if pending == 0 {
		return false
	}
	if !c.interruptsEnabled {
		return true
	}

	var vector uint16
	var bitPos uint8
	switch {
	case pending&0x01 != 0:
		vector, bitPos = 0x40, 0
	case pending&0x02 != 0:
		vector, bitPos = 0x48, 1
	case pending&0x04 != 0:
		vector, bitPos = 0x50, 2
	case pending&0x08 != 0:
		vector, bitPos = 0x58, 3
	case pending&0x10 != 0:
		vector, bitPos = 0x60, 4
	}

	iflags := c.bus.Read(addr.IF)
	c.bus.Write(addr.IF, iflags&^(1<<bitPos))
	c.interruptsEnabled = false

	c.bus.Tick(8)
	c.pushStack(c.pc)
	c.bus.Tick(8)
	c.pc = vector
	c.bus.Tick(4)

	c.cycles += 20
	return true
}
