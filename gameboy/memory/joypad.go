package memory

import "github.com/lucent-retro/dmgboy/gameboy/bit"

// Joypad tracks the raw button/d-pad state and the P1 selection line,
// independent of how it's exposed through MMU's register map.
//
// In real hw, P1 bits 4-5 are a selector that controls which button group
// bits 0-3 are mapped to: bit 4 selects d-pad, bit 5 selects buttons. If
// both are selected, hardware ANDs both groups together; if neither is, the
// line reads as high impedance (all 1s). Bits 6-7 always read as 1. A
// button bit is 0 when pressed, 1 when released.
type Joypad struct {
	buttons uint8
	dpad    uint8
	line    uint8 // selection bits as written to P1 (bits 4-5 only)
}

// NewJoypad creates a Joypad with no buttons pressed.
func NewJoypad() *Joypad {
	return &Joypad{
		buttons: 0x0F,
		dpad:    0x0F,
	}
}

// Read returns the full P1 register value given the current selection line.
func (j *Joypad) Read() uint8 {
	result := uint8(0xC0) // bits 6-7 always read as 1
	result |= j.line

	selectDpad := !bit.IsSet(4, j.line)
	selectButtons := !bit.IsSet(5, j.line)

	switch {
	case selectButtons && !selectDpad:
		result |= j.buttons & 0x0F
	case selectDpad && !selectButtons:
		result |= j.dpad & 0x0F
	case selectButtons && selectDpad:
		result |= j.buttons & j.dpad & 0x0F
	default:
		result |= 0x0F
	}
	return result
}

// SetSelect updates the P1 selection bits (4-5) from a CPU write.
func (j *Joypad) SetSelect(value uint8) {
	j.line = value & 0b00110000
}

// Press marks a key as held down, reporting whether this is a 1->0
// transition on the currently-selected line (which raises the joypad
// interrupt on real hardware).
func (j *Joypad) Press(key JoypadKey) bool {
	before := j.Read()
	switch key {
	case JoypadRight:
		j.dpad = bit.Reset(0, j.dpad)
	case JoypadLeft:
		j.dpad = bit.Reset(1, j.dpad)
	case JoypadUp:
		j.dpad = bit.Reset(2, j.dpad)
	case JoypadDown:
		j.dpad = bit.Reset(3, j.dpad)
	case JoypadA:
		j.buttons = bit.Reset(0, j.buttons)
	case JoypadB:
		j.buttons = bit.Reset(1, j.buttons)
	case JoypadSelect:
		j.buttons = bit.Reset(2, j.buttons)
	case JoypadStart:
		j.buttons = bit.Reset(3, j.buttons)
	}
	after := j.Read()
	return before&^after&0x0F != 0
}

// Release marks a key as no longer held.
func (j *Joypad) Release(key JoypadKey) {
	switch key {
	case JoypadRight:
		j.dpad = bit.Set(0, j.dpad)
	case JoypadLeft:
		j.dpad = bit.Set(1, j.dpad)
	case JoypadUp:
		j.dpad = bit.Set(2, j.dpad)
	case JoypadDown:
		j.dpad = bit.Set(3, j.dpad)
	case JoypadA:
		j.buttons = bit.Set(0, j.buttons)
	case JoypadB:
		j.buttons = bit.Set(1, j.buttons)
	case JoypadSelect:
		j.buttons = bit.Set(2, j.buttons)
	case JoypadStart:
		j.buttons = bit.Set(3, j.buttons)
	}
}
