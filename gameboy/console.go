package gameboy

import (
	"fmt"

	"github.com/lucent-retro/dmgboy/gameboy/memory"
	"github.com/lucent-retro/dmgboy/gameboy/video"
)

// JoypadState is the full button state for one input poll: true means held.
type JoypadState struct {
	Right, Left, Up, Down   bool
	A, B, Select, Start     bool
}

// Console is the public façade wrapping a DMG instance. It translates the
// whole-state JoypadState and host-driven RunFor/PullAudio/save-RAM
// operations onto the underlying DMG/MMU/APU, so host collaborators never
// need to reach into gameboy/memory or gameboy/audio directly.
type Console struct {
	dmg    *DMG
	joypad JoypadState
}

// LoadCartridge parses cartridge header and ROM data into a Cartridge ready
// to be Insert-ed into a Console.
func LoadCartridge(data []byte) (*memory.Cartridge, error) {
	if len(data) < 0x150 {
		return nil, fmt.Errorf("gameboy: cartridge data too short to contain a header (%d bytes)", len(data))
	}
	return memory.NewCartridgeWithData(data), nil
}

// NewConsole creates a Console with no cartridge inserted.
func NewConsole() *Console {
	c := &Console{dmg: &DMG{}}
	c.dmg.init(memory.NewWithCartridge(memory.NewCartridge()))
	return c
}

// Insert loads the given cartridge, resetting CPU/PPU/MMU state as if the
// console had just been powered on with it in the slot.
func (c *Console) Insert(cart *memory.Cartridge) {
	c.dmg = &DMG{}
	c.dmg.init(memory.NewWithCartridge(cart))
}

// RunFor advances emulation by approximately masterClocks master clocks,
// executing whole instructions (the last instruction of the run may overrun
// the requested budget by up to its own cycle count).
func (c *Console) RunFor(masterClocks int) {
	total := 0
	for total < masterClocks {
		total += c.dmg.bus.TickInstruction()
	}
}

// SetJoypad applies a full button-state snapshot, raising press/release
// edges only for the buttons that actually changed since the last call.
func (c *Console) SetJoypad(state JoypadState) {
	c.applyKey(memory.JoypadRight, c.joypad.Right, state.Right)
	c.applyKey(memory.JoypadLeft, c.joypad.Left, state.Left)
	c.applyKey(memory.JoypadUp, c.joypad.Up, state.Up)
	c.applyKey(memory.JoypadDown, c.joypad.Down, state.Down)
	c.applyKey(memory.JoypadA, c.joypad.A, state.A)
	c.applyKey(memory.JoypadB, c.joypad.B, state.B)
	c.applyKey(memory.JoypadSelect, c.joypad.Select, state.Select)
	c.applyKey(memory.JoypadStart, c.joypad.Start, state.Start)
	c.joypad = state
}

func (c *Console) applyKey(key memory.JoypadKey, was, is bool) {
	if was == is {
		return
	}
	if is {
		c.dmg.mem.HandleKeyPress(key)
	} else {
		c.dmg.mem.HandleKeyRelease(key)
	}
}

// SetSerialCallback installs a host handler for the link-cable port: it's
// called with each outgoing byte and returns the byte shifted back in.
// Passing nil reverts to the default logging sink.
func (c *Console) SetSerialCallback(fn func(out byte) (in byte)) {
	c.dmg.mem.SetSerialCallback(fn)
}

// ReadFramebuffer returns the most recently completed frame.
func (c *Console) ReadFramebuffer() *video.FrameBuffer {
	return c.dmg.GetCurrentFrame()
}

// PullAudio drains queued stereo samples into left/right, returning how many
// sample pairs were copied. Fewer than len(left) means the ring ran dry.
func (c *Console) PullAudio(left, right []int16) int {
	return c.dmg.mem.APU.PullAudio(left, right)
}

// SnapshotSaveRAM returns a copy of the cartridge's battery-backed RAM (plus
// a trailing RTC record for MBC3-with-clock carts), or an error if the
// inserted cartridge has no battery-backed state to save.
func (c *Console) SnapshotSaveRAM() ([]byte, error) {
	mbc := c.dmg.mem.GetMBC()
	saver, ok := mbc.(interface {
		RAM() []uint8
		RestoreRAM([]byte)
	})
	if !ok {
		return nil, fmt.Errorf("gameboy: cartridge mapper has no battery-backed RAM")
	}

	ram := saver.RAM()
	out := make([]byte, len(ram))
	copy(out, ram)

	if rtc, ok := mbc.(interface{ RTCSnapshot() memory.RTCState }); ok {
		out = append(out, encodeRTC(rtc.RTCSnapshot())...)
	}
	return out, nil
}

// RestoreSaveRAM restores previously-snapshotted RAM (and RTC record, if
// present) into the inserted cartridge's mapper.
func (c *Console) RestoreSaveRAM(data []byte) error {
	mbc := c.dmg.mem.GetMBC()
	restorer, ok := mbc.(interface {
		RAM() []uint8
		RestoreRAM([]byte)
	})
	if !ok {
		return fmt.Errorf("gameboy: cartridge mapper has no battery-backed RAM")
	}

	ramLen := len(restorer.RAM())
	if len(data) < ramLen {
		return fmt.Errorf("gameboy: save data too short: got %d bytes, want at least %d", len(data), ramLen)
	}
	restorer.RestoreRAM(data[:ramLen])

	if rtcRestorer, ok := mbc.(interface{ RestoreRTCState(memory.RTCState) }); ok {
		if len(data) >= ramLen+rtcRecordSize {
			rtcRestorer.RestoreRTCState(decodeRTC(data[ramLen : ramLen+rtcRecordSize]))
		}
	}
	return nil
}

// rtcRecordSize is the byte length of the appended RTC save record. Bytes
// 0-4 hold the live RTC registers (seconds, minutes, hours, day low, day
// high/flags) and the rest are zero; latched registers and a timestamp are
// not stored.
const rtcRecordSize = 48

func encodeRTC(s memory.RTCState) []byte {
	out := make([]byte, rtcRecordSize)
	out[0] = s.Seconds
	out[1] = s.Minutes
	out[2] = s.Hours
	out[3] = s.DaysLow
	out[4] = s.DaysHighAndFlags
	return out
}

func decodeRTC(data []byte) memory.RTCState {
	return memory.RTCState{
		Seconds:          data[0],
		Minutes:          data[1],
		Hours:            data[2],
		DaysLow:          data[3],
		DaysHighAndFlags: data[4],
	}
}
