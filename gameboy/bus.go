package gameboy

import (
	"github.com/lucent-retro/dmgboy/gameboy/addr"
	"github.com/lucent-retro/dmgboy/gameboy/cpu"
	"github.com/lucent-retro/dmgboy/gameboy/memory"
	"github.com/lucent-retro/dmgboy/gameboy/video"
)

// BusInterface defines the interface for component communication
type BusInterface interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	RequestInterrupt(interrupt addr.Interrupt)
}

// Bus provides centralized component communication
type Bus struct {
	CPU *cpu.CPU
	MMU *memory.MMU
	GPU *video.GPU
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Read(address uint16) byte {
	return b.MMU.Read(address)
}

func (b *Bus) Write(address uint16, value byte) {
	b.MMU.Write(address, value)
}

// Tick advances the MMU-owned components (timer, serial, cartridge, OAM DMA)
// by the given number of cycles. The CPU ticks the MMU directly, not through here.
func (b *Bus) Tick(cycles int) {
	b.MMU.Tick(cycles)
}

// TickInstruction runs one CPU step (instruction execution or interrupt
// dispatch) and ticks GPU/APU by the resulting cycle count. Timer and
// serial are already ticked inside CPU.Tick via MMU.Tick, so they are not
// repeated here.
func (b *Bus) TickInstruction() int {
	cycles := b.CPU.Tick()

	b.GPU.Tick(cycles)
	b.MMU.APU.Tick(cycles)

	return cycles
}

func (b *Bus) RequestInterrupt(interrupt addr.Interrupt) {
	b.MMU.RequestInterrupt(interrupt)
}

func (b *Bus) ReadBit(index uint8, address uint16) bool {
	return b.MMU.ReadBit(index, address)
}
