package memory

import (
	"testing"

	"github.com/lucent-retro/dmgboy/gameboy/addr"
)

func TestOAMDMATransfer(t *testing.T) {
	m := New()
	m.mbc = NewNoMBC(make([]uint8, 0x8000), 0)

	// Seed the source region (WRAM at 0xC000) with recognizable bytes.
	for i := 0; i < 160; i++ {
		m.memory[0xC000+uint16(i)] = uint8(i + 1)
	}

	m.Write(addr.DMA, 0xC0)
	if !m.dma.active {
		t.Fatalf("DMA did not start on write to 0xFF46")
	}

	// Step one M-cycle (4 master clocks) at a time; each copies exactly one byte.
	for i := 0; i < 160; i++ {
		m.Tick(4)
	}

	if m.dma.active {
		t.Errorf("DMA still active after 160 M-cycles")
	}
	for i := 0; i < 160; i++ {
		if got := m.memory[0xFE00+uint16(i)]; got != uint8(i+1) {
			t.Errorf("OAM[%d] = %d; want %d", i, got, i+1)
		}
	}
}

func TestOAMDMAHRAMOnlyWhileActive(t *testing.T) {
	m := New()
	m.mbc = NewNoMBC(make([]uint8, 0x8000), 0)
	m.memory[0xC000] = 0x42
	m.memory[0xFF80] = 0x99

	m.Write(addr.DMA, 0xC0)

	if got := m.Read(0xC000); got != 0xFF {
		t.Errorf("WRAM read during DMA = 0x%02X; want 0xFF", got)
	}
	if got := m.Read(0xFF80); got != 0x99 {
		t.Errorf("HRAM read during DMA = 0x%02X; want 0x99 (HRAM stays reachable)", got)
	}

	m.Write(0xC000, 0x11)
	if m.memory[0xC000] != 0x42 {
		t.Errorf("WRAM write during DMA took effect; want it dropped")
	}
	m.Write(0xFF80, 0x55)
	if m.memory[0xFF80] != 0x55 {
		t.Errorf("HRAM write during DMA was dropped; want it to take effect")
	}
}

func TestOAMDMARestartMidTransfer(t *testing.T) {
	m := New()
	m.mbc = NewNoMBC(make([]uint8, 0x8000), 0)
	for i := 0; i < 160; i++ {
		m.memory[0xC000+uint16(i)] = 0xAA
		m.memory[0xD000+uint16(i)] = 0xBB
	}

	m.Write(addr.DMA, 0xC0)
	for i := 0; i < 80; i++ {
		m.Tick(4)
	}
	if m.dma.offset != 80 {
		t.Fatalf("offset after 80 M-cycles = %d; want 80", m.dma.offset)
	}

	// Restarting DMA from a different source resets the copy offset.
	m.Write(addr.DMA, 0xD0)
	if m.dma.offset != 0 || m.dma.source != 0xD000 {
		t.Fatalf("DMA restart did not reset offset/source: offset=%d source=0x%04X", m.dma.offset, m.dma.source)
	}

	for i := 0; i < 160; i++ {
		m.Tick(4)
	}
	for i := 0; i < 160; i++ {
		if got := m.memory[0xFE00+uint16(i)]; got != 0xBB {
			t.Errorf("OAM[%d] = 0x%02X; want 0xBB from restarted transfer", i, got)
		}
	}
}
