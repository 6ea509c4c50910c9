package memory

import (
	"fmt"
	"log/slog"

	"github.com/lucent-retro/dmgboy/gameboy/addr"
	"github.com/lucent-retro/dmgboy/gameboy/audio"
	"github.com/lucent-retro/dmgboy/gameboy/bit"
	"github.com/lucent-retro/dmgboy/gameboy/serial"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionUnused
	regionIO
	regionHRAM
)

// JoypadKey represents a key on the Gameboy joypad
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// SerialPort is the minimal interface for a serial device connected to SB/SC.
// Implementations MUST only accept reads/writes to addr.SB and addr.SC.
type SerialPort interface {
	Write(address uint16, value byte)
	Read(address uint16) byte
	Tick(cycles int)
	Reset()
}

// MMU allows access to all memory mapped I/O and data/registers
type MMU struct {
	cart      *Cartridge
	mbc       MBC
	memory    []byte
	APU       *audio.APU
	regionMap [256]memRegion

	joypad *Joypad

	serial SerialPort
	timer  Timer

	dma oamDMA

	ppu ppuModeProvider
}

// ppuModeProvider reports the PPU's current rendering mode, matching STAT
// bits 1-0 (0 HBlank, 1 VBlank, 2 OAM search, 3 data transfer). It's the
// minimal interface gameboy/video's GPU satisfies without gameboy/memory
// having to import gameboy/video back (which imports memory already).
type ppuModeProvider interface {
	ModeValue() uint8
}

const (
	ppuModeOAMSearch    = 2
	ppuModeDataTransfer = 3
)

// SetPPU wires the PPU mode source used to gate VRAM/OAM access. Called once
// from DMG.init after both the MMU and the GPU exist.
func (m *MMU) SetPPU(p ppuModeProvider) {
	m.ppu = p
}

// oamDMA models the 160 M-cycle OAM DMA transfer: one byte is copied from
// source+n to OAM+n per M-cycle rather than all at once, and while it's
// active the CPU can only reach HRAM.
type oamDMA struct {
	active     bool
	source     uint16
	offset     int
	subCycle   int // master clocks accumulated toward the next byte copy
}

// New creates a new memory unity with default data, i.e. nothing cartridge loaded.
// Equivalent to turning on a Gameboy without a cartridge in.
func New() *MMU {
	mmu := &MMU{
		memory: make([]byte, 0x10000),
		cart:   NewCartridge(),
		APU:    audio.New(),
		joypad: NewJoypad(),
	}
	mmu.serial = serial.NewLogSink(func() { mmu.RequestInterrupt(addr.SerialInterrupt) })
	mmu.timer.TimerInterruptHandler = func() { mmu.RequestInterrupt(addr.TimerInterrupt) }
	initRegionMap(mmu)
	return mmu
}

// tickableMBC is implemented by MBC variants that carry their own clock,
// currently MBC3's real-time-clock registers.
type tickableMBC interface {
	Tick(cycles int)
}

// Tick advances any i/o that needs it, if any.
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	if m.serial != nil {
		m.serial.Tick(cycles)
	}
	if t, ok := m.mbc.(tickableMBC); ok {
		t.Tick(cycles)
	}
	m.tickDMA(cycles)
}

// tickDMA steps the in-flight OAM DMA transfer, copying one byte every 4
// master clocks (1 M-cycle) until all 160 bytes have moved.
func (m *MMU) tickDMA(cycles int) {
	if !m.dma.active {
		return
	}
	m.dma.subCycle += cycles
	for m.dma.subCycle >= 4 && m.dma.active {
		m.dma.subCycle -= 4
		m.memory[0xFE00+uint16(m.dma.offset)] = m.readDuringDMA(m.dma.source + uint16(m.dma.offset))
		m.dma.offset++
		if m.dma.offset >= 160 {
			m.dma.active = false
		}
	}
}

// readDuringDMA bypasses the CPU-visible HRAM-only restriction: the DMA unit
// itself can read ROM/RAM/VRAM as its source even while it blocks the CPU.
func (m *MMU) readDuringDMA(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionEcho:
		return m.memory[address-0x2000]
	default:
		return m.memory[address]
	}
}

// SetTimerSeed initializes the internal timer divider seed and DIV register.
func (m *MMU) SetTimerSeed(seed uint16) {
	m.timer.SetSeed(seed)
}

// WriteSTATInternal writes the STAT register directly, bypassing the
// read-only-bit mask that MMU.Write enforces on CPU-driven writes. The PPU
// is the only caller: it owns the mode (bits 0-1) and coincidence (bit 2)
// bits and must be able to update them even though the CPU can't.
func (m *MMU) WriteSTATInternal(value byte) {
	m.memory[addr.STAT] = value
}

// GetMBC returns the currently installed cartridge mapper, or nil if none.
func (m *MMU) GetMBC() MBC {
	return m.mbc
}

// SetSerialCallback installs a host handler for outgoing serial bytes on the
// attached serial device, if it supports one (the default LogSink does).
// Passing nil reverts to the device's default behavior.
func (m *MMU) SetSerialCallback(fn func(outgoing byte) (incoming byte)) {
	if cb, ok := m.serial.(interface {
		SetCallback(func(byte) byte)
	}); ok {
		cb.SetCallback(fn)
	}
}

// GetCartridge returns the currently installed cartridge.
func (m *MMU) GetCartridge() *Cartridge {
	return m.cart
}

// NewWithCartridge creates a new memory unit with the provided cartridge data loaded.
// Equivalent to turning on a Gameboy with a cartridge in.
func NewWithCartridge(cart *Cartridge) *MMU {
	mmu := New()
	mmu.cart = cart

	switch cart.mbcType {
	case NoMBCType:
		mmu.mbc = NewNoMBC(cart.data, uint32(cart.ramBankCount)*0x2000)
	case MBC1Type:
		mmu.mbc = NewMBC1(cart.data, cart.hasBattery, cart.ramBankCount)
	case MBC1MultiType:
		mmu.mbc = NewMBC1(cart.data, cart.hasBattery, cart.ramBankCount) // FIXME: add support for multicart
	case MBC2Type:
		mmu.mbc = NewMBC2(cart.data)
	case MBC3Type:
		mmu.mbc = NewMBC3(cart.data, cart.ramBankCount, cart.hasRTC, nil)
	case MBC5Type:
		mmu.mbc = NewMBC5(cart.data, cart.hasRumble, cart.ramBankCount)
	case MBCUnknownType:
		panic("unsupported MBC type: unknown")
	default:
		panic(fmt.Sprintf("unsupported MBC type: %d", cart.mbcType))
	}

	return mmu
}

func initRegionMap(m *MMU) {
	// ROM: 0x0000-0x7FFF
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	// VRAM: 0x8000-0x9FFF
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	// External RAM: 0xA000-0xBFFF
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	// Work RAM: 0xC000-0xDFFF
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	// Echo RAM: 0xE000-0xFDFF
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	// OAM: 0xFE00-0xFE9F, Unused: 0xFEA0-0xFEFF
	m.regionMap[0xFE] = regionOAM
	// IO + HRAM: 0xFF00-0xFFFF
	m.regionMap[0xFF] = regionIO
}

// RequestInterrupt sets the interrupt flag (IF register) of the chosen interrupt to 1.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	interruptFlags := m.Read(addr.IF)

	var bitPos uint8
	switch interrupt {
	case addr.VBlankInterrupt:
		bitPos = 0
	case addr.LCDSTATInterrupt:
		bitPos = 1
	case addr.TimerInterrupt:
		bitPos = 2
	case addr.SerialInterrupt:
		bitPos = 3
	case addr.JoypadInterrupt:
		bitPos = 4
	default:
		panic(fmt.Sprintf("Unknown interrupt: 0x%02X", uint8(interrupt)))
	}

	newFlags := bit.Set(bitPos, interruptFlags)

	m.Write(addr.IF, newFlags)
}

func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

func (m *MMU) SetBit(index uint8, address uint16, set bool) {
	value := m.Read(address)
	if set {
		value = bit.Set(index, value)
	} else {
		value = bit.Reset(index, value)
	}
	m.Write(address, value)
}

// ppuMode returns the PPU's current mode, or hblank (0) if no PPU has been
// wired yet (e.g. during early boot before DMG.init finishes).
func (m *MMU) ppuMode() uint8 {
	if m.ppu == nil {
		return 0
	}
	return m.ppu.ModeValue()
}

// ReadInternal bypasses the CPU-facing PPU-mode and DMA gating: it's the
// access path the PPU itself uses to fetch tile/map/OAM data while
// rendering, since a mode-3/OAM-search read from the PPU's own fetcher must
// succeed even though the same address would read back 0xFF for the CPU.
func (m *MMU) ReadInternal(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM, regionWRAM:
		return m.memory[address]
	case regionEcho:
		return m.memory[address-0x2000]
	case regionOAM:
		if address <= 0xFE9F {
			return m.memory[address]
		}
		return 0xFF
	case regionIO:
		if address == addr.IF {
			return m.memory[address] | 0xE0
		}
		if address == addr.STAT {
			return m.memory[address] | 0x80
		}
		return m.memory[address]
	default:
		return 0xFF
	}
}

func (m *MMU) Read(address uint16) byte {
	if m.dma.active && address < 0xFF80 {
		return 0xFF
	}
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("Reading from ROM/external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM:
		if m.ppuMode() == ppuModeDataTransfer {
			return 0xFF
		}
		return m.memory[address]
	case regionWRAM:
		return m.memory[address]
	case regionEcho:
		if address <= 0xFDFF {
			return m.memory[address-0x2000]
		}
		return m.memory[address-0x2000]
	case regionOAM:
		if address <= 0xFE9F {
			mode := m.ppuMode()
			if mode == ppuModeOAMSearch || mode == ppuModeDataTransfer {
				return 0xFF
			}
			return m.memory[address]
		}
		// Unused area 0xFEA0-0xFEFF always reads back 0xFF.
		return 0xFF
	case regionIO:
		if address == addr.P1 {
			return m.joypad.Read()
		}
		if address == addr.SB || address == addr.SC {
			return m.serial.Read(address)
		}
		if address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC {
			return m.timer.Read(address)
		}
		if address >= 0xFF10 && address <= 0xFF3F {
			return m.APU.ReadRegister(address)
		}
		// Just in case, we always read the upper 3 bits of IF as 1.
		// They're not used, but have caused me some headaches when checking for
		// when the halt bug triggers (IF != 0).
		if address == addr.IF {
			return m.memory[address] | 0xE0
		}
		if address == addr.STAT {
			// Bit 7 is unused and always reads back as 1.
			return m.memory[address] | 0x80
		}
		if address >= 0xFF80 {
			// HRAM
			return m.memory[address]
		}
		// Other IO registers
		return m.memory[address]
	default:
		panic(fmt.Sprintf("Attempted read at unmapped address: 0x%X", address))
	}
}

func (m *MMU) Write(address uint16, value byte) {
	if m.dma.active && address < 0xFF80 && address != addr.DMA {
		return
	}
	switch m.regionMap[address>>8] {
	case regionROM:
		if m.mbc == nil {
			slog.Warn("Writing to ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM:
		if m.ppuMode() == ppuModeDataTransfer {
			return
		}
		m.memory[address] = value
	case regionExtRAM:
		if m.mbc == nil {
			slog.Warn("Writing to external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionWRAM:
		m.memory[address] = value
	case regionEcho:
		if address <= 0xFDFF {
			m.memory[address-0x2000] = value
		}
	case regionOAM:
		if address <= 0xFE9F {
			mode := m.ppuMode()
			if mode == ppuModeOAMSearch || mode == ppuModeDataTransfer {
				return
			}
			m.memory[address] = value
		}
		// Unused area 0xFEA0-0xFEFF is not backed by real storage; writes
		// are dropped.
	case regionIO:
		if address == addr.P1 {
			m.joypad.SetSelect(value)
			return
		}
		if address == addr.SB || address == addr.SC {
			m.serial.Write(address, value)
			return
		}
		if address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC {
			m.timer.Write(address, value)
			return
		}
		if address >= 0xFF10 && address <= 0xFF3F {
			m.APU.WriteRegister(address, value)
			return
		}
		if address == addr.IF {
			// This goddamn register has its upper 3 bits always set as 1...
			// Beware if you're trying to match halt bug behavior.
			m.memory[address] = value | 0xE0
			return
		}
		if address == addr.DMA {
			m.dma = oamDMA{active: true, source: uint16(value) << 8}
			m.memory[address] = value
			return
		}
		if address == addr.STAT {
			// Bits 0-1 (mode) and bit 2 (coincidence flag) are read-only,
			// driven by the PPU; only the interrupt-enable bits (3-6) are
			// CPU-writable. Bit 7 is unused and always reads back as 1.
			current := m.memory[address]
			m.memory[address] = (current & 0x07) | (value & 0x78) | 0x80
			return
		}
		if address >= 0xFF80 {
			// HRAM
			m.memory[address] = value
			return
		}
		// Other IO registers
		m.memory[address] = value
	default:
		panic(fmt.Sprintf("Attempted write at unmapped address: 0x%X", address))
	}
}

// HandleKeyPress marks a key as held and raises the joypad interrupt if this
// is a new press on the currently-selected button group.
func (m *MMU) HandleKeyPress(key JoypadKey) {
	if m.joypad.Press(key) {
		m.RequestInterrupt(addr.JoypadInterrupt)
	}
}

// HandleKeyRelease marks a key as no longer held.
func (m *MMU) HandleKeyRelease(key JoypadKey) {
	m.joypad.Release(key)
}
