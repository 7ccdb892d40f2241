// Package engine owns the CPU/Bus pair and drives them one frame at a
// time: it is the single place T-cycles get counted and handed to the
// Bus's Tick, and the boundary hosts (a GUI, a headless runner, a
// debugger) program against instead of the CPU or Bus directly.
package engine

import (
	"fmt"
	"os"

	"github.com/pixelclk/dmgcore/internal/bus"
	"github.com/pixelclk/dmgcore/internal/cart"
	"github.com/pixelclk/dmgcore/internal/cpu"
	"github.com/pixelclk/dmgcore/internal/joypad"
)

// cyclesPerFrame is the T-cycle budget of one 59.7 Hz DMG frame
// (456 dots/line * 154 lines).
const cyclesPerFrame = 456 * 154

// Config controls engine behavior that isn't part of emulated state.
type Config struct {
	Trace bool // log each CPU.Step as it executes
}

// Engine drives the CPU against the Bus, one instruction or one
// serviced interrupt at a time, and stops a frame's worth of Tick-ing
// either when the PPU reports a completed frame or when the T-cycle
// budget for a frame is exhausted (LCD off, or a pathological ROM).
type Engine struct {
	cpu *cpu.CPU
	bus *bus.Bus
	cfg Config

	romPath string
	title   string
}

// New loads romPath (and, if non-empty, bootROMPath) and returns a
// ready-to-run Engine. With no boot ROM, the CPU starts in the
// standard post-boot register state.
func New(romPath, bootROMPath string, cfg Config) (*Engine, error) {
	romBytes, err := readFileBytes(romPath)
	if err != nil {
		return nil, fmt.Errorf("read ROM: %w", err)
	}
	c, err := cart.NewCartridge(romBytes, romPath)
	if err != nil {
		return nil, fmt.Errorf("load cartridge: %w", err)
	}
	h, err := cart.ParseHeader(romBytes)
	if err != nil {
		return nil, fmt.Errorf("parse cartridge header: %w", err)
	}

	b := bus.NewWithCartridge(c)
	e := &Engine{bus: b, cfg: cfg, romPath: romPath, title: h.Title}
	e.cpu = cpu.New(b)

	if bootROMPath != "" {
		bootBytes, err := readFileBytes(bootROMPath)
		if err != nil {
			return nil, fmt.Errorf("read boot ROM: %w", err)
		}
		b.SetBootROM(bootBytes)
	} else {
		e.cpu.ResetNoBoot()
	}
	return e, nil
}

func readFileBytes(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// NewFromBytes builds an Engine around ROM bytes already in memory,
// bypassing cartridge-path save-RAM persistence. Used by tests; the
// CLI binaries load ROMs through New.
func NewFromBytes(rom []byte, bootROM []byte, cfg Config) (*Engine, error) {
	c, err := cart.NewCartridge(rom, "")
	if err != nil {
		return nil, fmt.Errorf("load cartridge: %w", err)
	}
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return nil, fmt.Errorf("parse cartridge header: %w", err)
	}
	b := bus.NewWithCartridge(c)
	e := &Engine{bus: b, cfg: cfg, title: h.Title}
	e.cpu = cpu.New(b)
	if len(bootROM) >= 0x100 {
		b.SetBootROM(bootROM)
	} else {
		e.cpu.ResetNoBoot()
	}
	return e, nil
}

// Reset puts the CPU back to its post-boot state without reloading
// the cartridge or touching battery RAM.
func (e *Engine) Reset() {
	e.cpu.ResetNoBoot()
}

// FrameResult reports what happened during one StepFrame call, mainly
// for headless tooling and the debugger to log against.
type FrameResult struct {
	Cycles       int
	Instructions int
}

// StepFrame runs the CPU/Bus pair until the PPU latches a completed
// frame, or until cyclesPerFrame T-cycles have elapsed (the LCD is
// off, so no frame will ever complete on its own).
func (e *Engine) StepFrame() (FrameResult, error) {
	var res FrameResult
	for res.Cycles < cyclesPerFrame {
		cycles, err := e.cpu.Step()
		if err != nil {
			return res, err
		}
		e.bus.Tick(cycles)
		res.Cycles += cycles
		res.Instructions++
		if e.cfg.Trace {
			fmt.Printf("PC=%#04x cyc=%d\n", e.cpu.PC, cycles)
		}
		if e.bus.PPU().FrameReady() {
			e.bus.PPU().ConsumeFrame()
			break
		}
	}
	return res, nil
}

// StepInstruction runs exactly one CPU.Step (one instruction, or one
// serviced interrupt, or one HALT cycle), for the debugger's
// single-step command.
func (e *Engine) StepInstruction() (cycles int, err error) {
	cycles, err = e.cpu.Step()
	if err != nil {
		return cycles, err
	}
	e.bus.Tick(cycles)
	return cycles, nil
}

// Frame returns the most recently rendered 160x144 indexed
// framebuffer. The pointer aliases PPU-owned storage.
func (e *Engine) Frame() *[160 * 144]byte { return e.bus.PPU().Framebuffer() }

// SetButton updates one joypad button's pressed state.
func (e *Engine) SetButton(btn joypad.Button, pressed bool) {
	e.bus.Joypad().SetButton(btn, pressed)
}

// Title is the cartridge header's game title.
func (e *Engine) Title() string { return e.title }

// ROMPath is the path the cartridge was loaded from, or "" if the
// Engine was built with NewFromBytes.
func (e *Engine) ROMPath() string { return e.romPath }

// SaveState/LoadState snapshot the entire CPU+Bus (and transitively
// PPU/Timer/Joypad/Cartridge) state for save-state slots.
func (e *Engine) SaveState() []byte {
	s := state{
		A: e.cpu.A, F: e.cpu.F, B: e.cpu.B, C: e.cpu.C,
		D: e.cpu.D, E: e.cpu.E, H: e.cpu.H, L: e.cpu.L,
		SP: e.cpu.SP, PC: e.cpu.PC, IME: e.cpu.IME,
		Bus: e.bus.SaveState(),
	}
	return s.encode()
}

func (e *Engine) LoadState(data []byte) error {
	s, err := decodeState(data)
	if err != nil {
		return err
	}
	e.cpu.A, e.cpu.F = s.A, s.F
	e.cpu.B, e.cpu.C = s.B, s.C
	e.cpu.D, e.cpu.E = s.D, s.E
	e.cpu.H, e.cpu.L = s.H, s.L
	e.cpu.SP, e.cpu.PC = s.SP, s.PC
	e.cpu.IME = s.IME
	e.bus.LoadState(s.Bus)
	return nil
}

// Close flushes battery RAM, if any (Cartridge opens its .sav file at
// construction time and writes it back only here), and releases held
// resources.
func (e *Engine) Close() error { return e.bus.Close() }

// Bus exposes the underlying Bus for tools (the debugger, disassembler)
// that need raw memory access beyond the Engine's surface.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// CPUState is a read-only snapshot of register state for the debugger.
type CPUState struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME                    bool
}

func (e *Engine) CPUState() CPUState {
	return CPUState{
		A: e.cpu.A, F: e.cpu.F, B: e.cpu.B, C: e.cpu.C,
		D: e.cpu.D, E: e.cpu.E, H: e.cpu.H, L: e.cpu.L,
		SP: e.cpu.SP, PC: e.cpu.PC, IME: e.cpu.IME,
	}
}
