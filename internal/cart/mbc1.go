package cart

import "fmt"

// MBC1 implements ROM banking up to 2 MiB and RAM banking up to 32
// KiB, with optional battery-backed RAM persistence.
type MBC1 struct {
	rom []byte
	ram []byte

	romBankLow5       byte // lower 5 bits of ROM bank number (0->1 remapped)
	ramBankOrRomHigh2 byte // ROM bank bits 5-6 for 0x4000-0x7FFF; also RAM bank and 0x0000-0x3FFF bank in mode1
	ramEnabled        bool
	modeSelect        byte // 0: ROM banking (default), 1: RAM banking

	sav *saveFile
}

// NewMBC1 builds an MBC1 with no battery persistence, for tests and
// callers that manage save RAM externally.
func NewMBC1(rom []byte, ramSize int) *MBC1 {
	m, _ := newMBC1(rom, ramSize, false, "")
	return m
}

func newMBC1(rom []byte, ramSize int, battery bool, romPath string) (*MBC1, error) {
	m := &MBC1{rom: rom, romBankLow5: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	if battery && len(m.ram) > 0 {
		sav, err := openSaveFile(romPath, m.ram)
		if err != nil {
			return nil, fmt.Errorf("open MBC1 save file: %w", err)
		}
		m.sav = sav
	}
	return m, nil
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		// Bank 0, or high bits applied in mode 1
		if m.modeSelect == 0 {
			if int(addr) < len(m.rom) {
				return m.rom[addr]
			}
			return 0xFF
		}
		bank := int((m.ramBankOrRomHigh2 & 0x03) << 5)
		off := bank*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.effectiveROMBank())
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramOffset(addr)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		m.romBankLow5 = value & 0x1F
		if m.romBankLow5 == 0 {
			m.romBankLow5 = 1
		}
	case addr < 0x6000:
		m.ramBankOrRomHigh2 = value & 0x03
	case addr < 0x8000:
		m.modeSelect = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := m.ramOffset(addr)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC1) ramOffset(addr uint16) int {
	ramBank := 0
	if m.modeSelect == 1 {
		ramBank = int(m.ramBankOrRomHigh2 & 0x03)
	}
	return ramBank*0x2000 + int(addr-0xA000)
}

func (m *MBC1) effectiveROMBank() byte {
	high := m.ramBankOrRomHigh2 & 0x03
	return m.romBankLow5 | (high << 5)
}

// SaveRAM and LoadRAM copy external RAM out and in, for callers that
// drive persistence externally (save states, tests).
func (m *MBC1) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC1) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}

func (m *MBC1) Close() error {
	return m.sav.close(m.ram)
}

type mbc1State struct {
	RAM                                  []byte
	RomBankLow5, RamBankOrRomHigh2, Mode byte
	RAMEnabled                           bool
}

func (m *MBC1) SaveState() []byte {
	return encodeGob(mbc1State{
		RAM:               m.SaveRAM(),
		RomBankLow5:       m.romBankLow5,
		RamBankOrRomHigh2: m.ramBankOrRomHigh2,
		Mode:              m.modeSelect,
		RAMEnabled:        m.ramEnabled,
	})
}

func (m *MBC1) LoadState(data []byte) {
	var s mbc1State
	if err := decodeGob(data, &s); err != nil {
		return
	}
	m.LoadRAM(s.RAM)
	m.romBankLow5, m.ramBankOrRomHigh2, m.modeSelect = s.RomBankLow5, s.RamBankOrRomHigh2, s.Mode
	m.ramEnabled = s.RAMEnabled
}
