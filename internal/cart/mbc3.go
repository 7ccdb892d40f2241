package cart

import "fmt"

// MBC3 implements ROM banking (7 bits, 1-127) and 32 KiB RAM banking
// (0-3). The real-time clock is an intentional stub per the DMG-class
// scope this targets: selecting an RTC register (0x08-0x0C) reads
// 0xFF and the latch write (0x6000-0x7FFF) is ignored, matching a
// cartridge with no RTC chip rather than emulating one.
type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled  bool
	romBank     byte // 7 bits (1..127)
	ramBank     byte // 0..3 when a RAM bank is selected
	rtcSelected bool // 0x4000-0x5FFF last written 0x08-0x0C

	sav *saveFile
}

// NewMBC3 builds an MBC3 with no battery persistence, for tests and
// callers that manage save RAM externally.
func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m, _ := newMBC3(rom, ramSize, false, "")
	return m
}

func newMBC3(rom []byte, ramSize int, battery bool, romPath string) (*MBC3, error) {
	m := &MBC3{rom: rom, romBank: 1}
	if ramSize > 0 {
		// All four 8 KiB banks are always backed, whatever the header's
		// RAM size code says.
		m.ram = make([]byte, 4*0x2000)
	}
	if battery && len(m.ram) > 0 {
		sav, err := openSaveFile(romPath, m.ram)
		if err != nil {
			return nil, fmt.Errorf("open MBC3 save file: %w", err)
		}
		m.sav = sav
	}
	return m, nil
}

func (m *MBC3) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if m.rtcSelected {
			return 0xFF
		}
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := int(m.ramBank&0x03)*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		if value <= 0x03 {
			m.ramBank = value & 0x03
			m.rtcSelected = false
		} else if value >= 0x08 && value <= 0x0C {
			m.rtcSelected = true
		}
	case addr < 0x8000:
		// Latch clock data: no RTC to latch.
	case addr >= 0xA000 && addr <= 0xBFFF:
		if m.rtcSelected || !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := int(m.ramBank&0x03)*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

// SaveRAM and LoadRAM copy external RAM out and in, for callers that
// drive persistence externally (save states, tests).
func (m *MBC3) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC3) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}

func (m *MBC3) Close() error {
	return m.sav.close(m.ram)
}

type mbc3State struct {
	RAM                  []byte
	RomBank, RamBank     byte
	RAMEnabled, RTCSel   bool
}

func (m *MBC3) SaveState() []byte {
	return encodeGob(mbc3State{
		RAM:        m.SaveRAM(),
		RomBank:    m.romBank,
		RamBank:    m.ramBank,
		RAMEnabled: m.ramEnabled,
		RTCSel:     m.rtcSelected,
	})
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := decodeGob(data, &s); err != nil {
		return
	}
	m.LoadRAM(s.RAM)
	m.romBank, m.ramBank = s.RomBank, s.RamBank
	m.ramEnabled, m.rtcSelected = s.RAMEnabled, s.RTCSel
}
