package cart

import (
	"path/filepath"
	"testing"
)

func TestMBC3_ROMAndRAMBanking(t *testing.T) {
	rom := make([]byte, 8*0x4000)
	for bank := 0; bank < 8; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m, err := newMBC3(rom, 0x2000, false, "")
	if err != nil {
		t.Fatalf("newMBC3: %v", err)
	}

	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default bank got %02X want 01", got)
	}
	m.Write(0x2000, 0x05)
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 read got %02X want 05", got)
	}
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}

	m.Write(0x0000, 0x0A) // RAM enable
	m.Write(0x4000, 0x01) // RAM bank 1
	m.Write(0xA000, 0x55)
	if got := m.Read(0xA000); got != 0x55 {
		t.Fatalf("RAM bank1 RW failed: got %02X", got)
	}
}

func TestMBC3_RTCRegisterSelectReadsStubbed(t *testing.T) {
	rom := make([]byte, 0x8000)
	m, err := newMBC3(rom, 0x2000, false, "")
	if err != nil {
		t.Fatalf("newMBC3: %v", err)
	}
	m.Write(0x0000, 0x0A) // RAM enable
	m.Write(0x4000, 0x08) // select RTC seconds register
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("RTC register read got %#02x want 0xFF (stub)", got)
	}
	m.Write(0x6000, 0x01) // latch: must not panic or change anything
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("RTC register read after latch got %#02x want 0xFF (stub)", got)
	}
}

func TestMBC3_BatteryPersistsAcrossReopen(t *testing.T) {
	romPath := filepath.Join(t.TempDir(), "game.gb")
	rom := make([]byte, 0x8000)

	m, err := newMBC3(rom, 0x2000, true, romPath)
	if err != nil {
		t.Fatalf("newMBC3: %v", err)
	}
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x7E)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := newMBC3(rom, 0x2000, true, romPath)
	if err != nil {
		t.Fatalf("reopen newMBC3: %v", err)
	}
	reopened.Write(0x0000, 0x0A)
	if got := reopened.Read(0xA000); got != 0x7E {
		t.Fatalf("persisted byte got %#02x want 0x7E", got)
	}
}
