package cart

import (
	"path/filepath"
	"testing"
)

func TestMBC1_ROMBanking(t *testing.T) {
	// Build a 128KB ROM with distinct bytes per bank at start of each bank
	rom := make([]byte, 128*1024)
	for bank := 0; bank < 8; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m, err := newMBC1(rom, 0, false, "")
	if err != nil {
		t.Fatalf("newMBC1: %v", err)
	}

	// Bank0 region reads from bank 0 in mode 0
	if got := m.Read(0x0000); got != 0x00 {
		t.Fatalf("bank0 read got %02X want 00", got)
	}

	// Switchable bank defaults to 1
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank1 read got %02X want 01", got)
	}

	// Select bank 3
	m.Write(0x2000, 0x03)
	if got := m.Read(0x4000); got != 0x03 {
		t.Fatalf("bank3 read got %02X want 03", got)
	}

	// Writing 0 maps to 1
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC1_RAMBanking_Mode1(t *testing.T) {
	rom := make([]byte, 128*1024)
	m, err := newMBC1(rom, 32*1024, false, "")
	if err != nil {
		t.Fatalf("newMBC1: %v", err)
	}

	// Enable RAM
	m.Write(0x0000, 0x0A)

	// Select mode 1 (RAM banking)
	m.Write(0x6000, 0x01)
	// Select RAM bank 2 via high bits
	m.Write(0x4000, 0x02)

	// Write/read in A000-BFFF should go to bank 2
	m.Write(0xA000, 0x77)
	if got := m.Read(0xA000); got != 0x77 {
		t.Fatalf("RAM bank2 RW failed: got %02X", got)
	}
}

func TestMBC1_BatteryPersistsAcrossReopen(t *testing.T) {
	romPath := filepath.Join(t.TempDir(), "game.gb")
	rom := make([]byte, 128*1024)

	m, err := newMBC1(rom, 8*1024, true, romPath)
	if err != nil {
		t.Fatalf("newMBC1: %v", err)
	}
	m.Write(0x0000, 0x0A) // enable RAM
	m.Write(0xA000, 0x42)
	m.Write(0xA001, 0x99)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := newMBC1(rom, 8*1024, true, romPath)
	if err != nil {
		t.Fatalf("reopen newMBC1: %v", err)
	}
	reopened.Write(0x0000, 0x0A)
	if got := reopened.Read(0xA000); got != 0x42 {
		t.Fatalf("persisted byte 0 got %#02x want 0x42", got)
	}
	if got := reopened.Read(0xA001); got != 0x99 {
		t.Fatalf("persisted byte 1 got %#02x want 0x99", got)
	}
}
