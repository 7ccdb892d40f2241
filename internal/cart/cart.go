// Package cart implements cartridge ROM/RAM address translation: a
// no-MBC passthrough and the MBC1 and MBC3 bank controllers, with
// optional battery-backed save RAM persisted next to the ROM file.
package cart

import "fmt"

// Cartridge defines the minimal interface the Bus needs for ROM/RAM
// banking. Addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000-0x7FFF) and external RAM
	// (0xA000-0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000-0x7FFF) and external
	// RAM writes (0xA000-0xBFFF).
	Write(addr uint16, value byte)

	// SaveState/LoadState serialize banking registers and external
	// RAM for save states (distinct from the battery .sav file).
	SaveState() []byte
	LoadState(data []byte)

	// Close flushes battery-backed RAM to its .sav file, if one was
	// opened, and releases the handle. A no-battery cartridge's Close
	// is a no-op.
	Close() error
}

// UnsupportedMBCError reports a header cart-type byte naming an MBC
// outside the supported set (no-MBC, MBC1, MBC3).
type UnsupportedMBCError struct {
	CartType byte
}

func (e *UnsupportedMBCError) Error() string {
	return fmt.Sprintf("unsupported cartridge type %#02x", e.CartType)
}

// NewCartridge builds the Cartridge implementation named by the ROM
// header. When the header flags battery-backed RAM, it opens
// (creating and zero-filling if necessary) a save file alongside
// romPath; romPath may be empty, in which case battery RAM is kept in
// memory only for the process lifetime.
func NewCartridge(rom []byte, romPath string) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, fmt.Errorf("parse cartridge header: %w", err)
	}
	switch h.CartType {
	case 0x00:
		return NewROMOnly(rom), nil
	case 0x01, 0x02, 0x03:
		battery := h.CartType == 0x03
		return newMBC1(rom, h.RAMSizeBytes, battery, romPath)
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		battery := h.CartType == 0x0F || h.CartType == 0x10 || h.CartType == 0x13
		return newMBC3(rom, h.RAMSizeBytes, battery, romPath)
	default:
		return nil, &UnsupportedMBCError{CartType: h.CartType}
	}
}
