package engine

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// state is the save-state slot format: CPU registers plus the Bus's
// own nested encoding of WRAM/HRAM/PPU/Timer/Joypad/Cartridge.
type state struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP, PC uint16
	IME    bool

	Bus []byte
}

func (s state) encode() []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil
	}
	return buf.Bytes()
}

func decodeState(data []byte) (state, error) {
	var s state
	if len(data) == 0 {
		return s, fmt.Errorf("empty save state")
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return s, fmt.Errorf("decode save state: %w", err)
	}
	return s, nil
}
