package disasm

import "testing"

type memReader []byte

func (m memReader) Read(addr uint16) byte {
	if int(addr) < len(m) {
		return m[addr]
	}
	return 0xFF
}

func TestDisassemble_RepresentativeOpcodes(t *testing.T) {
	cases := []struct {
		code     []byte
		wantText string
		wantLen  int
	}{
		{[]byte{0x00}, "NOP", 1},
		{[]byte{0x76}, "HALT", 1},
		{[]byte{0x41}, "LD B,C", 1},
		{[]byte{0x3E, 0x42}, "LD A,0x42", 2},
		{[]byte{0xC3, 0x34, 0x12}, "JP 0x1234", 3},
		{[]byte{0xCD, 0x00, 0x01}, "CALL 0x0100", 3},
		{[]byte{0x18, 0xFE}, "JR 0x0000", 2}, // JR -2 from pc=0
		{[]byte{0x20, 0x02}, "JR NZ,0x0004", 2},
		{[]byte{0xA8}, "XOR B", 1},
		{[]byte{0xFE, 0x10}, "CP 0x10", 2},
		{[]byte{0xC5}, "PUSH BC", 1},
		{[]byte{0xF1}, "POP AF", 1},
		{[]byte{0xCB, 0x7C}, "BIT 7,H", 2},
		{[]byte{0xCB, 0x11}, "RL C", 2},
		{[]byte{0xFF}, "RST 0x38", 1},
		{[]byte{0xD3}, "DB 0xd3", 1}, // undefined opcode
	}
	for _, c := range cases {
		text, length := Disassemble(memReader(c.code), 0)
		if text != c.wantText || length != c.wantLen {
			t.Errorf("Disassemble(%v) = %q,%d want %q,%d", c.code, text, length, c.wantText, c.wantLen)
		}
	}
}
