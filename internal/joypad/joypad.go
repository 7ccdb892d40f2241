// Package joypad models the DMG P1 (0xFF00) register: a 4-bit action/
// direction group selector and the active-low state of whichever
// group(s) are selected.
package joypad

// Button identifies one of the eight physical buttons.
type Button int

const (
	Right Button = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// InterruptRequester sets a bit in the bus's IF register.
type InterruptRequester func(bit uint)

// Joypad latches button state and exposes the combined P1 byte.
type Joypad struct {
	selectActions   bool // P15 low: action buttons selected
	selectDirection bool // P14 low: direction pad selected
	pressed         [8]bool

	lastLowNibble byte // for edge detection on the select-gated nibble
	req           InterruptRequester
}

func New(req InterruptRequester) *Joypad {
	return &Joypad{lastLowNibble: 0x0F, req: req}
}

// ReadP1 returns the register as the CPU sees it: bits 7-6 read high,
// bits 5-4 reflect the last-written selector, bits 3-0 reflect the
// active-low state of whichever group(s) are selected (0xF, all
// released, if neither or both groups are selected).
func (j *Joypad) ReadP1() byte {
	return 0xC0 | (j.selectBits()) | j.lowNibble()
}

// WriteP1 stores the group selector (bits 5-4) and re-evaluates the
// joypad interrupt edge.
func (j *Joypad) WriteP1(value byte) {
	j.selectActions = value&0x20 == 0
	j.selectDirection = value&0x10 == 0
	j.updateIRQ()
}

func (j *Joypad) selectBits() byte {
	var b byte = 0x30
	if j.selectActions {
		b &^= 0x20
	}
	if j.selectDirection {
		b &^= 0x10
	}
	return b
}

// SetButton updates one button's pressed state and raises the Joypad
// interrupt if a selected, previously-high bit falls to zero.
func (j *Joypad) SetButton(b Button, pressed bool) {
	j.pressed[b] = pressed
	j.updateIRQ()
}

// AnyPressed reports whether any currently-selected button reads low.
// The CPU's STOP instruction does not consult it: STOP skips its
// operand byte and execution continues with the next instruction.
func (j *Joypad) AnyPressed() bool { return j.lowNibble() != 0x0F }

func (j *Joypad) lowNibble() byte {
	n := byte(0x0F)
	if j.selectDirection && j.selectActions {
		return n
	}
	if j.selectDirection {
		if j.pressed[Right] {
			n &^= 0x01
		}
		if j.pressed[Left] {
			n &^= 0x02
		}
		if j.pressed[Up] {
			n &^= 0x04
		}
		if j.pressed[Down] {
			n &^= 0x08
		}
	}
	if j.selectActions {
		if j.pressed[A] {
			n &^= 0x01
		}
		if j.pressed[B] {
			n &^= 0x02
		}
		if j.pressed[Select] {
			n &^= 0x04
		}
		if j.pressed[Start] {
			n &^= 0x08
		}
	}
	return n
}

func (j *Joypad) updateIRQ() {
	n := j.lowNibble()
	falling := j.lastLowNibble &^ n
	if falling != 0 && j.req != nil {
		j.req(4)
	}
	j.lastLowNibble = n
}

type State struct {
	SelectActions, SelectDirection bool
	Pressed                        [8]bool
	LastLowNibble                  byte
}

func (j *Joypad) SaveState() State {
	return State{j.selectActions, j.selectDirection, j.pressed, j.lastLowNibble}
}

func (j *Joypad) LoadState(s State) {
	j.selectActions, j.selectDirection = s.SelectActions, s.SelectDirection
	j.pressed = s.Pressed
	j.lastLowNibble = s.LastLowNibble
}
