// Command dbgmonitor is a terminal debugger: it steps the engine one
// instruction or one frame at a time, disassembles around the program
// counter, and can copy the current register dump to the clipboard.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.design/x/clipboard"
	"golang.org/x/term"

	"github.com/pixelclk/dmgcore/internal/disasm"
	"github.com/pixelclk/dmgcore/internal/engine"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootROM := flag.String("bootrom", "", "optional DMG boot ROM")
	flag.Parse()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: dbgmonitor -rom game.gb")
		os.Exit(1)
	}

	e, err := engine.New(*romPath, *bootROM, engine.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "load: %v\n", err)
		os.Exit(1)
	}
	defer e.Close()

	clipboardOK := clipboard.Init() == nil

	fd := int(os.Stdin.Fd())
	var oldState *term.State
	if term.IsTerminal(fd) {
		oldState, _ = term.MakeRaw(fd)
		defer func() {
			if oldState != nil {
				_ = term.Restore(fd, oldState)
			}
		}()
	}
	reader := newLineReader(fd, oldState)

	printHelp()
	printState(e)
	for {
		fmt.Print("\r\n(dbg) ")
		line, ok := reader.readLine()
		if !ok {
			return
		}
		if !runCommand(e, strings.TrimSpace(line), clipboardOK) {
			return
		}
	}
}

func printHelp() {
	fmt.Print("dmgcore debugger: s=step i=step-instr f=step-frame d=disasm b<hex>=breakpoint c=continue y=copy-state q=quit\r\n")
}

func runCommand(e *engine.Engine, cmd string, clipboardOK bool) bool {
	switch {
	case cmd == "" || cmd == "i" || cmd == "s":
		step(e)
	case cmd == "f":
		if _, err := e.StepFrame(); err != nil {
			fmt.Printf("\r\nerror: %v\r\n", err)
		}
		printState(e)
	case cmd == "d":
		printDisasm(e)
	case cmd == "c":
		runUntilError(e)
	case cmd == "y":
		if clipboardOK {
			clipboard.Write(clipboard.FmtText, []byte(stateString(e)))
			fmt.Print("\r\ncopied register state to clipboard\r\n")
		} else {
			fmt.Print("\r\nclipboard unavailable\r\n")
		}
	case strings.HasPrefix(cmd, "b"):
		if _, err := strconv.ParseUint(strings.TrimPrefix(cmd, "b"), 16, 16); err != nil {
			fmt.Printf("\r\nbad breakpoint address: %v\r\n", err)
		} else {
			fmt.Print("\r\nbreakpoints are not yet wired to the run loop\r\n")
		}
	case cmd == "q":
		return false
	default:
		fmt.Printf("\r\nunknown command %q\r\n", cmd)
	}
	return true
}

func step(e *engine.Engine) {
	bus := e.Bus()
	pc := e.CPUState().PC
	text, _ := disasm.Disassemble(bus, pc)
	if _, err := e.StepInstruction(); err != nil {
		fmt.Printf("\r\n%04x: %-20s -> error: %v\r\n", pc, text, err)
		return
	}
	fmt.Printf("\r\n%04x: %-20s\r\n", pc, text)
	printState(e)
}

func runUntilError(e *engine.Engine) {
	for {
		if _, err := e.StepFrame(); err != nil {
			fmt.Printf("\r\nstopped: %v\r\n", err)
			printState(e)
			return
		}
	}
}

func printDisasm(e *engine.Engine) {
	bus := e.Bus()
	pc := e.CPUState().PC
	for i := 0; i < 10; i++ {
		text, length := disasm.Disassemble(bus, pc)
		fmt.Printf("\r\n%04x: %s", pc, text)
		pc += uint16(length)
	}
	fmt.Print("\r\n")
}

func stateString(e *engine.Engine) string {
	s := e.CPUState()
	return fmt.Sprintf("PC=%04x SP=%04x A=%02x F=%02x B=%02x C=%02x D=%02x E=%02x H=%02x L=%02x IME=%v",
		s.PC, s.SP, s.A, s.F, s.B, s.C, s.D, s.E, s.H, s.L, s.IME)
}

func printState(e *engine.Engine) {
	fmt.Print("\r\n" + stateString(e) + "\r\n")
}

// lineReader reads a CRLF-ish line from stdin, working whether or not
// the terminal is in raw mode (raw mode needs manual echo and Enter
// detection since the driver no longer does it for us).
type lineReader struct {
	raw bool
	br  *bufio.Reader
}

func newLineReader(fd int, state *term.State) *lineReader {
	return &lineReader{raw: state != nil, br: bufio.NewReader(os.Stdin)}
}

func (l *lineReader) readLine() (string, bool) {
	if !l.raw {
		line, err := l.br.ReadString('\n')
		if err != nil && line == "" {
			return "", false
		}
		return line, true
	}
	var sb strings.Builder
	for {
		b, err := l.br.ReadByte()
		if err != nil {
			return "", false
		}
		if b == '\r' || b == '\n' {
			fmt.Print("\r\n")
			return sb.String(), true
		}
		if b == 0x7F || b == 0x08 { // backspace/DEL
			if sb.Len() > 0 {
				s := sb.String()
				sb.Reset()
				sb.WriteString(s[:len(s)-1])
				fmt.Print("\b \b")
			}
			continue
		}
		if b == 3 { // Ctrl-C
			return "", false
		}
		sb.WriteByte(b)
		fmt.Printf("%c", b)
	}
}
