package ui

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/pixelclk/dmgcore/internal/engine"
	"github.com/pixelclk/dmgcore/internal/joypad"
)

// dmgShades is the classic four-shade DMG palette (lightest to
// darkest), used to turn the PPU's 2-bit indexed framebuffer into RGBA
// for display.
var dmgShades = [4][4]byte{
	{0x9B, 0xBC, 0x0F, 0xFF},
	{0x8B, 0xAC, 0x0F, 0xFF},
	{0x30, 0x62, 0x30, 0xFF},
	{0x0F, 0x38, 0x0F, 0xFF},
}

// App is the ebiten host: it polls keyboard input into joypad button
// state, steps the Engine once per displayed frame, and renders the
// resulting framebuffer plus a small save-state overlay.
type App struct {
	cfg    Config
	e      *engine.Engine
	tex    *ebiten.Image
	rgba   []byte
	paused bool

	showMenu    bool
	menuIdx     int
	currentSlot int // 0..3

	toastMsg   string
	toastUntil time.Time
}

func NewApp(cfg Config, e *engine.Engine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	a := &App{cfg: cfg, e: e, rgba: make([]byte, 160*144*4)}
	if e != nil && e.Title() != "" {
		ebiten.SetWindowTitle(cfg.Title + " - [" + e.Title() + "]")
	}
	return a
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	if !a.showMenu {
		a.pollButtons()
	} else {
		a.releaseAllButtons()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		a.e.Reset()
	}
	if !a.showMenu && a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		if _, err := a.e.StepFrame(); err != nil {
			a.toast("step error: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.showMenu = !a.showMenu
		a.menuIdx = 0
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	for i, key := range []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4} {
		if inpututil.IsKeyJustPressed(key) {
			a.currentSlot = i
			a.toast(fmt.Sprintf("Slot set to %d", i+1))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		if err := a.saveSlot(a.currentSlot); err != nil {
			a.toast("save failed: " + err.Error())
		} else {
			a.toast(fmt.Sprintf("Saved slot %d", a.currentSlot+1))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		if err := a.loadSlot(a.currentSlot); err != nil {
			a.toast("load failed: " + err.Error())
		} else {
			a.toast(fmt.Sprintf("Loaded slot %d", a.currentSlot+1))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if err := a.saveScreenshot(); err != nil {
			a.toast("screenshot failed: " + err.Error())
		}
	}

	if a.showMenu {
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
			a.menuIdx--
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < 3 {
			a.menuIdx++
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			a.currentSlot = a.menuIdx
			a.toast(fmt.Sprintf("Slot set to %d", a.currentSlot+1))
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.showMenu = false
		}
	}

	if !a.showMenu && !a.paused {
		if _, err := a.e.StepFrame(); err != nil {
			a.paused = true
			a.toast("halted: " + err.Error())
		}
	}
	return nil
}

func (a *App) pollButtons() {
	type mapping struct {
		key ebiten.Key
		btn joypad.Button
	}
	for _, m := range []mapping{
		{ebiten.KeyRight, joypad.Right},
		{ebiten.KeyLeft, joypad.Left},
		{ebiten.KeyUp, joypad.Up},
		{ebiten.KeyDown, joypad.Down},
		{ebiten.KeyZ, joypad.A},
		{ebiten.KeyX, joypad.B},
		{ebiten.KeyEnter, joypad.Start},
		{ebiten.KeyShiftRight, joypad.Select},
	} {
		a.e.SetButton(m.btn, ebiten.IsKeyPressed(m.key))
	}
}

func (a *App) releaseAllButtons() {
	for _, b := range []joypad.Button{
		joypad.Right, joypad.Left, joypad.Up, joypad.Down,
		joypad.A, joypad.B, joypad.Start, joypad.Select,
	} {
		a.e.SetButton(b, false)
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	fb := a.e.Frame()
	for i, ci := range fb {
		shade := dmgShades[ci&0x03]
		copy(a.rgba[i*4:i*4+4], shade[:])
	}
	a.tex.WritePixels(a.rgba)
	screen.DrawImage(a.tex, nil)

	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 4, 4)
	}

	if a.showMenu {
		lines := []string{"Select slot (Enter to pick, F5 save, F9 load):"}
		for i := 0; i < 4; i++ {
			prefix := "  "
			if i == a.menuIdx {
				prefix = "> "
			}
			state := ""
			if _, err := os.Stat(a.statePath(i)); err != nil {
				state = " (empty)"
			}
			lines = append(lines, fmt.Sprintf("%sSlot %d%s", prefix, i+1, state))
		}
		for i, line := range lines {
			ebitenutil.DebugPrintAt(screen, line, 10, 10+i*14)
		}
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return 160, 144 }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

// statePath derives a save-state slot file next to the loaded ROM.
func (a *App) statePath(slot int) string {
	base := a.e.ROMPath()
	if base == "" {
		base = "unknown.gb"
	}
	dir := filepath.Dir(base)
	name := filepath.Base(base)
	return filepath.Join(dir, fmt.Sprintf("%s.slot%d.savestate", name, slot))
}

func (a *App) saveSlot(slot int) error {
	return os.WriteFile(a.statePath(slot), a.e.SaveState(), 0644)
}

func (a *App) loadSlot(slot int) error {
	data, err := os.ReadFile(a.statePath(slot))
	if err != nil {
		return err
	}
	return a.e.LoadState(data)
}

func (a *App) saveScreenshot() error {
	fb := a.e.Frame()
	img := &image.RGBA{
		Pix:    make([]byte, 160*144*4),
		Stride: 4 * 160,
		Rect:   image.Rect(0, 0, 160, 144),
	}
	for i, ci := range fb {
		shade := dmgShades[ci&0x03]
		copy(img.Pix[i*4:i*4+4], shade[:])
	}
	name := fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
