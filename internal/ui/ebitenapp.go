package ui

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/emu"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/lcd"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

type App struct {
	cfg    Config
	m      *emu.Machine
	tex    *ebiten.Image
	shade  *ebiten.Image
	paused bool
	fast   bool

	// overlay/menu
	showMenu bool
	menuMode string // "main", "rom", "keys"
	menuIdx  int
	romList  []string
	romSel   int
	romOff   int

	toastMsg   string
	toastUntil time.Time
}

func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(lcd.Width*cfg.Scale, lcd.Height*cfg.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	// without a cartridge there is nothing to run until a ROM is picked
	return &App{cfg: cfg, m: m, menuMode: "main", showMenu: m.Cartridge() == nil}
}

func (a *App) Run() error { return ebiten.RunGame(a) }

// buttons maps the keyboard to the joypad.
func buttons() emu.Buttons {
	return emu.Buttons{
		Right:  ebiten.IsKeyPressed(ebiten.KeyArrowRight),
		Left:   ebiten.IsKeyPressed(ebiten.KeyArrowLeft),
		Up:     ebiten.IsKeyPressed(ebiten.KeyArrowUp),
		Down:   ebiten.IsKeyPressed(ebiten.KeyArrowDown),
		A:      ebiten.IsKeyPressed(ebiten.KeyZ),
		B:      ebiten.IsKeyPressed(ebiten.KeyX),
		Start:  ebiten.IsKeyPressed(ebiten.KeyEnter),
		Select: ebiten.IsKeyPressed(ebiten.KeyShiftRight),
	}
}

func (a *App) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) && a.menuMode == "main" {
		a.showMenu = !a.showMenu
		a.menuIdx = 0
	}
	if a.showMenu {
		// the arrow keys drive the menu, not the game
		a.m.SetButtons(emu.Buttons{})
		a.updateMenu()
		return nil
	}

	a.m.SetButtons(buttons())

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		a.m.Reset()
		a.toast("Reset")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) {
		a.toast("Palette: " + a.m.CyclePalette(-1))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) {
		a.toast("Palette: " + a.m.CyclePalette(+1))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if name, err := a.saveScreenshot(); err != nil {
			a.toast("Screenshot failed: " + err.Error())
		} else {
			a.toast("Saved " + name)
		}
	}

	// Frame-step when paused (N)
	if a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		return a.stepFrames(1)
	}
	if a.paused {
		return nil
	}
	if a.fast {
		return a.stepFrames(5)
	}
	return a.stepFrames(1)
}

// stepFrames runs n frames. A core error pauses emulation and is shown as a
// toast rather than closing the window.
func (a *App) stepFrames(n int) error {
	for i := 0; i < n; i++ {
		if err := a.m.StepFrame(); err != nil {
			log.Printf("emulation stopped: %v", err)
			a.paused = true
			a.toast(err.Error())
			return nil
		}
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(lcd.Width, lcd.Height)
	}
	if fb := a.m.Framebuffer(); fb != nil {
		a.tex.WritePixels(fb)
	}
	screen.DrawImage(a.tex, nil)

	if a.showMenu {
		if a.shade == nil {
			a.shade = ebiten.NewImage(lcd.Width, lcd.Height)
			a.shade.Fill(color.RGBA{0, 0, 0, 160})
		}
		screen.DrawImage(a.shade, nil)
		a.drawMenu(screen)
	} else if a.paused {
		ebitenutil.DebugPrintAt(screen, "PAUSED", 2, 2)
	}
	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, truncateText(a.toastMsg, maxChars(2)), 2, lcd.Height-16)
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return lcd.Width, lcd.Height }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) saveScreenshot() (string, error) {
	fb := a.m.Framebuffer()
	if fb == nil {
		return "", fmt.Errorf("no frame")
	}
	img := &image.RGBA{
		Pix:    make([]byte, len(fb)),
		Stride: 4 * lcd.Width,
		Rect:   image.Rect(0, 0, lcd.Width, lcd.Height),
	}
	copy(img.Pix, fb)
	name := fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return name, png.Encode(f, img)
}
