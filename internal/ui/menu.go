package ui

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/emu"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/lcd"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	lineH = 14
	// ebiten debug font glyph width
	glyphW = 6
)

var mainMenu = []string{"Reset", "Save battery", "Switch ROM", "Palette", "Keybindings", "Close"}

var keyRows = []string{
	"Z: A  X: B",
	"Enter: Start",
	"RightShift: Select",
	"Arrows: D-Pad",
	"P: Pause  N: Step",
	"Tab: Fast  R: Reset",
	"[ ]: Palette",
	"F12: Screenshot",
	"Esc: Menu",
}

func (a *App) updateMenu() {
	switch a.menuMode {
	case "rom":
		a.updateROMMenu()
	case "keys":
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.menuMode = "main"
		}
	default:
		a.updateMainMenu()
	}
}

func (a *App) updateMainMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < len(mainMenu)-1 {
		a.menuIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.showMenu = false
		return
	}
	if a.menuIdx == 3 {
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
			a.toast("Palette: " + a.m.CyclePalette(-1))
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
			a.toast("Palette: " + a.m.CyclePalette(+1))
		}
	}
	if !inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		return
	}
	switch a.menuIdx {
	case 0:
		a.m.Reset()
		a.showMenu = false
		a.toast("Reset")
	case 1:
		if path, err := a.writeBattery(); err != nil {
			a.toast("Save failed: " + err.Error())
		} else if path == "" {
			a.toast("No battery RAM")
		} else {
			a.toast("Saved " + filepath.Base(path))
		}
	case 2:
		a.romList = findROMs(a.cfg.ROMsDir)
		a.romSel = 0
		a.romOff = 0
		a.menuMode = "rom"
	case 3:
		a.toast("Palette: " + a.m.CyclePalette(+1))
	case 4:
		a.menuMode = "keys"
	case 5:
		a.showMenu = false
	}
}

func (a *App) updateROMMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = "main"
		return
	}
	n := len(a.romList)
	if n == 0 {
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			a.menuMode = "main"
		}
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.romSel > 0 {
		a.romSel--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.romSel < n-1 {
		a.romSel++
	}
	a.romOff = scrollWindow(a.romSel, a.romOff, romRows())
	if !inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		return
	}

	if a.cfg.SaveBattery {
		if _, err := a.writeBattery(); err != nil {
			log.Printf("save battery: %v", err)
		}
	}
	path := a.romList[a.romSel]
	if err := a.m.LoadROMFromFile(path); err != nil {
		a.toast("ROM load failed: " + err.Error())
		a.menuMode = "main"
		return
	}
	if data, err := os.ReadFile(emu.BatteryPath(path)); err == nil {
		if err := a.m.LoadBattery(data); err != nil {
			log.Printf("%v", err)
		}
	}
	title := a.cfg.Title
	if c := a.m.Cartridge(); c != nil && c.Header.Title != "" {
		title = a.cfg.Title + " - [" + c.Header.Title + "]"
	}
	ebiten.SetWindowTitle(title)
	a.toast("Loaded ROM: " + filepath.Base(path))
	a.paused = false
	a.showMenu = false
	a.menuMode = "main"
}

// writeBattery saves cartridge RAM next to the current ROM. It returns an
// empty path when there is nothing to save.
func (a *App) writeBattery() (string, error) {
	if a.m.ROMPath() == "" {
		return "", nil
	}
	data, ok := a.m.SaveBattery()
	if !ok {
		return "", nil
	}
	path := emu.BatteryPath(a.m.ROMPath())
	return path, os.WriteFile(path, data, 0644)
}

func (a *App) drawMenu(screen *ebiten.Image) {
	switch a.menuMode {
	case "rom":
		a.drawROMMenu(screen)
	case "keys":
		ebitenutil.DebugPrintAt(screen, "Keys (Esc: back)", 4, 4)
		for i, row := range keyRows {
			ebitenutil.DebugPrintAt(screen, row, 4, 4+(i+1)*lineH)
		}
	default:
		for i, s := range mainMenu {
			if i == 3 {
				s = fmt.Sprintf("Palette: %s", a.m.PaletteName())
			}
			prefix := "  "
			if i == a.menuIdx {
				prefix = "> "
			}
			ebitenutil.DebugPrintAt(screen, prefix+s, 4, 4+i*lineH)
		}
	}
}

func (a *App) drawROMMenu(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, truncateText("Dir: "+a.cfg.ROMsDir, maxChars(4)), 4, 4)
	if len(a.romList) == 0 {
		ebitenutil.DebugPrintAt(screen, "No ROMs found", 4, 4+lineH)
		return
	}
	rows := romRows()
	end := a.romOff + rows
	if end > len(a.romList) {
		end = len(a.romList)
	}
	for i, p := range a.romList[a.romOff:end] {
		prefix := "  "
		if a.romOff+i == a.romSel {
			prefix = "> "
		}
		name := truncateText(filepath.Base(p), maxChars(4)-2)
		ebitenutil.DebugPrintAt(screen, prefix+name, 4, 4+(i+1)*lineH)
	}
}

// romRows is how many ROM names fit under the directory line.
func romRows() int {
	rows := (lcd.Height - 4 - lineH) / lineH
	if rows < 1 {
		rows = 1
	}
	return rows
}

// scrollWindow keeps sel inside [off, off+rows).
func scrollWindow(sel, off, rows int) int {
	if sel < off {
		off = sel
	}
	if sel >= off+rows {
		off = sel - rows + 1
	}
	if off < 0 {
		off = 0
	}
	return off
}

func maxChars(x int) int { return (lcd.Width - x) / glyphW }

func truncateText(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// findROMs lists .gb files under dir, sorted.
func findROMs(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".gb") {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out
}
