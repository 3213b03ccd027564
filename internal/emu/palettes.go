package emu

import (
	"strings"

	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/cart"
	"github.com/FabianRolfMatthiasNoll/dmgcore/internal/lcd"
)

// paletteNames index paletteSets.
var paletteNames = []string{"green", "sepia", "blue", "red", "pastel", "grey"}

var paletteSets = []lcd.Palette{
	{{0x9B, 0xBC, 0x0F}, {0x8B, 0xAC, 0x0F}, {0x30, 0x62, 0x30}, {0x0F, 0x38, 0x0F}},
	{{0xF8, 0xE8, 0xC8}, {0xD0, 0xA8, 0x70}, {0x88, 0x60, 0x38}, {0x30, 0x20, 0x10}},
	{{0xE0, 0xF0, 0xFF}, {0x88, 0xB0, 0xE8}, {0x38, 0x60, 0xA8}, {0x08, 0x18, 0x40}},
	{{0xFF, 0xE8, 0xE0}, {0xF0, 0x90, 0x80}, {0xA8, 0x38, 0x30}, {0x40, 0x08, 0x08}},
	{{0xFF, 0xF0, 0xF8}, {0xC8, 0xD8, 0xF0}, {0xA0, 0x88, 0xC0}, {0x48, 0x38, 0x60}},
	lcd.GreyPalette,
}

const greyPalette = 5

// titleExact maps exact, normalized titles to a palette ID.
var titleExact = map[string]int{
	"TETRIS":              2,
	"TETRIS DX":           2,
	"SUPER MARIO LAND":    3,
	"SUPER MARIO LAND 2":  3,
	"DR. MARIO":           4,
	"DONKEY KONG":         1,
	"THE LEGEND OF ZELDA": 0,
	"ZELDA":               0,
	"METROID II":          3,
	"KIRBY'S DREAM LAND":  4,
	"MEGA MAN":            2,
	"MEGAMAN":             2,
	"WARIO LAND":          1,
	"POKEMON YELLOW":      4,
	"POKEMON RED":         4,
	"POKEMON BLUE":        4,
	"POCKET MONSTERS":     4,
}

type containsRule struct {
	substr string
	id     int
}

// titleContains applies broader substring heuristics for families.
var titleContains = []containsRule{
	{"TETRIS", 2},
	{"MARIO", 3},
	{"ZELDA", 0},
	{"KIRBY", 4},
	{"DONKEY KONG", 1},
	{"METROID", 3},
	{"MEGA MAN", 2},
	{"MEGAMAN", 2},
	{"WARIO", 1},
	{"POKEMON", 4},
	{"POCKET MONSTERS", 4},
}

// PaletteNames lists the selectable display palettes.
func PaletteNames() []string { return append([]string(nil), paletteNames...) }

// paletteByName returns the palette ID for name. Unknown names give grey.
func paletteByName(name string) int {
	for i, n := range paletteNames {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return greyPalette
}

// autoPaletteFromHeader picks a palette from the title table, then falls back
// to a stable choice from the header checksum for Nintendo titles.
func autoPaletteFromHeader(h *cart.Header) int {
	if h == nil {
		return greyPalette
	}
	t := strings.ToUpper(strings.TrimSpace(h.Title))
	if id, ok := titleExact[t]; ok {
		return id
	}
	for _, r := range titleContains {
		if strings.Contains(t, r.substr) {
			return r.id
		}
	}
	nintendo := h.OldLicensee == 0x01
	if h.OldLicensee == 0x33 {
		nintendo = h.NewLicensee == "01"
	}
	if nintendo {
		return int(h.HeaderChecksum) % len(paletteSets)
	}
	return greyPalette
}
