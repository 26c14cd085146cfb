// Package termview draws a render.Scene top-down onto a terminal: world x
// runs across, world z runs down, one glyph per visible instance.
package termview

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/gdamore/tcell/v2"

	"github.com/sveltemachine/conveyor/internal/render"
)

// ErrQuit is returned by Run when the user asked to leave.
var ErrQuit = errors.New("termview: quit")

var glyphs = []rune{'.', '#', 'o', '@', '%', '&'}

var palette = []tcell.Color{
	tcell.ColorGray,
	tcell.ColorYellow,
	tcell.ColorGreen,
	tcell.ColorAqua,
	tcell.ColorFuchsia,
	tcell.ColorOrange,
}

type View struct {
	screen tcell.Screen
	scale  float32 // cells per world unit along z; x gets twice as many
}

func New(screen tcell.Screen, scale float32) *View {
	if scale <= 0 {
		scale = 1
	}
	return &View{screen: screen, scale: scale}
}

func (v *View) Screen() tcell.Screen { return v.screen }

// Cell maps a world position to a screen cell, origin at the screen centre.
func (v *View) Cell(x, z float32) (col, row int) {
	w, h := v.screen.Size()
	col = w/2 + int(math32.Round(x*v.scale*2))
	row = h/2 + int(math32.Round(z*v.scale))
	return col, row
}

// Draw repaints the whole screen. Meshes later in the scene draw over
// earlier ones; status goes on the top line.
func (v *View) Draw(scene *render.Scene, status string) {
	v.screen.Clear()
	w, h := v.screen.Size()
	for mi, m := range scene.Meshes() {
		glyph := glyphs[mi%len(glyphs)]
		style := tcell.StyleDefault.Foreground(palette[mi%len(palette)])
		for i := 0; i < m.Count(); i++ {
			if !m.InstanceVisible(i) {
				continue
			}
			p := m.InstancePosition(i)
			col, row := v.Cell(p[0], p[2])
			if col < 0 || row < 1 || col >= w || row >= h {
				continue
			}
			v.screen.SetContent(col, row, glyph, nil, style)
		}
	}
	col := 0
	for _, r := range status {
		if col >= w {
			break
		}
		v.screen.SetContent(col, 0, r, nil, tcell.StyleDefault.Bold(true))
		col++
	}
	v.screen.Show()
}

// Run reads terminal events until a quit key arrives (ErrQuit) or the
// screen is finalized (nil). Call it from its own goroutine.
func (v *View) Run() error {
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return nil
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if IsQuit(ev) {
				return ErrQuit
			}
		case *tcell.EventResize:
			v.screen.Sync()
		}
	}
}

func IsQuit(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'q' || ev.Rune() == 'Q'
	}
	return false
}
