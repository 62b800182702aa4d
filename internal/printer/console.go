package printer

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Console prints to a terminal, for running without a printer attached.
type Console struct {
	w        io.Writer
	renderer *lipgloss.Renderer

	bold      bool
	inverse   bool
	underline bool
}

// NewConsole creates a Console writing to w. Styling is dropped automatically
// when w is not a terminal.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, renderer: lipgloss.NewRenderer(w)}
}

func (c *Console) style() lipgloss.Style {
	return c.renderer.NewStyle().
		Bold(c.bold).
		Reverse(c.inverse).
		Underline(c.underline)
}

func (c *Console) Print(text string) error {
	_, err := io.WriteString(c.w, c.style().Render(text))
	return err
}

func (c *Console) Println(text string) error {
	_, err := fmt.Fprintln(c.w, c.style().Render(text))
	return err
}

func (c *Console) Feed(lines int) error {
	if lines <= 0 {
		return nil
	}
	_, err := io.WriteString(c.w, strings.Repeat("\n", lines))
	return err
}

func (c *Console) SetBold(on bool) error      { c.bold = on; return nil }
func (c *Console) SetInverse(on bool) error   { c.inverse = on; return nil }
func (c *Console) SetUnderline(on bool) error { c.underline = on; return nil }

// PrintImage renders img as block characters, one column per character.
// Each character covers two pixel rows.
func (c *Console) PrintImage(img image.Image) error {
	w, h := scaledSize(img.Bounds(), Columns)
	if w == 0 || h == 0 {
		return nil
	}
	var b strings.Builder
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			top := sample(img, x, y, w, h)
			bottom := y+1 < h && sample(img, x, y+1, w, h)
			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) Close() error { return nil }
