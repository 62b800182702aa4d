// Package printer provides the receipt printer output port.
// The thermal implementation speaks ESC/POS over a serial device; the console
// implementation writes styled text to a terminal.
package printer

import (
	"fmt"
	"image"
	_ "image/png" // greeting and goodbye images are PNG
	"os"
)

// Printer is the output side of the appliance.
type Printer interface {
	// Print writes text without a trailing newline.
	Print(text string) error

	// Println writes text followed by a newline.
	Println(text string) error

	// Feed advances the paper by the given number of lines.
	Feed(lines int) error

	SetBold(on bool) error
	SetInverse(on bool) error
	SetUnderline(on bool) error

	// PrintImage prints a bitmap scaled to the paper width.
	PrintImage(img image.Image) error

	// Close releases the output device.
	Close() error
}

// Columns is the character width of a 58mm receipt at the default font.
const Columns = 32

// LoadImage decodes an image file from disk.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// Center pads text so it sits in the middle of a receipt line.
func Center(text string) string {
	r := []rune(text)
	if len(r) >= Columns {
		return text
	}
	pad := (Columns - len(r)) / 2
	return fmt.Sprintf("%*s%s", pad, "", text)
}

// dark reports whether the pixel at (x, y) should be printed.
// Transparent pixels are treated as paper.
func dark(img image.Image, x, y int) bool {
	r, g, b, a := img.At(x, y).RGBA()
	if a < 0x8000 {
		return false
	}
	// ITU-R BT.601 luma on 16-bit channels
	lum := (299*r + 587*g + 114*b) / 1000
	return lum < 0x8000
}

// scaledSize returns the image size limited to maxWidth, keeping the aspect ratio.
func scaledSize(b image.Rectangle, maxWidth int) (int, int) {
	w, h := b.Dx(), b.Dy()
	if w <= maxWidth || w == 0 {
		return w, h
	}
	return maxWidth, h * maxWidth / w
}

// sample maps a destination pixel back onto the source image (nearest neighbour).
func sample(img image.Image, dx, dy, dw, dh int) bool {
	b := img.Bounds()
	sx := b.Min.X + dx*b.Dx()/dw
	sy := b.Min.Y + dy*b.Dy()/dh
	return dark(img, sx, sy)
}
