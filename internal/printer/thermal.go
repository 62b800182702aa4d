package printer

import (
	"fmt"
	"image"
	"io"
	"os"
	"strings"
	"time"
)

// ESC/POS control bytes.
const (
	esc = 0x1B
	gs  = 0x1D
)

// DotsPerLine is the printable width of the mini thermal printer.
const DotsPerLine = 384

// DefaultBaud is the factory port speed of the mini thermal printer.
const DefaultBaud = 19200

// rasterChunkRows is how many image rows go out per paced write.
const rasterChunkRows = 24

// Thermal writes ESC/POS commands to a receipt printer. Writes are paced to
// the port speed so the printer's small input buffer never overruns.
type Thermal struct {
	w        io.WriteCloser
	byteTime time.Duration
	sleep    func(time.Duration)
}

// OpenThermal opens a serial device and sets it to raw 8N1 at baud.
func OpenThermal(device string, baud int) (*Thermal, error) {
	f, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open printer device: %w", err)
	}
	if err := configureSerial(f, baud); err != nil {
		f.Close()
		return nil, fmt.Errorf("configure %s: %w", device, err)
	}
	t, err := NewThermal(f, baud)
	if err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// NewThermal wraps w and resets the printer. A baud of 0 disables pacing,
// for writers that are not serial ports.
func NewThermal(w io.WriteCloser, baud int) (*Thermal, error) {
	t := &Thermal{w: w, byteTime: ByteTime(baud), sleep: time.Sleep}
	if err := t.write(esc, '@'); err != nil {
		return nil, fmt.Errorf("reset printer: %w", err)
	}
	return t, nil
}

// ByteTime is how long one byte takes on the wire at baud: a start bit,
// eight data bits, a stop bit and one bit of slack.
func ByteTime(baud int) time.Duration {
	if baud <= 0 {
		return 0
	}
	return 11 * time.Second / time.Duration(baud)
}

// send writes b and waits until the port has had time to shift it out.
func (t *Thermal) send(b []byte) error {
	if _, err := t.w.Write(b); err != nil {
		return err
	}
	if t.byteTime > 0 {
		t.sleep(time.Duration(len(b)) * t.byteTime)
	}
	return nil
}

func (t *Thermal) write(b ...byte) error {
	return t.send(b)
}

// Print writes text. Characters outside printable ASCII become '?'.
func (t *Thermal) Print(text string) error {
	return t.send([]byte(asciiOnly(text)))
}

// Println writes text and a line feed.
func (t *Thermal) Println(text string) error {
	return t.Print(text + "\n")
}

// Feed advances the paper.
func (t *Thermal) Feed(lines int) error {
	if lines <= 0 {
		return nil
	}
	if lines > 255 {
		lines = 255
	}
	return t.write(esc, 'd', byte(lines))
}

func (t *Thermal) SetBold(on bool) error      { return t.write(esc, 'E', flag(on)) }
func (t *Thermal) SetInverse(on bool) error   { return t.write(gs, 'B', flag(on)) }
func (t *Thermal) SetUnderline(on bool) error { return t.write(esc, '-', flag(on)) }

// PrintImage sends img as one raster bit image (GS v 0), rasterChunkRows rows
// per write.
func (t *Thermal) PrintImage(img image.Image) error {
	data, wBytes, h := Raster(img, DotsPerLine)
	if h == 0 {
		return nil
	}
	header := []byte{
		gs, 'v', '0', 0,
		byte(wBytes), byte(wBytes >> 8),
		byte(h), byte(h >> 8),
	}
	if err := t.send(header); err != nil {
		return fmt.Errorf("write raster header: %w", err)
	}
	chunk := rasterChunkRows * wBytes
	for start := 0; start < len(data); start += chunk {
		end := min(start+chunk, len(data))
		if err := t.send(data[start:end]); err != nil {
			return fmt.Errorf("write raster rows %d-%d: %w", start/wBytes, end/wBytes, err)
		}
	}
	return nil
}

// Close closes the underlying device.
func (t *Thermal) Close() error {
	return t.w.Close()
}

// Raster packs img into rows of bits, MSB first, 1 = black.
// It returns the data, the row width in bytes, and the row count.
func Raster(img image.Image, maxWidth int) ([]byte, int, int) {
	w, h := scaledSize(img.Bounds(), maxWidth)
	if w == 0 || h == 0 {
		return nil, 0, 0
	}
	wBytes := (w + 7) / 8
	data := make([]byte, wBytes*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if sample(img, x, y, w, h) {
				data[y*wBytes+x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return data, wBytes, h
}

func flag(on bool) byte {
	if on {
		return 1
	}
	return 0
}

func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == '–' || r == '—':
			b.WriteByte('-')
		case r < 0x20 || r > 0x7E:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
