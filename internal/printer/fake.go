package printer

import (
	"image"
	"strings"
)

// FakePrinter records output for test assertions.
type FakePrinter struct {
	// Text contains everything passed to Print and Println.
	Text strings.Builder

	// Lines contains each Println call, prefixed with "*" when bold.
	Lines []string

	// Fed is the total number of lines fed.
	Fed int

	// Images records printed image bounds.
	Images []image.Rectangle

	// Bold tracks the current bold state.
	Bold bool

	// Err, if set, is returned by every output call.
	Err error

	Closed bool
}

// NewFakePrinter creates a FakePrinter for testing.
func NewFakePrinter() *FakePrinter {
	return &FakePrinter{}
}

func (f *FakePrinter) Print(text string) error {
	if f.Err != nil {
		return f.Err
	}
	f.Text.WriteString(text)
	return nil
}

func (f *FakePrinter) Println(text string) error {
	if f.Err != nil {
		return f.Err
	}
	f.Text.WriteString(text + "\n")
	line := text
	if f.Bold {
		line = "*" + text
	}
	f.Lines = append(f.Lines, line)
	return nil
}

func (f *FakePrinter) Feed(lines int) error {
	if f.Err != nil {
		return f.Err
	}
	f.Fed += lines
	return nil
}

func (f *FakePrinter) SetBold(on bool) error {
	f.Bold = on
	return f.Err
}

func (f *FakePrinter) SetInverse(on bool) error   { return f.Err }
func (f *FakePrinter) SetUnderline(on bool) error { return f.Err }

func (f *FakePrinter) PrintImage(img image.Image) error {
	if f.Err != nil {
		return f.Err
	}
	f.Images = append(f.Images, img.Bounds())
	return nil
}

func (f *FakePrinter) Close() error {
	f.Closed = true
	return nil
}
