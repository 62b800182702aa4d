//go:build linux

package printer

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestBaudFlag(t *testing.T) {
	got, err := baudFlag(DefaultBaud)
	if err != nil || got != unix.B19200 {
		t.Errorf("baudFlag(19200) = %#x, %v", got, err)
	}
	if _, err := baudFlag(12345); err == nil {
		t.Error("expected error for unsupported rate")
	}
}

func TestOpenThermal_NotATTY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttyFAKE")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenThermal(path, DefaultBaud); err == nil {
		t.Fatal("expected termios error for a regular file")
	}
	if b, _ := os.ReadFile(path); len(b) != 0 {
		t.Errorf("wrote %x to a port that failed setup", b)
	}
}
