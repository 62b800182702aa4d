//go:build !linux

package printer

import (
	"errors"
	"os"
)

func configureSerial(*os.File, int) error {
	return errors.New("serial port setup is only supported on linux")
}
