// Package setup runs the start-up sequence: report the network address on
// paper and print the greeting image.
package setup

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/iot-printer/internal/printer"
)

// Steps reported in Error.Op.
const (
	OpNetwork  = "network"
	OpPrint    = "print"
	OpGreeting = "greeting"
)

// Error reports which setup step failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// LED is the part of the hardware setup drives.
type LED interface {
	LEDOn() error
	LEDOff() error
}

// Options configures Run.
type Options struct {
	// ProbeAddr is dialled over UDP to find the outbound interface.
	// No packets are sent.
	ProbeAddr string

	// Retries is how many extra network checks to make before giving up.
	Retries    int
	RetryDelay time.Duration

	// HelloImage is printed after the address; empty skips it.
	HelloImage string

	Dial      func(network, address string) (net.Conn, error)
	LoadImage func(path string) (image.Image, error)
}

// DefaultOptions returns options using the real network and filesystem.
func DefaultOptions() Options {
	return Options{
		ProbeAddr: "8.8.8.8:80",
		Dial:      net.Dial,
		LoadImage: printer.LoadImage,
	}
}

// Run lights the LED, prints the local IP address (or troubleshooting help
// when the network is down), prints the greeting image and turns the LED off.
// It returns the address found.
func Run(ctx context.Context, led LED, p printer.Printer, opts Options, log zerolog.Logger) (ip string, err error) {
	log = log.With().Str("component", "setup").Logger()
	if opts.Dial == nil {
		opts.Dial = net.Dial
	}
	if opts.LoadImage == nil {
		opts.LoadImage = printer.LoadImage
	}

	if err := led.LEDOn(); err != nil {
		return "", &Error{Op: OpPrint, Err: fmt.Errorf("led on: %w", err)}
	}
	defer func() {
		if offErr := led.LEDOff(); offErr != nil && err == nil {
			err = &Error{Op: OpPrint, Err: fmt.Errorf("led off: %w", offErr)}
		}
	}()

	ip, netErr := probe(ctx, opts, log)
	if netErr != nil {
		if err := unreachable(p); err != nil {
			log.Error().Err(err).Msg("failed to print network help")
		}
		return "", &Error{Op: OpNetwork, Err: netErr}
	}
	log.Info().Str("ip", ip).Msg("network available")

	if err := p.Print(printer.Center("My IP address is " + ip)); err != nil {
		return ip, &Error{Op: OpPrint, Err: err}
	}
	if err := p.Feed(3); err != nil {
		return ip, &Error{Op: OpPrint, Err: err}
	}

	if opts.HelloImage == "" {
		return ip, nil
	}
	img, err := opts.LoadImage(opts.HelloImage)
	if err != nil {
		return ip, &Error{Op: OpGreeting, Err: err}
	}
	if err := p.PrintImage(img); err != nil {
		return ip, &Error{Op: OpGreeting, Err: err}
	}
	if err := p.Feed(3); err != nil {
		return ip, &Error{Op: OpGreeting, Err: err}
	}
	return ip, nil
}

// LocalIP returns the address of the interface that routes to probeAddr.
func LocalIP(dial func(network, address string) (net.Conn, error), probeAddr string) (string, error) {
	conn, err := dial("udp", probeAddr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return "", errors.New("no local address")
	}
	return addr.IP.String(), nil
}

func probe(ctx context.Context, opts Options, log zerolog.Logger) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			log.Warn().Err(lastErr).Int("attempt", attempt).Dur("delay", opts.RetryDelay).Msg("network unreachable, retrying")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(opts.RetryDelay):
			}
		}
		ip, err := LocalIP(opts.Dial, opts.ProbeAddr)
		if err == nil {
			return ip, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func unreachable(p printer.Printer) error {
	return errors.Join(
		p.SetBold(true),
		p.Println("Network is unreachable."),
		p.SetBold(false),
		p.Print("Connect display and keyboard\nfor network troubleshooting."),
		p.Feed(3),
	)
}
