//go:build linux

package systemd

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeBus struct {
	name, mode string
	ch         chan<- string
	calls      int
	err        error
	closed     bool
}

func (b *fakeBus) StartUnitContext(_ context.Context, name, mode string, ch chan<- string) (int, error) {
	b.calls++
	b.name, b.mode, b.ch = name, mode, ch
	return 7, b.err
}

func (b *fakeBus) Close() { b.closed = true }

func powerWith(bus *fakeBus) Power {
	return Power{connect: func(context.Context) (unitStarter, error) { return bus, nil }}
}

func TestPowerOff_QueuesJobWithoutWaiting(t *testing.T) {
	bus := &fakeBus{}

	// the job never reports back; PowerOff must still return
	if err := powerWith(bus).PowerOff(context.Background()); err != nil {
		t.Fatalf("PowerOff: %v", err)
	}
	if bus.calls != 1 || bus.name != "poweroff.target" || bus.mode != "replace-irreversibly" {
		t.Errorf("started %q mode %q (%d calls)", bus.name, bus.mode, bus.calls)
	}
	if bus.ch != nil {
		t.Error("PowerOff should not subscribe to the job result")
	}
	if !bus.closed {
		t.Error("connection not closed")
	}
}

func TestPowerOff_StartError(t *testing.T) {
	bus := &fakeBus{err: errors.New("access denied")}
	err := powerWith(bus).PowerOff(context.Background())
	if err == nil || !strings.Contains(err.Error(), "poweroff.target") {
		t.Fatalf("err = %v", err)
	}
	if !bus.closed {
		t.Error("connection not closed after error")
	}
}

func TestPowerOff_ConnectError(t *testing.T) {
	boom := errors.New("no system bus")
	p := Power{connect: func(context.Context) (unitStarter, error) { return nil, boom }}
	if err := p.PowerOff(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
