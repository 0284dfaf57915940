package audio

import (
	"errors"
	"sync/atomic"
)

// ErrDeviceBusy is returned when the capture device is already held by
// another component.
var ErrDeviceBusy = errors.New("capture device busy")

// Gate serializes microphone ownership between the wake-word monitor
// and voice input sessions. Acquisition never blocks: the device goes
// to the first caller and later callers are rejected until Release.
type Gate struct {
	inUse atomic.Bool
}

func (g *Gate) TryAcquire() error {
	if !g.inUse.CompareAndSwap(false, true) {
		return ErrDeviceBusy
	}
	return nil
}

func (g *Gate) Release() {
	g.inUse.Store(false)
}

func (g *Gate) InUse() bool {
	return g.inUse.Load()
}
