package provider

import (
	"context"
	"fmt"
	"image"
	"sync"
)

// State is a lifecycle position of a Driver.
type State int

const (
	StateCreated State = iota
	StatePrepared
	StateAnimating
	StateCapturing
	StateClosed
)

var stateNames = [...]string{"created", "prepared", "animating", "capturing", "closed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Driver walks a Provider through Created → Prepared → Animating →
// Capturing(k) → Closed and rejects steps taken out of order.
type Driver struct {
	mu     sync.Mutex
	p      Provider
	state  State
	frames int
}

// NewDriver wraps p in the Created state.
func NewDriver(p Provider) *Driver {
	return &Driver{p: p}
}

// State returns the current state and the number of frames captured so far.
func (d *Driver) State() (State, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.frames
}

func (d *Driver) advance(from, to State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != from {
		return fmt.Errorf("%w: %s from %s", ErrOutOfOrder, to, d.state)
	}
	d.state = to
	return nil
}

// Prepare runs the provider's page normalisation.
func (d *Driver) Prepare(ctx context.Context) ([]Outcome, error) {
	if err := d.advance(StateCreated, StatePrepared); err != nil {
		return nil, err
	}
	return d.p.Prepare(ctx), nil
}

// Animate starts playback.
func (d *Driver) Animate(ctx context.Context) (Outcome, error) {
	if err := d.advance(StatePrepared, StateAnimating); err != nil {
		return Outcome{}, err
	}
	return d.p.Animate(ctx), nil
}

// CaptureFrame takes frame k+1. The first call moves Animating to
// Capturing; later calls stay in Capturing.
func (d *Driver) CaptureFrame(ctx context.Context) (image.Image, error) {
	d.mu.Lock()
	switch d.state {
	case StateAnimating:
		d.state = StateCapturing
	case StateCapturing:
	default:
		st := d.state
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: capture from %s", ErrOutOfOrder, st)
	}
	d.frames++
	d.mu.Unlock()

	return d.p.CaptureFrame(ctx)
}

// Close moves the driver to Closed from any state. The page itself belongs
// to the caller.
func (d *Driver) Close() {
	d.mu.Lock()
	d.state = StateClosed
	d.mu.Unlock()
}
