// Package gpio drives the optional pairing button and status LED found on
// physical TX/RX units, ported from the original firmware's rgButton
// polling state machine (original_source/libraries/rgButton/rgButton.cpp)
// into a single non-blocking Go type.
package gpio

import "time"

// State is the button's state as sampled by Poll (not debounced), mirroring
// the original firmware's BtnStates enum.
type State int

const (
	// Released is the button's resting (pulled-up) state.
	Released State = iota
	// Pressed reports a held button that has not yet reached HoldFor.
	Pressed
	// ReachedHoldDuration is reported exactly once per press, the instant
	// the button has been held continuously for at least HoldFor.
	ReachedHoldDuration
)

// Line is the narrow GPIO read surface Button needs, satisfied by a
// go-gpiocdev line or any test double. true means the physical pin reads
// LOW, i.e. pressed (active-low, per the original wiring).
type Line interface {
	Pressed() (bool, error)
}

// Button polls a single active-low GPIO line and reports BTN_PRESSED /
// BTN_RELEASED / BTN_REACHED_DURATION transitions like ReadBtn, without
// blocking and without debouncing: call Poll once per tick from a daemon's
// own loop.
type Button struct {
	line    Line
	holdFor time.Duration
	now     func() time.Time

	lastState     State
	pressedAt     time.Time
	holdConfirmed bool
}

// NewButton constructs a Button reading line, reporting
// ReachedHoldDuration once the press has lasted holdFor — the "held >= 3s"
// pairing-request gesture.
func NewButton(line Line, holdFor time.Duration) *Button {
	return &Button{line: line, holdFor: holdFor, now: time.Now, lastState: Released}
}

// Poll samples the line once and returns the state derived from that single
// sample; no debouncing is applied, so a bouncing contact is reported as
// it is read. Like ReadBtn it does not block: call it repeatedly from the
// owning loop, never in a tight spin.
func (b *Button) Poll() (State, error) {
	pressed, err := b.line.Pressed()
	if err != nil {
		return Released, err
	}

	now := b.now()

	if pressed {
		if b.lastState == Released {
			b.holdConfirmed = false
			b.pressedAt = now
			b.lastState = Pressed
			return Pressed, nil
		}
		b.lastState = Pressed
		if !b.holdConfirmed && now.Sub(b.pressedAt) >= b.holdFor {
			b.holdConfirmed = true
			return ReachedHoldDuration, nil
		}
		return Pressed, nil
	}

	b.lastState = Released
	return Released, nil
}
