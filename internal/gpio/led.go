package gpio

import "time"

// LEDLine is the narrow output surface LED needs.
type LEDLine interface {
	Set(on bool) error
}

// LED drives the status LED the original firmware lit solid while the
// button was held and flashed once the hold duration was reached
// (rgButton.cpp's LED_PERIOD flash loop).
type LED struct {
	line   LEDLine
	now    func() time.Time
	period time.Duration

	on         bool
	lastFlipAt time.Time
	flashing   bool
}

// NewLED wraps line with the original firmware's 25ms flash period.
func NewLED(line LEDLine) *LED {
	return &LED{line: line, now: time.Now, period: 25 * time.Millisecond}
}

// Solid turns the LED fully on, as happens while the button is held but
// has not yet reached its hold duration.
func (l *LED) Solid() error {
	l.flashing = false
	return l.set(true)
}

// Flash toggles the LED every period while called once per tick, as
// happens once the button's hold duration has been reached and the user
// has not yet released it.
func (l *LED) Flash() error {
	if !l.flashing {
		l.flashing = true
		l.lastFlipAt = l.now()
		return l.set(true)
	}
	if l.now().Sub(l.lastFlipAt) >= l.period {
		l.lastFlipAt = l.now()
		return l.set(!l.on)
	}
	return nil
}

// Off turns the LED off, as happens on button release.
func (l *LED) Off() error {
	l.flashing = false
	return l.set(false)
}

func (l *LED) set(on bool) error {
	l.on = on
	return l.line.Set(on)
}
