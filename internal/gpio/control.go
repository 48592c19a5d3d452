package gpio

// PairingControl couples a pairing Button with its paired status LED: one
// Poll call per tick drives the LED solid while held, flashing once the
// hold duration is reached, and off on release, and invokes onHold exactly
// once per press that reaches the hold duration. Either half may be nil —
// a nil Button makes Poll a no-op, a nil LED just skips the visual side.
type PairingControl struct {
	button  *Button
	led     *LED
	holding bool
}

// NewPairingControl builds a PairingControl from an already-constructed
// Button and LED.
func NewPairingControl(button *Button, led *LED) *PairingControl {
	return &PairingControl{button: button, led: led}
}

// Poll samples the button once and drives the LED accordingly, calling
// onHold when the hold duration is reached this tick.
func (c *PairingControl) Poll(onHold func()) error {
	if c.button == nil {
		return nil
	}

	state, err := c.button.Poll()
	if err != nil {
		return err
	}

	switch state {
	case Released:
		c.holding = false
		if c.led != nil {
			return c.led.Off()
		}
	case Pressed:
		if c.holding {
			if c.led != nil {
				return c.led.Flash()
			}
			return nil
		}
		if c.led != nil {
			return c.led.Solid()
		}
	case ReachedHoldDuration:
		c.holding = true
		onHold()
		if c.led != nil {
			return c.led.Flash()
		}
	}
	return nil
}
