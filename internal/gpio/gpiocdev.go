package gpio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// ParseLine splits a "chip:offset" line spec, e.g. "gpiochip0:17", into the
// chip name and offset OpenButtonLine/OpenLEDLine expect. Configuration
// carries the pairing button and status LED lines this way rather than as
// separate chip/offset fields.
func ParseLine(spec string) (chip string, offset int, err error) {
	chip, offsetStr, ok := strings.Cut(spec, ":")
	if !ok {
		return "", 0, fmt.Errorf("gpio: invalid line spec %q, want \"chip:offset\"", spec)
	}
	offset, err = strconv.Atoi(offsetStr)
	if err != nil {
		return "", 0, fmt.Errorf("gpio: invalid line spec %q: %w", spec, err)
	}
	return chip, offset, nil
}

// CdevLine wraps a gpiocdev request as a Line: an active-low input,
// matching the original wiring (digitalRead(btn_gpio)==LOW means pressed).
type CdevLine struct {
	req *gpiocdev.Line
}

// OpenButtonLine requests offset on chip (e.g. "gpiochip0") as a
// pulled-up input for the pairing button.
func OpenButtonLine(chip string, offset int) (*CdevLine, error) {
	req, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("gpio: requesting button line %s:%d: %w", chip, offset, err)
	}
	return &CdevLine{req: req}, nil
}

func (l *CdevLine) Pressed() (bool, error) {
	v, err := l.req.Value()
	if err != nil {
		return false, fmt.Errorf("gpio: reading button line: %w", err)
	}
	return v == 0, nil // active-low
}

func (l *CdevLine) Close() error { return l.req.Close() }

// CdevLEDLine wraps a gpiocdev request as an LEDLine.
type CdevLEDLine struct {
	req *gpiocdev.Line
}

// OpenLEDLine requests offset on chip as an output for the status LED.
func OpenLEDLine(chip string, offset int) (*CdevLEDLine, error) {
	req, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("gpio: requesting LED line %s:%d: %w", chip, offset, err)
	}
	return &CdevLEDLine{req: req}, nil
}

func (l *CdevLEDLine) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.req.SetValue(v); err != nil {
		return fmt.Errorf("gpio: setting LED line: %w", err)
	}
	return nil
}

func (l *CdevLEDLine) Close() error { return l.req.Close() }

var (
	_ Line    = (*CdevLine)(nil)
	_ LEDLine = (*CdevLEDLine)(nil)
)
