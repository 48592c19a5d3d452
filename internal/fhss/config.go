package fhss

import (
	"fmt"

	"github.com/rigou/nRF24L01-FHSS/nrf24"
)

// Config is the static per-session link configuration.
type Config struct {
	// TXID and RXID are the 16-bit device identifiers; zero is reserved.
	TXID uint16
	RXID uint16

	// MonoChan is the pairing/bootstrap channel, in [0, MaxChan].
	MonoChan uint8
	// MaxChan is the highest allowed channel number (≤ 125, default 83).
	MaxChan uint8

	// TransDgs is the nominal frame cadence in frames per second. Must be a
	// multiple of 10; default 100.
	TransDgs int

	PALevel nrf24.PALevel

	// ARTDelayUs is the radio's auto-retransmit delay, in 250 µs steps
	// (value itself is microseconds, 250-4000).
	ARTDelayUs uint16
	// ARTAttempts is the radio's auto-retransmit attempt count, 0-15.
	ARTAttempts uint8

	// PairingConsecutiveAcks is K: the number of consecutive matching echoes
	// RX requires before declaring PAIRING_COMPLETE.
	PairingConsecutiveAcks int
	// PairingTimeoutMicros bounds how long TX waits for its candidate key to be
	// echoed before redrawing it.
	PairingTimeoutMicros int64

	// SyncLossWindowMicros is T_sync_loss.
	SyncLossWindowMicros int64
	// MaxGapFrames is G_MAX.
	MaxGapFrames uint16
}

// DefaultConfig returns the documented defaults: MAX_CHAN=83, TRANS_DGS=100,
// K=10, 5s pairing timeout, 1s sync-loss window, G_MAX=32.
func DefaultConfig() Config {
	return Config{
		MaxChan:                83,
		TransDgs:               100,
		ARTDelayUs:             3 * 250,
		ARTAttempts:            0,
		PairingConsecutiveAcks: 10,
		PairingTimeoutMicros:   5_000_000,
		SyncLossWindowMicros:   1_000_000,
		MaxGapFrames:           32,
	}
}

// Validate checks the configuration against the ART-budget starvation
// constraint and basic range invariants, returning ErrConfigInvalid wrapped
// with the offending detail.
func (c Config) Validate() error {
	if c.TransDgs <= 0 || c.TransDgs%10 != 0 {
		return fmt.Errorf("%w: TransDgs must be a positive multiple of 10, got %d", ErrConfigInvalid, c.TransDgs)
	}
	if c.MaxChan == 0 || c.MaxChan > 125 {
		return fmt.Errorf("%w: MaxChan must be in (0, 125], got %d", ErrConfigInvalid, c.MaxChan)
	}
	if c.MonoChan > c.MaxChan {
		return fmt.Errorf("%w: MonoChan %d exceeds MaxChan %d", ErrConfigInvalid, c.MonoChan, c.MaxChan)
	}
	if c.ARTAttempts > 15 {
		return fmt.Errorf("%w: ARTAttempts must be in [0,15], got %d", ErrConfigInvalid, c.ARTAttempts)
	}

	// ART_delay_us * ART_attempts < 10^6 / TRANS_DGS, otherwise transmission
	// starves the next tick.
	tickPeriodUs := int64(1_000_000) / int64(c.TransDgs)
	budget := int64(c.ARTDelayUs) * int64(c.ARTAttempts)
	if budget >= tickPeriodUs {
		return fmt.Errorf("%w: ART budget %dus >= tick period %dus at %d fps",
			ErrConfigInvalid, budget, tickPeriodUs, c.TransDgs)
	}

	return nil
}

// ScheduleLength returns L = MaxChan - 1, the channel schedule's length.
func (c Config) ScheduleLength() int {
	return int(c.MaxChan) - 1
}
