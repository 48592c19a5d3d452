package fhss

import (
	"fmt"

	"github.com/rigou/nRF24L01-FHSS/internal/protocol"
	"github.com/rigou/nRF24L01-FHSS/internal/settings"
	"github.com/rigou/nRF24L01-FHSS/nrf24"
)

// RXLink drives the receiving end of a paired session: one Tick() call per
// frame period.
type RXLink struct {
	cfg    Config
	radio  Radio
	clock  Clock
	store  settings.Store
	logger nrf24.Logger

	mode       Mode
	sessionKey uint16
	schedule   *schedule
	nExpected  uint16
	ownAddr    nrf24.Address

	pairing rxPairing
	oracle  *timingOracle
	sup     *rxSupervisor
}

// NewRXLink constructs an RX link and runs the BOOT transition.
func NewRXLink(cfg Config, radio Radio, clock Clock, store settings.Store, logger nrf24.Logger) (*RXLink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &nrf24NopLogger{}
	}

	rec, err := store.Load()
	if err != nil {
		logger.Warn("settings load failed, proceeding with defaults")
		rec = settings.Record{}
	}

	l := &RXLink{
		cfg:     cfg,
		radio:   radio,
		clock:   clock,
		store:   store,
		logger:  logger,
		ownAddr: deviceAddress(cfg.RXID),
		oracle:  newTimingOracle(clock),
		sup:     newRXSupervisor(clock, cfg.SyncLossWindowMicros),
	}

	if err := radio.OpenRxPipe(0, l.ownAddr[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHardwareInit, err)
	}
	if err := radio.SetChannel(cfg.MonoChan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHardwareInit, err)
	}

	if rec.HasSession() {
		l.sessionKey = rec.SessionKey
		l.schedule = newSchedule(l.sessionKey, cfg.MaxChan, cfg.MonoChan)
		l.mode = ModeMonofreq
	} else {
		l.enterPairing()
	}

	return l, nil
}

// Mode reports the link's current state.
func (l *RXLink) Mode() Mode { return l.mode }

// ErrorCount reports the current 1-second sliding window's accumulated gap
// count, the same value written into ack payload slot 0.
func (l *RXLink) ErrorCount() int { return l.sup.errorCount() }

// AvgPeriodMicros reports the timing oracle's most recently published
// average inter-frame period, or 0 if it has not yet converged.
func (l *RXLink) AvgPeriodMicros() int64 { return l.oracle.avgPeriod() }

func (l *RXLink) enterPairing() {
	l.mode = ModePairing
	l.radio.SetChannel(l.cfg.MonoChan)
	l.radio.SetPALevel(nrf24.PALevelMin)
	l.pairing.reset()
}

func (l *RXLink) enterMonofreq() {
	l.mode = ModeMonofreq
	l.radio.SetChannel(l.cfg.MonoChan)
	l.oracle.reset()
	l.sup.reset()
}

// RequestPairing forces a transition back to PAIRING, as happens when the
// pairing button is held for >= 3s.
func (l *RXLink) RequestPairing() {
	l.enterPairing()
}

// Tick runs one frame period: consumeMsg, if non-nil, is handed the decoded
// user payload of any MSG received this tick; fillAck supplies the outgoing
// ACK user payload. It reports whether a MSG was received.
func (l *RXLink) Tick(consumeMsg func([protocol.MsgValues]uint16), fillAck func(*[protocol.AckValues]uint16)) (bool, error) {
	switch l.mode {
	case ModePairing:
		return l.tickPairing()
	case ModeMonofreq:
		return l.tickMonofreq(consumeMsg, fillAck)
	case ModeMultifreq:
		return l.tickMultifreq(consumeMsg, fillAck)
	default:
		return false, fmt.Errorf("fhss: RXLink.Tick called in mode %s", l.mode)
	}
}

func (l *RXLink) tickPairing() (bool, error) {
	buf, ok := l.radio.Receive()
	if !ok {
		return false, nil
	}
	msg, err := protocol.DecodeMsg(buf)
	if err != nil {
		return false, nil
	}

	if msg.Type.Has(protocol.PairingInProgress) {
		key := msg.Payload[protocol.PairingSessionKeySlot]
		txid := msg.Payload[protocol.PairingTXIDSlot]
		if key == 0 {
			return true, nil
		}
		l.pairing.observe(key, txid)

		ack := l.pairing.buildPairingAck(l.cfg.PairingConsecutiveAcks)
		ack.Number = msg.Number
		l.radio.WriteAckPayload(0, protocol.EncodeAck(ack))
		return true, nil
	}

	if msg.Type.Has(protocol.PairingComplete) && l.pairing.latched {
		if err := l.store.Save(settings.Record{
			TXID:       l.pairing.offeredTXID,
			RXID:       l.cfg.RXID,
			MonoChan:   l.cfg.MonoChan,
			SessionKey: l.pairing.offeredKey,
		}); err != nil {
			l.logger.Warn("committing session key failed")
		}
		l.sessionKey = l.pairing.offeredKey
		l.enterMonofreq()
		return true, nil
	}

	return true, nil
}

func (l *RXLink) tickMonofreq(consumeMsg func([protocol.MsgValues]uint16), fillAck func(*[protocol.AckValues]uint16)) (bool, error) {
	buf, ok := l.radio.Receive()
	if !ok {
		if l.sup.lossOfSync() {
			l.enterMonofreq()
		}
		return false, nil
	}

	msg, err := protocol.DecodeMsg(buf)
	if err != nil {
		return false, nil
	}
	l.sup.markFrameSeen()

	if consumeMsg != nil {
		consumeMsg(msg.Payload)
	}

	ack := protocol.AckDatagram{Number: msg.Number, Type: protocol.User}
	if fillAck != nil {
		fillAck(&ack.Payload)
	}
	ack.Payload[0] = uint16(l.sup.errorCount())

	avg := l.oracle.observe(msg.Number)
	if avg > 0 {
		l.schedule = newSchedule(l.sessionKey, l.cfg.MaxChan, l.cfg.MonoChan)
		l.nExpected = msg.Number + 1
		ack.Type |= protocol.Synchronized
		l.radio.WriteAckPayload(0, protocol.EncodeAck(ack))
		l.mode = ModeMultifreq
		return true, nil
	}

	l.radio.WriteAckPayload(0, protocol.EncodeAck(ack))
	return true, nil
}

func (l *RXLink) tickMultifreq(consumeMsg func([protocol.MsgValues]uint16), fillAck func(*[protocol.AckValues]uint16)) (bool, error) {
	ch := l.schedule.channelFor(l.nExpected)
	if err := l.radio.SetChannel(ch); err != nil {
		return false, fmt.Errorf("fhss: setting channel %d: %w", ch, err)
	}

	buf, ok := l.radio.Receive()
	if !ok {
		// Acceptance window expired with nothing received: attribute one
		// missed frame and advance.
		l.sup.recordGap(1)
		l.nExpected++
		if l.sup.lossOfSync() {
			l.enterMonofreq()
		} else {
			// Listen on the next expected frame's channel before TX sends it.
			l.radio.SetChannel(l.schedule.channelFor(l.nExpected))
		}
		return false, nil
	}

	msg, err := protocol.DecodeMsg(buf)
	if err != nil {
		return false, nil
	}
	l.sup.markFrameSeen()

	gap := int(msg.Number - l.nExpected) // wraps correctly at 65535 -> 0
	switch {
	case gap == 0:
		l.nExpected = msg.Number + 1
	case gap > 0 && gap < int(l.cfg.MaxGapFrames):
		l.sup.recordGap(gap)
		l.nExpected = msg.Number + 1
	default:
		l.enterMonofreq()
		return true, nil
	}
	// Listen on the next expected frame's channel before TX sends it.
	l.radio.SetChannel(l.schedule.channelFor(l.nExpected))

	if consumeMsg != nil {
		consumeMsg(msg.Payload)
	}

	ack := protocol.AckDatagram{Number: msg.Number, Type: protocol.User | protocol.Synchronized}
	if fillAck != nil {
		fillAck(&ack.Payload)
	}
	ack.Payload[0] = uint16(l.sup.errorCount())
	l.radio.WriteAckPayload(0, protocol.EncodeAck(ack))

	return true, nil
}
