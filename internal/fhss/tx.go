package fhss

import (
	"fmt"

	"github.com/rigou/nRF24L01-FHSS/internal/protocol"
	"github.com/rigou/nRF24L01-FHSS/internal/settings"
	"github.com/rigou/nRF24L01-FHSS/nrf24"
)

// TXLink drives the transmitting end of a paired session: one Tick() call
// per frame period, advancing through BOOT/PAIRING/MONOFREQ/MULTIFREQ.
// Owned by a single goroutine; no internal locking.
type TXLink struct {
	cfg     Config
	radio   Radio
	clock   Clock
	entropy Entropy
	store   settings.Store
	logger  nrf24.Logger

	mode       Mode
	counter    uint16
	sessionKey uint16
	schedule   *schedule
	peerAddr   nrf24.Address

	pairing          txPairing
	sup              *txSupervisor
	announceComplete bool
}

// NewTXLink constructs a TX link and runs the BOOT transition: load
// persisted state, and enter PAIRING or MONOFREQ depending on whether a
// prior session key exists.
func NewTXLink(cfg Config, radio Radio, clock Clock, entropy Entropy, store settings.Store, logger nrf24.Logger) (*TXLink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &nrf24NopLogger{}
	}

	rec, err := store.Load()
	if err != nil {
		// Persistence errors never fatal: proceed with defaults.
		logger.Warn("settings load failed, proceeding with defaults")
		rec = settings.Record{}
	}

	l := &TXLink{
		cfg:      cfg,
		radio:    radio,
		clock:    clock,
		entropy:  entropy,
		store:    store,
		logger:   logger,
		peerAddr: deviceAddress(cfg.RXID),
		sup:      newTXSupervisor(cfg.TransDgs),
	}

	if err := radio.OpenWritingPipe(l.peerAddr); err != nil {
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
func (l *TXLink) Mode() Mode { return l.mode }

func (l *TXLink) enterPairing() {
	l.mode = ModePairing
	l.radio.SetChannel(l.cfg.MonoChan)
	l.radio.SetPALevel(nrf24.PALevelMin)
	l.pairing.draw(l.entropy, l.clock.NowMicro())
}

func (l *TXLink) enterMonofreq() {
	l.mode = ModeMonofreq
	l.radio.SetChannel(l.cfg.MonoChan)
	l.sup.reset()
}

// RequestPairing forces a transition back to PAIRING, as triggered by a
// user holding the pairing button ≥ 3s.
func (l *TXLink) RequestPairing() {
	l.enterPairing()
}

// Tick runs one frame period: fillPayload supplies the outgoing user
// payload (ignored while PAIRING, whose slots are reserved); consumeAck, if
// non-nil, is handed the ACK payload when a MSG round-trip succeeds.
func (l *TXLink) Tick(fillPayload func(*[protocol.MsgValues]uint16), consumeAck func([protocol.AckValues]uint16)) error {
	switch l.mode {
	case ModePairing:
		return l.tickPairing()
	case ModeMonofreq:
		return l.tickMonofreq(fillPayload, consumeAck)
	case ModeMultifreq:
		return l.tickMultifreq(fillPayload, consumeAck)
	default:
		return fmt.Errorf("fhss: TXLink.Tick called in mode %s", l.mode)
	}
}

func (l *TXLink) tickPairing() error {
	now := l.clock.NowMicro()
	if l.pairing.timedOut(now, l.cfg.PairingTimeoutMicros) {
		// Tie-break (b): the peer never echoed our key; redraw and keep trying.
		l.pairing.draw(l.entropy, now)
	}

	msg := buildPairingMsg(l.pairing.candidateKey, l.cfg.TXID)
	msg.Number = l.counter
	l.counter++

	if err := l.radio.Transmit(l.peerAddr, protocol.EncodeMsg(msg)); err != nil {
		return nil // transient loss, not reported upward during PAIRING
	}

	ackBuf, ok := l.radio.Receive()
	if !ok {
		return nil
	}
	ack, err := protocol.DecodeAck(ackBuf)
	if err != nil {
		return nil
	}
	if !ack.Type.Has(protocol.PairingInProgress) || ack.Payload[protocol.PairingSessionKeySlot] != l.pairing.candidateKey {
		return nil
	}
	if ack.Type.Has(protocol.PairingComplete) {
		if err := l.store.Save(settings.Record{
			TXID:       l.cfg.TXID,
			RXID:       l.cfg.RXID,
			MonoChan:   l.cfg.MonoChan,
			SessionKey: l.pairing.candidateKey,
		}); err != nil {
			l.logger.Warn("committing session key failed")
		}
		l.sessionKey = l.pairing.candidateKey
		l.announceComplete = true
		l.enterMonofreq()
	}
	return nil
}

func (l *TXLink) tickMonofreq(fillPayload func(*[protocol.MsgValues]uint16), consumeAck func([protocol.AckValues]uint16)) error {
	acked, ack := l.sendUserFrame(fillPayload)
	l.sup.recordAck(acked)
	if !acked {
		if l.sup.lossOfSync() {
			l.enterMonofreq()
		}
		return nil
	}
	l.sup.reset()
	if consumeAck != nil {
		consumeAck(ack.Payload)
	}
	if ack.Type.Has(protocol.Synchronized) {
		l.schedule = newSchedule(l.sessionKey, l.cfg.MaxChan, l.cfg.MonoChan)
		l.announceComplete = false
		l.mode = ModeMultifreq
	}
	return nil
}

func (l *TXLink) tickMultifreq(fillPayload func(*[protocol.MsgValues]uint16), consumeAck func([protocol.AckValues]uint16)) error {
	ch := l.schedule.channelFor(l.counter)
	if err := l.radio.SetChannel(ch); err != nil {
		return fmt.Errorf("fhss: setting channel %d: %w", ch, err)
	}

	acked, ack := l.sendUserFrame(fillPayload)
	l.sup.recordAck(acked)
	if !acked {
		if l.sup.lossOfSync() {
			l.enterMonofreq()
		}
		return nil
	}
	l.sup.reset()
	if consumeAck != nil {
		consumeAck(ack.Payload)
	}
	return nil
}

// sendUserFrame encodes and transmits one user MSG, returning whether an ACK
// was observed and, if so, its decoded contents.
func (l *TXLink) sendUserFrame(fillPayload func(*[protocol.MsgValues]uint16)) (bool, protocol.AckDatagram) {
	msgType := protocol.User
	if l.announceComplete {
		// Tells RX (still in PAIRING) that TX has committed the session key
		// and it is now safe for RX to commit too.
		msgType |= protocol.PairingComplete
	}
	msg := protocol.MsgDatagram{Number: l.counter, Type: msgType}
	if fillPayload != nil {
		fillPayload(&msg.Payload)
	}
	l.counter++

	if err := l.radio.Transmit(l.peerAddr, protocol.EncodeMsg(msg)); err != nil {
		return false, protocol.AckDatagram{}
	}

	ackBuf, ok := l.radio.Receive()
	if !ok {
		return false, protocol.AckDatagram{}
	}
	ack, err := protocol.DecodeAck(ackBuf)
	if err != nil {
		return false, protocol.AckDatagram{}
	}
	return true, ack
}

// nrf24NopLogger is used when the caller does not supply a Logger, matching
// nrf24's own nopLogger fallback so Link never needs a nil check per call.
type nrf24NopLogger struct{}

func (nrf24NopLogger) Debug(string) {}
func (nrf24NopLogger) Info(string)  {}
func (nrf24NopLogger) Warn(string)  {}
func (nrf24NopLogger) Error(string) {}

var _ nrf24.Logger = nrf24NopLogger{}
