package fhss

import (
	"github.com/rigou/nRF24L01-FHSS/internal/settings"
	"github.com/rigou/nRF24L01-FHSS/nrf24"
)

// fakeRadio is an in-memory Radio used to drive TXLink/RXLink without any
// real hardware: the link engine is built to be testable against an
// in-memory fake radio. Two fakeRadios are wired to each other as peers;
// a Transmit only succeeds if the peer is currently tuned to the same
// channel, which is what lets tests exercise the hopping engine itself.
//
// ACK delivery models the real chip's documented pipelining ("loads the
// pre-queued ACK payload" / "enqueues the next ACK"): WriteAckPayload
// stages a payload for the peer's *next* Receive call, it is not delivered
// synchronously within the same Transmit.
type fakeRadio struct {
	peer    *fakeRadio
	channel byte
	paLevel nrf24.PALevel

	inbox      [][]byte
	pendingAck []byte

	// drop, if set, simulates the radio's own auto-retransmit window
	// expiring for a given outgoing payload (a dropped MSG, or the
	// pairing-in-progress PA-restricted range in scenario 6).
	drop func(payload []byte) bool
}

func newFakeRadioPair() (tx, rx *fakeRadio) {
	tx = &fakeRadio{}
	rx = &fakeRadio{}
	tx.peer = rx
	rx.peer = tx
	return tx, rx
}

func (r *fakeRadio) SetChannel(ch byte) error            { r.channel = ch; return nil }
func (r *fakeRadio) SetPALevel(level nrf24.PALevel) error { r.paLevel = level; return nil }
func (r *fakeRadio) OpenWritingPipe(addr nrf24.Address) error { return nil }
func (r *fakeRadio) OpenRxPipe(pipeID int, address []byte) error { return nil }
func (r *fakeRadio) CloseRxPipe(pipeID int) error { return nil }
func (r *fakeRadio) FlushTX()   {}
func (r *fakeRadio) FlushRX()   { r.inbox = nil }
func (r *fakeRadio) PowerUp()   {}
func (r *fakeRadio) PowerDown() {}

func (r *fakeRadio) Transmit(destAddr nrf24.Address, p []byte) error {
	return r.transmit(p)
}

func (r *fakeRadio) TransmitNoAck(destAddr nrf24.Address, p []byte) error {
	return r.transmit(p)
}

func (r *fakeRadio) transmit(p []byte) error {
	if r.drop != nil && r.drop(p) {
		return errFakeTimeout
	}
	if r.peer == nil || r.peer.channel != r.channel {
		return errFakeTimeout
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	r.peer.inbox = append(r.peer.inbox, buf)
	return nil
}

func (r *fakeRadio) Receive() ([]byte, bool) {
	if len(r.inbox) > 0 {
		buf := r.inbox[0]
		r.inbox = r.inbox[1:]
		return buf, true
	}
	if r.pendingAck != nil {
		buf := r.pendingAck
		r.pendingAck = nil
		return buf, true
	}
	return nil, false
}

func (r *fakeRadio) WriteAckPayload(pipeID int, data []byte) error {
	if r.peer != nil {
		buf := make([]byte, len(data))
		copy(buf, data)
		r.peer.pendingAck = buf
	}
	return nil
}

var _ Radio = (*fakeRadio)(nil)

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string { return "fake radio: no ACK observed" }

var errFakeTimeout error = fakeTimeoutError{}

// fakeEntropy returns a fixed, possibly pre-scripted sequence of session-key
// candidates, for tests that need a deterministic pairing handshake.
type fakeEntropy struct {
	values []uint16
	i      int
}

func (e *fakeEntropy) Uint16() uint16 {
	if e.i >= len(e.values) {
		return 0xFFFF
	}
	v := e.values[e.i]
	e.i++
	return v
}

// fakeClock is a manually-advanced Clock for deterministic timing tests.
type fakeClock struct {
	nowUs int64
}

func (c *fakeClock) NowMicro() int64 { return c.nowUs }
func (c *fakeClock) Advance(us int64) { c.nowUs += us }

// memStore is an in-memory settings.Store for tests that don't need a real
// file on disk.
type memStore struct {
	rec settings.Record
}

func (s *memStore) Load() (settings.Record, error) { return s.rec, nil }
func (s *memStore) Save(rec settings.Record) error  { s.rec = rec; return nil }

var _ settings.Store = (*memStore)(nil)
