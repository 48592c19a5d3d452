// Package fhss implements the pairing handshake, timing oracle, hopping
// engine and link supervisor that together drive a paired TX/RX session.
// It never imports periph.io or machine directly: all hardware access goes
// through the Radio interface, so the engine is testable against an
// in-memory fake (see fakeradio_test.go).
package fhss

import "github.com/rigou/nRF24L01-FHSS/nrf24"

// Radio is the subset of nrf24.Device's surface the link engine needs.
// *nrf24.Device satisfies it; tests use an in-memory fake instead.
type Radio interface {
	SetChannel(ch byte) error
	SetPALevel(level nrf24.PALevel) error
	OpenWritingPipe(addr nrf24.Address) error
	OpenRxPipe(pipeID int, address []byte) error
	CloseRxPipe(pipeID int) error
	Transmit(destAddr nrf24.Address, p []byte) error
	TransmitNoAck(destAddr nrf24.Address, p []byte) error
	Receive() ([]byte, bool)
	WriteAckPayload(pipeID int, data []byte) error
	FlushTX()
	FlushRX()
	PowerUp()
	PowerDown()
}

var _ Radio = (*nrf24.Device)(nil)

// deviceAddress lays out a 16-bit device id as two little-endian bytes
// followed by a padding byte; address width is fixed at 3 bytes, and the
// high bytes of the 5-byte nrf24.Address are left at zero.
func deviceAddress(id uint16) nrf24.Address {
	return nrf24.Address{byte(id), byte(id >> 8), 0, 0, 0}
}
