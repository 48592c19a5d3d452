package nrf24

import (
	"bytes"
	"testing"
)

// --- Mocks ---

type mockPin struct {
	mode   string
	level  Level
	pullUp bool
}

func (m *mockPin) Out(l Level) error {
	m.mode = "output"
	m.level = l
	return nil
}

func (m *mockPin) In(pull Pull) error {
	m.mode = "input"
	if pull == PullUp {
		m.pullUp = true
	}
	return nil
}

func (m *mockPin) Read() Level { return m.level }

func (m *mockPin) Watch(edge Edge, handler func()) error { return nil }
func (m *mockPin) Unwatch() error                        { return nil }

type mockSPIConn struct {
	tx      []byte
	rxQueue [][]byte // Queue of responses to return for subsequent Tx calls
}

func (m *mockSPIConn) Tx(w, r []byte) error {
	m.tx = append(m.tx, w...)

	if len(m.rxQueue) > 0 {
		// Pop the next response
		nextRx := m.rxQueue[0]
		m.rxQueue = m.rxQueue[1:]

		// Copy min(len(r), len(nextRx))
		n := len(r)
		if len(nextRx) < n {
			n = len(nextRx)
		}
		copy(r, nextRx[:n])
	} else {
		for i := range r {
			r[i] = 0
		}
	}
	return nil
}

func (m *mockSPIConn) queueRx(data []byte) {
	m.rxQueue = append(m.rxQueue, data)
}

// newTestDevice wires a HardwareConfig against the given mocks, silencing
// logging through the package-level nop logger rather than per-config.
func newTestDevice(t *testing.T, radio RadioConfig, ce, irq Pin, spi SPI) *Device {
	t.Helper()
	SetLogger(&nopLogger{})

	hw := HardwareConfig{RadioConfig: radio, CE: ce, IRQ: irq}
	dev, err := NewWithHardware(hw, spi)
	if err != nil {
		t.Fatalf("NewWithHardware failed: %v", err)
	}
	return dev
}

// --- Tests ---

func TestInitialization(t *testing.T) {
	mockSPI := &mockSPIConn{}
	mockCE := &mockPin{}
	mockIRQ := &mockPin{}
	// NewWithHardware reads RF_CH back after its 16 setup transfers to
	// verify the chip answers; make that readback return the channel.
	for i := 0; i < 16; i++ {
		mockSPI.queueRx([]byte{0})
	}
	mockSPI.queueRx([]byte{0, 76})

	dev := newTestDevice(t, RadioConfig{
		ChannelNumber: 76,
		RxAddr:        Address{0xE7, 0xE7, 0xE7, 0xE7, 0xE7},
	}, mockCE, mockIRQ, mockSPI)

	if mockCE.mode != "output" {
		t.Errorf("Expected CE pin to be output, got %s", mockCE.mode)
	}

	// Writing Channel 76 to register _RF_CH (0x05). Write command is 0x20 | reg.
	expectedOp := []byte{0x20 | _RF_CH, 76}
	if !bytes.Contains(mockSPI.tx, expectedOp) {
		t.Errorf("Expected SPI write to RF_CH (0x%X), but not found in TX buffer: %X", expectedOp, mockSPI.tx)
	}

	// _CONFIG (0x00) written with _PWR_UP|_PRIM_RX and default CRCLength16 (_EN_CRC|_CRCO) = 0x0F.
	expectedPowerUp := []byte{0x20 | _CONFIG, 0x0F}
	if !bytes.Contains(mockSPI.tx, expectedPowerUp) {
		t.Errorf("Expected SPI write to CONFIG for PowerUp (0x%X), but not found: %X", expectedPowerUp, mockSPI.tx)
	}

	if mockCE.level != High {
		t.Errorf("Expected CE to be High (Listening) after init, got %v", mockCE.level)
	}

	dev.Close()
}

func TestTransmit(t *testing.T) {
	mockSPI := &mockSPIConn{}
	mockCE := &mockPin{}
	dev := newTestDevice(t, RadioConfig{}, mockCE, nil, mockSPI)

	mockSPI.tx = nil

	// Simulation sequence for Transmit:
	// 1. stopListening() -> read(_CONFIG), write(_CONFIG)
	// 2. setTargetAddress() -> write(_TX_ADDR), write(_RX_ADDR_P0)
	// 3. write() -> stopListening() again -> read(_CONFIG), write(_CONFIG)
	// 4. write() -> W_TX_PAYLOAD
	// 5. write() loop -> read(_STATUS) -> MUST RETURN TX_DS (0x20)
	mockSPI.queueRx([]byte{0, 0})
	mockSPI.queueRx([]byte{0})
	mockSPI.queueRx([]byte{0})
	mockSPI.queueRx([]byte{0})
	mockSPI.queueRx([]byte{0, 0})
	mockSPI.queueRx([]byte{0})
	mockSPI.queueRx([]byte{0})
	mockSPI.queueRx([]byte{0, 0x20})

	payload := []byte("hello")
	addr := Address{0x01, 0x02, 0x03, 0x04, 0x05}

	if err := dev.Transmit(addr, payload); err != nil {
		t.Fatalf("Transmit failed: %v", err)
	}

	if !bytes.Contains(mockSPI.tx, []byte{0xA0, 'h', 'e', 'l', 'l', 'o'}) {
		t.Errorf("Expected W_TX_PAYLOAD with data, got TX trace: %X", mockSPI.tx)
	}
}

func TestTransmitFailure(t *testing.T) {
	mockSPI := &mockSPIConn{}
	mockCE := &mockPin{}
	dev := newTestDevice(t, RadioConfig{}, mockCE, nil, mockSPI)

	mockSPI.tx = nil
	mockSPI.rxQueue = nil
	for i := 0; i < 7; i++ {
		mockSPI.queueRx([]byte{0})
	}
	mockSPI.queueRx([]byte{0x00, 0x10}) // _MAX_RT

	err := dev.Transmit(Address{1, 2, 3, 4, 5}, []byte("fail"))
	if err == nil {
		t.Fatal("Expected error on MaxRetries, got nil")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("max retransmissions reached")) {
		t.Errorf("Expected MaxRetries error message, got: %v", err)
	}

	mockSPI.tx = nil
	mockSPI.rxQueue = nil
	for i := 0; i < 7; i++ {
		mockSPI.queueRx([]byte{0})
	}
	err = dev.Transmit(Address{1, 2, 3, 4, 5}, []byte("timeout"))
	if err == nil {
		t.Fatal("Expected error on Timeout, got nil")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("timeout waiting for device")) {
		t.Errorf("Expected Timeout error message, got: %v", err)
	}
}

func TestReceive(t *testing.T) {
	mockSPI := &mockSPIConn{}
	mockCE := &mockPin{}
	dev := newTestDevice(t, RadioConfig{EnableDynamicPayload: true}, mockCE, nil, mockSPI)
	mockSPI.tx = nil

	mockSPI.queueRx([]byte{0x00, 0x40})
	mockSPI.queueRx([]byte{0x40, 0x05})
	mockSPI.queueRx([]byte{0x40, 'w', 'o', 'r', 'l', 'd'})
	mockSPI.queueRx([]byte{0x00, 0x00})

	data, found := dev.Receive()
	if !found {
		t.Fatal("Expected Receive to return true")
	}
	if string(data) != "world" {
		t.Errorf("Expected payload 'world', got '%s'", string(data))
	}
}

func TestConfiguration(t *testing.T) {
	mockSPI := &mockSPIConn{}
	dev := newTestDevice(t, RadioConfig{}, &mockPin{}, nil, mockSPI)

	mockSPI.tx = nil
	dev.SetChannel(88)
	if !bytes.Contains(mockSPI.tx, []byte{0x25, 88}) {
		t.Errorf("SetChannel(88) didn't write to SPI correctly: %X", mockSPI.tx)
	}

	mockSPI.tx = nil
	dev.SetDataRate(DataRate2mbps)
	if !bytes.Contains(mockSPI.tx, []byte{0x26, 0x0E}) {
		t.Errorf("SetDataRate didn't write to SPI correctly: %X", mockSPI.tx)
	}
}

func TestOpenWritingPipe(t *testing.T) {
	mockSPI := &mockSPIConn{}
	dev := newTestDevice(t, RadioConfig{}, &mockPin{}, nil, mockSPI)
	mockSPI.tx = nil

	addr := Address{0xA1, 0xA2, 0xA3, 0xA4, 0xA5}
	if err := dev.OpenWritingPipe(addr); err != nil {
		t.Fatalf("OpenWritingPipe failed: %v", err)
	}

	// _TX_ADDR (0x10) and _RX_ADDR_P0 (0x0A) must both carry the peer address
	// so the hardware Auto-Ack reply lands on pipe 0.
	if !bytes.Contains(mockSPI.tx, append([]byte{0x20 | _TX_ADDR_REG}, addr[:]...)) {
		t.Errorf("OpenWritingPipe didn't write TX_ADDR correctly: %X", mockSPI.tx)
	}
	if !bytes.Contains(mockSPI.tx, append([]byte{0x20 | _RX_ADDR_P0}, addr[:]...)) {
		t.Errorf("OpenWritingPipe didn't mirror address onto RX_ADDR_P0: %X", mockSPI.tx)
	}
}

func TestOpenRxPipe(t *testing.T) {
	mockSPI := &mockSPIConn{}
	dev := newTestDevice(t, RadioConfig{EnableAutoAck: true}, &mockPin{}, nil, mockSPI)

	mockSPI.tx = nil
	mockSPI.rxQueue = nil
	mockSPI.queueRx([]byte{0, 0})
	mockSPI.queueRx([]byte{0, 0})
	mockSPI.queueRx([]byte{0, 0})

	addr := []byte{0xA1, 0xA2, 0xA3, 0xA4, 0xA5}
	dev.OpenRxPipe(1, addr)

	if !bytes.Contains(mockSPI.tx, append([]byte{0x2B}, addr...)) {
		t.Errorf("OpenRxPipe(1) didn't write full address correctly: %X", mockSPI.tx)
	}

	mockSPI.tx = nil
	mockSPI.rxQueue = nil
	mockSPI.queueRx([]byte{0, 0})
	mockSPI.queueRx([]byte{0, 0})
	mockSPI.queueRx([]byte{0, 0})

	dev.OpenRxPipe(2, []byte{0xCC})

	if !bytes.Contains(mockSPI.tx, []byte{0x2C, 0xCC}) {
		t.Errorf("OpenRxPipe(2) didn't write LSB correctly: %X", mockSPI.tx)
	}
	if !bytes.Contains(mockSPI.tx, []byte{0x22, 0x04}) {
		t.Errorf("OpenRxPipe(2) didn't enable pipe in EN_RXADDR: %X", mockSPI.tx)
	}
}

func TestReceiveFixed(t *testing.T) {
	mockSPI := &mockSPIConn{}
	dev := newTestDevice(t, RadioConfig{EnableDynamicPayload: false, PayloadSize: 5}, &mockPin{}, nil, mockSPI)
	mockSPI.tx = nil

	mockSPI.queueRx([]byte{0x00, 0x40})
	mockSPI.queueRx([]byte{0x40, 'h', 'e', 'l', 'l', 'o'})
	mockSPI.queueRx([]byte{0x00, 0x00})

	data, found := dev.Receive()
	if !found {
		t.Fatal("Expected Receive to return true")
	}
	if string(data) != "hello" {
		t.Errorf("Expected payload 'hello', got '%s'", string(data))
	}
}

func TestCloseRxPipe(t *testing.T) {
	mockSPI := &mockSPIConn{}
	dev := newTestDevice(t, RadioConfig{}, &mockPin{}, nil, mockSPI)
	mockSPI.tx = nil
	mockSPI.rxQueue = nil

	mockSPI.queueRx([]byte{0, 0xFF})
	mockSPI.queueRx([]byte{0})
	mockSPI.queueRx([]byte{0, 0xFF})
	mockSPI.queueRx([]byte{0})

	dev.CloseRxPipe(2)

	if !bytes.Contains(mockSPI.tx, []byte{0x22, 0xFB}) {
		t.Errorf("CloseRxPipe(2) didn't clear EN_RXADDR correctly: %X", mockSPI.tx)
	}
	if !bytes.Contains(mockSPI.tx, []byte{0x21, 0xFB}) {
		t.Errorf("CloseRxPipe(2) didn't clear EN_AA correctly: %X", mockSPI.tx)
	}
}

func TestDiagnostics(t *testing.T) {
	mockSPI := &mockSPIConn{}
	dev := newTestDevice(t, RadioConfig{}, &mockPin{}, nil, mockSPI)

	mockSPI.tx = nil
	dev.FlushTX()
	if !bytes.Contains(mockSPI.tx, []byte{0xE1}) {
		t.Errorf("FlushTX sent wrong command: %X", mockSPI.tx)
	}

	mockSPI.tx = nil
	dev.FlushRX()
	if !bytes.Contains(mockSPI.tx, []byte{0xE2}) {
		t.Errorf("FlushRX sent wrong command: %X", mockSPI.tx)
	}

	mockSPI.tx = nil
	mockSPI.rxQueue = nil
	mockSPI.queueRx([]byte{0x00, 0x0E})
	if status := dev.GetStatus(); status != 0x0E {
		t.Errorf("GetStatus expected 0x0E, got 0x%X", status)
	}

	mockSPI.tx = nil
	mockSPI.rxQueue = nil
	mockSPI.queueRx([]byte{0, 0xF3})
	lost, retries := dev.GetRetransmissionCounters()
	if lost != 15 || retries != 3 {
		t.Errorf("GetRetransmissionCounters expected (15, 3), got (%d, %d)", lost, retries)
	}

	mockSPI.tx = nil
	mockSPI.rxQueue = nil
	mockSPI.queueRx([]byte{0, 0x01})
	if !dev.IsCarrierDetected() {
		t.Error("IsCarrierDetected expected true")
	}

	mockSPI.tx = nil
	mockSPI.rxQueue = nil
	for i := 0; i < 7; i++ {
		mockSPI.queueRx([]byte{0})
	}
	mockSPI.queueRx([]byte{0, 0x20})

	dev.TransmitNoAck(Address{1}, []byte("hi"))

	if !bytes.Contains(mockSPI.tx, []byte{0xB0, 'h', 'i'}) {
		t.Errorf("TransmitNoAck didn't send 0xB0 command. TX: %X", mockSPI.tx)
	}
}
