package fhss

import "github.com/rigou/nRF24L01-FHSS/internal/protocol"

// Mode is one of the four link states: BOOT, PAIRING, MONOFREQ, MULTIFREQ.
type Mode int

const (
	ModeBoot Mode = iota
	ModePairing
	ModeMonofreq
	ModeMultifreq
)

func (m Mode) String() string {
	switch m {
	case ModeBoot:
		return "BOOT"
	case ModePairing:
		return "PAIRING"
	case ModeMonofreq:
		return "MONOFREQ"
	case ModeMultifreq:
		return "MULTIFREQ"
	default:
		return "UNKNOWN"
	}
}

// Entropy supplies the hardware random source TX draws a candidate session
// key from during PAIRING. Kept as a narrow interface rather
// than a free function so tests can stub a deterministic sequence instead
// of a real hardware RNG.
type Entropy interface {
	// Uint16 returns a random 16-bit value. It need not avoid zero; callers
	// redraw on zero themselves.
	Uint16() uint16
}

// txPairing tracks TX's half of the handshake: the candidate key it is
// currently offering and how long it has waited for RX to echo it.
type txPairing struct {
	candidateKey  uint16
	offeredAtTime int64
}

// draw picks a fresh non-zero candidate key and records the time it started
// being offered, for the pairing-timeout tie-break.
func (p *txPairing) draw(entropy Entropy, now int64) {
	key := entropy.Uint16()
	for key == 0 {
		key = entropy.Uint16()
	}
	p.candidateKey = key
	p.offeredAtTime = now
}

// timedOut reports whether the candidate key has gone unechoed for longer
// than timeoutUs.
func (p *txPairing) timedOut(now, timeoutUs int64) bool {
	return now-p.offeredAtTime >= timeoutUs
}

// rxPairing tracks RX's half of the handshake: the offered key it is
// currently latched onto and how many consecutive frames have echoed it.
type rxPairing struct {
	latched     bool
	offeredKey  uint16
	offeredTXID uint16
	matchCount  int
}

// reset clears RX's pairing latch, e.g. on re-entry to PAIRING.
func (p *rxPairing) reset() {
	p.latched = false
	p.offeredKey = 0
	p.offeredTXID = 0
	p.matchCount = 0
}

// observe processes one incoming MSG's pairing payload. Once latched onto a
// key, RX only counts echoes matching that same key — a second TX
// transmitting a different candidate key is ignored rather than restarting
// the count.
func (p *rxPairing) observe(sessionKey, txid uint16) {
	if !p.latched {
		p.latched = true
		p.offeredKey = sessionKey
		p.offeredTXID = txid
		p.matchCount = 1
		return
	}
	if sessionKey == p.offeredKey && txid == p.offeredTXID {
		p.matchCount++
		return
	}
	// A different candidate is in the air; ignore it and keep counting
	// toward the one we've already latched onto.
}

// complete reports whether the latched key has now been echoed for at least
// k consecutive frames.
func (p *rxPairing) complete(k int) bool {
	return p.latched && p.matchCount >= k
}

// buildPairingAck assembles the ACK payload RX sends while in PAIRING,
// echoing the session key it has latched onto and signalling
// PAIRING_COMPLETE once the echo run is long enough.
func (p *rxPairing) buildPairingAck(k int) protocol.AckDatagram {
	ack := protocol.AckDatagram{Type: protocol.Service | protocol.PairingInProgress}
	ack.Payload[protocol.PairingSessionKeySlot] = p.offeredKey
	if p.complete(k) {
		ack.Type |= protocol.PairingComplete
	}
	return ack
}

// buildPairingMsg assembles the MSG TX sends every tick while in PAIRING,
// carrying its candidate session key and TXID in the service slots.
func buildPairingMsg(candidateKey, txid uint16) protocol.MsgDatagram {
	msg := protocol.MsgDatagram{Type: protocol.Service | protocol.PairingInProgress}
	msg.Payload[protocol.PairingSessionKeySlot] = candidateKey
	msg.Payload[protocol.PairingTXIDSlot] = txid
	return msg
}
