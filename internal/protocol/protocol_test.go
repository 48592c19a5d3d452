package protocol

import (
	"testing"

	"pgregory.net/rapid"
)

func TestMsgRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m := MsgDatagram{
			Number: rapid.Uint16().Draw(rt, "number"),
			Type:   Type(rapid.Uint16().Draw(rt, "type")),
		}
		for i := range m.Payload {
			m.Payload[i] = rapid.Uint16().Draw(rt, "payload")
		}

		decoded, err := DecodeMsg(EncodeMsg(m))
		if err != nil {
			rt.Fatalf("DecodeMsg: %v", err)
		}
		if decoded != m {
			rt.Fatalf("round trip mismatch: got %+v, want %+v", decoded, m)
		}
	})
}

func TestAckRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := AckDatagram{
			Number: rapid.Uint16().Draw(rt, "number"),
			Type:   Type(rapid.Uint16().Draw(rt, "type")),
		}
		for i := range a.Payload {
			a.Payload[i] = rapid.Uint16().Draw(rt, "payload")
		}

		decoded, err := DecodeAck(EncodeAck(a))
		if err != nil {
			rt.Fatalf("DecodeAck: %v", err)
		}
		if decoded != a {
			rt.Fatalf("round trip mismatch: got %+v, want %+v", decoded, a)
		}
	})
}

func TestDecodeMsgRejectsWrongSize(t *testing.T) {
	if _, err := DecodeMsg(make([]byte, MsgDatagramSize-1)); err == nil {
		t.Fatal("expected error decoding undersized MsgDatagram")
	}
	if _, err := DecodeMsg(make([]byte, MsgDatagramSize+1)); err == nil {
		t.Fatal("expected error decoding oversized MsgDatagram")
	}
}

func TestDecodeAckRejectsWrongSize(t *testing.T) {
	if _, err := DecodeAck(make([]byte, AckDatagramSize-1)); err == nil {
		t.Fatal("expected error decoding undersized AckDatagram")
	}
}

func TestWireByteOrder(t *testing.T) {
	m := MsgDatagram{Number: 0x0201, Type: Service}
	buf := EncodeMsg(m)
	if buf[0] != 0x01 || buf[1] != 0x02 {
		t.Fatalf("expected little-endian number encoding, got %X %X", buf[0], buf[1])
	}
	if buf[2] != 0x01 || buf[3] != 0x00 {
		t.Fatalf("expected little-endian type encoding, got %X %X", buf[2], buf[3])
	}
}

func TestFrameFitsMaxPayload(t *testing.T) {
	if MsgDatagramSize > 32 {
		t.Fatalf("MsgDatagramSize = %d exceeds the 32-byte radio payload limit", MsgDatagramSize)
	}
	if AckDatagramSize > 32 {
		t.Fatalf("AckDatagramSize = %d exceeds the 32-byte radio payload limit", AckDatagramSize)
	}
}

func TestKindOfPrecedence(t *testing.T) {
	cases := []struct {
		t    Type
		want Kind
	}{
		{Service | User, KindUser},
		{Service | Synchronized, KindServiceSync},
		{Service | PairingInProgress, KindPairingInProgress},
		{Service | PairingInProgress | PairingComplete, KindPairingComplete},
	}
	for _, c := range cases {
		if got := KindOf(c.t); got != c.want {
			t.Errorf("KindOf(%v) = %v, want %v", c.t, got, c.want)
		}
	}
}
