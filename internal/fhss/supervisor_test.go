package fhss

import "testing"

func TestRXSupervisorErrorCountAccumulatesWithinWindow(t *testing.T) {
	clock := &fakeClock{}
	s := newRXSupervisor(clock, 1_000_000)

	s.recordGap(1)
	clock.Advance(100_000)
	s.recordGap(2)
	clock.Advance(100_000)
	s.recordGap(3)

	if got := s.errorCount(); got != 6 {
		t.Fatalf("errorCount() = %d, want 6 (sum of gaps within one window)", got)
	}
}

func TestRXSupervisorErrorCountResetsOnNewWindow(t *testing.T) {
	clock := &fakeClock{}
	s := newRXSupervisor(clock, 1_000_000)

	s.recordGap(5)
	clock.Advance(1_000_001)
	s.recordGap(2)

	if got := s.errorCount(); got != 2 {
		t.Fatalf("errorCount() = %d, want 2: a new window should not carry over the prior one's gaps", got)
	}
}

func TestRXSupervisorLossOfSyncRequiresPriorFrame(t *testing.T) {
	clock := &fakeClock{}
	s := newRXSupervisor(clock, 1_000_000)

	clock.Advance(2_000_000)
	if s.lossOfSync() {
		t.Fatal("lossOfSync() = true before any frame was ever seen; should be false")
	}

	s.markFrameSeen()
	clock.Advance(999_999)
	if s.lossOfSync() {
		t.Fatal("lossOfSync() = true just under the window; want false")
	}
	clock.Advance(2)
	if !s.lossOfSync() {
		t.Fatal("lossOfSync() = false once the window has elapsed with no frames; want true")
	}
}

func TestRXSupervisorResetClearsState(t *testing.T) {
	clock := &fakeClock{}
	s := newRXSupervisor(clock, 1_000_000)

	s.markFrameSeen()
	s.recordGap(3)
	clock.Advance(2_000_000)
	s.reset()

	if s.lossOfSync() {
		t.Fatal("lossOfSync() = true right after reset; want false until a frame is seen again")
	}
	if got := s.errorCount(); got != 0 {
		t.Fatalf("errorCount() = %d after reset, want 0", got)
	}
}

func TestTXSupervisorLossOfSyncAtThreshold(t *testing.T) {
	s := newTXSupervisor(100)

	for i := 0; i < 99; i++ {
		s.recordAck(false)
	}
	if s.lossOfSync() {
		t.Fatal("lossOfSync() = true one short of the threshold; want false")
	}
	s.recordAck(false)
	if !s.lossOfSync() {
		t.Fatal("lossOfSync() = false at the threshold; want true")
	}
}

func TestTXSupervisorAckResetsCounter(t *testing.T) {
	s := newTXSupervisor(5)

	for i := 0; i < 4; i++ {
		s.recordAck(false)
	}
	s.recordAck(true)
	if s.lossOfSync() {
		t.Fatal("a single successful ACK should reset the consecutive-unacked counter")
	}
	for i := 0; i < 4; i++ {
		s.recordAck(false)
	}
	if s.lossOfSync() {
		t.Fatal("lossOfSync() = true before reaching the threshold again after the reset")
	}
}
