package fhss

import "testing"

func TestScheduleChannelForWrapsModuloLength(t *testing.T) {
	s := newSchedule(0xBEEF, 83, 64)
	l := s.Len()
	if l != 82 {
		t.Fatalf("Len() = %d, want 82", l)
	}
	for n := uint16(0); n < uint16(l)*3; n++ {
		got := s.channelFor(n)
		want := s.channels[int(n)%l]
		if got != want {
			t.Fatalf("channelFor(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestScheduleChannelForIsPeriodic(t *testing.T) {
	s := newSchedule(0x1234, 83, 10)
	l := uint16(s.Len())
	for n := uint16(0); n < l; n++ {
		if s.channelFor(n) != s.channelFor(n+l) {
			t.Fatalf("channelFor(%d) != channelFor(%d): schedule is not periodic over L", n, n+l)
		}
	}
}

func TestScheduleExcludesMonoChan(t *testing.T) {
	s := newSchedule(0xCAFE, 83, 64)
	for _, c := range s.channels {
		if c == 64 {
			t.Fatalf("schedule contains reserved MonoChan 64")
		}
	}
}
