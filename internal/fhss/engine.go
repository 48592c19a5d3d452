package fhss

import "github.com/rigou/nRF24L01-FHSS/internal/permute"

// schedule is the committed channel-hopping order S: a permutation of
// [0, MaxChan] with MonoChan and the reserved excluded value removed,
// derived once per session key.
type schedule struct {
	channels []uint8
}

// newSchedule derives S from the session key exactly as AssignChannels does
// in the original firmware: permute(key, MaxChan, MonoChan, MonoChan, ...).
// The pairwise-exclusion contract excludes the same value twice when there
// is only one reserved channel; this keeps that behavior verbatim rather
// than asserting a second exclusion that was never given a distinct value
// by any source variant.
func newSchedule(sessionKey uint16, maxChan, monoChan uint8) *schedule {
	return &schedule{channels: permute.Permute(uint32(sessionKey), maxChan, monoChan, monoChan)}
}

// Len returns L = |S|.
func (s *schedule) Len() int {
	return len(s.channels)
}

// channelFor returns S[n mod L] for a MSG with sequence number n.
func (s *schedule) channelFor(n uint16) uint8 {
	l := len(s.channels)
	return s.channels[int(n)%l]
}
