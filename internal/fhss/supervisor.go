package fhss

// rxSupervisor detects and recovers from loss of synchronisation on the
// receiving end.
type rxSupervisor struct {
	clock Clock

	windowStart int64
	windowCount int

	lastFrameTime int64
	haveFrame     bool

	syncLossWindowUs int64
}

func newRXSupervisor(clock Clock, syncLossWindowUs int64) *rxSupervisor {
	return &rxSupervisor{clock: clock, syncLossWindowUs: syncLossWindowUs}
}

// reset clears the sliding window and the "last frame seen" clock, as
// happens on re-entry to MONOFREQ alongside the timing oracle's own reset.
func (s *rxSupervisor) reset() {
	s.windowStart = 0
	s.windowCount = 0
	s.haveFrame = false
}

// recordGap rolls k missed frames into the current 1-second sliding window,
// starting a fresh window if the previous one has elapsed. The accumulated
// error count over a window equals the sum of gaps recorded within it.
func (s *rxSupervisor) recordGap(k int) {
	now := s.clock.NowMicro()
	if s.windowCount == 0 || now-s.windowStart >= 1_000_000 {
		s.windowStart = now
		s.windowCount = 0
	}
	s.windowCount += k
}

// markFrameSeen records that an actual MSG was decoded this tick, resetting
// the "zero frames received" clock lossOfSync checks against. Unlike
// recordGap, this is NOT called when a tick's acceptance window merely
// expires — only on a genuine, successfully decoded arrival.
func (s *rxSupervisor) markFrameSeen() {
	s.lastFrameTime = s.clock.NowMicro()
	s.haveFrame = true
}

// errorCount returns the current 1-second window's accumulated gap count,
// exposed to the user via ACK payload slot 0.
func (s *rxSupervisor) errorCount() int {
	if s.clock.NowMicro()-s.windowStart >= 1_000_000 {
		return 0
	}
	return s.windowCount
}

// lossOfSync reports whether T_sync_loss has elapsed since the last frame
// was seen — i.e. zero frames received for a full second — which forces a
// transition back to MONOFREQ.
func (s *rxSupervisor) lossOfSync() bool {
	if !s.haveFrame {
		return false
	}
	return s.clock.NowMicro()-s.lastFrameTime >= s.syncLossWindowUs
}

// txSupervisor tracks TX's parallel loss-of-sync signal: N_ack_loss
// consecutive outgoing MSGs with no ACK.
type txSupervisor struct {
	consecutiveUnacked int
	threshold          int
}

func newTXSupervisor(transDgs int) *txSupervisor {
	return &txSupervisor{threshold: transDgs}
}

func (s *txSupervisor) recordAck(ok bool) {
	if ok {
		s.consecutiveUnacked = 0
		return
	}
	s.consecutiveUnacked++
}

func (s *txSupervisor) lossOfSync() bool {
	return s.consecutiveUnacked >= s.threshold
}

func (s *txSupervisor) reset() {
	s.consecutiveUnacked = 0
}
