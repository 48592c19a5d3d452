package fhss

// ignoreCount and avgCount mirror the original firmware's
// compute_avg_datagram_period constants: the first few
// arrivals after boot are too noisy to measure, and averaging over a fixed
// run gives a deterministic convergence bound.
const (
	ignoreCount = 10
	avgCount    = 32
)

// timingOracle measures the average inter-frame period on RX from a run of
// strictly consecutive MSG sequence numbers.
type timingOracle struct {
	clock Clock

	ignored int

	haveFirst   bool
	firstTime   int64
	firstNumber uint16
	prevNumber  uint16
	consecutive int

	avgPeriodUs int64
}

func newTimingOracle(clock Clock) *timingOracle {
	return &timingOracle{clock: clock}
}

// reset clears all progress, forcing the oracle to re-discard ignoreCount
// arrivals and restart its consecutive-run count. Called on loss-of-sync
// re-entry.
func (o *timingOracle) reset() {
	o.ignored = 0
	o.haveFirst = false
	o.consecutive = 0
	o.avgPeriodUs = 0
}

// observe records the arrival of a MSG with the given sequence number at the
// current clock time, returning the newly computed average period once
// avgCount consecutive arrivals have been seen (0 until then).
func (o *timingOracle) observe(number uint16) int64 {
	if o.ignored < ignoreCount {
		o.ignored++
		return o.avgPeriodUs
	}

	if !o.haveFirst {
		o.haveFirst = true
		o.firstTime = o.clock.NowMicro()
		o.firstNumber = number
		o.prevNumber = number
		o.consecutive = 1
		return o.avgPeriodUs
	}

	if number != o.prevNumber+1 {
		// Gap: restart the measurement window from this arrival.
		o.firstTime = o.clock.NowMicro()
		o.firstNumber = number
		o.prevNumber = number
		o.consecutive = 1
		return o.avgPeriodUs
	}

	o.prevNumber = number
	o.consecutive++

	if o.consecutive >= avgCount {
		elapsed := o.clock.NowMicro() - o.firstTime
		o.avgPeriodUs = elapsed / avgCount
	}

	return o.avgPeriodUs
}

// avgPeriod returns the most recently computed average period, or 0 if one
// has not yet been established: it is never published unless the preceding
// avgCount MSGs had strictly consecutive numbers.
func (o *timingOracle) avgPeriod() int64 {
	return o.avgPeriodUs
}
