package fhss

import "testing"

const testTickPeriodUs = 10_000

func TestTimingOracleIgnoresFirstTenArrivals(t *testing.T) {
	clock := &fakeClock{}
	o := newTimingOracle(clock)

	for n := uint16(0); n < ignoreCount; n++ {
		if got := o.observe(n); got != 0 {
			t.Fatalf("observe(%d) = %d during the ignore window, want 0", n, got)
		}
		clock.Advance(testTickPeriodUs)
	}
}

func TestTimingOracleNoAveragePublishedBeforeThirtyTwoConsecutive(t *testing.T) {
	clock := &fakeClock{}
	o := newTimingOracle(clock)

	n := uint16(0)
	for i := 0; i < ignoreCount; i++ {
		o.observe(n)
		n++
		clock.Advance(testTickPeriodUs)
	}
	for i := 0; i < avgCount-1; i++ {
		if got := o.observe(n); got != 0 {
			t.Fatalf("observe() = %d before %d consecutive arrivals, want 0", got, avgCount)
		}
		n++
		clock.Advance(testTickPeriodUs)
	}
	if got := o.avgPeriod(); got != 0 {
		t.Fatalf("avgPeriod() = %d, want 0 before the run completes", got)
	}
}

func TestTimingOracleConvergesToTickPeriod(t *testing.T) {
	clock := &fakeClock{}
	o := newTimingOracle(clock)

	n := uint16(0)
	for i := 0; i < ignoreCount; i++ {
		o.observe(n)
		n++
		clock.Advance(testTickPeriodUs)
	}
	var last int64
	for i := 0; i < avgCount; i++ {
		last = o.observe(n)
		n++
		clock.Advance(testTickPeriodUs)
	}
	if last == 0 {
		t.Fatal("observe() never published an average after avgCount consecutive arrivals")
	}
	const tolerance = testTickPeriodUs / 10
	diff := last - testTickPeriodUs
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		t.Fatalf("avgPeriod() = %d, want within %dus of %d", last, tolerance, testTickPeriodUs)
	}
}

func TestTimingOracleGapRestartsConsecutiveRun(t *testing.T) {
	clock := &fakeClock{}
	o := newTimingOracle(clock)

	n := uint16(0)
	for i := 0; i < ignoreCount; i++ {
		o.observe(n)
		n++
		clock.Advance(testTickPeriodUs)
	}
	for i := 0; i < avgCount-5; i++ {
		o.observe(n)
		n++
		clock.Advance(testTickPeriodUs)
	}
	// Skip a sequence number: the run must restart from here.
	n += 2
	for i := 0; i < avgCount-1; i++ {
		if got := o.observe(n); got != 0 {
			t.Fatalf("observe() = %d after a gap reset the run, want 0 until %d new consecutive arrivals", got, avgCount)
		}
		n++
		clock.Advance(testTickPeriodUs)
	}
}

func TestTimingOracleResetClearsProgress(t *testing.T) {
	clock := &fakeClock{}
	o := newTimingOracle(clock)

	n := uint16(0)
	for i := 0; i < ignoreCount+avgCount; i++ {
		o.observe(n)
		n++
		clock.Advance(testTickPeriodUs)
	}
	if o.avgPeriod() == 0 {
		t.Fatal("setup failed to converge before reset")
	}

	o.reset()
	if got := o.avgPeriod(); got != 0 {
		t.Fatalf("avgPeriod() = %d after reset, want 0", got)
	}
	if got := o.observe(n); got != 0 {
		t.Fatalf("observe() = %d on the first arrival after reset, want 0 (re-entering the ignore window)", got)
	}
}
