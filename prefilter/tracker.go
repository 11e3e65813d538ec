package prefilter

// Tracker measures how far a searcher moves the scan per candidate during
// one search. When candidates come so densely that running the searcher
// costs more than trying every position, the tracker retires it and the
// caller falls back to a plain scan.
//
// A Tracker is per-search state and must not be shared between goroutines.
//
// Example usage:
//
//	tr := prefilter.NewTracker(prefilter.DefaultTrackerConfig())
//	for tr.IsActive() {
//	    p := s.Forward(text, at, end, rng)
//	    if p < 0 {
//	        break
//	    }
//	    tr.Candidate(p - at)
//	    ...
//	}
type Tracker struct {
	candidates     uint64
	skipped        uint64
	lastCheckpoint uint64

	checkInterval uint64
	minAvgSkip    uint64
	warmupPeriod  uint64

	active bool
}

// TrackerConfig holds configuration for the effectiveness tracker.
type TrackerConfig struct {
	// CheckInterval is how often to check effectiveness, in candidates.
	// Default: 64
	CheckInterval uint64

	// MinAvgSkip is the smallest acceptable average number of bytes the
	// searcher moves past per candidate.
	// Default: 2
	MinAvgSkip uint64

	// WarmupPeriod is the number of candidates before the first check.
	// Default: 128
	WarmupPeriod uint64
}

// DefaultTrackerConfig returns the default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		CheckInterval: 64,
		MinAvgSkip:    2,
		WarmupPeriod:  128,
	}
}

// NewTracker returns an active tracker.
func NewTracker(config TrackerConfig) Tracker {
	return Tracker{
		checkInterval: config.CheckInterval,
		minAvgSkip:    config.MinAvgSkip,
		warmupPeriod:  config.WarmupPeriod,
		active:        true,
	}
}

// Candidate records a candidate found skip bytes past the previous scan
// position.
func (t *Tracker) Candidate(skip int) {
	t.candidates++
	if skip > 0 {
		t.skipped += uint64(skip)
	}
	t.checkEffectiveness()
}

// IsActive reports whether the searcher is still in use.
func (t *Tracker) IsActive() bool {
	return t.active
}

// Stats returns the number of candidates, the average skip and whether the
// searcher is still active.
func (t *Tracker) Stats() (candidates uint64, avgSkip float64, active bool) {
	if t.candidates > 0 {
		avgSkip = float64(t.skipped) / float64(t.candidates)
	}
	return t.candidates, avgSkip, t.active
}

// Reset clears statistics and re-enables the searcher.
func (t *Tracker) Reset() {
	t.candidates = 0
	t.skipped = 0
	t.lastCheckpoint = 0
	t.active = true
}

func (t *Tracker) checkEffectiveness() {
	if t.candidates < t.warmupPeriod {
		return
	}
	if t.candidates-t.lastCheckpoint < t.checkInterval {
		return
	}
	t.lastCheckpoint = t.candidates
	if t.skipped < t.minAvgSkip*t.candidates {
		t.active = false
	}
}
