package repository

import "time"

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

// timeframeDurations is the single lookup table shared by the aggregator and
// every reconcile stage, so fill, bridge, and validate thresholds cannot
// drift apart.
var timeframeDurations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
	TF1w:  7 * 24 * time.Hour,
}

// Duration returns the bucket width for tf. ok is false for unknown
// timeframes; stages that cannot recover pass the data through unmodified
// rather than guess.
func (tf Timeframe) Duration() (time.Duration, bool) {
	d, ok := timeframeDurations[tf]
	return d, ok
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// AllTimeframes returns the supported timeframes ordered fine to coarse.
func AllTimeframes() []Timeframe {
	return []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d, TF1w}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// BucketStart truncates t to the start of its tf bucket: t - (t mod duration).
func BucketStart(t time.Time, tf Timeframe) time.Time {
	d, ok := timeframeDurations[tf]
	if !ok {
		return t
	}
	return t.UTC().Truncate(d)
}

// coldBoundary is the coarsest timeframe still served exclusively from the
// hot store. Finer timeframes never touch the cold tier, which prevents
// cross-tier inconsistency at fine granularity.
const coldBoundary = 4 * time.Hour

// UsesColdStore reports whether range reads for tf should also consult the
// cold archive.
func UsesColdStore(tf Timeframe) bool {
	d, ok := timeframeDurations[tf]
	if !ok {
		return false
	}
	return d > coldBoundary
}
