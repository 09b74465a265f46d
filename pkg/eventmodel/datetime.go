package eventmodel

import "fmt"

// Granularity names the storage precision a DateTimeValue was captured
// at. spec.md §3.4 / §9: times must not be collapsed to a single
// microsecond integer at parse time — the original granularity is kept
// alongside a derived normalized value used only for ordering.
type Granularity string

const (
	GranularitySeconds      Granularity = "seconds"
	GranularityMilliseconds Granularity = "milliseconds"
	GranularityMicroseconds Granularity = "microseconds"
	GranularityHundredNanos Granularity = "100ns" // FILETIME ticks
	GranularityFILETIME     Granularity = "filetime"
	GranularityHFS          Granularity = "hfs"
	GranularityPOSIX        Granularity = "posix"
)

// DateTimeValue is a tagged-union timestamp. NotSet distinguishes
// "absent time" from timestamp zero (spec.md §9 design note: the
// source overloads timestamp 0 for time-less events; this type does
// not).
type DateTimeValue struct {
	Granularity Granularity `json:"granularity,omitempty"`
	Raw         int64       `json:"raw,omitempty"` // value in Granularity's native unit
	NotSet      bool        `json:"not_set,omitempty"`
	Infinite    bool        `json:"infinite,omitempty"` // semantic "never"/"infinite" value
}

// NotSetValue is the canonical "absent time" value.
func NotSetValue() DateTimeValue { return DateTimeValue{NotSet: true} }

// InfiniteValue is the canonical "never"/"infinite" value.
func InfiniteValue() DateTimeValue { return DateTimeValue{Infinite: true} }

// FromUnixMicroseconds builds a DateTimeValue with microsecond
// granularity from a normalized epoch timestamp.
func FromUnixMicroseconds(us int64) DateTimeValue {
	return DateTimeValue{Granularity: GranularityMicroseconds, Raw: us}
}

// FromFILETIME builds a DateTimeValue from a raw Windows FILETIME
// (100ns ticks since 1601-01-01).
func FromFILETIME(ticks int64) DateTimeValue {
	return DateTimeValue{Granularity: GranularityFILETIME, Raw: ticks}
}

const filetimeEpochDeltaMicros = 11644473600000000 // 1601-01-01 -> 1970-01-01, in microseconds

// NormalizedMicroseconds derives the 64-bit signed microseconds-since-
// Unix-epoch value used for ordering and coarse comparison (spec.md
// §3.4). Absent/infinite values have no ordering meaning; callers must
// check NotSet/Infinite first.
func (d DateTimeValue) NormalizedMicroseconds() (int64, bool) {
	if d.NotSet || d.Infinite {
		return 0, false
	}
	switch d.Granularity {
	case GranularitySeconds:
		return d.Raw * 1_000_000, true
	case GranularityMilliseconds:
		return d.Raw * 1_000, true
	case GranularityMicroseconds, GranularityPOSIX:
		return d.Raw, true
	case GranularityHundredNanos:
		return d.Raw / 10, true
	case GranularityFILETIME:
		return d.Raw/10 - filetimeEpochDeltaMicros, true
	case GranularityHFS:
		// HFS epoch is 1904-01-01, stored in whole seconds.
		const hfsEpochDeltaSeconds = 2082844800
		return (d.Raw - hfsEpochDeltaSeconds) * 1_000_000, true
	default:
		return d.Raw, true
	}
}

// Less orders two DateTimeValues by their normalized microsecond
// value. Not-set values sort before infinite values, which sort last.
func (d DateTimeValue) Less(other DateTimeValue) bool {
	if d.NotSet != other.NotSet {
		return d.NotSet
	}
	if d.Infinite != other.Infinite {
		return other.Infinite
	}
	if d.NotSet || d.Infinite {
		return false
	}
	a, _ := d.NormalizedMicroseconds()
	b, _ := other.NormalizedMicroseconds()
	return a < b
}

func (d DateTimeValue) String() string {
	if d.NotSet {
		return "<not set>"
	}
	if d.Infinite {
		return "<infinite>"
	}
	return fmt.Sprintf("%s:%d", d.Granularity, d.Raw)
}
