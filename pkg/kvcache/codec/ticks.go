package codec

import "time"

const (
	// ticksPerSecond is the number of 100ns ticks in a second.
	ticksPerSecond = 10_000_000

	// nanosPerTick is the tick resolution in nanoseconds.
	nanosPerTick = 100

	// unixEpochTicks is the tick count of 1970-01-01T00:00:00Z.
	unixEpochTicks int64 = 621_355_968_000_000_000
)

// ToTicks converts t to the header tick count. The zero time maps to 0.
func ToTicks(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return unixEpochTicks + t.Unix()*ticksPerSecond + int64(t.Nanosecond()/nanosPerTick)
}

// FromTicks converts a header tick count back to a UTC time. 0 maps to the zero time.
func FromTicks(ticks int64) time.Time {
	if ticks == 0 {
		return time.Time{}
	}
	sinceEpoch := ticks - unixEpochTicks
	return time.Unix(sinceEpoch/ticksPerSecond, (sinceEpoch%ticksPerSecond)*nanosPerTick).UTC()
}
