package randtime

import (
	"time"

	"github.com/valyala/fastrand"
)

// RandDuration returns a duration in [minDuration, maxDuration).
func RandDuration(minDuration, maxDuration time.Duration) time.Duration {
	if minDuration >= maxDuration {
		return maxDuration
	}
	span := int64(maxDuration - minDuration)
	if span > int64(^uint32(0)) {
		// fastrand draws 32 bits, use millisecond resolution for long spans
		ms := uint32(span / int64(time.Millisecond))
		return minDuration + time.Duration(fastrand.Uint32n(ms))*time.Millisecond
	}
	return minDuration + time.Duration(fastrand.Uint32n(uint32(span)))
}
