package randtime

import (
	"testing"
	"time"
)

func TestRandDurationRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		d := RandDuration(3*time.Second, 6*time.Second)
		if d < 3*time.Second || d >= 6*time.Second {
			t.Fatal("duration out of range:", d)
		}
	}
	if RandDuration(time.Second, time.Second) != time.Second {
		t.Fatal("expect max when range is empty")
	}
}
