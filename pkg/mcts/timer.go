package mcts

import (
	"runtime"
	"time"
)

func defaultHardwareParallelism() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

// TimeSource abstracts monotonic time measurement, matching spec §4.2's
// "monotonic time source" input to Search. The zero value of
// WallClockTimeSource is ready to use.
type TimeSource interface {
	Now() time.Time
}

// WallClockTimeSource is the default TimeSource, backed by time.Now.
type WallClockTimeSource struct{}

func (WallClockTimeSource) Now() time.Time { return time.Now() }

// searchTimer tracks elapsed time against a TimeSource for one search.
type searchTimer struct {
	src   TimeSource
	start time.Time
}

func newSearchTimer(src TimeSource) *searchTimer {
	return &searchTimer{src: src, start: src.Now()}
}

func (t *searchTimer) reset() { t.start = t.src.Now() }

func (t *searchTimer) elapsed() float64 {
	return t.src.Now().Sub(t.start).Seconds()
}
