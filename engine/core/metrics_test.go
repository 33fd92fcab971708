package core

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	if got := Mean([]int{}); got != 0 {
		t.Fatalf("empty: have %v", got)
	}
	if got := Mean([]int{1, 2, 3, 4}); got != 2.5 {
		t.Fatalf("ints: have %v", got)
	}
	if got := Mean([]float32{0.5, 1.5}); got != 1 {
		t.Fatalf("floats: have %v", got)
	}
	if got := Mean([]uint8{255, 255}); got != 255 {
		t.Fatalf("uint8 must not overflow: have %v", got)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.Submitted()
	m.Submitted()
	m.ForcedFlush()
	m.DeferredRun(3)
	m.WaitTime(2)
	m.WaitTime(4)
	m.RecordTime(1)

	s := m.Snapshot()
	if s.Submissions != 2 || s.ForcedFlush != 1 || s.DeferredRun != 3 {
		t.Fatalf("counters: have %+v", s)
	}
	if s.AvgWaitMS != 3 {
		t.Fatalf("avg wait: have %v, want 3", s.AvgWaitMS)
	}
	if s.AvgRecordMS != 1 {
		t.Fatalf("avg record: have %v, want 1", s.AvgRecordMS)
	}
}

func TestRollingAverageWindow(t *testing.T) {
	var r rollingAverage
	for i := 0; i < int(AVG_COUNT); i++ {
		r.add(10)
	}
	// Older samples drop out once the window wraps.
	for i := 0; i < int(AVG_COUNT); i++ {
		r.add(20)
	}
	if got := r.value(); math.Abs(got-20) > 1e-9 {
		t.Fatalf("have %v, want 20", got)
	}
}

func TestSetLogLevel(t *testing.T) {
	if err := SetLogLevel("warn"); err != nil {
		t.Fatal(err)
	}
	if err := SetLogLevel("nope"); err == nil {
		t.Fatal("unknown level accepted")
	}
	if err := SetLogLevel("debug"); err != nil {
		t.Fatal(err)
	}
}
