package systems

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestJobSystemRunsEveryJob(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	if err != nil {
		t.Fatal(err)
	}

	var ran, completed, failed, done atomic.Int32
	boom := errors.New("boom")
	for i := 0; i < 100; i++ {
		i := i
		err := js.Submit(JobTask{
			Run: func() error {
				ran.Add(1)
				if i%10 == 0 {
					return boom
				}
				return nil
			},
			OnComplete: func() { completed.Add(1) },
			OnFailure: func(err error) {
				if errors.Is(err, boom) {
					failed.Add(1)
				}
			},
			OnCompletionCallback: func() { done.Add(1) },
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}

	if ran.Load() != 100 || done.Load() != 100 {
		t.Fatalf("ran %d, done %d", ran.Load(), done.Load())
	}
	if completed.Load() != 90 || failed.Load() != 10 {
		t.Fatalf("completed %d, failed %d", completed.Load(), failed.Load())
	}
}

func TestJobSystemClosed(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := js.Submit(JobTask{Run: func() error { return nil }}); !errors.Is(err, ErrJobSystemClosed) {
		t.Fatalf("Submit after Shutdown: have %v", err)
	}
	if err := js.Shutdown(); !errors.Is(err, ErrJobSystemClosed) {
		t.Fatalf("second Shutdown: have %v", err)
	}
}

func TestNewJobSystemValidation(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("have %v", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Fatalf("have %v", err)
	}
}
