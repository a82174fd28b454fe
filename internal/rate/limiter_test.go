package rate

import (
	"context"
	"testing"
	"time"
)

func TestUnlimitedWait(t *testing.T) {
	if err := (Unlimited{}).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Unlimited{}).Wait(ctx); err == nil {
		t.Fatal("Wait() on canceled context = nil, want error")
	}
}

func TestIntervalFirstCallImmediate(t *testing.T) {
	l := NewInterval(time.Hour)
	done := make(chan error, 1)
	go func() { done <- l.Wait(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first Wait() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("first Wait() blocked; want immediate")
	}
}

func TestIntervalSpacesCalls(t *testing.T) {
	base := time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)
	l := NewInterval(time.Minute)
	l.clock = func() time.Time { return base }

	// First call sets next = base + gap without sleeping.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() = %v", err)
	}
	if got, want := l.next, base.Add(time.Minute); !got.Equal(want) {
		t.Fatalf("next after first call = %v, want %v", got, want)
	}

	// Second call at the same instant must block; a canceled context
	// should release it with an error instead of sleeping a full minute.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("second Wait() on canceled context = nil, want error")
	}
	if got, want := l.next, base.Add(2*time.Minute); !got.Equal(want) {
		t.Fatalf("next after second call = %v, want %v", got, want)
	}
}

func TestPerSecond(t *testing.T) {
	if _, ok := PerSecond(0).(Unlimited); !ok {
		t.Fatal("PerSecond(0) should be Unlimited")
	}
	if _, ok := PerSecond(-1).(Unlimited); !ok {
		t.Fatal("PerSecond(-1) should be Unlimited")
	}
	l, ok := PerSecond(4).(*Interval)
	if !ok {
		t.Fatal("PerSecond(4) should be an *Interval")
	}
	if l.gap != 250*time.Millisecond {
		t.Fatalf("gap = %v, want 250ms", l.gap)
	}
}

func TestSleepCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); err == nil {
		t.Fatal("Sleep on canceled context = nil, want error")
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("Sleep(0) = %v, want nil", err)
	}
}
