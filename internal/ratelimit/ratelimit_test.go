package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func fixedClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		d := l.Check("1.2.3.4")
		if !d.Allowed {
			t.Fatalf("request %d denied", i)
		}
		if d.Remaining != 2-i {
			t.Fatalf("remaining = %d after request %d", d.Remaining, i)
		}
	}

	d := l.Check("1.2.3.4")
	if d.Allowed {
		t.Fatal("request over the limit allowed")
	}
	if !d.ResetAt.After(time.Now()) {
		t.Fatal("resetAt is not in the future")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	if !l.Check("a").Allowed {
		t.Fatal("first key denied")
	}
	if !l.Check("b").Allowed {
		t.Fatal("second key denied")
	}
	if l.Check("a").Allowed {
		t.Fatal("first key not limited")
	}
}

func TestLimiterWindowResets(t *testing.T) {
	now, clock := fixedClock(time.Unix(1000, 0))
	l := New(1, time.Minute)
	l.now = clock

	if !l.Check("k").Allowed {
		t.Fatal("first request denied")
	}
	if l.Check("k").Allowed {
		t.Fatal("second request allowed")
	}

	*now = now.Add(61 * time.Second)
	if !l.Check("k").Allowed {
		t.Fatal("request after window reset denied")
	}
}

func TestLimiterSweepDropsExpired(t *testing.T) {
	now, clock := fixedClock(time.Unix(1000, 0))
	l := New(5, time.Minute)
	l.now = clock

	l.Check("a")
	l.Check("b")
	if l.Len() != 2 {
		t.Fatalf("len = %d", l.Len())
	}

	*now = now.Add(2 * time.Minute)
	l.Sweep()
	if l.Len() != 0 {
		t.Fatalf("len = %d after sweep", l.Len())
	}
}

func TestLimiterEvictsOldestOverCap(t *testing.T) {
	l := NewWithCap(1, time.Hour, 50) // floor raises the cap to 100

	for i := 0; i < 150; i++ {
		l.Check(fmt.Sprintf("key-%d", i))
	}
	if l.Len() > 100 {
		t.Fatalf("len = %d, cap 100", l.Len())
	}

	// The earliest key was evicted, so a repeat check opens a fresh
	// window instead of being denied.
	if !l.Check("key-0").Allowed {
		t.Fatal("evicted key still limited")
	}
}
