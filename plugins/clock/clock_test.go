package clock

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestName(t *testing.T) {
	if got := New().Name(); got != "time" {
		t.Errorf("Name() = %q", got)
	}
}

func TestRunFormatsFixedTime(t *testing.T) {
	fixed := time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)
	p := &Plugin{now: func() time.Time { return fixed }}

	out, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, want := range []string{
		"Current local time: 2026-03-14 09:26:53 (UTC).",
		"Current UTC time: 2026-03-14 09:26:53.",
		"Today is Saturday, March 14, 2026.",
		"Unix timestamp: 1773480413.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunOutputChangesWithTime(t *testing.T) {
	t1 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	p := &Plugin{now: func() time.Time { return t1 }}
	first, _ := p.Run(context.Background())

	p.now = func() time.Time { return t1.Add(time.Minute) }
	second, _ := p.Run(context.Background())

	if first == second {
		t.Error("output identical across different times")
	}
}
