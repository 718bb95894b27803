// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.astrophena.name/pumpkin/internal/testutil"
)

func date(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestNextRun(t *testing.T) {
	t.Parallel()

	// 2025-06-06 is a Friday.
	cases := map[string]struct {
		now  time.Time
		at   TimeOfDay
		on   Days
		want time.Time
	}{
		"later today": {
			now:  date(2025, time.June, 6, 8, 0, 0),
			at:   TimeOfDay{Hour: 9, Minute: 30},
			on:   EveryDay,
			want: date(2025, time.June, 6, 9, 30, 0),
		},
		"already passed, tomorrow": {
			now:  date(2025, time.June, 6, 10, 0, 0),
			at:   TimeOfDay{Hour: 9, Minute: 30},
			on:   EveryDay,
			want: date(2025, time.June, 7, 9, 30, 0),
		},
		"exact moment goes to next day": {
			now:  date(2025, time.June, 6, 9, 30, 0),
			at:   TimeOfDay{Hour: 9, Minute: 30},
			on:   EveryDay,
			want: date(2025, time.June, 7, 9, 30, 0),
		},
		"weekdays skip saturday and sunday": {
			now:  date(2025, time.June, 6, 10, 0, 0), // Friday after fire time
			at:   TimeOfDay{Hour: 9, Minute: 30},
			on:   Weekdays,
			want: date(2025, time.June, 9, 9, 30, 0), // Monday
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testutil.AssertEqual(t, nextRun(tc.now, tc.at, tc.on), tc.want)
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	got, err := ParseTimeOfDay("08:30")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, TimeOfDay{Hour: 8, Minute: 30})

	got, err = ParseTimeOfDay("23:59:59")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, TimeOfDay{Hour: 23, Minute: 59, Second: 59})

	for _, bad := range []string{"", "8", "25:00", "08:61", "aa:bb"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("ParseTimeOfDay(%q) succeeded, want error", bad)
		}
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerFires(t *testing.T) {
	t.Parallel()

	r := NewRunner(discard())
	fired := make(chan struct{})
	at := time.Now().Add(1100 * time.Millisecond)
	r.Register(Job{
		Name: "test",
		At:   TimeOfDay{Hour: at.Hour(), Minute: at.Minute(), Second: at.Second()},
		Run: func(context.Context) error {
			close(fired)
			return nil
		},
	})

	r.Start(context.Background())
	defer r.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
}

func TestStopDoesNotWaitForJobs(t *testing.T) {
	t.Parallel()

	r := NewRunner(discard())
	release := make(chan struct{})
	done := make(chan struct{})
	at := time.Now().Add(1100 * time.Millisecond)
	r.Register(Job{
		Name: "slow",
		At:   TimeOfDay{Hour: at.Hour(), Minute: at.Minute(), Second: at.Second()},
		Run: func(ctx context.Context) error {
			defer close(done)
			select {
			case <-release:
			case <-ctx.Done():
				return errors.New("job context cancelled by Stop")
			}
			return nil
		},
	})
	r.Start(context.Background())

	// Wait for the job to start, then stop the runner: Stop must return
	// immediately and the job must keep running on the detached context.
	time.Sleep(1500 * time.Millisecond)
	start := time.Now()
	r.Stop()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Stop blocked for %v", elapsed)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never finished")
	}
}

func TestJobFailureKeepsRunner(t *testing.T) {
	t.Parallel()

	r := NewRunner(discard())
	j := Job{Name: "boom", Run: func(context.Context) error { return errors.New("boom") }}
	// Neither an error nor a panic may escape fire.
	r.fire(context.Background(), j)
	j.Run = func(context.Context) error { panic("boom") }
	r.fire(context.Background(), j)
}
