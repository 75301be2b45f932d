package clock

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSchedulerOrder(t *testing.T) {
	var s Scheduler
	var trace []string

	// 4 MHz, 2 MHz and 1 MHz: edges coincide every microsecond.
	s.Add("fast", 4_000_000, func() { trace = append(trace, "fast") })
	s.Add("mid", 2_000_000, func() { trace = append(trace, "mid") })
	s.Add("slow", 1_000_000, func() { trace = append(trace, "slow") })

	s.RunFor(Microsecond)

	want := []string{
		"fast", "mid", "slow",
		"fast",
		"fast", "mid",
		"fast",
	}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("step order mismatch (-want +got):\n%s", diff)
	}
	if s.Now() != 750*Nanosecond {
		t.Errorf("Now() = %d, want %d", s.Now(), 750*Nanosecond)
	}
}

func TestSchedulerTicks(t *testing.T) {
	var s Scheduler
	a := s.Add("a", 2_000_000, func() {})
	b := s.Add("b", 1_000_000, func() {})

	s.RunFor(10 * Microsecond)

	if a.Ticks() != 20 {
		t.Errorf("a.Ticks() = %d, want 20", a.Ticks())
	}
	if b.Ticks() != 10 {
		t.Errorf("b.Ticks() = %d, want 10", b.Ticks())
	}
	if b.Hz() != 1_000_000 {
		t.Errorf("b.Hz() = %d, want 1000000", b.Hz())
	}
}

func TestSchedulerRunWhile(t *testing.T) {
	var s Scheduler
	n := 0
	s.Add("a", 1_000_000, func() { n++ })

	if !s.RunWhile(func() bool { return n < 5 }, Millisecond) {
		t.Fatalf("RunWhile timed out")
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}

	if s.RunWhile(func() bool { return true }, 10*Microsecond) {
		t.Errorf("RunWhile should time out")
	}
}

func TestTimeString(t *testing.T) {
	tests := []struct {
		t    Time
		want string
	}{
		{0, "0ps"},
		{500 * Picosecond, "500ps"},
		{20833 * Picosecond, "20.833ns"},
		{10 * Microsecond, "10µs"},
		{1500 * Microsecond, "1.5ms"},
		{2 * Second, "2s"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("Time(%d).String() = %q, want %q", uint64(tt.t), got, tt.want)
		}
	}
}
