package cdc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFreezeLatency(t *testing.T) {
	f := NewFreeze("test", 0)
	f.Set(7)

	f.Tick()
	if got := f.Get(); got != 0 {
		t.Fatalf("after 1 tick Get() = %d, want 0", got)
	}
	f.Tick()
	if got := f.Get(); got != 7 {
		t.Fatalf("after 2 ticks Get() = %d, want 7", got)
	}
}

func TestFreezeNoFabricatedValues(t *testing.T) {
	f := NewFreeze("test", uint16(0))
	seen := map[uint16]bool{0: true}

	// The source changes at various rates relative to the destination
	// clock, including faster than it.
	var v uint16
	for i := range 1000 {
		if i%3 == 0 || (i > 500 && i%7 < 4) {
			v = v*31 + 17
			f.Set(v)
			seen[v] = true
		}
		f.Tick()
		if got := f.Get(); !seen[got] {
			t.Fatalf("tick %d: Get() = %d was never set in the source", i, got)
		}
	}
}

func TestFreezeHoldsWhileUnstable(t *testing.T) {
	f := NewFreeze("test", 0)
	for i := range 10 {
		f.Set(i + 1) // changes every destination tick
		f.Tick()
		if got := f.Get(); got != 0 {
			t.Fatalf("tick %d: Get() = %d, want 0 while source is unstable", i, got)
		}
	}
}

func TestSyncReadyAndLatency(t *testing.T) {
	s := NewSync[int, int]("test", 1, 2)

	if !s.Ready() {
		t.Fatalf("Ready() = false on empty sync")
	}
	if !s.Issue(1) {
		t.Fatalf("Issue(1) = false")
	}
	if s.Ready() {
		t.Fatalf("Ready() = true with depth 1 and one request in flight")
	}
	if s.Issue(2) {
		t.Fatalf("Issue(2) accepted while not ready")
	}

	if _, ok := s.Accept(); ok {
		t.Fatalf("request visible before synchronizer latency")
	}
	s.TickDst()
	if _, ok := s.Pending(); ok {
		t.Fatalf("request visible after 1 tick, want 2")
	}
	s.TickDst()
	req, ok := s.Accept()
	if !ok || req != 1 {
		t.Fatalf("Accept() = %d, %t, want 1, true", req, ok)
	}

	s.Respond(10)
	if s.Ready() {
		t.Fatalf("Ready() = true before response was taken")
	}
	s.TickSrc()
	if _, ok := s.Response(); ok {
		t.Fatalf("response visible after 1 tick, want 2")
	}
	s.TickSrc()
	resp, ok := s.Response()
	if !ok || resp != 10 {
		t.Fatalf("Response() = %d, %t, want 10, true", resp, ok)
	}
	if !s.Ready() {
		t.Fatalf("Ready() = false after response was taken")
	}
	if issued, completed := s.Stats(); issued != 1 || completed != 1 {
		t.Errorf("Stats() = %d, %d, want 1, 1", issued, completed)
	}
}

func TestSyncPreservesOrder(t *testing.T) {
	const depth = 4
	s := NewSync[int, int]("test", depth, 2)

	var (
		next int
		got  []int
		busy []int // accepted requests being served by the destination
	)

	for tick := 0; len(got) < 50; tick++ {
		if tick > 10000 {
			t.Fatalf("stuck after %d responses", len(got))
		}

		// Source domain: issue as fast as allowed, collect responses.
		s.TickSrc()
		for {
			r, ok := s.Response()
			if !ok {
				break
			}
			got = append(got, r)
		}
		if next < 50 && s.Issue(next) {
			next++
		}

		// Destination domain runs at one third of the source rate and
		// takes a variable time to serve requests.
		if tick%3 != 0 {
			continue
		}
		s.TickDst()
		if req, ok := s.Accept(); ok {
			busy = append(busy, req)
		}
		if len(busy) > 0 && tick%2 == 0 {
			s.Respond(busy[0] * 100)
			busy = busy[1:]
		}
	}

	want := make([]int, 50)
	for i := range want {
		want[i] = i * 100
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("responses out of order (-want +got):\n%s", diff)
	}
}

func TestSyncRespondWithoutAcceptPanics(t *testing.T) {
	s := NewSync[int, int]("test", 1, 0)
	defer func() {
		if recover() == nil {
			t.Fatalf("Respond without Accept should panic")
		}
	}()
	s.Respond(1)
}

func TestSyncZeroStages(t *testing.T) {
	s := NewSync[string, string]("test", 2, 0)
	s.Issue("a")
	s.Issue("b")
	if r, ok := s.Accept(); !ok || r != "a" {
		t.Fatalf("Accept() = %q, %t, want \"a\", true", r, ok)
	}
	s.Respond("A")
	if r, ok := s.Response(); !ok || r != "A" {
		t.Fatalf("Response() = %q, %t, want \"A\", true", r, ok)
	}
	s.Clear()
	if s.InFlight() != 0 {
		t.Errorf("InFlight() = %d after Clear, want 0", s.InFlight())
	}
	if _, ok := s.Pending(); ok {
		t.Errorf("Pending() after Clear returned a request")
	}
}
