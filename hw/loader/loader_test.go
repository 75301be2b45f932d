package loader

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestObserverEdges(t *testing.T) {
	var o Observer

	seq := []Signals{
		{},
		{Active: true, Index: GameConfig},
		{Active: true, Index: GameConfig, Write: true, Addr: 0, Data: 0x05},
		{Active: true, Index: GameConfig},
		{Write: true, Data: 0xFF}, // write strobe outside a session is ignored
	}
	want := []Edges{
		{},
		{Start: true, Index: GameConfig},
		{Index: GameConfig, Write: true, Addr: 0, Data: 0x05},
		{Index: GameConfig},
		{End: true, Index: GameConfig},
	}

	var got []Edges
	for _, s := range seq {
		got = append(got, o.Tick(s))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
	if o.Active() {
		t.Errorf("Active() = true after falling edge")
	}
}

func TestFeeder(t *testing.T) {
	f := Feeder{Spacing: 2, Gap: 1}
	f.Queue(
		Session{Index: GameConfig, Data: []byte{0x05}},
		Session{Index: ROM, Data: []byte{0xAA, 0xBB}},
	)

	var got []Signals
	for !f.Done() {
		got = append(got, f.Next())
		if len(got) > 100 {
			t.Fatalf("feeder never done")
		}
	}

	want := []Signals{
		{Active: true, Index: GameConfig},
		{Active: true, Index: GameConfig, Write: true, Addr: 0, Data: 0x05},
		{Active: true, Index: GameConfig},
		{Active: true, Index: GameConfig},
		{},
		{},
		{Active: true, Index: ROM},
		{Active: true, Index: ROM, Write: true, Addr: 0, Data: 0xAA},
		{Active: true, Index: ROM},
		{Active: true, Index: ROM, Write: true, Addr: 1, Data: 0xBB},
		{Active: true, Index: ROM},
		{Active: true, Index: ROM},
		{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("signals mismatch (-want +got):\n%s", diff)
	}
}

func TestTargetIndexString(t *testing.T) {
	tests := []struct {
		idx  TargetIndex
		want string
	}{
		{ROM, "ROM"},
		{GameConfig, "GameConfig"},
		{NVRAM, "NVRAM"},
		{VideoData, "VideoData"},
		{TargetIndex(9), "TargetIndex(9)"},
	}
	for _, tt := range tests {
		if got := tt.idx.String(); got != tt.want {
			t.Errorf("TargetIndex(%d).String() = %q, want %q", tt.idx, got, tt.want)
		}
	}
}
