package effect

import (
	"slices"
	"testing"
	"time"
)

func collect(f FrameFunc, n int) []uint32 {
	var out []uint32
	for range n {
		frame, ok := f()
		if !ok {
			break
		}
		out = append(out, frame.Bits)
	}
	return out
}

func TestRampTriangleWave(t *testing.T) {
	r := Ramp{Max: 250, Step: 100, Tick: time.Millisecond}

	got := collect(r.Frames(), 8)
	want := []uint32{0, 100, 200, 250, 150, 50, 0, 100}
	if !slices.Equal(got, want) {
		t.Errorf("ramp frames = %v, want %v", got, want)
	}

	// Every Frames call starts a fresh run
	if first, _ := r.Frames()(); first.Bits != 0 {
		t.Errorf("fresh run starts at %d, want 0", first.Bits)
	}
}

func TestBreathingStaysInRange(t *testing.T) {
	b := Breathing()
	f := b.Frames()
	for i := range 1000 {
		frame, ok := f()
		if !ok {
			t.Fatal("breathing ramp ended")
		}
		if frame.Bits > b.Max {
			t.Fatalf("frame %d = %d exceeds max %d", i, frame.Bits, b.Max)
		}
		if frame.Hold != 50*time.Millisecond {
			t.Fatalf("frame %d hold = %v, want 50ms", i, frame.Hold)
		}
	}
}

func TestSequenceCycles(t *testing.T) {
	tests := []struct {
		name   string
		cycles int
		n      int
		want   []uint32
	}{
		{"forever", 0, 7, []uint32{1, 2, 3, 1, 2, 3, 1}},
		{"one cycle", 1, 7, []uint32{1, 2, 3}},
		{"two cycles", 2, 10, []uint32{1, 2, 3, 1, 2, 3}},
	}

	steps := []Frame{{Bits: 1}, {Bits: 2}, {Bits: 3}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sequence{Steps: steps, Cycles: tt.cycles}
			if got := collect(s.Frames(), tt.n); !slices.Equal(got, tt.want) {
				t.Errorf("frames = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmptySequenceEndsImmediately(t *testing.T) {
	if _, ok := (Sequence{}).Frames()(); ok {
		t.Error("empty sequence should yield no frames")
	}
}

func TestFlowPattern(t *testing.T) {
	got := collect(Flow().Frames(), 5)
	want := []uint32{0b10001, 0b01010, 0b00110, 0b10110, 0b10001}
	if !slices.Equal(got, want) {
		t.Errorf("flow = %b, want %b", got, want)
	}
}

func TestDescriptorBuild(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
		check   func(t *testing.T, e Effect)
	}{
		{
			name: "ramp uses register max",
			desc: Descriptor{Kind: KindRamp, Step: 10, TickMs: 20},
			check: func(t *testing.T, e Effect) {
				r, ok := e.(Ramp)
				if !ok || r.Max != 255 || r.Tick != 20*time.Millisecond {
					t.Errorf("got %+v", e)
				}
			},
		},
		{
			name: "sequence",
			desc: Descriptor{Kind: KindSequence, Cycles: 3, Steps: []Step{{Bits: 5, HoldMs: 10}}},
			check: func(t *testing.T, e Effect) {
				s, ok := e.(Sequence)
				if !ok || s.Cycles != 3 || s.Steps[0] != (Frame{Bits: 5, Hold: 10 * time.Millisecond}) {
					t.Errorf("got %+v", e)
				}
			},
		},
		{name: "ramp without tick", desc: Descriptor{Kind: KindRamp}, wantErr: true},
		{name: "sequence without steps", desc: Descriptor{Kind: KindSequence}, wantErr: true},
		{name: "zero hold", desc: Descriptor{Kind: KindSequence, Steps: []Step{{Bits: 1}}}, wantErr: true},
		{name: "unknown kind", desc: Descriptor{Kind: "strobe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := tt.desc.Build(255)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, e)
			}
		})
	}
}
