package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(150, 0, 100); got != 100 {
		t.Fatalf("Clamp(150)=%d", got)
	}
	if got := Clamp(-3.5, 0.0, 1.0); got != 0 {
		t.Fatalf("Clamp(-3.5)=%v", got)
	}
	if got := Clamp100(42); got != 42 {
		t.Fatalf("Clamp100(42)=%d", got)
	}
}

func TestDriftToward(t *testing.T) {
	cases := []struct {
		v, target, step, want int
	}{
		{v: 40, target: 50, step: 1, want: 41},
		{v: 60, target: 50, step: 1, want: 59},
		{v: 50, target: 50, step: 1, want: 50},
		{v: 49, target: 50, step: 3, want: 50},
		{v: 52, target: 50, step: 5, want: 50},
	}
	for _, tc := range cases {
		if got := DriftToward(tc.v, tc.target, tc.step); got != tc.want {
			t.Errorf("DriftToward(%d,%d,%d)=%d want %d", tc.v, tc.target, tc.step, got, tc.want)
		}
	}
}
