// Package mathx holds the small numeric helpers shared by the simulation packages.
package mathx

import "golang.org/x/exp/constraints"

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp100 bounds a percentage-style stat to [0, 100].
func Clamp100(v int) int {
	return Clamp(v, 0, 100)
}

// DriftToward moves v one step toward target, never overshooting.
func DriftToward(v, target, step int) int {
	switch {
	case v < target:
		v += step
		if v > target {
			v = target
		}
	case v > target:
		v -= step
		if v < target {
			v = target
		}
	}
	return v
}

