package ir

// Similar reports whether two raw pulse trains look like the same button:
// equal length, identical levels, and every duration of a within 25% of the
// matching duration in b.
func Similar(a, b []Pulse) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Level != b[i].Level {
			return false
		}
		x, y := uint64(a[i].Duration), uint64(b[i].Duration)
		diff := x - y
		if y > x {
			diff = y - x
		}
		if diff*4 > y {
			return false
		}
	}
	return true
}
