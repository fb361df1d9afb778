package availability

// interval is a half-open [start, end) range of minutes within a day.
type interval struct {
	start int
	end   int
}

func (iv interval) valid() bool {
	return iv.end > iv.start
}

func (iv interval) contains(other interval) bool {
	return iv.start <= other.start && other.end <= iv.end
}

// clamp bounds the interval to [lo, hi).
func (iv interval) clamp(lo, hi int) interval {
	out := iv
	if out.start < lo {
		out.start = lo
	}
	if out.end > hi {
		out.end = hi
	}
	return out
}

// subtract removes occ from each free interval, splitting where needed.
func subtract(free []interval, occ interval) []interval {
	if !occ.valid() {
		return free
	}
	out := make([]interval, 0, len(free)+1)
	for _, f := range free {
		if occ.end <= f.start || occ.start >= f.end {
			out = append(out, f)
			continue
		}
		if left := (interval{f.start, occ.start}); left.valid() {
			out = append(out, left)
		}
		if right := (interval{occ.end, f.end}); right.valid() {
			out = append(out, right)
		}
	}
	return out
}

// anyContains reports whether some free interval fully covers win.
func anyContains(free []interval, win interval) bool {
	for _, f := range free {
		if f.contains(win) {
			return true
		}
	}
	return false
}
