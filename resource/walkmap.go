package resource

// WalkMap stores walkability for each (x, z) ground cell.
// Cell (x, z) covers world [x, x+1) × [z, z+1).
type WalkMap struct {
	Width  int
	Height int
	// blocked[z][x]
	blocked [][]bool
}

func newWalkMap(w, h int) *WalkMap {
	wm := &WalkMap{Width: w, Height: h}
	wm.blocked = make([][]bool, h)
	for z := range wm.blocked {
		wm.blocked[z] = make([]bool, w)
	}
	return wm
}

// NewWalkMap creates a WalkMap with all cells walkable.
func NewWalkMap(w, h int) *WalkMap {
	return newWalkMap(w, h)
}

// ParseWalkMap builds a WalkMap from text rows: '#' is blocked, '.' walkable.
// Row i is z = i. Short rows are padded with blocked cells.
func ParseWalkMap(rows []string) *WalkMap {
	w := 0
	for _, r := range rows {
		if len(r) > w {
			w = len(r)
		}
	}
	wm := newWalkMap(w, len(rows))
	for z, r := range rows {
		for x := 0; x < w; x++ {
			wm.blocked[z][x] = x >= len(r) || r[x] == '#'
		}
	}
	return wm
}

// SetBlocked marks (x, z) blocked or walkable. Out-of-bounds is ignored.
func (wm *WalkMap) SetBlocked(x, z int, blocked bool) {
	if x < 0 || x >= wm.Width || z < 0 || z >= wm.Height {
		return
	}
	wm.blocked[z][x] = blocked
}

// Walkable reports whether (x, z) is in bounds and not blocked.
func (wm *WalkMap) Walkable(x, z int) bool {
	if x < 0 || x >= wm.Width || z < 0 || z >= wm.Height {
		return false
	}
	return !wm.blocked[z][x]
}

// Size returns the map dimensions.
func (wm *WalkMap) Size() (int, int) { return wm.Width, wm.Height }

// Rows renders the map back to text rows.
func (wm *WalkMap) Rows() []string {
	out := make([]string, wm.Height)
	for z := range out {
		b := make([]byte, wm.Width)
		for x := range b {
			if wm.blocked[z][x] {
				b[x] = '#'
			} else {
				b[x] = '.'
			}
		}
		out[z] = string(b)
	}
	return out
}
