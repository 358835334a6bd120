package transform

import "image"

// border is one traced boundary of a binary image.
type border struct {
	Points []image.Point
	// Hole is set for boundaries between a foreground region and a hole inside it.
	Hole bool
	// Parent is the index of the enclosing border, -1 for top-level borders.
	Parent int
}

// neighbour directions, counterclockwise starting east (y grows downwards)
var directions = [8]image.Point{
	{X: 1, Y: 0}, {X: 1, Y: -1}, {X: 0, Y: -1}, {X: -1, Y: -1},
	{X: -1, Y: 0}, {X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
}

const (
	dirEast = 0
	dirWest = 4
)

// findContours extracts outer and hole borders of all non-zero regions with
// their nesting, using Suzuki-Abe border following. Pixels outside the image
// are background.
func findContours(bin []uint8, w, h int) []border {
	pw, ph := w+2, h+2
	f := make([]int32, pw*ph)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if bin[y*w+x] != 0 {
				f[(y+1)*pw+x+1] = 1
			}
		}
	}

	var offsets [8]int
	for d, dir := range directions {
		offsets[d] = dir.Y*pw + dir.X
	}

	type borderInfo struct {
		hole   bool
		parent int32
	}
	// index 0 is unused, 1 is the image frame
	infos := []borderInfo{{}, {hole: true}}
	var out []border
	nbd := int32(1)

	for i := 1; i < ph-1; i++ {
		lnbd := int32(1)
		for j := 1; j < pw-1; j++ {
			p := i*pw + j
			v := f[p]
			if v == 0 {
				continue
			}

			start, hole, from := false, false, 0
			if v == 1 && f[p-1] == 0 {
				start, from = true, dirWest
			} else if v >= 1 && f[p+1] == 0 {
				start, hole, from = true, true, dirEast
				if v > 1 {
					lnbd = v
				}
			}

			if start {
				nbd++
				prev := infos[lnbd]
				parent := lnbd
				if hole == prev.hole {
					parent = prev.parent
				}
				infos = append(infos, borderInfo{hole: hole, parent: parent})

				pts := followBorder(f, offsets, pw, p, from, nbd)
				out = append(out, border{Points: pts, Hole: hole, Parent: int(parent) - 2})
			}

			if v := f[p]; v != 1 {
				if v < 0 {
					v = -v
				}
				lnbd = v
			}
		}
	}
	return out
}

// followBorder traces the border starting at p0, whose background neighbour
// lies in direction from, and labels it with nbd.
func followBorder(f []int32, offsets [8]int, pw, p0, from int, nbd int32) []image.Point {
	toPoint := func(p int) image.Point {
		return image.Point{X: p%pw - 1, Y: p/pw - 1}
	}
	dirOf := func(center, q int) int {
		for d, o := range offsets {
			if center+o == q {
				return d
			}
		}
		return 0
	}

	// clockwise search for the first foreground neighbour
	p1 := -1
	for k := 0; k < 8; k++ {
		d := (from - k + 8) % 8
		if f[p0+offsets[d]] != 0 {
			p1 = p0 + offsets[d]
			break
		}
	}
	if p1 < 0 {
		f[p0] = -nbd
		return []image.Point{toPoint(p0)}
	}

	var pts []image.Point
	p2, p3 := p1, p0
	for {
		pts = append(pts, toPoint(p3))

		// counterclockwise search starting after p2
		d0 := dirOf(p3, p2)
		eastIsBackground := false
		p4 := p2
		for k := 1; k <= 8; k++ {
			d := (d0 + k) % 8
			q := p3 + offsets[d]
			if f[q] != 0 {
				p4 = q
				break
			}
			if d == dirEast {
				eastIsBackground = true
			}
		}

		if eastIsBackground {
			f[p3] = -nbd
		} else if f[p3] == 1 {
			f[p3] = nbd
		}

		if p4 == p0 && p3 == p1 {
			return pts
		}
		p2, p3 = p3, p4
	}
}

// approxSimple drops the interior points of horizontal, vertical and
// diagonal runs of a closed chain, keeping only the corners.
func approxSimple(pts []image.Point) []image.Point {
	n := len(pts)
	if n <= 2 {
		return pts
	}
	var out []image.Point
	for i := 0; i < n; i++ {
		prev := pts[(i+n-1)%n]
		next := pts[(i+1)%n]
		in := pts[i].Sub(prev)
		outDir := next.Sub(pts[i])
		if in != outDir {
			out = append(out, pts[i])
		}
	}
	if len(out) == 0 {
		return pts[:1]
	}
	return out
}
