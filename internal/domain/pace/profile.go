// Package pace models how far a runner has travelled after a given elapsed
// time. A Profile is a closed set of variants (constant pace, cumulative
// table); a Trajectory anchors a Profile at a start time with a cutoff.
package pace

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Profile.
type Kind uint8

const (
	// KindConstant is a single pace held for the whole course.
	KindConstant Kind = iota + 1
	// KindTable is a cumulative distance/elapsed-time table.
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindTable:
		return "table"
	default:
		return "unknown"
	}
}

// Point is one row of a cumulative table: the runner reaches KM after Minutes.
type Point struct {
	KM      float64
	Minutes float64
}

// Band holds a pace over the chainage interval [FromKM, ToKM).
type Band struct {
	FromKM   float64
	ToKM     float64
	MinPerKM float64
}

// Profile is a pace profile. The zero value is invalid; build one with
// Constant, Table or Splits.
type Profile struct {
	kind     Kind
	minPerKM float64
	points   []Point
}

// Constant returns a profile holding minPerKM minutes per kilometre.
func Constant(minPerKM float64) (Profile, error) {
	if !(minPerKM > 0) || math.IsInf(minPerKM, 0) {
		return Profile{}, fmt.Errorf("%w: %v min/km", ErrInvalidPace, minPerKM)
	}
	return Profile{kind: KindConstant, minPerKM: minPerKM}, nil
}

// Table returns a profile from cumulative points. The first point must be
// (0, 0) and both coordinates must strictly increase.
func Table(points []Point) (Profile, error) {
	if len(points) < 2 {
		return Profile{}, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidTable, len(points))
	}
	if points[0].KM != 0 || points[0].Minutes != 0 {
		return Profile{}, fmt.Errorf("%w: first point must be (0,0)", ErrInvalidTable)
	}
	for i := 1; i < len(points); i++ {
		p, q := points[i-1], points[i]
		if !(q.KM > p.KM) || !(q.Minutes > p.Minutes) || math.IsInf(q.KM, 0) || math.IsInf(q.Minutes, 0) {
			return Profile{}, fmt.Errorf("%w: point %d (%v km, %v min) does not increase", ErrInvalidTable, i, q.KM, q.Minutes)
		}
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return Profile{kind: KindTable, points: cp}, nil
}

// Splits compiles contiguous pace bands starting at 0 km into a table profile.
func Splits(bands []Band) (Profile, error) {
	if len(bands) == 0 {
		return Profile{}, fmt.Errorf("%w: no bands", ErrInvalidTable)
	}
	const eps = 1e-9
	points := make([]Point, 0, len(bands)+1)
	points = append(points, Point{})
	at := 0.0
	for i, b := range bands {
		if math.Abs(b.FromKM-at) > eps {
			return Profile{}, fmt.Errorf("%w: band %d starts at %v km, want %v", ErrInvalidTable, i, b.FromKM, at)
		}
		if !(b.ToKM > b.FromKM) {
			return Profile{}, fmt.Errorf("%w: band %d is empty", ErrInvalidTable, i)
		}
		if !(b.MinPerKM > 0) {
			return Profile{}, fmt.Errorf("%w: band %d pace %v", ErrInvalidPace, i, b.MinPerKM)
		}
		last := points[len(points)-1]
		points = append(points, Point{KM: b.ToKM, Minutes: last.Minutes + (b.ToKM-b.FromKM)*b.MinPerKM})
		at = b.ToKM
	}
	return Table(points)
}

// Kind reports the variant.
func (p Profile) Kind() Kind { return p.kind }

// IsZero reports whether p was never built.
func (p Profile) IsZero() bool { return p.kind == 0 }

// Distance returns the kilometres covered after elapsed minutes. It is
// continuous and non-decreasing; negative elapsed time yields 0.
func (p Profile) Distance(minutes float64) float64 {
	if minutes <= 0 {
		return 0
	}
	switch p.kind {
	case KindConstant:
		return minutes / p.minPerKM
	case KindTable:
		pts := p.points
		// first index whose Minutes exceeds the elapsed time
		i := sort.Search(len(pts), func(i int) bool { return pts[i].Minutes > minutes })
		if i == len(pts) {
			a, b := pts[len(pts)-2], pts[len(pts)-1]
			pace := (b.Minutes - a.Minutes) / (b.KM - a.KM)
			return b.KM + (minutes-b.Minutes)/pace
		}
		a, b := pts[i-1], pts[i]
		return a.KM + (minutes-a.Minutes)*(b.KM-a.KM)/(b.Minutes-a.Minutes)
	default:
		return 0
	}
}

// Elapsed returns the minutes needed to reach km; the inverse of Distance.
func (p Profile) Elapsed(km float64) float64 {
	if km <= 0 {
		return 0
	}
	switch p.kind {
	case KindConstant:
		return km * p.minPerKM
	case KindTable:
		pts := p.points
		i := sort.Search(len(pts), func(i int) bool { return pts[i].KM > km })
		if i == len(pts) {
			a, b := pts[len(pts)-2], pts[len(pts)-1]
			pace := (b.Minutes - a.Minutes) / (b.KM - a.KM)
			return b.Minutes + (km-b.KM)*pace
		}
		a, b := pts[i-1], pts[i]
		return a.Minutes + (km-a.KM)*(b.Minutes-a.Minutes)/(b.KM-a.KM)
	default:
		return math.Inf(1)
	}
}

// MaxSpeed returns the fastest speed the profile reaches, in km per minute.
func (p Profile) MaxSpeed() float64 {
	switch p.kind {
	case KindConstant:
		return 1 / p.minPerKM
	case KindTable:
		best := 0.0
		for i := 1; i < len(p.points); i++ {
			a, b := p.points[i-1], p.points[i]
			if s := (b.KM - a.KM) / (b.Minutes - a.Minutes); s > best {
				best = s
			}
		}
		return best
	default:
		return 0
	}
}

// String renders a stable textual form, used for fingerprints.
func (p Profile) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	switch p.kind {
	case KindConstant:
		return "constant:" + f(p.minPerKM)
	case KindTable:
		parts := make([]string, len(p.points))
		for i, pt := range p.points {
			parts[i] = f(pt.KM) + "/" + f(pt.Minutes)
		}
		return "table:" + strings.Join(parts, ",")
	default:
		return "unset"
	}
}
