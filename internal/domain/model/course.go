// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Direction tells whether runners traverse a segment one way or both ways.
type Direction string

const (
	DirectionUni Direction = "uni"
	DirectionBi  Direction = "bi"
)

// ParseDirection accepts "uni" or "bi", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionUni:
		return DirectionUni, nil
	case DirectionBi:
		return DirectionBi, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Segment is a fixed chainage range of the course used as the unit of
// density computation. An empty Day means the row applies to every day.
type Segment struct {
	ID        string
	Label     string
	FromKM    float64
	ToKM      float64
	WidthM    float64
	Direction Direction
	Day       string
}

// LengthKM returns the segment length.
func (s Segment) LengthKM() float64 { return s.ToKM - s.FromKM }

// AreaM2 returns width times length in square metres.
func (s Segment) AreaM2() float64 { return s.WidthM * s.LengthKM() * 1000 }

// Contains reports whether km lies in the half-open range [FromKM, ToKM).
func (s Segment) Contains(km float64) bool { return km >= s.FromKM && km < s.ToKM }

// Overlap declares that two events' chainage windows on a segment can
// physically coincide.
type Overlap struct {
	SegmentID string
	Label     string
	EventA    string
	EventB    string
	FromKMA   float64
	ToKMA     float64
	FromKMB   float64
	ToKMB     float64
	Direction Direction
	WidthM    float64 // 0 when the row leaves width to the segment table
}

// Intersection returns the chainage range shared by both sub-ranges; ok is
// false when they do not intersect.
func (o Overlap) Intersection() (from, to float64, ok bool) {
	from = max(o.FromKMA, o.FromKMB)
	to = min(o.ToKMA, o.ToKMB)
	return from, to, to > from
}

// Pair returns a stable key for the declared pair on its segment.
func (o Overlap) Pair() string { return o.SegmentID + "|" + o.EventA + "|" + o.EventB }
