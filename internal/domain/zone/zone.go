// Package zone maps areal runner density to an ordinal risk zone.
package zone

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel kinds for classification errors.
var (
	ErrNegativeDensity   = errors.New("negative density")
	ErrInvalidThresholds = errors.New("invalid zone thresholds")
)

// Zone is an ordinal congestion class.
type Zone uint8

const (
	Green Zone = iota
	Amber
	Red
	DarkRed
)

// Count is the number of zones.
const Count = 4

var names = [Count]string{"green", "amber", "red", "dark_red"}

func (z Zone) String() string {
	if int(z) < Count {
		return names[z]
	}
	return fmt.Sprintf("zone(%d)", uint8(z))
}

// MarshalText renders the zone name.
func (z Zone) MarshalText() ([]byte, error) { return []byte(z.String()), nil }

// UnmarshalText parses a zone name.
func (z *Zone) UnmarshalText(b []byte) error {
	for i, n := range names {
		if n == string(b) {
			*z = Zone(i)
			return nil
		}
	}
	return fmt.Errorf("unknown zone %q", b)
}

// Thresholds are the lower bounds, in runners per square metre, of the
// Amber, Red and Dark-Red zones.
type Thresholds struct {
	Amber   float64
	Red     float64
	DarkRed float64
}

// DefaultThresholds returns 1.0 / 1.5 / 2.0 runners per m².
func DefaultThresholds() Thresholds {
	return Thresholds{Amber: 1.0, Red: 1.5, DarkRed: 2.0}
}

// Validate requires positive, strictly increasing bounds.
func (t Thresholds) Validate() error {
	if !(t.Amber > 0) || !(t.Red > t.Amber) || !(t.DarkRed > t.Red) || math.IsInf(t.DarkRed, 0) {
		return fmt.Errorf("%w: amber=%v red=%v dark_red=%v", ErrInvalidThresholds, t.Amber, t.Red, t.DarkRed)
	}
	return nil
}

// Classifier labels densities against fixed thresholds.
type Classifier struct {
	t Thresholds
}

// NewClassifier validates t and returns a classifier.
func NewClassifier(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{t: t}, nil
}

// Thresholds returns the bounds in use.
func (c *Classifier) Thresholds() Thresholds { return c.t }

// Classify returns the zone of density. Every non-negative density maps to
// exactly one zone; negative or NaN density is rejected.
func (c *Classifier) Classify(density float64) (Zone, error) {
	switch {
	case math.IsNaN(density) || density < 0:
		return Green, fmt.Errorf("%w: %v", ErrNegativeDensity, density)
	case density < c.t.Amber:
		return Green, nil
	case density < c.t.Red:
		return Amber, nil
	case density < c.t.DarkRed:
		return Red, nil
	default:
		return DarkRed, nil
	}
}
