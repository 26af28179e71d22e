// Package density bins runner positions into per-segment, per-time-bucket
// counts and converts them to areal density.
package density

import (
	"math"
	"sort"

	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/pace"
)

// Population holds one day's events, ordered by start time then name, with a
// trajectory per runner. It is read-only once built.
type Population struct {
	events []model.Event
	index  map[string]int
	tracks [][]pace.Trajectory
}

// NewPopulation orders events and anchors every runner's pace profile.
func NewPopulation(events []model.Event) *Population {
	evs := make([]model.Event, len(events))
	copy(evs, events)
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].StartMin != evs[j].StartMin {
			return evs[i].StartMin < evs[j].StartMin
		}
		return evs[i].Name < evs[j].Name
	})
	p := &Population{
		events: evs,
		index:  make(map[string]int, len(evs)),
		tracks: make([][]pace.Trajectory, len(evs)),
	}
	for i, e := range evs {
		p.index[e.Name] = i
		p.tracks[i] = make([]pace.Trajectory, len(e.Runners))
		for j, r := range e.Runners {
			p.tracks[i][j] = r.Trajectory(e)
		}
	}
	return p
}

// Events returns the ordered events.
func (p *Population) Events() []model.Event { return p.events }

// Names returns the ordered event names.
func (p *Population) Names() []string {
	names := make([]string, len(p.events))
	for i, e := range p.events {
		names[i] = e.Name
	}
	return names
}

// EventIndex returns the position of event name.
func (p *Population) EventIndex(name string) (int, bool) {
	i, ok := p.index[name]
	return i, ok
}

// Tracks returns the trajectories of event i, in runner order.
func (p *Population) Tracks(i int) []pace.Trajectory { return p.tracks[i] }

// Bib returns the bib of runner r of event e.
func (p *Population) Bib(e, r int) string { return p.events[e].Runners[r].Bib }

// Runners returns the total number of runners.
func (p *Population) Runners() int {
	n := 0
	for _, t := range p.tracks {
		n += len(t)
	}
	return n
}

// Horizon returns the earliest event start and the latest cutoff, in seconds.
func (p *Population) Horizon() (startSec, endSec float64) {
	if len(p.events) == 0 {
		return 0, 0
	}
	startSec, endSec = math.Inf(1), math.Inf(-1)
	for _, e := range p.events {
		startSec = min(startSec, e.StartSec())
		endSec = max(endSec, e.CutoffSec())
	}
	return startSec, endSec
}

// MaxSpeed returns the fastest speed of any runner, in km per second.
func (p *Population) MaxSpeed() float64 {
	best := 0.0
	for _, e := range p.events {
		for _, r := range e.Runners {
			best = max(best, r.Pace.MaxSpeed())
		}
	}
	return best / 60
}
