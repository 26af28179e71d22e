package loadgen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
)

// Generation ranges.
const (
	minSegments    = 3
	maxSegments    = 6
	minSegmentKM   = 0.4
	segmentRangeKM = 1.6
	minWidthM      = 2.0
	widthRangeM    = 6.0
	minPace        = 4.0
	paceRange      = 4.0
	maxStartOffset = 120.0
	firstGunMin    = 420.0
	waveGapMin     = 20.0
	bucketSeconds  = 60
	spatialStepKM  = 0.02
)

var eventNames = []string{"Full", "Half", "10K", "5K"}

// Generate returns n scenarios drawn from seed. Each has a contiguous
// course, two to four waves on one day and one overlap declaration per
// bi-directional segment.
func Generate(n, runners int, seed uint64) []Scenario {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]Scenario, n)
	for i := range out {
		out[i] = generateScenario(rng, runners)
	}
	return out
}

func generateScenario(rng *rand.Rand, runners int) Scenario {
	sc := Scenario{Resolution: Resolution{SpatialStepKM: spatialStepKM, TimeWindowSeconds: bucketSeconds}}

	segments := minSegments + rng.IntN(maxSegments-minSegments+1)
	at := 0.0
	for s := range segments {
		length := round3(minSegmentKM + rng.Float64()*segmentRangeKM)
		dir := "uni"
		if rng.IntN(2) == 0 {
			dir = "bi"
		}
		sc.Segments = append(sc.Segments, Segment{
			ID:        "S" + strconv.Itoa(s+1),
			Label:     fmt.Sprintf("Segment %d", s+1),
			FromKM:    at,
			ToKM:      round3(at + length),
			WidthM:    round3(minWidthM + rng.Float64()*widthRangeM),
			Direction: dir,
		})
		at = round3(at + length)
	}

	waves := 2 + rng.IntN(len(eventNames)-1)
	for w := range waves {
		ev := Event{
			Name:        eventNames[w],
			Day:         "sat",
			StartTime:   firstGunMin + float64(w)*waveGapMin*rng.Float64(),
			DurationMin: math.Ceil(at * (minPace + paceRange) * 1.2),
			DistanceKM:  at,
			Runners:     make([]Runner, runners),
		}
		for r := range ev.Runners {
			ev.Runners[r] = Runner{
				ID:          fmt.Sprintf("%c%04d", ev.Name[0], r),
				Pace:        round3(minPace + rng.Float64()*paceRange),
				StartOffset: math.Round(rng.Float64() * maxStartOffset),
			}
		}
		sc.Events = append(sc.Events, ev)
	}

	for _, seg := range sc.Segments {
		if seg.Direction != "bi" {
			continue
		}
		sc.Overlaps = append(sc.Overlaps, Overlap{
			SegmentID: seg.ID,
			EventA:    sc.Events[0].Name,
			EventB:    sc.Events[1].Name,
			FromKMA:   seg.FromKM,
			ToKMA:     seg.ToKM,
			FromKMB:   seg.FromKM,
			ToKMB:     seg.ToKM,
		})
	}
	return sc
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
