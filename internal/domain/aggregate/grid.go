package aggregate

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/thomjeff/run-density/internal/domain/density"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/zone"
)

// StackedEvent names the combined row of a segment and bucket.
const StackedEvent = "*"

// Header lists the grid's CSV columns.
var Header = []string{"day", "segment_id", "bucket_index", "bucket_start_s", "clock", "event", "count", "density", "zone"}

// Grid is the binned segment × bucket × event artifact in columnar form.
// Rows are ordered by segment chainage, bucket time and event order, with
// the stacked row last within a bucket.
type Grid struct {
	Day      string
	Segment  []string
	Bucket   []int
	StartSec []float64
	Event    []string
	Count    []int
	Density  []float64
	Zone     []zone.Zone
}

// Len returns the number of rows.
func (g *Grid) Len() int { return len(g.Segment) }

func buildGrid(day string, res *density.Result, classifier *zone.Classifier, stacked bool) (*Grid, error) {
	tl := res.Timeline
	per := len(res.Events)
	if stacked {
		per++
	}
	n := len(res.Segments) * tl.Buckets * per
	g := &Grid{
		Day:      day,
		Segment:  make([]string, 0, n),
		Bucket:   make([]int, 0, n),
		StartSec: make([]float64, 0, n),
		Event:    make([]string, 0, n),
		Count:    make([]int, 0, n),
		Density:  make([]float64, 0, n),
		Zone:     make([]zone.Zone, 0, n),
	}
	add := func(seg string, b int, event string, count int, dens float64) error {
		z, err := classifier.Classify(dens)
		if err != nil {
			return err
		}
		g.Segment = append(g.Segment, seg)
		g.Bucket = append(g.Bucket, b)
		g.StartSec = append(g.StartSec, tl.BucketStart(b))
		g.Event = append(g.Event, event)
		g.Count = append(g.Count, count)
		g.Density = append(g.Density, dens)
		g.Zone = append(g.Zone, z)
		return nil
	}

	for s, seg := range res.Segments {
		for b := 0; b < tl.Buckets; b++ {
			for e, name := range res.Events {
				if err := add(seg.ID, b, name, res.Count(s, b, e), res.Density(s, b, e)); err != nil {
					return nil, err
				}
			}
			if stacked {
				if err := add(seg.ID, b, StackedEvent, res.Stacked(s, b), res.StackedDensity(s, b)); err != nil {
					return nil, err
				}
			}
		}
	}
	return g, nil
}

// WriteCSV writes the header and every row. Identical grids produce
// identical bytes.
func (g *Grid) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	row := make([]string, len(Header))
	for i := 0; i < g.Len(); i++ {
		row[0] = g.Day
		row[1] = g.Segment[i]
		row[2] = strconv.Itoa(g.Bucket[i])
		row[3] = strconv.FormatFloat(g.StartSec[i], 'f', -1, 64)
		row[4] = model.Clock(g.StartSec[i])
		row[5] = g.Event[i]
		row[6] = strconv.Itoa(g.Count[i])
		row[7] = strconv.FormatFloat(g.Density[i], 'f', 6, 64)
		row[8] = g.Zone[i].String()
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
