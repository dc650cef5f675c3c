// Package predict finds upcoming passes of the tracked body over the
// station and resolves the station position, optionally from gpsd.
package predict

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/akhenakh/sgp4"

	"github.com/large-farva/syzygy/internal/geo"
	"github.com/large-farva/syzygy/internal/observer"
	"github.com/large-farva/syzygy/internal/orbit"
)

// Pass describes a single predicted overhead pass, from acquisition of
// signal (AOS) through loss of signal (LOS). Angles are degrees.
type Pass struct {
	Target         string
	NoradID        int
	AOS            time.Time
	LOS            time.Time
	MaxElev        float64
	MaxElevTime    time.Time
	MaxElevAzimuth float64
	AOSAzimuth     float64
	LOSAzimuth     float64
	Duration       time.Duration
}

// Options tunes the pass search.
type Options struct {
	MinElevation float64       // degrees; passes peaking lower are dropped
	Lookahead    time.Duration // search window
	Step         time.Duration // propagation step, whole seconds
	Logger       *slog.Logger
}

// Predictor runs the pass search for one element set.
type Predictor struct {
	tle    *sgp4.TLE
	name   string
	satnum int
	opts   Options
	log    *slog.Logger
}

// NewPredictor parses el for the pass search. A set the search engine
// rejects is reported as orbit.ErrInvalidElementSet.
func NewPredictor(el *orbit.Elements, opts Options) (*Predictor, error) {
	if el == nil {
		return nil, fmt.Errorf("%w: nil elements", orbit.ErrInvalidElementSet)
	}
	tle, err := sgp4.ParseTLE(strings.Join([]string{el.Name, el.Line1, el.Line2}, "\n"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", orbit.ErrInvalidElementSet, err)
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = 24 * time.Hour
	}
	if opts.Step < time.Second {
		opts.Step = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Predictor{
		tle:    tle,
		name:   el.Name,
		satnum: el.SatNum,
		opts:   opts,
		log:    opts.Logger,
	}, nil
}

// Passes returns up to count passes over loc starting at from, sorted by
// AOS. count <= 0 returns every pass in the lookahead window.
func (p *Predictor) Passes(loc observer.Location, from time.Time, count int) ([]Pass, error) {
	from = from.UTC()
	end := from.Add(p.opts.Lookahead)

	raw, err := p.tle.GeneratePasses(
		geo.Deg(loc.Latitude), geo.Deg(loc.Longitude), loc.Altitude,
		from, end,
		int(p.opts.Step/time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("generate passes for %s: %w", p.name, err)
	}

	var passes []Pass
	for _, rp := range raw {
		if rp.MaxElevation < p.opts.MinElevation {
			continue
		}
		passes = append(passes, Pass{
			Target:         p.name,
			NoradID:        p.satnum,
			AOS:            rp.AOS.UTC(),
			LOS:            rp.LOS.UTC(),
			MaxElev:        rp.MaxElevation,
			MaxElevTime:    rp.MaxElevationTime.UTC(),
			MaxElevAzimuth: rp.MaxElevationAz,
			AOSAzimuth:     rp.AOSAzimuth,
			LOSAzimuth:     rp.LOSAzimuth,
			Duration:       rp.Duration,
		})
	}

	sort.Slice(passes, func(i, j int) bool {
		return passes[i].AOS.Before(passes[j].AOS)
	})
	if count > 0 && len(passes) > count {
		passes = passes[:count]
	}

	p.log.Debug("passes computed",
		"target", p.name,
		"found", len(passes),
		"window", p.opts.Lookahead,
		"min_elevation", p.opts.MinElevation,
	)
	return passes, nil
}
