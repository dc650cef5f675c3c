// Package console renders alert-loop frames as a fixed block at the top of
// a terminal, redrawn in place each iteration.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/large-farva/syzygy/internal/telemetry"
)

const (
	clearScreen = "\x1b[1;1H\x1b[2J"
	cursorHome  = "\x1b[0;0H"
	clearLine   = "\x1b[K"
)

// Renderer writes frames to an output stream.
type Renderer struct {
	mu      sync.Mutex
	w       io.Writer
	station string
	cleared bool
}

// New returns a renderer writing to w. station labels the header.
func New(w io.Writer, station string) *Renderer {
	return &Renderer{w: w, station: station}
}

// IsTerminal reports whether f looks like an interactive terminal.
func IsTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Render draws f. The screen is cleared on the first call only; later
// calls move the cursor home and overwrite the previous block.
func (r *Renderer) Render(f telemetry.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bw := bufio.NewWriter(r.w)
	if !r.cleared {
		bw.WriteString(clearScreen)
		r.cleared = true
	}
	bw.WriteString(cursorHome)

	line := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
		bw.WriteString(clearLine + "\n")
	}

	line("syzygy  station %s  %s  #%d  %s", r.station, f.Time, f.Iteration, f.State)
	line("")

	if t := f.Target; t != nil {
		line("%-6s lat %9.4f°  lon %9.4f°  alt %9.2f km", t.Name, t.Latitude, t.Longitude, t.Altitude)
		line("       az  %9.4f°  el  %9.4f°  apparent el %9.4f°", t.Azimuth, t.Elevation, t.ApparentElevation)
		line("       daz %9.5f°/s  del %9.5f°/s", t.AzimuthRate, t.ElevationRate)
		line("       range %11.3f km  range rate %8.4f km/s  %s", t.Range, t.RangeRate, horizon(t.Visible))
	} else {
		line("target unavailable: %s", f.Error)
		line("")
		line("")
		line("")
	}
	line("")

	if f.Sun != nil && f.Moon != nil {
		line("Sun    az  %9.4f°  el  %9.4f°", f.Sun.Azimuth, f.Sun.Elevation)
		line("Moon   az  %9.4f°  el  %9.4f°", f.Moon.Azimuth, f.Moon.Elevation)
		line("gap    az  %9.4f°  el  %9.4f°", f.AzimuthGap, f.ElevationGap)
	} else {
		line("")
		line("")
		line("")
	}

	return bw.Flush()
}

func horizon(visible bool) string {
	if visible {
		return "above horizon"
	}
	return "below horizon"
}
