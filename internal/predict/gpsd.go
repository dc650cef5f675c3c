package predict

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/large-farva/syzygy/internal/config"
	"github.com/large-farva/syzygy/internal/geo"
	"github.com/large-farva/syzygy/internal/observer"
)

// Fix is a position report from gpsd. Latitude and longitude are degrees,
// altitude meters above mean sea level.
type Fix struct {
	Lat float64
	Lon float64
	Alt float64
}

// tpvReport is the subset of a gpsd TPV JSON object we need.
type tpvReport struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"altMSL"`
}

// FixFromGPSD connects to gpsd at addr, enables watching, and reads TPV
// reports until a 2D or 3D fix arrives or timeout elapses. A 2D fix
// reports zero altitude.
func FixFromGPSD(ctx context.Context, addr string, timeout time.Duration) (Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Fix{}, fmt.Errorf("gpsd connect: %w", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return Fix{}, fmt.Errorf("gpsd set deadline: %w", err)
	}

	if _, err := fmt.Fprint(conn, `?WATCH={"enable":true,"json":true};`); err != nil {
		return Fix{}, fmt.Errorf("gpsd watch: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class != "TPV" || report.Mode < 2 {
			continue
		}
		fix := Fix{Lat: report.Lat, Lon: report.Lon}
		if report.Mode >= 3 {
			fix.Alt = report.Alt
		}
		return fix, nil
	}

	if err := scanner.Err(); err != nil {
		return Fix{}, fmt.Errorf("gpsd read: %w", err)
	}
	return Fix{}, fmt.Errorf("gpsd: no fix obtained within %v", timeout)
}

// ResolveStation builds the observer location from cfg. With use_gpsd on
// it asks gpsd first and falls back to the configured coordinates; the
// second result names which source was used.
func ResolveStation(ctx context.Context, cfg config.StationConfig, logger *slog.Logger) (observer.Location, string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lat, lon, alt, source := cfg.Latitude, cfg.Longitude, cfg.Altitude, "config"

	if cfg.UseGPSD {
		fix, err := FixFromGPSD(ctx, cfg.GPSDHost, 10*time.Second)
		if err != nil {
			logger.Warn("gpsd failed, falling back to config", "host", cfg.GPSDHost, "err", err)
		} else {
			lat, lon, alt, source = fix.Lat, fix.Lon, fix.Alt, "gpsd"
			logger.Info("location from gpsd", "lat", fix.Lat, "lon", fix.Lon, "alt", fix.Alt)
		}
	}

	loc, err := observer.NewLocation(cfg.Name, geo.Rad(lat), geo.Rad(lon), alt,
		observer.WithMinAltitude(cfg.MinAltitude))
	if err != nil {
		return observer.Location{}, source, err
	}
	return loc, source, nil
}
