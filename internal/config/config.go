// Package config handles loading, defaulting, and validation of the syzygy
// configuration. Values are layered: built-in defaults, then the TOML file,
// then SYZYGY_* environment variables. Every section maps to a typed struct
// so the rest of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data    DataConfig    `koanf:"data"    json:"data"`
	Logging LoggingConfig `koanf:"logging" json:"logging"`
	Server  ServerConfig  `koanf:"server"  json:"server"`
	Console ConsoleConfig `koanf:"console" json:"console"`
	Station StationConfig `koanf:"station" json:"station"`
	Target  TargetConfig  `koanf:"target"  json:"target"`
	Alert   AlertConfig   `koanf:"alert"   json:"alert"`
	Notify  NotifyConfig  `koanf:"notify"  json:"notify"`
	Predict PredictConfig `koanf:"predict" json:"predict"`
}

type DataConfig struct {
	Root string `koanf:"root" json:"root"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"  json:"level"`
	Format string `koanf:"format" json:"format"`
}

type ServerConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled"`
	Bind    string `koanf:"bind"    json:"bind"`
}

type ConsoleConfig struct {
	Enabled bool `koanf:"enabled" json:"enabled"`
}

// StationConfig places the observer. Latitude and longitude are degrees
// here and converted to radians when the observer is built.
type StationConfig struct {
	Name         string  `koanf:"name"          json:"name"`
	Latitude     float64 `koanf:"latitude"      json:"latitude"`
	Longitude    float64 `koanf:"longitude"     json:"longitude"`
	Altitude     float64 `koanf:"altitude"      json:"altitude"`
	MinAltitude  float64 `koanf:"min_altitude"  json:"min_altitude"`
	MinElevation float64 `koanf:"min_elevation" json:"min_elevation"`
	UseGPSD      bool    `koanf:"use_gpsd"      json:"use_gpsd"`
	GPSDHost     string  `koanf:"gpsd_host"     json:"gpsd_host"`
}

// TargetConfig names the tracked body. Inline element lines win over a
// store lookup by NORAD ID.
type TargetConfig struct {
	Name     string `koanf:"name"      json:"name"`
	NoradID  int    `koanf:"norad_id"  json:"norad_id"`
	TLELine1 string `koanf:"tle_line1" json:"tle_line1"`
	TLELine2 string `koanf:"tle_line2" json:"tle_line2"`
	Gravity  string `koanf:"gravity"   json:"gravity"`
}

// AlertConfig drives the proximity loop. Thresholds are degrees.
type AlertConfig struct {
	PollInterval       time.Duration `koanf:"poll_interval"       json:"poll_interval"`
	AzimuthThreshold   float64       `koanf:"azimuth_threshold"   json:"azimuth_threshold"`
	ElevationThreshold float64       `koanf:"elevation_threshold" json:"elevation_threshold"`
	WrapAzimuth        bool          `koanf:"wrap_azimuth"        json:"wrap_azimuth"`
}

type NotifyConfig struct {
	Enabled  bool          `koanf:"enabled"   json:"enabled"`
	Endpoint string        `koanf:"endpoint"  json:"endpoint"`
	Token    string        `koanf:"token"     json:"-"`
	User     string        `koanf:"user"      json:"-"`
	Message  string        `koanf:"message"   json:"message"`
	Timeout  time.Duration `koanf:"timeout"   json:"timeout"`
	MaxTries uint          `koanf:"max_tries" json:"max_tries"`
}

type PredictConfig struct {
	TLEURL          string `koanf:"tle_url"           json:"tle_url"`
	TLERefreshHours int    `koanf:"tle_refresh_hours" json:"tle_refresh_hours"`
	LookaheadHours  int    `koanf:"lookahead_hours"   json:"lookahead_hours"`
	StepSeconds     int    `koanf:"step_seconds"      json:"step_seconds"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever neither the file nor the environment sets a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root: "/var/lib/syzygy",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Enabled: true,
			Bind:    "127.0.0.1:8080",
		},
		Console: ConsoleConfig{
			Enabled: true,
		},
		Station: StationConfig{
			Name:         "Me",
			Latitude:     41.6191,
			Longitude:    -83.5807,
			Altitude:     0,
			MinAltitude:  -500,
			MinElevation: 10,
			UseGPSD:      false,
			GPSDHost:     "localhost:2947",
		},
		Target: TargetConfig{
			Name:    "ISS",
			NoradID: 25544,
			Gravity: "wgs72",
		},
		Alert: AlertConfig{
			PollInterval:       time.Second,
			AzimuthThreshold:   1.0,
			ElevationThreshold: 1.0,
			WrapAzimuth:        false,
		},
		Notify: NotifyConfig{
			Enabled:  false,
			Endpoint: "https://api.pushover.net/1/messages.json",
			Message:  "NEARING SOLAR ECLIPSE",
			Timeout:  10 * time.Second,
			MaxTries: 3,
		},
		Predict: PredictConfig{
			TLEURL:          "https://celestrak.org/NORAD/elements/gp.php?GROUP=stations&FORMAT=tle",
			TLERefreshHours: 24,
			LookaheadHours:  24,
			StepSeconds:     10,
		},
	}
}

// Validate checks cross-field constraints. Load calls it; callers that
// build a Config by hand should too.
func Validate(cfg Config) error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(cfg.Data.Root != "", "data.root must not be empty")
	check(!cfg.Server.Enabled || cfg.Server.Bind != "", "server.bind must not be empty")
	check(validLevel(cfg.Logging.Level), "logging.level must be debug, info, warn or error")
	check(cfg.Logging.Format == "text" || cfg.Logging.Format == "json", "logging.format must be text or json")

	check(finite(cfg.Station.Latitude) && cfg.Station.Latitude >= -90 && cfg.Station.Latitude <= 90,
		"station.latitude must be between -90 and 90")
	check(finite(cfg.Station.Longitude) && cfg.Station.Longitude >= -180 && cfg.Station.Longitude <= 360,
		"station.longitude must be between -180 and 360")
	check(cfg.Station.Altitude >= cfg.Station.MinAltitude, "station.altitude must be >= station.min_altitude")
	check(cfg.Station.MinElevation >= 0 && cfg.Station.MinElevation <= 90,
		"station.min_elevation must be between 0 and 90")
	check(!cfg.Station.UseGPSD || cfg.Station.GPSDHost != "", "station.gpsd_host must be set when use_gpsd is on")

	hasLines := cfg.Target.TLELine1 != "" || cfg.Target.TLELine2 != ""
	check(!hasLines || (cfg.Target.TLELine1 != "" && cfg.Target.TLELine2 != ""),
		"target.tle_line1 and target.tle_line2 must be set together")
	check(hasLines || cfg.Target.NoradID > 0, "target needs tle_line1/tle_line2 or a norad_id")
	g := strings.ToLower(cfg.Target.Gravity)
	check(g == "" || g == "wgs72" || g == "wgs84", "target.gravity must be wgs72 or wgs84")

	check(cfg.Alert.PollInterval > 0, "alert.poll_interval must be > 0")
	check(cfg.Alert.AzimuthThreshold > 0 && cfg.Alert.AzimuthThreshold < 180,
		"alert.azimuth_threshold must be between 0 and 180")
	check(cfg.Alert.ElevationThreshold > 0 && cfg.Alert.ElevationThreshold < 180,
		"alert.elevation_threshold must be between 0 and 180")

	if cfg.Notify.Enabled {
		check(cfg.Notify.Endpoint != "", "notify.endpoint must not be empty")
		check(cfg.Notify.Token != "", "notify.token must be set when notify is enabled")
		check(cfg.Notify.User != "", "notify.user must be set when notify is enabled")
		check(cfg.Notify.Message != "", "notify.message must not be empty")
		check(cfg.Notify.Timeout > 0, "notify.timeout must be > 0")
		check(cfg.Notify.MaxTries >= 1, "notify.max_tries must be >= 1")
	}

	check(cfg.Predict.TLERefreshHours >= 1, "predict.tle_refresh_hours must be >= 1")
	check(cfg.Predict.LookaheadHours >= 1, "predict.lookahead_hours must be >= 1")
	check(cfg.Predict.StepSeconds >= 1, "predict.step_seconds must be >= 1")

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func validLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
