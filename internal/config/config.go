package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/hwmonitor/bridge/internal/link"
	"github.com/hwmonitor/bridge/internal/rtss"
	"github.com/hwmonitor/bridge/internal/sensors"
)

// Build-time variables injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Sensor backends accepted by the Sensors setting.
const (
	SensorsLHM  = "lhm"
	SensorsHost = "host"
	SensorsMock = "mock"
	SensorsNone = "none"
)

// Config holds the bridge configuration.
type Config struct {
	// Port pins the display to a serial port name, skipping VID/PID matching
	// when that port is present.
	Port string `yaml:"port"`

	// BaudRate is the serial line speed.
	BaudRate int `yaml:"baud"`

	// Interval is the pause between frames.
	Interval time.Duration `yaml:"interval"`

	// BootSettle is the wait after the first open while the display boots.
	BootSettle time.Duration `yaml:"boot_settle"`

	// ReconnectCooldown is the wait between losing the port and rediscovery.
	ReconnectCooldown time.Duration `yaml:"reconnect_cooldown"`

	// ReconnectSettle is the wait after a successful reopen.
	ReconnectSettle time.Duration `yaml:"reconnect_settle"`

	// SHMName is the frame-rate overlay's shared memory region.
	SHMName string `yaml:"shm_name"`

	// Sensors selects the hardware sensor backend: lhm, host, mock or none.
	Sensors string `yaml:"sensors"`

	// LHMURL is the LibreHardwareMonitor web server data endpoint.
	LHMURL string `yaml:"lhm_url"`

	// StatusAddr enables the local status API when non-empty.
	StatusAddr string `yaml:"status_addr"`

	// LogDir enables a rotated log file when non-empty.
	LogDir        string `yaml:"log_dir"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`

	// Debug enables debug logging and the mock sensor backend.
	Debug bool `yaml:"debug"`

	// ListPorts asks for the serial port listing instead of a run.
	ListPorts bool `yaml:"-"`

	// File is the YAML file the config was read from, if any.
	File string `yaml:"-"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	backend := SensorsHost
	if runtime.GOOS == "windows" {
		backend = SensorsLHM
	}
	return &Config{
		BaudRate:          link.DefaultBaudRate,
		Interval:          time.Second,
		BootSettle:        2 * time.Second,
		ReconnectCooldown: 2 * time.Second,
		ReconnectSettle:   time.Second,
		SHMName:           rtss.DefaultRegionName,
		Sensors:           backend,
		LHMURL:            sensors.DefaultLHMURL,
		LogMaxSizeMB:      10,
		LogMaxBackups:     3,
		LogMaxAgeDays:     28,
	}
}

// Timing converts the delay settings for the transmission loop.
func (c *Config) Timing() link.Timing {
	return link.Timing{
		Interval:        c.Interval,
		BootSettle:      c.BootSettle,
		Cooldown:        c.ReconnectCooldown,
		ReconnectSettle: c.ReconnectSettle,
	}
}

// Load builds the configuration from defaults, an optional YAML file
// (--config or HWMON_CONFIG), HWMON_* environment variables and finally
// command-line flags, each overriding the previous. It returns
// pflag.ErrHelp when -h was given.
func Load(args []string) (*Config, error) {
	return load(args, os.Getenv)
}

func load(args []string, getenv func(string) string) (*Config, error) {
	fs, flags := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	path := getenv("HWMON_CONFIG")
	if fs.Changed("config") {
		path = flags.File
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	fs.Visit(func(f *pflag.Flag) {
		cfg.applyFlag(f.Name, flags)
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Usage returns the flag help text.
func Usage() string {
	fs, _ := newFlagSet()
	return fs.FlagUsages()
}

func newFlagSet() (*pflag.FlagSet, *Config) {
	d := DefaultConfig()
	v := &Config{}

	fs := pflag.NewFlagSet("hwmonitor", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&v.File, "config", "", "path to a YAML config file")
	fs.StringVarP(&v.Port, "port", "p", "", "serial port of the display (default: auto-detect)")
	fs.IntVar(&v.BaudRate, "baud", d.BaudRate, "serial baud rate")
	fs.DurationVar(&v.Interval, "interval", d.Interval, "time between frames")
	fs.DurationVar(&v.BootSettle, "boot-settle", d.BootSettle, "wait after first open while the display boots")
	fs.DurationVar(&v.ReconnectCooldown, "reconnect-cooldown", d.ReconnectCooldown, "wait after a write failure before rediscovery")
	fs.DurationVar(&v.ReconnectSettle, "reconnect-settle", d.ReconnectSettle, "wait after a successful reconnect")
	fs.StringVar(&v.SHMName, "shm-name", d.SHMName, "frame-rate overlay shared memory name")
	fs.StringVar(&v.Sensors, "sensors", d.Sensors, "sensor backend: lhm, host, mock or none")
	fs.StringVar(&v.LHMURL, "lhm-url", d.LHMURL, "LibreHardwareMonitor data.json URL")
	fs.StringVar(&v.StatusAddr, "status-addr", "", "listen address of the status API (default: disabled)")
	fs.StringVar(&v.LogDir, "log-dir", "", "directory for a rotated log file (default: stderr only)")
	fs.IntVar(&v.LogMaxSizeMB, "log-max-size", d.LogMaxSizeMB, "log file size in MB before rotation")
	fs.IntVar(&v.LogMaxBackups, "log-max-backups", d.LogMaxBackups, "rotated log files to keep")
	fs.IntVar(&v.LogMaxAgeDays, "log-max-age", d.LogMaxAgeDays, "days to keep rotated log files")
	fs.BoolVar(&v.Debug, "debug", false, "debug logging and mock sensors")
	fs.BoolVar(&v.ListPorts, "list-ports", false, "list serial ports and exit")
	return fs, v
}

func (c *Config) applyFlag(name string, f *Config) {
	switch name {
	case "config":
		c.File = f.File
	case "port":
		c.Port = f.Port
	case "baud":
		c.BaudRate = f.BaudRate
	case "interval":
		c.Interval = f.Interval
	case "boot-settle":
		c.BootSettle = f.BootSettle
	case "reconnect-cooldown":
		c.ReconnectCooldown = f.ReconnectCooldown
	case "reconnect-settle":
		c.ReconnectSettle = f.ReconnectSettle
	case "shm-name":
		c.SHMName = f.SHMName
	case "sensors":
		c.Sensors = f.Sensors
	case "lhm-url":
		c.LHMURL = f.LHMURL
	case "status-addr":
		c.StatusAddr = f.StatusAddr
	case "log-dir":
		c.LogDir = f.LogDir
	case "log-max-size":
		c.LogMaxSizeMB = f.LogMaxSizeMB
	case "log-max-backups":
		c.LogMaxBackups = f.LogMaxBackups
	case "log-max-age":
		c.LogMaxAgeDays = f.LogMaxAgeDays
	case "debug":
		c.Debug = f.Debug
	case "list-ports":
		c.ListPorts = f.ListPorts
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.File = path
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("HWMON_PORT", &c.Port)
	num("HWMON_BAUD", &c.BaudRate)
	dur("HWMON_INTERVAL", &c.Interval)
	dur("HWMON_BOOT_SETTLE", &c.BootSettle)
	dur("HWMON_RECONNECT_COOLDOWN", &c.ReconnectCooldown)
	dur("HWMON_RECONNECT_SETTLE", &c.ReconnectSettle)
	str("HWMON_SHM_NAME", &c.SHMName)
	str("HWMON_SENSORS", &c.Sensors)
	str("HWMON_LHM_URL", &c.LHMURL)
	str("HWMON_STATUS_ADDR", &c.StatusAddr)
	str("HWMON_LOG_DIR", &c.LogDir)
	num("HWMON_LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	num("HWMON_LOG_MAX_BACKUPS", &c.LogMaxBackups)
	num("HWMON_LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)

	if v := getenv("HWMON_DEBUG"); v != "" {
		c.Debug = v == "true" || v == "1"
	}

	return errors.Join(errs...)
}

// Validate rejects settings the bridge cannot run with.
func (c *Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud rate must be positive, got %d", c.BaudRate)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	for name, d := range map[string]time.Duration{
		"boot_settle":        c.BootSettle,
		"reconnect_cooldown": c.ReconnectCooldown,
		"reconnect_settle":   c.ReconnectSettle,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	switch c.Sensors {
	case SensorsLHM, SensorsHost, SensorsMock, SensorsNone:
	default:
		return fmt.Errorf("unknown sensor backend %q (expected lhm, host, mock or none)", c.Sensors)
	}
	if c.Sensors == SensorsLHM && c.LHMURL == "" {
		return errors.New("lhm_url is required for the lhm sensor backend")
	}
	if c.SHMName == "" {
		return errors.New("shm_name must not be empty")
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 || c.LogMaxAgeDays < 0 {
		return errors.New("log rotation limits must not be negative")
	}
	return nil
}
