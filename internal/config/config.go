package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-ttparity/internal/device"
	"github.com/example/go-ttparity/internal/parity"
)

type Config struct {
	Device    DeviceConfig    `mapstructure:"device"`
	Parity    ParityConfig    `mapstructure:"parity"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Report    ReportConfig    `mapstructure:"report"`
	Profile   ProfileConfig   `mapstructure:"profile"`
	LogLevel  string          `mapstructure:"log_level"`
}

type DeviceConfig struct {
	Arch  string `mapstructure:"arch"`
	Index int    `mapstructure:"index"`
}

type ParityConfig struct {
	Mode           string  `mapstructure:"mode"`
	PCC            float64 `mapstructure:"pcc"`
	RTol           float64 `mapstructure:"rtol"`
	ATol           float64 `mapstructure:"atol"`
	MaxMag         float64 `mapstructure:"max_mag"`
	MaxMagFraction float64 `mapstructure:"max_mag_fraction"`
	AllcloseRTol   float64 `mapstructure:"allclose_rtol"`
	AllcloseATol   float64 `mapstructure:"allclose_atol"`
}

type ReferenceConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTAPIVersion  int    `mapstructure:"ort_api_version"`
}

type ReportConfig struct {
	Format          string `mapstructure:"format"`
	Path            string `mapstructure:"path"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

type ProfileConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	closeOpts := parity.DefaultCloseOptions()
	allclose := parity.DefaultAllcloseOptions()

	return Config{
		Device: DeviceConfig{
			Arch:  string(device.ArchGrayskull),
			Index: 0,
		},
		Parity: ParityConfig{
			Mode:           string(parity.ModeCombined),
			PCC:            parity.DefaultPCC,
			RTol:           closeOpts.RelTol,
			ATol:           closeOpts.AbsTol,
			MaxMag:         closeOpts.MaxMag,
			MaxMagFraction: closeOpts.MaxMagFraction,
			AllcloseRTol:   allclose.RTol,
			AllcloseATol:   allclose.ATol,
		},
		Reference: ReferenceConfig{
			ORTLibraryPath: "",
			ORTAPIVersion:  23,
		},
		Report: ReportConfig{
			Format: FormatTable,
		},
		LogLevel: "info",
	}
}

// Options converts the parity section into comparison options.
func (c ParityConfig) Options() parity.Options {
	return parity.Options{
		Close: parity.CloseOptions{
			RelTol:         c.RTol,
			AbsTol:         c.ATol,
			MaxMag:         c.MaxMag,
			MaxMagFraction: c.MaxMagFraction,
		},
		Allclose: parity.AllcloseOptions{RTol: c.AllcloseRTol, ATol: c.AllcloseATol},
		PCC:      c.PCC,
	}
}

// flagKeys maps every config key to the flag that overrides it.
var flagKeys = []struct {
	key  string
	flag string
}{
	{"device.arch", "arch"},
	{"device.index", "device-index"},
	{"parity.mode", "mode"},
	{"parity.pcc", "pcc"},
	{"parity.rtol", "rtol"},
	{"parity.atol", "atol"},
	{"parity.max_mag", "max-mag"},
	{"parity.max_mag_fraction", "max-mag-fraction"},
	{"parity.allclose_rtol", "allclose-rtol"},
	{"parity.allclose_atol", "allclose-atol"},
	{"reference.ort_library_path", "ort-lib"},
	{"reference.ort_api_version", "ort-api-version"},
	{"report.format", "format"},
	{"report.path", "report"},
	{"report.metrics_textfile", "metrics-textfile"},
	{"profile.enabled", "profile"},
	{"log_level", "log-level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("arch", defaults.Device.Arch, "Device architecture (grayskull|wormhole_b0)")
	fs.Int("device-index", defaults.Device.Index, "Device index to open")
	fs.String("mode", defaults.Parity.Mode, "Comparison mode (combined|pcc|allclose|isclose)")
	fs.Float64("pcc", defaults.Parity.PCC, "Minimum Pearson correlation to pass")
	fs.Float64("rtol", defaults.Parity.RTol, "Relative tolerance for the closeness check")
	fs.Float64("atol", defaults.Parity.ATol, "Absolute tolerance for the closeness check")
	fs.Float64("max-mag", defaults.Parity.MaxMag, "Magnitude scale for the isclose absolute bound (|a-b| < max-mag * max-mag-fraction)")
	fs.Float64("max-mag-fraction", defaults.Parity.MaxMagFraction, "Fraction of --max-mag used as the isclose absolute bound")
	fs.Float64("allclose-rtol", defaults.Parity.AllcloseRTol, "Relative tolerance for allclose mode")
	fs.Float64("allclose-atol", defaults.Parity.AllcloseATol, "Absolute tolerance for allclose mode")
	fs.String("ort-lib", defaults.Reference.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.Int("ort-api-version", defaults.Reference.ORTAPIVersion, "ONNX Runtime C API version")
	fs.String("format", defaults.Report.Format, "Report output format (table|json)")
	fs.String("report", defaults.Report.Path, "Write the JSON report to this path")
	fs.String("metrics-textfile", defaults.Report.MetricsTextfile, "Write Prometheus metrics to this textfile")
	fs.Bool("profile", defaults.Profile.Enabled, "Record and print per-stage timings")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)

	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("TTPARITY")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)

	if err := v.BindEnv("reference.ort_library_path", "TTPARITY_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}

	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ttparity")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) normalize() error {
	arch, err := NormalizeArch(c.Device.Arch)
	if err != nil {
		return err
	}

	c.Device.Arch = arch

	mode, err := parity.ParseMode(strings.ToLower(strings.TrimSpace(c.Parity.Mode)))
	if err != nil {
		return err
	}

	c.Parity.Mode = string(mode)

	format, err := NormalizeFormat(c.Report.Format)
	if err != nil {
		return err
	}

	c.Report.Format = format

	if c.Device.Index < 0 {
		return fmt.Errorf("invalid device index %d", c.Device.Index)
	}

	if c.Reference.ORTAPIVersion < 0 {
		return fmt.Errorf("invalid ort api version %d", c.Reference.ORTAPIVersion)
	}

	return nil
}

// NormalizeArch maps user spellings (gs, wh, wormhole, ...) to the canonical
// architecture name.
func NormalizeArch(raw string) (string, error) {
	arch, err := device.ParseArch(raw)
	if err != nil {
		return "", err
	}

	return string(arch), nil
}

func NormalizeFormat(raw string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	switch format {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid report format %q (expected %s|%s)", raw, FormatTable, FormatJSON)
	}
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("device.arch", c.Device.Arch)
	v.SetDefault("device.index", c.Device.Index)
	v.SetDefault("parity.mode", c.Parity.Mode)
	v.SetDefault("parity.pcc", c.Parity.PCC)
	v.SetDefault("parity.rtol", c.Parity.RTol)
	v.SetDefault("parity.atol", c.Parity.ATol)
	v.SetDefault("parity.max_mag", c.Parity.MaxMag)
	v.SetDefault("parity.max_mag_fraction", c.Parity.MaxMagFraction)
	v.SetDefault("parity.allclose_rtol", c.Parity.AllcloseRTol)
	v.SetDefault("parity.allclose_atol", c.Parity.AllcloseATol)
	v.SetDefault("reference.ort_library_path", c.Reference.ORTLibraryPath)
	v.SetDefault("reference.ort_api_version", c.Reference.ORTAPIVersion)
	v.SetDefault("report.format", c.Report.Format)
	v.SetDefault("report.path", c.Report.Path)
	v.SetDefault("report.metrics_textfile", c.Report.MetricsTextfile)
	v.SetDefault("profile.enabled", c.Profile.Enabled)
	v.SetDefault("log_level", c.LogLevel)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", fk.flag, err)
		}
	}

	return nil
}
