// Package config loads mca8000d settings from a file, defaults and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport kinds.
const (
	TransportUSB    = "usb"
	TransportSerial = "serial"
	TransportSim    = "sim"
)

// SerialConfig selects the RS-232 port.
type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// DeviceConfig selects and tunes the device link.
type DeviceConfig struct {
	Transport      string        `mapstructure:"transport"`
	VendorID       uint16        `mapstructure:"vendorId"`
	ProductID      uint16        `mapstructure:"productId"`
	OutEndpoint    int           `mapstructure:"outEndpoint"`
	InEndpoint     int           `mapstructure:"inEndpoint"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ReadBufferSize int           `mapstructure:"readBufferSize"`
	Serial         SerialConfig  `mapstructure:"serial"`
}

// AcquisitionConfig tunes timed acquisitions.
type AcquisitionConfig struct {
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// HTTPConfig configures the control API.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	// RateLimit is the sustained device requests per second across all clients
	RateLimit float64 `mapstructure:"rateLimit"`
	Burst     int     `mapstructure:"burst"`
}

// LumberjackConfig configures the rolling log file.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets log level and output.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config is the top-level configuration.
type Config struct {
	Device      DeviceConfig      `mapstructure:"device"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// Load reads configuration from path (YAML, TOML or JSON) and the
// environment. Environment variables use the MCA_ prefix with dots replaced
// by underscores, e.g. MCA_DEVICE_TRANSPORT=sim. With an empty path, MCA_CONFIG
// is consulted, then ./mca8000d.yaml and ./configs/mca8000d.yaml; a missing
// file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("MCA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("mca8000d")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Device.Transport {
	case TransportUSB, TransportSim:
	case TransportSerial:
		if c.Device.Serial.Port == "" {
			return fmt.Errorf("device.serial.port is required for the serial transport")
		}
	default:
		return fmt.Errorf("unknown device.transport %q (want usb, serial or sim)", c.Device.Transport)
	}
	if c.Device.Timeout <= 0 {
		return fmt.Errorf("device.timeout must be positive, got %v", c.Device.Timeout)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.transport", TransportUSB)
	v.SetDefault("device.vendorId", 0x10c4)
	v.SetDefault("device.productId", 0x842a)
	v.SetDefault("device.outEndpoint", 0x02)
	v.SetDefault("device.inEndpoint", 0x81)
	v.SetDefault("device.timeout", "500ms")
	v.SetDefault("device.readBufferSize", 65535)
	v.SetDefault("device.serial.port", "")
	v.SetDefault("device.serial.baud", 115200)

	v.SetDefault("acquisition.pollInterval", "1s")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "30s")
	v.SetDefault("http.rateLimit", 20)
	v.SetDefault("http.burst", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}
