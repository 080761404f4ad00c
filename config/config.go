package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"solax-flow/internal/inverter"
	"solax-flow/internal/layout"
	"solax-flow/internal/solax"
)

const EnvPrefix = "SOLAXFLOW"

type Config struct {
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Inverters InvertersConfig `mapstructure:"inverters"`
	Layout    LayoutConfig    `mapstructure:"layout"`
	API       APIConfig       `mapstructure:"api"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
}

type TelemetryConfig struct {
	URL      string        `mapstructure:"url"`
	Interval time.Duration `mapstructure:"interval"`
}

// InvertersConfig binds each display side to a serial number. It is read
// once at startup.
type InvertersConfig struct {
	LeftSerial  string `mapstructure:"left_serial"`
	RightSerial string `mapstructure:"right_serial"`
}

func (c InvertersConfig) Slots() inverter.Slots {
	return inverter.Slots{Left: c.LeftSerial, Right: c.RightSerial}
}

type LayoutConfig struct {
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	// Fixture optionally seeds the box registry from a YAML file.
	Fixture string `mapstructure:"fixture"`

	layout.Params `mapstructure:",squash"`
}

type APIConfig struct {
	Port    int    `mapstructure:"port"`
	Enabled bool   `mapstructure:"enabled"`
	WebPath string `mapstructure:"web_path"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Discovery   bool   `mapstructure:"discovery"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telemetry.url", solax.DefaultURL)
	v.SetDefault("telemetry.interval", "15s")
	v.SetDefault("inverters.left_serial", inverter.DefaultSlots.Left)
	v.SetDefault("inverters.right_serial", inverter.DefaultSlots.Right)

	p := layout.DefaultParams
	v.SetDefault("layout.frame_interval", "16ms")
	v.SetDefault("layout.fixture", "")
	v.SetDefault("layout.pad_from_tile", p.PadFromTile)
	v.SetDefault("layout.safe_pad", p.SafePad)
	v.SetDefault("layout.margin_min", p.MarginMin)
	v.SetDefault("layout.margin_fraction", p.MarginFraction)
	v.SetDefault("layout.edge_inset", p.EdgeInset)
	v.SetDefault("layout.trunk_width", p.TrunkWidth)
	v.SetDefault("layout.min_trunk_height", p.MinTrunkHeight)
	v.SetDefault("layout.hub_size", p.HubSize)
	v.SetDefault("layout.wire_thickness", p.WireThickness)
	v.SetDefault("layout.min_wire_length", p.MinWireLength)

	v.SetDefault("api.port", 8045)
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.web_path", "./web")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "solax")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.discovery", true)
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.path", "file::memory:?cache=shared")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from configPath (or config.yaml in the usual
// places), a .env file in the working directory and SOLAXFLOW_* variables,
// in increasing precedence.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/solax-flow")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Telemetry.URL == "" {
		errs = append(errs, errors.New("telemetry.url is required"))
	}
	if c.Telemetry.Interval <= 0 {
		errs = append(errs, errors.New("telemetry.interval must be positive"))
	}
	if c.Inverters.LeftSerial == "" || c.Inverters.RightSerial == "" {
		errs = append(errs, errors.New("inverters.left_serial and inverters.right_serial are required"))
	}
	if c.Inverters.LeftSerial != "" && c.Inverters.LeftSerial == c.Inverters.RightSerial {
		errs = append(errs, errors.New("inverters.left_serial and inverters.right_serial must differ"))
	}
	if c.Layout.FrameInterval <= 0 {
		errs = append(errs, errors.New("layout.frame_interval must be positive"))
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	return errors.Join(errs...)
}
