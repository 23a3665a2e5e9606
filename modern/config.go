package modern

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

// EnvPrefix prefixes every environment override, e.g. TENMA_SERIAL_PORT.
const EnvPrefix = "TENMA"

type Config struct {
	Serial   SerialConfig `mapstructure:"serial"`
	Model    string       `mapstructure:"model"`
	Fallback string       `mapstructure:"fallback"`
	Retries  int          `mapstructure:"retries"`
	Debug    bool         `mapstructure:"debug"`
	Server   ServerConfig `mapstructure:"server"`

	path string
	v    *viper.Viper
}

type SerialConfig struct {
	Port     string        `mapstructure:"port"`
	Baudrate int           `mapstructure:"baudrate"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads the optional config file at path (YAML or JSON by extension),
// applies defaults and TENMA_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baudrate", serialpkg.DefaultBaud)
	v.SetDefault("serial.timeout", serialpkg.DefaultTimeout.String())
	v.SetDefault("model", "")
	v.SetDefault("fallback", "")
	v.SetDefault("retries", 1)
	v.SetDefault("debug", false)
	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	cfg.path = path
	cfg.v = v
	return &cfg, nil
}

// Path is the file the config was read from, empty when none was given.
func (c *Config) Path() string { return c.path }

// Factory opens serial transports with the configured line settings.
func (c *Config) Factory() TransportFactory {
	return SerialFactory(c.Serial.Baudrate, c.Serial.Timeout)
}

// PersistSerialPort writes the serial port back into the config file.
func (c *Config) PersistSerialPort() error {
	if c.path == "" {
		return fmt.Errorf("no config file to persist to")
	}
	c.v.Set("serial.port", c.Serial.Port)
	if err := c.v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// EnsureSerialPort auto-detects the serial port if missing and optionally
// persists it back into the config file.
func EnsureSerialPort(c *Config, persist bool) (changed bool, err error) {
	if c == nil {
		return false, fmt.Errorf("missing config")
	}
	if strings.TrimSpace(c.Serial.Port) != "" {
		return false, nil
	}
	ports, err := serialpkg.ListPorts()
	if err != nil {
		return false, err
	}
	port := serialpkg.AutoDetectPort(ports, c.Serial.Baudrate, IsTenma)
	if port == "" {
		return false, fmt.Errorf("could not auto-detect serial port")
	}
	c.Serial.Port = port
	if persist && c.path != "" {
		if err := c.PersistSerialPort(); err != nil {
			return true, err
		}
	}
	return true, nil
}
