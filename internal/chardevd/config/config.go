// Package config loads the chardevd TOML configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ConfigFormatVersion is the current version of the configuration file format
const ConfigFormatVersion = "0.1.0"

// DefaultConfigFile is read when no -config flag is given.
const DefaultConfigFile = "/etc/chardev/chardevd.conf"

const (
	DefaultHostName       = "127.0.0.1"
	DefaultDeviceNode     = "/dev/char_dev"
	DefaultCapacity       = 256
	DefaultLogLevel       = "info"
	DefaultRequestTimeout = "30s"
	DefaultAuditFlush     = 100
	DefaultAuditBuffer    = 1024
)

// AuditConfig holds audit log configuration
type AuditConfig struct {
	Enabled    bool   `toml:"enabled"`
	Dir        string `toml:"dir" validate:"required_if=Enabled true"`
	FlushEvery int    `toml:"flush_every" validate:"gte=0"` // entries buffered between writes
	BufferSize int    `toml:"buffer_size" validate:"gte=0"` // store events queued for the writer
}

// ConfigParam holds all configuration parameters for chardevd
type ConfigParam struct {
	FormatVersion string `toml:"format_version" validate:"required"`

	// Server configuration
	ServerHostName string `toml:"server_hostname" validate:"required"`
	ServerPort     string `toml:"server_port" validate:"required,numeric"`
	HandleCORS     bool   `toml:"handle_cors"`
	RequestTimeout string `toml:"request_timeout" validate:"duration"`
	LogLevel       string `toml:"log_level" validate:"loglevel"`

	// Device configuration
	DeviceNode string `toml:"device_node" validate:"required"`
	Capacity   int    `toml:"capacity" validate:"min=1,max=1048576"`

	Audit AuditConfig `toml:"audit"`
}

var cfg *ConfigParam

// Config returns the configuration loaded by LoadConfig.
func Config() *ConfigParam {
	return cfg
}

// SetConfig installs c as the current configuration.
func SetConfig(c *ConfigParam) {
	cfg = c
}

// Address returns host:port for the TCP listener.
func (c *ConfigParam) Address() string {
	return net.JoinHostPort(c.ServerHostName, c.ServerPort)
}

func (c *ConfigParam) URL() string {
	return "http://" + c.Address()
}

// GetRequestTimeout returns request_timeout parsed. Validation guarantees it
// parses.
func (c *ConfigParam) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Default returns a configuration with every default applied.
func Default() *ConfigParam {
	c := &ConfigParam{FormatVersion: ConfigFormatVersion}
	applyDefaults(c)
	return c
}

func applyDefaults(c *ConfigParam) {
	if c.ServerHostName == "" {
		c.ServerHostName = DefaultHostName
	}
	if c.DeviceNode == "" {
		c.DeviceNode = DefaultDeviceNode
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Audit.FlushEvery == 0 {
		c.Audit.FlushEvery = DefaultAuditFlush
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = DefaultAuditBuffer
	}
}

var configValidator *validator.Validate

func v() *validator.Validate {
	if configValidator == nil {
		configValidator = validator.New(validator.WithRequiredStructEnabled())
		configValidator.RegisterValidation("loglevel", logLevelValidator)
		configValidator.RegisterValidation("duration", durationValidator)
	}
	return configValidator
}

func logLevelValidator(fl validator.FieldLevel) bool {
	_, err := zerolog.ParseLevel(fl.Field().String())
	return err == nil
}

func durationValidator(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// ValidateConfig applies defaults and checks every field.
func ValidateConfig(c *ConfigParam) error {
	applyDefaults(c)
	if c.FormatVersion != ConfigFormatVersion {
		return fmt.Errorf("unsupported config file format version: %s", c.FormatVersion)
	}
	if err := v().Struct(c); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok {
			var fields []string
			for _, fe := range ve {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// Parse decodes TOML content after expanding ${VAR} references from the
// environment.
func Parse(content []byte) (*ConfigParam, error) {
	expanded, err := expandEnv(string(content))
	if err != nil {
		return nil, err
	}
	c := &ConfigParam{}
	md, err := toml.Decode(expanded, c)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := ValidateConfig(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return c, nil
}

// LoadConfig reads filename, loading a .env file from the same directory
// first, and installs the result as the current configuration.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(filename), ".env")) // optional

	c, err := Parse(content)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

func expandEnv(s string) (string, error) {
	missing := map[string]bool{}
	out := os.Expand(s, func(key string) string {
		val, ok := os.LookupEnv(key)
		if !ok {
			missing[key] = true
		}
		return val
	})
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("missing environment variable: %s (set it in your shell or .env file)", strings.Join(keys, ", "))
	}
	return out, nil
}
